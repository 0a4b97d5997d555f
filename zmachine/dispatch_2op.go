package zmachine

import (
	"encoding/binary"

	"github.com/brinkhall/goz/zerrs"
	"github.com/brinkhall/goz/zobject"
)

func (z *ZMachine) dispatch2OP(opcode *Opcode, frame *CallStackFrame) error {
	a, err := opcode.operand(z, 0)
	if err != nil {
		return err
	}

	switch opcode.opcodeNumber {
	case 1: // je: a equals any of up to 3 further operands
		branch := false
		if len(opcode.operands) < 2 {
			// A lone operand (VAR-form je) is compared against an implied 0.
			branch = a == 0
		}
		for i := 1; i < len(opcode.operands); i++ {
			b, err := opcode.operand(z, i)
			if err != nil {
				return err
			}
			if a == b {
				branch = true
			}
		}
		return z.handleBranch(frame, branch)

	case 2: // jl
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, int16(a) < int16(b))

	case 3: // jg
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, int16(a) > int16(b))

	case 4: // dec_chk
		variable := uint8(a)
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		v, err := z.readVariable(variable, true)
		if err != nil {
			return err
		}
		newValue := int16(v) - 1
		if err := z.writeVariable(variable, uint16(newValue), true); err != nil {
			return err
		}
		return z.handleBranch(frame, newValue < int16(b))

	case 5: // inc_chk
		variable := uint8(a)
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		v, err := z.readVariable(variable, true)
		if err != nil {
			return err
		}
		newValue := v + 1
		if err := z.writeVariable(variable, newValue, true); err != nil {
			return err
		}
		return z.handleBranch(frame, int16(newValue) > int16(b))

	case 6: // jin
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, obj.Parent == b)

	case 7: // test
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, a&b == b)

	case 8: // or
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, a|b, false)

	case 9: // and
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, a&b, false)

	case 10: // test_attr
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		set, err := obj.TestAttribute(z.Core.Version, b)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, set)

	case 11: // set_attr
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return obj.SetAttribute(&z.Core, b)

	case 12: // clear_attr
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return obj.ClearAttribute(&z.Core, b)

	case 13: // store
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return z.writeVariable(uint8(a), b, true)

	case 14: // insert_obj
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		return z.MoveObject(a, b)

	case 15: // loadw
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		v, err := z.Core.ReadWord(uint32(a) + 2*uint32(b))
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, v, false)

	case 16: // loadb
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		v, err := z.Core.ReadByte(uint32(a) + uint32(b))
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, uint16(v), false)

	case 17: // get_prop
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		prop, err := obj.GetProperty(&z.Core, uint8(b))
		if err != nil {
			return err
		}

		var value uint16
		switch len(prop.Data) {
		case 1:
			value = uint16(prop.Data[0])
		case 2:
			value = binary.BigEndian.Uint16(prop.Data)
		default:
			return zerrs.InvalidPropertyError{ObjectID: a, PropertyID: uint8(b), Reason: "get_prop on a property longer than 2 bytes"}
		}

		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, value, false)

	case 18: // get_prop_addr
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		addr, err := obj.GetPropertyAddr(&z.Core, uint8(b))
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, uint16(addr), false)

	case 19: // get_next_prop
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		var b uint16
		if len(opcode.operands) > 1 {
			b, err = opcode.operand(z, 1)
			if err != nil {
				return err
			}
		}
		next, err := obj.GetNextProperty(&z.Core, uint8(b))
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, uint16(next), false)

	case 20: // add
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, a+b, false)

	case 21: // sub
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, a-b, false)

	case 22: // mul
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, a*b, false)

	case 23: // div
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		if int16(b) == 0 {
			return zerrs.DivideByZeroError{}
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, uint16(int16(a)/int16(b)), false)

	case 24: // mod
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		if int16(b) == 0 {
			return zerrs.DivideByZeroError{}
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, uint16(int16(a)%int16(b)), false)

	case 25: // call_2s
		return z.call(opcode, routineFunction)

	case 26: // call_2n
		return z.call(opcode, routineProcedure)

	case 27: // set_colour: a = foreground, operand 1 = background
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		fg := z.screenModel.resolveColor(a, true)
		bg := z.screenModel.resolveColor(b, false)
		if z.screenModel.LowerWindowActive {
			z.screenModel.LowerWindowForeground = fg
			z.screenModel.LowerWindowBackground = bg
		} else {
			z.screenModel.UpperWindowForeground = fg
			z.screenModel.UpperWindowBackground = bg
		}
		z.outputChannel <- z.screenModel
		return nil

	case 28: // throw
		// b is the token catch produced: depth()-1 at the time catch ran,
		// i.e. the stack depth with the catching routine's own frame
		// popped off. Unwinding to that depth leaves the catching
		// routine's caller on top, whose pc still sits at the destination
		// variable byte for the original call (call only consumes it on
		// return, via readIncPC in retValue) - so throw finishes the job
		// itself instead of calling retValue, which would pop once more.
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		for z.callStack.depth() > int(b) {
			if _, err := z.callStack.pop(); err != nil {
				return err
			}
		}
		callerFrame, err := z.callStack.peek()
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(callerFrame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, a, false)

	default:
		z.outputChannel <- Warning("unimplemented 2OP opcode")
		return nil
	}
}
