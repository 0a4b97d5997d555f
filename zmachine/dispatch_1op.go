package zmachine

import (
	"github.com/brinkhall/goz/zobject"
	"github.com/brinkhall/goz/zstring"
)

func (z *ZMachine) dispatch1OP(opcode *Opcode, frame *CallStackFrame) error {
	a, err := opcode.operand(z, 0)
	if err != nil {
		return err
	}

	switch opcode.opcodeNumber {
	case 0: // jz
		return z.handleBranch(frame, a == 0)

	case 1: // get_sibling
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		if err := z.writeVariable(dest, obj.Sibling, false); err != nil {
			return err
		}
		return z.handleBranch(frame, obj.Sibling != 0)

	case 2: // get_child
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		if err := z.writeVariable(dest, obj.Child, false); err != nil {
			return err
		}
		return z.handleBranch(frame, obj.Child != 0)

	case 3: // get_parent
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, obj.Parent, false)

	case 4: // get_prop_len
		length, err := zobject.PropertyLength(&z.Core, uint32(a), z.Core.Version)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, length, false)

	case 5: // inc
		variable := uint8(a)
		v, err := z.readVariable(variable, true)
		if err != nil {
			return err
		}
		return z.writeVariable(variable, v+1, true)

	case 6: // dec
		variable := uint8(a)
		v, err := z.readVariable(variable, true)
		if err != nil {
			return err
		}
		return z.writeVariable(variable, v-1, true)

	case 7: // print_addr
		str, _, err := zstring.Decode(&z.Core, uint32(a), z.Alphabets)
		if err != nil {
			return err
		}
		return z.appendText(str)

	case 8: // call_1s
		return z.call(opcode, routineFunction)

	case 9: // remove_obj
		return z.RemoveObject(a)

	case 10: // print_obj
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		return z.appendText(obj.Name)

	case 11: // ret
		return z.retValue(a)

	case 12: // jump
		offset := int16(a)
		frame.pc = uint32(int32(frame.pc) + int32(offset) - 2)
		return nil

	case 13: // print_paddr
		addr, err := z.packedAddress(uint32(a), true)
		if err != nil {
			return err
		}
		text, _, err := zstring.Decode(&z.Core, addr, z.Alphabets)
		if err != nil {
			return err
		}
		return z.appendText(text)

	case 14: // load
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		v, err := z.readVariable(uint8(a), true)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, v, false)

	case 15: // not (v1-4) / call_1n (v5+)
		if z.Core.Version < 5 {
			dest, err := z.readIncPC(frame)
			if err != nil {
				return err
			}
			return z.writeVariable(dest, ^a, false)
		}
		return z.call(opcode, routineProcedure)

	default:
		z.outputChannel <- Warning("unimplemented 1OP opcode")
		return nil
	}
}
