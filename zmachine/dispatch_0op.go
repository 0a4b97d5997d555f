package zmachine

import "github.com/brinkhall/goz/zstring"

// dispatch0OP executes a zero-operand instruction. It returns (false, nil)
// only for quit and restart, which end the run loop without that being an
// error.
func (z *ZMachine) dispatch0OP(opcode *Opcode, frame *CallStackFrame) (bool, error) {
	switch opcode.opcodeNumber {
	case 0: // rtrue
		return true, z.retValue(1)

	case 1: // rfalse
		return true, z.retValue(0)

	case 2: // print
		text, bytesRead, err := zstring.Decode(&z.Core, frame.pc, z.Alphabets)
		if err != nil {
			return true, err
		}
		frame.pc += uint32(bytesRead)
		return true, z.appendText(text)

	case 3: // print_ret
		text, bytesRead, err := zstring.Decode(&z.Core, frame.pc, z.Alphabets)
		if err != nil {
			return true, err
		}
		frame.pc += uint32(bytesRead)
		if err := z.appendText(text); err != nil {
			return true, err
		}
		if err := z.appendText("\n"); err != nil {
			return true, err
		}
		return true, z.retValue(1)

	case 4: // nop
		return true, nil

	case 5: // save (pre-v5 form with no operands)
		return true, z.doSave(frame)

	case 6: // restore
		return true, z.doRestore(frame)

	case 7: // restart
		z.outputChannel <- Restart(true)
		return false, nil

	case 8: // ret_popped
		v, err := frame.pop()
		if err != nil {
			return true, err
		}
		return true, z.retValue(v)

	case 9: // pop / catch
		if z.Core.Version >= 5 {
			dest, err := z.readIncPC(frame)
			if err != nil {
				return true, err
			}
			return true, z.writeVariable(dest, uint16(z.callStack.depth()-1), false)
		}
		_, err := frame.pop()
		return true, err

	case 10: // quit
		return false, nil

	case 11: // newline
		return true, z.appendText("\n")

	case 12: // show_status (v3 only, deprecated but harmless elsewhere)
		return true, nil

	case 13: // verify
		actual := uint16(0)
		fileLength := z.Core.FileLength()
		for ix := uint32(0x40); ix < uint32(fileLength); ix++ {
			b, err := z.Core.ReadByte(ix)
			if err != nil {
				return true, err
			}
			actual += uint16(b)
		}
		return true, z.handleBranch(frame, actual == z.Core.FileChecksum)

	case 15: // piracy
		return true, z.handleBranch(frame, true) // interpreters are asked to be gullible

	default:
		z.outputChannel <- Warning("unimplemented 0OP opcode")
		return true, nil
	}
}
