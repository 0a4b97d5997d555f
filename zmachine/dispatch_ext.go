package zmachine

func (z *ZMachine) dispatchExt(opcode *Opcode, frame *CallStackFrame) error {
	switch opcode.opcodeByte {
	case 0x00: // save
		return z.doSave(frame)

	case 0x01: // restore
		return z.doRestore(frame)

	case 0x02: // log_shift
		num, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		p, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		places := int16(p)

		var result uint16
		if places >= 0 {
			result = num << uint16(places)
		} else {
			result = num >> uint16(-places)
		}

		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, result, false)

	case 0x03: // art_shift
		num, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		p, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		places := int16(p)
		signedNum := int16(num)

		var result uint16
		if places >= 0 {
			result = uint16(signedNum << uint16(places))
		} else {
			result = uint16(signedNum >> uint16(-places))
		}

		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, result, false)

	case 0x04: // set_font
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, 0, false) // requested font not available

	case 0x09: // save_undo
		if err := z.saveUndo(); err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, 1, false)

	case 0x0a: // restore_undo
		response, err := z.restoreUndo()
		if err != nil {
			return err
		}
		newFrame, err := z.callStack.peek()
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(newFrame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, response, false)

	case 0x0b: // print_unicode
		chr, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		return z.appendText(string(rune(chr)))

	case 0x0c: // check_unicode
		chr, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		result := uint16(0)
		if chr != 0 {
			result = 0b11 // can both print and (notionally) accept as input
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, result, false)

	case 0x0d: // set_true_colour
		return nil // color support is not wired to a real display backend

	default:
		z.outputChannel <- Warning("unimplemented EXT opcode")
		return nil
	}
}
