package zmachine

import (
	"strconv"

	"github.com/brinkhall/goz/dictionary"
	"github.com/brinkhall/goz/zerrs"
	"github.com/brinkhall/goz/zobject"
	"github.com/brinkhall/goz/ztable"
)

// maxOutputStream3Depth bounds output_stream 3 activations: the standard
// allows nesting redirected-to-memory output, but not without limit.
const maxOutputStream3Depth = 16

func (z *ZMachine) dispatchVar(opcode *Opcode, frame *CallStackFrame) error {
	switch opcode.opcodeNumber {
	case 0: // call / call_vs
		return z.call(opcode, routineFunction)

	case 1: // storew
		a, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		value, err := opcode.operand(z, 2)
		if err != nil {
			return err
		}
		return z.Core.WriteWord(uint32(a)+2*uint32(b), value)

	case 2: // storeb
		a, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		value, err := opcode.operand(z, 2)
		if err != nil {
			return err
		}
		return z.Core.WriteByte(uint32(a)+uint32(b), uint8(value))

	case 3: // put_prop
		a, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		obj, err := zobject.Get(&z.Core, z.Alphabets, a)
		if err != nil {
			return err
		}
		b, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		value, err := opcode.operand(z, 2)
		if err != nil {
			return err
		}
		return obj.SetProperty(&z.Core, uint8(b), value)

	case 4: // sread / aread
		return z.read(opcode, frame)

	case 5: // print_char
		chr, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		if chr == 0 {
			return nil
		}
		return z.appendText(string(rune(chr)))

	case 6: // print_num
		n, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		return z.appendText(strconv.Itoa(int(int16(n))))

	case 7: // random
		n, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		signed := int16(n)
		result := uint16(0)

		switch {
		case signed < 0:
			z.rng.Seed(int64(signed))
		case signed == 0:
			z.reseedRNG()
		default:
			result = uint16(z.rng.Int31n(int32(signed))) + 1
		}

		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, result, false)

	case 8: // push
		v, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		return frame.push(v)

	case 9: // pull
		a, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		v, err := frame.pop()
		if err != nil {
			return err
		}
		return z.writeVariable(uint8(a), v, true)

	case 10: // split_window
		lines, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		z.screenModel.UpperWindowHeight = int(lines)
		z.outputChannel <- z.screenModel
		return nil

	case 11: // set_window
		w, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		z.screenModel.LowerWindowActive = w == 0
		z.outputChannel <- z.screenModel
		return nil

	case 12: // call_vs2
		return z.call(opcode, routineFunction)

	case 13: // erase_window
		w, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		window := int16(w)
		if window == -1 {
			z.screenModel.LowerWindowActive = true
			z.screenModel.UpperWindowHeight = 0
			z.outputChannel <- z.screenModel
		}
		z.outputChannel <- EraseWindowRequest(window)
		return nil

	case 14: // erase_line
		w, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		z.outputChannel <- EraseLineRequest(w)
		return nil

	case 15: // set_cursor
		line, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		col, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		if !z.screenModel.LowerWindowActive {
			z.screenModel.UpperWindowCursorX = int(col)
			z.screenModel.UpperWindowCursorY = int(line)
			z.outputChannel <- z.screenModel
		}
		return nil

	case 16: // get_cursor
		return nil // not wired to a real display surface

	case 17: // set_text_style
		if z.Core.Version < 4 {
			return nil
		}
		mask, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		if z.screenModel.LowerWindowActive {
			z.screenModel.LowerWindowTextStyle = TextStyle(mask)
		} else {
			z.screenModel.UpperWindowTextStyle = TextStyle(mask)
		}
		z.outputChannel <- z.screenModel
		return nil

	case 18: // buffer_mode
		return nil // no output buffering is modeled

	case 19: // output_stream
		s, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		return z.setOutputStream(opcode, int16(s))

	case 20: // input_stream
		return nil // command-file playback input is not wired up

	case 21: // sound_effect
		var req SoundEffectRequest
		if len(opcode.operands) > 0 {
			req.Number, _ = opcode.operand(z, 0)
		}
		if len(opcode.operands) > 1 {
			req.Effect, _ = opcode.operand(z, 1)
		}
		if len(opcode.operands) > 2 {
			v, err := opcode.operand(z, 2)
			if err != nil {
				return err
			}
			req.Volume = v & 0xff
			req.Repeats = v >> 8
		}
		z.outputChannel <- req
		return nil

	case 22: // read_char
		z.outputChannel <- WaitForCharacter
		rawText := <-z.inputChannel
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		if len(rawText) == 0 {
			return z.writeVariable(dest, 0, false)
		}
		return z.writeVariable(dest, uint16(rawText[0]), false)

	case 23: // scan_table
		test, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		tableAddress, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		length, err := opcode.operand(z, 2)
		if err != nil {
			return err
		}
		form := uint16(0x82)
		if len(opcode.operands) == 4 {
			form, err = opcode.operand(z, 3)
			if err != nil {
				return err
			}
		}

		result, err := ztable.ScanTable(&z.Core, test, uint32(tableAddress), length, form)
		if err != nil {
			return err
		}

		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		if err := z.writeVariable(dest, uint16(result), false); err != nil {
			return err
		}
		return z.handleBranch(frame, result != 0)

	case 24: // not
		v, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, ^v, false)

	case 25: // call_vn
		return z.call(opcode, routineProcedure)

	case 26: // call_vn2
		return z.call(opcode, routineProcedure)

	case 27: // tokenise
		text, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		parseBuffer, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}

		dict := z.dict
		skipUnrecognized := false

		if len(opcode.operands) > 2 {
			dictAddr, err := opcode.operand(z, 2)
			if err != nil {
				return err
			}
			customCore := z.Core
			customCore.DictionaryBase = dictAddr
			dict, err = dictionary.Load(&customCore, z.Alphabets)
			if err != nil {
				return err
			}
		}
		if len(opcode.operands) == 4 {
			flag, err := opcode.operand(z, 3)
			if err != nil {
				return err
			}
			skipUnrecognized = flag != 0
		}

		return dictionary.Tokenize(&z.Core, z.Alphabets, dict, uint32(text), uint32(parseBuffer), skipUnrecognized)

	case 29: // copy_table
		first, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		second, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		size, err := opcode.operand(z, 2)
		if err != nil {
			return err
		}
		return ztable.CopyTable(&z.Core, uint32(first), uint32(second), int16(size))

	case 30: // print_table
		addr, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		width, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		height := uint16(1)
		skip := uint16(0)
		if len(opcode.operands) > 2 {
			height, err = opcode.operand(z, 2)
			if err != nil {
				return err
			}
			if len(opcode.operands) > 3 {
				skip, err = opcode.operand(z, 3)
				if err != nil {
					return err
				}
			}
		}
		text, err := ztable.PrintTable(&z.Core, uint32(addr), width, height, skip)
		if err != nil {
			return err
		}
		return z.appendText(text)

	case 31: // check_arg_count
		arg, err := opcode.operand(z, 0)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, arg <= uint16(frame.numArgsPassed))

	default:
		z.outputChannel <- Warning("unimplemented VAR opcode")
		return nil
	}
}

func (z *ZMachine) setOutputStream(opcode *Opcode, stream int16) error {
	switch stream {
	case 1, -1:
		z.streams.Screen = stream > 0
	case 2, -2:
		z.streams.Transcript = stream > 0
	case 3:
		if len(z.streams.MemoryStreamData) >= maxOutputStream3Depth {
			return zerrs.OutputStreamOverflowError{MaxDepth: maxOutputStream3Depth}
		}
		tableAddr, err := opcode.operand(z, 1)
		if err != nil {
			return err
		}
		z.streams.Memory = true
		z.streams.MemoryStreamData = append(z.streams.MemoryStreamData, MemoryStreamData{
			baseAddress: uint32(tableAddr),
			ptr:         uint32(tableAddr) + 2,
		})
	case -3:
		if z.streams.Memory {
			current := z.streams.MemoryStreamData[len(z.streams.MemoryStreamData)-1]
			if err := z.Core.WriteWord(current.baseAddress, uint16(current.ptr-current.baseAddress-2)); err != nil {
				return err
			}
			z.streams.MemoryStreamData = z.streams.MemoryStreamData[:len(z.streams.MemoryStreamData)-1]
			if len(z.streams.MemoryStreamData) == 0 {
				z.streams.Memory = false
			}
		}
	case 4, -4:
		z.streams.CommandScript = stream > 0
	}
	return nil
}
