package zmachine

import (
	"strings"

	"github.com/brinkhall/goz/dictionary"
	"github.com/brinkhall/goz/zobject"
)

// read implements sread (v1-4) / aread (v5+): print the status line on
// pre-v4 stories, prompt for a line of input (honoring the optional v4+
// time/routine operands by running the routine's interrupt callback),
// lowercase and store it in the text buffer, tokenize it against the
// dictionary, and (v5+) store the terminating character.
func (z *ZMachine) read(opcode *Opcode, frame *CallStackFrame) error {
	if z.Core.Version <= 3 {
		locationID, err := z.readVariable(16, false)
		if err != nil {
			return err
		}
		location, err := zobject.Get(&z.Core, z.Alphabets, locationID)
		if err != nil {
			return err
		}
		score, err := z.readVariable(17, false)
		if err != nil {
			return err
		}
		moves, err := z.readVariable(18, false)
		if err != nil {
			return err
		}
		z.outputChannel <- StatusBar{
			PlaceName:   location.Name,
			Score:       int(int16(score)),
			Moves:       int(moves),
			IsTimeBased: z.Core.StatusBarTimeBased,
		}
	}

	textBufferPtr, err := opcode.operand(z, 0)
	if err != nil {
		return err
	}
	parseBufferPtr := uint16(0)
	if len(opcode.operands) > 1 {
		parseBufferPtr, err = opcode.operand(z, 1)
		if err != nil {
			return err
		}
	}

	var timeTenths, routinePack uint16
	if len(opcode.operands) > 2 {
		timeTenths, err = opcode.operand(z, 2)
		if err != nil {
			return err
		}
	}
	if len(opcode.operands) > 3 {
		routinePack, err = opcode.operand(z, 3)
		if err != nil {
			return err
		}
	}

	rawText, timedOut, err := z.promptForLine(InputRequest{TimeTenths: timeTenths, RoutinePack: routinePack})
	if err != nil {
		return err
	}

	terminator := uint16('\n')
	if timedOut {
		rawText = ""
		terminator = 0
	}

	rawTextBytes := []byte(strings.ToLower(rawText))

	bufferAddr := uint32(textBufferPtr)
	bufferSize, err := z.Core.ReadByte(bufferAddr)
	if err != nil {
		return err
	}
	writePtr := bufferAddr + 1

	if z.Core.Version >= 5 {
		existing, err := z.Core.ReadByte(writePtr)
		if err != nil {
			return err
		}
		writePtr += 1 + uint32(existing)
	}

	ix := 0
	for ix < int(bufferSize) && ix < len(rawTextBytes) {
		chr := rawTextBytes[ix]
		if chr < 32 || chr > 126 {
			chr = ' '
		}
		if err := z.Core.WriteByte(writePtr+uint32(ix), chr); err != nil {
			return err
		}
		ix++
	}

	if z.Core.Version < 5 {
		if err := z.Core.WriteByte(writePtr+uint32(ix), 0); err != nil {
			return err
		}
	} else {
		if err := z.Core.WriteByte(bufferAddr+1, uint8(ix)); err != nil {
			return err
		}
	}

	if parseBufferPtr != 0 {
		dict := z.dict
		if err := dictionary.Tokenize(&z.Core, z.Alphabets, dict, bufferAddr, uint32(parseBufferPtr), false); err != nil {
			return err
		}
	}

	if z.Core.Version >= 5 {
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, terminator, false)
	}

	return nil
}

// promptForLine blocks for a line of input, racing an optional v4+
// timeout. On timeout it invokes the story's interrupt routine (if any)
// before reporting back to the caller; per the standard, if that routine
// returns a non-zero value the whole read is abandoned.
func (z *ZMachine) promptForLine(req InputRequest) (string, bool, error) {
	z.outputChannel <- req
	z.outputChannel <- WaitForInput

	return z.waitForTimedInput(req)
}

// runInterruptRoutine calls a v4+ timed-input routine to completion as a
// nested frame, returning whether it asked to abandon the read (returned
// non-zero).
func (z *ZMachine) runInterruptRoutine(routinePack uint16) (bool, error) {
	depthBefore := z.callStack.depth()

	addr, err := z.packedAddress(uint32(routinePack), false)
	if err != nil {
		return false, err
	}
	localCount, err := z.Core.ReadByte(addr)
	if err != nil {
		return false, err
	}
	locals := make([]uint16, localCount)
	pc := addr + 1
	if z.Core.Version < 5 {
		for i := range locals {
			v, err := z.Core.ReadWord(pc)
			if err != nil {
				return false, err
			}
			locals[i] = v
			pc += 2
		}
	}

	if err := z.callStack.push(CallStackFrame{pc: pc, locals: locals, routineType: routineInterrupt}); err != nil {
		return false, err
	}

	z.lastInterruptResult = 0
	for z.callStack.depth() > depthBefore {
		frame, err := z.callStack.peek()
		if err != nil {
			return false, err
		}

		opcode, err := ParseOpcode(z)
		if err != nil {
			return false, err
		}

		var stepErr error
		switch opcode.operandCount {
		case OP0:
			_, stepErr = z.dispatch0OP(&opcode, frame)
		case OP1:
			stepErr = z.dispatch1OP(&opcode, frame)
		case OP2:
			stepErr = z.dispatch2OP(&opcode, frame)
		case VAR:
			if opcode.opcodeForm == extForm {
				stepErr = z.dispatchExt(&opcode, frame)
			} else {
				stepErr = z.dispatchVar(&opcode, frame)
			}
		}
		if stepErr != nil {
			return false, stepErr
		}
	}

	return z.lastInterruptResult != 0, nil
}
