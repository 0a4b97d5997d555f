// Package zmachine implements the instruction set: the call stack,
// universal variable addressing, the opcode decoder and dispatcher, the
// text/window output model, and save/restore. It composes zcore (memory),
// zstring (text), zobject (object tree), dictionary (parsing) and ztable
// (raw table opcodes) into a runnable interpreter.
package zmachine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brinkhall/goz/dictionary"
	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zerrs"
	"github.com/brinkhall/goz/zobject"
	"github.com/brinkhall/goz/zstring"
)

// StatusBar is emitted on the output channel at the start of every sread
// on v1-3, before input is requested,
// which render their status line from interpreter-computed values rather
// than game-printed text.
type StatusBar struct {
	PlaceName   string
	Score       int
	Moves       int
	IsTimeBased bool
}

// Quit is sent on the output channel when the story executes quit, or
// when the interpreter loop halts on an unrecoverable error.
type Quit bool

// Restart is sent when the restart opcode executes; the host is
// responsible for reloading the original story image and constructing a
// fresh ZMachine.
type Restart bool

// EraseWindowRequest mirrors the erase_window opcode's window argument
// (-1 = unsplit and clear all, -2 = clear all without unsplitting, 0/1 =
// clear one window).
type EraseWindowRequest int

// EraseLineRequest mirrors erase_line's pixel-count argument.
type EraseLineRequest int

// SoundEffectRequest mirrors the sound_effect opcode's arguments; the
// host decides how (or whether) to actually play anything.
type SoundEffectRequest struct {
	Number uint16
	Effect uint16
	Volume uint16
	Repeats uint16
}

// Warning is a non-fatal diagnostic surfaced to the host without halting
// execution (an out-of-range stack pop, an unimplemented opcode that the
// standard allows interpreters to no-op).
type Warning string

// StateChangeRequest tells the host what kind of input the interpreter is
// now blocked waiting for.
type StateChangeRequest int

const (
	WaitForInput     StateChangeRequest = iota
	WaitForCharacter
	Running
)

// InputRequest carries everything the host needs to prompt for and
// validate a line of input, including the v5+ timed-input fields.
type InputRequest struct {
	MaxLength   uint8
	TimeTenths  uint16 // 0 means no timeout
	RoutinePack uint16 // packed address of the timeout routine, if any
}

// InputResponse pairs typed text with a timed-out flag. The interpreter
// never reads one: the host answers an InputRequest by sending the raw
// typed text as a plain string on the input channel.
type InputResponse struct {
	Text    string
	TimedOut bool
}

var (
	// Black and White are the two colors always available regardless of
	// the story's declared color support, used to seed the screen model's
	// defaults before any set_colour call.
	Black = Color{0, 0, 0}
	White = Color{255, 255, 255}
)

type MemoryStreamData struct {
	baseAddress uint32
	ptr         uint32
}

type Streams struct {
	Screen           bool
	Transcript       bool
	Memory           bool
	MemoryStreamData []MemoryStreamData
	CommandScript    bool
}

// ZMachine is a single running story: its memory image, decoded text
// tables, call stack, screen model, and the channels it uses to talk to
// whatever is presenting the game (a terminal UI, a test harness, a
// headless script runner).
type ZMachine struct {
	callStack     CallStack
	Core          zcore.Core
	dict          *dictionary.Dictionary
	screenModel   ScreenModel
	streams       Streams
	rng           *rand.Rand
	Alphabets     *zstring.Alphabets
	outputChannel      chan<- interface{}
	inputChannel       <-chan string
	saveRestoreChannel <-chan SaveRestoreResponse
	UndoStates         InMemorySaveStateCache

	// lastInterruptResult captures a routineInterrupt frame's return
	// value, which (unlike routineFunction) has no variable to land in.
	lastInterruptResult uint16
}

func (z *ZMachine) packedAddress(originalAddress uint32, isZString bool) (uint32, error) {
	switch {
	case z.Core.Version < 4:
		return 2 * originalAddress, nil
	case z.Core.Version < 6:
		return 4 * originalAddress, nil
	case z.Core.Version < 8:
		offset := z.Core.RoutinesOffset
		if isZString {
			offset = z.Core.StringOffset
		}
		return 4*originalAddress + 8*uint32(offset), nil
	case z.Core.Version == 8:
		return 8 * originalAddress, nil
	default:
		return 0, zerrs.UnsupportedVersionError{Version: z.Core.Version}
	}
}

func (z *ZMachine) readIncPC(frame *CallStackFrame) (uint8, error) {
	v, err := z.Core.ReadByte(frame.pc)
	if err != nil {
		return 0, err
	}
	frame.pc++
	return v, nil
}

func (z *ZMachine) readHalfWordIncPC(frame *CallStackFrame) (uint16, error) {
	v, err := z.Core.ReadWord(frame.pc)
	if err != nil {
		return 0, err
	}
	frame.pc += 2
	return v, nil
}

// readVariable resolves a universal variable number: 0 is the top of the
// current frame's evaluation stack, 1-15 are routine locals, 16+ are
// globals. Per the standard, an indirect read (load, inc, dec, inc_chk,
// dec_chk and the indirect form of pull) reads the stack top in place
// instead of popping it.
func (z *ZMachine) readVariable(variable uint8, indirect bool) (uint16, error) {
	frame, err := z.callStack.peek()
	if err != nil {
		return 0, err
	}

	switch {
	case variable == 0:
		if indirect {
			return frame.peek()
		}
		return frame.pop()
	case variable < 16:
		return frame.local(variable)
	default:
		return z.Core.ReadWord(uint32(z.Core.GlobalVariableBase + 2*(uint16(variable)-16)))
	}
}

func (z *ZMachine) writeVariable(variable uint8, value uint16, indirect bool) error {
	frame, err := z.callStack.peek()
	if err != nil {
		return err
	}

	switch {
	case variable == 0:
		if indirect {
			if _, err := frame.pop(); err != nil {
				return err
			}
		}
		return frame.push(value)
	case variable < 16:
		return frame.setLocal(variable, value)
	default:
		return z.Core.WriteWord(uint32(z.Core.GlobalVariableBase+2*(uint16(variable)-16)), value)
	}
}

// LoadRom constructs a fresh ZMachine from a story file's raw bytes,
// wired up to the given channels: a line of input in, decoded output
// events out, and (optionally) save/restore responses in reply to the
// Save/Restore events on the output channel. saveRestoreChannel may be
// nil, in which case the real save/restore opcodes always report failure
// (save_undo/restore_undo are unaffected, since they need no host
// backend at all).
func LoadRom(storyFile []uint8, inputChannel <-chan string, saveRestoreChannel <-chan SaveRestoreResponse, outputChannel chan<- interface{}) (*ZMachine, error) {
	core, err := zcore.LoadCore(storyFile)
	if err != nil {
		return nil, err
	}

	machine := ZMachine{
		Core:               core,
		inputChannel:       inputChannel,
		saveRestoreChannel: saveRestoreChannel,
		outputChannel:      outputChannel,
		streams: Streams{
			Screen: true,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	machine.Alphabets, err = zstring.LoadAlphabets(&machine.Core)
	if err != nil {
		return nil, err
	}

	machine.dict, err = dictionary.Load(&machine.Core, machine.Alphabets)
	if err != nil {
		return nil, err
	}

	machine.Core.SetDefaultBackgroundColorNumber(2) // BLACK per the standard's color table
	machine.Core.SetDefaultForegroundColorNumber(9)  // WHITE
	machine.screenModel = newScreenModel(White, Black)

	if machine.Core.Version == 6 {
		// V6 uses a packed address and a routine header for the initial "call".
		packed, err := machine.packedAddress(uint32(machine.Core.FirstInstruction), false)
		if err != nil {
			return nil, err
		}
		localCount, err := machine.Core.ReadByte(packed)
		if err != nil {
			return nil, err
		}
		if err := machine.callStack.push(CallStackFrame{pc: packed + 1, locals: make([]uint16, localCount)}); err != nil {
			return nil, err
		}
	} else {
		if err := machine.callStack.push(CallStackFrame{pc: uint32(machine.Core.FirstInstruction)}); err != nil {
			return nil, err
		}
	}

	return &machine, nil
}

// call implements the call family of opcodes: call, call_1s/1n, call_2s/2n,
// call_vs/vs2, call_vn/vn2. A routine address of 0 is special-cased by the
// standard to mean "do nothing, return false" without an actual call.
func (z *ZMachine) call(opcode *Opcode, routineType RoutineType) error {
	arg0, err := opcode.operand(z, 0)
	if err != nil {
		return err
	}
	routineAddress, err := z.packedAddress(uint32(arg0), false)
	if err != nil {
		return err
	}

	if routineAddress == 0 {
		if routineType == routineFunction {
			frame, err := z.callStack.peek()
			if err != nil {
				return err
			}
			dest, err := z.readIncPC(frame)
			if err != nil {
				return err
			}
			return z.writeVariable(dest, 0, false)
		}
		return nil
	}

	localVariableCount, err := z.Core.ReadByte(routineAddress)
	if err != nil {
		return err
	}
	routineAddress++

	locals := make([]uint16, localVariableCount)
	for i := 0; i < int(localVariableCount); i++ {
		if i+1 < len(opcode.operands) {
			v, err := opcode.operand(z, i+1)
			if err != nil {
				return err
			}
			locals[i] = v
		} else if z.Core.Version < 5 {
			v, err := z.Core.ReadWord(routineAddress)
			if err != nil {
				return err
			}
			locals[i] = v
		}

		if z.Core.Version < 5 {
			routineAddress += 2
		}
	}

	return z.callStack.push(CallStackFrame{
		pc:            routineAddress,
		locals:        locals,
		routineType:   routineType,
		numArgsPassed: len(opcode.operands) - 1,
		framePointer:  opcode.pc,
	})
}

// retValue implements the return-with-value half of ret/rtrue/rfalse/
// ret_popped and the implicit return at the end of an interrupt.
func (z *ZMachine) retValue(val uint16) error {
	oldFrame, err := z.callStack.pop()
	if err != nil {
		return err
	}

	if oldFrame.routineType == routineInterrupt {
		z.lastInterruptResult = val
		return nil
	}

	if oldFrame.routineType == routineFunction {
		newFrame, err := z.callStack.peek()
		if err != nil {
			return err
		}
		dest, err := z.readIncPC(newFrame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, val, false)
	}
	return nil
}

// handleBranch implements the branch-on-condition tail shared by every
// branching opcode: a 1 or 2 byte branch operand following the opcode's
// own operands, with the special offsets 0/1 meaning "return false/true
// from the current routine" rather than jumping.
func (z *ZMachine) handleBranch(frame *CallStackFrame, result bool) error {
	branchArg1, err := z.readIncPC(frame)
	if err != nil {
		return err
	}

	branchReversed := (branchArg1>>7)&1 == 0
	singleByte := (branchArg1>>6)&1 == 1
	offset := int32(branchArg1 & 0b11_1111)

	if !singleByte {
		low, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		offset = int32(int16((uint16(branchArg1&0b11_1111)<<8|uint16(low))<<2) >> 2)
	}

	if result != branchReversed {
		switch offset {
		case 0:
			return z.retValue(0)
		case 1:
			return z.retValue(1)
		default:
			frame.pc = uint32(int32(frame.pc) + offset - 2)
		}
	}
	return nil
}

// RemoveObject implements remove_obj: detach an object from the tree
// without reattaching it anywhere.
func (z *ZMachine) RemoveObject(objId uint16) error {
	object, err := zobject.Get(&z.Core, z.Alphabets, objId)
	if err != nil {
		return err
	}
	if object.Parent == 0 {
		return nil
	}
	if err := zobject.Unlink(&z.Core, z.Alphabets, &object); err != nil {
		return err
	}
	if err := object.SetSibling(&z.Core, 0); err != nil {
		return err
	}
	return object.SetParent(&z.Core, 0)
}

// MoveObject implements insert_obj: move an object to become the first
// child of newParent.
func (z *ZMachine) MoveObject(objId uint16, newParent uint16) error {
	object, err := zobject.Get(&z.Core, z.Alphabets, objId)
	if err != nil {
		return err
	}
	return zobject.MoveTo(&z.Core, z.Alphabets, &object, newParent)
}

// appendText routes decoded game text to whichever output stream(s) are
// currently active: a memory stream (output stream 3) takes exclusive
// priority over the screen per the standard.
func (z *ZMachine) appendText(s string) error {
	if z.streams.Memory {
		current := &z.streams.MemoryStreamData[len(z.streams.MemoryStreamData)-1]
		for _, r := range s {
			if err := z.Core.WriteByte(current.ptr, uint8(r)); err != nil {
				return err
			}
			current.ptr++
		}
		return nil
	}

	if z.streams.Screen {
		z.outputChannel <- s

		if !z.screenModel.LowerWindowActive {
			lines := strings.Split(s, "\n")
			z.screenModel.UpperWindowCursorY += len(lines) - 1
			z.screenModel.UpperWindowCursorX += len(lines[len(lines)-1])
			z.outputChannel <- z.screenModel
		}
	}

	if z.streams.Transcript {
		z.outputChannel <- s
	}

	return nil
}

// Run drives the fetch-decode-execute loop to completion (quit, restart,
// or an unrecoverable error), publishing a Quit on the output channel
// when it stops.
// Run drives the fetch-decode-execute loop until the story quits, ctx is
// cancelled, or a step fails. Every step runs behind runProtected, so a
// bug that panics partway through a dispatch case surfaces as a
// zerrs.RuntimeError on the output channel instead of crashing the host.
func (z *ZMachine) Run(ctx context.Context) {
	z.outputChannel <- z.screenModel

	for {
		select {
		case <-ctx.Done():
			z.outputChannel <- Quit(true)
			return
		default:
		}

		cont, err := runProtected(z.StepMachine)
		if err != nil {
			z.outputChannel <- zerrs.RuntimeError{Cause: err}
			break
		}
		if !cont {
			break
		}
	}

	z.outputChannel <- Quit(true)
}

// runProtected recovers a panic out of a single step and turns it into an
// error, the same recover-to-error shape as a supervisor tree's crash
// boundary: a decode or dispatch bug should end the story cleanly on the
// output channel, not take the host process down with it.
func runProtected(step func() (bool, error)) (cont bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			cont = false
			err = fmt.Errorf("zmachine: step panicked: %v", r)
		}
	}()
	return step()
}

// CurrentPC returns the program counter of the currently executing
// routine frame, for a host that wants to trace execution (decode and
// log each instruction via DecodeAt before StepMachine consumes it).
func (z *ZMachine) CurrentPC() (uint32, error) {
	frame, err := z.callStack.peek()
	if err != nil {
		return 0, err
	}
	return frame.pc, nil
}

// StepMachine decodes and executes exactly one instruction, returning
// false when the story has executed quit or restart.
func (z *ZMachine) StepMachine() (bool, error) {
	opcode, err := ParseOpcode(z)
	if err != nil {
		return false, err
	}

	frame, err := z.callStack.peek()
	if err != nil {
		return false, err
	}

	switch opcode.operandCount {
	case OP0:
		return z.dispatch0OP(&opcode, frame)
	case OP1:
		return true, z.dispatch1OP(&opcode, frame)
	case OP2:
		return true, z.dispatch2OP(&opcode, frame)
	case VAR:
		if opcode.opcodeForm == extForm {
			return true, z.dispatchExt(&opcode, frame)
		}
		return true, z.dispatchVar(&opcode, frame)
	default:
		return false, zerrs.DecodeError{PC: opcode.pc, Reason: "unreachable operand count"}
	}
}
