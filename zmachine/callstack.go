package zmachine

import "github.com/brinkhall/goz/zerrs"

// RoutineType records how a call frame should be returned from: a
// function call stores its result in a variable, a procedure call
// discards it, and an interrupt (timed input, v5+ sound callbacks)
// resumes the exact point it preempted without touching any variable.
type RoutineType int

const (
	routineFunction RoutineType = iota
	routineProcedure
	routineInterrupt
)

// maxEvalStackDepth bounds each frame's evaluation stack. The standard
// doesn't mandate a specific limit; this is generous enough that no
// real story trips it while still catching a runaway push loop.
const maxEvalStackDepth = 4096

// maxCallDepth bounds the call stack itself, guarding against unbounded
// recursion in a broken or adversarial story file.
const maxCallDepth = 4096

// CallStackFrame is one routine activation: its program counter, local
// variables, private evaluation stack, and enough bookkeeping to return
// correctly (whether to store a result, and where the caller resumes).
type CallStackFrame struct {
	pc            uint32
	routineStack  []uint16
	locals        []uint16
	routineType   RoutineType
	numArgsPassed int    // arguments actually supplied by the caller, for check_arg_count
	framePointer  uint32 // address of the call instruction, for diagnostics
}

func (f *CallStackFrame) push(i uint16) error {
	if len(f.routineStack) >= maxEvalStackDepth {
		return zerrs.StackOverflowError{MaxDepth: maxEvalStackDepth}
	}
	f.routineStack = append(f.routineStack, i)
	return nil
}

func (f *CallStackFrame) pop() (uint16, error) {
	if len(f.routineStack) == 0 {
		return 0, zerrs.StackUnderflowError{}
	}
	i := f.routineStack[len(f.routineStack)-1]
	f.routineStack = f.routineStack[:len(f.routineStack)-1]
	return i, nil
}

func (f *CallStackFrame) peek() (uint16, error) {
	if len(f.routineStack) == 0 {
		return 0, zerrs.StackUnderflowError{}
	}
	return f.routineStack[len(f.routineStack)-1], nil
}

func (f *CallStackFrame) local(variable uint8) (uint16, error) {
	ix := int(variable) - 1
	if ix < 0 || ix >= len(f.locals) {
		return 0, zerrs.InvalidLocalError{Variable: variable, NumLocals: len(f.locals)}
	}
	return f.locals[ix], nil
}

func (f *CallStackFrame) setLocal(variable uint8, value uint16) error {
	ix := int(variable) - 1
	if ix < 0 || ix >= len(f.locals) {
		return zerrs.InvalidLocalError{Variable: variable, NumLocals: len(f.locals)}
	}
	f.locals[ix] = value
	return nil
}

// CallStack is the stack of active routine calls.
type CallStack struct {
	frames []CallStackFrame
}

func (s *CallStack) push(frame CallStackFrame) error {
	if len(s.frames) >= maxCallDepth {
		return zerrs.StackOverflowError{MaxDepth: maxCallDepth}
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *CallStack) pop() (CallStackFrame, error) {
	if len(s.frames) == 0 {
		return CallStackFrame{}, zerrs.StackUnderflowError{}
	}
	stackSize := len(s.frames)
	frame := s.frames[stackSize-1]
	s.frames = s.frames[:stackSize-1]
	return frame, nil
}

func (s *CallStack) peek() (*CallStackFrame, error) {
	if len(s.frames) == 0 {
		return nil, zerrs.StackUnderflowError{}
	}
	return &s.frames[len(s.frames)-1], nil
}

func (s *CallStack) depth() int {
	return len(s.frames)
}

// copy deep-copies the call stack and every frame's slices, so the undo
// and save-state snapshots stay independent of the live stack's further
// mutation.
func (s *CallStack) copy() CallStack {
	callStack := CallStack{
		frames: make([]CallStackFrame, len(s.frames)),
	}

	for fx, frame := range s.frames {
		copiedFrame := CallStackFrame{
			pc:            frame.pc,
			routineType:   frame.routineType,
			numArgsPassed: frame.numArgsPassed,
			framePointer:  frame.framePointer,
			routineStack:  make([]uint16, len(frame.routineStack)),
			locals:        make([]uint16, len(frame.locals)),
		}

		copy(copiedFrame.routineStack, frame.routineStack)
		copy(copiedFrame.locals, frame.locals)

		callStack.frames[fx] = copiedFrame
	}

	return callStack
}
