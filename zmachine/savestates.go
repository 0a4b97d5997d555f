package zmachine

// Save describes a save_opcode request: Address/NumBytes are non-zero
// only for the v5+ auxiliary (partial) save form; zero means a full save.
type Save struct {
	Prompt   bool
	Filename string
	Address  uint32
	NumBytes uint32
}

// Restore is the restore_opcode counterpart to Save.
type Restore struct {
	Prompt   bool
	Filename string
	Address  uint32
	NumBytes uint32
}

type SaveRestoreResponse interface {
	isSaveRestoreResponse()
}

type SaveResponse struct {
	Success bool
	Result  uint16 // 0 = failure, 1 = success
}

func (SaveResponse) isSaveRestoreResponse() {}

type RestoreResponse struct {
	Success bool
	Result  uint16 // 0 = failure, 2 = success; for auxiliary: bytes loaded
	Data    []byte
}

func (RestoreResponse) isSaveRestoreResponse() {}

// SaveState is a full snapshot of everything save_undo/restore_undo (and
// the real save/restore opcodes) need to reproduce execution exactly:
// dynamic memory and the call stack. Static and high memory never
// change, so they aren't captured.
type SaveState struct {
	staticMemoryBase uint16
	dynamicMemory    []uint8
	callStack        CallStack
}

// InMemorySaveStateCache backs save_undo/restore_undo, which the standard
// defines as an in-process stack, not a file.
type InMemorySaveStateCache struct {
	saveStates []SaveState
}

func (z *ZMachine) captureState() (SaveState, error) {
	dynamicMemory, err := z.Core.ReadSlice(0, uint32(z.Core.StaticMemoryBase))
	if err != nil {
		return SaveState{}, err
	}
	copied := make([]uint8, len(dynamicMemory))
	copy(copied, dynamicMemory)

	return SaveState{
		staticMemoryBase: z.Core.StaticMemoryBase,
		dynamicMemory:    copied,
		callStack:        z.callStack.copy(),
	}, nil
}

func (z *ZMachine) applyState(state SaveState) (bool, error) {
	if state.staticMemoryBase != z.Core.StaticMemoryBase {
		return false, nil
	}

	for ix, b := range state.dynamicMemory {
		if err := z.Core.WriteByte(uint32(ix), b); err != nil {
			return false, err
		}
	}
	z.callStack = state.callStack.copy()
	return true, nil
}

func (z *ZMachine) saveUndo() error {
	state, err := z.captureState()
	if err != nil {
		return err
	}
	z.UndoStates.saveStates = append(z.UndoStates.saveStates, state)
	return nil
}

func (z *ZMachine) restoreUndo() (uint16, error) {
	if len(z.UndoStates.saveStates) == 0 {
		return 0, nil
	}

	state := z.UndoStates.saveStates[len(z.UndoStates.saveStates)-1]
	z.UndoStates.saveStates = z.UndoStates.saveStates[:len(z.UndoStates.saveStates)-1]

	ok, err := z.applyState(state)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return 2, nil
}

// readSaveFilename reads a length-prefixed ASCII string (not a Z-string),
// as used by the save/restore opcodes' optional filename operand.
func (z *ZMachine) readSaveFilename(address uint32) (string, error) {
	if address == 0 {
		return "", nil
	}

	length, err := z.Core.ReadByte(address)
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}

	bytes := make([]byte, length)
	for i := range bytes {
		b, err := z.Core.ReadByte(address + 1 + uint32(i))
		if err != nil {
			return "", err
		}
		bytes[i] = b
	}
	return string(bytes), nil
}

// ExportSaveState serializes the current machine state to the "GOZM"
// binary format, for the host to write to a .qzl file.
func (z *ZMachine) ExportSaveState() ([]byte, error) {
	state, err := z.captureState()
	if err != nil {
		return nil, err
	}
	return state.serialize(), nil
}

// ImportSaveState restores a machine state previously produced by
// ExportSaveState. It returns false (not an error) when the snapshot
// doesn't parse or was taken against a differently-sized story.
func (z *ZMachine) ImportSaveState(data []byte) (bool, error) {
	state, ok := deserializeSaveState(data)
	if !ok {
		return false, nil
	}
	return z.applyState(state)
}

// Save format "GOZM": magic(4) + staticBase(2) + dynamicMem + frameCount(2) + frames
func (s SaveState) serialize() []byte {
	frameData := s.callStack.serialize()
	data := make([]byte, 4+2+len(s.dynamicMemory)+2+len(frameData))
	offset := 0

	copy(data[offset:], []byte("GOZM"))
	offset += 4

	data[offset] = byte(s.staticMemoryBase >> 8)
	data[offset+1] = byte(s.staticMemoryBase & 0xFF)
	offset += 2

	copy(data[offset:], s.dynamicMemory)
	offset += len(s.dynamicMemory)

	frameCount := len(s.callStack.frames)
	data[offset] = byte(frameCount >> 8)
	data[offset+1] = byte(frameCount & 0xFF)
	offset += 2

	copy(data[offset:], frameData)
	return data
}

func deserializeSaveState(data []byte) (SaveState, bool) {
	if len(data) < 8 || string(data[0:4]) != "GOZM" {
		return SaveState{}, false
	}

	offset := 4
	staticBase := uint16(data[offset])<<8 | uint16(data[offset+1])
	offset += 2

	if len(data) < offset+int(staticBase)+2 {
		return SaveState{}, false
	}

	dynamicMem := make([]uint8, staticBase)
	copy(dynamicMem, data[offset:offset+int(staticBase)])
	offset += int(staticBase)

	frameCount := int(data[offset])<<8 | int(data[offset+1])
	offset += 2

	frames, _ := deserializeCallStack(data[offset:], frameCount)
	if frames == nil {
		return SaveState{}, false
	}

	return SaveState{
		staticMemoryBase: staticBase,
		dynamicMemory:    dynamicMem,
		callStack:        CallStack{frames: frames},
	}, true
}

func (cs *CallStack) serialize() []byte {
	var result []byte
	for _, frame := range cs.frames {
		result = append(result, frame.serialize()...)
	}
	return result
}

// Frame format: pc(4) + framePointer(4) + routineType(1) + numArgsPassed(2) +
// localsCount(2) + locals + stackSize(2) + stack
func (f *CallStackFrame) serialize() []byte {
	size := 4 + 4 + 1 + 2 + 2 + len(f.locals)*2 + 2 + len(f.routineStack)*2
	data := make([]byte, size)
	offset := 0

	data[offset] = byte(f.pc >> 24)
	data[offset+1] = byte(f.pc >> 16)
	data[offset+2] = byte(f.pc >> 8)
	data[offset+3] = byte(f.pc)
	offset += 4

	data[offset] = byte(f.framePointer >> 24)
	data[offset+1] = byte(f.framePointer >> 16)
	data[offset+2] = byte(f.framePointer >> 8)
	data[offset+3] = byte(f.framePointer)
	offset += 4

	data[offset] = byte(f.routineType)
	offset++

	data[offset] = byte(f.numArgsPassed >> 8)
	data[offset+1] = byte(f.numArgsPassed)
	offset += 2

	data[offset] = byte(len(f.locals) >> 8)
	data[offset+1] = byte(len(f.locals))
	offset += 2
	for _, local := range f.locals {
		data[offset] = byte(local >> 8)
		data[offset+1] = byte(local)
		offset += 2
	}

	data[offset] = byte(len(f.routineStack) >> 8)
	data[offset+1] = byte(len(f.routineStack))
	offset += 2
	for _, val := range f.routineStack {
		data[offset] = byte(val >> 8)
		data[offset+1] = byte(val)
		offset += 2
	}

	return data
}

func deserializeCallStack(data []byte, frameCount int) ([]CallStackFrame, int) {
	frames := make([]CallStackFrame, 0, frameCount)
	offset := 0

	for i := 0; i < frameCount; i++ {
		if offset+13 > len(data) {
			return nil, 0
		}

		frame := CallStackFrame{}

		frame.pc = uint32(data[offset])<<24 | uint32(data[offset+1])<<16 |
			uint32(data[offset+2])<<8 | uint32(data[offset+3])
		offset += 4

		frame.framePointer = uint32(data[offset])<<24 | uint32(data[offset+1])<<16 |
			uint32(data[offset+2])<<8 | uint32(data[offset+3])
		offset += 4

		frame.routineType = RoutineType(data[offset])
		offset++

		frame.numArgsPassed = int(data[offset])<<8 | int(data[offset+1])
		offset += 2

		localCount := int(data[offset])<<8 | int(data[offset+1])
		offset += 2
		if offset+localCount*2 > len(data) {
			return nil, 0
		}
		frame.locals = make([]uint16, localCount)
		for j := 0; j < localCount; j++ {
			frame.locals[j] = uint16(data[offset])<<8 | uint16(data[offset+1])
			offset += 2
		}

		if offset+2 > len(data) {
			return nil, 0
		}
		stackSize := int(data[offset])<<8 | int(data[offset+1])
		offset += 2
		if offset+stackSize*2 > len(data) {
			return nil, 0
		}
		frame.routineStack = make([]uint16, stackSize)
		for j := 0; j < stackSize; j++ {
			frame.routineStack[j] = uint16(data[offset])<<8 | uint16(data[offset+1])
			offset += 2
		}

		frames = append(frames, frame)
	}

	return frames, offset
}
