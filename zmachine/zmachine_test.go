package zmachine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildStory lays out a minimal, valid v3 story image: an empty dictionary,
// an empty object table, globals zeroed, and a first instruction at 0x400
// supplied by the caller. Large enough that packed/global addressing never
// runs off the end of the buffer.
func buildStory(t *testing.T, version uint8, firstInstruction []uint8) []uint8 {
	t.Helper()
	data := make([]uint8, 0x2000)
	data[0] = version

	const dictBase = 0x300
	data[0x08] = uint8(dictBase >> 8)
	data[0x09] = uint8(dictBase)
	data[dictBase] = 0   // no separators
	data[dictBase+1] = 6 // entry length
	data[dictBase+2] = 0 // word count high byte
	data[dictBase+3] = 0 // word count low byte

	const objectTableBase = 0x200
	data[0x0a] = uint8(objectTableBase >> 8)
	data[0x0b] = uint8(objectTableBase)

	const globalsBase = 0x100
	data[0x0c] = uint8(globalsBase >> 8)
	data[0x0d] = uint8(globalsBase)

	data[0x0e] = 0x1f // static memory base: keep everything below 0x1f00 writable
	data[0x0f] = 0x00

	const firstInstructionAddr = 0x400
	data[0x06] = uint8(firstInstructionAddr >> 8)
	data[0x07] = uint8(firstInstructionAddr)
	copy(data[firstInstructionAddr:], firstInstruction)

	return data
}

func newTestMachine(t *testing.T, version uint8, firstInstruction []uint8) *ZMachine {
	t.Helper()
	story := buildStory(t, version, firstInstruction)
	out := make(chan interface{}, 64)
	in := make(chan string, 1)
	saveRestore := make(chan SaveRestoreResponse, 1)
	z, err := LoadRom(story, in, saveRestore, out)
	require.NoError(t, err)
	return z
}

func TestCallStackFrameLocalsAndStack(t *testing.T) {
	frame := CallStackFrame{locals: make([]uint16, 3)}

	require.NoError(t, frame.setLocal(1, 42))
	v, err := frame.local(1)
	require.NoError(t, err)
	require.EqualValues(t, 42, v)

	_, err = frame.local(4)
	require.Error(t, err)

	require.NoError(t, frame.push(7))
	require.NoError(t, frame.push(8))
	top, err := frame.peek()
	require.NoError(t, err)
	require.EqualValues(t, 8, top)

	v, err = frame.pop()
	require.NoError(t, err)
	require.EqualValues(t, 8, v)
	v, err = frame.pop()
	require.NoError(t, err)
	require.EqualValues(t, 7, v)

	_, err = frame.pop()
	require.Error(t, err)
}

func TestCallStackCopyIsIndependent(t *testing.T) {
	var stack CallStack
	require.NoError(t, stack.push(CallStackFrame{locals: []uint16{1, 2}, routineStack: []uint16{9}}))

	snapshot := stack.copy()

	frame, err := stack.peek()
	require.NoError(t, err)
	require.NoError(t, frame.setLocal(1, 99))
	require.NoError(t, frame.push(100))

	snapFrame, err := snapshot.peek()
	require.NoError(t, err)
	v, err := snapFrame.local(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, v, "snapshot local must not see the live frame's mutation")
	require.Len(t, snapFrame.routineStack, 1)
}

func TestVariableAddressingStackLocalsGlobals(t *testing.T) {
	z := newTestMachine(t, 3, []uint8{0xb0}) // rtrue, unused

	// Stack (variable 0): push via plain write, pop via plain read.
	require.NoError(t, z.writeVariable(0, 5, false))
	v, err := z.readVariable(0, false)
	require.NoError(t, err)
	require.EqualValues(t, 5, v)

	// Indirect read peeks, leaving depth unchanged.
	require.NoError(t, z.writeVariable(0, 11, false))
	v, err = z.readVariable(0, true)
	require.NoError(t, err)
	require.EqualValues(t, 11, v)
	v, err = z.readVariable(0, false)
	require.NoError(t, err)
	require.EqualValues(t, 11, v, "indirect read must not have popped the stack")

	// Locals (1-15).
	frame, err := z.callStack.peek()
	require.NoError(t, err)
	frame.locals = make([]uint16, 2)
	require.NoError(t, z.writeVariable(1, 77, false))
	v, err = z.readVariable(1, false)
	require.NoError(t, err)
	require.EqualValues(t, 77, v)

	// Globals (16+): variable 16 maps to GlobalVariableBase.
	require.NoError(t, z.writeVariable(16, 0xBEEF, false))
	v, err = z.readVariable(16, false)
	require.NoError(t, err)
	require.EqualValues(t, 0xBEEF, v)
	raw, err := z.Core.ReadWord(uint32(z.Core.GlobalVariableBase))
	require.NoError(t, err)
	require.EqualValues(t, 0xBEEF, raw)
}

func TestCallAndRetValueWritesDestination(t *testing.T) {
	// call_vs routine_addr -> (store)
	//   0xe0 = VAR form, opcode 0 (call); operand types byte: one large constant, rest omitted
	//   large-constant packed routine address, then a store-variable byte
	// and, at the routine address, the routine itself: 0 locals, 1 instruction (rtrue).
	const routinePacked = 0x80 // unpacked address 0x100 in v3 (2x multiplier)
	routineAddr := uint32(routinePacked) * 2

	program := []uint8{
		0xe0, 0b00_11_11_11, uint8(routinePacked >> 8), uint8(routinePacked), 0x02, // call_vs routine -> local2
		0xb0, // rtrue (unused second instruction slot)
	}
	z := newTestMachine(t, 3, program)
	require.NoError(t, z.Core.WriteByte(routineAddr, 0)) // 0 locals
	require.NoError(t, z.Core.WriteByte(routineAddr+1, 0xb0)) // rtrue

	frame, err := z.callStack.peek()
	require.NoError(t, err)
	frame.locals = make([]uint16, 4)

	cont, err := z.StepMachine() // call
	require.NoError(t, err)
	require.True(t, cont)
	require.EqualValues(t, 2, z.callStack.depth())

	cont, err = z.StepMachine() // rtrue inside the callee
	require.NoError(t, err)
	require.True(t, cont)
	require.EqualValues(t, 1, z.callStack.depth())

	callerFrame, err := z.callStack.peek()
	require.NoError(t, err)
	v, err := callerFrame.local(2)
	require.NoError(t, err)
	require.EqualValues(t, 1, v, "rtrue's value 1 must land in the call's destination local")
}

func TestHandleBranchShortFormJump(t *testing.T) {
	z := newTestMachine(t, 3, nil)
	frame, err := z.callStack.peek()
	require.NoError(t, err)

	start := frame.pc
	require.NoError(t, z.Core.WriteByte(start, 0b1_1_00_0101)) // branch-if-true, single byte, offset 5
	require.NoError(t, z.handleBranch(frame, true))
	require.EqualValues(t, start+1+5-2, frame.pc)
}

func TestHandleBranchReturnsOnSpecialOffsets(t *testing.T) {
	z := newTestMachine(t, 3, nil)

	routineFrame := CallStackFrame{locals: make([]uint16, 1)}
	require.NoError(t, z.callStack.push(routineFrame))
	frame, err := z.callStack.peek()
	require.NoError(t, err)

	start := frame.pc
	require.NoError(t, z.Core.WriteByte(start, 0b1_1_00_0000)) // branch-if-true, offset 0 -> "return false"
	depthBefore := z.callStack.depth()
	require.NoError(t, z.handleBranch(frame, true))
	require.EqualValues(t, depthBefore-1, z.callStack.depth())
}

func TestDispatch2OPJeBranch(t *testing.T) {
	// 2OP long form, both operands small constants: je #5 #5 -> branch true
	program := []uint8{
		0b00_000001, 5, 5, 0b1_1_00_0011, // je 5 5 ?(true, offset 3)
		0xb0, // landing instruction (rtrue) — never actually reached in this unit test
	}
	z := newTestMachine(t, 3, program)
	frame, err := z.callStack.peek()
	require.NoError(t, err)
	frame.locals = make([]uint16, 1)

	before := frame.pc
	cont, err := z.StepMachine()
	require.NoError(t, err)
	require.True(t, cont)
	require.EqualValues(t, before+4+3-2, frame.pc)
}

func TestScanTableHelperOpcode(t *testing.T) {
	z := newTestMachine(t, 3, nil)
	frame, err := z.callStack.peek()
	require.NoError(t, err)
	frame.locals = make([]uint16, 1)

	const tableAddr = 0x1000
	require.NoError(t, z.Core.WriteWord(tableAddr, 0xAAAA))
	require.NoError(t, z.Core.WriteWord(tableAddr+2, 0xBEEF))

	opcode := &Opcode{
		opcodeNumber: 23,
		operands: []Operand{
			{operandType: largeConstant, value: 0xBEEF},
			{operandType: largeConstant, value: tableAddr},
			{operandType: smallConstant, value: 2},
		},
	}
	require.NoError(t, z.Core.WriteByte(frame.pc, 0)) // destination variable byte read by readIncPC
	require.NoError(t, z.Core.WriteByte(frame.pc+1, 0b1_1_00_0010)) // branch on true, single-byte offset 2

	err = z.dispatchVar(opcode, frame)
	require.NoError(t, err)
}
