package zdisasm_test

import (
	"testing"

	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zdisasm"
	"github.com/brinkhall/goz/zstring"
	"github.com/stretchr/testify/require"
)

func buildStory(t *testing.T) *zcore.Core {
	t.Helper()
	data := make([]uint8, 0x1000)
	data[0] = 3 // version

	const dictBase = 0x300
	data[0x08] = uint8(dictBase >> 8)
	data[0x09] = uint8(dictBase)
	data[dictBase] = 0
	data[dictBase+1] = 6
	data[dictBase+2] = 0
	data[dictBase+3] = 0

	const objectTableBase = 0x200
	data[0x0a] = uint8(objectTableBase >> 8)
	data[0x0b] = uint8(objectTableBase)

	const globalsBase = 0x100
	data[0x0c] = uint8(globalsBase >> 8)
	data[0x0d] = uint8(globalsBase)

	data[0x0e] = 0x0f // static memory base
	data[0x0f] = 0x00

	const entryAddr = 0x400
	data[0x06] = uint8(entryAddr >> 8)
	data[0x07] = uint8(entryAddr)

	// Entry routine: 0 locals, call_vs to routine at 0x500, then quit.
	const calleePacked = 0x500 / 2 // v3 packed address multiplier is 2
	data[entryAddr] = 0            // 0 locals
	data[entryAddr+1] = 0xe0       // VAR form, opcode 0 (call)
	data[entryAddr+2] = 0b00_11_11_11
	data[entryAddr+3] = uint8(calleePacked >> 8)
	data[entryAddr+4] = uint8(calleePacked)
	data[entryAddr+5] = 1    // store result -> variable 1 (never executed; decoding only needs the byte)
	data[entryAddr+6] = 0xba // quit (0OP, opcode 10: 0b10111010)

	// Callee routine at 0x500: 0 locals, rtrue.
	const calleeAddr = 0x500
	data[calleeAddr] = 0
	data[calleeAddr+1] = 0xb0 // rtrue

	core, err := zcore.LoadCore(data)
	require.NoError(t, err)
	return &core
}

func TestDiscoverFindsEntryAndCallee(t *testing.T) {
	core := buildStory(t)
	alphabets, err := zstring.LoadAlphabets(core)
	require.NoError(t, err)

	routines := zdisasm.Discover(core, alphabets)
	require.Len(t, routines, 2)

	require.EqualValues(t, 0x400, routines[0].Address)
	require.EqualValues(t, 0x500, routines[1].Address)

	require.EqualValues(t, "call_vs", routines[0].Instructions[0].Mnemonic)
	require.EqualValues(t, "quit", routines[0].Instructions[1].Mnemonic)
	require.EqualValues(t, "rtrue", routines[1].Instructions[0].Mnemonic)
}

func TestListingRendersRoutineHeaders(t *testing.T) {
	core := buildStory(t)
	alphabets, err := zstring.LoadAlphabets(core)
	require.NoError(t, err)

	listing := zdisasm.Listing(zdisasm.Discover(core, alphabets))
	require.Contains(t, listing, "Routine 0, 0 locals")
	require.Contains(t, listing, "call_vs")
}
