package dictionary_test

import (
	"testing"

	"github.com/brinkhall/goz/dictionary"
	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zstring"
	"github.com/stretchr/testify/require"
)

func buildCore(t *testing.T, version uint8, dictBase uint16, patch map[uint32][]uint8) *zcore.Core {
	t.Helper()
	data := make([]uint8, 4096)
	data[0] = version
	data[0x08] = uint8(dictBase >> 8)
	data[0x09] = uint8(dictBase)
	data[0x0e] = 0x10 // static base past end of buffer: everything writable
	data[0x0f] = 0x00
	for addr, b := range patch {
		copy(data[addr:], b)
	}
	core, err := zcore.LoadCore(data)
	require.NoError(t, err)
	return &core
}

// buildDictionary lays out a v3 dictionary with separators "," and "."
// and the three words "take", "drop", "open", already sorted by their
// encoded bytes (ascending), as a real compiled story would store them.
func buildDictionary(t *testing.T) (*zcore.Core, *dictionary.Dictionary, *zstring.Alphabets) {
	t.Helper()
	const dictBase = 0x300
	alphabets := zstring.DefaultAlphabets(3)

	words := []string{"drop", "open", "take"} // must already be in encoded-sort order
	entryLen := uint8(6)                      // 4 bytes encoded word + 2 bytes unused data

	patch := map[uint32][]uint8{
		dictBase: {2, ',', '.', entryLen, 0, uint8(len(words))},
	}
	entryPtr := uint32(dictBase) + 6
	for _, w := range words {
		encoded := zstring.Encode([]rune(w), 3, alphabets)
		patch[entryPtr] = append(append([]uint8{}, encoded...), 0, 0)
		entryPtr += uint32(entryLen)
	}

	core := buildCore(t, 3, dictBase, patch)
	dict, err := dictionary.Load(core, alphabets)
	require.NoError(t, err)
	return core, dict, alphabets
}

func TestLoadParsesHeaderAndEntries(t *testing.T) {
	_, dict, _ := buildDictionary(t)
	require.Equal(t, []uint8{',', '.'}, dict.Header.InputCodes)
	require.EqualValues(t, 3, dict.Header.Count)
	require.Len(t, dict.Entries, 3)
	require.Equal(t, "drop", dict.Entries[0].DecodedWord)
	require.Equal(t, "open", dict.Entries[1].DecodedWord)
	require.Equal(t, "take", dict.Entries[2].DecodedWord)
}

func TestLookupBinarySearch(t *testing.T) {
	_, dict, alphabets := buildDictionary(t)

	takeEncoded := zstring.Encode([]rune("take"), 3, alphabets)
	addr := dict.Lookup(takeEncoded)
	require.Equal(t, dict.Entries[2].Address, addr)

	missingEncoded := zstring.Encode([]rune("xyzzy"), 3, alphabets)
	require.Zero(t, dict.Lookup(missingEncoded))
}

func TestTokenizeSplitsOnSeparators(t *testing.T) {
	core, dict, alphabets := buildDictionary(t)

	const textAddr = 0x500
	const parseAddr = 0x600
	text := "take,drop"

	require.NoError(t, core.WriteByte(textAddr, 80))
	for i, b := range []uint8(text) {
		require.NoError(t, core.WriteByte(uint32(textAddr+1+i), b))
	}
	require.NoError(t, core.WriteByte(parseAddr, 8)) // max words

	require.NoError(t, dictionary.Tokenize(core, alphabets, dict, textAddr, parseAddr, false))

	count, err := core.ReadByte(parseAddr + 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, count) // "take", ",", "drop"

	entry0Addr, err := core.ReadWord(parseAddr + 2)
	require.NoError(t, err)
	require.Equal(t, dict.Entries[2].Address, entry0Addr) // "take"

	entry1Addr, err := core.ReadWord(parseAddr + 6)
	require.NoError(t, err)
	require.Zero(t, entry1Addr) // "," is not in the dictionary

	entry2Addr, err := core.ReadWord(parseAddr + 10)
	require.NoError(t, err)
	require.Equal(t, dict.Entries[0].Address, entry2Addr) // "drop"
}
