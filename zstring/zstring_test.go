package zstring

import (
	"encoding/binary"
	"testing"

	"github.com/brinkhall/goz/zcore"
	"github.com/stretchr/testify/require"
)

// buildCore wraps a patched memory image in a zcore.Core for testing. The
// image is 2048 bytes, version set at byte 0, with byte ranges from
// patch written in afterward.
func buildCore(t *testing.T, version uint8, patch map[uint32][]uint8) *zcore.Core {
	t.Helper()
	data := make([]uint8, 2048)
	data[0] = version
	for addr, b := range patch {
		copy(data[addr:], b)
	}
	core, err := zcore.LoadCore(data)
	require.NoError(t, err)
	return &core
}

// packZChars packs a stream of 5-bit Z-chars into big-endian words,
// padding with the shift filler (5) to a multiple of three and setting
// the high bit on the final word.
func packZChars(zchrs []uint8) []uint8 {
	for len(zchrs)%3 != 0 {
		zchrs = append(zchrs, 5)
	}
	out := make([]uint8, len(zchrs)/3*2)
	for i := 0; i < len(zchrs)/3; i++ {
		word := uint16(zchrs[i*3])<<10 | uint16(zchrs[i*3+1])<<5 | uint16(zchrs[i*3+2])
		if i == len(zchrs)/3-1 {
			word |= 0x8000
		}
		binary.BigEndian.PutUint16(out[i*2:i*2+2], word)
	}
	return out
}

var zstringDecodingTests = []struct {
	name      string
	in        []uint8
	out       string
	bytesRead uint16
	version   uint8
}{
	{"three alphabets", []uint8{11, 45, 42, 234, 1, 216, 0, 192, 98, 70, 70, 32, 72, 206, 68, 244, 116, 13, 42, 234, 142, 37, 11, 45, 42, 234, 1, 216}, "There is a small mailbox here.", 22, 1},
	{"zscii escape", []uint8{12, 193, 248, 165}, ">", 4, 1},
}

func TestDecode(t *testing.T) {
	for _, tt := range zstringDecodingTests {
		t.Run(tt.name, func(t *testing.T) {
			core := buildCore(t, tt.version, map[uint32][]uint8{100: tt.in})
			alphabets := DefaultAlphabets(tt.version)

			str, bytesRead, err := Decode(core, 100, alphabets)
			require.NoError(t, err)
			require.Equal(t, tt.out, str)
			require.Equal(t, tt.bytesRead, bytesRead)
		})
	}
}

func TestDecodeAbbreviationV3(t *testing.T) {
	// Abbreviation string "HI": shift-to-A1, 'H', shift-to-A1, 'I'.
	abbrevStr := packZChars([]uint8{4, 13, 4, 14})

	// Top-level string: Z-char 1 (abbreviation lead, table 1), index 0.
	topLevel := packZChars([]uint8{1, 0})

	abbrevTableBase := uint32(0x300)
	abbrevStrAddr := uint32(0x400)

	entry := make([]uint8, 2)
	binary.BigEndian.PutUint16(entry, uint16(abbrevStrAddr/2))

	core := buildCore(t, 3, map[uint32][]uint8{
		0x18:            {uint8(abbrevTableBase >> 8), uint8(abbrevTableBase)},
		abbrevTableBase: entry,
		abbrevStrAddr:   abbrevStr,
		200:             topLevel,
	})

	str, _, err := Decode(core, 200, DefaultAlphabets(3))
	require.NoError(t, err)
	require.Equal(t, "HI", str)
}

func TestDecodeAbbreviationCannotNest(t *testing.T) {
	// An abbreviation string that itself starts with Z-char 1 must fail
	// rather than recurse.
	nestedAbbrev := packZChars([]uint8{1, 0})

	abbrevTableBase := uint32(0x300)
	abbrevStrAddr := uint32(0x400)
	entry := make([]uint8, 2)
	binary.BigEndian.PutUint16(entry, uint16(abbrevStrAddr/2))

	topLevel := packZChars([]uint8{1, 0})

	core := buildCore(t, 3, map[uint32][]uint8{
		0x18:            {uint8(abbrevTableBase >> 8), uint8(abbrevTableBase)},
		abbrevTableBase: entry,
		abbrevStrAddr:   nestedAbbrev,
		200:             topLevel,
	})

	_, _, err := Decode(core, 200, DefaultAlphabets(3))
	require.Error(t, err)
}

func TestEncodeRoundTripsThroughDictionaryLength(t *testing.T) {
	alphabets := DefaultAlphabets(3)
	encoded := Encode([]rune("hi"), 3, alphabets)
	require.Len(t, encoded, 4) // v1-3 entries are 2 words (4 bytes)

	core := buildCore(t, 3, map[uint32][]uint8{100: encoded})
	str, _, err := Decode(core, 100, alphabets)
	require.NoError(t, err)
	require.Equal(t, "hi", str)
}

func TestLoadAlphabetsDefaultsWithoutCustomTable(t *testing.T) {
	core := buildCore(t, 5, nil)
	alphabets, err := LoadAlphabets(core)
	require.NoError(t, err)
	require.Equal(t, DefaultAlphabets(5), alphabets)
}
