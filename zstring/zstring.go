// Package zstring implements the ZSCII text codec: decoding packed
// Z-strings into Go strings and encoding Go strings back into packed
// Z-chars for dictionary lookups.
package zstring

import (
	"encoding/binary"

	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zerrs"
)

var a0Default = [26]uint8{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var a1Default = [26]uint8{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}
var a2V1 = [26]uint8{0, '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '<', '-', ':', '(', ')'}
var a2Default = [26]uint8{0, '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

// alphabet identifies which of the three 26-entry tables a Z-char maps
// into; it also indexes Alphabets.Table.
type alphabet int

const (
	a0 alphabet = 0
	a1 alphabet = 1
	a2 alphabet = 2
)

// Alphabets holds the three 26-character alphabet tables a story uses.
// Versions 1-4 always use the built-in defaults; version 5+ stories may
// supply a custom set via the header's alternate character set address.
type Alphabets struct {
	Table [3][26]uint8
}

// DefaultAlphabets returns the built-in alphabet tables for version.
func DefaultAlphabets(version uint8) *Alphabets {
	a := &Alphabets{Table: [3][26]uint8{a0Default, a1Default, a2Default}}
	if version == 1 {
		a.Table[2] = a2V1
	}
	return a
}

// LoadAlphabets returns the alphabet tables that apply to core: the
// built-in defaults, or a custom table read from the header's alternate
// character set address when the story supplies one (version 5+ only).
func LoadAlphabets(core *zcore.Core) (*Alphabets, error) {
	alphabets := DefaultAlphabets(core.Version)
	if core.Version < 5 || core.AlternativeCharSetBaseAddress == 0 {
		return alphabets, nil
	}

	base := uint32(core.AlternativeCharSetBaseAddress)
	raw, err := core.ReadSlice(base, base+78)
	if err != nil {
		return nil, err
	}
	for set := 0; set < 3; set++ {
		for ix := 0; ix < 26; ix++ {
			alphabets.Table[set][ix] = raw[set*26+ix]
		}
	}
	return alphabets, nil
}

// zcharsFromWords splits the packed-word stream starting at addr into
// individual 5-bit Z-characters, stopping at the word with its high bit
// set. Returns the Z-chars and the number of bytes consumed.
func zcharsFromWords(core *zcore.Core, addr uint32) ([]uint8, uint16, error) {
	var zchrs []uint8
	var bytesRead uint16
	ptr := addr

	for {
		word, err := core.ReadWord(ptr)
		if err != nil {
			return nil, 0, zerrs.TextDecodeError{Address: addr, Reason: "truncated Z-string: " + err.Error()}
		}
		ptr += 2
		bytesRead += 2

		zchrs = append(zchrs, uint8((word>>10)&0b11111), uint8((word>>5)&0b11111), uint8(word&0b11111))

		if word&0x8000 != 0 {
			break
		}
	}

	return zchrs, bytesRead, nil
}

// Decode reads a Z-string starting at addr and returns the decoded text
// plus the number of bytes consumed from the packed stream (expanding an
// abbreviation consults the abbreviation table but its length never
// counts toward the caller's byte total). Version and abbreviation table
// base are read from core.
func Decode(core *zcore.Core, addr uint32, alphabets *Alphabets) (string, uint16, error) {
	return decode(core, addr, alphabets, true)
}

func decode(core *zcore.Core, addr uint32, alphabets *Alphabets, allowAbbrev bool) (string, uint16, error) {
	zchrs, bytesRead, err := zcharsFromWords(core, addr)
	if err != nil {
		return "", 0, err
	}

	version := core.Version
	var out []rune
	baseAlphabet := a0
	pendingShift := alphabet(-1)

	for i := 0; i < len(zchrs); i++ {
		zchr := zchrs[i]

		currentAlphabet := baseAlphabet
		if pendingShift >= 0 {
			currentAlphabet = pendingShift
			pendingShift = -1
		}

		switch zchr {
		case 0:
			out = append(out, ' ')
			continue
		case 1:
			if version == 1 {
				out = append(out, '\n')
				continue
			}
			if !allowAbbrev {
				return "", 0, zerrs.TextDecodeError{Address: addr, Reason: "abbreviation string referenced another abbreviation"}
			}
			i++
			if i >= len(zchrs) {
				return "", 0, zerrs.TextDecodeError{Address: addr, Reason: "abbreviation index truncated"}
			}
			s, err := expandAbbreviation(core, alphabets, 1, zchrs[i])
			if err != nil {
				return "", 0, err
			}
			out = append(out, []rune(s)...)
			continue
		case 2, 3:
			if version >= 3 {
				if !allowAbbrev {
					return "", 0, zerrs.TextDecodeError{Address: addr, Reason: "abbreviation string referenced another abbreviation"}
				}
				i++
				if i >= len(zchrs) {
					return "", 0, zerrs.TextDecodeError{Address: addr, Reason: "abbreviation index truncated"}
				}
				s, err := expandAbbreviation(core, alphabets, zchr, zchrs[i])
				if err != nil {
					return "", 0, err
				}
				out = append(out, []rune(s)...)
				continue
			}
			pendingShift = (baseAlphabet + alphabet(zchr-1)) % 3
			continue
		case 4, 5:
			if version >= 3 {
				pendingShift = (baseAlphabet + alphabet(zchr-3)) % 3
			} else {
				baseAlphabet = (baseAlphabet + alphabet(zchr-3)) % 3
			}
			continue
		default:
			if currentAlphabet == a2 && zchr == 6 {
				if i+2 >= len(zchrs) {
					return "", 0, zerrs.TextDecodeError{Address: addr, Reason: "10-bit ZSCII escape truncated"}
				}
				code := zchrs[i+1]<<5 | zchrs[i+2]
				i += 2
				r, ok := ZsciiToUnicode(code, core)
				if !ok {
					r = rune(code)
				}
				out = append(out, r)
				continue
			}
			if int(zchr) < 6 || int(zchr)-6 >= 26 {
				return "", 0, zerrs.TextDecodeError{Address: addr, Reason: "z-char out of range"}
			}
			out = append(out, rune(alphabets.Table[currentAlphabet][zchr-6]))
		}
	}

	return string(out), bytesRead, nil
}

// expandAbbreviation resolves abbreviation table z (1-3) / index x into
// its decoded string. Abbreviation strings cannot themselves reference
// further abbreviations.
func expandAbbreviation(core *zcore.Core, alphabets *Alphabets, z uint8, x uint8) (string, error) {
	abbrIx := 32*(z-1) + x
	addr := uint32(core.AbbreviationTableBase) + 2*uint32(abbrIx)
	entry, err := core.ReadWord(addr)
	if err != nil {
		return "", err
	}
	str, _, err := decode(core, uint32(entry)*2, alphabets, false)
	return str, err
}

// Encode packs runes into Z-chars, padding to the dictionary entry's
// Z-char count for the version (6 in v1-3, giving 4 bytes; 9 in v4+,
// giving 6 bytes) with the shift filler character 5, and truncating
// longer input. It never emits abbreviations; this is only used to
// build dictionary lookup keys.
func Encode(text []rune, version uint8, alphabets *Alphabets) []uint8 {
	zcharCount := 9
	if version <= 3 {
		zcharCount = 6
	}

	var zchrs []uint8
	for _, r := range text {
		if len(zchrs) >= zcharCount {
			break
		}
		zchrs = append(zchrs, encodeRune(r, alphabets)...)
	}
	for len(zchrs) < zcharCount {
		zchrs = append(zchrs, 5)
	}
	zchrs = zchrs[:zcharCount]

	numWords := zcharCount / 3
	out := make([]uint8, numWords*2)
	for i := 0; i < numWords; i++ {
		word := uint16(zchrs[i*3])<<10 | uint16(zchrs[i*3+1])<<5 | uint16(zchrs[i*3+2])
		if i == numWords-1 {
			word |= 0x8000
		}
		binary.BigEndian.PutUint16(out[i*2:i*2+2], word)
	}
	return out
}

// encodeRune finds a Z-char sequence (with shift prefix, if needed) that
// reproduces r, falling back to the 10-bit ZSCII escape for anything not
// in the alphabet tables.
func encodeRune(r rune, alphabets *Alphabets) []uint8 {
	for set := 0; set < 3; set++ {
		for ix, c := range alphabets.Table[set] {
			if c != 0 && rune(c) == r {
				switch alphabet(set) {
				case a1:
					return []uint8{4, uint8(ix + 6)}
				case a2:
					return []uint8{5, uint8(ix + 6)}
				default:
					return []uint8{uint8(ix + 6)}
				}
			}
		}
	}
	zchr, ok := unicodeToZscii(r, nil)
	if !ok {
		zchr = '?'
	}
	return []uint8{5, 6, zchr >> 5, zchr & 0b11111}
}
