package dictionary

import (
	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zstring"
)

// splitWords splits the raw text bytes into words, treating space and
// every byte in separators as a word break; separator bytes that aren't
// spaces become their own single-character word, matching the standard's
// "input codes" behavior (so e.g. "drop,sword" tokenizes to "drop", ",",
// "sword").
func splitWords(text []uint8, separators []uint8) [][2]uint32 {
	isSeparator := func(b uint8) bool {
		if b == ' ' {
			return true
		}
		for _, s := range separators {
			if b == s {
				return true
			}
		}
		return false
	}

	var spans [][2]uint32
	wordStart := uint32(0)
	haveWord := false

	flush := func(end uint32) {
		if haveWord {
			spans = append(spans, [2]uint32{wordStart, end})
			haveWord = false
		}
	}

	for ix := uint32(0); ix < uint32(len(text)); ix++ {
		b := text[ix]
		if isSeparator(b) {
			flush(ix)
			if b != ' ' {
				spans = append(spans, [2]uint32{ix, ix + 1})
			}
			wordStart = ix + 1
			continue
		}
		if !haveWord {
			wordStart = ix
			haveWord = true
		}
	}
	flush(uint32(len(text)))

	return spans
}

// Tokenize implements sread/tokenise's lexical-analysis phase: it reads
// the text in the buffer at textAddr, splits it into words on spaces and
// the dictionary's separator set, looks each word up in dict, and writes
// the resulting parse data to parseAddr. When skipUnrecognized is true
// (the tokenise opcode's flag operand), the parse entries of words absent
// from the dictionary are not written, keeping whatever the game already
// placed there; such words still count toward the word-count byte.
func Tokenize(core *zcore.Core, alphabets *zstring.Alphabets, dict *Dictionary, textAddr, parseAddr uint32, skipUnrecognized bool) error {
	textStart := textAddr + 1
	if core.Version >= 5 {
		textStart++ // v5+ text buffers carry an extra byte: the typed character count
	}

	var length uint32
	if core.Version >= 5 {
		n, err := core.ReadByte(textAddr + 1)
		if err != nil {
			return err
		}
		length = uint32(n)
	} else {
		// v1-4 text buffers are NUL-terminated.
		for {
			b, err := core.ReadByte(textStart + length)
			if err != nil {
				return err
			}
			if b == 0 {
				break
			}
			length++
		}
	}

	text, err := core.ReadSlice(textStart, textStart+length)
	if err != nil {
		return err
	}

	spans := splitWords(text, dict.Header.InputCodes)

	maxWords, err := core.ReadByte(parseAddr)
	if err != nil {
		return err
	}
	if len(spans) > int(maxWords) {
		spans = spans[:maxWords]
	}

	if err := core.WriteByte(parseAddr+1, uint8(len(spans))); err != nil {
		return err
	}

	entryPtr := parseAddr + 2
	for _, span := range spans {
		wordBytes := text[span[0]:span[1]]
		runes := []rune(string(wordBytes))
		encoded := zstring.Encode(runes, core.Version, alphabets)
		dictAddr := dict.Lookup(encoded)

		if dictAddr == 0 && skipUnrecognized {
			entryPtr += 4
			continue
		}

		if err := core.WriteWord(entryPtr, dictAddr); err != nil {
			return err
		}
		if err := core.WriteByte(entryPtr+2, uint8(len(wordBytes))); err != nil {
			return err
		}
		if err := core.WriteByte(entryPtr+3, uint8(span[0])+uint8(textStart-textAddr)); err != nil {
			return err
		}
		entryPtr += 4
	}

	return nil
}
