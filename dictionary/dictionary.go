// Package dictionary implements the Z-machine's word dictionary and the
// text buffer tokenizer (lexical analysis phase of sread/tokenise).
package dictionary

import (
	"bytes"

	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zstring"
)

// Header is the dictionary's fixed preamble: the input-code (word
// separator) table, each entry's byte length, and the entry count.
type Header struct {
	InputCodes []uint8
	EntryLen   uint8
	// Count is negative when the story's entries are not sorted
	// alphabetically, in which case Lookup falls back to a linear scan.
	Count int16
}

// Entry is a single decoded dictionary word.
type Entry struct {
	Address     uint16
	EncodedWord []uint8
	DecodedWord string
	Data        []uint8
}

// Dictionary is the parsed word list plus separator table.
type Dictionary struct {
	Header  Header
	Entries []Entry
}

// Load parses the dictionary at core.DictionaryBase.
func Load(core *zcore.Core, alphabets *zstring.Alphabets) (*Dictionary, error) {
	base := uint32(core.DictionaryBase)

	numInputCodes, err := core.ReadByte(base)
	if err != nil {
		return nil, err
	}
	inputCodes, err := core.ReadSlice(base+1, base+1+uint32(numInputCodes))
	if err != nil {
		return nil, err
	}
	entryLen, err := core.ReadByte(base + 1 + uint32(numInputCodes))
	if err != nil {
		return nil, err
	}
	count, err := core.ReadWord(base + 2 + uint32(numInputCodes))
	if err != nil {
		return nil, err
	}

	header := Header{
		InputCodes: inputCodes,
		EntryLen:   entryLen,
		Count:      int16(count),
	}

	encodedWordLen := uint32(4)
	if core.Version > 3 {
		encodedWordLen = 6
	}

	numEntries := int(header.Count)
	if numEntries < 0 {
		numEntries = -numEntries
	}

	entryPtr := base + 4 + uint32(numInputCodes)
	entries := make([]Entry, numEntries)
	for ix := 0; ix < numEntries; ix++ {
		encodedWord, err := core.ReadSlice(entryPtr, entryPtr+encodedWordLen)
		if err != nil {
			return nil, err
		}
		decodedWord, _, err := zstring.Decode(core, entryPtr, alphabets)
		if err != nil {
			return nil, err
		}
		data, err := core.ReadSlice(entryPtr+encodedWordLen, entryPtr+uint32(header.EntryLen))
		if err != nil {
			return nil, err
		}

		entries[ix] = Entry{
			Address:     uint16(entryPtr),
			EncodedWord: encodedWord,
			DecodedWord: decodedWord,
			Data:        data,
		}

		entryPtr += uint32(header.EntryLen)
	}

	return &Dictionary{Header: header, Entries: entries}, nil
}

// Lookup finds the dictionary address of the entry whose encoded word
// matches zstr, or 0 if the word isn't in the dictionary. Sorted
// dictionaries (Header.Count >= 0) use binary search; unsorted ones fall
// back to a linear scan, per the standard's allowance for either.
func (d *Dictionary) Lookup(zstr []uint8) uint16 {
	if d.Header.Count < 0 {
		for _, entry := range d.Entries {
			if bytes.Equal(entry.EncodedWord, zstr) {
				return entry.Address
			}
		}
		return 0
	}

	lo, hi := 0, len(d.Entries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		cmp := bytes.Compare(d.Entries[mid].EncodedWord, zstr)
		switch {
		case cmp == 0:
			return d.Entries[mid].Address
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return 0
}
