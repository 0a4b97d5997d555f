// Package ztable implements the table opcodes: print_table, scan_table,
// and copy_table, all of which operate on raw byte ranges of dynamic
// memory rather than any higher-level structure.
package ztable

import (
	"strings"

	"github.com/brinkhall/goz/zcore"
)

// PrintTable renders the width x height byte grid at addr as text, one
// row per line, skipping skip bytes between rows (for tables whose rows
// are wider in memory than the printed column count).
func PrintTable(core *zcore.Core, addr uint32, width, height, skip uint16) (string, error) {
	s := strings.Builder{}

	if height == 0 {
		height = 1
	}

	for row := uint16(0); row < height; row++ {
		if row != 0 {
			s.WriteByte('\n')
		}
		rowStart := addr + uint32(row)*uint32(uint32(width)+uint32(skip))
		for col := uint16(0); col < width; col++ {
			b, err := core.ReadByte(rowStart + uint32(col))
			if err != nil {
				return "", err
			}
			s.WriteByte(b)
		}
	}

	return s.String(), nil
}

// ScanTable searches length fields of the given form (bit 7: word-sized
// when set, byte-sized when clear; bits 0-6: the field size in bytes)
// starting at addr for one equal to test, returning its address or 0 if
// not found.
func ScanTable(core *zcore.Core, test uint16, addr uint32, length uint16, form uint16) (uint32, error) {
	ptr := addr
	fieldSize := form & 0b0111_1111
	checkWord := form&0b1000_0000 != 0
	if fieldSize == 0 {
		return 0, nil
	}

	for i := uint16(0); i < length; i++ {
		if checkWord {
			v, err := core.ReadWord(ptr)
			if err != nil {
				return 0, err
			}
			if v == test {
				return ptr, nil
			}
		} else {
			v, err := core.ReadByte(ptr)
			if err != nil {
				return 0, err
			}
			if uint16(v) == test {
				return ptr, nil
			}
		}

		ptr += uint32(fieldSize)
	}

	return 0, nil
}

// CopyTable copies size bytes from first to second. size == 0 is
// invalid per the standard's "size must not be zero" note, but callers
// are expected to have filtered that; second == 0 zero-fills first
// instead of copying. A positive size forbids the regions from
// overlapping (copies via a temporary buffer so a game never observes a
// partial self-copy); a negative size explicitly permits overlap, doing
// a raw forward byte-by-byte copy.
func CopyTable(core *zcore.Core, first, second uint32, size int16) error {
	sizeAbs := uint32(size)
	if size < 0 {
		sizeAbs = uint32(-int32(size))
	}

	switch {
	case second == 0:
		for i := uint32(0); i < sizeAbs; i++ {
			if err := core.WriteByte(first+i, 0); err != nil {
				return err
			}
		}
		return nil

	case size >= 0:
		tmp := make([]uint8, sizeAbs)
		for i := uint32(0); i < sizeAbs; i++ {
			b, err := core.ReadByte(first + i)
			if err != nil {
				return err
			}
			tmp[i] = b
		}
		for i := uint32(0); i < sizeAbs; i++ {
			if err := core.WriteByte(second+i, tmp[i]); err != nil {
				return err
			}
		}
		return nil

	default:
		for i := uint32(0); i < sizeAbs; i++ {
			b, err := core.ReadByte(first + i)
			if err != nil {
				return err
			}
			if err := core.WriteByte(second+i, b); err != nil {
				return err
			}
		}
		return nil
	}
}
