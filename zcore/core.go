// Package zcore owns the Z-machine's memory image: the raw story-file
// bytes, the header fields parsed from its first 64 bytes, and the
// dynamic/static/high partitioning that governs which addresses may be
// written.
package zcore

import (
	"encoding/binary"

	"github.com/brinkhall/goz/zerrs"
)

// Core is the memory image plus the header fields derived from it. Dynamic
// memory spans [0, StaticMemoryBase); static memory spans
// [StaticMemoryBase, HighMemoryBase); high memory spans [HighMemoryBase, N).
// Only dynamic memory may be written by WriteByte/WriteWord.
type Core struct {
	bytes []uint8

	Version                          uint8
	FlagByte1                        uint8
	StatusBarTimeBased               bool
	ReleaseNumber                    uint16
	HighMemoryBase                   uint16
	FirstInstruction                 uint16
	DictionaryBase                   uint16
	ObjectTableBase                  uint16
	GlobalVariableBase               uint16
	StaticMemoryBase                 uint16
	AbbreviationTableBase            uint16
	FileChecksum                     uint16
	InterpreterNumber                uint8
	InterpreterVersion               uint8
	ScreenHeightLines                uint8
	ScreenWidthChars                 uint8
	ScreenWidthUnits                 uint16
	ScreenHeightUnits                uint16
	FontHeight                       uint8
	FontWidth                        uint8
	RoutinesOffset                   uint16
	StringOffset                     uint16
	DefaultBackgroundColorNumber     uint8
	DefaultForegroundColorNumber     uint8
	TerminatingCharTableBase         uint16
	OutputStream3Width               uint16
	StandardRevisionNumber           uint16
	AlternativeCharSetBaseAddress    uint16
	ExtensionTableBaseAddress        uint16
	PlayerLoginName                  []uint8
	UnicodeExtensionTableBaseAddress uint16

	// ChecksumValid is false when the header declares a non-zero checksum
	// that does not match the computed sum. Per spec this is a warning,
	// never a hard load failure.
	ChecksumValid bool
}

// supportedVersions is the set of story-file versions this core accepts.
// v6-8 are accepted structurally (header parse and memory model apply
// unchanged); opcode coverage for v6 windowing is out of scope.
var supportedVersions = map[uint8]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true}

// LoadCore parses the 64-byte header and wraps the story bytes. It mutates
// a handful of interpreter-owned flag bytes in place (screen dimensions,
// interpreter identity, standard-compliance version) as real interpreters
// do, then returns the parsed Core.
func LoadCore(bytes []uint8) (Core, error) {
	if len(bytes) < 64 {
		return Core{}, zerrs.DecodeError{PC: 0, Reason: "story file shorter than 64-byte header"}
	}

	version := bytes[0x00]
	if !supportedVersions[version] {
		return Core{}, zerrs.UnsupportedVersionError{Version: version}
	}

	bytes[0x1e] = 0x6 // Interpreter number - IBM PC chosen as closest match
	bytes[0x1f] = 0x1 // Interpreter version - nobody cares

	// Set screen dimensions - games may use these for layout calculations.
	// Using typical terminal dimensions (80x25 characters, 1x1 units per char).
	bytes[0x20] = 25
	bytes[0x21] = 80
	bytes[0x22] = 0
	bytes[0x23] = 80
	bytes[0x24] = 0
	bytes[0x25] = 25
	bytes[0x26] = 1
	bytes[0x27] = 1

	// Claim support for v1.1 of the standard.
	bytes[0x32] = 0x1
	bytes[0x33] = 0x1

	if version <= 3 {
		bytes[1] |= 0b0010_0000 // split screen available
	} else {
		// Flags: colors (0x01), bold (0x04), italic (0x08), split screen (0x20).
		// NOT claiming: pictures (0x02), fixed-width default (0x10), timed input (0x80).
		bytes[1] |= 0b0010_1101
	}

	extensionTableBaseAddress := binary.BigEndian.Uint16(bytes[0x36:0x38])
	unicodeExtensionTableBaseAddress := uint16(0)
	if extensionTableBaseAddress != 0 && int(extensionTableBaseAddress)+8 <= len(bytes) {
		unicodeExtensionTableBaseAddress = binary.BigEndian.Uint16(bytes[extensionTableBaseAddress+6 : extensionTableBaseAddress+8])
	}

	core := Core{
		bytes:                            bytes,
		Version:                          version,
		FlagByte1:                        bytes[0x01],
		StatusBarTimeBased:               bytes[0x01]&0b0000_0010 == 0b0000_0010,
		ReleaseNumber:                    binary.BigEndian.Uint16(bytes[0x02:0x04]),
		HighMemoryBase:                   binary.BigEndian.Uint16(bytes[0x04:0x06]),
		FirstInstruction:                 binary.BigEndian.Uint16(bytes[0x06:0x08]),
		DictionaryBase:                   binary.BigEndian.Uint16(bytes[0x08:0x0a]),
		ObjectTableBase:                  binary.BigEndian.Uint16(bytes[0x0a:0x0c]),
		GlobalVariableBase:               binary.BigEndian.Uint16(bytes[0x0c:0x0e]),
		StaticMemoryBase:                 binary.BigEndian.Uint16(bytes[0x0e:0x10]),
		AbbreviationTableBase:            binary.BigEndian.Uint16(bytes[0x18:0x1a]),
		FileChecksum:                     binary.BigEndian.Uint16(bytes[0x1c:0x1e]),
		InterpreterNumber:                bytes[0x1e],
		InterpreterVersion:               bytes[0x1f],
		ScreenHeightLines:                bytes[0x20],
		ScreenWidthChars:                 bytes[0x21],
		ScreenWidthUnits:                 binary.BigEndian.Uint16(bytes[0x22:0x24]),
		ScreenHeightUnits:                binary.BigEndian.Uint16(bytes[0x24:0x26]),
		FontHeight:                       bytes[0x26],
		FontWidth:                        bytes[0x27],
		RoutinesOffset:                   binary.BigEndian.Uint16(bytes[0x28:0x2a]),
		StringOffset:                     binary.BigEndian.Uint16(bytes[0x2a:0x2c]),
		DefaultBackgroundColorNumber:     bytes[0x2c],
		DefaultForegroundColorNumber:     bytes[0x2d],
		TerminatingCharTableBase:         binary.BigEndian.Uint16(bytes[0x2e:0x30]),
		OutputStream3Width:               binary.BigEndian.Uint16(bytes[0x30:0x32]),
		StandardRevisionNumber:           binary.BigEndian.Uint16(bytes[0x32:0x34]),
		AlternativeCharSetBaseAddress:    binary.BigEndian.Uint16(bytes[0x34:0x36]),
		ExtensionTableBaseAddress:        extensionTableBaseAddress,
		PlayerLoginName:                  bytes[0x38:0x40],
		UnicodeExtensionTableBaseAddress: unicodeExtensionTableBaseAddress,
	}

	core.ChecksumValid = core.verifyChecksum()

	return core, nil
}

// verifyChecksum implements the standard checksum: sum of bytes from 0x40
// to the declared file length, modulo 0x10000. A zero file length or
// checksum field means the story declines to carry a checksum, trivially
// valid.
func (core *Core) verifyChecksum() bool {
	declaredLen := core.FileLength()
	if declaredLen == 0 || core.FileChecksum == 0 {
		return true
	}

	end := uint32(declaredLen)
	if end > uint32(len(core.bytes)) {
		end = uint32(len(core.bytes))
	}

	var sum uint16
	for ix := uint32(0x40); ix < end; ix++ {
		sum += uint16(core.bytes[ix])
	}

	return sum == core.FileChecksum
}

func (core *Core) FileLength() uint16 {
	var divisor uint16
	switch {
	case core.Version <= 3:
		divisor = 2
	case core.Version <= 5:
		divisor = 4
	default:
		divisor = 8
	}
	if len(core.bytes) < 0x1c {
		return 0
	}
	return binary.BigEndian.Uint16(core.bytes[0x1a:0x1c]) * divisor
}

func (core *Core) SetDefaultBackgroundColorNumber(color uint8) {
	core.bytes[0x2c] = color
	core.DefaultBackgroundColorNumber = color
}

func (core *Core) SetDefaultForegroundColorNumber(color uint8) {
	core.bytes[0x2d] = color
	core.DefaultForegroundColorNumber = color
}

// ReadByte returns the byte at address, which may be anywhere in [0, N).
func (core *Core) ReadByte(address uint32) (uint8, error) {
	if address >= uint32(len(core.bytes)) {
		return 0, zerrs.AddressOutOfBoundsError{Address: address, Length: uint32(len(core.bytes))}
	}
	return core.bytes[address], nil
}

// MustReadByte is ReadByte without the error return, for call sites that
// have already bounds-checked (e.g. header parsing) or that treat an
// out-of-range address as a programmer error.
func (core *Core) MustReadByte(address uint32) uint8 {
	v, err := core.ReadByte(address)
	if err != nil {
		panic(err)
	}
	return v
}

// ReadWord returns the big-endian 16-bit word at address, address+1.
func (core *Core) ReadWord(address uint32) (uint16, error) {
	if address+1 >= uint32(len(core.bytes)) {
		return 0, zerrs.AddressOutOfBoundsError{Address: address, Length: uint32(len(core.bytes))}
	}
	return binary.BigEndian.Uint16(core.bytes[address : address+2]), nil
}

func (core *Core) MustReadWord(address uint32) uint16 {
	v, err := core.ReadWord(address)
	if err != nil {
		panic(err)
	}
	return v
}

// WriteByte writes a single byte into dynamic memory.
func (core *Core) WriteByte(address uint32, value uint8) error {
	if address >= uint32(len(core.bytes)) {
		return zerrs.AddressOutOfBoundsError{Address: address, Length: uint32(len(core.bytes))}
	}
	if address >= uint32(core.StaticMemoryBase) {
		return zerrs.WriteToReadOnlyError{Address: address, StaticBase: core.StaticMemoryBase}
	}
	core.bytes[address] = value
	return nil
}

// WriteWord writes a big-endian 16-bit word into dynamic memory.
func (core *Core) WriteWord(address uint32, value uint16) error {
	if address+1 >= uint32(len(core.bytes)) {
		return zerrs.AddressOutOfBoundsError{Address: address, Length: uint32(len(core.bytes))}
	}
	if address >= uint32(core.StaticMemoryBase) {
		return zerrs.WriteToReadOnlyError{Address: address, StaticBase: core.StaticMemoryBase}
	}
	binary.BigEndian.PutUint16(core.bytes[address:address+2], value)
	return nil
}

// ReadSlice returns a read-only view of [start, end). Used by decoders that
// scan a run of bytes (Z-strings, property tables, dictionary entries).
func (core *Core) ReadSlice(start, end uint32) ([]uint8, error) {
	if end > uint32(len(core.bytes)) || start > end {
		return nil, zerrs.AddressOutOfBoundsError{Address: end, Length: uint32(len(core.bytes))}
	}
	return core.bytes[start:end], nil
}

// MemoryLength returns the total size of the story image.
func (core *Core) MemoryLength() uint32 {
	return uint32(len(core.bytes))
}
