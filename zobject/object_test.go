package zobject_test

import (
	"testing"

	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zobject"
	"github.com/brinkhall/goz/zstring"
	"github.com/stretchr/testify/require"
)

// buildCore wraps a patched memory image in a zcore.Core for testing.
func buildCore(t *testing.T, version uint8, objectTableBase uint16, patch map[uint32][]uint8) *zcore.Core {
	t.Helper()
	data := make([]uint8, 4096)
	data[0] = version
	data[0x0a] = uint8(objectTableBase >> 8)
	data[0x0b] = uint8(objectTableBase)
	data[0x0e] = 0x10 // static memory base past the end of the buffer: everything is writable
	data[0x0f] = 0x00
	for addr, b := range patch {
		copy(data[addr:], b)
	}
	core, err := zcore.LoadCore(data)
	require.NoError(t, err)
	return &core
}

func TestGetZerothObjectFails(t *testing.T) {
	core := buildCore(t, 3, 0x200, nil)
	_, err := zobject.Get(core, zstring.DefaultAlphabets(3), 0)
	require.Error(t, err)
}

func TestGetObjectV3(t *testing.T) {
	const objectTableBase = 0x200
	alphabets := zstring.DefaultAlphabets(3)
	name := zstring.Encode([]rune("Cave"), 3, alphabets)

	const nameAddr = 0x300
	patch := map[uint32][]uint8{
		nameAddr: append([]uint8{uint8(len(name) / 2)}, name...),
		// properties, descending id order, terminated by a zero size byte
		nameAddr + 1 + uint32(len(name)):     {0b0010_1011, 0x88, 0xe5}, // id 11, length 2
		nameAddr + 1 + uint32(len(name)) + 3: {0b0000_0110, 0x85},       // id 6, length 1
		nameAddr + 1 + uint32(len(name)) + 5: {0x00},
	}

	entryBase := uint32(objectTableBase) + 31*2
	patch[entryBase+4] = []uint8{117}                               // parent
	patch[entryBase+5] = []uint8{101}                                // sibling
	patch[entryBase+6] = []uint8{252}                                // child
	patch[entryBase+7] = []uint8{uint8(nameAddr >> 8), uint8(nameAddr)} // property pointer

	core := buildCore(t, 3, objectTableBase, patch)

	obj, err := zobject.Get(core, alphabets, 1)
	require.NoError(t, err)
	require.Equal(t, "Cave", obj.Name)
	require.EqualValues(t, 117, obj.Parent)
	require.EqualValues(t, 101, obj.Sibling)
	require.EqualValues(t, 252, obj.Child)
	require.EqualValues(t, nameAddr, obj.PropertyPointer)
}

func TestPropertyRetrieval(t *testing.T) {
	const objectTableBase = 0x200
	alphabets := zstring.DefaultAlphabets(3)
	name := zstring.Encode([]rune("Cave"), 3, alphabets)

	const nameAddr = 0x300
	patch := map[uint32][]uint8{
		nameAddr:                              append([]uint8{uint8(len(name) / 2)}, name...),
		nameAddr + 1 + uint32(len(name)):     {0b0010_1011, 0x88, 0xe5},
		nameAddr + 1 + uint32(len(name)) + 3: {0b0000_0110, 0x85},
		nameAddr + 1 + uint32(len(name)) + 5: {0x00},
		objectTableBase:                      {0x00, 0x05}, // defaults table entry for property 1
	}
	entryBase := uint32(objectTableBase) + 31*2
	patch[entryBase+7] = []uint8{uint8(nameAddr >> 8), uint8(nameAddr)}

	core := buildCore(t, 3, objectTableBase, patch)
	obj, err := zobject.Get(core, alphabets, 1)
	require.NoError(t, err)

	prop6, err := obj.GetProperty(core, 6)
	require.NoError(t, err)
	require.EqualValues(t, 1, prop6.Length)
	require.EqualValues(t, 0x85, prop6.Data[0])

	prop11, err := obj.GetProperty(core, 11)
	require.NoError(t, err)
	require.EqualValues(t, 2, prop11.Length)
	require.EqualValues(t, []uint8{0x88, 0xe5}, prop11.Data)

	prop1, err := obj.GetProperty(core, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, prop1.DataAddress)
	require.EqualValues(t, []uint8{0x00, 0x05}, prop1.Data)

	require.NoError(t, obj.SetProperty(core, 6, 0x42))
	prop6Again, err := obj.GetProperty(core, 6)
	require.NoError(t, err)
	require.EqualValues(t, 0x42, prop6Again.Data[0])
}

func TestAttributesRoundTrip(t *testing.T) {
	const objectTableBase = 0x200
	entryBase := uint32(objectTableBase) + 31*2
	patch := map[uint32][]uint8{
		entryBase + 7: {0x03, 0x00}, // property pointer -> address 0x300, empty table
		0x300:         {0x00},       // zero-length name, no properties
	}
	core := buildCore(t, 3, objectTableBase, patch)
	alphabets := zstring.DefaultAlphabets(3)

	obj, err := zobject.Get(core, alphabets, 1)
	require.NoError(t, err)

	for _, attr := range []uint16{2, 3, 19} {
		ok, err := obj.TestAttribute(3, attr)
		require.NoError(t, err)
		require.False(t, ok)
	}

	require.NoError(t, obj.SetAttribute(core, 19))
	ok, err := obj.TestAttribute(3, 19)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, obj.ClearAttribute(core, 19))
	ok, err = obj.TestAttribute(3, 19)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = obj.TestAttribute(3, 32)
	require.Error(t, err)
}

func TestMoveToRewiresTree(t *testing.T) {
	const objectTableBase = 0x200
	entryBase := func(id uint16) uint32 { return uint32(objectTableBase) + 31*2 + uint32(id-1)*9 }

	patch := map[uint32][]uint8{
		entryBase(1) + 7: {0x03, 0x00},
		entryBase(2) + 7: {0x03, 0x01},
		entryBase(3) + 7: {0x03, 0x02},
		0x300:            {0x00},
		0x301:            {0x00},
		0x302:            {0x00},
	}
	// Object 1 is the root with object 2 as its only child.
	patch[entryBase(1)+6] = []uint8{2}
	patch[entryBase(2)+4] = []uint8{1}

	core := buildCore(t, 3, objectTableBase, patch)
	alphabets := zstring.DefaultAlphabets(3)

	obj3, err := zobject.Get(core, alphabets, 3)
	require.NoError(t, err)

	require.NoError(t, zobject.MoveTo(core, alphabets, &obj3, 1))

	parent, err := zobject.Get(core, alphabets, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, parent.Child) // newly inserted child comes first

	obj3Again, err := zobject.Get(core, alphabets, 3)
	require.NoError(t, err)
	require.EqualValues(t, 1, obj3Again.Parent)
	require.EqualValues(t, 2, obj3Again.Sibling) // pushed in front of the old first child
}
