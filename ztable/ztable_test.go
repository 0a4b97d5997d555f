package ztable_test

import (
	"testing"

	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/ztable"
	"github.com/stretchr/testify/require"
)

func buildCore(t *testing.T) *zcore.Core {
	t.Helper()
	data := make([]uint8, 4096)
	data[0] = 3
	data[0x0e] = 0x10 // static base past end of buffer: everything writable
	core, err := zcore.LoadCore(data)
	require.NoError(t, err)
	return &core
}

func TestPrintTable(t *testing.T) {
	core := buildCore(t)
	require.NoError(t, core.WriteByte(0x100, 'a'))
	require.NoError(t, core.WriteByte(0x101, 'b'))
	require.NoError(t, core.WriteByte(0x102, 'c'))
	require.NoError(t, core.WriteByte(0x103, 'd'))

	out, err := ztable.PrintTable(core, 0x100, 2, 2, 0)
	require.NoError(t, err)
	require.Equal(t, "ab\ncd", out)
}

func TestScanTableByte(t *testing.T) {
	core := buildCore(t)
	require.NoError(t, core.WriteByte(0x100, 1))
	require.NoError(t, core.WriteByte(0x101, 2))
	require.NoError(t, core.WriteByte(0x102, 3))

	addr, err := ztable.ScanTable(core, 3, 0x100, 3, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0x102, addr)

	addr, err = ztable.ScanTable(core, 9, 0x100, 3, 1)
	require.NoError(t, err)
	require.Zero(t, addr)
}

func TestScanTableWord(t *testing.T) {
	core := buildCore(t)
	require.NoError(t, core.WriteWord(0x100, 0x1111))
	require.NoError(t, core.WriteWord(0x102, 0x2222))

	addr, err := ztable.ScanTable(core, 0x2222, 0x100, 2, 0b1000_0010)
	require.NoError(t, err)
	require.EqualValues(t, 0x102, addr)
}

func TestCopyTableZeroesWhenSecondIsZero(t *testing.T) {
	core := buildCore(t)
	require.NoError(t, core.WriteByte(0x100, 0xff))
	require.NoError(t, core.WriteByte(0x101, 0xff))

	require.NoError(t, ztable.CopyTable(core, 0x100, 0, 2))

	b0, err := core.ReadByte(0x100)
	require.NoError(t, err)
	b1, err := core.ReadByte(0x101)
	require.NoError(t, err)
	require.Zero(t, b0)
	require.Zero(t, b1)
}

func TestCopyTablePositiveSize(t *testing.T) {
	core := buildCore(t)
	require.NoError(t, core.WriteByte(0x100, 'x'))
	require.NoError(t, core.WriteByte(0x101, 'y'))

	require.NoError(t, ztable.CopyTable(core, 0x100, 0x200, 2))

	b0, err := core.ReadByte(0x200)
	require.NoError(t, err)
	b1, err := core.ReadByte(0x201)
	require.NoError(t, err)
	require.EqualValues(t, 'x', b0)
	require.EqualValues(t, 'y', b1)
}
