package codebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArenaRoundsUpToPageSize(t *testing.T) {
	a, err := NewArena(1)
	require.NoError(t, err)
	defer a.Close()
	assert.Len(t, a.mem, pageSize)
}

func TestWriteThenSealThenReopen(t *testing.T) {
	a, err := NewArena(pageSize)
	require.NoError(t, err)
	defer a.Close()

	off := a.Write([]byte{0xC3}) // ret
	assert.Equal(t, 0, off)

	require.NoError(t, a.Seal())
	assert.True(t, a.sealed)
	assert.NotZero(t, a.Base())

	assert.Panics(t, func() { a.Write([]byte{0x90}) }, "writing to a sealed arena is a programmer error")

	require.NoError(t, a.Reopen())
	assert.False(t, a.sealed)
	off2 := a.Write([]byte{0x90})
	assert.Equal(t, 1, off2)
}

func TestPatchInt32OverwritesLittleEndian(t *testing.T) {
	a, err := NewArena(pageSize)
	require.NoError(t, err)
	defer a.Close()

	a.Write([]byte{0, 0, 0, 0})
	a.PatchInt32(0, -1)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, []byte(a.mem[:4]))
}

func TestWriteBeyondCapacityPanics(t *testing.T) {
	a, err := NewArena(pageSize)
	require.NoError(t, err)
	defer a.Close()

	assert.Panics(t, func() { a.Write(make([]byte, pageSize+1)) })
}
