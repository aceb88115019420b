package gbptree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yuyangxu/gbptree/core/pagecache"
)

// newSlotCursor returns a cursor over a single zeroed pointer-pair field.
func newSlotCursor(t *testing.T) *pagecache.SliceCursor {
	t.Helper()
	return pagecache.NewSliceCursor(1, make([]byte, GSPPSize))
}

// TestGSPRoundTrip verifies that a slot written with a generation and
// pointer reads back identically with a matching checksum, including values
// at the edges of the encodable ranges.
func TestGSPRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		generation uint64
		pointer    uint64
	}{
		{"small", MinGeneration, 1},
		{"no node", MinGeneration, NoNode},
		{"max generation", MaxGeneration, 12345},
		{"max pointer", 7, MaxPointer},
		{"both max", MaxGeneration, MaxPointer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newSlotCursor(t)
			writeGSP(c, tc.generation, tc.pointer)
			require.Equal(t, GSPSize, c.Offset(), "write must cover exactly one slot")

			c.SetOffset(0)
			gsp, ok := readGSP(c)
			require.True(t, ok, "checksum must match after a clean write")
			require.Equal(t, tc.generation, gsp.Generation)
			require.Equal(t, tc.pointer, gsp.Pointer)
			require.Equal(t, GSPSize, c.Offset())
		})
	}
}

// TestGSPChecksumDetectsTornWrite flips single bytes of an encoded slot and
// verifies the checksum catches each of them. The checksum is the only
// defense against a slot whose generation and pointer were not written
// together, so every byte of the slot must be covered.
func TestGSPChecksumDetectsTornWrite(t *testing.T) {
	base := make([]byte, GSPSize)
	c := pagecache.NewSliceCursor(1, base)
	writeGSP(c, 41, 0xBEEF)

	for i := 0; i < generationSize+pointerSize; i++ {
		buf := make([]byte, GSPSize)
		copy(buf, base)
		buf[i] ^= 0xFF

		torn := pagecache.NewSliceCursor(1, buf)
		_, ok := readGSP(torn)
		require.False(t, ok, "flipped byte %d must invalidate the checksum", i)
	}
}

// TestGSPChecksumIsPureFunction checks that the checksum depends on both
// inputs and nothing else.
func TestGSPChecksumIsPureFunction(t *testing.T) {
	require.Equal(t, checksumOf(3, 77), checksumOf(3, 77))
	require.NotEqual(t, checksumOf(3, 77), checksumOf(4, 77))
	require.NotEqual(t, checksumOf(3, 77), checksumOf(3, 78))
}

// TestWriteRejectsOutOfRangeInputs verifies the generation and pointer
// range asserts on the write path.
func TestWriteRejectsOutOfRangeInputs(t *testing.T) {
	c := newSlotCursor(t)

	_, err := WriteGSPP(c, 1, 0, 0)
	require.ErrorIs(t, err, ErrInvalidGeneration, "generation 0 is reserved for unwritten slots")

	c.SetOffset(0)
	_, err = WriteGSPP(c, 1, 1, MaxGeneration+1)
	require.ErrorIs(t, err, ErrInvalidGeneration)

	c.SetOffset(0)
	_, err = WriteGSPP(c, MaxPointer+1, 1, 2)
	require.ErrorIs(t, err, ErrInvalidPointer)
}
