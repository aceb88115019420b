package gbptree

import (
	"fmt"

	"github.com/yuyangxu/gbptree/core/pagecache"
)

// A generation safe pointer (GSP) is one fixed-width slot holding a page
// reference stamped with the generation that wrote it, plus a checksum over
// both. The checksum only detects a torn or partial write of the slot, not
// pointer correctness.
//
//	[GENERATION 4B][POINTER 6B][CHECKSUM 2B]
const (
	generationSize = 4
	pointerSize    = 6
	checksumSize   = 2

	// GSPSize is the encoded size in bytes of one generation safe pointer.
	GSPSize = generationSize + pointerSize + checksumSize

	// MinGeneration is the lowest writable generation. Generation 0 marks a
	// slot that has never been written.
	MinGeneration uint64 = 1
	// MaxGeneration is the highest generation the 4-byte stamp can hold.
	MaxGeneration uint64 = 0xFFFFFFFF
	// MaxPointer is the highest page reference the 6-byte field can hold.
	MaxPointer uint64 = (1 << 48) - 1
)

// GenSafePointer is a decoded GSP slot.
type GenSafePointer struct {
	Generation uint64
	Pointer    uint64
}

func assertGeneration(generation uint64) error {
	if generation < MinGeneration || generation > MaxGeneration {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidGeneration,
			generation, MinGeneration, MaxGeneration)
	}
	return nil
}

func assertPointer(pointer uint64) error {
	if pointer > MaxPointer {
		return fmt.Errorf("%w: %d larger than %d", ErrInvalidPointer, pointer, MaxPointer)
	}
	return nil
}

// writeGSP encodes one slot at the cursor's current offset, leaving the
// cursor right after it.
func writeGSP(c pagecache.PageCursor, generation, pointer uint64) {
	c.PutInt(uint32(generation))
	put6BLong(c, pointer)
	c.PutShort(checksumOf(generation, pointer))
}

// readGSP decodes one slot at the cursor's current offset, leaving the
// cursor right after it. ok reports whether the stored checksum matches
// the stored generation and pointer.
func readGSP(c pagecache.PageCursor) (gsp GenSafePointer, ok bool) {
	gsp.Generation = uint64(c.GetInt())
	gsp.Pointer = get6BLong(c)
	checksum := c.GetShort()
	return gsp, checksum == checksumOf(gsp.Generation, gsp.Pointer)
}

// readGSPGeneration reads only the generation stamp of the slot at the
// cursor's current offset.
func readGSPGeneration(c pagecache.PageCursor) uint64 {
	return uint64(c.GetInt())
}

func put6BLong(c pagecache.PageCursor, v uint64) {
	c.PutInt(uint32(v))
	c.PutShort(uint16(v >> 32))
}

func get6BLong(c pagecache.PageCursor) uint64 {
	low := uint64(c.GetInt())
	high := uint64(c.GetShort())
	return high<<32 | low
}

// checksumOf folds the generation and pointer into 16 bits by xor. Cheap
// enough to compute on every slot access and sufficient to catch a slot
// whose generation and pointer were not written together.
func checksumOf(generation, pointer uint64) uint16 {
	var checksum uint16
	checksum ^= uint16(generation)
	checksum ^= uint16(generation >> 16)
	checksum ^= uint16(pointer)
	checksum ^= uint16(pointer >> 16)
	checksum ^= uint16(pointer >> 32)
	return checksum
}
