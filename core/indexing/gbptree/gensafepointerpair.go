package gbptree

import (
	"fmt"

	"github.com/yuyangxu/gbptree/core/pagecache"
)

// A generation safe pointer pair (GSPP) is one logical pointer field made of
// two GSP slots, A and B, laid out back to back:
//
//	[SLOT A 12B][SLOT B 12B]
//
// Writes for a new unstable generation go to the slot not holding the newest
// committed value, so the previous generation's slot survives untouched as a
// fallback. A crash mid-write corrupts at most one slot, and the read
// tie-break recovers the last good value without any pointer log.
const (
	// GSPPSize is the encoded size in bytes of one pointer pair field.
	GSPPSize = 2 * GSPSize

	// NoLogicalPos marks a read of a fixed header field rather than a
	// child slot addressed by array index.
	NoLogicalPos = -1
)

// Slot identifies one half of a pointer pair.
type Slot uint8

const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) String() string {
	if s == SlotA {
		return "A"
	}
	return "B"
}

// ReadResult is the outcome of a successful GSPP read: the resolved pointer,
// the slot that answered, and where the field sits on the page so the
// physical generation stamp can be located again for auditing.
type ReadResult struct {
	// Pointer is the resolved page reference.
	Pointer uint64
	// Slot is the half of the pair that was authoritative.
	Slot Slot
	// FieldOffset is the page offset of the whole pair field.
	FieldOffset int
	// LogicalPos is the child array index the field was addressed by, or
	// NoLogicalPos for fixed header fields.
	LogicalPos int

	resolved bool
}

// IsNode reports whether the resolved pointer references a node at all.
func (r ReadResult) IsNode() bool {
	return r.Pointer != NoNode
}

// WriteResult is the outcome of a successful GSPP write.
type WriteResult struct {
	// Slot is the half of the pair that was written.
	Slot Slot
}

// ReadGSPP reads the pointer pair at the cursor's current offset and
// resolves the authoritative slot for the caller's generation snapshot.
// logicalPos tags results read from child slots; header fields pass
// NoLogicalPos. The cursor is left after the pair.
func ReadGSPP(c pagecache.PageCursor, stableGeneration, unstableGeneration uint64, logicalPos int) (ReadResult, error) {
	fieldOffset := c.Offset()
	slotA, okA := readGSP(c)
	slotB, okB := readGSP(c)

	pointer, slot, err := resolve(slotA, okA, slotB, okB, stableGeneration, unstableGeneration)
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{
		Pointer:     pointer,
		Slot:        slot,
		FieldOffset: fieldOffset,
		LogicalPos:  logicalPos,
		resolved:    true,
	}, nil
}

// resolve picks the authoritative slot of a pair, given the caller's
// (stable, unstable) generation snapshot. Pure and allocation-free on the
// success path.
//
// Tie-break, in priority order:
//  1. If only one slot is live (valid checksum, written generation), it
//     answers, unless its generation lies beyond unstableGeneration: such a
//     value was written by a generation the caller has not entered yet and
//     there is no fallback to prefer, so the field is unreadable.
//  2. Both live with equal generation: they must agree on the pointer;
//     disagreement is corruption. Slot A answers.
//  3. Both live with differing generations: the newer slot answers, unless
//     its generation exceeds unstableGeneration, in which case the older,
//     committed slot answers instead.
//  4. Neither slot live: the field is unreadable.
func resolve(slotA GenSafePointer, okA bool, slotB GenSafePointer, okB bool,
	stableGeneration, unstableGeneration uint64) (uint64, Slot, error) {

	liveA := okA && slotA.Generation >= MinGeneration
	liveB := okB && slotB.Generation >= MinGeneration

	switch {
	case liveA && liveB:
		if slotA.Generation == slotB.Generation {
			if slotA.Pointer != slotB.Pointer {
				return 0, SlotA, fmt.Errorf(
					"%w: slots disagree at equal generation %d, slot A points at %d, slot B at %d",
					ErrPointerCorruption, slotA.Generation, slotA.Pointer, slotB.Pointer)
			}
			return slotA.Pointer, SlotA, nil
		}
		newer, newerSlot := slotA, SlotA
		older, olderSlot := slotB, SlotB
		if slotB.Generation > slotA.Generation {
			newer, newerSlot = slotB, SlotB
			older, olderSlot = slotA, SlotA
		}
		if newer.Generation <= unstableGeneration {
			return newer.Pointer, newerSlot, nil
		}
		// The newer slot was written by a generation beyond the caller's
		// snapshot; fall back to the committed one.
		if older.Generation <= unstableGeneration {
			return older.Pointer, olderSlot, nil
		}
		return 0, SlotA, fmt.Errorf(
			"%w: both slot generations (%d, %d) beyond unstable generation %d",
			ErrPointerCorruption, slotA.Generation, slotB.Generation, unstableGeneration)

	case liveA:
		if slotA.Generation > unstableGeneration {
			return 0, SlotA, fmt.Errorf(
				"%w: only live slot A has generation %d beyond unstable generation %d",
				ErrPointerCorruption, slotA.Generation, unstableGeneration)
		}
		return slotA.Pointer, SlotA, nil

	case liveB:
		if slotB.Generation > unstableGeneration {
			return 0, SlotB, fmt.Errorf(
				"%w: only live slot B has generation %d beyond unstable generation %d",
				ErrPointerCorruption, slotB.Generation, unstableGeneration)
		}
		return slotB.Pointer, SlotB, nil

	default:
		return 0, SlotA, fmt.Errorf(
			"%w: neither slot passes checksum (stable %d, unstable %d)",
			ErrPointerCorruption, stableGeneration, unstableGeneration)
	}
}

// WriteGSPP writes pointer into the pair at the cursor's current offset,
// stamped with unstableGeneration. The target slot is chosen so the newest
// committed slot stays untouched as fallback; a slot already stamped with
// unstableGeneration is rewritten in place, which is the one case where a
// single generation is written twice in one unstable period. The write is
// verified by read-back before returning.
func WriteGSPP(c pagecache.PageCursor, pointer, stableGeneration, unstableGeneration uint64) (WriteResult, error) {
	if err := assertGeneration(unstableGeneration); err != nil {
		return WriteResult{}, err
	}
	if err := assertPointer(pointer); err != nil {
		return WriteResult{}, err
	}

	fieldOffset := c.Offset()
	slotA, okA := readGSP(c)
	slotB, okB := readGSP(c)
	slot := writeSlot(slotA, okA, slotB, okB, stableGeneration, unstableGeneration)

	slotOffset := fieldOffset
	if slot == SlotB {
		slotOffset += GSPSize
	}
	c.SetOffset(slotOffset)
	writeGSP(c, unstableGeneration, pointer)

	c.SetOffset(slotOffset)
	written, ok := readGSP(c)
	if !ok || written.Generation != unstableGeneration || written.Pointer != pointer {
		return WriteResult{}, fmt.Errorf(
			"%w: slot %s read back generation %d pointer %d, wrote generation %d pointer %d",
			ErrWriteVerification, slot, written.Generation, written.Pointer,
			unstableGeneration, pointer)
	}
	return WriteResult{Slot: slot}, nil
}

// writeSlot picks the target slot for a write at unstableGeneration.
func writeSlot(slotA GenSafePointer, okA bool, slotB GenSafePointer, okB bool,
	stableGeneration, unstableGeneration uint64) Slot {

	// A slot already written in this unstable period is rewritten in place.
	// No reader holding this snapshot resolves the other slot mid-write, so
	// the committed fallback must stay untouched.
	if okA && slotA.Generation == unstableGeneration {
		return SlotA
	}
	if okB && slotB.Generation == unstableGeneration {
		return SlotB
	}

	switch {
	case okA && okB:
		switch {
		case slotA.Generation <= stableGeneration && slotB.Generation <= stableGeneration:
			// Both committed: sacrifice the older value. Equal
			// generations prefer slot A.
			if slotA.Generation <= slotB.Generation {
				return SlotA
			}
			return SlotB
		case slotA.Generation <= stableGeneration:
			// A is the committed fallback, overwrite B.
			return SlotB
		case slotB.Generation <= stableGeneration:
			return SlotA
		default:
			// Both carry generations beyond stable: prefer slot A.
			return SlotA
		}
	case okA:
		// B is torn or empty, keep the only intact slot.
		return SlotB
	case okB:
		return SlotA
	default:
		return SlotA
	}
}
