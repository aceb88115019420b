package gbptree

import "github.com/yuyangxu/gbptree/core/pagecache"

// Layout is the codec between domain keys/values and their fixed-size slots
// on the page. The tree node layer is generic over it and assumes nothing
// about the representation beyond the fixed byte widths it reports.
type Layout[K any, V any] interface {
	// KeySize is the fixed encoded size of one key in bytes.
	KeySize() int
	// ValueSize is the fixed encoded size of one value in bytes.
	ValueSize() int

	WriteKey(c pagecache.PageCursor, key K)
	ReadKey(c pagecache.PageCursor, into *K)
	WriteValue(c pagecache.PageCursor, value V)
	ReadValue(c pagecache.PageCursor, into *V)

	// Compare orders keys: negative if a < b, zero if equal, positive if
	// a > b.
	Compare(a, b K) int
}

// Uint64Layout is the stock fixed-width codec: 8-byte keys and 8-byte
// values, ordered numerically.
type Uint64Layout struct{}

func (Uint64Layout) KeySize() int   { return 8 }
func (Uint64Layout) ValueSize() int { return 8 }

func (Uint64Layout) WriteKey(c pagecache.PageCursor, key uint64) {
	c.PutLong(key)
}

func (Uint64Layout) ReadKey(c pagecache.PageCursor, into *uint64) {
	*into = c.GetLong()
}

func (Uint64Layout) WriteValue(c pagecache.PageCursor, value uint64) {
	c.PutLong(value)
}

func (Uint64Layout) ReadValue(c pagecache.PageCursor, into *uint64) {
	*into = c.GetLong()
}

func (Uint64Layout) Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (Uint64Layout) String() string { return "Uint64Layout[8,8]" }
