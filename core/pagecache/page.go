package pagecache

import (
	"sync"
)

const (
	// InvalidPageID indicates an invalid or unallocated page.
	InvalidPageID PageID = 0
)

// PageID represents a unique identifier for a page.
type PageID uint64

// Page represents an in-memory page frame. The byte buffer is owned by the
// cache; callers borrow it for the duration of a pin and must not retain a
// reference past UnpinPage.
type Page struct {
	id       PageID
	data     []byte
	pinCount uint32
	isDirty  bool

	// latch protects the contents of this specific page: shared for
	// readers, exclusive for the single writer.
	latch sync.RWMutex
}

// NewPage creates a new Page instance with a zeroed buffer.
func NewPage(id PageID, size int) *Page {
	return &Page{
		id:   id,
		data: make([]byte, size),
	}
}

func (p *Page) GetData() []byte   { return p.data }
func (p *Page) GetPageID() PageID { return p.id }
func (p *Page) IsDirty() bool     { return p.isDirty }

// Pin increments the pin count.
func (p *Page) Pin() {
	p.pinCount++
}

// Unpin decrements the pin count.
func (p *Page) Unpin() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}

func (p *Page) GetPinCount() uint32 { return p.pinCount }
func (p *Page) SetDirty(dirty bool) { p.isDirty = dirty }

// RLock acquires a read (shared) latch on the page.
func (p *Page) RLock() { p.latch.RLock() }

// RUnlock releases a read (shared) latch on the page.
func (p *Page) RUnlock() { p.latch.RUnlock() }

// Lock acquires a write (exclusive) latch on the page.
func (p *Page) Lock() { p.latch.Lock() }

// Unlock releases a write (exclusive) latch on the page.
func (p *Page) Unlock() { p.latch.Unlock() }
