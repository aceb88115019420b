package pagecache

import (
	"encoding/binary"
	"fmt"
)

// PageCursor is byte-addressed, bounds-checked access to one pinned page.
// Sequential accessors read or write at the current offset and advance it;
// positional accessors leave the offset untouched. All multi-byte values
// are little-endian.
type PageCursor interface {
	PageID() PageID
	SetOffset(offset int)
	Offset() int

	GetByte() byte
	PutByte(v byte)
	GetShort() uint16
	PutShort(v uint16)
	GetInt() uint32
	PutInt(v uint32)
	GetLong() uint64
	PutLong(v uint64)
	GetBytes(into []byte)
	PutBytes(src []byte)

	GetByteAt(offset int) byte
	PutByteAt(offset int, v byte)
	GetIntAt(offset int) uint32
	PutIntAt(offset int, v uint32)
}

// SliceCursor is a PageCursor over a raw byte slice. It backs scratch
// buffers during slot shifts and page images outside a cache (tooling,
// tests).
type SliceCursor struct {
	id     PageID
	buf    []byte
	offset int
}

// NewSliceCursor wraps buf in a cursor positioned at offset 0.
func NewSliceCursor(id PageID, buf []byte) *SliceCursor {
	return &SliceCursor{id: id, buf: buf}
}

func (c *SliceCursor) PageID() PageID       { return c.id }
func (c *SliceCursor) SetOffset(offset int) { c.offset = offset }
func (c *SliceCursor) Offset() int          { return c.offset }

func (c *SliceCursor) GetByte() byte {
	v := c.buf[c.offset]
	c.offset++
	return v
}

func (c *SliceCursor) PutByte(v byte) {
	c.buf[c.offset] = v
	c.offset++
}

func (c *SliceCursor) GetShort() uint16 {
	v := binary.LittleEndian.Uint16(c.buf[c.offset:])
	c.offset += 2
	return v
}

func (c *SliceCursor) PutShort(v uint16) {
	binary.LittleEndian.PutUint16(c.buf[c.offset:], v)
	c.offset += 2
}

func (c *SliceCursor) GetInt() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.offset:])
	c.offset += 4
	return v
}

func (c *SliceCursor) PutInt(v uint32) {
	binary.LittleEndian.PutUint32(c.buf[c.offset:], v)
	c.offset += 4
}

func (c *SliceCursor) GetLong() uint64 {
	v := binary.LittleEndian.Uint64(c.buf[c.offset:])
	c.offset += 8
	return v
}

func (c *SliceCursor) PutLong(v uint64) {
	binary.LittleEndian.PutUint64(c.buf[c.offset:], v)
	c.offset += 8
}

func (c *SliceCursor) GetBytes(into []byte) {
	copy(into, c.buf[c.offset:c.offset+len(into)])
	c.offset += len(into)
}

func (c *SliceCursor) PutBytes(src []byte) {
	copy(c.buf[c.offset:c.offset+len(src)], src)
	c.offset += len(src)
}

func (c *SliceCursor) GetByteAt(offset int) byte {
	return c.buf[offset]
}

func (c *SliceCursor) PutByteAt(offset int, v byte) {
	c.buf[offset] = v
}

func (c *SliceCursor) GetIntAt(offset int) uint32 {
	return binary.LittleEndian.Uint32(c.buf[offset:])
}

func (c *SliceCursor) PutIntAt(offset int, v uint32) {
	binary.LittleEndian.PutUint32(c.buf[offset:], v)
}

// Cursor is a PageCursor pinned to a page in a PageCache. GoTo re-points
// it at another page, unpinning the previous one.
type Cursor struct {
	SliceCursor
	cache *PageCache
	page  *Page
	wrote bool
}

func (c *Cursor) PutByte(v byte) {
	c.wrote = true
	c.SliceCursor.PutByte(v)
}

func (c *Cursor) PutShort(v uint16) {
	c.wrote = true
	c.SliceCursor.PutShort(v)
}

func (c *Cursor) PutInt(v uint32) {
	c.wrote = true
	c.SliceCursor.PutInt(v)
}

func (c *Cursor) PutLong(v uint64) {
	c.wrote = true
	c.SliceCursor.PutLong(v)
}

func (c *Cursor) PutBytes(src []byte) {
	c.wrote = true
	c.SliceCursor.PutBytes(src)
}

func (c *Cursor) PutByteAt(offset int, v byte) {
	c.wrote = true
	c.SliceCursor.PutByteAt(offset, v)
}

func (c *Cursor) PutIntAt(offset int, v uint32) {
	c.wrote = true
	c.SliceCursor.PutIntAt(offset, v)
}

// GoTo re-points the cursor at pageID, pinning it and releasing the pin on
// the current page. The offset is reset to 0.
func (c *Cursor) GoTo(pageID PageID) error {
	page, err := c.cache.FetchPage(pageID)
	if err != nil {
		return fmt.Errorf("failed to navigate cursor to page %d: %w", pageID, err)
	}
	if c.page != nil {
		if err := c.cache.UnpinPage(c.page.GetPageID(), c.wrote); err != nil {
			c.cache.UnpinPage(pageID, false)
			return err
		}
	}
	c.page = page
	c.id = pageID
	c.buf = page.GetData()
	c.offset = 0
	c.wrote = false
	return nil
}

// Close releases the pin held by the cursor.
func (c *Cursor) Close() error {
	if c.page == nil {
		return nil
	}
	err := c.cache.UnpinPage(c.page.GetPageID(), c.wrote)
	c.page = nil
	c.buf = nil
	return err
}
