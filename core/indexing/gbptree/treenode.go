package gbptree

import (
	"fmt"

	"github.com/yuyangxu/gbptree/core/pagecache"
)

// TreeNode manipulates a single tree node page: header fields, keys, values
// and children. Leaf and internal nodes share the fixed header; the arrays
// behind it differ.
//
// Internal node:
//
//	[                       HEADER 82B                         ]|[   KEYS    ]|[    CHILDREN     ]
//	[NODETYPE][TYPE][GEN][KEYCOUNT][RIGHTSIBLING][LEFTSIBLING][SUCCESSOR]|[[KEY]...##]|[[CHILD][CHILD]...##]
//	 0         1     2    6         10            34           58
//
// Leaf node:
//
//	[                       HEADER 82B                         ]|[   KEYS    ]|[     VALUES      ]
//	 0         1     2    6         10            34           58
//
// Key i sits at HeaderLength + i*keySize. Value and child arrays start
// after the node-kind-specific maximum key region, so their offsets depend
// on which kind of node the page holds.
//
// All operations work on a pinned page through a PageCursor and complete
// or fail immediately; concurrency control is the caller's business.
type TreeNode[K any, V any] struct {
	pageSize            int
	internalMaxKeyCount int
	leafMaxKeyCount     int
	layout              Layout[K, V]
	keySize             int
	valueSize           int
}

// Header layout. Byte 0 is shared with every other page kind in the file so
// a generic page reader can discriminate before interpreting the rest.
const (
	bytePosNodeType     = 0
	bytePosType         = 1
	bytePosGeneration   = 2
	bytePosKeyCount     = 6
	bytePosRightSibling = 10
	bytePosLeftSibling  = bytePosRightSibling + SizePageReference
	bytePosSuccessor    = bytePosLeftSibling + SizePageReference

	// HeaderLength is where the key array starts.
	HeaderLength = bytePosSuccessor + SizePageReference

	// SizePageReference is the on-page size of one pointer field.
	SizePageReference = GSPPSize

	nodeTypeTreeNode byte = 1
	nodeTypeFreeList byte = 2

	leafFlag     byte = 1
	internalFlag byte = 0

	// NoNode is the null page reference.
	NoNode uint64 = 0
)

// NodeType discriminates page kinds by the shared byte 0, resolved once
// when a page is first interpreted.
type NodeType uint8

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeTree
	NodeTypeFreeList
)

// PageNodeType resolves the kind of the page under the cursor.
func PageNodeType(c pagecache.PageCursor) NodeType {
	switch c.GetByteAt(bytePosNodeType) {
	case nodeTypeTreeNode:
		return NodeTypeTree
	case nodeTypeFreeList:
		return NodeTypeFreeList
	default:
		return NodeTypeUnknown
	}
}

// NewTreeNode computes the slot arithmetic for pages of pageSize bytes and
// the given codec. It fails if either node kind could not hold at least two
// keys, since such a tree could never rebalance.
func NewTreeNode[K any, V any](pageSize int, layout Layout[K, V]) (*TreeNode[K, V], error) {
	keySize := layout.KeySize()
	valueSize := layout.ValueSize()
	internalMaxKeyCount := (pageSize - (HeaderLength + SizePageReference)) /
		(keySize + SizePageReference)
	leafMaxKeyCount := (pageSize - HeaderLength) / (keySize + valueSize)

	if internalMaxKeyCount < 2 {
		return nil, fmt.Errorf("%w: layout %v with page size %d fits only %d internal keys",
			ErrPageSizeTooSmall, layout, pageSize, internalMaxKeyCount)
	}
	if leafMaxKeyCount < 2 {
		return nil, fmt.Errorf("%w: layout %v with page size %d fits only %d leaf keys",
			ErrPageSizeTooSmall, layout, pageSize, leafMaxKeyCount)
	}

	return &TreeNode[K, V]{
		pageSize:            pageSize,
		internalMaxKeyCount: internalMaxKeyCount,
		leafMaxKeyCount:     leafMaxKeyCount,
		layout:              layout,
		keySize:             keySize,
		valueSize:           valueSize,
	}, nil
}

func (n *TreeNode[K, V]) initialize(c pagecache.PageCursor, nodeType byte,
	stableGeneration, unstableGeneration uint64) error {
	c.PutByteAt(bytePosNodeType, nodeTypeTreeNode)
	c.PutByteAt(bytePosType, nodeType)
	if err := n.SetGeneration(c, unstableGeneration); err != nil {
		return err
	}
	n.SetKeyCount(c, 0)
	if err := n.SetRightSibling(c, NoNode, stableGeneration, unstableGeneration); err != nil {
		return err
	}
	if err := n.SetLeftSibling(c, NoNode, stableGeneration, unstableGeneration); err != nil {
		return err
	}
	return n.SetSuccessor(c, NoNode, stableGeneration, unstableGeneration)
}

// InitializeLeaf stamps the page as an empty leaf node written at
// unstableGeneration, with all pointer fields null.
func (n *TreeNode[K, V]) InitializeLeaf(c pagecache.PageCursor, stableGeneration, unstableGeneration uint64) error {
	return n.initialize(c, leafFlag, stableGeneration, unstableGeneration)
}

// InitializeInternal stamps the page as an empty internal node written at
// unstableGeneration, with all pointer fields null.
func (n *TreeNode[K, V]) InitializeInternal(c pagecache.PageCursor, stableGeneration, unstableGeneration uint64) error {
	return n.initialize(c, internalFlag, stableGeneration, unstableGeneration)
}

// --- Header methods ---

func (n *TreeNode[K, V]) IsLeaf(c pagecache.PageCursor) bool {
	return c.GetByteAt(bytePosType) == leafFlag
}

func (n *TreeNode[K, V]) IsInternal(c pagecache.PageCursor) bool {
	return c.GetByteAt(bytePosType) == internalFlag
}

// Generation returns the last unstable generation that wrote this page,
// independent of the generations on its pointer fields.
func (n *TreeNode[K, V]) Generation(c pagecache.PageCursor) uint64 {
	return uint64(c.GetIntAt(bytePosGeneration))
}

func (n *TreeNode[K, V]) KeyCount(c pagecache.PageCursor) int {
	return int(c.GetIntAt(bytePosKeyCount))
}

func (n *TreeNode[K, V]) SetGeneration(c pagecache.PageCursor, generation uint64) error {
	if err := assertGeneration(generation); err != nil {
		return err
	}
	c.PutIntAt(bytePosGeneration, uint32(generation))
	return nil
}

func (n *TreeNode[K, V]) SetKeyCount(c pagecache.PageCursor, count int) {
	c.PutIntAt(bytePosKeyCount, uint32(count))
}

func (n *TreeNode[K, V]) RightSibling(c pagecache.PageCursor, stableGeneration, unstableGeneration uint64) (ReadResult, error) {
	c.SetOffset(bytePosRightSibling)
	return ReadGSPP(c, stableGeneration, unstableGeneration, NoLogicalPos)
}

func (n *TreeNode[K, V]) LeftSibling(c pagecache.PageCursor, stableGeneration, unstableGeneration uint64) (ReadResult, error) {
	c.SetOffset(bytePosLeftSibling)
	return ReadGSPP(c, stableGeneration, unstableGeneration, NoLogicalPos)
}

// Successor reads the new-generation pointer: non-null only when this page
// has been superseded by a newer copy during a structure change and
// logically redirects readers onward.
func (n *TreeNode[K, V]) Successor(c pagecache.PageCursor, stableGeneration, unstableGeneration uint64) (ReadResult, error) {
	c.SetOffset(bytePosSuccessor)
	return ReadGSPP(c, stableGeneration, unstableGeneration, NoLogicalPos)
}

func (n *TreeNode[K, V]) SetRightSibling(c pagecache.PageCursor, rightSibling uint64,
	stableGeneration, unstableGeneration uint64) error {
	c.SetOffset(bytePosRightSibling)
	_, err := WriteGSPP(c, rightSibling, stableGeneration, unstableGeneration)
	return err
}

func (n *TreeNode[K, V]) SetLeftSibling(c pagecache.PageCursor, leftSibling uint64,
	stableGeneration, unstableGeneration uint64) error {
	c.SetOffset(bytePosLeftSibling)
	_, err := WriteGSPP(c, leftSibling, stableGeneration, unstableGeneration)
	return err
}

func (n *TreeNode[K, V]) SetSuccessor(c pagecache.PageCursor, successor uint64,
	stableGeneration, unstableGeneration uint64) error {
	c.SetOffset(bytePosSuccessor)
	_, err := WriteGSPP(c, successor, stableGeneration, unstableGeneration)
	return err
}

// PointerGeneration re-reads the physical generation stamp behind a
// resolved pointer read, for consistency auditing. Child results are
// addressed by logical position, so the slot offset is recomputed from the
// child array arithmetic.
func (n *TreeNode[K, V]) PointerGeneration(c pagecache.PageCursor, result ReadResult) (uint64, error) {
	if !result.resolved {
		return 0, fmt.Errorf("%w: got %+v", ErrInvalidReadResult, result)
	}
	offset := result.FieldOffset
	if result.LogicalPos != NoLogicalPos {
		offset = n.ChildOffset(result.LogicalPos)
	}
	if result.Slot == SlotB {
		offset += GSPSize
	}
	c.SetOffset(offset)
	return readGSPGeneration(c), nil
}

// --- Body methods ---

func (n *TreeNode[K, V]) KeyAt(c pagecache.PageCursor, into *K, pos int) {
	c.SetOffset(n.KeyOffset(pos))
	n.layout.ReadKey(c, into)
}

// InsertKeyAt shifts keys at and after pos one slot right and writes key at
// pos. The caller must have verified keyCount < max for the node kind; this
// layer does not re-check fullness.
func (n *TreeNode[K, V]) InsertKeyAt(c pagecache.PageCursor, key K, pos, keyCount int, tmp []byte) {
	n.insertSlotAt(c, pos, keyCount, n.KeyOffset(0), n.keySize, tmp)
	c.SetOffset(n.KeyOffset(pos))
	n.layout.WriteKey(c, key)
}

func (n *TreeNode[K, V]) RemoveKeyAt(c pagecache.PageCursor, pos, keyCount int, tmp []byte) {
	n.removeSlotAt(c, pos, keyCount, n.KeyOffset(0), n.keySize, tmp)
}

func (n *TreeNode[K, V]) ValueAt(c pagecache.PageCursor, into *V, pos int) {
	c.SetOffset(n.valueOffset(pos))
	n.layout.ReadValue(c, into)
}

func (n *TreeNode[K, V]) InsertValueAt(c pagecache.PageCursor, value V, pos, keyCount int, tmp []byte) {
	n.insertSlotAt(c, pos, keyCount, n.valueOffset(0), n.valueSize, tmp)
	n.SetValueAt(c, value, pos)
}

func (n *TreeNode[K, V]) RemoveValueAt(c pagecache.PageCursor, pos, keyCount int, tmp []byte) {
	n.removeSlotAt(c, pos, keyCount, n.valueOffset(0), n.valueSize, tmp)
}

func (n *TreeNode[K, V]) SetValueAt(c pagecache.PageCursor, value V, pos int) {
	c.SetOffset(n.valueOffset(pos))
	n.layout.WriteValue(c, value)
}

func (n *TreeNode[K, V]) ChildAt(c pagecache.PageCursor, pos int,
	stableGeneration, unstableGeneration uint64) (ReadResult, error) {
	c.SetOffset(n.ChildOffset(pos))
	return ReadGSPP(c, stableGeneration, unstableGeneration, pos)
}

// InsertChildAt shifts children at and after pos one slot right and writes
// child at pos. An insert creates one more child than key, hence the
// keyCount+1 shift bound.
func (n *TreeNode[K, V]) InsertChildAt(c pagecache.PageCursor, child uint64, pos, keyCount int,
	tmp []byte, stableGeneration, unstableGeneration uint64) error {
	n.insertSlotAt(c, pos, keyCount+1, n.ChildOffset(0), SizePageReference, tmp)
	return n.SetChildAt(c, child, pos, stableGeneration, unstableGeneration)
}

func (n *TreeNode[K, V]) SetChildAt(c pagecache.PageCursor, child uint64, pos int,
	stableGeneration, unstableGeneration uint64) error {
	c.SetOffset(n.ChildOffset(pos))
	return n.WriteChild(c, child, stableGeneration, unstableGeneration)
}

// WriteChild writes a child pointer at the cursor's current offset.
func (n *TreeNode[K, V]) WriteChild(c pagecache.PageCursor, child uint64,
	stableGeneration, unstableGeneration uint64) error {
	_, err := WriteGSPP(c, child, stableGeneration, unstableGeneration)
	return err
}

// insertSlotAt moves the items in [pos, toExcluding) one slot to the right
// through tmp, so no overlapping in-place copy is needed.
func (n *TreeNode[K, V]) insertSlotAt(c pagecache.PageCursor, pos, toExcluding, baseOffset, itemSize int, tmp []byte) {
	count := toExcluding - pos
	if count > 0 {
		n.copyItems(c, pos, count, baseOffset, itemSize, tmp)
		n.writeItems(c, pos+1, count, baseOffset, itemSize, tmp)
	}
}

// removeSlotAt moves the items in (pos, keyCount) one slot to the left.
func (n *TreeNode[K, V]) removeSlotAt(c pagecache.PageCursor, pos, keyCount, baseOffset, itemSize int, tmp []byte) {
	from := pos + 1
	count := keyCount - from
	n.copyItems(c, from, count, baseOffset, itemSize, tmp)
	n.writeItems(c, pos, count, baseOffset, itemSize, tmp)
}

func (n *TreeNode[K, V]) copyItems(c pagecache.PageCursor, pos, count, baseOffset, itemSize int, tmp []byte) {
	c.SetOffset(baseOffset + pos*itemSize)
	c.GetBytes(tmp[:count*itemSize])
}

func (n *TreeNode[K, V]) writeItems(c pagecache.PageCursor, pos, count, baseOffset, itemSize int, tmp []byte) {
	c.SetOffset(baseOffset + pos*itemSize)
	c.PutBytes(tmp[:count*itemSize])
}

// --- Bulk methods used during record redistribution ---

// ReadKeysWithInsertRecordInPosition produces into `into` the would-be
// post-insert key array, the existing records plus one new record written
// by newRecordWriter at insertPosition, without mutating the page. Returns
// the number of bytes preceding the inserted record.
func (n *TreeNode[K, V]) ReadKeysWithInsertRecordInPosition(c pagecache.PageCursor,
	newRecordWriter func(pagecache.PageCursor), insertPosition, totalNumberOfRecords int, into []byte) int {
	return n.readRecordsWithInsertRecordInPosition(c, newRecordWriter,
		insertPosition, totalNumberOfRecords, n.keySize, n.KeyOffset(0), into)
}

func (n *TreeNode[K, V]) ReadValuesWithInsertRecordInPosition(c pagecache.PageCursor,
	newRecordWriter func(pagecache.PageCursor), insertPosition, totalNumberOfRecords int, into []byte) int {
	return n.readRecordsWithInsertRecordInPosition(c, newRecordWriter,
		insertPosition, totalNumberOfRecords, n.valueSize, n.valueOffset(0), into)
}

func (n *TreeNode[K, V]) ReadChildrenWithInsertRecordInPosition(c pagecache.PageCursor,
	newRecordWriter func(pagecache.PageCursor), insertPosition, totalNumberOfRecords int, into []byte) int {
	return n.readRecordsWithInsertRecordInPosition(c, newRecordWriter,
		insertPosition, totalNumberOfRecords, n.ChildSize(), n.ChildOffset(0), into)
}

// readRecordsWithInsertRecordInPosition leaves the cursor on the same page,
// offset unspecified. The ordering of the records on the page is preserved
// in `into`, with the new record at insertPosition; the page itself is not
// modified. insertPosition 0 sits before all existing records,
// totalNumberOfRecords-1 after all of them.
func (n *TreeNode[K, V]) readRecordsWithInsertRecordInPosition(c pagecache.PageCursor,
	newRecordWriter func(pagecache.PageCursor), insertPosition, totalNumberOfRecords,
	recordSize, baseRecordOffset int, into []byte) int {

	// Records before the insert position.
	c.SetOffset(baseRecordOffset)
	c.GetBytes(into[:insertPosition*recordSize])

	// The new record, written through a cursor over its slot in `into`.
	buffer := pagecache.NewSliceCursor(c.PageID(),
		into[insertPosition*recordSize:(insertPosition+1)*recordSize])
	newRecordWriter(buffer)

	// Records following the insert position.
	c.SetOffset(baseRecordOffset + insertPosition*recordSize)
	c.GetBytes(into[(insertPosition+1)*recordSize : totalNumberOfRecords*recordSize])

	return insertPosition * recordSize
}

func (n *TreeNode[K, V]) writeAll(c pagecache.PageCursor, source []byte,
	sourcePos, targetPos, count, baseOffset, recordSize int) {
	sourceOffset := sourcePos * recordSize
	c.SetOffset(baseOffset + targetPos*recordSize)
	c.PutBytes(source[sourceOffset : sourceOffset+count*recordSize])
}

// WriteKeys bulk-copies count keys from source starting at sourcePos into
// the page starting at slot targetPos.
func (n *TreeNode[K, V]) WriteKeys(c pagecache.PageCursor, source []byte, sourcePos, targetPos, count int) {
	n.writeAll(c, source, sourcePos, targetPos, count, n.KeyOffset(0), n.keySize)
}

func (n *TreeNode[K, V]) WriteValues(c pagecache.PageCursor, source []byte, sourcePos, targetPos, count int) {
	n.writeAll(c, source, sourcePos, targetPos, count, n.valueOffset(0), n.valueSize)
}

func (n *TreeNode[K, V]) WriteChildren(c pagecache.PageCursor, source []byte, sourcePos, targetPos, count int) {
	n.writeAll(c, source, sourcePos, targetPos, count, n.ChildOffset(0), n.ChildSize())
}

// --- Size and offset queries ---

func (n *TreeNode[K, V]) KeyOffset(pos int) int {
	return HeaderLength + pos*n.keySize
}

func (n *TreeNode[K, V]) valueOffset(pos int) int {
	return HeaderLength + n.leafMaxKeyCount*n.keySize + pos*n.valueSize
}

// ValueOffset exposes the leaf value-array arithmetic for planning layers.
func (n *TreeNode[K, V]) ValueOffset(pos int) int {
	return n.valueOffset(pos)
}

func (n *TreeNode[K, V]) ChildOffset(pos int) int {
	return HeaderLength + n.internalMaxKeyCount*n.keySize + pos*SizePageReference
}

func (n *TreeNode[K, V]) InternalMaxKeyCount() int { return n.internalMaxKeyCount }
func (n *TreeNode[K, V]) LeafMaxKeyCount() int     { return n.leafMaxKeyCount }
func (n *TreeNode[K, V]) KeySize() int             { return n.keySize }
func (n *TreeNode[K, V]) ValueSize() int           { return n.valueSize }
func (n *TreeNode[K, V]) ChildSize() int           { return SizePageReference }

// ScratchSize is the scratch buffer size that covers every slot-shift this
// layout can ask for. Callers size the buffer once per tree instance and
// reuse it; it must never be shared across concurrent operations.
func (n *TreeNode[K, V]) ScratchSize() int {
	size := n.leafMaxKeyCount * n.keySize
	if s := n.leafMaxKeyCount * n.valueSize; s > size {
		size = s
	}
	if s := n.internalMaxKeyCount * n.keySize; s > size {
		size = s
	}
	if s := (n.internalMaxKeyCount + 1) * SizePageReference; s > size {
		size = s
	}
	return size
}

// Comparator returns the key ordering of the underlying layout.
func (n *TreeNode[K, V]) Comparator() func(a, b K) int {
	return n.layout.Compare
}

func (n *TreeNode[K, V]) String() string {
	return fmt.Sprintf("TreeNode[pageSize:%d, internalMax:%d, leafMax:%d, keySize:%d, valueSize:%d]",
		n.pageSize, n.internalMaxKeyCount, n.leafMaxKeyCount, n.keySize, n.valueSize)
}

// pageNavigator re-points a cursor at another page.
type pageNavigator interface {
	GoTo(pageID pagecache.PageID) error
}

// GoTo navigates the cursor to the page behind a resolved pointer. Failures
// carry the target id and what the navigation was for.
func GoTo(c pageNavigator, intent string, pointer uint64) error {
	if err := c.GoTo(pagecache.PageID(pointer)); err != nil {
		return fmt.Errorf("failed to go to %s at page %d: %w", intent, pointer, err)
	}
	return nil
}
