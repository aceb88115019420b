// gbptree_inspect dumps the header and slot state of tree node pages from a
// page-image file. Useful when diagnosing pointer corruption reported by the
// index layer.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/yuyangxu/gbptree/core/indexing/gbptree"
	"github.com/yuyangxu/gbptree/core/pagecache"
	"github.com/yuyangxu/gbptree/pkg/logger"
	"go.uber.org/zap"
)

var (
	file        = flag.String("file", "", "Path to the page-image file")
	pageSize    = flag.Int("page_size", 8192, "Page size in bytes")
	pageIndex   = flag.Int("page", 0, "Index of the page to inspect")
	stableGen   = flag.Uint64("stable_gen", 1, "Stable generation of the snapshot to resolve pointers against")
	unstableGen = flag.Uint64("unstable_gen", 2, "Unstable generation of the snapshot to resolve pointers against")
	keyLimit    = flag.Int("key_limit", 16, "Maximum number of keys to print")
	logLevel    = flag.String("log_level", "info", "Minimum log level")
)

func main() {
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console", OutputFile: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *file == "" {
		log.Fatal("missing -file")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("failed to read page-image file", zap.String("file", *file), zap.Error(err))
	}
	start := *pageIndex * *pageSize
	end := start + *pageSize
	if start < 0 || end > len(data) {
		log.Fatal("page out of range",
			zap.Int("page", *pageIndex),
			zap.Int("page_size", *pageSize),
			zap.Int("file_size", len(data)))
	}

	cursor := pagecache.NewSliceCursor(pagecache.PageID(*pageIndex), data[start:end])
	if err := inspect(cursor); err != nil {
		log.Fatal("inspection failed", zap.Error(err))
	}
}

func inspect(c pagecache.PageCursor) error {
	switch gbptree.PageNodeType(c) {
	case gbptree.NodeTypeFreeList:
		fmt.Printf("page %d: freelist node\n", c.PageID())
		return nil
	case gbptree.NodeTypeTree:
	default:
		return fmt.Errorf("page %d: unrecognized node type byte 0x%02x", c.PageID(), c.GetByteAt(0))
	}

	node, err := gbptree.NewTreeNode[uint64, uint64](*pageSize, gbptree.Uint64Layout{})
	if err != nil {
		return err
	}

	kind := "internal"
	if node.IsLeaf(c) {
		kind = "leaf"
	}
	keyCount := node.KeyCount(c)
	fmt.Printf("page %d: tree node (%s)\n", c.PageID(), kind)
	fmt.Printf("  generation: %d\n", node.Generation(c))
	fmt.Printf("  key count:  %d\n", keyCount)

	printPointer(c, "right sibling", func() (gbptree.ReadResult, error) {
		return node.RightSibling(c, *stableGen, *unstableGen)
	})
	printPointer(c, "left sibling", func() (gbptree.ReadResult, error) {
		return node.LeftSibling(c, *stableGen, *unstableGen)
	})
	printPointer(c, "successor", func() (gbptree.ReadResult, error) {
		return node.Successor(c, *stableGen, *unstableGen)
	})

	limit := keyCount
	if limit > *keyLimit {
		limit = *keyLimit
	}
	var key uint64
	for pos := 0; pos < limit; pos++ {
		node.KeyAt(c, &key, pos)
		fmt.Printf("  key[%d] = %d\n", pos, key)
	}
	if limit < keyCount {
		fmt.Printf("  ... %d more keys\n", keyCount-limit)
	}
	return nil
}

func printPointer(c pagecache.PageCursor, name string, read func() (gbptree.ReadResult, error)) {
	result, err := read()
	switch {
	case err != nil:
		fmt.Printf("  %s: UNREADABLE (%v)\n", name, err)
	case !result.IsNode():
		fmt.Printf("  %s: none\n", name)
	default:
		fmt.Printf("  %s: page %d (slot %s)\n", name, result.Pointer, result.Slot)
	}
}
