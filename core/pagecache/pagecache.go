package pagecache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// --- Error Definitions ---

var (
	ErrPageNotFound    = errors.New("page not found in page cache")
	ErrPageNotPinned   = errors.New("page is not pinned")
	ErrInvalidPageSize = errors.New("page size must be positive")
)

// PageCache is an in-memory page store: it allocates fixed-size pages and
// hands them out pinned. There is no eviction; the cache is the
// authoritative owner of every page buffer for its lifetime.
type PageCache struct {
	mu       sync.Mutex
	pageSize int
	pages    map[PageID]*Page
	nextID   PageID
	logger   *zap.Logger

	allocations metric.Int64Counter
	fetches     metric.Int64Counter
	faults      metric.Int64Counter
}

// New creates a PageCache for pages of pageSize bytes. logger and meter may
// be nil, in which case logging and metrics are disabled.
func New(pageSize int, logger *zap.Logger, meter metric.Meter) (*PageCache, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPageSize, pageSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}

	allocations, err := meter.Int64Counter("pagecache.allocations",
		metric.WithDescription("Total pages allocated by the page cache."))
	if err != nil {
		return nil, fmt.Errorf("failed to create allocations counter: %w", err)
	}
	fetches, err := meter.Int64Counter("pagecache.fetches",
		metric.WithDescription("Total page fetch (pin) requests."))
	if err != nil {
		return nil, fmt.Errorf("failed to create fetches counter: %w", err)
	}
	faults, err := meter.Int64Counter("pagecache.faults",
		metric.WithDescription("Fetch requests for pages that do not exist."))
	if err != nil {
		return nil, fmt.Errorf("failed to create faults counter: %w", err)
	}

	return &PageCache{
		pageSize:    pageSize,
		pages:       make(map[PageID]*Page),
		nextID:      InvalidPageID + 1,
		logger:      logger,
		allocations: allocations,
		fetches:     fetches,
		faults:      faults,
	}, nil
}

// PageSize returns the fixed size in bytes of every page in the cache.
func (pc *PageCache) PageSize() int {
	return pc.pageSize
}

// NumPages returns the number of pages allocated so far.
func (pc *PageCache) NumPages() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.pages)
}

// AllocatePage creates a new zeroed page and returns it pinned.
func (pc *PageCache) AllocatePage() (*Page, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	id := pc.nextID
	pc.nextID++
	page := NewPage(id, pc.pageSize)
	page.Pin()
	pc.pages[id] = page

	pc.allocations.Add(context.Background(), 1)
	pc.logger.Debug("allocated page", zap.Uint64("page_id", uint64(id)))
	return page, nil
}

// FetchPage returns the page with the given id, pinned.
func (pc *PageCache) FetchPage(pageID PageID) (*Page, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.fetches.Add(context.Background(), 1)
	page, ok := pc.pages[pageID]
	if !ok {
		pc.faults.Add(context.Background(), 1)
		return nil, fmt.Errorf("%w: page %d", ErrPageNotFound, pageID)
	}
	page.Pin()
	return page, nil
}

// UnpinPage releases one pin on the page, marking it dirty if the caller
// modified it.
func (pc *PageCache) UnpinPage(pageID PageID, dirty bool) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	page, ok := pc.pages[pageID]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotFound, pageID)
	}
	if page.GetPinCount() == 0 {
		return fmt.Errorf("%w: page %d", ErrPageNotPinned, pageID)
	}
	if dirty {
		page.SetDirty(true)
	}
	page.Unpin()
	return nil
}

// NewCursor returns a cursor pinned to pageID, positioned at offset 0.
func (pc *PageCache) NewCursor(pageID PageID) (*Cursor, error) {
	c := &Cursor{cache: pc}
	if err := c.GoTo(pageID); err != nil {
		return nil, err
	}
	return c, nil
}
