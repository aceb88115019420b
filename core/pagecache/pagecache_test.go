package pagecache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewRejectsInvalidPageSize covers the construction guard.
func TestNewRejectsInvalidPageSize(t *testing.T) {
	for _, pageSize := range []int{0, -1} {
		_, err := New(pageSize, nil, nil)
		require.ErrorIs(t, err, ErrInvalidPageSize)
	}

	cache, err := New(4096, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 4096, cache.PageSize())
	require.Equal(t, 0, cache.NumPages())
}

// TestAllocatePageReturnsPinnedZeroedPage verifies fresh pages arrive
// pinned, zero-filled and with increasing non-invalid ids.
func TestAllocatePageReturnsPinnedZeroedPage(t *testing.T) {
	cache, err := New(64, nil, nil)
	require.NoError(t, err)

	first, err := cache.AllocatePage()
	require.NoError(t, err)
	second, err := cache.AllocatePage()
	require.NoError(t, err)

	require.NotEqual(t, InvalidPageID, first.GetPageID())
	require.NotEqual(t, first.GetPageID(), second.GetPageID())
	require.Equal(t, uint32(1), first.GetPinCount())
	require.Len(t, first.GetData(), 64)
	require.Equal(t, make([]byte, 64), first.GetData())
	require.Equal(t, 2, cache.NumPages())
}

// TestFetchPagePinsExisting: fetching an allocated page adds a pin and
// returns the same frame.
func TestFetchPagePinsExisting(t *testing.T) {
	cache, err := New(64, nil, nil)
	require.NoError(t, err)
	page, err := cache.AllocatePage()
	require.NoError(t, err)

	fetched, err := cache.FetchPage(page.GetPageID())
	require.NoError(t, err)
	require.Same(t, page, fetched)
	require.Equal(t, uint32(2), page.GetPinCount())
}

// TestFetchMissingPageFails: the id never allocated is a fault.
func TestFetchMissingPageFails(t *testing.T) {
	cache, err := New(64, nil, nil)
	require.NoError(t, err)

	_, err = cache.FetchPage(PageID(42))
	require.ErrorIs(t, err, ErrPageNotFound)
}

// TestUnpinPageAccounting covers the dirty flag and the not-pinned guard.
func TestUnpinPageAccounting(t *testing.T) {
	cache, err := New(64, nil, nil)
	require.NoError(t, err)
	page, err := cache.AllocatePage()
	require.NoError(t, err)

	require.NoError(t, cache.UnpinPage(page.GetPageID(), false))
	require.Equal(t, uint32(0), page.GetPinCount())
	require.False(t, page.IsDirty())

	err = cache.UnpinPage(page.GetPageID(), false)
	require.ErrorIs(t, err, ErrPageNotPinned)

	_, err = cache.FetchPage(page.GetPageID())
	require.NoError(t, err)
	require.NoError(t, cache.UnpinPage(page.GetPageID(), true))
	require.True(t, page.IsDirty())

	err = cache.UnpinPage(PageID(42), false)
	require.ErrorIs(t, err, ErrPageNotFound)
}

// TestUnpinKeepsDirtyFlagSticky: a clean unpin after a dirty one must not
// clear the flag; only an explicit flush would.
func TestUnpinKeepsDirtyFlagSticky(t *testing.T) {
	cache, err := New(64, nil, nil)
	require.NoError(t, err)
	page, err := cache.AllocatePage()
	require.NoError(t, err)

	_, err = cache.FetchPage(page.GetPageID())
	require.NoError(t, err)
	require.NoError(t, cache.UnpinPage(page.GetPageID(), true))
	require.NoError(t, cache.UnpinPage(page.GetPageID(), false))
	require.True(t, page.IsDirty())
}

// TestNewCursorStartsAtZero: cursors come back pinned at offset 0 on the
// requested page.
func TestNewCursorStartsAtZero(t *testing.T) {
	cache, err := New(64, nil, nil)
	require.NoError(t, err)
	page, err := cache.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, cache.UnpinPage(page.GetPageID(), false))

	c, err := cache.NewCursor(page.GetPageID())
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, page.GetPageID(), c.PageID())
	require.Equal(t, 0, c.Offset())
	require.Equal(t, uint32(1), page.GetPinCount())

	_, err = cache.NewCursor(PageID(42))
	require.ErrorIs(t, err, ErrPageNotFound)
}
