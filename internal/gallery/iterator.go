// Package gallery holds the sorted wallpaper collection and a bidirectional
// cursor over it. The collection is rebuilt wholesale from a directory scan
// on every reload; the iterator survives reloads by re-locating its current
// item by identity.
package gallery

import (
	"dailywall/internal/domain"
)

// invalidCursor marks "before first" as well as a cursor orphaned by a
// reload that dropped its item.
const invalidCursor = -1

// Iterator is a bounded bidirectional cursor over image records.
// Not safe for concurrent use; the view model serializes access.
type Iterator struct {
	items    []domain.ImageRecord
	cursor   int
	strategy SelectionStrategy
}

// NewIterator creates an iterator positioned before the first item
func NewIterator(strategy SelectionStrategy) *Iterator {
	return &Iterator{
		cursor:   invalidCursor,
		strategy: strategy,
	}
}

// SetStrategy swaps the random-selection strategy. The cursor stays put;
// only Random moves it.
func (it *Iterator) SetStrategy(s SelectionStrategy) {
	it.strategy = s
}

// Items returns the backing collection
func (it *Iterator) Items() []domain.ImageRecord {
	return it.items
}

// Len returns the collection size
func (it *Iterator) Len() int {
	return len(it.items)
}

// Index returns the current cursor position, invalid ⇒ -1
func (it *Iterator) Index() int {
	return it.cursor
}

// Current returns the item under the cursor
func (it *Iterator) Current() (domain.ImageRecord, bool) {
	if it.cursor < 0 || it.cursor >= len(it.items) {
		return domain.ImageRecord{}, false
	}
	return it.items[it.cursor], true
}

// First moves the cursor to the first item
func (it *Iterator) First() (domain.ImageRecord, bool) {
	if len(it.items) == 0 {
		return domain.ImageRecord{}, false
	}
	it.cursor = 0
	return it.items[0], true
}

// Last moves the cursor to the last item
func (it *Iterator) Last() (domain.ImageRecord, bool) {
	if len(it.items) == 0 {
		return domain.ImageRecord{}, false
	}
	it.cursor = len(it.items) - 1
	return it.items[it.cursor], true
}

// Next advances the cursor. Past the end it returns no result and leaves
// the cursor where it was; there is no wraparound.
func (it *Iterator) Next() (domain.ImageRecord, bool) {
	if it.cursor+1 >= len(it.items) {
		return domain.ImageRecord{}, false
	}
	it.cursor++
	return it.items[it.cursor], true
}

// Previous moves the cursor back. Before the start it returns no result and
// leaves the cursor where it was.
func (it *Iterator) Previous() (domain.ImageRecord, bool) {
	if it.cursor-1 < 0 || len(it.items) == 0 {
		return domain.ImageRecord{}, false
	}
	it.cursor--
	return it.items[it.cursor], true
}

// Random delegates to the active strategy and relocates the cursor to the
// chosen item. No qualifying item leaves the cursor unchanged.
func (it *Iterator) Random() (domain.ImageRecord, bool) {
	if it.strategy == nil {
		return domain.ImageRecord{}, false
	}
	idx, ok := it.strategy.Pick(it.items)
	if !ok || idx < 0 || idx >= len(it.items) {
		return domain.ImageRecord{}, false
	}
	it.cursor = idx
	return it.items[idx], true
}

// IsFirst reports whether the cursor is at (or before) the first item.
// An empty collection is considered at-first.
func (it *Iterator) IsFirst() bool {
	return it.cursor <= 0
}

// IsLast reports whether the cursor is at the last valid index.
// An empty collection is never at-last; callers rely on the asymmetry to
// keep "next" affordances disabled while "first" ones are not.
func (it *Iterator) IsLast() bool {
	return len(it.items) > 0 && it.cursor == len(it.items)-1
}

// SetItems replaces the backing collection. With trackIndex the cursor is
// re-located to the item with matching identity in the new collection;
// if the item is gone the cursor goes invalid rather than silently moving
// to the start. Without trackIndex the cursor resets to before-first.
func (it *Iterator) SetItems(items []domain.ImageRecord, trackIndex bool) {
	if trackIndex {
		if current, ok := it.Current(); ok {
			it.items = items
			it.cursor = invalidCursor
			for i, item := range items {
				if item.SameImage(current) {
					it.cursor = i
					break
				}
			}
			return
		}
	}
	it.items = items
	it.cursor = invalidCursor
}

// SetIndex repositions the cursor to the given index; out-of-range values
// are a no-op
func (it *Iterator) SetIndex(idx int) {
	if idx < 0 || idx >= len(it.items) {
		return
	}
	it.cursor = idx
}

// SetIndexByURL repositions the cursor onto the item with the given source
// URL. Unknown URLs are a no-op.
func (it *Iterator) SetIndexByURL(url string) {
	for i, item := range it.items {
		if item.SourceURL == url {
			it.cursor = i
			return
		}
	}
}
