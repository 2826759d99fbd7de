package sheets

import (
	"context"

	"controle/internal/cache"
)

// ReferenceRanges hold labels maintained by hand in the workbook. No process
// writes them, so they are the only ranges safe to cache per process.
var ReferenceRanges = []RangeID{Cards, FixedTypes}

// CachedTable keeps recent reads of selected ranges in memory. Any write to a
// range drops that range from the cache. Other ranges always go to next:
// several processes write to the same store and id allocation, duplicate
// checks and guarded updates must see their writes.
type CachedTable struct {
	next   Table
	rows   cache.Cache[[][]string]
	cached map[RangeID]bool
}

var _ Table = (*CachedTable)(nil)

// NewCachedTable caches reads of ranges, or of ReferenceRanges when none are
// given.
func NewCachedTable(next Table, c cache.Cache[[][]string], ranges ...RangeID) *CachedTable {
	if len(ranges) == 0 {
		ranges = ReferenceRanges
	}
	cached := make(map[RangeID]bool, len(ranges))
	for _, r := range ranges {
		cached[r] = true
	}
	return &CachedTable{next: next, rows: c, cached: cached}
}

func (t *CachedTable) ReadRows(ctx context.Context, rng RangeID) ([][]string, error) {
	if !t.cached[rng] {
		return t.next.ReadRows(ctx, rng)
	}
	if rows, ok := t.rows.Get(string(rng)); ok {
		return copyRows(rows), nil
	}
	rows, err := t.next.ReadRows(ctx, rng)
	if err != nil {
		return nil, err
	}
	t.rows.Set(string(rng), copyRows(rows))
	return rows, nil
}

func (t *CachedTable) AppendRows(ctx context.Context, rng RangeID, rows [][]string) error {
	defer t.rows.Delete(string(rng))
	return t.next.AppendRows(ctx, rng, rows)
}

func (t *CachedTable) UpdateRow(ctx context.Context, rng RangeID, index int, row []string) error {
	defer t.rows.Delete(string(rng))
	return t.next.UpdateRow(ctx, rng, index, row)
}

func (t *CachedTable) DeleteRow(ctx context.Context, rng RangeID, index int) error {
	defer t.rows.Delete(string(rng))
	return t.next.DeleteRow(ctx, rng, index)
}

// Invalidate drops every cached range.
func (t *CachedTable) Invalidate() {
	for _, id := range AllRanges {
		t.rows.Delete(string(id))
	}
}

func copyRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = append([]string(nil), row...)
	}
	return out
}
