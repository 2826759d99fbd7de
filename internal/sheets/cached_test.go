package sheets

import (
	"context"
	"testing"
	"time"

	"controle/internal/cache"
)

type countingTable struct {
	reads int
	data  map[RangeID][][]string
}

func (c *countingTable) ReadRows(_ context.Context, rng RangeID) ([][]string, error) {
	c.reads++
	return copyRows(c.data[rng]), nil
}

func (c *countingTable) AppendRows(_ context.Context, rng RangeID, rows [][]string) error {
	c.data[rng] = append(c.data[rng], rows...)
	return nil
}

func (c *countingTable) UpdateRow(_ context.Context, rng RangeID, index int, row []string) error {
	c.data[rng][index-1] = row
	return nil
}

func (c *countingTable) DeleteRow(_ context.Context, rng RangeID, index int) error {
	c.data[rng] = append(c.data[rng][:index-1], c.data[rng][index:]...)
	return nil
}

func TestCachedTableServesRepeatedReads(t *testing.T) {
	ctx := context.Background()
	inner := &countingTable{data: map[RangeID][][]string{Cards: {{"Cartao"}, {"Itaú"}}}}
	ct := NewCachedTable(inner, cache.NewLRUCache[[][]string](10, time.Minute))

	for i := 0; i < 3; i++ {
		rows, err := ct.ReadRows(ctx, Cards)
		if err != nil || len(rows) != 2 {
			t.Fatalf("read %d: %v %v", i, rows, err)
		}
	}
	if inner.reads != 1 {
		t.Fatalf("expected 1 backend read, got %d", inner.reads)
	}
}

func TestCachedTableInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	inner := &countingTable{data: map[RangeID][][]string{Cards: {{"Cartao"}}}}
	ct := NewCachedTable(inner, cache.NewLRUCache[[][]string](10, time.Minute))

	if _, err := ct.ReadRows(ctx, Cards); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := ct.AppendRows(ctx, Cards, [][]string{{"Bradesco"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, _ := ct.ReadRows(ctx, Cards)
	if len(rows) != 2 || inner.reads != 2 {
		t.Fatalf("expected fresh read after write, rows=%v reads=%d", rows, inner.reads)
	}

	ct.Invalidate()
	_, _ = ct.ReadRows(ctx, Cards)
	if inner.reads != 3 {
		t.Fatalf("expected read after Invalidate, got %d", inner.reads)
	}
}

func TestCachedTableReturnsCopies(t *testing.T) {
	ctx := context.Background()
	inner := &countingTable{data: map[RangeID][][]string{Cards: {{"Cartao"}, {"Itaú"}}}}
	ct := NewCachedTable(inner, cache.NewLRUCache[[][]string](10, time.Minute))
	rows, _ := ct.ReadRows(ctx, Cards)
	rows[1][0] = "mutated"
	again, _ := ct.ReadRows(ctx, Cards)
	if again[1][0] != "Itaú" {
		t.Fatalf("cache entry was mutated through returned slice")
	}
}

func TestRanges(t *testing.T) {
	r := DefaultRanges()
	if err := r.Validate(); err != nil {
		t.Fatalf("default ranges invalid: %v", err)
	}
	if got := r.Sheet(Income); got != "Entradas" {
		t.Fatalf("Sheet = %q", got)
	}
	if first, last := r.Columns(Purchases); first != "A" || last != "J" {
		t.Fatalf("Columns = %s:%s", first, last)
	}
	delete(r, Cards)
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for missing range")
	}
}

func TestCachedTableReadsLedgerRangesThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingTable{data: map[RangeID][][]string{Purchases: {{"IdLan"}}}}
	ct := NewCachedTable(inner, cache.NewLRUCache[[][]string](10, time.Minute))

	for i := 0; i < 3; i++ {
		if _, err := ct.ReadRows(ctx, Purchases); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if inner.reads != 3 {
		t.Fatalf("purchases served from cache: %d backend reads, want 3", inner.reads)
	}
}

func TestCachedTableExplicitRanges(t *testing.T) {
	ctx := context.Background()
	inner := &countingTable{data: map[RangeID][][]string{Income: {{"Pessoa"}}, Cards: {{"Cartao"}}}}
	ct := NewCachedTable(inner, cache.NewLRUCache[[][]string](10, time.Minute), Income)

	_, _ = ct.ReadRows(ctx, Income)
	_, _ = ct.ReadRows(ctx, Income)
	_, _ = ct.ReadRows(ctx, Cards)
	_, _ = ct.ReadRows(ctx, Cards)
	if inner.reads != 3 {
		t.Fatalf("backend reads = %d, want 3 (income once, cards twice)", inner.reads)
	}
}
