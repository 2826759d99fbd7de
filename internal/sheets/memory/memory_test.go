package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"controle/internal/core"
	"controle/internal/sheets"
)

var testHeaders = map[sheets.RangeID][]string{
	sheets.Purchases:  {"IdLan", "Compra"},
	sheets.Cards:      {"Cartao"},
	sheets.FixedTypes: {"Tipo"},
}

func TestMemoryStoreAppendUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New(testHeaders)

	if err := s.AppendRows(ctx, sheets.Purchases, [][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.UpdateRow(ctx, sheets.Purchases, 3, []string{"2", "B"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.DeleteRow(ctx, sheets.Purchases, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[0][0] != "IdLan" || got[1][1] != "B" || got[2][1] != "c" {
		t.Fatalf("unexpected rows: %v", got)
	}

	// Returned rows are copies.
	got[1][1] = "changed"
	again, _ := s.ReadRows(ctx, sheets.Purchases)
	if again[1][1] != "B" {
		t.Fatalf("store leaked internal slice")
	}
}

func TestMemoryStoreRowBounds(t *testing.T) {
	ctx := context.Background()
	s := New(testHeaders)
	for _, idx := range []int{0, 1, 2} {
		if err := s.UpdateRow(ctx, sheets.Purchases, idx, []string{"x"}); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("update %d: expected not found, got %v", idx, err)
		}
		if err := s.DeleteRow(ctx, sheets.Purchases, idx); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("delete %d: expected not found, got %v", idx, err)
		}
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// No files -> defaults
	s := NewFromFiles(dir, testHeaders)
	cards, _ := s.ReadRows(ctx, sheets.Cards)
	types, _ := s.ReadRows(ctx, sheets.FixedTypes)
	if len(cards) < 2 || len(types) < 2 {
		t.Fatalf("expected defaults when files missing")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_cards.txt", "# header\nItaú\nBradesco\nItaú\n\n")
	mustWrite("seed_fixed_types.txt", "# header\nAluguel\nAluguel\nLuz\n\n")

	s = NewFromFiles(dir, testHeaders)
	cards, _ = s.ReadRows(ctx, sheets.Cards)
	if len(cards) != 3 || cards[1][0] != "Itaú" || cards[2][0] != "Bradesco" {
		t.Fatalf("unexpected cards: %v", cards)
	}
	types, _ = s.ReadRows(ctx, sheets.FixedTypes)
	if len(types) != 3 || types[1][0] != "Aluguel" || types[2][0] != "Luz" {
		t.Fatalf("unexpected types: %v", types)
	}
}
