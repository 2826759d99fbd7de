package google

import (
	"context"
	"testing"

	ports "controle/internal/sheets"
)

func TestSheetIDCacheHit(t *testing.T) {
	c := newWithService(nil, "test", ports.DefaultRanges())

	// A cached id is served without touching the (nil) service.
	c.mu.Lock()
	c.sheetIDs["Controle"] = 42
	c.mu.Unlock()

	id, err := c.sheetID(context.Background(), "Controle")
	if err != nil {
		t.Fatalf("sheetID: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
}

func TestSheetIDUnknownTitle(t *testing.T) {
	f := &fakeSheets{}
	c := newFakeClient(t, f)
	if _, err := c.sheetID(context.Background(), "Nope"); err == nil {
		t.Fatal("expected error for unknown sheet title")
	}
	// Known titles were still cached by the lookup.
	c.mu.Lock()
	_, ok := c.sheetIDs["Entradas"]
	c.mu.Unlock()
	if !ok {
		t.Fatal("expected metadata to be cached")
	}
}
