package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"controle/internal/core"
	"controle/internal/sheets"
)

var testHeaders = map[sheets.RangeID][]string{
	sheets.Purchases: {"IdLan", "Compra"},
	sheets.Cards:     {"Cartao"},
}

func openTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "controle.db")
	repo, err := NewSQLiteRepository(path, testHeaders)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestSQLiteRepositorySeedsHeaders(t *testing.T) {
	repo, path := openTestRepo(t)
	rows, err := repo.ReadRows(context.Background(), sheets.Cards)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "Cartao" {
		t.Fatalf("unexpected rows %v", rows)
	}
	repo.Close()

	// Reopening must not duplicate headers.
	again, err := NewSQLiteRepository(path, testHeaders)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	rows, _ = again.ReadRows(context.Background(), sheets.Cards)
	if len(rows) != 1 {
		t.Fatalf("header duplicated on reopen: %v", rows)
	}
}

func TestSQLiteRepositoryRowLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	if err := repo.AppendRows(ctx, sheets.Purchases, [][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.UpdateRow(ctx, sheets.Purchases, 3, []string{"2", "B", "extra"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.DeleteRow(ctx, sheets.Purchases, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, err := repo.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %v", rows)
	}
	if rows[1][1] != "B" || len(rows[1]) != 3 || rows[2][1] != "c" {
		t.Fatalf("unexpected rows %v", rows)
	}

	// Other ranges are untouched.
	cards, _ := repo.ReadRows(ctx, sheets.Cards)
	if len(cards) != 1 {
		t.Fatalf("cards range changed: %v", cards)
	}
}

func TestSQLiteRepositoryRowBounds(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)
	for _, idx := range []int{0, 1, 2, 99} {
		if err := repo.UpdateRow(ctx, sheets.Purchases, idx, []string{"x"}); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("update %d: expected not found, got %v", idx, err)
		}
		if err := repo.DeleteRow(ctx, sheets.Purchases, idx); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("delete %d: expected not found, got %v", idx, err)
		}
	}
}

func TestSQLiteRepositoryCommandLog(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	first, err := repo.MarkApplied(ctx, "cmd-1", "split_purchase")
	if err != nil || !first {
		t.Fatalf("first mark: %v %v", first, err)
	}
	second, err := repo.MarkApplied(ctx, "cmd-1", "split_purchase")
	if err != nil || second {
		t.Fatalf("duplicate mark should report false: %v %v", second, err)
	}
	if err := repo.Forget(ctx, "cmd-1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	again, _ := repo.MarkApplied(ctx, "cmd-1", "split_purchase")
	if !again {
		t.Fatalf("expected mark after forget to succeed")
	}
}

func TestSQLiteRepositorySchemaVersion(t *testing.T) {
	repo, path := openTestRepo(t)
	if got := repo.SchemaVersion(); got != 2 {
		t.Fatalf("SchemaVersion() = %d, want 2", got)
	}
	repo.Close()

	status, err := upgradeSchema(path)
	if err != nil {
		t.Fatalf("upgradeSchema() on current schema: %v", err)
	}
	if status.Version != 2 || status.Dirty {
		t.Errorf("status = %+v", status)
	}
}

func TestUpgradeSchemaRefusesDirty(t *testing.T) {
	repo, path := openTestRepo(t)
	if _, err := repo.db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatalf("mark dirty: %v", err)
	}
	repo.Close()

	if _, err := upgradeSchema(path); !errors.Is(err, ErrDirtySchema) {
		t.Fatalf("upgradeSchema() error = %v, want ErrDirtySchema", err)
	}
}
