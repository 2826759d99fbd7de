package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"controle/internal/config"
	"controle/internal/sheets"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range Types {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("postgres").IsValid() {
		t.Error("postgres should not be valid")
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	app := &config.Config{DataBackend: "oracle"}
	if _, err := FromAppConfig(app); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("FromAppConfig(oracle) error = %v, want ErrInvalidConfig", err)
	}

	app = &config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/x.db",
		CacheTTL:     time.Minute,
		CacheSize:    8,
		CardsRange:   "Cards!A:A",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.CacheSize != 8 {
		t.Errorf("unexpected backend config %+v", cfg)
	}
	if cfg.DataDirectory != "data" {
		t.Errorf("DataDirectory = %q, want data", cfg.DataDirectory)
	}
	if cfg.Ranges[sheets.Cards] != "Cards!A:A" {
		t.Errorf("ranges not carried over: %v", cfg.Ranges)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets without spreadsheet", Config{Type: SheetsBackend}, true},
		{"sheets with bad ranges", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", Ranges: sheets.Ranges{}}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_CreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	result, err := factory.CreateBackend(ctx, Config{
		Type:          MemoryBackend,
		DataDirectory: t.TempDir(),
		CacheTTL:      time.Minute,
		CacheSize:     4,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer result.Close()

	if _, ok := result.Table.(*sheets.CachedTable); !ok {
		t.Errorf("expected cached table, got %T", result.Table)
	}
	if result.Journal != nil {
		t.Error("memory backend should not have a journal")
	}
	cards, err := result.Table.ReadRows(ctx, sheets.Cards)
	if err != nil {
		t.Fatalf("read cards: %v", err)
	}
	if len(cards) < 2 {
		t.Errorf("expected header and seeded cards, got %v", cards)
	}
}

func TestFactory_CreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	result, err := factory.CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "controle.db"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer result.Close()

	if result.Journal == nil {
		t.Fatal("sqlite backend should expose the command journal")
	}
	if _, ok := result.Table.(*sheets.CachedTable); ok {
		t.Error("cache should be disabled without TTL and size")
	}
	rows, err := result.Table.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected only the header row, got %v", rows)
	}
}
