// Package backend builds the row table the ledger runs on: sqlite, a Google
// spreadsheet or seeded memory, optionally behind a read cache.
package backend

import (
	"context"
	"time"

	"controle/internal/sheets"
)

// Journal records applied command ids. Only the sqlite backend has one.
type Journal interface {
	MarkApplied(ctx context.Context, commandID, kind string) (bool, error)
	Forget(ctx context.Context, commandID string) error
}

// BackendResult is an opened backend. Close releases whatever it holds.
type BackendResult struct {
	Table   sheets.Table
	Journal Journal
	Cleanup func() error
}

func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects and parameterizes a backend. Fields that do not apply to
// Type are ignored.
type Config struct {
	Type   BackendType
	Ranges sheets.Ranges

	SQLiteDBPath string

	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Seed files for the memory backend.
	DataDirectory string

	// Read cache; disabled when either is zero.
	CacheTTL  time.Duration
	CacheSize int
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	for _, t := range Types {
		if bt == t {
			return true
		}
	}
	return false
}
