package backend

import (
	"context"
	"fmt"
	"log/slog"

	"controle/internal/cache"
	"controle/internal/rows"
	"controle/internal/sheets"
	gsheet "controle/internal/sheets/google"
	"controle/internal/sheets/memory"
	"controle/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory logs to logger, or the slog default when it is nil.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		result, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	f.withCache(result, config)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, rows.Headers())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, "schema_version", repo.SchemaVersion())

	return &BackendResult{
		Table:   repo,
		Journal: repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		Ranges:             config.Ranges,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{Table: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store := memory.NewFromFiles(config.DataDirectory, rows.Headers())
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)

	return &BackendResult{Table: store}, nil
}

// withCache wraps the table in a read cache for the reference ranges. Expired
// entries are swept by a cache manager until the backend is closed.
func (f *DefaultFactory) withCache(result *BackendResult, config Config) {
	if config.CacheTTL <= 0 || config.CacheSize <= 0 {
		return
	}
	lru := cache.NewLRUCache[[][]string](config.CacheSize, config.CacheTTL)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(config.CacheTTL)

	result.Table = sheets.NewCachedTable(result.Table, lru)
	next := result.Cleanup
	result.Cleanup = func() error {
		manager.Stop()
		if next != nil {
			return next()
		}
		return nil
	}

	f.logger.Info("Enabled range cache", "ttl", config.CacheTTL, "size", config.CacheSize, "ranges", sheets.ReferenceRanges)
}
