package backend

import (
	"errors"
	"fmt"

	"controle/internal/config"
)

// ErrInvalidConfig wraps every backend configuration problem.
var ErrInvalidConfig = errors.New("invalid backend config")

// Types lists the supported backends in the order they are documented.
var Types = []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, fmt.Errorf("%w: no application config", ErrInvalidConfig)
	}
	bt := BackendType(app.DataBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("%w: unknown backend %q (want one of %v)", ErrInvalidConfig, app.DataBackend, Types)
	}

	cfg := Config{
		Type:                     bt,
		Ranges:                   app.Ranges(),
		SQLiteDBPath:             app.SQLiteDBPath,
		GoogleSpreadsheetID:      app.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: app.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: app.GoogleServiceAccountFile,
		DataDirectory:            app.DataDirectory,
		CacheTTL:                 app.CacheTTL,
		CacheSize:                app.CacheSize,
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = "data"
	}
	return cfg, nil
}

// Validate checks that the settings the chosen backend needs are present.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("%w: sqlite needs a database path", ErrInvalidConfig)
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("%w: sheets needs a spreadsheet id", ErrInvalidConfig)
		}
		if c.Ranges != nil {
			if err := c.Ranges.Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Type)
	}
	return nil
}
