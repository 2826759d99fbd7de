package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema is returned when a previous migration stopped halfway.
// The database has to be repaired by hand before the service starts again.
var ErrDirtySchema = errors.New("schema is dirty")

// SchemaStatus is the migration state of a database after upgrade.
type SchemaStatus struct {
	Version uint
	Dirty   bool
}

// upgradeSchema applies every pending migration to the database at dbPath.
// migrate closes the driver it is given, so it gets a connection of its own.
func upgradeSchema(dbPath string) (SchemaStatus, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("migrator: %w", err)
	}
	defer m.Close()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return SchemaStatus{}, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return SchemaStatus{Version: before, Dirty: true}, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaStatus{}, fmt.Errorf("apply migrations: %w", err)
	}

	after, dirty, err := m.Version()
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("read schema version: %w", err)
	}
	return SchemaStatus{Version: after, Dirty: dirty}, nil
}
