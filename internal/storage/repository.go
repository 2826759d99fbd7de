package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"controle/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores every logical range as an ordered list of rows.
// Row order is insertion order, so row indices behave like spreadsheet rows.
type SQLiteRepository struct {
	db     *sql.DB
	schema SchemaStatus
}

var _ sheets.Table = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database, runs the
// migrations and writes the header row of every empty range.
func NewSQLiteRepository(dbPath string, headers map[sheets.RangeID][]string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer; one connection keeps index lookups and
	// writes from interleaving.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := upgradeSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Database schema ready", "path", dbPath, "version", schema.Version)

	repo := &SQLiteRepository{db: db, schema: schema}
	if err := repo.seedHeaders(context.Background(), headers); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// SchemaVersion reports the migration version the database was left at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schema.Version }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) seedHeaders(ctx context.Context, headers map[sheets.RangeID][]string) error {
	for id, h := range headers {
		var n int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_rows WHERE range_id = ?`, string(id)).Scan(&n); err != nil {
			return fmt.Errorf("count %s rows: %w", id, err)
		}
		if n > 0 {
			continue
		}
		if err := r.AppendRows(ctx, id, [][]string{h}); err != nil {
			return fmt.Errorf("seed %s header: %w", id, err)
		}
		slog.InfoContext(ctx, "Seeded range header", "range", id)
	}
	return nil
}

func (r *SQLiteRepository) ReadRows(ctx context.Context, rng sheets.RangeID) ([][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE range_id = ? ORDER BY id`, string(rng))
	if err != nil {
		return nil, sheets.Unavailable("read", rng, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, sheets.Unavailable("read", rng, err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, sheets.Unavailable("read", rng, fmt.Errorf("decode cells: %w", err))
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, sheets.Unavailable("read", rng, err)
	}
	return out, nil
}

// AppendRows inserts all rows in one transaction.
func (r *SQLiteRepository) AppendRows(ctx context.Context, rng sheets.RangeID, rows [][]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return sheets.Unavailable("append", rng, err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		cells, err := encodeCells(row)
		if err != nil {
			return sheets.Unavailable("append", rng, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sheet_rows (range_id, cells) VALUES (?, ?)`, string(rng), cells); err != nil {
			return sheets.Unavailable("append", rng, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return sheets.Unavailable("append", rng, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateRow(ctx context.Context, rng sheets.RangeID, index int, row []string) error {
	if index < 2 {
		return sheets.RowNotFound(rng, index)
	}
	cells, err := encodeCells(row)
	if err != nil {
		return sheets.Unavailable("update", rng, err)
	}
	return r.withRowID(ctx, rng, index, "update", func(tx *sql.Tx, id int64) error {
		_, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET cells = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, cells, id)
		return err
	})
}

func (r *SQLiteRepository) DeleteRow(ctx context.Context, rng sheets.RangeID, index int) error {
	if index < 2 {
		return sheets.RowNotFound(rng, index)
	}
	return r.withRowID(ctx, rng, index, "delete", func(tx *sql.Tx, id int64) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE id = ?`, id)
		return err
	})
}

// withRowID resolves the 1-based index to a row id and runs fn in the same
// transaction.
func (r *SQLiteRepository) withRowID(ctx context.Context, rng sheets.RangeID, index int, op string, fn func(*sql.Tx, int64) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return sheets.Unavailable(op, rng, err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sheet_rows WHERE range_id = ? ORDER BY id LIMIT 1 OFFSET ?`,
		string(rng), index-1).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return sheets.RowNotFound(rng, index)
	}
	if err != nil {
		return sheets.Unavailable(op, rng, err)
	}
	if err := fn(tx, id); err != nil {
		return sheets.Unavailable(op, rng, err)
	}
	if err := tx.Commit(); err != nil {
		return sheets.Unavailable(op, rng, err)
	}
	return nil
}

// MarkApplied records a queued command id. It reports false when the id was
// already recorded.
func (r *SQLiteRepository) MarkApplied(ctx context.Context, commandID, kind string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO applied_commands (command_id, kind) VALUES (?, ?)`, commandID, kind)
	if err != nil {
		return false, fmt.Errorf("record command %s: %w", commandID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record command %s: %w", commandID, err)
	}
	return n == 1, nil
}

// Forget removes a command id, used when applying the command failed.
func (r *SQLiteRepository) Forget(ctx context.Context, commandID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM applied_commands WHERE command_id = ?`, commandID); err != nil {
		return fmt.Errorf("forget command %s: %w", commandID, err)
	}
	return nil
}

func encodeCells(row []string) (string, error) {
	if row == nil {
		row = []string{}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(b), nil
}
