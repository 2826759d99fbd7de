package sheets

import (
	"context"
	"fmt"
	"strings"

	"controle/internal/core"
)

// RangeID names a logical range of the workbook.
type RangeID string

const (
	Income     RangeID = "income"
	Fixed      RangeID = "fixed"
	Purchases  RangeID = "purchases"
	Cards      RangeID = "cards"
	FixedTypes RangeID = "fixed_types"
)

// AllRanges lists every logical range in a stable order.
var AllRanges = []RangeID{Income, Fixed, Purchases, Cards, FixedTypes}

// Ports for outbound adapters.
type (
	// Table is a row store addressed by logical range. Row indices are
	// 1-based and count the header row.
	Table interface {
		ReadRows(ctx context.Context, rng RangeID) ([][]string, error)
		AppendRows(ctx context.Context, rng RangeID, rows [][]string) error
		UpdateRow(ctx context.Context, rng RangeID, index int, row []string) error
		DeleteRow(ctx context.Context, rng RangeID, index int) error
	}

	// Ranges maps logical ranges to A1 notation ("Entradas!A:F").
	Ranges map[RangeID]string
)

func DefaultRanges() Ranges {
	return Ranges{
		Income:     "Entradas!A:F",
		Fixed:      "GastosFixos!A:H",
		Purchases:  "Controle!A:J",
		Cards:      "Cartoes!A:A",
		FixedTypes: "TiposGastos!A:A",
	}
}

// A1 returns the configured A1 range.
func (r Ranges) A1(id RangeID) (string, error) {
	a1, ok := r[id]
	if !ok || strings.TrimSpace(a1) == "" {
		return "", fmt.Errorf("%w: no range configured for %q", core.ErrValidation, id)
	}
	return a1, nil
}

// Sheet returns the sheet name of a range ("Entradas" for "Entradas!A:F").
func (r Ranges) Sheet(id RangeID) string {
	a1 := r[id]
	if i := strings.Index(a1, "!"); i >= 0 {
		return strings.Trim(a1[:i], "'")
	}
	return a1
}

// Columns returns the first and last column letters of a range.
func (r Ranges) Columns(id RangeID) (string, string) {
	a1 := r[id]
	if i := strings.Index(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	first, last, ok := strings.Cut(a1, ":")
	if !ok {
		last = first
	}
	return strings.TrimRight(first, "0123456789"), strings.TrimRight(last, "0123456789")
}

// Validate checks that every logical range is configured.
func (r Ranges) Validate() error {
	for _, id := range AllRanges {
		if _, err := r.A1(id); err != nil {
			return err
		}
	}
	return nil
}

// Unavailable wraps an adapter failure as core.ErrStorageUnavailable.
func Unavailable(op string, rng RangeID, err error) error {
	return fmt.Errorf("%w: %s %s: %w", core.ErrStorageUnavailable, op, rng, err)
}

// RowNotFound reports an index outside the range.
func RowNotFound(rng RangeID, index int) error {
	return fmt.Errorf("%w: row %d in %s", core.ErrNotFound, index, rng)
}
