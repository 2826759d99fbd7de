// Package rows maps raw spreadsheet rows to typed domain values and back.
//
// Every mapper skips the header row, tolerates short rows, and remembers the
// 1-based row index (header included) so update and delete paths can address
// the row they came from.
package rows

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"controle/internal/core"
	"controle/internal/sheets"
)

// Column counts of the three row families.
const (
	IncomeColumns   = 6
	FixedColumns    = 8
	PurchaseColumns = 10
)

// Headers written when a range is created empty.
var (
	IncomeHeader   = []string{"Pessoa", "Fonte", "Valor", "MesAno", "ValorHora", "Extras"}
	FixedHeader    = []string{"Id", "Tipo", "MesAno", "Pessoa", "Vencimento", "Valor", "Pago", "Dividido"}
	PurchaseHeader = []string{"IdLan", "FormaPgto", "Parcela", "Compra", "Valor", "MesAno", "Data", "Pessoa", "Fonte", "Cartao"}
)

// Headers returns the header row of every logical range, used to seed empty
// stores.
func Headers() map[sheets.RangeID][]string {
	return map[sheets.RangeID][]string{
		sheets.Income:     IncomeHeader,
		sheets.Fixed:      FixedHeader,
		sheets.Purchases:  PurchaseHeader,
		sheets.Cards:      {"Cartao"},
		sheets.FixedTypes: {"Tipo"},
	}
}

type (
	Income struct {
		Index int
		core.IncomeEntry
	}

	Fixed struct {
		Index int
		core.FixedExpense
	}

	Purchase struct {
		Index int
		core.PurchaseLine
	}

	// Report counts rows the mappers could not use.
	Report struct {
		BadDate  int
		BadMonth int
	}
)

func (r Report) Skipped() int { return r.BadDate + r.BadMonth }

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2/1/2006",
	"2006-01-02 15:04:05",
}

// ParseDate accepts the date layouts found in the sheets.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders dates the way purchases are written.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// ParseFlag reads the "Sim"/"Não" columns.
func ParseFlag(s string) bool {
	switch core.Fold(s) {
	case "sim", "s", "true", "yes", "y", "x", "1", "pago":
		return true
	}
	return false
}

func FormatFlag(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Pad returns row extended with empty cells up to n columns.
func Pad(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

// Incomes maps the income range. Rows without a readable month are skipped.
func Incomes(raw [][]string) ([]Income, Report) {
	var out []Income
	var rep Report
	for i := 1; i < len(raw); i++ {
		row := raw[i]
		if blank(row) {
			continue
		}
		month, err := core.ParseMonth(cell(row, 3))
		if err != nil {
			rep.BadMonth++
			continue
		}
		out = append(out, Income{
			Index: i + 1,
			IncomeEntry: core.IncomeEntry{
				Person:          cell(row, 0),
				Source:          cell(row, 1),
				BaseAmount:      core.ParseDecimal(cell(row, 2)),
				CompetencyMonth: month,
				HourlyRate:      core.ParseDecimal(cell(row, 4)),
				ExtrasAmount:    core.ParseDecimal(cell(row, 5)),
			},
		})
	}
	return out, rep
}

// FixedExpenses maps the fixed-expense range. A row with an unreadable month
// is kept, so it can still be addressed by id, but never matches a period.
func FixedExpenses(raw [][]string) ([]Fixed, Report) {
	var out []Fixed
	var rep Report
	for i := 1; i < len(raw); i++ {
		row := raw[i]
		if blank(row) {
			continue
		}
		month, err := core.ParseMonth(cell(row, 2))
		if err != nil {
			rep.BadMonth++
		}
		var amount decimal.NullDecimal
		if v, ok := core.ParseDecimalStrict(cell(row, 5)); ok {
			amount = decimal.NewNullDecimal(v)
		}
		out = append(out, Fixed{
			Index: i + 1,
			FixedExpense: core.FixedExpense{
				ID:              cell(row, 0),
				Type:            cell(row, 1),
				CompetencyMonth: month,
				Person:          cell(row, 3),
				DueDate:         cell(row, 4),
				Amount:          amount,
				Paid:            ParseFlag(cell(row, 6)),
				Split:           ParseFlag(cell(row, 7)),
			},
		})
	}
	return out, rep
}

// Purchases maps the purchase range. Rows whose date cannot be read are
// skipped; an unreadable month leaves CompetencyMonth zero.
func Purchases(raw [][]string) ([]Purchase, Report) {
	var out []Purchase
	var rep Report
	for i := 1; i < len(raw); i++ {
		row := raw[i]
		if blank(row) {
			continue
		}
		date, ok := ParseDate(cell(row, 6))
		if !ok {
			rep.BadDate++
			continue
		}
		month, err := core.ParseMonth(cell(row, 5))
		if err != nil {
			rep.BadMonth++
		}
		id, _ := strconv.ParseInt(cell(row, 0), 10, 64)
		pm, err := core.NormalizePaymentMethod(cell(row, 1))
		if err != nil {
			pm = core.PaymentMethod(cell(row, 1))
		}
		out = append(out, Purchase{
			Index: i + 1,
			PurchaseLine: core.PurchaseLine{
				LedgerID:         id,
				PaymentMethod:    pm,
				InstallmentLabel: cell(row, 2),
				Description:      cell(row, 3),
				Amount:           core.ParseDecimal(cell(row, 4)),
				CompetencyMonth:  month,
				Date:             date,
				Person:           cell(row, 7),
				Source:           core.NormalizeSource(cell(row, 8)),
				Card:             cell(row, 9),
			},
		})
	}
	return out, rep
}

// Labels maps a single-column reference range (cards, fixed types),
// dropping the header, blanks and duplicates.
func Labels(raw [][]string) []string {
	var out []string
	seen := make(map[string]bool)
	for i := 1; i < len(raw); i++ {
		v := cell(raw[i], 0)
		if v == "" || seen[core.Fold(v)] {
			continue
		}
		seen[core.Fold(v)] = true
		out = append(out, v)
	}
	return out
}

func IncomeCells(e core.IncomeEntry) []string {
	return []string{
		e.Person,
		e.Source,
		core.FormatDecimal(e.BaseAmount),
		e.CompetencyMonth.String(),
		core.FormatDecimal(e.HourlyRate),
		core.FormatDecimal(e.ExtrasAmount),
	}
}

func FixedCells(f core.FixedExpense) []string {
	amount := ""
	if f.Amount.Valid {
		amount = core.FormatDecimal(f.Amount.Decimal)
	}
	return []string{
		f.ID,
		f.Type,
		f.CompetencyMonth.String(),
		f.Person,
		f.DueDate,
		amount,
		FormatFlag(f.Paid),
		FormatFlag(f.Split),
	}
}

func PurchaseCells(l core.PurchaseLine) []string {
	return []string{
		strconv.FormatInt(l.LedgerID, 10),
		string(l.PaymentMethod),
		l.InstallmentLabel,
		l.Description,
		core.FormatDecimal(l.Amount),
		l.CompetencyMonth.String(),
		FormatDate(l.Date),
		l.Person,
		l.Source,
		l.Card,
	}
}
