package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"controle/internal/core"
	"controle/internal/log"
	"controle/internal/rows"
	"controle/internal/sheets"
)

// IncomeInput registers a person's income for one competency month. When
// both HourlyRate and Hours are set the amount is their product.
type IncomeInput struct {
	Person     string          `json:"pessoa"`
	Source     string          `json:"fonte"`
	Month      core.Month      `json:"mesAno"`
	BaseAmount decimal.Decimal `json:"valor"`
	HourlyRate decimal.Decimal `json:"valorHora"`
	Hours      decimal.Decimal `json:"horas"`
}

// ExtraIncomeInput adds a one-off amount to the extras of the competency
// month Date falls in.
type ExtraIncomeInput struct {
	Person string          `json:"pessoa"`
	Amount decimal.Decimal `json:"valor"`
	Date   time.Time       `json:"data"`
}

// RegisterIncome appends an income entry. A person has at most one entry
// per competency month.
func (s *Service) RegisterIncome(ctx context.Context, in IncomeInput) (core.IncomeEntry, error) {
	entry := core.IncomeEntry{
		Person:          strings.TrimSpace(in.Person),
		Source:          core.NormalizeSource(in.Source),
		BaseAmount:      in.BaseAmount,
		HourlyRate:      in.HourlyRate,
		CompetencyMonth: in.Month,
	}
	if in.HourlyRate.IsPositive() && in.Hours.IsPositive() {
		entry.BaseAmount = in.HourlyRate.Mul(in.Hours).RoundBank(2)
	}
	if err := entry.Validate(); err != nil {
		return core.IncomeEntry{}, err
	}
	if !entry.BaseAmount.IsPositive() {
		return core.IncomeEntry{}, fmt.Errorf("%w: income must be positive", core.ErrInvalidAmount)
	}

	unlock := s.locks.Lock(incomeRangeKey)
	defer unlock()

	raw, err := s.table.ReadRows(ctx, sheets.Income)
	if err != nil {
		return core.IncomeEntry{}, err
	}
	incomes, _ := rows.Incomes(raw)
	if _, ok := findIncome(incomes, entry.Person, entry.CompetencyMonth); ok {
		return core.IncomeEntry{}, fmt.Errorf("%w: income for %s in %s already registered",
			core.ErrConflict, entry.Person, entry.CompetencyMonth)
	}

	if err := s.table.AppendRows(ctx, sheets.Income, [][]string{rows.IncomeCells(entry)}); err != nil {
		return core.IncomeEntry{}, err
	}
	slog.InfoContext(ctx, "Income registered",
		log.FieldPerson, entry.Person,
		log.FieldMonth, entry.CompetencyMonth.String(),
		log.FieldAmount, core.FormatDecimal(entry.BaseAmount))
	return entry, nil
}

// RegisterExtraIncome accumulates an extra amount on the person's income
// entry for the competency month of the date.
func (s *Service) RegisterExtraIncome(ctx context.Context, in ExtraIncomeInput) (core.IncomeEntry, error) {
	person := strings.TrimSpace(in.Person)
	if person == "" {
		return core.IncomeEntry{}, core.ErrEmptyPerson
	}
	if !in.Amount.IsPositive() {
		return core.IncomeEntry{}, fmt.Errorf("%w: extra must be positive", core.ErrInvalidAmount)
	}
	if in.Date.IsZero() {
		return core.IncomeEntry{}, core.ErrInvalidDate
	}
	month := s.resolver.Resolve(in.Date)

	unlock := s.locks.Lock(incomeKey(core.Fold(person), month.String()))
	defer unlock()

	raw, err := s.table.ReadRows(ctx, sheets.Income)
	if err != nil {
		return core.IncomeEntry{}, err
	}
	incomes, _ := rows.Incomes(raw)
	found, ok := findIncome(incomes, person, month)
	if !ok {
		return core.IncomeEntry{}, fmt.Errorf("%w for %s in %s", core.ErrMissingIncome, person, month)
	}

	updated := found.IncomeEntry
	updated.ExtrasAmount = updated.ExtrasAmount.Add(in.Amount)
	snapshot := raw[found.Index-1]
	cells := withCell(snapshot, rows.IncomeColumns, 5, core.FormatDecimal(updated.ExtrasAmount))
	if err := s.guardedUpdate(ctx, sheets.Income, found.Index, snapshot, cells, rows.IncomeColumns); err != nil {
		return core.IncomeEntry{}, err
	}
	slog.InfoContext(ctx, "Extra income registered",
		log.FieldPerson, person,
		log.FieldMonth, month.String(),
		log.FieldAmount, core.FormatDecimal(in.Amount),
		"extras_total", core.FormatDecimal(updated.ExtrasAmount))
	return updated, nil
}

// findIncome returns the person's entry for month, preferring the salary
// entry when a month has several sources.
func findIncome(incomes []rows.Income, person string, m core.Month) (rows.Income, bool) {
	var first rows.Income
	found := false
	for _, in := range incomes {
		if in.CompetencyMonth != m || !core.EqualFold(in.Person, person) {
			continue
		}
		if core.IsSalary(core.NormalizeSource(in.Source)) {
			return in, true
		}
		if !found {
			first, found = in, true
		}
	}
	return first, found
}

func hasIncome(incomes []rows.Income, person string, m core.Month) bool {
	_, ok := findIncome(incomes, person, m)
	return ok
}

// withCell copies row padded to width and sets column i.
func withCell(row []string, width, i int, value string) []string {
	out := make([]string, width)
	copy(out, row)
	out[i] = value
	return out
}
