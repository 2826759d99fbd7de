package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"controle/internal/core"
	"controle/internal/log"
	"controle/internal/rows"
	"controle/internal/sheets"
)

// OutcomeStatus is the per-item result of a batch operation.
type OutcomeStatus string

const (
	OutcomeInserted OutcomeStatus = "inserted"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeInvalid  OutcomeStatus = "invalid"
)

type (
	FixedExpenseInput struct {
		Type    string              `json:"tipo"`
		Month   core.Month          `json:"mesAno"`
		Person  string              `json:"pessoa"`
		DueDate string              `json:"vencimento"`
		Amount  decimal.NullDecimal `json:"valor"`
	}

	GenerateOutcome struct {
		Index  int           `json:"indice"`
		Status OutcomeStatus `json:"status"`
		ID     string        `json:"id,omitempty"`
		Reason string        `json:"motivo,omitempty"`
	}

	CopyOutcome struct {
		Person string        `json:"pessoa"`
		Status OutcomeStatus `json:"status"`
		Copied int           `json:"copiados"`
		Reason string        `json:"motivo,omitempty"`
	}

	// FixedPatch changes selected fields of a fixed expense. Nil fields are
	// left alone.
	FixedPatch struct {
		Amount  *decimal.Decimal `json:"valor,omitempty"`
		Paid    *bool            `json:"pago,omitempty"`
		Split   *bool            `json:"dividido,omitempty"`
		DueDate *string          `json:"vencimento,omitempty"`
	}

	FixedSplitResult struct {
		Original    core.FixedExpense `json:"original"`
		Counterpart core.FixedExpense `json:"contraparte"`
	}
)

func (p FixedPatch) empty() bool {
	return p.Amount == nil && p.Paid == nil && p.Split == nil && p.DueDate == nil
}

func fixedIdentity(typ string, m core.Month, person string) string {
	return core.Fold(typ) + "|" + m.String() + "|" + core.Fold(person)
}

// GenerateFixedExpenses inserts a batch of fixed expenses. Each item is
// inserted, skipped when Type+Month+Person already exists (in the store or
// earlier in the batch) or reported invalid. Known types are enforced when
// the types range is not empty.
func (s *Service) GenerateFixedExpenses(ctx context.Context, batch []FixedExpenseInput) ([]GenerateOutcome, error) {
	unlock := s.locks.Lock(fixedRangeKey)
	defer unlock()

	var fixedRaw, typesRaw [][]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fixedRaw, err = s.table.ReadRows(gctx, sheets.Fixed)
		return err
	})
	g.Go(func() (err error) {
		typesRaw, err = s.table.ReadRows(gctx, sheets.FixedTypes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	existing, _ := rows.FixedExpenses(fixedRaw)
	taken := make(map[string]bool, len(existing))
	for _, f := range existing {
		taken[fixedIdentity(f.Type, f.CompetencyMonth, f.Person)] = true
	}
	known := make(map[string]bool)
	for _, t := range rows.Labels(typesRaw) {
		known[core.Fold(t)] = true
	}

	next := maxFixedID(existing) + 1
	outcomes := make([]GenerateOutcome, 0, len(batch))
	var cells [][]string
	for i, in := range batch {
		f := core.FixedExpense{
			Type:            strings.TrimSpace(in.Type),
			CompetencyMonth: in.Month,
			Person:          strings.TrimSpace(in.Person),
			DueDate:         strings.TrimSpace(in.DueDate),
			Amount:          in.Amount,
		}
		if err := f.Validate(); err != nil {
			outcomes = append(outcomes, GenerateOutcome{Index: i, Status: OutcomeInvalid, Reason: err.Error()})
			continue
		}
		if len(known) > 0 && !known[core.Fold(f.Type)] {
			outcomes = append(outcomes, GenerateOutcome{Index: i, Status: OutcomeInvalid,
				Reason: fmt.Sprintf("%v: unknown fixed expense type %q", core.ErrValidation, f.Type)})
			continue
		}
		key := fixedIdentity(f.Type, f.CompetencyMonth, f.Person)
		if taken[key] {
			outcomes = append(outcomes, GenerateOutcome{Index: i, Status: OutcomeSkipped,
				Reason: fmt.Sprintf("%v: %s already registered for %s in %s", core.ErrConflict, f.Type, f.Person, f.CompetencyMonth)})
			continue
		}
		taken[key] = true
		f.ID = strconv.FormatInt(next, 10)
		next++
		cells = append(cells, rows.FixedCells(f))
		outcomes = append(outcomes, GenerateOutcome{Index: i, Status: OutcomeInserted, ID: f.ID})
	}

	if len(cells) > 0 {
		if err := s.table.AppendRows(ctx, sheets.Fixed, cells); err != nil {
			return nil, err
		}
	}
	slog.InfoContext(ctx, "Fixed expenses generated",
		"requested", len(batch), "inserted", len(cells))
	return outcomes, nil
}

// CopyFixedExpensesForward copies each person's fixed expenses of from into
// to. A person who already has rows in to is skipped. Due dates move by the
// month distance; paid and split flags start cleared.
func (s *Service) CopyFixedExpensesForward(ctx context.Context, from, to core.Month) ([]CopyOutcome, error) {
	if from.IsZero() || to.IsZero() {
		return nil, core.ErrInvalidMonth
	}
	if from == to {
		return nil, fmt.Errorf("%w: source and target month are the same", core.ErrValidation)
	}
	shift := (to.Year-from.Year)*12 + to.Month - from.Month

	unlock := s.locks.Lock(fixedRangeKey)
	defer unlock()

	raw, err := s.table.ReadRows(ctx, sheets.Fixed)
	if err != nil {
		return nil, err
	}
	existing, _ := rows.FixedExpenses(raw)

	present := make(map[string]bool)
	var order []string
	byPerson := make(map[string][]core.FixedExpense)
	names := make(map[string]string)
	for _, f := range existing {
		key := core.Fold(f.Person)
		switch f.CompetencyMonth {
		case to:
			present[key] = true
		case from:
			if _, ok := byPerson[key]; !ok {
				order = append(order, key)
				names[key] = f.Person
			}
			byPerson[key] = append(byPerson[key], f.FixedExpense)
		}
	}

	next := maxFixedID(existing) + 1
	var cells [][]string
	outcomes := make([]CopyOutcome, 0, len(order))
	for _, key := range order {
		if present[key] {
			outcomes = append(outcomes, CopyOutcome{Person: names[key], Status: OutcomeSkipped,
				Reason: fmt.Sprintf("%v: %s already has entries in %s", core.ErrConflict, names[key], to)})
			continue
		}
		for _, f := range byPerson[key] {
			cells = append(cells, rows.FixedCells(core.FixedExpense{
				ID:              strconv.FormatInt(next, 10),
				Type:            f.Type,
				CompetencyMonth: to,
				Person:          f.Person,
				DueDate:         shiftDueDate(f.DueDate, shift),
				Amount:          f.Amount,
			}))
			next++
		}
		outcomes = append(outcomes, CopyOutcome{Person: names[key], Status: OutcomeInserted, Copied: len(byPerson[key])})
	}

	if len(cells) > 0 {
		if err := s.table.AppendRows(ctx, sheets.Fixed, cells); err != nil {
			return nil, err
		}
	}
	slog.InfoContext(ctx, "Fixed expenses copied forward",
		"from", from.String(), "to", to.String(), "rows", len(cells))
	return outcomes, nil
}

// UpdateFixedExpense applies patch to the fixed expense with id.
func (s *Service) UpdateFixedExpense(ctx context.Context, id string, patch FixedPatch) (core.FixedExpense, error) {
	id = strings.TrimSpace(id)
	if patch.empty() {
		return core.FixedExpense{}, fmt.Errorf("%w: nothing to update", core.ErrValidation)
	}
	if patch.Amount != nil && patch.Amount.IsNegative() {
		return core.FixedExpense{}, core.ErrInvalidAmount
	}

	unlock := s.locks.Lock(fixedRangeKey, fixedKey(id))
	defer unlock()

	raw, found, err := s.findFixed(ctx, id)
	if err != nil {
		return core.FixedExpense{}, err
	}
	updated := found.FixedExpense
	if patch.Amount != nil {
		updated.Amount = decimal.NewNullDecimal(*patch.Amount)
	}
	if patch.Paid != nil {
		updated.Paid = *patch.Paid
	}
	if patch.Split != nil {
		updated.Split = *patch.Split
	}
	if patch.DueDate != nil {
		updated.DueDate = strings.TrimSpace(*patch.DueDate)
	}

	if err := s.guardedUpdate(ctx, sheets.Fixed, found.Index, raw[found.Index-1],
		fixedCells(raw[found.Index-1], updated), rows.FixedColumns); err != nil {
		return core.FixedExpense{}, err
	}
	slog.InfoContext(ctx, "Fixed expense updated", log.FieldFixedID, id)
	return updated, nil
}

// SplitFixedExpense moves amount of the fixed expense to counterpart as a
// new row. Both rows are flagged split. The counterpart row is appended
// before the original is reduced and removed if the reduction fails.
func (s *Service) SplitFixedExpense(ctx context.Context, id, counterpart string, amount decimal.Decimal) (FixedSplitResult, error) {
	id = strings.TrimSpace(id)
	counterpart = strings.TrimSpace(counterpart)
	if counterpart == "" {
		return FixedSplitResult{}, core.ErrEmptyPerson
	}
	if !amount.IsPositive() {
		return FixedSplitResult{}, fmt.Errorf("%w: split amount must be positive", core.ErrInvalidAmount)
	}

	unlock := s.locks.Lock(fixedRangeKey, fixedKey(id))
	defer unlock()

	raw, found, err := s.findFixed(ctx, id)
	if err != nil {
		return FixedSplitResult{}, err
	}
	original := found.FixedExpense
	if !original.Amount.Valid || !amount.LessThan(original.Amount.Decimal) {
		return FixedSplitResult{}, fmt.Errorf("%w: split amount must be less than the expense amount", core.ErrInvalidAmount)
	}
	original.Amount = decimal.NewNullDecimal(original.Amount.Decimal.Sub(amount))
	original.Split = true

	existing, _ := rows.FixedExpenses(raw)
	mirror := core.FixedExpense{
		ID:              strconv.FormatInt(maxFixedID(existing)+1, 10),
		Type:            original.Type,
		CompetencyMonth: original.CompetencyMonth,
		Person:          counterpart,
		DueDate:         original.DueDate,
		Amount:          decimal.NewNullDecimal(amount),
		Split:           true,
	}

	if err := s.table.AppendRows(ctx, sheets.Fixed, [][]string{rows.FixedCells(mirror)}); err != nil {
		return FixedSplitResult{}, err
	}
	if err := s.guardedUpdate(ctx, sheets.Fixed, found.Index, raw[found.Index-1],
		fixedCells(raw[found.Index-1], original), rows.FixedColumns); err != nil {
		return FixedSplitResult{}, s.undoAppend(ctx, sheets.Fixed, err, func(row []string) bool {
			return len(row) > 0 && strings.TrimSpace(row[0]) == mirror.ID
		})
	}
	slog.InfoContext(ctx, "Fixed expense split",
		log.FieldFixedID, id,
		"counterpart_id", mirror.ID,
		log.FieldPerson, counterpart,
		log.FieldAmount, core.FormatDecimal(amount))
	return FixedSplitResult{Original: original, Counterpart: mirror}, nil
}

// DeleteFixedExpense removes the fixed expense with id.
func (s *Service) DeleteFixedExpense(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	unlock := s.locks.Lock(fixedRangeKey, fixedKey(id))
	defer unlock()

	_, found, err := s.findFixed(ctx, id)
	if err != nil {
		return err
	}
	if err := s.table.DeleteRow(ctx, sheets.Fixed, found.Index); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Fixed expense deleted", log.FieldFixedID, id)
	return nil
}

func (s *Service) findFixed(ctx context.Context, id string) ([][]string, rows.Fixed, error) {
	if id == "" {
		return nil, rows.Fixed{}, fmt.Errorf("%w: fixed expense id required", core.ErrValidation)
	}
	raw, err := s.table.ReadRows(ctx, sheets.Fixed)
	if err != nil {
		return nil, rows.Fixed{}, err
	}
	existing, _ := rows.FixedExpenses(raw)
	for _, f := range existing {
		if f.ID == id {
			return raw, f, nil
		}
	}
	return nil, rows.Fixed{}, fmt.Errorf("%w: fixed expense %s", core.ErrNotFound, id)
}

// fixedCells renders f, keeping the stored month text when the row's month
// could not be read.
func fixedCells(stored []string, f core.FixedExpense) []string {
	cells := rows.FixedCells(f)
	if f.CompetencyMonth.IsZero() && len(stored) > 2 {
		cells[2] = stored[2]
	}
	return cells
}

func maxFixedID(existing []rows.Fixed) int64 {
	var max int64
	for _, f := range existing {
		if id, err := strconv.ParseInt(f.ID, 10, 64); err == nil && id > max {
			max = id
		}
	}
	return max
}

// shiftDueDate moves a due date by n months, keeping its layout. Values
// that are not dates (a bare day number, free text) are kept as is.
func shiftDueDate(s string, n int) string {
	d, ok := rows.ParseDate(s)
	if !ok || n == 0 {
		return s
	}
	layout := "2006-01-02"
	if strings.Contains(s, "/") {
		layout = "02/01/2006"
	}
	return core.AddMonths(d, n).Format(layout)
}
