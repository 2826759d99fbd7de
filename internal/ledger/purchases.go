package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"controle/internal/core"
	"controle/internal/log"
	"controle/internal/rows"
	"controle/internal/sheets"
)

// PurchaseResult is the outcome of registering a purchase.
type PurchaseResult struct {
	LedgerID int64               `json:"idLan"`
	Lines    []core.PurchaseLine `json:"linhas"`
}

// EditPurchaseInput rewrites one purchase line. The line is located by
// LedgerID and, for installment purchases, InstallmentLabel.
type EditPurchaseInput struct {
	LedgerID         int64           `json:"idLan"`
	InstallmentLabel string          `json:"parcela"`
	PaymentMethod    string          `json:"formaPgto"`
	Description      string          `json:"compra"`
	Amount           decimal.Decimal `json:"valor"`
	Date             time.Time       `json:"data"`
	Month            core.Month      `json:"mesAno"`
	Person           string          `json:"pessoa"`
	Source           string          `json:"fonte"`
	Card             string          `json:"cartao"`
}

// SplitPurchaseInput moves Share of a purchase to Counterpart.
type SplitPurchaseInput struct {
	LedgerID    int64           `json:"idLan"`
	Counterpart string          `json:"pessoa"`
	Share       decimal.Decimal `json:"valor"`
}

// SplitPurchaseResult lists the rewritten lines and the counterpart's new
// lines.
type SplitPurchaseResult struct {
	LedgerID            int64               `json:"idLan"`
	CounterpartLedgerID int64               `json:"idLanContraparte"`
	Updated             []core.PurchaseLine `json:"atualizadas"`
	Created             []core.PurchaseLine `json:"criadas"`
}

// RegisterPurchase expands p into installment lines under a new ledger id
// and appends them in one call. The person must have income in the
// competency month of the purchase date.
func (s *Service) RegisterPurchase(ctx context.Context, p core.Purchase) (PurchaseResult, error) {
	if err := p.Validate(); err != nil {
		return PurchaseResult{}, err
	}
	month := s.resolver.Resolve(p.Date)

	incomeRaw, err := s.table.ReadRows(ctx, sheets.Income)
	if err != nil {
		return PurchaseResult{}, err
	}
	incomes, _ := rows.Incomes(incomeRaw)
	if !hasIncome(incomes, p.Person, month) {
		return PurchaseResult{}, fmt.Errorf("%w for %s in %s", core.ErrMissingIncome, p.Person, month)
	}

	unlock := s.locks.Lock(purchaseRangeKey)
	defer unlock()

	raw, err := s.table.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		return PurchaseResult{}, err
	}
	id := maxLedgerID(raw) + 1
	lines, err := s.expander.Expand(p, id)
	if err != nil {
		return PurchaseResult{}, err
	}

	cells := make([][]string, len(lines))
	for i, l := range lines {
		cells[i] = rows.PurchaseCells(l)
	}
	if err := s.table.AppendRows(ctx, sheets.Purchases, cells); err != nil {
		return PurchaseResult{}, err
	}
	slog.InfoContext(ctx, "Purchase registered",
		log.FieldLedgerID, id,
		log.FieldPerson, p.Person,
		log.FieldAmount, core.FormatDecimal(p.Total),
		"installments", len(lines))
	return PurchaseResult{LedgerID: id, Lines: lines}, nil
}

// EditPurchase rewrites the located line in place.
func (s *Service) EditPurchase(ctx context.Context, in EditPurchaseInput) (core.PurchaseLine, error) {
	line, err := s.editedLine(in)
	if err != nil {
		return core.PurchaseLine{}, err
	}

	// Deletes shift row indices, so every index-addressed write holds the
	// range key as well.
	unlock := s.locks.Lock(purchaseRangeKey, purchaseKey(in.LedgerID))
	defer unlock()

	raw, err := s.table.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		return core.PurchaseLine{}, err
	}
	purchases, _ := rows.Purchases(raw)
	target, ok := locateLine(purchases, in.LedgerID, in.InstallmentLabel)
	if !ok {
		return core.PurchaseLine{}, fmt.Errorf("%w: purchase %d %s", core.ErrNotFound, in.LedgerID, in.InstallmentLabel)
	}
	line.InstallmentLabel = target.InstallmentLabel

	if err := s.guardedUpdate(ctx, sheets.Purchases, target.Index, raw[target.Index-1],
		rows.PurchaseCells(line), rows.PurchaseColumns); err != nil {
		return core.PurchaseLine{}, err
	}
	slog.InfoContext(ctx, "Purchase edited",
		log.FieldLedgerID, in.LedgerID,
		"installment", line.InstallmentLabel,
		log.FieldPerson, line.Person)
	return line, nil
}

func (s *Service) editedLine(in EditPurchaseInput) (core.PurchaseLine, error) {
	if in.LedgerID <= 0 {
		return core.PurchaseLine{}, fmt.Errorf("%w: ledger id required", core.ErrValidation)
	}
	if strings.TrimSpace(in.Person) == "" {
		return core.PurchaseLine{}, core.ErrEmptyPerson
	}
	if strings.TrimSpace(in.Description) == "" {
		return core.PurchaseLine{}, core.ErrEmptyDescription
	}
	if !in.Amount.IsPositive() {
		return core.PurchaseLine{}, fmt.Errorf("%w: amount must be positive", core.ErrInvalidAmount)
	}
	if in.Date.IsZero() {
		return core.PurchaseLine{}, core.ErrInvalidDate
	}
	pm, err := core.NormalizePaymentMethod(in.PaymentMethod)
	if err != nil {
		return core.PurchaseLine{}, err
	}
	month := in.Month
	if month.IsZero() {
		month = s.resolver.Resolve(in.Date)
	}
	return core.PurchaseLine{
		LedgerID:         in.LedgerID,
		PaymentMethod:    pm,
		InstallmentLabel: strings.TrimSpace(in.InstallmentLabel),
		Description:      strings.TrimSpace(in.Description),
		Amount:           in.Amount,
		CompetencyMonth:  month,
		Date:             core.DateOnly(in.Date),
		Person:           strings.TrimSpace(in.Person),
		Source:           core.NormalizeSource(in.Source),
		Card:             strings.TrimSpace(in.Card),
	}, nil
}

// SplitPurchase moves share of the purchase to counterpart: every
// installment is reduced by its part of the share and a mirror line is
// appended for the counterpart under a new ledger id. The mirror lines are
// written first and removed again if the reduction fails, so a failed split
// never loses part of the amount.
func (s *Service) SplitPurchase(ctx context.Context, in SplitPurchaseInput) (SplitPurchaseResult, error) {
	counterpart := strings.TrimSpace(in.Counterpart)
	if counterpart == "" {
		return SplitPurchaseResult{}, core.ErrEmptyPerson
	}
	if !in.Share.IsPositive() {
		return SplitPurchaseResult{}, fmt.Errorf("%w: share must be positive", core.ErrInvalidAmount)
	}

	unlock := s.locks.Lock(purchaseRangeKey, purchaseKey(in.LedgerID))
	defer unlock()

	raw, err := s.table.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		return SplitPurchaseResult{}, err
	}
	purchases, _ := rows.Purchases(raw)
	lines := linesOf(purchases, in.LedgerID)
	if len(lines) == 0 {
		return SplitPurchaseResult{}, fmt.Errorf("%w: purchase %d", core.ErrNotFound, in.LedgerID)
	}

	var total decimal.Decimal
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	if !in.Share.LessThan(total) {
		return SplitPurchaseResult{}, fmt.Errorf("%w: share %s must be less than total %s",
			core.ErrInvalidAmount, core.FormatDecimal(in.Share), core.FormatDecimal(total))
	}

	parts := splitEvenly(in.Share, len(lines))
	newID := maxLedgerID(raw) + 1
	res := SplitPurchaseResult{LedgerID: in.LedgerID, CounterpartLedgerID: newID}
	updates := make([]rowUpdate, len(lines))
	created := make([][]string, len(lines))
	for i, l := range lines {
		remaining := l.Amount.Sub(parts[i])
		if !remaining.IsPositive() {
			return SplitPurchaseResult{}, fmt.Errorf("%w: installment %s would drop to %s",
				core.ErrInvalidAmount, l.InstallmentLabel, core.FormatDecimal(remaining))
		}
		snapshot := raw[l.Index-1]
		updates[i] = rowUpdate{
			index:    l.Index,
			snapshot: snapshot,
			cells:    withCell(snapshot, rows.PurchaseColumns, 4, core.FormatDecimal(remaining)),
		}
		updated := l.PurchaseLine
		updated.Amount = remaining
		res.Updated = append(res.Updated, updated)

		mirror := l.PurchaseLine
		mirror.LedgerID = newID
		mirror.Person = counterpart
		mirror.Amount = parts[i]
		res.Created = append(res.Created, mirror)
		created[i] = rows.PurchaseCells(mirror)
	}

	if err := s.table.AppendRows(ctx, sheets.Purchases, created); err != nil {
		return SplitPurchaseResult{}, err
	}
	if err := s.guardedUpdates(ctx, sheets.Purchases, updates, rows.PurchaseColumns); err != nil {
		return SplitPurchaseResult{}, s.undoAppend(ctx, sheets.Purchases, err, func(row []string) bool {
			return ledgerIDOf(row) == newID
		})
	}
	slog.InfoContext(ctx, "Purchase split",
		log.FieldLedgerID, in.LedgerID,
		"counterpart_ledger_id", newID,
		log.FieldPerson, counterpart,
		log.FieldAmount, core.FormatDecimal(in.Share))
	return res, nil
}

// DeleteByLedgerID removes every row of the purchase, bottom-up so earlier
// indices stay valid. It returns the number of rows removed.
func (s *Service) DeleteByLedgerID(ctx context.Context, id int64) (int, error) {
	unlock := s.locks.Lock(purchaseRangeKey, purchaseKey(id))
	defer unlock()

	raw, err := s.table.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		return 0, err
	}
	var indices []int
	for i := 1; i < len(raw); i++ {
		if ledgerIDOf(raw[i]) == id {
			indices = append(indices, i+1)
		}
	}
	if len(indices) == 0 {
		return 0, fmt.Errorf("%w: purchase %d", core.ErrNotFound, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, idx := range indices {
		if err := s.table.DeleteRow(ctx, sheets.Purchases, idx); err != nil {
			return 0, err
		}
	}
	slog.InfoContext(ctx, "Purchase deleted", log.FieldLedgerID, id, "rows", len(indices))
	return len(indices), nil
}

// splitEvenly divides amount into n cent-rounded parts whose sum is amount;
// the last part absorbs the rounding difference.
func splitEvenly(amount decimal.Decimal, n int) []decimal.Decimal {
	parts := make([]decimal.Decimal, n)
	part := amount.Div(decimal.NewFromInt(int64(n))).RoundBank(2)
	rest := amount
	for i := 0; i < n-1; i++ {
		parts[i] = part
		rest = rest.Sub(part)
	}
	parts[n-1] = rest
	return parts
}

func linesOf(purchases []rows.Purchase, id int64) []rows.Purchase {
	var out []rows.Purchase
	for _, p := range purchases {
		if p.LedgerID == id {
			out = append(out, p)
		}
	}
	return out
}

// locateLine finds the line of a purchase by installment label. An empty
// label matches the purchase's first line.
func locateLine(purchases []rows.Purchase, id int64, label string) (rows.Purchase, bool) {
	label = strings.TrimSpace(label)
	for _, p := range purchases {
		if p.LedgerID != id {
			continue
		}
		if label == "" || p.InstallmentLabel == label {
			return p, true
		}
	}
	return rows.Purchase{}, false
}

func ledgerIDOf(row []string) int64 {
	if len(row) == 0 {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// maxLedgerID scans the raw range so rows the mappers skip still reserve
// their id.
func maxLedgerID(raw [][]string) int64 {
	var max int64
	for i := 1; i < len(raw); i++ {
		if id := ledgerIDOf(raw[i]); id > max {
			max = id
		}
	}
	return max
}
