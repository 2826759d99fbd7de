package ledger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"controle/internal/cache"
	"controle/internal/core"
	"controle/internal/rows"
	"controle/internal/sheets"
	"controle/internal/sheets/memory"
)

func testOptions() Options {
	return Options{Now: func() time.Time { return time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC) }}
}

func cachedService(store sheets.Table) *Service {
	return NewService(sheets.NewCachedTable(store, cache.NewLRUCache[[][]string](32, 5*time.Minute)), testOptions())
}

// Two processes with their own read cache over one store must still see each
// other's writes when allocating ids and checking duplicates.
func TestService_CachedProcessesShareStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New(rows.Headers())
	seed(t, store, sheets.Income, []string{"Ana", "Salário", "3000", "05/2024", "", ""})
	a, b := cachedService(store), cachedService(store)

	if _, err := a.Summarize(ctx, "Ana", core.MonthPeriod(may2024())); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	purchase := core.Purchase{
		PaymentMethod: core.Debit, Installments: 1, Description: "Mercado",
		Total: dec("50"), Date: core.NewDate(2024, 5, 10), Person: "Ana",
	}
	fromB, err := b.RegisterPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("b.RegisterPurchase() error = %v", err)
	}
	fromA, err := a.RegisterPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("a.RegisterPurchase() error = %v", err)
	}
	if fromA.LedgerID == fromB.LedgerID {
		t.Fatalf("both processes allocated ledger id %d", fromA.LedgerID)
	}

	rent := []FixedExpenseInput{{
		Type: "Aluguel", Month: may2024(), Person: "Ana", Amount: decimal.NewNullDecimal(dec("1500")),
	}}
	if out, err := b.GenerateFixedExpenses(ctx, rent); err != nil || out[0].Status != OutcomeInserted {
		t.Fatalf("b.GenerateFixedExpenses() = %+v, %v", out, err)
	}
	out, err := a.GenerateFixedExpenses(ctx, rent)
	if err != nil {
		t.Fatalf("a.GenerateFixedExpenses() error = %v", err)
	}
	if out[0].Status != OutcomeSkipped {
		t.Errorf("a.GenerateFixedExpenses() = %+v, want skipped", out[0])
	}
	if n := len(readAll(t, store, sheets.Fixed)) - 1; n != 1 {
		t.Errorf("fixed rows = %d, want 1", n)
	}
}

// hookTable calls after each time a read of the inner table returns.
type hookTable struct {
	sheets.Table

	mu    sync.Mutex
	reads map[sheets.RangeID]int
	after func(rng sheets.RangeID, n int)
}

func (h *hookTable) ReadRows(ctx context.Context, rng sheets.RangeID) ([][]string, error) {
	raw, err := h.Table.ReadRows(ctx, rng)
	h.mu.Lock()
	if h.reads == nil {
		h.reads = make(map[sheets.RangeID]int)
	}
	h.reads[rng]++
	n, after := h.reads[rng], h.after
	h.mu.Unlock()
	if after != nil {
		after(rng, n)
	}
	return raw, err
}

func (h *hookTable) arm(fn func(rng sheets.RangeID, n int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads = nil
	h.after = fn
}

func TestService_DeleteWaitsForEdit(t *testing.T) {
	ctx := context.Background()
	store := memory.New(rows.Headers())
	table := &hookTable{Table: store}
	svc := NewService(table, testOptions())
	seed(t, store, sheets.Income, []string{"Ana", "Salário", "3000", "05/2024", "", ""})
	for i, desc := range []string{"Primeira", "Segunda", "Terceira"} {
		if _, err := svc.RegisterPurchase(ctx, core.Purchase{
			PaymentMethod: core.Debit, Installments: 1, Description: desc,
			Total: dec("20"), Date: core.NewDate(2024, 5, 10+i), Person: "Ana",
		}); err != nil {
			t.Fatalf("RegisterPurchase(%s) error = %v", desc, err)
		}
	}

	deleted := make(chan error, 1)
	var once sync.Once
	table.arm(func(rng sheets.RangeID, n int) {
		// The second purchases read is the guard of the edit.
		if rng != sheets.Purchases || n != 2 {
			return
		}
		once.Do(func() {
			go func() {
				_, err := svc.DeleteByLedgerID(ctx, 1)
				deleted <- err
			}()
			select {
			case err := <-deleted:
				deleted <- err
			case <-time.After(50 * time.Millisecond):
			}
		})
	})

	_, err := svc.EditPurchase(ctx, EditPurchaseInput{
		LedgerID: 2, PaymentMethod: "Débito", Description: "Segunda editada",
		Amount: dec("25"), Date: core.NewDate(2024, 5, 11), Person: "Ana",
	})
	if err != nil {
		t.Fatalf("EditPurchase() error = %v", err)
	}
	if err := <-deleted; err != nil {
		t.Fatalf("DeleteByLedgerID() error = %v", err)
	}

	raw := readAll(t, store, sheets.Purchases)
	got := make(map[int64][]string)
	for _, row := range raw[1:] {
		id := ledgerIDOf(row)
		if _, dup := got[id]; dup {
			t.Fatalf("ledger id %d stored twice: %v", id, raw)
		}
		got[id] = row
	}
	if _, ok := got[1]; ok {
		t.Errorf("purchase 1 not deleted: %v", raw)
	}
	if got[2] == nil || got[2][3] != "Segunda editada" {
		t.Errorf("purchase 2 = %v, want the edited line", got[2])
	}
	if got[3] == nil || got[3][3] != "Terceira" {
		t.Errorf("purchase 3 = %v, want it untouched", got[3])
	}
}

var errSheetsDown = fmt.Errorf("%w: sheets down", core.ErrStorageUnavailable)

// flakyTable fails appends, every update, or only the nth update.
type flakyTable struct {
	sheets.Table
	failAppend    bool
	failUpdate    bool
	failNthUpdate int
	updates       int
}

func (f *flakyTable) AppendRows(ctx context.Context, rng sheets.RangeID, data [][]string) error {
	if f.failAppend {
		return errSheetsDown
	}
	return f.Table.AppendRows(ctx, rng, data)
}

func (f *flakyTable) UpdateRow(ctx context.Context, rng sheets.RangeID, index int, row []string) error {
	f.updates++
	if f.failUpdate || f.updates == f.failNthUpdate {
		return errSheetsDown
	}
	return f.Table.UpdateRow(ctx, rng, index, row)
}

func TestService_FailedSplitKeepsAmounts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		failAppend    bool
		failUpdate    bool
		failNthUpdate int
		splitFixed    bool
	}{
		{"append fails", true, false, 0, true},
		{"update fails after append", false, true, 0, true},
		{"second installment update fails", false, false, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New(rows.Headers())
			table := &flakyTable{Table: store}
			svc := NewService(table, testOptions())
			id := seedPurchase(t, svc, store, "300", 3)
			if out, err := svc.GenerateFixedExpenses(ctx, []FixedExpenseInput{{
				Type: "Aluguel", Month: may2024(), Person: "Ana", Amount: decimal.NewNullDecimal(dec("1500")),
			}}); err != nil || out[0].Status != OutcomeInserted {
				t.Fatalf("GenerateFixedExpenses() = %+v, %v", out, err)
			}
			purchasesBefore := readAll(t, store, sheets.Purchases)
			fixedBefore := readAll(t, store, sheets.Fixed)

			table.failAppend, table.failUpdate = tt.failAppend, tt.failUpdate
			table.failNthUpdate, table.updates = tt.failNthUpdate, 0

			_, err := svc.SplitPurchase(ctx, SplitPurchaseInput{LedgerID: id, Counterpart: "Bia", Share: dec("100")})
			if !errors.Is(err, core.ErrStorageUnavailable) {
				t.Fatalf("SplitPurchase() error = %v, want storage unavailable", err)
			}
			if after := readAll(t, store, sheets.Purchases); !reflect.DeepEqual(after, purchasesBefore) {
				t.Errorf("purchases changed by failed split:\nbefore %v\nafter  %v", purchasesBefore, after)
			}

			if !tt.splitFixed {
				return
			}
			_, err = svc.SplitFixedExpense(ctx, "1", "Bia", dec("500"))
			if !errors.Is(err, core.ErrStorageUnavailable) {
				t.Fatalf("SplitFixedExpense() error = %v, want storage unavailable", err)
			}
			if after := readAll(t, store, sheets.Fixed); !reflect.DeepEqual(after, fixedBefore) {
				t.Errorf("fixed expenses changed by failed split:\nbefore %v\nafter  %v", fixedBefore, after)
			}
		})
	}
}
