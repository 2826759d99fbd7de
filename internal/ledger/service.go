package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"controle/internal/core"
	"controle/internal/log"
	"controle/internal/rows"
	"controle/internal/sheets"
)

// DefaultOverviewMonths is how many months after the operating month the
// rolling overview covers.
const DefaultOverviewMonths = 6

// OverviewWindow selects the months covered by SummarizeAll.
type OverviewWindow string

const (
	WindowRolling OverviewWindow = "rolling"
	WindowCurrent OverviewWindow = "current"
)

// Options configures a Service. Zero values fall back to the defaults.
type Options struct {
	Cards          core.CardRules
	CutoverDay     int
	Remainder      core.RemainderPolicy
	OverviewMonths int
	Now            func() time.Time
}

// Service is the engine API over a tabular store.
type Service struct {
	table      sheets.Table
	resolver   core.CompetencyResolver
	expander   core.Expander
	aggregator Aggregator
	overview   int
	now        func() time.Time
	locks      *keyLocks
}

func NewService(table sheets.Table, opts Options) *Service {
	cards := opts.Cards
	if cards.ClosingDays == nil && cards.Priority == nil {
		cards = core.DefaultCardRules()
	}
	resolver := core.NewCompetencyResolver(opts.CutoverDay)
	remainder := opts.Remainder
	if remainder == "" {
		remainder = core.RemainderNone
	}
	overview := opts.OverviewMonths
	if overview <= 0 {
		overview = DefaultOverviewMonths
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		table:      table,
		resolver:   resolver,
		expander:   core.Expander{Resolver: resolver, Remainder: remainder},
		aggregator: NewAggregator(cards),
		overview:   overview,
		now:        now,
		locks:      newKeyLocks(),
	}
}

// RegisterMatchPolicy replaces the purchase selection for a period mode.
func (s *Service) RegisterMatchPolicy(mode core.PeriodMode, policy MatchPolicy) {
	s.aggregator.Policies.Register(mode, policy)
}

// Cards returns the card rules in effect.
func (s *Service) Cards() core.CardRules { return s.aggregator.Cards }

// OperatingMonth is the competency month of today.
func (s *Service) OperatingMonth() core.Month {
	return s.resolver.Resolve(s.now())
}

// load reads the three data ranges in parallel.
func (s *Service) load(ctx context.Context) (Snapshot, error) {
	var incomeRaw, fixedRaw, purchaseRaw [][]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		incomeRaw, err = s.table.ReadRows(gctx, sheets.Income)
		return err
	})
	g.Go(func() (err error) {
		fixedRaw, err = s.table.ReadRows(gctx, sheets.Fixed)
		return err
	})
	g.Go(func() (err error) {
		purchaseRaw, err = s.table.ReadRows(gctx, sheets.Purchases)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	var rep rows.Report
	snap.Incomes, rep = rows.Incomes(incomeRaw)
	snap.Report.BadMonth += rep.BadMonth
	snap.Fixed, rep = rows.FixedExpenses(fixedRaw)
	snap.Report.BadMonth += rep.BadMonth
	snap.Purchases, rep = rows.Purchases(purchaseRaw)
	snap.Report.BadDate += rep.BadDate
	snap.Report.BadMonth += rep.BadMonth
	if n := snap.Report.Skipped(); n > 0 {
		slog.DebugContext(ctx, "Rows with unreadable dates or months",
			"bad_date", snap.Report.BadDate, "bad_month", snap.Report.BadMonth)
	}
	return snap, nil
}

// Summarize returns person's summary over p.
func (s *Service) Summarize(ctx context.Context, person string, p core.Period) (core.Summary, error) {
	if err := p.Validate(); err != nil {
		return core.Summary{}, err
	}
	snap, err := s.load(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	sum, err := s.aggregator.Aggregate(snap, person, p)
	if err != nil {
		return core.Summary{}, err
	}
	slog.DebugContext(ctx, "Summary computed",
		log.FieldPerson, person,
		log.FieldPeriod, sum.Period,
		"purchases", len(sum.Purchases))
	return sum, nil
}

// SummarizeAll returns balance and savings for every person with income,
// for each month of the window, sorted by person then month. Pairs without
// income are skipped.
func (s *Service) SummarizeAll(ctx context.Context, window OverviewWindow) ([]core.OverviewRow, error) {
	months := []core.Month{s.OperatingMonth()}
	switch window {
	case WindowCurrent:
	case WindowRolling, "":
		for i := 1; i <= s.overview; i++ {
			months = append(months, months[0].AddMonths(i))
		}
	default:
		return nil, fmt.Errorf("%w: unknown overview window %q", core.ErrValidation, window)
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	persons := personsOf(snap.Incomes)
	out := []core.OverviewRow{}
	for _, person := range persons {
		for _, m := range months {
			sum, err := s.aggregator.Aggregate(snap, person, core.MonthPeriod(m))
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, core.OverviewRow{
				Person:  person,
				Month:   m,
				Balance: sum.Balance,
				Savings: sum.Savings,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if pi, pj := core.Fold(out[i].Person), core.Fold(out[j].Person); pi != pj {
			return pi < pj
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out, nil
}

// Persons lists everyone with at least one income entry, in first-seen
// spelling, sorted.
func (s *Service) Persons(ctx context.Context) ([]string, error) {
	raw, err := s.table.ReadRows(ctx, sheets.Income)
	if err != nil {
		return nil, err
	}
	incomes, _ := rows.Incomes(raw)
	return personsOf(incomes), nil
}

// PersonPurchases groups every purchase line of one person.
type PersonPurchases struct {
	Person    string              `json:"pessoa"`
	Purchases []core.PurchaseLine `json:"compras"`
	Total     decimal.Decimal     `json:"total"`
}

// PurchasesByPerson returns all purchase lines grouped by person.
func (s *Service) PurchasesByPerson(ctx context.Context) ([]PersonPurchases, error) {
	raw, err := s.table.ReadRows(ctx, sheets.Purchases)
	if err != nil {
		return nil, err
	}
	lines, _ := rows.Purchases(raw)

	index := make(map[string]int)
	var out []PersonPurchases
	for _, l := range lines {
		key := core.Fold(l.Person)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, PersonPurchases{Person: l.Person})
		}
		out[i].Purchases = append(out[i].Purchases, l.PurchaseLine)
	}
	for i := range out {
		sortLines(out[i].Purchases)
		var total decimal.Decimal
		for _, l := range out[i].Purchases {
			total = total.Add(l.Amount)
		}
		out[i].Total = total
	}
	sort.Slice(out, func(i, j int) bool { return core.Fold(out[i].Person) < core.Fold(out[j].Person) })
	return out, nil
}

// ListCards returns the known card labels.
func (s *Service) ListCards(ctx context.Context) ([]string, error) {
	return s.labels(ctx, sheets.Cards)
}

// ListFixedTypes returns the known fixed-expense types.
func (s *Service) ListFixedTypes(ctx context.Context) ([]string, error) {
	return s.labels(ctx, sheets.FixedTypes)
}

func (s *Service) labels(ctx context.Context, rng sheets.RangeID) ([]string, error) {
	raw, err := s.table.ReadRows(ctx, rng)
	if err != nil {
		return nil, err
	}
	out := rows.Labels(raw)
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func personsOf(incomes []rows.Income) []string {
	seen := make(map[string]bool)
	var out []string
	for _, in := range incomes {
		key := core.Fold(in.Person)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, in.Person)
	}
	slices.SortFunc(out, func(a, b string) int {
		fa, fb := core.Fold(a), core.Fold(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	})
	return out
}

// rowUpdate rewrites one row if it still holds snapshot.
type rowUpdate struct {
	index    int
	snapshot []string
	cells    []string
}

// guardedUpdate rewrites row index of rng after checking it still holds the
// cells it had when the caller read it. A mismatch means another writer
// changed or moved the row.
func (s *Service) guardedUpdate(ctx context.Context, rng sheets.RangeID, index int, snapshot, cells []string, width int) error {
	return s.guardedUpdates(ctx, rng, []rowUpdate{{index: index, snapshot: snapshot, cells: cells}}, width)
}

// guardedUpdates verifies every snapshot against one fresh read before
// writing any row.
func (s *Service) guardedUpdates(ctx context.Context, rng sheets.RangeID, updates []rowUpdate, width int) error {
	raw, err := s.table.ReadRows(ctx, rng)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if u.index < 2 || u.index > len(raw) || !sameCells(raw[u.index-1], u.snapshot, width) {
			slog.WarnContext(ctx, "Row changed since it was read",
				log.FieldRange, rng, "row", u.index)
			return fmt.Errorf("%w: %s row %d", core.ErrStaleRow, rng, u.index)
		}
	}
	for i, u := range updates {
		if err := s.table.UpdateRow(ctx, rng, u.index, u.cells); err != nil {
			return s.restoreRows(ctx, rng, updates[:i], err)
		}
	}
	return nil
}

// restoreRows writes the snapshots of rows already updated back after a
// later update of the same batch failed with cause.
func (s *Service) restoreRows(ctx context.Context, rng sheets.RangeID, written []rowUpdate, cause error) error {
	ctx = context.WithoutCancel(ctx)
	for _, u := range written {
		if err := s.table.UpdateRow(ctx, rng, u.index, u.snapshot); err != nil {
			slog.ErrorContext(ctx, "Could not restore row of a failed write",
				log.FieldRange, rng, "row", u.index, log.FieldError, err)
			return errors.Join(cause, err)
		}
	}
	return cause
}

// undoAppend removes the rows of rng matching appended after a later step
// failed with cause, and returns cause. A failed removal is logged and joined
// to cause: the store then holds rows that need manual cleanup.
func (s *Service) undoAppend(ctx context.Context, rng sheets.RangeID, cause error, appended func([]string) bool) error {
	ctx = context.WithoutCancel(ctx)
	raw, err := s.table.ReadRows(ctx, rng)
	if err == nil {
		for i := len(raw) - 1; i >= 1; i-- {
			if !appended(raw[i]) {
				continue
			}
			if err = s.table.DeleteRow(ctx, rng, i+1); err != nil {
				break
			}
		}
	}
	if err != nil {
		slog.ErrorContext(ctx, "Could not remove rows of a failed write",
			log.FieldRange, rng, log.FieldError, err)
		return errors.Join(cause, err)
	}
	return cause
}

func sameCells(a, b []string, width int) bool {
	a, b = rows.Pad(a, width), rows.Pad(b, width)
	for i := 0; i < width; i++ {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
