package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"controle/internal/core"
	"controle/internal/rows"
)

// Snapshot is one consistent read of the three data ranges.
type Snapshot struct {
	Incomes   []rows.Income
	Fixed     []rows.Fixed
	Purchases []rows.Purchase
	Report    rows.Report
}

// Aggregator computes summaries from a snapshot. It holds no state between
// calls.
type Aggregator struct {
	Cards    core.CardRules
	Policies MatchPolicies
}

// NewAggregator returns an aggregator with the built-in match policies.
func NewAggregator(cards core.CardRules) Aggregator {
	return Aggregator{Cards: cards, Policies: DefaultMatchPolicies(cards)}
}

type cardKey struct {
	base    string
	subType core.SubType
}

// Aggregate summarizes person's finances over p.
func (a Aggregator) Aggregate(s Snapshot, person string, p core.Period) (core.Summary, error) {
	if err := p.Validate(); err != nil {
		return core.Summary{}, err
	}
	policy, err := a.Policies.Get(p.Mode)
	if err != nil {
		return core.Summary{}, err
	}

	sum := core.Summary{
		Person:     person,
		Period:     p.Label(),
		Purchases:  []core.PurchaseLine{},
		ByCard:     []core.CardTotal{},
		ByCardType: []core.CardTypeTotal{},
	}

	found := false
	for _, in := range s.Incomes {
		if !core.EqualFold(in.Person, person) || !p.IncludesMonth(in.CompetencyMonth) {
			continue
		}
		found = true
		if core.IsSalary(core.NormalizeSource(in.Source)) {
			sum.Salary = sum.Salary.Add(in.BaseAmount)
		} else {
			sum.Extras = sum.Extras.Add(in.BaseAmount)
		}
		sum.Extras = sum.Extras.Add(in.ExtrasAmount)
	}
	if !found {
		return core.Summary{}, fmt.Errorf("%w for %s in %s", core.ErrMissingIncome, person, p.Label())
	}
	sum.TotalReceived = sum.Salary.Add(sum.Extras)

	for _, f := range s.Fixed {
		if !core.EqualFold(f.Person, person) || !p.IncludesMonth(f.CompetencyMonth) {
			continue
		}
		amount := f.AmountOrZero()
		sum.FixedTotal = sum.FixedTotal.Add(amount)
		if core.IsSavings(f.Type) {
			sum.Savings = sum.Savings.Add(amount)
		}
	}

	// In-scope lines of every person feed the group totals of non-shared
	// cards; the person's own lines decide which groups exist.
	var inScope []core.PurchaseLine
	for _, pl := range s.Purchases {
		if !policy.Matches(pl.PurchaseLine, p) {
			continue
		}
		inScope = append(inScope, pl.PurchaseLine)
		if core.EqualFold(pl.Person, person) {
			sum.Purchases = append(sum.Purchases, pl.PurchaseLine)
			sum.PurchaseTotal = sum.PurchaseTotal.Add(pl.Amount)
		}
	}
	sortLines(sum.Purchases)

	sum.ByCard, sum.ByCardType = a.groupByCard(person, sum.Purchases, inScope)

	sum.TotalSpent = sum.PurchaseTotal.Add(sum.FixedTotal)
	sum.Balance = sum.TotalReceived.Sub(sum.TotalSpent)
	sum.Critical = sum.Balance.IsNegative()
	return sum, nil
}

func (a Aggregator) groupByCard(person string, own, inScope []core.PurchaseLine) ([]core.CardTotal, []core.CardTypeTotal) {
	bases := make(map[string]bool)
	keys := make(map[cardKey]bool)
	for _, l := range own {
		if l.Card == "" {
			continue
		}
		base, st := a.Cards.Normalize(l.Card)
		bases[base] = true
		keys[cardKey{base, st}] = true
	}

	byCard := make(map[string]decimal.Decimal)
	byKey := make(map[cardKey]decimal.Decimal)
	for _, l := range inScope {
		if l.Card == "" {
			continue
		}
		base, st := a.Cards.Normalize(l.Card)
		if !bases[base] {
			continue
		}
		if a.Cards.IsShared(base) && !core.EqualFold(l.Person, person) {
			continue
		}
		byCard[base] = byCard[base].Add(l.Amount)
		if k := (cardKey{base, st}); keys[k] {
			byKey[k] = byKey[k].Add(l.Amount)
		}
	}

	cards := make([]core.CardTotal, 0, len(byCard))
	for base, total := range byCard {
		cards = append(cards, core.CardTotal{Card: base, Amount: total})
	}
	sort.Slice(cards, func(i, j int) bool {
		return a.lessCard(cards[i].Card, cards[j].Card)
	})

	types := make([]core.CardTypeTotal, 0, len(byKey))
	for k, total := range byKey {
		types = append(types, core.CardTypeTotal{Card: k.base, SubType: k.subType, Amount: total})
	}
	sort.Slice(types, func(i, j int) bool {
		ti, tj := types[i], types[j]
		if ri, rj := a.Cards.Rank(ti.Card), a.Cards.Rank(tj.Card); ri != rj {
			return ri < rj
		}
		if ri, rj := ti.SubType.Rank(), tj.SubType.Rank(); ri != rj {
			return ri < rj
		}
		if ti.Card != tj.Card {
			return core.Fold(ti.Card) < core.Fold(tj.Card)
		}
		return ti.SubType < tj.SubType
	})
	return cards, types
}

func (a Aggregator) lessCard(x, y string) bool {
	if rx, ry := a.Cards.Rank(x), a.Cards.Rank(y); rx != ry {
		return rx < ry
	}
	return core.Fold(x) < core.Fold(y)
}

// sortLines orders lines by date, then ledger id, then installment label.
func sortLines(lines []core.PurchaseLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		li, lj := lines[i], lines[j]
		if !li.Date.Equal(lj.Date) {
			return li.Date.Before(lj.Date)
		}
		if li.LedgerID != lj.LedgerID {
			return li.LedgerID < lj.LedgerID
		}
		return li.InstallmentLabel < lj.InstallmentLabel
	})
}
