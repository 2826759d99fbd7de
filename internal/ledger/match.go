// Package ledger aggregates income, fixed expenses and purchases into period
// summaries, and applies the write operations that keep the three ranges
// consistent.
//
// Purchase selection is a strategy chosen per call: each period mode has
// its own MatchPolicy, looked up from a registry.
package ledger

import (
	"fmt"

	"controle/internal/core"
)

// MatchPolicy decides whether a purchase line belongs to a period.
type MatchPolicy interface {
	Matches(line core.PurchaseLine, p core.Period) bool
}

// MonthMatcher selects lines by competency month.
type MonthMatcher struct{}

func (MonthMatcher) Matches(line core.PurchaseLine, p core.Period) bool {
	return !line.CompetencyMonth.IsZero() && line.CompetencyMonth == p.Month
}

// RangeMatcher selects lines dated inside [From, To].
type RangeMatcher struct{}

func (RangeMatcher) Matches(line core.PurchaseLine, p core.Period) bool {
	d := core.DateOnly(line.Date)
	return !d.Before(p.From) && !d.After(p.To)
}

// CycleMatcher selects card purchases by the invoice window of their card
// closing inside the period month. Debit and cardless purchases have no
// invoice, so they fall back to the competency month.
type CycleMatcher struct {
	Rules core.CardRules
}

func (m CycleMatcher) Matches(line core.PurchaseLine, p core.Period) bool {
	if line.PaymentMethod != core.Credit || line.Card == "" {
		return MonthMatcher{}.Matches(line, p)
	}
	return m.Rules.InvoiceWindow(line.Card, p.Month).Contains(line.Date)
}

// MatchPolicies maps period modes to their policies.
type MatchPolicies map[core.PeriodMode]MatchPolicy

// DefaultMatchPolicies returns the built-in policy for every period mode.
func DefaultMatchPolicies(rules core.CardRules) MatchPolicies {
	return MatchPolicies{
		core.ModeMonth: MonthMatcher{},
		core.ModeRange: RangeMatcher{},
		core.ModeCycle: CycleMatcher{Rules: rules},
	}
}

// Get returns the policy for mode.
func (m MatchPolicies) Get(mode core.PeriodMode) (MatchPolicy, error) {
	policy, ok := m[mode]
	if !ok {
		return nil, fmt.Errorf("%w: no match policy for mode %q", core.ErrInvalidPeriod, mode)
	}
	return policy, nil
}

// Register installs or replaces the policy for mode.
func (m MatchPolicies) Register(mode core.PeriodMode, policy MatchPolicy) {
	m[mode] = policy
}
