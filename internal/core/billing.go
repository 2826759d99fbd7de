package core

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultClosingDay applies to card brands without a configured closing day.
const DefaultClosingDay = 1

// SubType identifies a card sub-account.
type SubType string

const (
	Adicional SubType = "Adicional"
	Titular   SubType = "Titular"
	Outro     SubType = "Outro"
)

var subTypeWords = regexp.MustCompile(`(?i)\b(titular|adicional)\b`)

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls on a day inside the window.
func (w Window) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format("2006-01-02") + ".." + w.End.Format("2006-01-02")
}

// CardRules is the per-deployment card configuration: closing days, the
// preferred display order and the brands whose totals are attributed per
// person.
type CardRules struct {
	ClosingDays       map[string]int
	DefaultClosingDay int
	Priority          []string
	SharedBrands      []string
}

// DefaultCardRules returns the closing days of the household's cards.
func DefaultCardRules() CardRules {
	return CardRules{
		ClosingDays: map[string]int{
			"Itaú":      8,
			"Bradesco":  4,
			"Santander": 10,
			"C&A":       5,
			"Riachuelo": 10,
		},
		DefaultClosingDay: DefaultClosingDay,
		Priority:          []string{"Itaú", "Bradesco", "Santander", "C&A", "Riachuelo"},
		SharedBrands:      []string{"Itaú"},
	}
}

// SubTypeOf classifies a raw card label. Adicional wins when both words appear.
func SubTypeOf(label string) SubType {
	f := Fold(label)
	switch {
	case strings.Contains(f, "adicional"):
		return Adicional
	case strings.Contains(f, "titular"):
		return Titular
	}
	return Outro
}

// Normalize splits a raw card label into its base brand and sub-account.
// Known brands come back with their configured spelling, so "ITAU ADICIONAL"
// yields ("Itaú", Adicional).
func (r CardRules) Normalize(label string) (string, SubType) {
	base := strings.Join(strings.Fields(subTypeWords.ReplaceAllString(label, " ")), " ")
	return r.canonical(base), SubTypeOf(label)
}

// Base is Normalize without the sub-account.
func (r CardRules) Base(label string) string {
	base, _ := r.Normalize(label)
	return base
}

func (r CardRules) canonical(base string) string {
	f := Fold(base)
	if f == "" {
		return ""
	}
	for _, brand := range r.brands() {
		if Fold(brand) == f {
			return brand
		}
	}
	return base
}

func (r CardRules) brands() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(b string) {
		if !seen[Fold(b)] {
			seen[Fold(b)] = true
			out = append(out, b)
		}
	}
	for _, b := range r.Priority {
		add(b)
	}
	for _, b := range r.SharedBrands {
		add(b)
	}
	keys := make([]string, 0, len(r.ClosingDays))
	for b := range r.ClosingDays {
		keys = append(keys, b)
	}
	sort.Strings(keys)
	for _, b := range keys {
		add(b)
	}
	return out
}

// ClosingDay returns the statement closing day for a card label.
func (r CardRules) ClosingDay(label string) int {
	f := Fold(r.Base(label))
	// Keys folding to the same brand resolve to the lowest key, whatever
	// the map order.
	match, day := "", 0
	for brand, d := range r.ClosingDays {
		if Fold(brand) != f || d < 1 || d > 31 {
			continue
		}
		if match == "" || brand < match {
			match, day = brand, d
		}
	}
	if match != "" {
		return day
	}
	if r.DefaultClosingDay >= 1 && r.DefaultClosingDay <= 31 {
		return r.DefaultClosingDay
	}
	return DefaultClosingDay
}

// Cycle returns the billing window of the card that contains ref. A purchase
// made on the closing day belongs to the statement closing that day.
func (r CardRules) Cycle(label string, ref time.Time) Window {
	d := r.ClosingDay(label)
	ref = DateOnly(ref)
	m := MonthOf(ref)
	closing := closingDate(m, d)
	if !ref.After(closing) {
		return Window{
			Start: closingDate(m.AddMonths(-1), d).AddDate(0, 0, 1),
			End:   closing,
		}
	}
	return Window{
		Start: closing.AddDate(0, 0, 1),
		End:   closingDate(m.AddMonths(1), d),
	}
}

// InvoiceWindow returns the cycle whose statement closes inside month.
func (r CardRules) InvoiceWindow(label string, month Month) Window {
	return r.Cycle(label, closingDate(month, r.ClosingDay(label)))
}

// IsShared reports whether the card's totals count only the owner's purchases.
func (r CardRules) IsShared(label string) bool {
	f := Fold(r.Base(label))
	for _, b := range r.SharedBrands {
		if Fold(b) == f {
			return true
		}
	}
	return false
}

// Rank orders brands by the configured priority; unlisted brands sort last.
func (r CardRules) Rank(base string) int {
	f := Fold(base)
	for i, b := range r.Priority {
		if Fold(b) == f {
			return i
		}
	}
	return len(r.Priority)
}

// Rank orders sub-accounts: Adicional, Titular, Outro.
func (s SubType) Rank() int {
	switch s {
	case Adicional:
		return 0
	case Titular:
		return 1
	}
	return 2
}

// closingDate clamps day d to the length of month m.
func closingDate(m Month, d int) time.Time {
	last := m.Last().Day()
	if d > last {
		d = last
	}
	return NewDate(m.Year, m.Month, d)
}
