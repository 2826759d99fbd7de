package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a purchase as entered, before it is split into installments.
type Purchase struct {
	PaymentMethod PaymentMethod
	Installments  int
	Description   string
	Total         decimal.Decimal
	Date          time.Time
	Person        string
	Source        string
	Card          string
}

// Validate checks the purchase and normalizes its payment method and source.
func (p *Purchase) Validate() error {
	if strings.TrimSpace(p.Person) == "" {
		return ErrEmptyPerson
	}
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	if !p.Total.IsPositive() {
		return fmt.Errorf("%w: total must be positive", ErrInvalidAmount)
	}
	if p.Installments < 1 {
		return ErrInvalidInstallments
	}
	if p.Date.IsZero() {
		return ErrInvalidDate
	}
	pm, err := NormalizePaymentMethod(string(p.PaymentMethod))
	if err != nil {
		return err
	}
	p.PaymentMethod = pm
	p.Source = NormalizeSource(p.Source)
	p.Person = strings.TrimSpace(p.Person)
	p.Description = strings.TrimSpace(p.Description)
	p.Card = strings.TrimSpace(p.Card)
	p.Date = DateOnly(p.Date)
	return nil
}

// RemainderPolicy decides which installment absorbs the cents lost when the
// total does not divide evenly.
type RemainderPolicy string

const (
	RemainderNone  RemainderPolicy = "none"
	RemainderFirst RemainderPolicy = "first"
	RemainderLast  RemainderPolicy = "last"
)

func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch p := RemainderPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", RemainderNone:
		return RemainderNone, nil
	case RemainderFirst, RemainderLast:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown remainder policy %q", ErrValidation, s)
}

// Expander turns a purchase into its installment lines.
type Expander struct {
	Resolver  CompetencyResolver
	Remainder RemainderPolicy
}

// Expand produces one line per installment, all sharing ledgerID. Amounts are
// rounded half-even to cents; installment i is dated i-1 months after the
// purchase and attributed to the competency month of its own date.
func (e Expander) Expand(p Purchase, ledgerID int64) ([]PurchaseLine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.Installments
	share := p.Total.Div(decimal.NewFromInt(int64(n))).RoundBank(2)
	remainder := p.Total.Sub(share.Mul(decimal.NewFromInt(int64(n))))

	lines := make([]PurchaseLine, n)
	for i := 1; i <= n; i++ {
		date := AddMonths(p.Date, i-1)
		label := ""
		if n > 1 {
			label = fmt.Sprintf("%d/%d", i, n)
		}
		lines[i-1] = PurchaseLine{
			LedgerID:         ledgerID,
			PaymentMethod:    p.PaymentMethod,
			InstallmentLabel: label,
			Description:      p.Description,
			Amount:           share,
			CompetencyMonth:  e.Resolver.Resolve(date),
			Date:             date,
			Person:           p.Person,
			Source:           p.Source,
			Card:             p.Card,
		}
	}

	switch e.Remainder {
	case RemainderFirst:
		lines[0].Amount = lines[0].Amount.Add(remainder)
	case RemainderLast:
		lines[n-1].Amount = lines[n-1].Amount.Add(remainder)
	}
	return lines, nil
}

// AddMonths moves t by n calendar months, clamping the day to the target
// month's length (Jan 31 + 1 month is Feb 28/29, not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	target := MonthOf(t).AddMonths(n)
	day := t.Day()
	if last := target.Last().Day(); day > last {
		day = last
	}
	return NewDate(target.Year, target.Month, day)
}
