package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	ErrInvalidMonth        = fmt.Errorf("%w: invalid month, expected MM/yyyy", ErrValidation)
	ErrInvalidPeriod       = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidInstallments = fmt.Errorf("%w: installments must be at least 1", ErrValidation)
	ErrInvalidPayment      = fmt.Errorf("%w: payment method must be Débito or Crédito", ErrValidation)
	ErrEmptyPerson         = fmt.Errorf("%w: empty person", ErrValidation)
	ErrEmptyDescription    = fmt.Errorf("%w: empty description", ErrValidation)
	ErrEmptyType           = fmt.Errorf("%w: empty fixed expense type", ErrValidation)

	ErrMissingIncome = fmt.Errorf("%w: no income registered", ErrNotFound)
	ErrStaleRow      = fmt.Errorf("%w: row changed since it was read", ErrConflict)
)

type (
	// Month identifies a competency month, rendered as "MM/yyyy".
	Month struct {
		Year  int
		Month int // 1-12
	}

	PaymentMethod string

	IncomeEntry struct {
		Person          string          `json:"pessoa"`
		Source          string          `json:"fonte"`
		BaseAmount      decimal.Decimal `json:"valor"`
		HourlyRate      decimal.Decimal `json:"valorHora"`
		CompetencyMonth Month           `json:"mesAno"`
		ExtrasAmount    decimal.Decimal `json:"extras"`
	}

	FixedExpense struct {
		ID              string              `json:"id"`
		Type            string              `json:"tipo"`
		CompetencyMonth Month               `json:"mesAno"`
		Person          string              `json:"pessoa"`
		DueDate         string              `json:"vencimento"`
		Amount          decimal.NullDecimal `json:"valor"` // blank until filled in
		Paid            bool                `json:"pago"`
		Split           bool                `json:"dividido"`
	}

	PurchaseLine struct {
		LedgerID         int64           `json:"idLan"`
		PaymentMethod    PaymentMethod   `json:"formaPgto"`
		InstallmentLabel string          `json:"parcela"`
		Description      string          `json:"compra"`
		Amount           decimal.Decimal `json:"valor"`
		CompetencyMonth  Month           `json:"mesAno"`
		Date             time.Time       `json:"data"`
		Person           string          `json:"pessoa"`
		Source           string          `json:"fonte"`
		Card             string          `json:"cartao"`
	}
)

const (
	Debit  PaymentMethod = "Débito"
	Credit PaymentMethod = "Crédito"

	// DefaultSource is assigned to purchases registered without a funding source.
	DefaultSource = "Salário"

	// SavingsMarker flags fixed expenses that are money put aside, not spent.
	SavingsMarker = "guardado"
)

// NewDate returns midnight UTC of the given calendar day.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateOnly drops the clock part of t, keeping its calendar day.
func DateOnly(t time.Time) time.Time {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseMonth accepts "MM/yyyy" (also "M/yyyy" and "yyyy-MM").
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	var mm, yy string
	switch {
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		if len(parts) != 2 {
			return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
		}
		mm, yy = parts[0], parts[1]
	case strings.Count(s, "-") == 1:
		parts := strings.Split(s, "-")
		yy, mm = parts[0], parts[1]
	default:
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || m < 1 || m > 12 {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	y, err := strconv.Atoi(strings.TrimSpace(yy))
	if err != nil || y < 1900 || y > 9999 {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: y, Month: m}, nil
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month())}
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d/%04d", m.Month, m.Year)
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// First returns the first day of the month.
func (m Month) First() time.Time {
	return NewDate(m.Year, m.Month, 1)
}

// Last returns the last day of the month.
func (m Month) Last() time.Time {
	return m.First().AddDate(0, 1, -1)
}

func (m Month) AddMonths(n int) Month {
	return MonthOf(m.First().AddDate(0, n, 0))
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// NormalizePaymentMethod maps "C", "credito", "Crédito" and friends to the
// canonical labels.
func NormalizePaymentMethod(s string) (PaymentMethod, error) {
	switch Fold(s) {
	case "c", "credito", "cred", "credit":
		return Credit, nil
	case "d", "debito", "deb", "debit":
		return Debit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPayment, s)
}

// NormalizeSource replaces blank or placeholder sources with DefaultSource.
func NormalizeSource(s string) string {
	s = strings.TrimSpace(s)
	switch Fold(s) {
	case "", "-", "string", "null", "undefined":
		return DefaultSource
	}
	return s
}

// IsSalary reports whether an income source is the monthly salary.
func IsSalary(source string) bool {
	f := Fold(source)
	return f == "salario" || strings.HasPrefix(f, "salario ")
}

// IsSavings reports whether a fixed expense type carries the savings marker.
func IsSavings(expenseType string) bool {
	return strings.Contains(Fold(expenseType), SavingsMarker)
}

func (e IncomeEntry) Validate() error {
	if strings.TrimSpace(e.Person) == "" {
		return ErrEmptyPerson
	}
	if e.CompetencyMonth.IsZero() {
		return ErrInvalidMonth
	}
	if e.BaseAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (f FixedExpense) Validate() error {
	if strings.TrimSpace(f.Person) == "" {
		return ErrEmptyPerson
	}
	if strings.TrimSpace(f.Type) == "" {
		return ErrEmptyType
	}
	if f.CompetencyMonth.IsZero() {
		return ErrInvalidMonth
	}
	if f.Amount.Valid && f.Amount.Decimal.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// AmountOrZero treats a blank amount as zero.
func (f FixedExpense) AmountOrZero() decimal.Decimal {
	if !f.Amount.Valid {
		return decimal.Zero
	}
	return f.Amount.Decimal
}
