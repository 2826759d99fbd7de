package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodMode selects how purchases are matched to a period.
type PeriodMode string

const (
	ModeMonth PeriodMode = "month" // CompetencyMonth equality
	ModeRange PeriodMode = "range" // purchase date inside [From, To]
	ModeCycle PeriodMode = "cycle" // purchase date inside the card's invoice window
)

type (
	// Period is either a competency month (month and cycle modes) or an
	// inclusive date range.
	Period struct {
		Mode  PeriodMode
		Month Month
		From  time.Time
		To    time.Time
	}

	CardTotal struct {
		Card   string          `json:"cartao"`
		Amount decimal.Decimal `json:"total"`
	}

	CardTypeTotal struct {
		Card    string          `json:"cartao"`
		SubType SubType         `json:"tipo"`
		Amount  decimal.Decimal `json:"total"`
	}

	// Summary is one person's finances over one period.
	Summary struct {
		Person        string          `json:"pessoa"`
		Period        string          `json:"periodo"`
		Salary        decimal.Decimal `json:"salario"`
		Extras        decimal.Decimal `json:"extras"`
		TotalReceived decimal.Decimal `json:"totalRecebido"`
		FixedTotal    decimal.Decimal `json:"totalGastosFixos"`
		PurchaseTotal decimal.Decimal `json:"totalCompras"`
		TotalSpent    decimal.Decimal `json:"totalGasto"`
		Balance       decimal.Decimal `json:"saldoRestante"`
		Critical      bool            `json:"saldoCritico"`
		Savings       decimal.Decimal `json:"guardado"`

		Purchases  []PurchaseLine  `json:"compras"`
		ByCard     []CardTotal     `json:"totaisPorCartao"`
		ByCardType []CardTypeTotal `json:"totaisPorCartaoTipo"`
	}

	// OverviewRow is one (person, month) line of the multi-period overview.
	OverviewRow struct {
		Person  string          `json:"pessoa"`
		Month   Month           `json:"mesAno"`
		Balance decimal.Decimal `json:"saldoRestante"`
		Savings decimal.Decimal `json:"guardado"`
	}
)

func MonthPeriod(m Month) Period {
	return Period{Mode: ModeMonth, Month: m}
}

func CyclePeriod(m Month) Period {
	return Period{Mode: ModeCycle, Month: m}
}

func RangePeriod(from, to time.Time) Period {
	return Period{Mode: ModeRange, From: DateOnly(from), To: DateOnly(to)}
}

func ParsePeriodMode(s string) (PeriodMode, error) {
	switch m := PeriodMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeMonth, ModeRange, ModeCycle:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidPeriod, s)
}

func (p Period) Validate() error {
	switch p.Mode {
	case ModeMonth, ModeCycle:
		if p.Month.IsZero() {
			return fmt.Errorf("%w: month required", ErrInvalidPeriod)
		}
	case ModeRange:
		if p.From.IsZero() || p.To.IsZero() {
			return fmt.Errorf("%w: from and to required", ErrInvalidPeriod)
		}
		if p.To.Before(p.From) {
			return fmt.Errorf("%w: to before from", ErrInvalidPeriod)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPeriod, p.Mode)
	}
	return nil
}

// Label renders the period as shown in summaries.
func (p Period) Label() string {
	if p.Mode == ModeRange {
		return p.From.Format("02/01/2006") + " - " + p.To.Format("02/01/2006")
	}
	return p.Month.String()
}

// IncludesMonth reports whether income and fixed expenses of competency
// month m belong to the period. Ranges compare first-of-month values.
func (p Period) IncludesMonth(m Month) bool {
	if m.IsZero() {
		return false
	}
	if p.Mode == ModeRange {
		first := m.First()
		return !first.Before(MonthOf(p.From).First()) && !first.After(p.To)
	}
	return m == p.Month
}
