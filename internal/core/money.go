// Package core holds the domain types and the pure rules of the engine.
//
// This file contains the locale-tolerant decimal parser. Spreadsheet cells
// arrive formatted either the Brazilian way ("1.234,56") or the US way
// ("1,234.56"), sometimes with a currency prefix.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarkers = []string{"R$", "US$", "$", "€"}

// ParseDecimal converts a locale-formatted string to a decimal.
//
// It never fails: unparseable input yields exactly zero. Use ParseDecimalStrict
// when zero must be told apart from "unknown".
//
// Examples:
//
//	ParseDecimal("R$ 1.234,56") -> 1234.56
//	ParseDecimal("1,234.56")    -> 1234.56
//	ParseDecimal("12,5")        -> 12.5
//	ParseDecimal("1.234")       -> 1234
//	ParseDecimal("garbage")     -> 0
func ParseDecimal(s string) decimal.Decimal {
	d, _ := ParseDecimalStrict(s)
	return d
}

// ParseDecimalStrict is ParseDecimal with an explicit parsed signal.
func ParseDecimalStrict(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	for _, m := range currencyMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return decimal.Zero, false
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = withDecimalAt(strings.ReplaceAll(s, ".", ""), ',')
		} else {
			s = withDecimalAt(strings.ReplaceAll(s, ",", ""), '.')
		}
	case commas > 0:
		s = resolveSeparator(s, ',')
	case dots > 0:
		s = resolveSeparator(s, '.')
	}

	if !isPlainNumber(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// FormatDecimal renders d with a dot separator and two decimals. The output
// parses back to the same value.
func FormatDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// resolveSeparator handles strings with a single kind of separator: a
// separator within the last three characters is decimal, otherwise it only
// groups thousands.
func resolveSeparator(s string, sep byte) string {
	idx := strings.LastIndexByte(s, sep)
	if len(s)-idx <= 3 {
		return withDecimalAt(s, sep)
	}
	return strings.ReplaceAll(s, string(sep), "")
}

// withDecimalAt keeps the last sep as the decimal point and drops earlier ones.
func withDecimalAt(s string, sep byte) string {
	idx := strings.LastIndexByte(s, sep)
	if idx < 0 {
		return s
	}
	head := strings.ReplaceAll(s[:idx], string(sep), "")
	return head + "." + s[idx+1:]
}

func isPlainNumber(s string) bool {
	digits := 0
	dot := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}
