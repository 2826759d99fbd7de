// Package http exposes the ledger as a JSON API.
//
// This file implements utilities for decoding request bodies and reading
// month, period and id parameters.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"controle/internal/core"
	"controle/internal/rows"
)

const maxBodyBytes = 1 << 20

// ErrBadRequest marks bodies that are not valid JSON for the endpoint.
// Handlers answer it with 400; semantic problems are core.ErrValidation.
var ErrBadRequest = errors.New("bad request")

// DecodeJSON reads one JSON value from the request body into v. Unknown
// fields and trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body larger than %d bytes", ErrBadRequest, maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrBadRequest)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		// Value errors from the custom types below are validation failures.
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", ErrBadRequest)
	}
	return nil
}

// Amount is a money value that accepts JSON numbers and locale strings
// such as "1.234,56" or "R$ 10,00". Null or absent leaves Set false.
type Amount struct {
	Value decimal.Decimal
	Set   bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		s = raw
	}
	d, ok := core.ParseDecimalStrict(s)
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	*a = Amount{Value: d, Set: true}
	return nil
}

// Nullable converts to a NullDecimal for optional amounts.
func (a Amount) Nullable() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: a.Value, Valid: a.Set}
}

// Date accepts the layouts the sheets use ("2024-05-31", "31/05/2024") and
// RFC 3339 timestamps.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: date must be a string", core.ErrInvalidDate)
	}
	t, err := ParseDate(raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate parses a request date. Empty input is an error.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, ok := rows.ParseDate(s); ok {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return core.DateOnly(t), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// ParseMonthParam reads a "MM/yyyy" query value, falling back to def when
// the parameter is absent.
func ParseMonthParam(query url.Values, key string, def core.Month) (core.Month, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Month{}, fmt.Errorf("%s: %w", key, err)
	}
	return m, nil
}

// ParsePeriod builds the summary period from query parameters:
//
//	?month=05/2024             competency month (default: operating month)
//	?month=05/2024&mode=cycle  card invoice cycles closing in that month
//	?from=2024-05-01&to=...    inclusive date range
func ParsePeriod(query url.Values, operating core.Month) (core.Period, error) {
	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))

	mode := core.ModeMonth
	if from != "" || to != "" {
		mode = core.ModeRange
	}
	if v := strings.TrimSpace(query.Get("mode")); v != "" {
		m, err := core.ParsePeriodMode(v)
		if err != nil {
			return core.Period{}, err
		}
		mode = m
	}

	var p core.Period
	switch mode {
	case core.ModeRange:
		if from == "" || to == "" {
			return core.Period{}, fmt.Errorf("%w: from and to required", core.ErrInvalidPeriod)
		}
		f, err := ParseDate(from)
		if err != nil {
			return core.Period{}, err
		}
		t, err := ParseDate(to)
		if err != nil {
			return core.Period{}, err
		}
		p = core.RangePeriod(f, t)
	default:
		m, err := ParseMonthParam(query, "month", operating)
		if err != nil {
			return core.Period{}, err
		}
		if mode == core.ModeCycle {
			p = core.CyclePeriod(m)
		} else {
			p = core.MonthPeriod(m)
		}
	}
	return p, p.Validate()
}

// PathLedgerID reads the {ledgerId} path segment.
func PathLedgerID(r *http.Request) (int64, error) {
	raw := r.PathValue("ledgerId")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid ledger id %q", core.ErrValidation, raw)
	}
	return id, nil
}

// PathFixedID reads the {id} path segment of a fixed expense.
func PathFixedID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", fmt.Errorf("%w: missing fixed expense id", core.ErrValidation)
	}
	return id, nil
}

// sanitizeInput trims and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
