package http

import (
	"fmt"
	"net/http"
	"strings"

	"controle/internal/core"
	"controle/internal/ledger"
	"controle/internal/log"
)

// handleSummary answers GET /api/summary?person=Ana&month=05/2024[&mode=cycle]
// or ?person=Ana&from=2024-05-01&to=2024-05-31.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	person := sanitizeInput(query.Get("person"))
	if person == "" {
		s.writeError(w, r, log.OpSummary, core.ErrEmptyPerson)
		return
	}
	period, err := ParsePeriod(query, s.ledger.OperatingMonth())
	if err != nil {
		s.writeError(w, r, log.OpSummary, err)
		return
	}

	summary, err := s.ledger.Summarize(r.Context(), person, period)
	if err != nil {
		s.writeError(w, r, log.OpSummary, err)
		return
	}
	summary.Purchases = nonNil(summary.Purchases)
	summary.ByCard = nonNil(summary.ByCard)
	summary.ByCardType = nonNil(summary.ByCardType)
	OK(w, summary)
}

// handleOverview answers GET /api/overview?window=rolling|current.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	window := ledger.WindowRolling
	switch v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("window"))); v {
	case "", string(ledger.WindowRolling):
	case string(ledger.WindowCurrent):
		window = ledger.WindowCurrent
	default:
		s.writeError(w, r, log.OpSummary, fmt.Errorf("%w: unknown window %q", core.ErrValidation, v))
		return
	}

	overview, err := s.ledger.SummarizeAll(r.Context(), window)
	if err != nil {
		s.writeError(w, r, log.OpSummary, err)
		return
	}
	OK(w, map[string]any{
		"janela": window,
		"linhas": nonNil(overview),
	})
}
