package http

import (
	"context"
	"net/http"
	"time"

	"controle/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the backing table answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := "ready"
	code := http.StatusOK

	if _, err := s.ledger.ListCards(ctx); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status = "not_ready"
		code = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	limiter := s.limiter.GetMetrics()
	traced := s.tracer.GetMetrics()

	NewJSONResponse().Status(code).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
		"metrics": map[string]any{
			"requests_total":       traced.TotalRequests,
			"avg_response_time_us": traced.AverageResponseTime,
			"rate_limit_hits":      limiter.TotalHits,
			"rate_limit_clients":   limiter.ClientCount,
		},
	}).Write(w)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.ledger.ListCards(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	OK(w, map[string]any{"cartoes": nonNil(cards)})
}

func (s *Server) handleListFixedTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.ledger.ListFixedTypes(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	OK(w, map[string]any{"tipos": nonNil(types)})
}

// nonNil renders empty lists as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
