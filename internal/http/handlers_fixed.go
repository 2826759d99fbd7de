package http

import (
	"fmt"
	"net/http"

	"controle/internal/core"
	"controle/internal/ledger"
	"controle/internal/log"
)

type fixedItemRequest struct {
	Type    string     `json:"tipo"`
	Month   core.Month `json:"mesAno"`
	Person  string     `json:"pessoa"`
	DueDate string     `json:"vencimento"`
	Amount  Amount     `json:"valor"`
}

type generateFixedRequest struct {
	Items []fixedItemRequest `json:"itens"`
}

type copyFixedRequest struct {
	From core.Month `json:"de"`
	To   core.Month `json:"para"`
}

type fixedPatchRequest struct {
	Amount  *Amount `json:"valor"`
	Paid    *bool   `json:"pago"`
	Split   *bool   `json:"dividido"`
	DueDate *string `json:"vencimento"`
}

// handleGenerateFixed inserts a batch; the response carries one outcome per
// item, so a partly invalid batch still answers 200.
func (s *Server) handleGenerateFixed(w http.ResponseWriter, r *http.Request) {
	var req generateFixedRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	if len(req.Items) == 0 {
		s.writeError(w, r, log.OpCreate, fmt.Errorf("%w: no items", core.ErrValidation))
		return
	}

	batch := make([]ledger.FixedExpenseInput, len(req.Items))
	for i, it := range req.Items {
		batch[i] = ledger.FixedExpenseInput{
			Type:    sanitizeInput(it.Type),
			Month:   it.Month,
			Person:  sanitizeInput(it.Person),
			DueDate: sanitizeInput(it.DueDate),
			Amount:  it.Amount.Nullable(),
		}
	}
	outcomes, err := s.ledger.GenerateFixedExpenses(r.Context(), batch)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	OK(w, map[string]any{"resultados": nonNil(outcomes)})
}

// handleCopyFixed copies one month's fixed expenses into another. Without a
// body field the target is the operating month and the source the month
// before it.
func (s *Server) handleCopyFixed(w http.ResponseWriter, r *http.Request) {
	var req copyFixedRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(r, &req); err != nil {
			s.writeError(w, r, log.OpCreate, err)
			return
		}
	}
	if req.To.IsZero() {
		req.To = s.ledger.OperatingMonth()
	}
	if req.From.IsZero() {
		req.From = req.To.AddMonths(-1)
	}

	outcomes, err := s.ledger.CopyFixedExpensesForward(r.Context(), req.From, req.To)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	OK(w, map[string]any{
		"de":         req.From,
		"para":       req.To,
		"resultados": nonNil(outcomes),
	})
}

func (s *Server) handleUpdateFixed(w http.ResponseWriter, r *http.Request) {
	id, err := PathFixedID(r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	var req fixedPatchRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	patch := ledger.FixedPatch{Paid: req.Paid, Split: req.Split, DueDate: req.DueDate}
	if req.Amount != nil && req.Amount.Set {
		v := req.Amount.Value
		patch.Amount = &v
	}
	if patch.Amount == nil && patch.Paid == nil && patch.Split == nil && patch.DueDate == nil {
		s.writeError(w, r, log.OpUpdate, fmt.Errorf("%w: nothing to update", core.ErrValidation))
		return
	}
	s.submit(w, r, log.OpUpdate, ledger.CmdUpdateFixed, ledger.UpdateFixedCommand{ID: id, Patch: patch})
}

func (s *Server) handleDeleteFixed(w http.ResponseWriter, r *http.Request) {
	id, err := PathFixedID(r)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.submit(w, r, log.OpDelete, ledger.CmdDeleteFixed, ledger.DeleteFixedCommand{ID: id})
}

func (s *Server) handleSplitFixed(w http.ResponseWriter, r *http.Request) {
	id, err := PathFixedID(r)
	if err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}
	var req splitRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}
	s.submit(w, r, log.OpSplit, ledger.CmdSplitFixed, ledger.SplitFixedCommand{
		ID:          id,
		Counterpart: sanitizeInput(req.Counterpart),
		Amount:      req.Amount.Value,
	})
}
