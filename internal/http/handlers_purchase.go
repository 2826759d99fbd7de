package http

import (
	"net/http"
	"strings"

	"controle/internal/core"
	"controle/internal/ledger"
	"controle/internal/log"
)

type purchaseRequest struct {
	PaymentMethod string `json:"formaPgto"`
	Installments  int    `json:"parcelas"`
	Description   string `json:"compra"`
	Total         Amount `json:"valor"`
	Date          *Date  `json:"data"`
	Person        string `json:"pessoa"`
	Source        string `json:"fonte"`
	Card          string `json:"cartao"`
}

type editPurchaseRequest struct {
	InstallmentLabel string     `json:"parcela"`
	PaymentMethod    string     `json:"formaPgto"`
	Description      string     `json:"compra"`
	Amount           Amount     `json:"valor"`
	Date             Date       `json:"data"`
	Month            core.Month `json:"mesAno"`
	Person           string     `json:"pessoa"`
	Source           string     `json:"fonte"`
	Card             string     `json:"cartao"`
}

type splitRequest struct {
	Counterpart string `json:"pessoa"`
	Amount      Amount `json:"valor"`
}

// handleListPurchases returns purchases grouped by person, optionally only
// for ?person=.
func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	groups, err := s.ledger.PurchasesByPerson(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if person := strings.TrimSpace(r.URL.Query().Get("person")); person != "" {
		filtered := groups[:0]
		for _, g := range groups {
			if core.EqualFold(g.Person, person) {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}
	OK(w, map[string]any{"pessoas": nonNil(groups)})
}

func (s *Server) handleRegisterPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	installments := req.Installments
	if installments == 0 {
		installments = 1
	}
	p := core.Purchase{
		PaymentMethod: core.PaymentMethod(req.PaymentMethod),
		Installments:  installments,
		Description:   sanitizeInput(req.Description),
		Total:         req.Total.Value,
		Person:        sanitizeInput(req.Person),
		Source:        sanitizeInput(req.Source),
		Card:          sanitizeInput(req.Card),
	}
	if req.Date != nil {
		p.Date = req.Date.Time
	}

	res, err := s.ledger.RegisterPurchase(r.Context(), p)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	Created(w, res)
}

func (s *Server) handleEditPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := PathLedgerID(r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	var req editPurchaseRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.submit(w, r, log.OpUpdate, ledger.CmdEditPurchase, ledger.EditPurchaseInput{
		LedgerID:         id,
		InstallmentLabel: strings.TrimSpace(req.InstallmentLabel),
		PaymentMethod:    req.PaymentMethod,
		Description:      sanitizeInput(req.Description),
		Amount:           req.Amount.Value,
		Date:             req.Date.Time,
		Month:            req.Month,
		Person:           sanitizeInput(req.Person),
		Source:           sanitizeInput(req.Source),
		Card:             sanitizeInput(req.Card),
	})
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := PathLedgerID(r)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.submit(w, r, log.OpDelete, ledger.CmdDeletePurchase, ledger.DeletePurchaseCommand{LedgerID: id})
}

func (s *Server) handleSplitPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := PathLedgerID(r)
	if err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}
	var req splitRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpSplit, err)
		return
	}
	s.submit(w, r, log.OpSplit, ledger.CmdSplitPurchase, ledger.SplitPurchaseInput{
		LedgerID:    id,
		Counterpart: sanitizeInput(req.Counterpart),
		Share:       req.Amount.Value,
	})
}
