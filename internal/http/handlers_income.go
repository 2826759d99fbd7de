package http

import (
	"net/http"
	"time"

	"controle/internal/core"
	"controle/internal/ledger"
	"controle/internal/log"
)

type incomeRequest struct {
	Person     string     `json:"pessoa"`
	Source     string     `json:"fonte"`
	Month      core.Month `json:"mesAno"`
	Amount     Amount     `json:"valor"`
	HourlyRate Amount     `json:"valorHora"`
	Hours      Amount     `json:"horas"`
}

type extraIncomeRequest struct {
	Person string `json:"pessoa"`
	Amount Amount `json:"valor"`
	Date   *Date  `json:"data"`
}

func (s *Server) handleRegisterIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	month := req.Month
	if month.IsZero() {
		month = s.ledger.OperatingMonth()
	}

	entry, err := s.ledger.RegisterIncome(r.Context(), ledger.IncomeInput{
		Person:     sanitizeInput(req.Person),
		Source:     sanitizeInput(req.Source),
		Month:      month,
		BaseAmount: req.Amount.Value,
		HourlyRate: req.HourlyRate.Value,
		Hours:      req.Hours.Value,
	})
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Income registered",
		log.FieldPerson, entry.Person,
		log.FieldMonth, entry.CompetencyMonth.String(),
		log.FieldAmount, entry.BaseAmount.String())
	Created(w, entry)
}

// handleRegisterExtraIncome adds to an existing entry, so it is submitted as
// a command. A missing date means today.
func (s *Server) handleRegisterExtraIncome(w http.ResponseWriter, r *http.Request) {
	var req extraIncomeRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	date := core.DateOnly(time.Now())
	if req.Date != nil {
		date = req.Date.Time
	}
	s.submit(w, r, log.OpUpdate, ledger.CmdExtraIncome, ledger.ExtraIncomeInput{
		Person: sanitizeInput(req.Person),
		Amount: req.Amount.Value,
		Date:   date,
	})
}
