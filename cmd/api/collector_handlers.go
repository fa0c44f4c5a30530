package main

import (
	"net/http"
	"strconv"

	"github.com/mcclellann/loantracker/pkg/ledger"
)

func (s *Server) assignLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AssignedBy = identity(r).UserID
	a, err := s.ledger.AssignLoan(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) collectorAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	collectorID, ok := pathID(w, r, "collectorId", "collector")
	if !ok || !authorizeUser(w, r, collectorID) {
		return
	}
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "Invalid active flag")
			return
		}
		activeOnly = b
	}
	loans, err := s.ledger.CollectorAssignments(r.Context(), collectorID, activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) collectorTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	collectorID, ok := pathID(w, r, "collectorId", "collector")
	if !ok || !authorizeUser(w, r, collectorID) {
		return
	}
	loanID, ok := pathID(w, r, "loanId", "loan")
	if !ok {
		return
	}
	lines, err := s.ledger.CollectorLoanTransactions(r.Context(), collectorID, loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// collectorPaymentHandler records a payment collected in the field. It goes
// through the same Pending review as borrower submissions.
func (s *Server) collectorPaymentHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.readPayment(w, r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = identity(r).UserID
	if !s.authorizeLoan(w, r, req.LoanID) {
		return
	}
	s.submit(w, r, req)
}
