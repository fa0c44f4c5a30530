package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/ledger"
	"github.com/mcclellann/loantracker/pkg/models"
)

func forbidden(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusForbidden, "You are not allowed to access this resource")
}

// authorizeUser lets staff read any user and everyone else only themselves.
func authorizeUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) bool {
	if !identity(r).CanView(userID) {
		forbidden(w)
		return false
	}
	return true
}

// authorizeLoan lets staff read any loan, borrowers their own loans and
// collectors the loans assigned to them.
func (s *Server) authorizeLoan(w http.ResponseWriter, r *http.Request, loanID uuid.UUID) bool {
	id := identity(r)
	switch {
	case id.IsStaff():
		return true
	case id.Role == models.RoleCollector:
		assigned, err := s.storage.IsLoanAssigned(r.Context(), id.UserID, loanID)
		if err != nil {
			s.writeError(w, r, err)
			return false
		}
		if !assigned {
			forbidden(w)
			return false
		}
		return true
	default:
		loan, err := s.ledger.GetLoan(r.Context(), loanID)
		if err != nil {
			s.writeError(w, r, err)
			return false
		}
		if loan.BorrowerID != id.UserID {
			forbidden(w)
			return false
		}
		return true
	}
}

func (s *Server) registerLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.RegisterLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	loan, err := s.ledger.RegisterLoan(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) clientLoansHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", "user")
	if !ok || !authorizeUser(w, r, userID) {
		return
	}
	loans, err := s.ledger.ClientLoans(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) clientSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", "user")
	if !ok || !authorizeUser(w, r, userID) {
		return
	}
	summary, err := s.ledger.ClientLoanSummary(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) paymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", "user")
	if !ok || !authorizeUser(w, r, userID) {
		return
	}
	history, err := s.ledger.PaymentHistory(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) paymentStatusHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", "user")
	if !ok || !authorizeUser(w, r, userID) {
		return
	}
	history, err := s.ledger.PaymentStatusHistory(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) loanTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId", "loan")
	if !ok || !s.authorizeLoan(w, r, loanID) {
		return
	}
	lines, err := s.ledger.LoanTransactions(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) loanPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId", "loan")
	if !ok || !s.authorizeLoan(w, r, loanID) {
		return
	}
	payments, err := s.ledger.LoanPayments(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) loanHistoryHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId", "loan")
	if !ok || !s.authorizeLoan(w, r, loanID) {
		return
	}
	history, err := s.ledger.LoanHistory(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
