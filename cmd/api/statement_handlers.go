package main

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/statement"
)

type exportRequest struct {
	statement.Request
	Format string `json:"format"`
}

// scopeStatement restricts clients to their own loans and collectors to
// assigned loans.
func (s *Server) scopeStatement(w http.ResponseWriter, r *http.Request, req *statement.Request) bool {
	id := identity(r)
	switch {
	case id.IsStaff():
		return true
	case id.Role == models.RoleClient:
		req.UserID = id.UserID
		return true
	default:
		return s.authorizeLoan(w, r, req.LoanID)
	}
}

func (s *Server) readStatementRequest(w http.ResponseWriter, r *http.Request) (*statement.Request, bool) {
	var req statement.Request
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if !s.scopeStatement(w, r, &req) {
		return nil, false
	}
	return &req, true
}

func (s *Server) accountInfoHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", "user")
	if !ok || !authorizeUser(w, r, userID) {
		return
	}
	info, err := s.statements.AccountInfo(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) accountSummaryHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readStatementRequest(w, r)
	if !ok {
		return
	}
	summary, err := s.statements.AccountSummary(r.Context(), *req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) statementTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readStatementRequest(w, r)
	if !ok {
		return
	}
	txs, err := s.statements.Transactions(r.Context(), *req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) fullStatementHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readStatementRequest(w, r)
	if !ok {
		return
	}
	st, err := s.statements.FullStatement(r.Context(), *req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) exportStatementHandler(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.scopeStatement(w, r, &req.Request) {
		return
	}
	data, contentType, filename, err := s.statements.Export(r.Context(), req.Request, req.Format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
