package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mcclellann/loantracker/pkg/auth"
	"github.com/mcclellann/loantracker/pkg/ledger"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/profile"
	"github.com/mcclellann/loantracker/pkg/statement"
	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/sirupsen/logrus"
)

// Server holds the services behind the HTTP API.
type Server struct {
	ledger        *ledger.Ledger
	statements    *statement.Service
	auth          *auth.Service
	profiles      *profile.Service
	storage       store.Storage // Keep a reference to the storage to close it
	log           logrus.FieldLogger
	maxProofBytes int64
}

func NewServer(s store.Storage, l *ledger.Ledger, a *auth.Service, p *profile.Service, log logrus.FieldLogger, maxProofBytes int64) *Server {
	return &Server{
		ledger:        l,
		statements:    statement.NewService(l),
		auth:          a,
		profiles:      p,
		storage:       s,
		log:           log,
		maxProofBytes: maxProofBytes,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/healthz", s.healthHandler).Methods("GET")

	// Public routes
	a := r.PathPrefix("/api/auth").Subrouter()
	a.HandleFunc("/login", s.loginHandler).Methods("POST")
	a.HandleFunc("/verify-otp", s.verifyOTPHandler).Methods("POST")
	a.HandleFunc("/create-mpin", s.createMPINHandler).Methods("POST")
	a.HandleFunc("/mpin-login", s.mpinLoginHandler).Methods("POST")

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/profile", s.getProfileHandler).Methods("GET")
	api.HandleFunc("/profile", s.updateProfileHandler).Methods("PUT")
	api.HandleFunc("/profile/mpin", s.changeMPINHandler).Methods("PUT")
	api.HandleFunc("/profile/avatar", s.updateAvatarHandler).Methods("PUT")
	api.HandleFunc("/users/{userId}/image", s.getImageHandler).Methods("GET")

	api.HandleFunc("/loans", staffOnly(s.registerLoanHandler)).Methods("POST")
	api.HandleFunc("/loans/payments", s.submitPaymentHandler).Methods("POST")
	api.HandleFunc("/loans/payments/pending", staffOnly(s.pendingPaymentsHandler)).Methods("GET")
	api.HandleFunc("/loans/payments/{paymentId}/approve", staffOnly(s.decidePaymentHandler)).Methods("PUT")
	api.HandleFunc("/loans/payments/{paymentId}/receipt", staffOnly(s.receiptHandler)).Methods("GET")
	api.HandleFunc("/loans/client/{userId}", s.clientLoansHandler).Methods("GET")
	api.HandleFunc("/loans/client/{userId}/summary", s.clientSummaryHandler).Methods("GET")
	api.HandleFunc("/loans/user/{userId}/payment-history", s.paymentHistoryHandler).Methods("GET")
	api.HandleFunc("/loans/user/{userId}/payment-status-history", s.paymentStatusHistoryHandler).Methods("GET")
	api.HandleFunc("/loans/{loanId}/transactions", s.loanTransactionsHandler).Methods("GET")
	api.HandleFunc("/loans/{loanId}/payments", s.loanPaymentsHandler).Methods("GET")
	api.HandleFunc("/loans/{loanId}/history", s.loanHistoryHandler).Methods("GET")

	api.HandleFunc("/collector/assignments", staffOnly(s.assignLoanHandler)).Methods("POST")
	api.HandleFunc("/collector/payments", requireRole(s.collectorPaymentHandler, models.RoleCollector)).Methods("POST")
	api.HandleFunc("/collector/{collectorId}/assignments", s.collectorAssignmentsHandler).Methods("GET")
	api.HandleFunc("/collector/{collectorId}/assignments/{loanId}/transactions", s.collectorTransactionsHandler).Methods("GET")

	api.HandleFunc("/statement/account-info/{userId}", s.accountInfoHandler).Methods("GET")
	api.HandleFunc("/statement/account-summary", s.accountSummaryHandler).Methods("POST")
	api.HandleFunc("/statement/transactions", s.statementTransactionsHandler).Methods("POST")
	api.HandleFunc("/statement/full-statement", s.fullStatementHandler).Methods("POST")
	api.HandleFunc("/statement/export", s.exportStatementHandler).Methods("POST")

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
