package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/ledger"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/shopspring/decimal"
)

// paymentInput is the JSON form of a payment submission. Multipart
// submissions carry the same fields as form values plus a "proof" file.
type paymentInput struct {
	LoanID           uuid.UUID       `json:"loan_id"`
	UserID           uuid.UUID       `json:"user_id"`
	LedgerLineID     uuid.UUID       `json:"ledger_line_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentDate      string          `json:"payment_date,omitempty"`
	ProofImage       string          `json:"proof_image,omitempty"`
	ProofContentType string          `json:"proof_content_type,omitempty"`
	ProofFileName    string          `json:"proof_file_name,omitempty"`
}

// readPayment parses a JSON or multipart payment submission.
func (s *Server) readPayment(w http.ResponseWriter, r *http.Request) (*ledger.SubmitPaymentRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxProofBytes+1<<20)
		return s.readPaymentForm(r)
	}

	// A base64 proof is 4/3 the size of the raw image.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxProofBytes*4/3+1<<20)

	var in paymentInput
	if err := decodeJSON(r, &in); err != nil {
		return nil, err
	}
	req := &ledger.SubmitPaymentRequest{
		LoanID:       in.LoanID,
		UserID:       in.UserID,
		LedgerLineID: in.LedgerLineID,
		Amount:       in.Amount,
	}
	if err := setPaymentDate(req, in.PaymentDate); err != nil {
		return nil, err
	}
	if in.ProofImage != "" {
		proof, err := s.decodeProof(in.ProofImage, in.ProofContentType, in.ProofFileName)
		if err != nil {
			return nil, err
		}
		req.Proof = proof
	}
	return req, nil
}

func (s *Server) readPaymentForm(r *http.Request) (*ledger.SubmitPaymentRequest, error) {
	if err := r.ParseMultipartForm(s.maxProofBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	req := &ledger.SubmitPaymentRequest{}
	var err error
	if req.LoanID, err = formID(r, "loan_id"); err != nil {
		return nil, err
	}
	if v := r.FormValue("user_id"); v != "" {
		if req.UserID, err = uuid.Parse(v); err != nil {
			return nil, fmt.Errorf("invalid user_id")
		}
	}
	if req.LedgerLineID, err = formID(r, "ledger_line_id"); err != nil {
		return nil, err
	}
	if req.Amount, err = decimal.NewFromString(r.FormValue("amount")); err != nil {
		return nil, fmt.Errorf("invalid amount")
	}
	if err := setPaymentDate(req, r.FormValue("payment_date")); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("proof")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid proof upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxProofBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read proof upload: %w", err)
	}
	if int64(len(data)) > s.maxProofBytes {
		return nil, fmt.Errorf("proof exceeds %d bytes", s.maxProofBytes)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	req.Proof = &ledger.ProofUpload{Data: data, ContentType: contentType, FileName: header.Filename}
	return req, nil
}

func formID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.FormValue(key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", key)
	}
	return id, nil
}

func setPaymentDate(req *ledger.SubmitPaymentRequest, value string) error {
	if value == "" {
		return nil
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return fmt.Errorf("invalid payment_date: %w", err)
	}
	req.PaymentDate = &t
	return nil
}

func (s *Server) decodeProof(encoded, contentType, fileName string) (*ledger.ProofUpload, error) {
	if prefix, body, ok := strings.Cut(encoded, ","); ok {
		encoded = body
		if contentType == "" {
			if mt, _, ok := strings.Cut(strings.TrimPrefix(prefix, "data:"), ";"); ok {
				contentType = mt
			}
		}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid proof_image encoding")
	}
	if int64(len(data)) > s.maxProofBytes {
		return nil, fmt.Errorf("proof exceeds %d bytes", s.maxProofBytes)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &ledger.ProofUpload{Data: data, ContentType: contentType, FileName: fileName}, nil
}

func (s *Server) submitPaymentHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.readPayment(w, r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		req.UserID = identity(r).UserID
	}
	if !authorizeUser(w, r, req.UserID) || !s.authorizeLoan(w, r, req.LoanID) {
		return
	}
	s.submit(w, r, req)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, req *ledger.SubmitPaymentRequest) {
	res, err := s.ledger.SubmitPayment(r.Context(), *req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) pendingPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := s.ledger.PendingPayments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) decidePaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(w, r, "paymentId", "payment")
	if !ok {
		return
	}
	var body struct {
		Approved        *bool  `json:"approved"`
		ApprovedBy      string `json:"approved_by"`
		Notes           string `json:"notes"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Approved == nil {
		writeErrorMessage(w, http.StatusBadRequest, "approved is required")
		return
	}
	approver := strings.TrimSpace(body.ApprovedBy)
	if approver == "" {
		approver = identity(r).UserID.String()
	}

	res, err := s.ledger.DecidePayment(r.Context(), ledger.DecisionRequest{
		PaymentID:       paymentID,
		Approver:        approver,
		Approved:        *body.Approved,
		Notes:           body.Notes,
		RejectionReason: body.RejectionReason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) receiptHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(w, r, "paymentId", "payment")
	if !ok {
		return
	}
	proof, err := s.ledger.PaymentProof(r.Context(), paymentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := proof.FileName
	if name == "" {
		name = models.Reference("PAY", paymentID)
	}
	w.Header().Set("Content-Type", proof.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(proof.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	w.Header().Set("Last-Modified", proof.UploadedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(proof.Data)
}
