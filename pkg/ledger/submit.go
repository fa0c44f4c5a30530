package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ProofUpload is an optional proof-of-payment attachment.
type ProofUpload struct {
	Data        []byte
	ContentType string
	FileName    string
}

// SubmitPaymentRequest is a borrower or collector payment against one ledger line.
type SubmitPaymentRequest struct {
	LoanID       uuid.UUID
	UserID       uuid.UUID
	LedgerLineID uuid.UUID
	Amount       decimal.Decimal
	PaymentDate  *time.Time // defaults to the submission time
	Proof        *ProofUpload
}

// SubmitResult is returned after a payment has been recorded as Pending.
type SubmitResult struct {
	Payment               *models.PaymentRecord `json:"payment"`
	EstimatedApprovalTime string                `json:"estimated_approval_time"`
	HasReceipt            bool                  `json:"has_receipt"`
}

// SubmitPayment records a Pending payment and its optional proof in one unit
// of work. Ledger lines and loans are never changed here.
func (l *Ledger) SubmitPayment(ctx context.Context, req SubmitPaymentRequest) (*SubmitResult, error) {
	if !req.Amount.IsPositive() {
		return nil, &Error{Kind: KindInvalidRequest, Entity: "Amount", Message: "Payment amount must be greater than zero."}
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, &Error{Kind: KindInvalidRequest, Entity: "Amount", Message: "Payment amount must not have more than two decimal places."}
	}

	now := l.now()
	payment := &models.PaymentRecord{
		ID:           uuid.New(),
		LoanID:       req.LoanID,
		LedgerLineID: req.LedgerLineID,
		UserID:       req.UserID,
		Amount:       req.Amount,
		PaymentDate:  now,
		Status:       models.PaymentStatusPending,
		SubmittedAt:  now,
		Remarks: fmt.Sprintf("Payment submitted for Transaction ID %s. Amount: %s. Awaiting approval.",
			req.LedgerLineID, models.FormatMoney(req.Amount)),
	}
	if req.PaymentDate != nil {
		payment.PaymentDate = req.PaymentDate.UTC()
	}
	hasProof := req.Proof != nil && len(req.Proof.Data) > 0

	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		loan, err := optional(tx.GetLoanAccount(ctx, req.LoanID))
		if err != nil {
			return internalError("failed to read loan", err)
		}
		user, err := optional(tx.GetUser(ctx, req.UserID))
		if err != nil {
			return internalError("failed to read user", err)
		}
		line, err := optional(tx.GetLedgerLine(ctx, req.LedgerLineID))
		if err != nil {
			return internalError("failed to read ledger line", err)
		}

		if err := Validate(loan, user, line, PaymentCheck{
			LoanID:       req.LoanID,
			UserID:       req.UserID,
			LedgerLineID: req.LedgerLineID,
			Amount:       req.Amount,
		}); err != nil {
			return err
		}

		if err := tx.InsertPaymentRecord(ctx, payment); err != nil {
			return internalError("failed to record payment", err)
		}
		if hasProof {
			proof := &models.PaymentProof{
				ID:          uuid.New(),
				PaymentID:   payment.ID,
				Data:        req.Proof.Data,
				ContentType: req.Proof.ContentType,
				FileName:    req.Proof.FileName,
				UploadedAt:  now,
			}
			if err := tx.InsertPaymentProof(ctx, proof); err != nil {
				return internalError("failed to store payment proof", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, asLedgerError(err, "failed to submit payment")
	}
	payment.HasProof = hasProof

	l.log.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"loan_id":        payment.LoanID,
		"ledger_line_id": payment.LedgerLineID,
		"amount":         payment.Amount.StringFixed(2),
		"has_proof":      hasProof,
	}).Info("payment submitted")

	return &SubmitResult{
		Payment:               payment,
		EstimatedApprovalTime: l.turnaround,
		HasReceipt:            hasProof,
	}, nil
}

// optional turns a store ErrNotFound into a nil result.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return v, err
}
