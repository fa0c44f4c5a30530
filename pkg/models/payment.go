package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusApproved PaymentStatus = "Approved"
	PaymentStatusRejected PaymentStatus = "Rejected"
)

// PaymentRecord is a borrower or collector submission against one ledger line.
// Records are append-only: the status moves out of Pending exactly once.
type PaymentRecord struct {
	ID              uuid.UUID       `json:"id"`
	LoanID          uuid.UUID       `json:"loan_id"`
	LedgerLineID    uuid.UUID       `json:"ledger_line_id"`
	UserID          uuid.UUID       `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     time.Time       `json:"payment_date"`
	Status          PaymentStatus   `json:"status"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ApprovalNotes   string          `json:"approval_notes,omitempty"`
	Remarks         string          `json:"remarks,omitempty"`
	HasProof        bool            `json:"has_proof"`
}

func (p *PaymentRecord) Pending() bool {
	return p.Status == PaymentStatusPending
}

// PaymentProof is the proof-of-payment attachment owned by a single payment.
type PaymentProof struct {
	ID          uuid.UUID `json:"id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	Data        []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	FileName    string    `json:"file_name"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Reference builds a short display reference such as "PAY-1A2B3C4D".
func Reference(prefix string, id uuid.UUID) string {
	return prefix + "-" + strings.ToUpper(id.String()[:8])
}
