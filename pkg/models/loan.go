package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "Active"
	LoanStatusOverdue   LoanStatus = "Overdue"
	LoanStatusCurrent   LoanStatus = "Current"
	LoanStatusFullyPaid LoanStatus = "Fully Paid"
)

// IsOpen reports whether the loan still expects repayments.
func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusActive || s == LoanStatusOverdue || s == LoanStatusCurrent
}

type LoanAccount struct {
	ID          uuid.UUID       `json:"id"`
	BorrowerID  uuid.UUID       `json:"borrower_id"` // User holding the loan
	Description string          `json:"description"` // Loan product, e.g. "Personal Loan"
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
	Total       decimal.Decimal `json:"total"`
	TermMonths  int             `json:"term_months"`
	Status      LoanStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LedgerLine is one scheduled installment of a loan. Lines are generated by the
// origination process; only payment approval changes TotalDue, IsPaid and Remarks.
type LedgerLine struct {
	ID             uuid.UUID       `json:"id"`
	LoanID         uuid.UUID       `json:"loan_id"`
	DueDate        time.Time       `json:"due_date"`
	PrincipalDue   decimal.Decimal `json:"principal_due"`
	InterestDue    decimal.Decimal `json:"interest_due"`
	PenaltiesDue   decimal.Decimal `json:"penalties_due"`
	ServiceFeesDue decimal.Decimal `json:"service_fees_due"`
	TotalDue       decimal.Decimal `json:"total_due"`
	IsPaid         *bool           `json:"is_paid"` // nil is treated as unpaid
	Remarks        string          `json:"remarks,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Settled reports whether the line has been marked paid.
func (l *LedgerLine) Settled() bool {
	return l.IsPaid != nil && *l.IsPaid
}

// Fees returns penalties plus service fees.
func (l *LedgerLine) Fees() decimal.Decimal {
	return l.PenaltiesDue.Add(l.ServiceFeesDue)
}

// Overdue reports whether the line is unpaid and was due before asOf's calendar day.
func (l *LedgerLine) Overdue(asOf time.Time) bool {
	return !l.Settled() && l.DueDate.Before(StartOfDay(asOf))
}

func Bool(b bool) *bool {
	return &b
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
