package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/shopspring/decimal"
)

// HistoryKind tags the entries of a borrower's payment history.
type HistoryKind string

const (
	HistorySubmitted HistoryKind = "Submitted"
	HistoryScheduled HistoryKind = "Scheduled"
	HistoryOverdue   HistoryKind = "Overdue"
)

// HistoryEntry is either a submitted payment or an unpaid schedule line.
// Exactly one of Payment and Line is set, matching Kind.
type HistoryEntry struct {
	Kind            HistoryKind           `json:"kind"`
	Date            time.Time             `json:"payment_date"`
	LoanID          uuid.UUID             `json:"loan_id"`
	LedgerLineID    uuid.UUID             `json:"transaction_id"`
	Amount          decimal.Decimal       `json:"amount"`
	Status          string                `json:"status"`
	ReferenceNumber string                `json:"reference_number"`
	Description     string                `json:"description"`
	PaymentMethod   string                `json:"payment_method"`
	Remarks         string                `json:"remarks,omitempty"`
	ReceiptURL      string                `json:"receipt_url,omitempty"`
	Payment         *models.PaymentRecord `json:"payment,omitempty"`
	Line            *models.LedgerLine    `json:"line,omitempty"`
}

// ReceiptURL is the API path serving a payment's proof.
func ReceiptURL(paymentID uuid.UUID) string {
	return "/api/loans/payments/" + paymentID.String() + "/receipt"
}

func submittedEntry(p *models.PaymentRecord) HistoryEntry {
	e := HistoryEntry{
		Kind:            HistorySubmitted,
		Date:            p.PaymentDate,
		LoanID:          p.LoanID,
		LedgerLineID:    p.LedgerLineID,
		Amount:          p.Amount,
		Status:          string(p.Status),
		ReferenceNumber: models.Reference("PAY", p.ID),
		Description:     "Payment Submitted",
		PaymentMethod:   "GCash",
		Remarks:         p.Remarks,
		Payment:         p,
	}
	if p.Pending() {
		e.PaymentMethod = "Pending Review"
	}
	if p.HasProof {
		e.ReceiptURL = ReceiptURL(p.ID)
	}
	return e
}

func scheduleEntry(line *models.LedgerLine, overdue bool) HistoryEntry {
	e := HistoryEntry{
		Kind:            HistoryScheduled,
		Date:            line.DueDate,
		LoanID:          line.LoanID,
		LedgerLineID:    line.ID,
		Amount:          line.TotalDue,
		Status:          string(HistoryScheduled),
		ReferenceNumber: models.Reference("SCH", line.ID),
		Description:     "Scheduled Payment",
		PaymentMethod:   "Pending",
		Remarks:         "Payment due on " + line.DueDate.Format(models.DateLayout),
		Line:            line,
	}
	if overdue {
		e.Kind = HistoryOverdue
		e.Status = string(HistoryOverdue)
		e.Description = "Overdue Payment"
		e.Remarks = "Payment overdue since " + line.DueDate.Format(models.DateLayout)
	}
	return e
}

// PaymentHistory merges a borrower's submitted payments with the unpaid lines
// of their loans, latest date first. An overdue line that already has a
// Pending payment is left out.
func (l *Ledger) PaymentHistory(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	if _, err := l.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	payments, err := l.storage.ListPaymentsForBorrower(ctx, userID)
	if err != nil {
		return nil, internalError("failed to list payments", err)
	}
	loans, err := l.storage.ListLoansForBorrower(ctx, userID)
	if err != nil {
		return nil, internalError("failed to list loans", err)
	}

	entries := make([]HistoryEntry, 0, len(payments))
	pendingLines := make(map[uuid.UUID]bool)
	for _, p := range payments {
		entries = append(entries, submittedEntry(p))
		if p.Pending() {
			pendingLines[p.LedgerLineID] = true
		}
	}

	today := l.today()
	for _, loan := range loans {
		lines, err := l.storage.ListLedgerLines(ctx, loan.ID)
		if err != nil {
			return nil, internalError(fmt.Sprintf("failed to list ledger lines for loan %s", loan.ID), err)
		}
		for _, line := range lines {
			if line.Settled() {
				continue
			}
			overdue := line.Overdue(today)
			if overdue && pendingLines[line.ID] {
				continue
			}
			entries = append(entries, scheduleEntry(line, overdue))
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	return entries, nil
}

// PaymentStatusHistory lists only the borrower's submitted payments, latest first.
func (l *Ledger) PaymentStatusHistory(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	if _, err := l.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	payments, err := l.storage.ListPaymentsForBorrower(ctx, userID)
	if err != nil {
		return nil, internalError("failed to list payments", err)
	}
	if len(payments) == 0 {
		return nil, notFoundError("Payment", "No payment history found for this user.")
	}
	entries := make([]HistoryEntry, 0, len(payments))
	for _, p := range payments {
		entries = append(entries, submittedEntry(p))
	}
	return entries, nil
}
