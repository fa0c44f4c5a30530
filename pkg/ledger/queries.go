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

// DefaultProofContentType is served when a proof was stored without a content type.
const DefaultProofContentType = "image/jpeg"

// PendingPayment is a payment awaiting review.
type PendingPayment struct {
	*models.PaymentRecord
	DaysWaiting int `json:"days_waiting"`
}

// PendingPayments lists Pending payments, oldest submission first.
func (l *Ledger) PendingPayments(ctx context.Context) ([]PendingPayment, error) {
	payments, err := l.storage.ListPendingPayments(ctx)
	if err != nil {
		return nil, internalError("failed to list pending payments", err)
	}
	now := l.now()
	out := make([]PendingPayment, 0, len(payments))
	for _, p := range payments {
		days := int(now.Sub(p.SubmittedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		out = append(out, PendingPayment{PaymentRecord: p, DaysWaiting: days})
	}
	return out, nil
}

// PaymentProof returns the proof attached to a payment.
func (l *Ledger) PaymentProof(ctx context.Context, paymentID uuid.UUID) (*models.PaymentProof, error) {
	proof, err := l.storage.GetPaymentProof(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, "PaymentProof", "Receipt not found for this payment.")
	}
	if proof.ContentType == "" {
		proof.ContentType = DefaultProofContentType
	}
	return proof, nil
}

// GetPayment retrieves a single payment record.
func (l *Ledger) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.PaymentRecord, error) {
	p, err := l.storage.GetPaymentRecord(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, "Payment", fmt.Sprintf("Payment with ID %s not found.", paymentID))
	}
	return p, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, loanID uuid.UUID) (*models.LoanAccount, error) {
	loan, err := l.storage.GetLoanAccount(ctx, loanID)
	if err != nil {
		return nil, lookupError(err, "Loan", fmt.Sprintf("Loan with ID %s not found.", loanID))
	}
	return loan, nil
}

// GetUser retrieves a user by ID.
func (l *Ledger) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := l.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "User", fmt.Sprintf("User with ID %s not found in the system.", userID))
	}
	return u, nil
}

// LoanTransactions returns a loan's ledger lines, latest due date first.
func (l *Ledger) LoanTransactions(ctx context.Context, loanID uuid.UUID) ([]*models.LedgerLine, error) {
	if _, err := l.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	lines, err := l.storage.ListLedgerLines(ctx, loanID)
	if err != nil {
		return nil, internalError("failed to list ledger lines", err)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].DueDate.After(lines[j].DueDate) })
	return lines, nil
}

// LoanPayments returns a loan's payments, latest payment date first.
func (l *Ledger) LoanPayments(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	if _, err := l.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	payments, err := l.storage.ListPaymentsForLoan(ctx, loanID)
	if err != nil {
		return nil, internalError("failed to list payments", err)
	}
	return payments, nil
}

// LoanHistory is the full servicing history of one loan.
type LoanHistory struct {
	Loan      *models.LoanAccount     `json:"loan"`
	Lines     []*models.LedgerLine    `json:"ledger_lines"`
	Payments  []*models.PaymentRecord `json:"payments"`
	Approvals []*models.PaymentRecord `json:"approvals"` // decided payments, latest decision first
}

func (l *Ledger) LoanHistory(ctx context.Context, loanID uuid.UUID) (*LoanHistory, error) {
	loan, err := l.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	lines, err := l.storage.ListLedgerLines(ctx, loanID)
	if err != nil {
		return nil, internalError("failed to list ledger lines", err)
	}
	payments, err := l.storage.ListPaymentsForLoan(ctx, loanID)
	if err != nil {
		return nil, internalError("failed to list payments", err)
	}

	h := &LoanHistory{Loan: loan, Lines: lines, Payments: payments, Approvals: []*models.PaymentRecord{}}
	for _, p := range payments {
		if !p.Pending() && p.ApprovedAt != nil {
			h.Approvals = append(h.Approvals, p)
		}
	}
	sort.SliceStable(h.Approvals, func(i, j int) bool { return h.Approvals[i].ApprovedAt.After(*h.Approvals[j].ApprovedAt) })
	return h, nil
}

// ClientLoan is a borrower's loan with its schedule and computed balances.
type ClientLoan struct {
	Loan               *models.LoanAccount     `json:"loan"`
	ClientFullName     string                  `json:"client_full_name"`
	UserName           string                  `json:"user_name"`
	OutstandingBalance decimal.Decimal         `json:"outstanding_balance"`
	TotalPaid          decimal.Decimal         `json:"total_paid"`
	NextPaymentDue     *models.LedgerLine      `json:"next_payment_due,omitempty"`
	OverduePayments    []*models.LedgerLine    `json:"overdue_payments"`
	Lines              []*models.LedgerLine    `json:"loan_transactions"`
	Payments           []*models.PaymentRecord `json:"payment_history"`
}

// ClientLoans returns the borrower's Active and Overdue loans.
func (l *Ledger) ClientLoans(ctx context.Context, userID uuid.UUID) ([]ClientLoan, error) {
	user, err := l.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	loans, err := l.storage.ListLoansForBorrower(ctx, userID, models.LoanStatusActive, models.LoanStatusOverdue)
	if err != nil {
		return nil, internalError("failed to list loans", err)
	}
	if len(loans) == 0 {
		return nil, notFoundError("Loan",
			fmt.Sprintf("No active loans found for user ID %s. User exists but has no active loans.", userID))
	}

	today := l.today()
	out := make([]ClientLoan, 0, len(loans))
	for _, loan := range loans {
		lines, err := l.storage.ListLedgerLines(ctx, loan.ID)
		if err != nil {
			return nil, internalError("failed to list ledger lines", err)
		}
		payments, err := l.storage.ListPaymentsForLoan(ctx, loan.ID)
		if err != nil {
			return nil, internalError("failed to list payments", err)
		}

		cl := ClientLoan{
			Loan:               loan,
			ClientFullName:     user.FullName,
			UserName:           user.UserName,
			OutstandingBalance: outstanding(lines),
			TotalPaid:          decimal.Zero,
			NextPaymentDue:     nextDue(lines, today),
			OverduePayments:    []*models.LedgerLine{},
			Lines:              lines,
			Payments:           payments,
		}
		for _, p := range payments {
			if p.Status == models.PaymentStatusApproved {
				cl.TotalPaid = cl.TotalPaid.Add(p.Amount)
			}
		}
		for _, line := range lines {
			if line.Overdue(today) {
				cl.OverduePayments = append(cl.OverduePayments, line)
			}
		}
		out = append(out, cl)
	}
	return out, nil
}

// LoanSummary is the lightweight view of an Active loan.
type LoanSummary struct {
	LoanID             uuid.UUID         `json:"loan_id"`
	ClientFullName     string            `json:"client_full_name"`
	LoanAmount         decimal.Decimal   `json:"loan_amount"`
	Total              decimal.Decimal   `json:"total"`
	Status             models.LoanStatus `json:"status"`
	OutstandingBalance decimal.Decimal   `json:"outstanding_balance"`
	NextPaymentAmount  decimal.Decimal   `json:"next_payment_amount"`
	NextPaymentDate    *models.Date      `json:"next_payment_date,omitempty"`
}

func (l *Ledger) ClientLoanSummary(ctx context.Context, userID uuid.UUID) ([]LoanSummary, error) {
	user, err := l.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	loans, err := l.storage.ListLoansForBorrower(ctx, userID, models.LoanStatusActive)
	if err != nil {
		return nil, internalError("failed to list loans", err)
	}
	if len(loans) == 0 {
		return nil, notFoundError("Loan", "No active loans found for this client.")
	}

	today := l.today()
	out := make([]LoanSummary, 0, len(loans))
	for _, loan := range loans {
		lines, err := l.storage.ListLedgerLines(ctx, loan.ID)
		if err != nil {
			return nil, internalError("failed to list ledger lines", err)
		}
		s := LoanSummary{
			LoanID:             loan.ID,
			ClientFullName:     user.FullName,
			LoanAmount:         loan.Principal,
			Total:              loan.Total,
			Status:             loan.Status,
			OutstandingBalance: outstanding(lines),
			NextPaymentAmount:  decimal.Zero,
		}
		if next := nextDue(lines, today); next != nil {
			s.NextPaymentAmount = next.TotalDue
			d := models.Date(next.DueDate)
			s.NextPaymentDate = &d
		}
		out = append(out, s)
	}
	return out, nil
}

// outstanding sums totalDue over unpaid lines.
func outstanding(lines []*models.LedgerLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		if !line.Settled() {
			sum = sum.Add(line.TotalDue)
		}
	}
	return sum
}

// nextDue returns the earliest unpaid line due on or after today. lines must be ordered by due date.
func nextDue(lines []*models.LedgerLine, today time.Time) *models.LedgerLine {
	for _, line := range lines {
		if !line.Settled() && !line.DueDate.Before(today) {
			return line
		}
	}
	return nil
}
