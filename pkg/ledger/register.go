package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ScheduledLine is one pre-generated installment of a registered loan.
type ScheduledLine struct {
	DueDate        time.Time       `json:"due_date"`
	PrincipalDue   decimal.Decimal `json:"principal_due"`
	InterestDue    decimal.Decimal `json:"interest_due"`
	PenaltiesDue   decimal.Decimal `json:"penalties_due"`
	ServiceFeesDue decimal.Decimal `json:"service_fees_due"`
}

// RegisterLoanRequest carries a loan and its schedule from the origination process.
type RegisterLoanRequest struct {
	BorrowerID  uuid.UUID       `json:"borrower_id"`
	Description string          `json:"description"`
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
	Total       decimal.Decimal `json:"total"`
	TermMonths  int             `json:"term_months"`
	Lines       []ScheduledLine `json:"lines"`
}

// RegisteredLoan is a stored loan with its schedule.
type RegisteredLoan struct {
	Loan  *models.LoanAccount  `json:"loan"`
	Lines []*models.LedgerLine `json:"ledger_lines"`
}

// RegisterLoan stores a loan with its schedule. The loan starts Active and
// every line starts unpaid with totalDue equal to the sum of its components.
func (l *Ledger) RegisterLoan(ctx context.Context, req RegisterLoanRequest) (*RegisteredLoan, error) {
	if !req.Principal.IsPositive() {
		return nil, invalidRequest("Principal must be greater than zero.")
	}
	if req.Interest.IsNegative() {
		return nil, invalidRequest("Interest cannot be negative.")
	}
	if req.TermMonths < 0 {
		return nil, invalidRequest("Term cannot be negative.")
	}
	if len(req.Lines) == 0 {
		return nil, invalidRequest("At least one scheduled line is required.")
	}
	borrower, err := l.GetUser(ctx, req.BorrowerID)
	if err != nil {
		return nil, err
	}
	if borrower.Role != models.RoleClient {
		return nil, invalidRequest(fmt.Sprintf("User %s is not a client.", borrower.ID))
	}

	now := l.now()
	loan := &models.LoanAccount{
		ID:          uuid.New(),
		BorrowerID:  borrower.ID,
		Description: req.Description,
		Principal:   req.Principal,
		Interest:    req.Interest,
		Total:       req.Total,
		TermMonths:  req.TermMonths,
		Status:      models.LoanStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if loan.Description == "" {
		loan.Description = "Personal Loan"
	}
	if loan.Total.IsZero() {
		loan.Total = loan.Principal.Add(loan.Interest)
	}

	lines := make([]*models.LedgerLine, 0, len(req.Lines))
	for i, sl := range req.Lines {
		if sl.DueDate.IsZero() {
			return nil, invalidRequest(fmt.Sprintf("Line %d is missing a due date.", i+1))
		}
		if sl.PrincipalDue.IsNegative() || sl.InterestDue.IsNegative() || sl.PenaltiesDue.IsNegative() || sl.ServiceFeesDue.IsNegative() {
			return nil, invalidRequest(fmt.Sprintf("Line %d has a negative amount.", i+1))
		}
		lines = append(lines, &models.LedgerLine{
			ID:             uuid.New(),
			LoanID:         loan.ID,
			DueDate:        sl.DueDate.UTC(),
			PrincipalDue:   sl.PrincipalDue,
			InterestDue:    sl.InterestDue,
			PenaltiesDue:   sl.PenaltiesDue,
			ServiceFeesDue: sl.ServiceFeesDue,
			TotalDue:       sl.PrincipalDue.Add(sl.InterestDue).Add(sl.PenaltiesDue).Add(sl.ServiceFeesDue),
			IsPaid:         models.Bool(false),
			UpdatedAt:      now,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].DueDate.Before(lines[j].DueDate) })

	if err := l.storage.CreateLoanAccount(ctx, loan, lines); err != nil {
		return nil, internalError("failed to store loan", err)
	}
	l.log.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"borrower_id": loan.BorrowerID,
		"lines":       len(lines),
		"total":       loan.Total.StringFixed(2),
	}).Info("loan registered")
	return &RegisteredLoan{Loan: loan, Lines: lines}, nil
}
