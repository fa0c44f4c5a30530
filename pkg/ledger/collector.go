package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/sirupsen/logrus"
)

// AssignRequest assigns a loan to a collector.
type AssignRequest struct {
	LoanID      uuid.UUID `json:"loan_id"`
	CollectorID uuid.UUID `json:"collector_id"`
	AssignedBy  uuid.UUID `json:"-"`
	Notes       string    `json:"notes"`
}

// AssignLoan records an Active assignment of a loan to a collector.
func (l *Ledger) AssignLoan(ctx context.Context, req AssignRequest) (*models.Assignment, error) {
	loan, err := l.GetLoan(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}
	collector, err := l.GetUser(ctx, req.CollectorID)
	if err != nil {
		return nil, err
	}
	if collector.Role != models.RoleCollector {
		return nil, invalidRequest(fmt.Sprintf("User %s is not a collector.", collector.ID))
	}
	if !loan.Status.IsOpen() {
		return nil, &Error{Kind: KindInvalidState, Entity: "Loan", Message: fmt.Sprintf("Loan is %s and cannot be assigned.", loan.Status)}
	}

	a := &models.Assignment{
		ID:           uuid.New(),
		LoanID:       loan.ID,
		CollectorID:  collector.ID,
		AssignedByID: req.AssignedBy,
		AssignedAt:   l.now(),
		Status:       models.AssignmentStatusActive,
		Notes:        req.Notes,
	}
	if err := l.storage.CreateAssignment(ctx, a); err != nil {
		return nil, internalError("failed to create assignment", err)
	}
	l.log.WithFields(logrus.Fields{
		"assignment_id": a.ID,
		"loan_id":       a.LoanID,
		"collector_id":  a.CollectorID,
	}).Info("loan assigned to collector")
	return a, nil
}

// AssignedLoan is an assignment together with the loan and its borrower.
type AssignedLoan struct {
	Assignment *models.Assignment  `json:"assignment"`
	Loan       *models.LoanAccount `json:"loan"`
	Client     *models.User        `json:"client"`
}

// CollectorAssignments lists a collector's assignments, optionally only the Active ones.
func (l *Ledger) CollectorAssignments(ctx context.Context, collectorID uuid.UUID, activeOnly bool) ([]AssignedLoan, error) {
	if _, err := l.GetUser(ctx, collectorID); err != nil {
		return nil, err
	}
	assignments, err := l.storage.ListAssignmentsForCollector(ctx, collectorID, activeOnly)
	if err != nil {
		return nil, internalError("failed to list assignments", err)
	}
	if len(assignments) == 0 {
		return nil, notFoundError("Assignment", "No loans assigned to this collector.")
	}

	out := make([]AssignedLoan, 0, len(assignments))
	for _, a := range assignments {
		loan, err := l.GetLoan(ctx, a.LoanID)
		if err != nil {
			return nil, asLedgerError(err, "failed to read assigned loan")
		}
		client, err := l.GetUser(ctx, loan.BorrowerID)
		if err != nil {
			return nil, asLedgerError(err, "failed to read borrower")
		}
		out = append(out, AssignedLoan{Assignment: a, Loan: loan, Client: client})
	}
	return out, nil
}

// CollectorLoanTransactions returns the ledger lines of a loan assigned to the collector.
func (l *Ledger) CollectorLoanTransactions(ctx context.Context, collectorID, loanID uuid.UUID) ([]*models.LedgerLine, error) {
	assigned, err := l.storage.IsLoanAssigned(ctx, collectorID, loanID)
	if err != nil {
		return nil, internalError("failed to check assignment", err)
	}
	if !assigned {
		return nil, &Error{Kind: KindForbidden, Entity: "Assignment", Message: "Loan is not assigned to this collector."}
	}
	return l.LoanTransactions(ctx, loanID)
}
