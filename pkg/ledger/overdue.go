package ledger

import (
	"context"

	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/sirupsen/logrus"
)

// OverdueReport counts the outcome of one overdue sweep.
type OverdueReport struct {
	Checked       int `json:"checked"`
	MarkedOverdue int `json:"marked_overdue"`
	Restored      int `json:"restored"`
	Failed        int `json:"failed"`
}

// RefreshOverdueStatuses iterates through all open loans and moves Active or
// Current loans with an unpaid line past due to Overdue, and Overdue loans
// with nothing past due back to Active. Ledger lines are never touched and
// Fully Paid loans are not considered.
func (l *Ledger) RefreshOverdueStatuses(ctx context.Context) (OverdueReport, error) {
	var report OverdueReport
	loans, err := l.storage.ListOpenLoans(ctx)
	if err != nil {
		return report, internalError("failed to list open loans", err)
	}

	today := l.today()
	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		logger := l.log.WithField("loan_id", loan.ID)

		lines, err := l.storage.ListLedgerLines(ctx, loan.ID)
		if err != nil {
			logger.WithError(err).Error("failed to read ledger lines during overdue sweep")
			report.Failed++
			continue
		}
		pastDue := false
		for _, line := range lines {
			if line.Overdue(today) {
				pastDue = true
				break
			}
		}

		var to models.LoanStatus
		switch {
		case pastDue && (loan.Status == models.LoanStatusActive || loan.Status == models.LoanStatusCurrent):
			to = models.LoanStatusOverdue
		case !pastDue && loan.Status == models.LoanStatusOverdue:
			to = models.LoanStatusActive
		default:
			continue
		}

		// The conditional update loses to a concurrent approval that settled the loan.
		changed, err := l.storage.SetLoanStatus(ctx, loan.ID, loan.Status, to)
		if err != nil {
			logger.WithError(err).Error("failed to update loan status during overdue sweep")
			report.Failed++
			continue
		}
		if !changed {
			continue
		}
		if to == models.LoanStatusOverdue {
			report.MarkedOverdue++
		} else {
			report.Restored++
		}
		logger.WithFields(logrus.Fields{"from": loan.Status, "to": to}).Info("loan status refreshed")
	}
	return report, nil
}
