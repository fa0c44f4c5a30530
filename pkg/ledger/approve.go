package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const remarkTimeLayout = "2006-01-02 15:04:05"

// DecisionRequest approves or rejects a Pending payment.
type DecisionRequest struct {
	PaymentID       uuid.UUID
	Approver        string
	Approved        bool
	Notes           string
	RejectionReason string
}

// DecisionResult summarizes a decided payment.
type DecisionResult struct {
	Payment     *models.PaymentRecord `json:"payment"`
	Line        *models.LedgerLine    `json:"ledger_line,omitempty"`
	LoanSettled bool                  `json:"loan_fully_paid"`
}

// DecidePayment moves a Pending payment to Approved or Rejected. On approval
// the payment amount is applied to its ledger line and the loan is marked
// fully paid once no unpaid line remains. Everything except the loan status
// re-evaluation commits or rolls back together.
func (l *Ledger) DecidePayment(ctx context.Context, req DecisionRequest) (*DecisionResult, error) {
	approver := strings.TrimSpace(req.Approver)
	if approver == "" {
		return nil, &Error{Kind: KindInvalidRequest, Entity: "Approver", Message: "Approver is required."}
	}
	reason := strings.TrimSpace(req.RejectionReason)

	var result DecisionResult
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		payment, err := tx.GetPaymentRecord(ctx, req.PaymentID)
		if err != nil {
			return lookupError(err, "Payment", fmt.Sprintf("Payment with ID %s not found.", req.PaymentID))
		}
		if !payment.Pending() {
			return &Error{
				Kind:    KindInvalidState,
				Entity:  "Payment",
				Message: fmt.Sprintf("Payment is already %s. Cannot modify.", payment.Status),
			}
		}
		if !req.Approved && reason == "" {
			return &Error{Kind: KindInvalidRequest, Entity: "RejectionReason", Message: "Rejection reason is required when rejecting a payment."}
		}

		now := l.now()
		payment.ApprovedBy = approver
		payment.ApprovedAt = &now
		payment.ApprovalNotes = req.Notes

		if !req.Approved {
			payment.Status = models.PaymentStatusRejected
			payment.RejectionReason = reason
			payment.Remarks = fmt.Sprintf("Payment rejected by %s on %s. Reason: %s",
				approver, now.Format(remarkTimeLayout), reason)
			if err := tx.UpdatePaymentRecord(ctx, payment); err != nil {
				return internalError("failed to update payment", err)
			}
			result.Payment = payment
			return nil
		}

		payment.Status = models.PaymentStatusApproved
		payment.RejectionReason = ""
		payment.Remarks = fmt.Sprintf("Payment approved by %s on %s. Applied to Transaction ID %s.",
			approver, now.Format(remarkTimeLayout), payment.LedgerLineID)

		line, err := optional(tx.GetLedgerLine(ctx, payment.LedgerLineID))
		if err != nil {
			return internalError("failed to read ledger line", err)
		}
		if line != nil {
			applyToLine(line, payment.Amount, approver, now)
			if err := tx.UpdateLedgerLine(ctx, line); err != nil {
				return internalError("failed to update ledger line", err)
			}
			result.Line = line
			result.LoanSettled = l.settleLoanIfPaid(ctx, tx, payment.LoanID, now)
		} else {
			l.log.WithFields(logrus.Fields{
				"payment_id":     payment.ID,
				"ledger_line_id": payment.LedgerLineID,
			}).Warn("approved payment references a missing ledger line; ledger left unchanged")
		}

		if err := tx.UpdatePaymentRecord(ctx, payment); err != nil {
			return internalError("failed to update payment", err)
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		err = asLedgerError(err, "failed to process payment decision")
		if KindOf(err) == KindInternal {
			l.log.WithError(err).WithField("payment_id", req.PaymentID).Error("payment decision rolled back")
		}
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"payment_id":  result.Payment.ID,
		"loan_id":     result.Payment.LoanID,
		"status":      result.Payment.Status,
		"approved_by": approver,
	}).Info("payment decided")
	if result.LoanSettled {
		l.log.WithField("loan_id", result.Payment.LoanID).Info("loan fully paid")
	}
	return &result, nil
}

// applyToLine reduces the line's due by amount, clamped at zero.
func applyToLine(line *models.LedgerLine, amount decimal.Decimal, approver string, at time.Time) {
	previous := line.TotalDue
	newDue := decimal.Max(decimal.Zero, previous.Sub(amount))

	line.TotalDue = newDue
	line.IsPaid = models.Bool(!newDue.IsPositive())
	line.UpdatedAt = at
	line.Remarks = fmt.Sprintf("Payment approved on %s by %s. Payment Amount: %s. Previous Balance: %s. New Balance: %s",
		at.Format(remarkTimeLayout), approver, models.FormatMoney(amount), models.FormatMoney(previous), models.FormatMoney(newDue))
}

// settleLoanIfPaid marks the loan Fully Paid when none of its lines is unpaid.
// It runs after the line update inside a savepoint; failures are logged and
// do not affect the decision.
func (l *Ledger) settleLoanIfPaid(ctx context.Context, tx store.Tx, loanID uuid.UUID, now time.Time) bool {
	settled := false
	err := tx.Savepoint(ctx, func() error {
		unpaid, err := tx.AnyUnpaidLedgerLines(ctx, loanID)
		if err != nil {
			return err
		}
		if unpaid {
			return nil
		}
		loan, err := tx.GetLoanAccount(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status == models.LoanStatusFullyPaid {
			return nil
		}
		loan.Status = models.LoanStatusFullyPaid
		loan.UpdatedAt = now
		if err := tx.UpdateLoanAccount(ctx, loan); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		l.log.WithError(err).WithField("loan_id", loanID).Warn("failed to update loan status after payment approval")
		return false
	}
	return settled
}
