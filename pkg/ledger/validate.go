package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/shopspring/decimal"
)

// PaymentCheck is the part of a submission the validator inspects.
type PaymentCheck struct {
	LoanID       uuid.UUID
	UserID       uuid.UUID
	LedgerLineID uuid.UUID
	Amount       decimal.Decimal
}

// Validate checks a submission against snapshots of the loan, the submitting
// user and the target line. A nil snapshot means the row does not exist.
// Checks run in order and the first failure is returned.
func Validate(loan *models.LoanAccount, user *models.User, line *models.LedgerLine, p PaymentCheck) error {
	if loan == nil {
		return notFoundError("Loan", fmt.Sprintf("Loan with ID %s not found.", p.LoanID))
	}
	if user == nil {
		return notFoundError("User", fmt.Sprintf("User with ID %s not found.", p.UserID))
	}
	if line == nil || line.LoanID != loan.ID {
		return notFoundError("LedgerLine",
			fmt.Sprintf("Loan transaction with ID %s for Loan %s not found.", p.LedgerLineID, p.LoanID))
	}
	if line.Settled() {
		return &Error{
			Kind:    KindAlreadySettled,
			Entity:  "LedgerLine",
			Message: fmt.Sprintf("Loan transaction with ID %s is already marked as paid.", line.ID),
		}
	}
	amount := models.Round2(p.Amount)
	due := models.Round2(line.TotalDue)
	if amount.GreaterThan(due) {
		return &Error{
			Kind:    KindInvalidRequest,
			Entity:  "Amount",
			Message: fmt.Sprintf("Payment amount %s exceeds total due %s.", models.FormatMoney(amount), models.FormatMoney(due)),
		}
	}
	return nil
}
