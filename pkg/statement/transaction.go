package statement

import (
	"time"

	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/shopspring/decimal"
)

// Transaction is one statement line. Type tags which of the three kinds it
// is: an approved payment (credit), an interest charge or a fee (debits).
type Transaction struct {
	ID              string          `json:"id"`
	Date            models.Date     `json:"date"`
	Description     string          `json:"description"`
	DebitAmount     decimal.Decimal `json:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	RunningBalance  decimal.Decimal `json:"running_balance"`
	Type            string          `json:"type"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	Reference       string          `json:"reference"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestAmount  decimal.Decimal `json:"interest_amount"`

	at time.Time
}

func paymentTransaction(p *models.PaymentRecord) Transaction {
	at := p.PaymentDate
	if p.ApprovedAt != nil {
		at = *p.ApprovedAt
	}
	ref := models.Reference("PAY", p.ID)
	return Transaction{
		ID:              ref,
		Date:            models.Date(at),
		Description:     "Payment Received",
		DebitAmount:     decimal.Zero,
		CreditAmount:    p.Amount,
		Type:            TypePayment,
		PaymentMethod:   "Online",
		Reference:       ref,
		PrincipalAmount: models.Round2(p.Amount.Mul(principalShare)),
		InterestAmount:  models.Round2(p.Amount.Mul(interestShare)),
		at:              at,
	}
}

func interestTransaction(line *models.LedgerLine) Transaction {
	ref := models.Reference("INT", line.ID)
	return Transaction{
		ID:              ref,
		Date:            models.Date(line.DueDate),
		Description:     "Interest Charge",
		DebitAmount:     line.InterestDue,
		CreditAmount:    decimal.Zero,
		Type:            TypeInterest,
		Reference:       ref,
		PrincipalAmount: decimal.Zero,
		InterestAmount:  line.InterestDue,
		at:              line.DueDate,
	}
}

func feeTransaction(line *models.LedgerLine) Transaction {
	ref := models.Reference("FEE", line.ID)
	desc := "Service Fee"
	if line.PenaltiesDue.IsPositive() {
		desc = "Late Payment Fee"
	}
	return Transaction{
		ID:              ref,
		Date:            models.Date(line.DueDate),
		Description:     desc,
		DebitAmount:     line.Fees(),
		CreditAmount:    decimal.Zero,
		Type:            TypeFee,
		Reference:       ref,
		PrincipalAmount: decimal.Zero,
		InterestAmount:  decimal.Zero,
		at:              line.DueDate,
	}
}
