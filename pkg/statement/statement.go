// Package statement builds account statements from a loan's ledger lines and
// approved payments.
package statement

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/ledger"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/shopspring/decimal"
)

// Transaction types accepted by the type filter.
const (
	TypeAll      = "all"
	TypePayment  = "payment"
	TypeInterest = "interest"
	TypeFee      = "fee"
)

var (
	principalShare   = decimal.RequireFromString("0.8")
	interestShare    = decimal.RequireFromString("0.2")
	defaultMaxAmount = decimal.NewFromInt(999999)
)

// Request selects a loan and a statement window. The window covers whole
// days from StartDate through EndDate.
type Request struct {
	UserID          uuid.UUID        `json:"user_id"`
	LoanID          uuid.UUID        `json:"loan_id"`
	StartDate       models.Date      `json:"start_date"`
	EndDate         models.Date      `json:"end_date"`
	TransactionType string           `json:"transaction_type"`
	MinAmount       *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount       *decimal.Decimal `json:"max_amount,omitempty"`
}

func (r *Request) window() (time.Time, time.Time) {
	start := models.StartOfDay(r.StartDate.Time())
	end := models.StartOfDay(r.EndDate.Time()).AddDate(0, 0, 1)
	return start, end
}

func (r *Request) amountRange() (decimal.Decimal, decimal.Decimal) {
	lo, hi := decimal.Zero, defaultMaxAmount
	if r.MinAmount != nil {
		lo = *r.MinAmount
	}
	if r.MaxAmount != nil {
		hi = *r.MaxAmount
	}
	return lo, hi
}

func (r *Request) wants(kind string) bool {
	return r.TransactionType == TypeAll || r.TransactionType == kind
}

func (r *Request) validate() error {
	if r.TransactionType == "" {
		r.TransactionType = TypeAll
	}
	switch r.TransactionType {
	case TypeAll, TypePayment, TypeInterest, TypeFee:
	default:
		return &ledger.Error{Kind: ledger.KindInvalidRequest, Entity: "TransactionType",
			Message: fmt.Sprintf("Unknown transaction type %q.", r.TransactionType)}
	}
	if r.LoanID == uuid.Nil {
		return &ledger.Error{Kind: ledger.KindInvalidRequest, Entity: "LoanID", Message: "Loan ID is required."}
	}
	if r.StartDate.Time().IsZero() || r.EndDate.Time().IsZero() {
		return &ledger.Error{Kind: ledger.KindInvalidRequest, Entity: "Period", Message: "Start and end dates are required."}
	}
	if r.EndDate.Time().Before(r.StartDate.Time()) {
		return &ledger.Error{Kind: ledger.KindInvalidRequest, Entity: "Period", Message: "End date is before start date."}
	}
	lo, hi := r.amountRange()
	if hi.LessThan(lo) {
		return &ledger.Error{Kind: ledger.KindInvalidRequest, Entity: "Amount", Message: "Maximum amount is below minimum amount."}
	}
	return nil
}

// AccountInfo identifies one open loan account of a borrower.
type AccountInfo struct {
	AccountNumber   string            `json:"account_number"`
	AccountStatus   models.LoanStatus `json:"account_status"`
	ClientName      string            `json:"client_name"`
	LastUpdated     time.Time         `json:"last_updated"`
	LoanAmount      decimal.Decimal   `json:"loan_amount"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	LoanDescription string            `json:"loan_description"`
	LoanID          uuid.UUID         `json:"loan_id"`
}

// Summary totals a statement window.
type Summary struct {
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	TotalPayments   decimal.Decimal `json:"total_payments"`
	InterestCharges decimal.Decimal `json:"interest_charges"`
	FeesApplied     decimal.Decimal `json:"fees_applied"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
}

// Statement is the full statement of one loan.
type Statement struct {
	AccountInfo  []AccountInfo `json:"account_info"`
	Summary      Summary       `json:"account_summary"`
	Transactions []Transaction `json:"transactions"`
}

// Service builds statements over the ledger's store.
type Service struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

func NewService(l *ledger.Ledger) *Service {
	return &Service{ledger: l, now: func() time.Time { return time.Now().UTC() }}
}

// AccountNumber formats the display number of a loan account.
func AccountNumber(loanID uuid.UUID) string {
	return models.Reference("LA", loanID)
}

// AccountInfo lists the borrower's Active, Overdue and Current loans.
func (s *Service) AccountInfo(ctx context.Context, userID uuid.UUID) ([]AccountInfo, error) {
	user, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	loans, err := s.ledger.Storage().ListLoansForBorrower(ctx, userID,
		models.LoanStatusActive, models.LoanStatusOverdue, models.LoanStatusCurrent)
	if err != nil {
		return nil, &ledger.Error{Kind: ledger.KindInternal, Message: "failed to list loans", Err: err}
	}
	if len(loans) == 0 {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Entity: "Loan", Message: "No active accounts found for this user."}
	}

	now := s.now()
	out := make([]AccountInfo, 0, len(loans))
	for _, loan := range loans {
		out = append(out, AccountInfo{
			AccountNumber:   AccountNumber(loan.ID),
			AccountStatus:   loan.Status,
			ClientName:      user.FullName,
			LastUpdated:     now,
			LoanAmount:      loan.Principal,
			TotalAmount:     loan.Total,
			LoanDescription: loan.Description,
			LoanID:          loan.ID,
		})
	}
	return out, nil
}

// loanData is everything a statement reads for one loan.
type loanData struct {
	loan     *models.LoanAccount
	lines    []*models.LedgerLine
	payments []*models.PaymentRecord
}

func (s *Service) load(ctx context.Context, req *Request) (*loanData, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	loan, err := s.ledger.GetLoan(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}
	if req.UserID != uuid.Nil && loan.BorrowerID != req.UserID {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Entity: "Loan", Message: "Loan not found."}
	}
	lines, err := s.ledger.Storage().ListLedgerLines(ctx, loan.ID)
	if err != nil {
		return nil, &ledger.Error{Kind: ledger.KindInternal, Message: "failed to list ledger lines", Err: err}
	}
	payments, err := s.ledger.Storage().ListPaymentsForLoan(ctx, loan.ID)
	if err != nil {
		return nil, &ledger.Error{Kind: ledger.KindInternal, Message: "failed to list payments", Err: err}
	}
	return &loanData{loan: loan, lines: lines, payments: payments}, nil
}

func currentBalance(lines []*models.LedgerLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		if !line.Settled() {
			sum = sum.Add(line.TotalDue)
		}
	}
	return sum
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// approvedIn reports whether the payment was approved inside the window.
func approvedIn(p *models.PaymentRecord, start, end time.Time) bool {
	return p.Status == models.PaymentStatusApproved && p.ApprovedAt != nil && inWindow(*p.ApprovedAt, start, end)
}

func (s *Service) AccountSummary(ctx context.Context, req Request) (*Summary, error) {
	data, err := s.load(ctx, &req)
	if err != nil {
		return nil, err
	}
	return summarize(data, &req), nil
}

func summarize(data *loanData, req *Request) *Summary {
	start, end := req.window()
	sum := &Summary{
		OpeningBalance:  data.loan.Principal,
		TotalPayments:   decimal.Zero,
		InterestCharges: decimal.Zero,
		FeesApplied:     decimal.Zero,
		CurrentBalance:  currentBalance(data.lines),
	}
	for _, p := range data.payments {
		if approvedIn(p, start, end) {
			sum.TotalPayments = sum.TotalPayments.Add(p.Amount)
		}
	}
	for _, line := range data.lines {
		if inWindow(line.DueDate, start, end) {
			sum.InterestCharges = sum.InterestCharges.Add(line.InterestDue)
			sum.FeesApplied = sum.FeesApplied.Add(line.Fees())
		}
	}
	return sum
}

// Transactions lists payments, interest charges and fees in the window,
// latest first, each carrying the balance after it.
func (s *Service) Transactions(ctx context.Context, req Request) ([]Transaction, error) {
	data, err := s.load(ctx, &req)
	if err != nil {
		return nil, err
	}
	return transactions(data, &req), nil
}

func transactions(data *loanData, req *Request) []Transaction {
	start, end := req.window()
	lo, hi := req.amountRange()
	inRange := func(d decimal.Decimal) bool { return !d.LessThan(lo) && !d.GreaterThan(hi) }

	var out []Transaction
	if req.wants(TypePayment) {
		for _, p := range data.payments {
			if approvedIn(p, start, end) && inRange(p.Amount) {
				out = append(out, paymentTransaction(p))
			}
		}
	}
	for _, line := range data.lines {
		if !inWindow(line.DueDate, start, end) {
			continue
		}
		if req.wants(TypeInterest) && line.InterestDue.IsPositive() && inRange(line.InterestDue) {
			out = append(out, interestTransaction(line))
		}
		if fees := line.Fees(); req.wants(TypeFee) && fees.IsPositive() && inRange(fees) {
			out = append(out, feeTransaction(line))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].at.After(out[j].at) })

	// Walk back from today's balance: the balance before a newer entry is the
	// balance after it minus its debit plus its credit.
	running := currentBalance(data.lines)
	for i := range out {
		out[i].RunningBalance = running
		running = running.Sub(out[i].DebitAmount).Add(out[i].CreditAmount)
	}
	if out == nil {
		out = []Transaction{}
	}
	return out
}

func (s *Service) FullStatement(ctx context.Context, req Request) (*Statement, error) {
	data, err := s.load(ctx, &req)
	if err != nil {
		return nil, err
	}
	userID := req.UserID
	if userID == uuid.Nil {
		userID = data.loan.BorrowerID
	}
	info, err := s.AccountInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Statement{
		AccountInfo:  info,
		Summary:      *summarize(data, &req),
		Transactions: transactions(data, &req),
	}, nil
}

// Export renders the full statement. Format is "text" (default) or "xlsx".
// It returns the document, its content type and a suggested file name.
func (s *Service) Export(ctx context.Context, req Request, format string) ([]byte, string, string, error) {
	st, err := s.FullStatement(ctx, req)
	if err != nil {
		return nil, "", "", err
	}
	base := fmt.Sprintf("statement_%s_%s", AccountNumber(req.LoanID), s.now().Format("20060102"))

	switch strings.ToLower(format) {
	case "", "text", "txt":
		return []byte(renderText(st, &req, s.now())), "text/plain; charset=utf-8", base + ".txt", nil
	case "xlsx", "excel":
		b, err := renderXLSX(st, &req)
		if err != nil {
			return nil, "", "", &ledger.Error{Kind: ledger.KindInternal, Message: "failed to render statement", Err: err}
		}
		return b, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", base + ".xlsx", nil
	default:
		return nil, "", "", &ledger.Error{Kind: ledger.KindInvalidRequest, Entity: "Format",
			Message: fmt.Sprintf("Unsupported export format %q.", format)}
	}
}
