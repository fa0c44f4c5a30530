package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
)

// ErrNotFound is returned by point lookups when the row does not exist.
var ErrNotFound = errors.New("not found")

// Tx is a unit of work. Every read and write made through it commits or rolls
// back together; rows read through it are locked against concurrent decisions
// where the backend supports row locks.
type Tx interface {
	GetLoanAccount(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetLedgerLine(ctx context.Context, id uuid.UUID) (*models.LedgerLine, error)
	GetPaymentRecord(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)

	InsertPaymentRecord(ctx context.Context, payment *models.PaymentRecord) error
	InsertPaymentProof(ctx context.Context, proof *models.PaymentProof) error
	UpdatePaymentRecord(ctx context.Context, payment *models.PaymentRecord) error
	UpdateLedgerLine(ctx context.Context, line *models.LedgerLine) error
	UpdateLoanAccount(ctx context.Context, loan *models.LoanAccount) error

	// AnyUnpaidLedgerLines reports whether the loan has a line whose paid flag is false or null.
	AnyUnpaidLedgerLines(ctx context.Context, loanID uuid.UUID) (bool, error)

	// Savepoint runs fn so that its writes are undone when it fails while the
	// enclosing unit of work stays usable.
	Savepoint(ctx context.Context, fn func() error) error
}

// Storage defines the ledger store used by the servicing engine and its read views.
type Storage interface {
	// WithTx runs fn inside one unit of work. The unit commits only when fn
	// returns nil and is rolled back on every other exit path.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	CreateLoanAccount(ctx context.Context, loan *models.LoanAccount, lines []*models.LedgerLine) error
	GetLoanAccount(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error)
	ListLoansForBorrower(ctx context.Context, borrowerID uuid.UUID, statuses ...models.LoanStatus) ([]*models.LoanAccount, error)
	ListOpenLoans(ctx context.Context) ([]*models.LoanAccount, error)
	// SetLoanStatus moves a loan from one status to another and reports whether the row matched.
	SetLoanStatus(ctx context.Context, id uuid.UUID, from, to models.LoanStatus) (bool, error)
	ListLedgerLines(ctx context.Context, loanID uuid.UUID) ([]*models.LedgerLine, error)

	GetPaymentRecord(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)
	ListPendingPayments(ctx context.Context) ([]*models.PaymentRecord, error)
	ListPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error)
	ListPaymentsForBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.PaymentRecord, error)
	GetPaymentProof(ctx context.Context, paymentID uuid.UUID) (*models.PaymentProof, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUserName(ctx context.Context, userName string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SaveImage(ctx context.Context, img *models.Image) error
	GetImage(ctx context.Context, userID uuid.UUID) (*models.Image, error)

	CreateAssignment(ctx context.Context, a *models.Assignment) error
	ListAssignmentsForCollector(ctx context.Context, collectorID uuid.UUID, activeOnly bool) ([]*models.Assignment, error)
	IsLoanAssigned(ctx context.Context, collectorID, loanID uuid.UUID) (bool, error)

	Close() error
}
