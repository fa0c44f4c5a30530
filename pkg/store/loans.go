package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
)

const loanColumns = `id, borrower_id, description, principal, interest, total, term_months, status, created_at, updated_at`

const lineColumns = `id, loan_id, due_date, principal_due, interest_due, penalties_due, service_fees_due, total_due, is_paid, remarks, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (*models.LoanAccount, error) {
	var loan models.LoanAccount
	err := row.Scan(&loan.ID, &loan.BorrowerID, &loan.Description, &loan.Principal, &loan.Interest, &loan.Total,
		&loan.TermMonths, &loan.Status, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func scanLine(row scanner) (*models.LedgerLine, error) {
	var line models.LedgerLine
	var isPaid sql.NullBool
	err := row.Scan(&line.ID, &line.LoanID, &line.DueDate, &line.PrincipalDue, &line.InterestDue, &line.PenaltiesDue,
		&line.ServiceFeesDue, &line.TotalDue, &isPaid, &line.Remarks, &line.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if isPaid.Valid {
		line.IsPaid = models.Bool(isPaid.Bool)
	}
	return &line, nil
}

// CreateLoanAccount inserts a loan together with its pre-generated schedule.
func (s *SQLStore) CreateLoanAccount(ctx context.Context, loan *models.LoanAccount, lines []*models.LedgerLine) error {
	return s.WithTx(ctx, func(tx Tx) error {
		c := tx.(*conn)
		_, err := c.exec(ctx,
			`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			loan.ID, loan.BorrowerID, loan.Description, loan.Principal, loan.Interest, loan.Total,
			loan.TermMonths, loan.Status, loan.CreatedAt.UTC(), loan.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		for _, line := range lines {
			_, err := c.exec(ctx,
				`INSERT INTO ledger_lines (`+lineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				line.ID, line.LoanID, line.DueDate.UTC(), line.PrincipalDue, line.InterestDue, line.PenaltiesDue,
				line.ServiceFeesDue, line.TotalDue, line.IsPaid, line.Remarks, line.UpdatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to create ledger line %s: %w", line.ID, err)
			}
		}
		return nil
	})
}

// GetLoanAccount retrieves a loan by its ID.
func (c *conn) GetLoanAccount(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error) {
	row := c.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`+c.lockClause(), id)
	loan, err := scanLoan(row)
	if err != nil {
		return nil, notFound(err, "loan")
	}
	return loan, nil
}

// UpdateLoanAccount writes the mutable fields of a loan.
func (c *conn) UpdateLoanAccount(ctx context.Context, loan *models.LoanAccount) error {
	result, err := c.exec(ctx,
		`UPDATE loans SET description = ?, principal = ?, interest = ?, total = ?, term_months = ?, status = ?, updated_at = ? WHERE id = ?`,
		loan.Description, loan.Principal, loan.Interest, loan.Total, loan.TermMonths, loan.Status, loan.UpdatedAt.UTC(), loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return checkAffected(result, "loan")
}

func (s *SQLStore) ListLoansForBorrower(ctx context.Context, borrowerID uuid.UUID, statuses ...models.LoanStatus) ([]*models.LoanAccount, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE borrower_id = ?`
	args := []any{borrowerID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at ASC`
	return s.listLoans(ctx, query, args...)
}

// ListOpenLoans returns loans in Active, Overdue or Current status.
func (s *SQLStore) ListOpenLoans(ctx context.Context) ([]*models.LoanAccount, error) {
	return s.listLoans(ctx, `SELECT `+loanColumns+` FROM loans WHERE status IN (?, ?, ?) ORDER BY created_at ASC`,
		models.LoanStatusActive, models.LoanStatusOverdue, models.LoanStatusCurrent)
}

func (s *SQLStore) listLoans(ctx context.Context, query string, args ...any) ([]*models.LoanAccount, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.LoanAccount
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

func (s *SQLStore) SetLoanStatus(ctx context.Context, id uuid.UUID, from, to models.LoanStatus) (bool, error) {
	result, err := s.exec(ctx, `UPDATE loans SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to set loan status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

// GetLedgerLine retrieves a ledger line by its ID.
func (c *conn) GetLedgerLine(ctx context.Context, id uuid.UUID) (*models.LedgerLine, error) {
	row := c.queryRow(ctx, `SELECT `+lineColumns+` FROM ledger_lines WHERE id = ?`+c.lockClause(), id)
	line, err := scanLine(row)
	if err != nil {
		return nil, notFound(err, "ledger line")
	}
	return line, nil
}

func (c *conn) UpdateLedgerLine(ctx context.Context, line *models.LedgerLine) error {
	result, err := c.exec(ctx,
		`UPDATE ledger_lines SET total_due = ?, is_paid = ?, remarks = ?, updated_at = ? WHERE id = ?`,
		line.TotalDue, line.IsPaid, line.Remarks, line.UpdatedAt.UTC(), line.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger line: %w", err)
	}
	return checkAffected(result, "ledger line")
}

func (c *conn) AnyUnpaidLedgerLines(ctx context.Context, loanID uuid.UUID) (bool, error) {
	var n int
	err := c.queryRow(ctx,
		`SELECT COUNT(*) FROM ledger_lines WHERE loan_id = ? AND (is_paid IS NULL OR is_paid = ?)`, loanID, false,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count unpaid ledger lines: %w", err)
	}
	return n > 0, nil
}

// ListLedgerLines returns a loan's schedule ordered by due date.
func (s *SQLStore) ListLedgerLines(ctx context.Context, loanID uuid.UUID) ([]*models.LedgerLine, error) {
	rows, err := s.query(ctx, `SELECT `+lineColumns+` FROM ledger_lines WHERE loan_id = ? ORDER BY due_date ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger lines for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var lines []*models.LedgerLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger line row: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for ledger lines: %w", err)
	}
	return lines, nil
}
