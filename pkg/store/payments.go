package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
)

const paymentColumns = `p.id, p.loan_id, p.ledger_line_id, p.user_id, p.amount, p.payment_date, p.status, p.submitted_at,
	p.approved_at, p.approved_by, p.rejection_reason, p.approval_notes, p.remarks,
	EXISTS (SELECT 1 FROM payment_proofs pp WHERE pp.payment_id = p.id)`

func scanPayment(row scanner) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	var approvedAt sql.NullTime
	var approvedBy, reason, notes sql.NullString
	err := row.Scan(&p.ID, &p.LoanID, &p.LedgerLineID, &p.UserID, &p.Amount, &p.PaymentDate, &p.Status, &p.SubmittedAt,
		&approvedAt, &approvedBy, &reason, &notes, &p.Remarks, &p.HasProof)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	p.ApprovedBy = approvedBy.String
	p.RejectionReason = reason.String
	p.ApprovalNotes = notes.String
	return &p, nil
}

// GetPaymentRecord retrieves a payment by its ID. Inside a unit of work on
// Postgres the payment row is locked until commit.
func (c *conn) GetPaymentRecord(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	row := c.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = ?`+c.lockClause(), id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return p, nil
}

func (c *conn) InsertPaymentRecord(ctx context.Context, p *models.PaymentRecord) error {
	_, err := c.exec(ctx,
		`INSERT INTO payments (id, loan_id, ledger_line_id, user_id, amount, payment_date, status, submitted_at,
			approved_at, approved_by, rejection_reason, approval_notes, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.LoanID, p.LedgerLineID, p.UserID, p.Amount, p.PaymentDate.UTC(), p.Status, p.SubmittedAt.UTC(),
		p.ApprovedAt, nullString(p.ApprovedBy), nullString(p.RejectionReason), nullString(p.ApprovalNotes), p.Remarks,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// UpdatePaymentRecord writes the decision fields of a payment.
func (c *conn) UpdatePaymentRecord(ctx context.Context, p *models.PaymentRecord) error {
	var approvedAt any
	if p.ApprovedAt != nil {
		approvedAt = p.ApprovedAt.UTC()
	}
	result, err := c.exec(ctx,
		`UPDATE payments SET status = ?, approved_at = ?, approved_by = ?, rejection_reason = ?, approval_notes = ?, remarks = ?
		WHERE id = ?`,
		p.Status, approvedAt, nullString(p.ApprovedBy), nullString(p.RejectionReason), nullString(p.ApprovalNotes), p.Remarks, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return checkAffected(result, "payment")
}

func (c *conn) InsertPaymentProof(ctx context.Context, proof *models.PaymentProof) error {
	_, err := c.exec(ctx,
		`INSERT INTO payment_proofs (id, payment_id, data, content_type, file_name, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		proof.ID, proof.PaymentID, proof.Data, proof.ContentType, proof.FileName, proof.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment proof: %w", err)
	}
	return nil
}

func (s *SQLStore) GetPaymentProof(ctx context.Context, paymentID uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	err := s.queryRow(ctx,
		`SELECT id, payment_id, data, content_type, file_name, uploaded_at FROM payment_proofs WHERE payment_id = ?`, paymentID,
	).Scan(&proof.ID, &proof.PaymentID, &proof.Data, &proof.ContentType, &proof.FileName, &proof.UploadedAt)
	if err != nil {
		return nil, notFound(err, "payment proof")
	}
	return &proof, nil
}

// ListPendingPayments returns pending payments oldest submission first.
func (s *SQLStore) ListPendingPayments(ctx context.Context) ([]*models.PaymentRecord, error) {
	return s.listPayments(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.status = ? ORDER BY p.submitted_at ASC`,
		models.PaymentStatusPending)
}

func (s *SQLStore) ListPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	return s.listPayments(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.loan_id = ? ORDER BY p.payment_date DESC, p.submitted_at DESC`,
		loanID)
}

// ListPaymentsForBorrower returns every payment made against the borrower's loans.
func (s *SQLStore) ListPaymentsForBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.PaymentRecord, error) {
	return s.listPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments p JOIN loans l ON l.id = p.loan_id
		WHERE l.borrower_id = ? ORDER BY p.payment_date DESC, p.submitted_at DESC`,
		borrowerID)
}

func (s *SQLStore) listPayments(ctx context.Context, query string, args ...any) ([]*models.PaymentRecord, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for payments: %w", err)
	}
	return payments, nil
}
