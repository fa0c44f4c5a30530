package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
)

const userColumns = `id, user_name, full_name, first_name, last_name, address, role, mpin_hash, created_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var mpin sql.NullString
	if err := row.Scan(&u.ID, &u.UserName, &u.FullName, &u.FirstName, &u.LastName, &u.Address, &u.Role, &mpin, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.MPINHash = mpin.String
	return &u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.UserName, u.FullName, u.FirstName, u.LastName, u.Address, u.Role, nullString(u.MPINHash), u.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (c *conn) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(c.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// GetUserByUserName retrieves a user by the mobile number they log in with.
func (s *SQLStore) GetUserByUserName(ctx context.Context, userName string) (*models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_name = ?`, userName))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, u *models.User) error {
	result, err := s.exec(ctx,
		`UPDATE users SET user_name = ?, full_name = ?, first_name = ?, last_name = ?, address = ?, role = ?, mpin_hash = ? WHERE id = ?`,
		u.UserName, u.FullName, u.FirstName, u.LastName, u.Address, u.Role, nullString(u.MPINHash), u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return checkAffected(result, "user")
}

// SaveImage inserts or replaces a user's avatar.
func (s *SQLStore) SaveImage(ctx context.Context, img *models.Image) error {
	_, err := s.exec(ctx,
		`INSERT INTO images (user_id, data, content_type, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET data = excluded.data, content_type = excluded.content_type, updated_at = excluded.updated_at`,
		img.UserID, img.Data, img.ContentType, img.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

func (s *SQLStore) GetImage(ctx context.Context, userID uuid.UUID) (*models.Image, error) {
	var img models.Image
	err := s.queryRow(ctx, `SELECT user_id, data, content_type, updated_at FROM images WHERE user_id = ?`, userID).
		Scan(&img.UserID, &img.Data, &img.ContentType, &img.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "image")
	}
	return &img, nil
}

func (s *SQLStore) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	_, err := s.exec(ctx,
		`INSERT INTO assignments (id, loan_id, collector_id, assigned_by_id, assigned_at, status, notes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.LoanID, a.CollectorID, a.AssignedByID, a.AssignedAt.UTC(), a.Status, a.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func (s *SQLStore) ListAssignmentsForCollector(ctx context.Context, collectorID uuid.UUID, activeOnly bool) ([]*models.Assignment, error) {
	query := `SELECT id, loan_id, collector_id, assigned_by_id, assigned_at, status, notes FROM assignments WHERE collector_id = ?`
	args := []any{collectorID}
	if activeOnly {
		query += ` AND status = ?`
		args = append(args, models.AssignmentStatusActive)
	}
	query += ` ORDER BY assigned_at ASC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.LoanID, &a.CollectorID, &a.AssignedByID, &a.AssignedAt, &a.Status, &a.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan assignment row: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for assignments: %w", err)
	}
	return out, nil
}

func (s *SQLStore) IsLoanAssigned(ctx context.Context, collectorID, loanID uuid.UUID) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE collector_id = ? AND loan_id = ?`, collectorID, loanID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return n > 0, nil
}
