package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient    Role = "Client"
	RoleCollector Role = "Collector"
	RoleClerk     Role = "Clerk"
	RoleAdmin     Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleCollector, RoleClerk, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID `json:"id"`
	UserName  string    `json:"user_name"` // Mobile number used to log in
	FullName  string    `json:"full_name"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Address   string    `json:"address,omitempty"`
	Role      Role      `json:"role"`
	MPINHash  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "Active"
	AssignmentStatusCollected AssignmentStatus = "Collected"
	AssignmentStatusEscalated AssignmentStatus = "Escalated"
)

// Assignment links a loan to the collector responsible for it.
type Assignment struct {
	ID           uuid.UUID        `json:"id"`
	LoanID       uuid.UUID        `json:"loan_id"`
	CollectorID  uuid.UUID        `json:"collector_id"`
	AssignedByID uuid.UUID        `json:"assigned_by_id"`
	AssignedAt   time.Time        `json:"assigned_at"`
	Status       AssignmentStatus `json:"status"`
	Notes        string           `json:"notes,omitempty"`
}

// Image is a user's avatar.
type Image struct {
	UserID      uuid.UUID `json:"user_id"`
	Data        []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	UpdatedAt   time.Time `json:"updated_at"`
}
