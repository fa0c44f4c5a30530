package store

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	user_name TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	mpin_hash TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	borrower_id TEXT NOT NULL REFERENCES users(id),
	description TEXT NOT NULL DEFAULT '',
	principal NUMERIC(19,4) NOT NULL,
	interest NUMERIC(19,4) NOT NULL,
	total NUMERIC(19,4) NOT NULL,
	term_months INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_lines (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id),
	due_date TIMESTAMPTZ NOT NULL,
	principal_due NUMERIC(19,4) NOT NULL DEFAULT 0,
	interest_due NUMERIC(19,4) NOT NULL DEFAULT 0,
	penalties_due NUMERIC(19,4) NOT NULL DEFAULT 0,
	service_fees_due NUMERIC(19,4) NOT NULL DEFAULT 0,
	total_due NUMERIC(19,4) NOT NULL CHECK (total_due >= 0),
	is_paid BOOLEAN,
	remarks TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_lines_loan ON ledger_lines(loan_id, due_date);
CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id),
	ledger_line_id TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES users(id),
	amount NUMERIC(19,4) NOT NULL CHECK (amount > 0),
	payment_date TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	approved_at TIMESTAMPTZ,
	approved_by TEXT,
	rejection_reason TEXT,
	approval_notes TEXT,
	remarks TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status, submitted_at);
CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id);
CREATE TABLE IF NOT EXISTS payment_proofs (
	id TEXT PRIMARY KEY,
	payment_id TEXT NOT NULL UNIQUE REFERENCES payments(id),
	data BYTEA NOT NULL,
	content_type TEXT NOT NULL,
	file_name TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id),
	collector_id TEXT NOT NULL REFERENCES users(id),
	assigned_by_id TEXT NOT NULL,
	assigned_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS images (
	user_id TEXT PRIMARY KEY REFERENCES users(id),
	data BYTEA NOT NULL,
	content_type TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

var postgresDialect = &dialect{
	name:        "postgres",
	schema:      postgresSchema,
	dollarBinds: true,
	forUpdate:   " FOR UPDATE",
}

// NewPostgresStore connects through the pgx database/sql driver.
func NewPostgresStore(dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return newSQLStore(db, postgresDialect)
}
