package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Decimal columns are TEXT in SQLite so no precision is lost.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	user_name TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	mpin_hash TEXT,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	borrower_id TEXT NOT NULL REFERENCES users(id),
	description TEXT NOT NULL DEFAULT '',
	principal TEXT NOT NULL,
	interest TEXT NOT NULL,
	total TEXT NOT NULL,
	term_months INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_lines (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id),
	due_date DATETIME NOT NULL,
	principal_due TEXT NOT NULL DEFAULT '0',
	interest_due TEXT NOT NULL DEFAULT '0',
	penalties_due TEXT NOT NULL DEFAULT '0',
	service_fees_due TEXT NOT NULL DEFAULT '0',
	total_due TEXT NOT NULL,
	is_paid BOOLEAN,
	remarks TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_lines_loan ON ledger_lines(loan_id, due_date);
CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id),
	ledger_line_id TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES users(id),
	amount TEXT NOT NULL,
	payment_date DATETIME NOT NULL,
	status TEXT NOT NULL,
	submitted_at DATETIME NOT NULL,
	approved_at DATETIME,
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
	data BLOB NOT NULL,
	content_type TEXT NOT NULL,
	file_name TEXT NOT NULL,
	uploaded_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id),
	collector_id TEXT NOT NULL REFERENCES users(id),
	assigned_by_id TEXT NOT NULL,
	assigned_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS images (
	user_id TEXT PRIMARY KEY REFERENCES users(id),
	data BLOB NOT NULL,
	content_type TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

var sqliteDialect = &dialect{name: "sqlite3", schema: sqliteSchema}

// NewSQLiteStore opens (or creates) a SQLite database file.
// Transactions take the write lock up front (_txlock=immediate) so two
// decisions on the same payment serialize instead of both reading Pending.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	return newSQLStore(db, sqliteDialect)
}

// SQLiteStore is kept as a name for callers that construct the SQLite backend directly.
type SQLiteStore = SQLStore

func sqliteDSN(dsn string) string {
	params := []string{"_foreign_keys=on", "_journal_mode=WAL", "_busy_timeout=5000", "_txlock=immediate"}
	var add []string
	for _, p := range params {
		key, _, _ := strings.Cut(p, "=")
		if !strings.Contains(dsn, key+"=") {
			add = append(add, p)
		}
	}
	if len(add) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(add, "&")
}
