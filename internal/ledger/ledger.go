// Package ledger provides SQLite-backed history of terminal transfer
// outcomes, for operator inspection and reconciliation.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded terminal outcome.
type Entry struct {
	ID            string
	SessionID     string
	BankID        string
	Success       bool
	Message       string
	TransactionID string
	Amount        float64
	ReceiverIBAN  string
	Fee           float64
	CreatedAt     time.Time
}

// Ledger records terminal transfer outcomes in SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens the SQLite database at dbPath and creates the schema if it
// does not exist.
func Open(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger tables: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		bank_id TEXT NOT NULL,
		success INTEGER NOT NULL,
		message TEXT,
		transaction_id TEXT,
		amount REAL NOT NULL,
		receiver_iban TEXT,
		fee REAL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts a terminal outcome. The entry ID is generated here; the
// populated entry is returned.
func (l *Ledger) Record(e Entry) (*Entry, error) {
	e.ID = uuid.New().String()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.Exec(
		`INSERT INTO transfers (id, session_id, bank_id, success, message, transaction_id, amount, receiver_iban, fee, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.BankID, e.Success, e.Message, e.TransactionID, e.Amount, e.ReceiverIBAN, e.Fee, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}

	return &e, nil
}

// List returns the most recent entries, newest first.
func (l *Ledger) List(limit int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, session_id, bank_id, success, message, transaction_id, amount, receiver_iban, fee, created_at
		 FROM transfers
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.BankID, &e.Success, &e.Message, &e.TransactionID, &e.Amount, &e.ReceiverIBAN, &e.Fee, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}
