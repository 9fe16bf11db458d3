// Package storage is the Registry's persistence layer: an in-memory
// sqlite database holding accounts and the reachable-peer directory.
// Balances are not durable across a process restart ("Persisted state:
// none required"), the DSN is an in-memory, shared-cache database, so the
// schema and locking discipline are exercised without anything surviving
// a restart.
package storage

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// InMemoryDSN is the data source name used by production callers: a named
// in-memory database shared across the single connection this package
// keeps open, so every query sees the same data.
const InMemoryDSN = "file::memory:?cache=shared"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY,
	balance REAL NOT NULL,
	recent_access_time TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS peer_addrs (
	id INTEGER PRIMARY KEY,
	addr TEXT NOT NULL
);
`

// Storage wraps a single sqlite connection. The connection pool is pinned
// to one connection (sqlite's writer concurrency is limited to one at a
// time anyway); mu additionally serializes the read-check-write sequences
// that span multiple statements, matching the registry-wide lock
// requires over transfer.
type Storage struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and if necessary creates) the schema at dsn.
func Open(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: applying schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateAccount inserts a new account row with the given balance and
// access timestamp.
func (s *Storage) CreateAccount(id int, balance float64, accessTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO accounts (id, balance, recent_access_time) VALUES (?, ?, ?)`,
		id, balance, accessTime,
	)
	if err != nil {
		return fmt.Errorf("storage: creating account %d: %w", id, err)
	}
	return nil
}

// NextAccountID returns the next monotonic id to allocate: 1 if no
// account exists, else one more than the highest existing id.
func (s *Storage) NextAccountID() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM accounts`).Scan(&max); err != nil {
		return 0, fmt.Errorf("storage: computing next account id: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// ErrNoAccount reports that an id has no corresponding account row.
var ErrNoAccount = sql.ErrNoRows

// Balance returns the current balance of account id.
func (s *Storage) Balance(id int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var balance float64
	err := s.db.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, id).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// TouchAccess updates the informational recent_access_time for id.
func (s *Storage) TouchAccess(id int, accessTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE accounts SET recent_access_time = ? WHERE id = ?`, accessTime, id)
	return err
}

// AccountExists reports whether id has an account row.
func (s *Storage) AccountExists(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	err := s.db.QueryRow(`SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ApplyTransfer atomically subtracts amount from senderID's balance and
// adds it to recipientID's balance. Callers must have already validated
// both accounts exist and the sender has sufficient balance; ApplyTransfer
// re-checks both under the same transaction as a safety net and returns
// ErrNoAccount / ErrInsufficientFunds accordingly.
func (s *Storage) ApplyTransfer(senderID, recipientID int, amount float64, accessTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin transfer: %w", err)
	}
	defer tx.Rollback()

	var senderBalance float64
	if err := tx.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, senderID).Scan(&senderBalance); err != nil {
		return err
	}
	var recipientBalance float64
	if err := tx.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, recipientID).Scan(&recipientBalance); err != nil {
		return err
	}

	if senderBalance < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(`UPDATE accounts SET balance = ?, recent_access_time = ? WHERE id = ?`,
		senderBalance-amount, accessTime, senderID); err != nil {
		return fmt.Errorf("storage: debiting sender %d: %w", senderID, err)
	}
	if _, err := tx.Exec(`UPDATE accounts SET balance = ?, recent_access_time = ? WHERE id = ?`,
		recipientBalance+amount, accessTime, recipientID); err != nil {
		return fmt.Errorf("storage: crediting recipient %d: %w", recipientID, err)
	}

	return tx.Commit()
}

// ErrInsufficientFunds is returned by ApplyTransfer's safety-net balance
// check.
var ErrInsufficientFunds = fmt.Errorf("storage: insufficient funds")

// SetPeerAddr records the reachable address for peer id, inserting or
// replacing any existing entry.
func (s *Storage) SetPeerAddr(id int, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO peer_addrs (id, addr) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET addr = excluded.addr`,
		id, addr,
	)
	return err
}

// RemovePeerAddr deletes the reachable-address entry for id (exit). The
// account row, if any, is left untouched.
func (s *Storage) RemovePeerAddr(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM peer_addrs WHERE id = ?`, id)
	return err
}

// PeerAddrs returns the full reachable-peer directory.
func (s *Storage) PeerAddrs() (map[int]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, addr FROM peer_addrs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var id int
		var addr string
		if err := rows.Scan(&id, &addr); err != nil {
			return nil, err
		}
		out[id] = addr
	}
	return out, rows.Err()
}
