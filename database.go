package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PayoutRow is one journal line
type PayoutRow struct {
	ID        int64     `json:"id"`
	PaymentID string    `json:"paymentId"`
	RoomID    string    `json:"roomId"`
	Address   string    `json:"address"`
	Amount    int64     `json:"amount"`
	Fee       int64     `json:"fee"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	Hash      string    `json:"hash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer goroutine; a single connection also keeps :memory: shared
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_id TEXT NOT NULL,
		room_id TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		amount INTEGER NOT NULL,
		fee INTEGER NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payouts_payment ON payouts(payment_id);
	CREATE INDEX IF NOT EXISTS idx_payouts_created ON payouts(created_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}

// RecentPayouts returns the newest journal lines first
func (db *DB) RecentPayouts(limit int) ([]PayoutRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, payment_id, room_id, address, amount, fee, category, status, hash, created_at
		FROM payouts ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayoutRow
	for rows.Next() {
		var r PayoutRow
		var created string
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.RoomID, &r.Address, &r.Amount, &r.Fee,
			&r.Category, &r.Status, &r.Hash, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PayoutTotals sums submitted amounts per category
func (db *DB) PayoutTotals() (map[string]int64, error) {
	rows, err := db.conn.Query(`
		SELECT category, COALESCE(SUM(amount), 0) FROM payouts
		WHERE status = ? GROUP BY category
	`, string(PayoutSubmitted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var cat string
		var sum int64
		if err := rows.Scan(&cat, &sum); err != nil {
			return nil, err
		}
		totals[cat] = sum
	}
	return totals, rows.Err()
}
