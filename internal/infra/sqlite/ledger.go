package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ─── Ledger Schema ──────────────────────────────────────────────────────────

// LedgerMigrations returns the account and ledger schema statements.
func LedgerMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			owner_id   TEXT PRIMARY KEY,
			balance    INTEGER NOT NULL DEFAULT 0 CHECK(balance >= 0),
			updated_at TEXT NOT NULL
		)`,

		// Append-only: one row per attempted transaction.
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id      TEXT NOT NULL,
			kind          TEXT NOT NULL,
			amount        INTEGER NOT NULL,
			reason        TEXT NOT NULL DEFAULT '',
			outcome       TEXT NOT NULL,
			balance_after INTEGER NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_owner ON ledger_entries(owner_id, id)`,
	}
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

// Reserve debits amount from ownerID if the balance covers it. The debit is a
// single conditional UPDATE inside a transaction, so concurrent reservations
// against one owner can never overdraw it. Every attempt writes one entry.
func (db *DB) Reserve(ctx context.Context, ownerID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("reserve: amount must be positive, got %d", amount)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("reserve: begin: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - ?, updated_at = ?
		WHERE owner_id = ? AND balance >= ?
	`, amount, now, ownerID, amount)
	if err != nil {
		return 0, fmt.Errorf("reserve: debit: %w", err)
	}
	debited, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reserve: debit: %w", err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE owner_id = ?`, ownerID).Scan(&balance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("reserve: read balance: %w", err)
	}

	outcome := domain.OutcomeSuccess
	if debited == 0 {
		outcome = domain.OutcomeFailed
	}
	if err := insertEntry(ctx, tx, ownerID, domain.EntryReserve, amount, reason, outcome, balance, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("reserve: commit: %w", err)
	}

	if debited == 0 {
		return balance, fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientBalance, amount, balance)
	}
	return balance, nil
}

// Grant credits amount to ownerID, creating the account if needed.
func (db *DB) Grant(ctx context.Context, ownerID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant: amount must be positive, got %d", amount)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("grant: begin: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (owner_id, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			balance    = balance + excluded.balance,
			updated_at = excluded.updated_at
	`, ownerID, amount, now); err != nil {
		return 0, fmt.Errorf("grant: credit: %w", err)
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE owner_id = ?`, ownerID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("grant: read balance: %w", err)
	}
	if err := insertEntry(ctx, tx, ownerID, domain.EntryGrant, amount, reason, domain.OutcomeSuccess, balance, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("grant: commit: %w", err)
	}
	return balance, nil
}

// Balance returns an owner's current balance.
func (db *DB) Balance(ctx context.Context, ownerID string) (int64, error) {
	var balance int64
	err := db.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE owner_id = ?`, ownerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return balance, nil
}

// Entries returns an owner's ledger history, newest first.
func (db *DB) Entries(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, amount, reason, outcome, balance_after, created_at
		FROM ledger_entries WHERE owner_id = ?
		ORDER BY id DESC LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e             domain.LedgerEntry
			kind, outcome string
			created       string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &kind, &e.Amount, &e.Reason, &outcome, &e.BalanceAfter, &created); err != nil {
			return nil, err
		}
		e.Kind = domain.EntryKind(kind)
		e.Outcome = domain.Outcome(outcome)
		e.Timestamp = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, ownerID string, kind domain.EntryKind, amount int64, reason string, outcome domain.Outcome, balance int64, at string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (owner_id, kind, amount, reason, outcome, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ownerID, string(kind), amount, reason, string(outcome), balance, at)
	if err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}
	return nil
}
