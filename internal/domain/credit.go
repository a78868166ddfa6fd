package domain

import "time"

// ─── Credit Types ───────────────────────────────────────────────────────────
// Coins are whole units. An account balance never goes negative.

// EntryKind is the business reason class for a ledger row.
type EntryKind string

const (
	EntryReserve EntryKind = "RESERVE"
	EntryGrant   EntryKind = "GRANT"
)

// Outcome records whether an attempted transaction took effect.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// LedgerEntry is one attempted balance-affecting transaction.
// Rows are append-only.
type LedgerEntry struct {
	ID           int64     `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Kind         EntryKind `json:"kind"`
	Amount       int64     `json:"amount"`
	Reason       string    `json:"reason"`
	Outcome      Outcome   `json:"outcome"`
	BalanceAfter int64     `json:"balance_after"`
	Timestamp    time.Time `json:"timestamp"`
}

// Account is an owner's spendable balance.
type Account struct {
	OwnerID   string    `json:"owner_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
