package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Balance Ledger Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestReserve_Success(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.Grant(ctx, "alice", 10, "signup bonus")

	after, err := db.Reserve(ctx, "alice", 4, "Audio Transcription")
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	if after != 6 {
		t.Errorf("balanceAfter = %d, want 6", after)
	}

	entries, _ := db.Entries(ctx, "alice", 10)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	e := entries[0]
	if e.Kind != domain.EntryReserve || e.Amount != 4 || e.Outcome != domain.OutcomeSuccess || e.BalanceAfter != 6 {
		t.Errorf("entry = %+v", e)
	}
	if e.Reason != "Audio Transcription" {
		t.Errorf("Reason = %q", e.Reason)
	}
}

func TestReserve_Insufficient(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.Grant(ctx, "alice", 1, "")

	after, err := db.Reserve(ctx, "alice", 4, "Audio Transcription")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Reserve() error = %v, want ErrInsufficientBalance", err)
	}
	if after != 1 {
		t.Errorf("balance reported = %d, want 1", after)
	}

	bal, _ := db.Balance(ctx, "alice")
	if bal != 1 {
		t.Errorf("balance mutated: %d, want 1", bal)
	}

	entries, _ := db.Entries(ctx, "alice", 1)
	if entries[0].Outcome != domain.OutcomeFailed || entries[0].Amount != 4 {
		t.Errorf("failed attempt entry = %+v", entries[0])
	}
}

func TestReserve_UnknownOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Reserve(ctx, "nobody", 2, "Video Generation")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Reserve(nobody) error = %v, want ErrInsufficientBalance", err)
	}
	entries, _ := db.Entries(ctx, "nobody", 10)
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeFailed {
		t.Errorf("entries = %+v, want one failed attempt", entries)
	}
}

func TestReserve_NonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Reserve(context.Background(), "alice", 0, ""); err == nil {
		t.Error("Reserve(0) should fail")
	}
}

func TestReserve_ExactBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.Grant(ctx, "alice", 5, "")

	after, err := db.Reserve(ctx, "alice", 5, "")
	if err != nil {
		t.Fatalf("Reserve(all) error: %v", err)
	}
	if after != 0 {
		t.Errorf("balanceAfter = %d, want 0", after)
	}
}

// Balance must never go negative under concurrent reservations.
func TestReserve_ConcurrentNeverOverdraws(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.Grant(ctx, "alice", 10, "")

	const attempts = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.Reserve(ctx, "alice", 3, "race"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("successful reservations = %d, want 3", succeeded)
	}
	bal, _ := db.Balance(ctx, "alice")
	if bal != 1 {
		t.Errorf("final balance = %d, want 1", bal)
	}

	entries, _ := db.Entries(ctx, "alice", 100)
	if len(entries) != attempts+1 {
		t.Errorf("len(entries) = %d, want %d (one per attempt plus grant)", len(entries), attempts+1)
	}
}

func TestGrant(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Grant(ctx, "alice", 3, "promo"); err != nil {
		t.Fatalf("Grant() error: %v", err)
	}
	after, err := db.Grant(ctx, "alice", 7, "promo")
	if err != nil {
		t.Fatalf("Grant() error: %v", err)
	}
	if after != 10 {
		t.Errorf("balance = %d, want 10", after)
	}
	if _, err := db.Grant(ctx, "alice", -1, ""); err == nil {
		t.Error("Grant(-1) should fail")
	}
}

func TestBalance_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Balance(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Balance(ghost) error = %v, want ErrAccountNotFound", err)
	}
}
