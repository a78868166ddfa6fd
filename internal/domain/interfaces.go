package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// JobStore persists job records keyed by (ownerID, jobID).
type JobStore interface {
	// CreateJob inserts a new record. A conflicting key is a programming error.
	CreateJob(ctx context.Context, job Job) error

	// UpdateJob applies a partial update. Terminal jobs are never modified:
	// the call returns ErrJobTerminal instead.
	UpdateJob(ctx context.Context, ownerID, jobID string, u JobUpdate) error

	// GetJob returns ErrJobNotFound when no such record exists.
	GetJob(ctx context.Context, ownerID, jobID string) (*Job, error)

	// ListStaleJobs returns non-terminal jobs created before the cutoff.
	ListStaleJobs(ctx context.Context, before time.Time, limit int) ([]Job, error)
}

// Ledger debits spendable balance and records every attempt.
type Ledger interface {
	// Reserve atomically debits amount from ownerID. It returns the balance
	// after the debit, or ErrInsufficientBalance without mutating anything.
	Reserve(ctx context.Context, ownerID string, amount int64, reason string) (int64, error)
}

// Invoker is a remote long-running task API.
type Invoker interface {
	Submit(ctx context.Context, in JobInput) (handle string, err error)
	Poll(ctx context.Context, handle string) (TaskState, error)
}

// Archiver relocates a remotely hosted result into owned storage and
// returns the owned reference.
type Archiver interface {
	Archive(ctx context.Context, ownerID, jobID, remoteURL string) (string, error)
}

// EventPublisher receives lifecycle events. Implementations must not block
// for long; failures are reported but never affect the job.
type EventPublisher interface {
	PublishJobEvent(ev JobEvent) error
}
