// Package jobs drives asynchronous media jobs through their lifecycle.
//
// The controller:
//  1. Validates and prices the input for the job's kind
//  2. Reserves the cost from the owner's balance
//  3. Persists the job as pending and returns immediately
//  4. In the background: submits to the external worker, polls it on a
//     fixed interval within a wall-clock budget, post-processes the result
//     and writes a terminal status
//
// Every transition is written to the store before the next step runs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediaforge-app/mediaforge/internal/domain"
	"github.com/mediaforge-app/mediaforge/internal/infra/observability"
)

// Config controls controller behavior.
type Config struct {
	PollInterval  time.Duration // Delay between polls (default: 10s)
	Timeout       time.Duration // Submit and poll budget from job creation (default: 5m)
	MaxConcurrent int           // Jobs driven at once (default: 16)
	WriteTimeout  time.Duration // Bound on terminal status writes (default: 10s)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:  10 * time.Second,
		Timeout:       5 * time.Minute,
		MaxConcurrent: 16,
		WriteTimeout:  10 * time.Second,
	}
}

// errInterrupted marks work cut short by Shutdown.
var errInterrupted = errors.New("interrupted: service shutting down")

// Controller owns the job state machine.
type Controller struct {
	mu        sync.RWMutex
	config    Config
	store     domain.JobStore
	ledger    domain.Ledger
	events    domain.EventPublisher
	workflows map[domain.JobKind]Workflow
	sem       chan struct{} // Concurrency semaphore
	inflight  map[string]struct{}
	closed    bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	completed int64
	failed    int64
	newID     func() string
}

// New creates a controller. Register workflows before submitting.
func New(cfg Config, store domain.JobStore, ledger domain.Ledger) *Controller {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		config:    cfg,
		store:     store,
		ledger:    ledger,
		workflows: make(map[domain.JobKind]Workflow),
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		inflight:  make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		newID:     uuid.NewString,
	}
}

// RegisterWorkflow registers the workflow for its kind.
func (c *Controller) RegisterWorkflow(wf Workflow) {
	c.mu.Lock()
	c.workflows[wf.Kind()] = wf
	c.mu.Unlock()
}

// SetEventPublisher attaches a lifecycle event sink.
func (c *Controller) SetEventPublisher(p domain.EventPublisher) {
	c.mu.Lock()
	c.events = p
	c.mu.Unlock()
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.config }

// ─── Submission ─────────────────────────────────────────────────────────────

// Submit validates, reserves and persists a new job, then schedules its
// processing. It returns as soon as the pending record exists. A failed
// reservation leaves no job behind.
func (c *Controller) Submit(ctx context.Context, ownerID string, kind domain.JobKind, in domain.JobInput) (*domain.Job, error) {
	if ownerID == "" {
		return nil, domain.InvalidField("owner_id", "must not be empty")
	}

	c.mu.RLock()
	wf, ok := c.workflows[kind]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%w: shutting down", domain.ErrAtCapacity)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}

	if err := wf.Validate(in); err != nil {
		observability.JobsRejected.WithLabelValues(string(kind), "validation").Inc()
		return nil, err
	}
	cost := wf.Cost(in)

	// Check concurrency limit before touching the balance
	select {
	case c.sem <- struct{}{}:
	default:
		observability.JobsRejected.WithLabelValues(string(kind), "capacity").Inc()
		return nil, fmt.Errorf("%w (%d concurrent jobs)", domain.ErrAtCapacity, c.config.MaxConcurrent)
	}

	balance, err := c.ledger.Reserve(ctx, ownerID, cost, wf.Label())
	observability.RecordReservation(kind, cost, err)
	if err != nil {
		<-c.sem
		if errors.Is(err, domain.ErrInsufficientBalance) {
			observability.JobsRejected.WithLabelValues(string(kind), "balance").Inc()
		}
		return nil, err
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:           c.newID(),
		OwnerID:      ownerID,
		Kind:         kind,
		Status:       domain.StatusPending,
		Input:        in,
		CostReserved: cost,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.store.CreateJob(ctx, job); err != nil {
		<-c.sem
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.sem
		c.finishFailed(&job, errInterrupted.Error())
		return nil, fmt.Errorf("%w: shutting down", domain.ErrAtCapacity)
	}
	c.inflight[inflightKey(job.OwnerID, job.ID)] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	log.Printf("[jobs] submitted %s job %s owner=%s cost=%d balance=%d", kind, job.ID, ownerID, cost, balance)
	observability.JobsSubmitted.WithLabelValues(string(kind)).Inc()
	observability.JobsActive.Inc()
	c.publish(&job)

	// Execute asynchronously
	go c.process(wf, job)

	out := job
	return &out, nil
}

// Get returns the current stored state of a job.
func (c *Controller) Get(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	return c.store.GetJob(ctx, ownerID, jobID)
}

// ─── Processing ─────────────────────────────────────────────────────────────

// process runs one job to a terminal status. It is the job's only writer.
func (c *Controller) process(wf Workflow, job domain.Job) {
	defer func() {
		c.mu.Lock()
		delete(c.inflight, inflightKey(job.OwnerID, job.ID))
		c.mu.Unlock()
		observability.JobsActive.Dec()
		<-c.sem // Release concurrency slot
		c.wg.Done()
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[jobs] panic in job %s: %v\n%s", job.ID, r, debug.Stack())
			c.finishFailed(&job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := c.ctx

	// Transition: PENDING → PROCESSING
	if err := c.advance(ctx, &job, domain.JobUpdate{Status: domain.StatusProcessing}); err != nil {
		c.finishFailed(&job, fmt.Sprintf("%v: %v", domain.ErrStoreWrite, err))
		return
	}

	// The budget covers submission and polling, measured from creation.
	budget, cancel := context.WithDeadline(ctx, job.CreatedAt.Add(c.config.Timeout))
	defer cancel()

	// Transition: PROCESSING → SUBMITTED
	handle, err := wf.Submit(budget, job.Input)
	if err == nil && handle == "" {
		err = errors.New("no task handle returned")
	}
	if err != nil {
		if ctx.Err() == nil && budget.Err() != nil {
			c.finishFailed(&job, fmt.Sprintf("%v after %s: submit did not return", domain.ErrJobTimeout, c.config.Timeout))
			return
		}
		c.finishFailed(&job, c.describe(domain.ErrExternalWorker, err))
		return
	}
	if err := c.advance(ctx, &job, domain.JobUpdate{
		Status:     domain.StatusSubmitted,
		TaskHandle: &handle,
	}); err != nil {
		c.finishFailed(&job, fmt.Sprintf("%v: %v", domain.ErrStoreWrite, err))
		return
	}

	result, err := c.poll(ctx, budget, wf, &job, handle)
	if err != nil {
		c.finishFailed(&job, err.Error())
		return
	}

	// Archival problems never downgrade a successful generation.
	var warning *string
	if pp, ok := wf.(PostProcessor); ok {
		owned, err := pp.PostProcess(ctx, &job, result)
		switch {
		case err != nil:
			msg := fmt.Sprintf("post-processing failed, keeping remote result: %v", err)
			warning = &msg
			observability.ArchiveFailures.WithLabelValues(string(job.Kind)).Inc()
			log.Printf("[jobs] job %s: %s", job.ID, msg)
		case owned != "":
			result = owned
		}
	}

	// Transition: SUBMITTED → COMPLETED
	// The result already exists, so the write outlives a shutdown.
	writeCtx, cancelWrite := context.WithTimeout(context.Background(), c.config.WriteTimeout)
	defer cancelWrite()
	if err := c.advance(writeCtx, &job, domain.JobUpdate{
		Status:    domain.StatusCompleted,
		ResultRef: &result,
		Warning:   warning,
	}); err != nil {
		c.finishFailed(&job, fmt.Sprintf("%v: %v", domain.ErrStoreWrite, err))
		return
	}

	c.mu.Lock()
	c.completed++
	c.mu.Unlock()
}

// poll asks the worker for the task state every PollInterval until it
// reports a terminal state or budget expires. ctx is the controller's own
// context and tells a shutdown apart from a timeout. Individual poll errors
// are logged and retried on the next tick.
func (c *Controller) poll(ctx, budget context.Context, wf Workflow, job *domain.Job, handle string) (string, error) {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-budget.Done():
			if ctx.Err() != nil {
				return "", errInterrupted
			}
			return "", fmt.Errorf("%w after %s (%d polls)", domain.ErrJobTimeout, c.config.Timeout, polls)
		case <-ticker.C:
		}

		polls++
		state, err := wf.Poll(budget, handle)
		if err != nil {
			if budget.Err() == nil {
				observability.PollErrors.WithLabelValues(string(job.Kind)).Inc()
				log.Printf("[jobs] job %s: poll %d failed: %v", job.ID, polls, err)
			}
			continue
		}

		switch state.Status {
		case domain.TaskSucceeded:
			if state.Result == "" {
				return "", fmt.Errorf("%w: task succeeded without a result", domain.ErrExternalWorker)
			}
			return state.Result, nil
		case domain.TaskFailed:
			msg := state.Error
			if msg == "" {
				msg = "task failed"
			}
			return "", fmt.Errorf("%w: %s", domain.ErrExternalWorker, msg)
		}
	}
}

// advance persists u, then applies it to the in-memory copy.
func (c *Controller) advance(ctx context.Context, job *domain.Job, u domain.JobUpdate) error {
	if err := c.store.UpdateJob(ctx, job.OwnerID, job.ID, u); err != nil {
		return err
	}
	apply(job, u)
	log.Printf("[jobs] job %s → %s", job.ID, job.Status)
	observability.RecordTransition(job.Kind, job.Status, job.CreatedAt)
	c.publish(job)
	return nil
}

// finishFailed writes the terminal FAILED status. It uses its own deadline
// so the write still happens while the controller is shutting down.
func (c *Controller) finishFailed(job *domain.Job, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
	defer cancel()

	err := c.advance(ctx, job, domain.JobUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: &msg,
	})
	if err != nil {
		log.Printf("[jobs] job %s: could not record failure %q: %v", job.ID, msg, err)
		return
	}
	log.Printf("[jobs] job %s failed: %s", job.ID, msg)

	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func (c *Controller) describe(kind error, err error) string {
	if c.ctx.Err() != nil {
		return errInterrupted.Error()
	}
	return fmt.Sprintf("%v: %v", kind, err)
}

func (c *Controller) publish(job *domain.Job) {
	c.mu.RLock()
	p := c.events
	c.mu.RUnlock()
	if p == nil {
		return
	}
	if err := p.PublishJobEvent(domain.EventFor(job, time.Now().UTC())); err != nil {
		log.Printf("[jobs] publish event for job %s: %v", job.ID, err)
	}
}

func apply(job *domain.Job, u domain.JobUpdate) {
	job.Status = u.Status
	if u.ResultRef != nil {
		job.ResultRef = u.ResultRef
	}
	if u.ErrorMessage != nil {
		job.ErrorMessage = u.ErrorMessage
	}
	if u.Warning != nil {
		job.Warning = u.Warning
	}
	if u.TaskHandle != nil {
		job.TaskHandle = u.TaskHandle
	}
	job.UpdatedAt = time.Now().UTC()
}

func inflightKey(ownerID, jobID string) string { return ownerID + "/" + jobID }

// ─── Reconciliation ─────────────────────────────────────────────────────────

// Sweep fails non-terminal jobs older than staleAfter that this controller
// is not driving, such as jobs orphaned by a restart. staleAfter should
// exceed the polling Timeout. It returns the number of jobs failed.
func (c *Controller) Sweep(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	stale, err := c.store.ListStaleJobs(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stale {
		job := stale[i]
		c.mu.RLock()
		_, running := c.inflight[inflightKey(job.OwnerID, job.ID)]
		c.mu.RUnlock()
		if running {
			continue
		}

		msg := fmt.Sprintf("abandoned: still %s after %s with no active worker", job.Status, staleAfter)
		err := c.advance(ctx, &job, domain.JobUpdate{Status: domain.StatusFailed, ErrorMessage: &msg})
		if errors.Is(err, domain.ErrJobTerminal) || errors.Is(err, domain.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return swept, err
		}
		swept++
		observability.JobsSwept.Inc()
	}
	if swept > 0 {
		log.Printf("[jobs] sweep failed %d abandoned job(s)", swept)
	}
	return swept, nil
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Shutdown stops accepting jobs, interrupts in-flight polling and waits for
// every job routine to record a terminal status or for ctx to expire.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports controller counters.
type Stats struct {
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	MaxSlots  int   `json:"max_slots"`
	FreeSlots int   `json:"free_slots"`
}

// Stats returns current controller statistics.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := len(c.inflight)
	return Stats{
		Active:    active,
		Completed: c.completed,
		Failed:    c.failed,
		MaxSlots:  c.config.MaxConcurrent,
		FreeSlots: c.config.MaxConcurrent - active,
	}
}

// ActiveCount returns the number of jobs currently being driven.
func (c *Controller) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.inflight)
}
