package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Job Record Store Tests
// ═══════════════════════════════════════════════════════════════════════════

func testJob(owner, id string, created time.Time) domain.Job {
	return domain.Job{
		ID:      id,
		OwnerID: owner,
		Kind:    domain.KindTranscription,
		Status:  domain.StatusPending,
		Input: domain.JobInput{
			Ref:             "https://cdn.example.com/a.mp3",
			DurationSeconds: 95,
			Language:        "en",
		},
		CostReserved: 4,
		CreatedAt:    created,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Millisecond)

	if err := db.CreateJob(ctx, testJob("alice", "job-1", created)); err != nil {
		t.Fatalf("CreateJob() error: %v", err)
	}

	got, err := db.GetJob(ctx, "alice", "job-1")
	if err != nil {
		t.Fatalf("GetJob() error: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.Input.Ref != "https://cdn.example.com/a.mp3" || got.Input.DurationSeconds != 95 {
		t.Errorf("Input = %+v", got.Input)
	}
	if got.CostReserved != 4 {
		t.Errorf("CostReserved = %d, want 4", got.CostReserved)
	}
	if got.ResultRef != nil || got.ErrorMessage != nil || got.TaskHandle != nil {
		t.Errorf("optional fields should be nil: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestCreateJob_DuplicateKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	job := testJob("alice", "job-1", time.Now())

	if err := db.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error: %v", err)
	}
	if err := db.CreateJob(ctx, job); err == nil {
		t.Error("second CreateJob with same key should fail")
	}
}

func TestGetJob_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetJob(context.Background(), "alice", "missing")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestGetJob_ScopedByOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateJob(ctx, testJob("alice", "job-1", time.Now()))

	if _, err := db.GetJob(ctx, "bob", "job-1"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("other owner lookup error = %v, want ErrJobNotFound", err)
	}
}

func TestUpdateJob_PartialFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateJob(ctx, testJob("alice", "job-1", time.Now()))

	if err := db.UpdateJob(ctx, "alice", "job-1", domain.JobUpdate{
		Status:     domain.StatusSubmitted,
		TaskHandle: domain.StringPtr("task-abc"),
	}); err != nil {
		t.Fatalf("UpdateJob(submitted) error: %v", err)
	}

	// Status-only update must not clobber the handle.
	if err := db.UpdateJob(ctx, "alice", "job-1", domain.JobUpdate{
		Status:    domain.StatusCompleted,
		ResultRef: domain.StringPtr("transcript text"),
	}); err != nil {
		t.Fatalf("UpdateJob(completed) error: %v", err)
	}

	got, _ := db.GetJob(ctx, "alice", "job-1")
	if got.TaskHandle == nil || *got.TaskHandle != "task-abc" {
		t.Errorf("TaskHandle = %v, want task-abc", got.TaskHandle)
	}
	if got.ResultRef == nil || *got.ResultRef != "transcript text" {
		t.Errorf("ResultRef = %v", got.ResultRef)
	}
	if err := got.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants() error: %v", err)
	}
}

func TestUpdateJob_TerminalIsImmutable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateJob(ctx, testJob("alice", "job-1", time.Now()))
	db.UpdateJob(ctx, "alice", "job-1", domain.JobUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: domain.StringPtr("boom"),
	})
	before, _ := db.GetJob(ctx, "alice", "job-1")

	err := db.UpdateJob(ctx, "alice", "job-1", domain.JobUpdate{
		Status:    domain.StatusCompleted,
		ResultRef: domain.StringPtr("late result"),
	})
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("UpdateJob(terminal) error = %v, want ErrJobTerminal", err)
	}

	after, _ := db.GetJob(ctx, "alice", "job-1")
	if after.Status != domain.StatusFailed || after.ResultRef != nil {
		t.Errorf("terminal job mutated: %+v", after)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("UpdatedAt changed: %v → %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestUpdateJob_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateJob(context.Background(), "alice", "ghost", domain.JobUpdate{Status: domain.StatusProcessing})
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("UpdateJob(ghost) error = %v, want ErrJobNotFound", err)
	}
}

func TestUpdateJob_InvalidStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateJob(ctx, testJob("alice", "job-1", time.Now()))

	if err := db.UpdateJob(ctx, "alice", "job-1", domain.JobUpdate{Status: "generating"}); err == nil {
		t.Error("UpdateJob with unknown status should fail")
	}
}

func TestListJobs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		db.CreateJob(ctx, testJob("alice", fmt.Sprintf("t-%d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	video := testJob("alice", "v-1", base.Add(10*time.Minute))
	video.Kind = domain.KindVideoSynthesis
	db.CreateJob(ctx, video)
	db.CreateJob(ctx, testJob("bob", "b-1", base))

	all, err := db.ListJobs(ctx, "alice", "", 10)
	if err != nil {
		t.Fatalf("ListJobs() error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len(all) = %d, want 4", len(all))
	}
	if all[0].ID != "v-1" {
		t.Errorf("newest first: got %s, want v-1", all[0].ID)
	}

	transcripts, _ := db.ListJobs(ctx, "alice", domain.KindTranscription, 10)
	if len(transcripts) != 3 {
		t.Errorf("len(transcripts) = %d, want 3", len(transcripts))
	}

	limited, _ := db.ListJobs(ctx, "alice", "", 2)
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestListStaleJobs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	db.CreateJob(ctx, testJob("alice", "old-running", now.Add(-time.Hour)))
	db.CreateJob(ctx, testJob("alice", "old-done", now.Add(-time.Hour)))
	db.UpdateJob(ctx, "alice", "old-done", domain.JobUpdate{
		Status:    domain.StatusCompleted,
		ResultRef: domain.StringPtr("r"),
	})
	db.CreateJob(ctx, testJob("alice", "fresh", now))

	stale, err := db.ListStaleJobs(ctx, now.Add(-30*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListStaleJobs() error: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "old-running" {
		t.Errorf("stale = %+v, want only old-running", stale)
	}
}

func TestDeleteJob(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateJob(ctx, testJob("alice", "running", time.Now()))
	db.CreateJob(ctx, testJob("alice", "done", time.Now()))
	db.UpdateJob(ctx, "alice", "done", domain.JobUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: domain.StringPtr("x"),
	})

	if err := db.DeleteJob(ctx, "alice", "running"); !errors.Is(err, domain.ErrJobActive) {
		t.Errorf("DeleteJob(running) error = %v, want ErrJobActive", err)
	}
	if err := db.DeleteJob(ctx, "alice", "done"); err != nil {
		t.Fatalf("DeleteJob(done) error: %v", err)
	}
	if _, err := db.GetJob(ctx, "alice", "done"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("deleted job still present: %v", err)
	}
	if err := db.DeleteJob(ctx, "alice", "done"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("DeleteJob(again) error = %v, want ErrJobNotFound", err)
	}
}
