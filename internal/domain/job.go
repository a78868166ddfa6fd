// Package domain contains pure business types with no infrastructure imports.
// Jobs, ledger entries and the interfaces the outer layers implement.
package domain

import (
	"fmt"
	"time"
)

// ─── Job Types ──────────────────────────────────────────────────────────────

// JobKind identifies which external workflow drives a job.
type JobKind string

const (
	KindTranscription  JobKind = "transcription"
	KindVideoSynthesis JobKind = "video_synthesis"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	return k == KindTranscription || k == KindVideoSynthesis
}

// JobStatus is a job's lifecycle position.
//
//	pending → processing → submitted → completed
//	                    ↘            ↘ failed
//	                      failed
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusSubmitted  JobStatus = "submitted"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the five lifecycle statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSubmitted, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// JobInput carries the kind-specific submission fields.
// Ref is the source audio URL for transcriptions and the prompt for videos.
type JobInput struct {
	Ref             string  `json:"ref"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Language        string  `json:"language,omitempty"`
	AspectRatio     string  `json:"aspect_ratio,omitempty"`
}

// Job is one unit of asynchronous work, keyed by (OwnerID, ID).
type Job struct {
	ID           string    `json:"job_id"`
	OwnerID      string    `json:"owner_id"`
	Kind         JobKind   `json:"kind"`
	Status       JobStatus `json:"status"`
	Input        JobInput  `json:"input"`
	ResultRef    *string   `json:"result_ref"`
	ErrorMessage *string   `json:"error_message"`
	Warning      *string   `json:"warning,omitempty"`
	TaskHandle   *string   `json:"external_task_handle,omitempty"`
	CostReserved int64     `json:"cost_reserved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CheckInvariants verifies the field rules every stored job must satisfy:
// a result exists only when completed, an error only when failed, and a
// task handle from submitted onwards.
func (j *Job) CheckInvariants() error {
	if !j.Status.Valid() {
		return fmt.Errorf("job %s: unknown status %q", j.ID, j.Status)
	}
	if (j.ResultRef != nil) != (j.Status == StatusCompleted) {
		return fmt.Errorf("job %s: result_ref set=%t with status %s", j.ID, j.ResultRef != nil, j.Status)
	}
	if (j.ErrorMessage != nil) != (j.Status == StatusFailed) {
		return fmt.Errorf("job %s: error_message set=%t with status %s", j.ID, j.ErrorMessage != nil, j.Status)
	}
	if j.Status == StatusSubmitted && j.TaskHandle == nil {
		return fmt.Errorf("job %s: submitted without task handle", j.ID)
	}
	return nil
}

// JobUpdate is a partial update. Nil fields are left untouched by the store.
type JobUpdate struct {
	Status       JobStatus
	ResultRef    *string
	ErrorMessage *string
	Warning      *string
	TaskHandle   *string
}

// ─── External Task State ────────────────────────────────────────────────────

// TaskStatus is the external worker's view of a submitted task.
type TaskStatus string

const (
	TaskInProgress TaskStatus = "in_progress"
	TaskSucceeded  TaskStatus = "succeeded"
	TaskFailed     TaskStatus = "failed"
)

// TaskState is the result of one poll against an external worker.
type TaskState struct {
	Status TaskStatus
	Result string
	Error  string
}

// ─── Lifecycle Events ───────────────────────────────────────────────────────

// JobEvent is published after every persisted transition.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	OwnerID    string    `json:"owner_id"`
	Kind       JobKind   `json:"kind"`
	Status     JobStatus `json:"status"`
	ResultRef  string    `json:"result_ref,omitempty"`
	Error      string    `json:"error,omitempty"`
	Warning    string    `json:"warning,omitempty"`
	HappenedAt time.Time `json:"happened_at"`
}

// EventFor builds the event describing j's current state.
func EventFor(j *Job, at time.Time) JobEvent {
	ev := JobEvent{
		JobID:      j.ID,
		OwnerID:    j.OwnerID,
		Kind:       j.Kind,
		Status:     j.Status,
		HappenedAt: at,
	}
	if j.ResultRef != nil {
		ev.ResultRef = *j.ResultRef
	}
	if j.ErrorMessage != nil {
		ev.Error = *j.ErrorMessage
	}
	if j.Warning != nil {
		ev.Warning = *j.Warning
	}
	return ev
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
