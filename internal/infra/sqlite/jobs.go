package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ─── Job Schema ─────────────────────────────────────────────────────────────

// JobMigrations returns the job record schema statements.
func JobMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			owner_id      TEXT NOT NULL,
			id            TEXT NOT NULL,
			kind          TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			input_ref     TEXT NOT NULL,
			input_json    TEXT NOT NULL DEFAULT '{}',
			result_ref    TEXT,
			error_message TEXT,
			warning       TEXT,
			task_handle   TEXT,
			cost_reserved INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			PRIMARY KEY (owner_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_owner_created ON jobs(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at)`,
	}
}

const jobColumns = `owner_id, id, kind, status, input_json, result_ref, error_message,
	warning, task_handle, cost_reserved, created_at, updated_at`

// ─── Job Operations ─────────────────────────────────────────────────────────

// CreateJob inserts a new job record.
func (db *DB) CreateJob(ctx context.Context, job domain.Job) error {
	input, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT INTO jobs (owner_id, id, kind, status, input_ref, input_json, result_ref,
			error_message, warning, task_handle, cost_reserved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.OwnerID, job.ID, string(job.Kind), string(job.Status), job.Input.Ref, string(input),
		nullString(job.ResultRef), nullString(job.ErrorMessage), nullString(job.Warning),
		nullString(job.TaskHandle), job.CostReserved, formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateJob applies a partial update to a non-terminal job.
func (db *DB) UpdateJob(ctx context.Context, ownerID, jobID string, u domain.JobUpdate) error {
	if !u.Status.Valid() {
		return fmt.Errorf("update job %s: invalid status %q", jobID, u.Status)
	}

	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(u.Status), formatTime(time.Now())}
	if u.ResultRef != nil {
		sets = append(sets, "result_ref = ?")
		args = append(args, *u.ResultRef)
	}
	if u.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *u.ErrorMessage)
	}
	if u.Warning != nil {
		sets = append(sets, "warning = ?")
		args = append(args, *u.Warning)
	}
	if u.TaskHandle != nil {
		sets = append(sets, "task_handle = ?")
		args = append(args, *u.TaskHandle)
	}
	args = append(args, ownerID, jobID)

	res, err := db.db.ExecContext(ctx, `
		UPDATE jobs SET `+strings.Join(sets, ", ")+`
		WHERE owner_id = ? AND id = ? AND status NOT IN ('completed', 'failed')
	`, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: either the job is gone or it already finished.
	if _, err := db.GetJob(ctx, ownerID, jobID); err != nil {
		return err
	}
	return domain.ErrJobTerminal
}

// GetJob retrieves a single job.
func (db *DB) GetJob(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE owner_id = ? AND id = ?
	`, ownerID, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns an owner's jobs, newest first. An empty kind matches all.
func (db *DB) ListJobs(ctx context.Context, ownerID string, kind domain.JobKind, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE owner_id = ?`
	args := []any{ownerID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListStaleJobs returns non-terminal jobs created before the cutoff, oldest first.
func (db *DB) ListStaleJobs(ctx context.Context, before time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status NOT IN ('completed', 'failed') AND created_at < ?
		ORDER BY created_at ASC LIMIT ?
	`, formatTime(before), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// DeleteJob removes a terminal job. Running jobs are refused with ErrJobActive.
func (db *DB) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	res, err := db.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE owner_id = ? AND id = ? AND status IN ('completed', 'failed')
	`, ownerID, jobID)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := db.GetJob(ctx, ownerID, jobID); err != nil {
		return err
	}
	return domain.ErrJobActive
}

// ─── Scanning ───────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*domain.Job, error) {
	var (
		j                               domain.Job
		kind, status, inputJSON         string
		result, errMsg, warning, handle sql.NullString
		created, updated                string
	)
	if err := s.Scan(&j.OwnerID, &j.ID, &kind, &status, &inputJSON, &result, &errMsg,
		&warning, &handle, &j.CostReserved, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(inputJSON), &j.Input); err != nil {
		return nil, fmt.Errorf("decode input of job %s: %w", j.ID, err)
	}
	j.Kind = domain.JobKind(kind)
	j.Status = domain.JobStatus(status)
	j.ResultRef = stringPtr(result)
	j.ErrorMessage = stringPtr(errMsg)
	j.Warning = stringPtr(warning)
	j.TaskHandle = stringPtr(handle)
	j.CreatedAt = parseTime(created)
	j.UpdatedAt = parseTime(updated)
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
