package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mediaforge-app/mediaforge/internal/app/jobs"
	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ─── Jobs API ───────────────────────────────────────────────────────────────
// Every route is scoped to the owner in the path.
//
// POST   /v1/owners/{ownerID}/transcriptions submit audio for transcription
// POST   /v1/owners/{ownerID}/videos         submit a prompt for video generation
// GET    /v1/owners/{ownerID}/jobs           list jobs, newest first
// GET    /v1/owners/{ownerID}/jobs/{jobID}   current job state
// DELETE /v1/owners/{ownerID}/jobs/{jobID}   remove a finished job
// GET    /v1/owners/{ownerID}/balance        spendable coins
// GET    /v1/owners/{ownerID}/ledger         reservation and grant history

// JobCatalog lists and removes stored jobs.
type JobCatalog interface {
	ListJobs(ctx context.Context, ownerID string, kind domain.JobKind, limit int) ([]domain.Job, error)
	DeleteJob(ctx context.Context, ownerID, jobID string) error
}

// AccountBook reads owner balances and ledger history.
type AccountBook interface {
	Balance(ctx context.Context, ownerID string) (int64, error)
	Entries(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error)
}

// JobsAPI holds references to the job services.
type JobsAPI struct {
	Controller *jobs.Controller
	Catalog    JobCatalog
	Accounts   AccountBook
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 64 << 10
)

type transcriptionRequest struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	Language        string  `json:"language,omitempty"`
}

type videoRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type submitResponse struct {
	JobID        string           `json:"job_id"`
	Status       domain.JobStatus `json:"status"`
	CostReserved int64            `json:"cost_reserved"`
}

// HandleSubmitTranscription queues a transcription job.
// POST /v1/owners/{ownerID}/transcriptions
func (a *JobsAPI) HandleSubmitTranscription(w http.ResponseWriter, r *http.Request) {
	var req transcriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.submit(w, r, domain.KindTranscription, domain.JobInput{
		Ref:             req.AudioURL,
		DurationSeconds: req.DurationSeconds,
		Language:        req.Language,
	})
}

// HandleSubmitVideo queues a video synthesis job.
// POST /v1/owners/{ownerID}/videos
func (a *JobsAPI) HandleSubmitVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.submit(w, r, domain.KindVideoSynthesis, domain.JobInput{
		Ref:         req.Prompt,
		AspectRatio: req.AspectRatio,
	})
}

func (a *JobsAPI) submit(w http.ResponseWriter, r *http.Request, kind domain.JobKind, in domain.JobInput) {
	job, err := a.Controller.Submit(r.Context(), chi.URLParam(r, "ownerID"), kind, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/owners/"+job.OwnerID+"/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:        job.ID,
		Status:       job.Status,
		CostReserved: job.CostReserved,
	})
}

// HandleGetJob returns the stored job.
// GET /v1/owners/{ownerID}/jobs/{jobID}
func (a *JobsAPI) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Controller.Get(r.Context(), chi.URLParam(r, "ownerID"), chi.URLParam(r, "jobID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleListJobs lists an owner's jobs, optionally filtered by ?kind=.
// GET /v1/owners/{ownerID}/jobs
func (a *JobsAPI) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	kind := domain.JobKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		writeDomainError(w, domain.InvalidField("kind", "must be %s or %s", domain.KindTranscription, domain.KindVideoSynthesis))
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	list, err := a.Catalog.ListJobs(r.Context(), chi.URLParam(r, "ownerID"), kind, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []domain.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// HandleDeleteJob removes a completed or failed job.
// DELETE /v1/owners/{ownerID}/jobs/{jobID}
func (a *JobsAPI) HandleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.DeleteJob(r.Context(), chi.URLParam(r, "ownerID"), chi.URLParam(r, "jobID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBalance returns the owner's spendable coins.
// GET /v1/owners/{ownerID}/balance
func (a *JobsAPI) HandleBalance(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerID")
	bal, err := a.Accounts.Balance(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner_id": owner,
		"balance":  bal,
	})
}

// HandleLedger returns ledger entries, newest first.
// GET /v1/owners/{ownerID}/ledger
func (a *JobsAPI) HandleLedger(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := a.Accounts.Entries(r.Context(), chi.URLParam(r, "ownerID"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleStatus reports controller load.
// GET /api/status
func (a *JobsAPI) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "MediaForge is running",
		"jobs":   a.Controller.Stats(),
	})
}

// ─── Request Helpers ────────────────────────────────────────────────────────

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}
