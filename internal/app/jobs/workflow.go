package jobs

import (
	"context"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// Workflow is the per-kind capability set the Controller drives. The
// lifecycle itself is identical for every kind; only these steps differ.
type Workflow interface {
	domain.Invoker

	// Kind identifies the workflow.
	Kind() domain.JobKind

	// Label is the ledger reason recorded for reservations.
	Label() string

	// Validate checks the input shape. Errors wrap domain.ErrValidation.
	Validate(in domain.JobInput) error

	// Cost is the deterministic coin price of a valid input.
	Cost(in domain.JobInput) int64
}

// PostProcessor is implemented by workflows whose successful results need a
// follow-up step, such as relocating a remote asset into owned storage.
// A failure is reported as a warning; the job still completes.
type PostProcessor interface {
	PostProcess(ctx context.Context, job *domain.Job, result string) (string, error)
}

// ─── Transcription ──────────────────────────────────────────────────────────

// TranscriptionWorkflow turns an audio URL into a transcript.
type TranscriptionWorkflow struct {
	domain.Invoker
	MinCost       int64   // floor price (default 2)
	CostPerMinute int64   // coins per started minute-fraction (default 2)
	MaxURLLength  int     // default 2048
	MaxDuration   float64 // seconds (default 4h); 0 leaves only the price bound
}

// DefaultMaxDuration is the longest audio accepted by default, in seconds.
const DefaultMaxDuration = 4 * 60 * 60

// NewTranscriptionWorkflow returns a workflow with default pricing.
func NewTranscriptionWorkflow(inv domain.Invoker) *TranscriptionWorkflow {
	return &TranscriptionWorkflow{
		Invoker:       inv,
		MinCost:       2,
		CostPerMinute: 2,
		MaxURLLength:  2048,
		MaxDuration:   DefaultMaxDuration,
	}
}

func (w *TranscriptionWorkflow) Kind() domain.JobKind { return domain.KindTranscription }
func (w *TranscriptionWorkflow) Label() string        { return "Audio Transcription" }

// Validate requires an absolute http(s) URL and a positive duration.
func (w *TranscriptionWorkflow) Validate(in domain.JobInput) error {
	if err := validateURL("audio_url", in.Ref, w.MaxURLLength); err != nil {
		return err
	}
	if in.DurationSeconds <= 0 || math.IsNaN(in.DurationSeconds) || math.IsInf(in.DurationSeconds, 0) {
		return domain.InvalidField("duration_seconds", "must be a positive number")
	}
	if w.MaxDuration > 0 && in.DurationSeconds > w.MaxDuration {
		return domain.InvalidField("duration_seconds", "exceeds limit of %.0f seconds", w.MaxDuration)
	}
	if w.price(in.DurationSeconds) >= math.MaxInt64 {
		return domain.InvalidField("duration_seconds", "is too long to price")
	}
	if len(in.Language) > 16 {
		return domain.InvalidField("language", "must be a short language code")
	}
	return nil
}

// Cost is max(MinCost, ceil(minutes * CostPerMinute)). Prices beyond int64
// saturate; Validate rejects those inputs.
func (w *TranscriptionWorkflow) Cost(in domain.JobInput) int64 {
	p := w.price(in.DurationSeconds)
	if p >= math.MaxInt64 {
		return math.MaxInt64
	}
	c := int64(p)
	if c < w.MinCost {
		return w.MinCost
	}
	return c
}

func (w *TranscriptionWorkflow) price(seconds float64) float64 {
	return math.Ceil(seconds / 60 * float64(w.CostPerMinute))
}

// ─── Video Synthesis ────────────────────────────────────────────────────────

// VideoWorkflow turns a text prompt into a hosted video, then relocates the
// video into owned storage when an Archiver is configured.
type VideoWorkflow struct {
	domain.Invoker
	Archiver        domain.Archiver // optional
	Price           int64           // fixed cost per video (default 10)
	MaxPromptLength int             // in characters (default 1000)
	AspectRatios    []string        // accepted values; empty input is always accepted
}

// NewVideoWorkflow returns a workflow with default pricing and limits.
func NewVideoWorkflow(inv domain.Invoker, archiver domain.Archiver) *VideoWorkflow {
	return &VideoWorkflow{
		Invoker:         inv,
		Archiver:        archiver,
		Price:           10,
		MaxPromptLength: 1000,
		AspectRatios:    []string{"16:9", "9:16", "1:1"},
	}
}

func (w *VideoWorkflow) Kind() domain.JobKind { return domain.KindVideoSynthesis }
func (w *VideoWorkflow) Label() string        { return "Video Generation" }

// Validate requires a non-blank prompt within the length limit.
func (w *VideoWorkflow) Validate(in domain.JobInput) error {
	if strings.TrimSpace(in.Ref) == "" {
		return domain.InvalidField("prompt", "must not be empty")
	}
	if n := utf8.RuneCountInString(in.Ref); w.MaxPromptLength > 0 && n > w.MaxPromptLength {
		return domain.InvalidField("prompt", "is %d characters, limit is %d", n, w.MaxPromptLength)
	}
	if in.AspectRatio != "" && len(w.AspectRatios) > 0 {
		for _, r := range w.AspectRatios {
			if r == in.AspectRatio {
				return nil
			}
		}
		return domain.InvalidField("aspect_ratio", "must be one of %s", strings.Join(w.AspectRatios, ", "))
	}
	return nil
}

// Cost is the fixed per-video price.
func (w *VideoWorkflow) Cost(domain.JobInput) int64 { return w.Price }

// PostProcess archives the remote video. Without an archiver the remote
// URL is kept as is.
func (w *VideoWorkflow) PostProcess(ctx context.Context, job *domain.Job, result string) (string, error) {
	if w.Archiver == nil {
		return result, nil
	}
	return w.Archiver.Archive(ctx, job.OwnerID, job.ID, result)
}

// ─── Validation Helpers ─────────────────────────────────────────────────────

func validateURL(field, raw string, maxLen int) error {
	if strings.TrimSpace(raw) == "" {
		return domain.InvalidField(field, "must not be empty")
	}
	if maxLen > 0 && len(raw) > maxLen {
		return domain.InvalidField(field, "is %d bytes, limit is %d", len(raw), maxLen)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return domain.InvalidField(field, "is not a valid URL")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.InvalidField(field, "must be an absolute http(s) URL")
	}
	return nil
}
