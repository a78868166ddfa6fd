package inference

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// Transcriber submits audio URLs to a hosted speech-to-text API.
//
//	POST /v2/transcript      {"audio_url", "language_code"} → {"id", "status"}
//	GET  /v2/transcript/{id} → {"id", "status", "text", "error"}
//
// Status is one of queued, processing, completed, error.
type Transcriber struct {
	c client
}

// NewTranscriber creates a transcription invoker. A nil hc uses a client
// with DefaultRequestTimeout.
func NewTranscriber(baseURL, apiKey string, hc *http.Client) *Transcriber {
	return &Transcriber{c: newClient(baseURL, "Authorization", apiKey, hc)}
}

type transcriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Submit starts a transcript and returns its id.
func (t *Transcriber) Submit(ctx context.Context, in domain.JobInput) (string, error) {
	var resp transcriptResponse
	err := t.c.doJSON(ctx, http.MethodPost, "/v2/transcript", transcriptRequest{
		AudioURL:     in.Ref,
		LanguageCode: in.Language,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("transcription response missing id")
	}
	return resp.ID, nil
}

// Poll reports the transcript's current state.
func (t *Transcriber) Poll(ctx context.Context, handle string) (domain.TaskState, error) {
	var resp transcriptResponse
	if err := t.c.doJSON(ctx, http.MethodGet, "/v2/transcript/"+url.PathEscape(handle), nil, &resp); err != nil {
		return domain.TaskState{}, err
	}

	switch resp.Status {
	case "completed":
		return domain.TaskState{Status: domain.TaskSucceeded, Result: resp.Text}, nil
	case "error":
		msg := resp.Error
		if msg == "" {
			msg = "transcription failed"
		}
		return domain.TaskState{Status: domain.TaskFailed, Error: msg}, nil
	default:
		return domain.TaskState{Status: domain.TaskInProgress}, nil
	}
}
