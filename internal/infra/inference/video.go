package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// VideoSynth submits prompts to a hosted text-to-video prediction API.
//
//	POST /v1/predictions      {"model", "input": {"prompt", "aspect_ratio"}} → {"id", "status"}
//	GET  /v1/predictions/{id} → {"id", "status", "output", "error"}
//
// Status is one of starting, processing, succeeded, failed, canceled.
// Output is either a URL string or a list of URLs.
type VideoSynth struct {
	c     client
	model string
}

// NewVideoSynth creates a video synthesis invoker for model.
func NewVideoSynth(baseURL, apiKey, model string, hc *http.Client) *VideoSynth {
	auth := ""
	if apiKey != "" {
		auth = "Bearer " + apiKey
	}
	return &VideoSynth{c: newClient(baseURL, "Authorization", auth, hc), model: model}
}

type predictionInput struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type predictionRequest struct {
	Model string          `json:"model,omitempty"`
	Input predictionInput `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// Submit creates a prediction and returns its id.
func (v *VideoSynth) Submit(ctx context.Context, in domain.JobInput) (string, error) {
	var resp predictionResponse
	err := v.c.doJSON(ctx, http.MethodPost, "/v1/predictions", predictionRequest{
		Model: v.model,
		Input: predictionInput{Prompt: in.Ref, AspectRatio: in.AspectRatio},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("prediction response missing id")
	}
	return resp.ID, nil
}

// Poll reports the prediction's current state.
func (v *VideoSynth) Poll(ctx context.Context, handle string) (domain.TaskState, error) {
	var resp predictionResponse
	if err := v.c.doJSON(ctx, http.MethodGet, "/v1/predictions/"+url.PathEscape(handle), nil, &resp); err != nil {
		return domain.TaskState{}, err
	}

	switch resp.Status {
	case "succeeded":
		return domain.TaskState{Status: domain.TaskSucceeded, Result: firstOutput(resp.Output)}, nil
	case "failed", "canceled":
		msg := rawString(resp.Error)
		if msg == "" {
			msg = "video generation " + resp.Status
		}
		return domain.TaskState{Status: domain.TaskFailed, Error: msg}, nil
	default:
		return domain.TaskState{Status: domain.TaskInProgress}, nil
	}
}

// firstOutput extracts a URL from a string or list-of-strings output.
func firstOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		for _, u := range list {
			if u != "" {
				return u
			}
		}
	}
	return ""
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
