// Package inference implements domain.Invoker over the two hosted inference
// APIs: speech transcription and text-to-video synthesis. Both follow the
// same submit-then-poll shape; each call is a single JSON HTTP request.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds one HTTP round trip.
const DefaultRequestTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is echoed into messages.
const maxErrorBody = 512

// APIError is a non-2xx response from an inference API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Body)
}

// client is the shared JSON transport.
type client struct {
	baseURL    string
	authHeader string
	authValue  string
	http       *http.Client
}

func newClient(baseURL, authHeader, authValue string, hc *http.Client) client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: authHeader,
		authValue:  authValue,
		http:       hc,
	}
}

// doJSON sends body (if non-nil) as JSON and decodes a 2xx response into out.
func (c client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authValue != "" {
		req.Header.Set(c.authHeader, c.authValue)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
