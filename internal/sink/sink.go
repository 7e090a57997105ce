// Package sink submits finalized records and their source images to the
// external persistence endpoint. The endpoint is opaque: one POST, one
// success/failure verdict. A record that was not durably saved is worthless,
// so every failure here is fatal for the request.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shpitdev/bizcard-pipeline/internal/card"
	"github.com/shpitdev/bizcard-pipeline/internal/redact"
)

// SubmissionError reports a sink rejection or an unreachable sink. It is kept
// distinct from processing errors so the HTTP layer can surface it as a
// bad-gateway condition.
type SubmissionError struct {
	// Message is a sanitized description safe to return to the caller.
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e == nil {
		return "submission failed"
	}
	if e.Message != "" {
		return "submission failed: " + e.Message
	}
	return "submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Submission carries everything the sink persists for one card.
type Submission struct {
	Action string             `json:"action"`
	Photo1 string             `json:"photo1Base64"`
	Photo2 string             `json:"photo2Base64"`
	Record card.ContactRecord `json:"extractedData"`
}

// Submitter persists one finalized record together with its source images.
type Submitter interface {
	Submit(ctx context.Context, front, back string, rec card.ContactRecord) error
}

type Config struct {
	// URL is the full sink endpoint URL.
	URL string

	Timeout time.Duration
}

// Client posts submissions to an Apps-Script-style web endpoint.
type Client struct {
	endpoint *url.URL
	http     *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, fmt.Errorf("sink URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse sink URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("sink URL must include a host (got %q)", raw)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: u,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type saveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Submit posts the record and both images, with the back image as an empty
// string when absent.
func (c *Client) Submit(ctx context.Context, front, back string, rec card.ContactRecord) error {
	payload := Submission{
		Action: "save",
		Photo1: front,
		Photo2: back,
		Record: rec,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return &SubmissionError{Message: "encode payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(b))
	if err != nil {
		return &SubmissionError{Message: "build request", Err: err}
	}
	// Apps Script web apps reject preflighted JSON posts, so the payload
	// travels as text/plain.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return &SubmissionError{Message: "sink unreachable: " + redact.Secrets(err.Error()), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SubmissionError{Message: "read sink response", Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return &SubmissionError{Message: fmt.Sprintf("sink status %d", resp.StatusCode)}
	}

	var out saveResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return &SubmissionError{Message: "parse sink response", Err: err}
	}
	if !out.Success {
		msg := strings.TrimSpace(out.Message)
		if msg == "" {
			msg = "sink reported failure"
		}
		return &SubmissionError{Message: redact.Secrets(msg)}
	}
	return nil
}
