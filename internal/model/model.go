// Package model isolates the external text/vision generation capability
// behind a narrow interface so that the pipeline's structural decisions can be
// exercised in tests without a live provider.
package model

import (
	"context"
	"errors"
	"net"
)

// Image is an inline image attachment for a generation request.
type Image struct {
	// Base64 is the raw base64 payload without any data-URI prefix.
	Base64 string
	// MIMEType defaults to image/jpeg when empty.
	MIMEType string
}

// Request is a single-turn generation exchange.
type Request struct {
	// Instruction is the full prompt text.
	Instruction string
	// Images are optional vision attachments, front card first.
	Images []Image
	// StrictJSON asks the provider to constrain output to a JSON object.
	// When false the reply may still wrap JSON in a fenced block.
	StrictJSON bool
	// MaxTokens caps the reply length; 0 means provider default.
	MaxTokens int
}

// Generator is the generation capability used by all three pipeline stages.
type Generator interface {
	// Generate performs one blocking round trip and returns the raw reply text.
	Generate(ctx context.Context, req Request) (string, error)
}

// TransientError marks an upstream failure as load-related (429/5xx,
// timeouts). The pipeline never retries, so this only informs logging.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient model error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether err looks like a retryable upstream condition.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
