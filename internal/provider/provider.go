package provider

import (
	"context"
	"errors"
	"fmt"

	"formula-gateway/internal/models"
)

// ErrUnexpectedStructure indicates the upstream envelope matched no known shape.
var ErrUnexpectedStructure = errors.New("unexpected response structure")

// ErrNoCredential indicates the upstream API key is not configured.
var ErrNoCredential = errors.New("API key not configured")

// Provider delivers a model request upstream and returns the decoded text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, apiKey string, req models.ModelRequest) (string, error)
}

// APIError is a non-2xx answer from the upstream provider. It is never retried.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error status %d: %s", e.StatusCode, e.Body)
}

// EnvelopeError reports an upstream response whose top-level shape is unknown.
type EnvelopeError struct {
	Dump string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnexpectedStructure, e.Dump)
}

func (e *EnvelopeError) Unwrap() error {
	return ErrUnexpectedStructure
}

// IsTerminal reports whether err must be surfaced without retrying.
func IsTerminal(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var envErr *EnvelopeError
	return errors.As(err, &envErr)
}
