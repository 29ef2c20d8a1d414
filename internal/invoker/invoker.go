// Package invoker delivers model requests upstream with a bounded retry loop.
//
// Attempts run strictly one after another. Empty text, transport failures and
// per-attempt timeouts are retried after a fixed delay; upstream API errors and
// unrecognised envelopes are returned at once.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"formula-gateway/internal/config"
	"formula-gateway/internal/models"
	"formula-gateway/internal/provider"
)

// ErrNoAnswer is returned once every attempt produced no usable text.
var ErrNoAnswer = errors.New("no answer from model")

// ErrEmptyResponse marks an attempt that returned only whitespace.
var ErrEmptyResponse = errors.New("empty model response")

// Policy bounds the retry loop.
type Policy struct {
	Attempts     int
	Timeout      time.Duration
	FinalTimeout time.Duration
	Delay        time.Duration
}

// PolicyFrom converts endpoint configuration into a retry policy.
func PolicyFrom(cfg config.EndpointConfig) Policy {
	return Policy{
		Attempts:     cfg.Attempts,
		Timeout:      cfg.Timeout,
		FinalTimeout: cfg.FinalTimeout,
		Delay:        cfg.RetryDelay,
	}
}

// TimeoutFor returns the budget for the zero-based attempt.
func (p Policy) TimeoutFor(attempt int) time.Duration {
	if attempt == p.Attempts-1 && p.FinalTimeout > 0 {
		return p.FinalTimeout
	}
	return p.Timeout
}

// Budget is the longest an Invoke call can take with this policy.
func (p Policy) Budget() time.Duration {
	attempts := max(p.Attempts, 1)
	var total time.Duration
	for i := 0; i < attempts; i++ {
		total += p.TimeoutFor(i)
	}
	return total + time.Duration(attempts-1)*p.Delay
}

// Invoker wraps a provider with the retry policy.
type Invoker struct {
	provider provider.Provider
	policy   Policy
	sleep    func(time.Duration)
}

// New constructs an invoker. Attempts below one are raised to one.
func New(p provider.Provider, policy Policy) *Invoker {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Invoker{
		provider: p,
		policy:   policy,
		sleep:    time.Sleep,
	}
}

// Invoke returns the first non-empty trimmed answer. The caller's context
// supplies values only; its cancellation does not abort an attempt in flight.
func (inv *Invoker) Invoke(ctx context.Context, apiKey string, req models.ModelRequest) (string, error) {
	base := context.WithoutCancel(ctx)
	var lastErr error

	for attempt := 0; attempt < inv.policy.Attempts; attempt++ {
		if attempt > 0 && inv.policy.Delay > 0 {
			inv.sleep(inv.policy.Delay)
		}

		text, err := inv.attempt(base, attempt, apiKey, req)
		if err == nil {
			return text, nil
		}
		if provider.IsTerminal(err) || errors.Is(err, provider.ErrNoCredential) {
			return "", err
		}

		lastErr = err
		slog.Warn("model attempt failed",
			"provider", inv.provider.Name(),
			"attempt", attempt+1,
			"max_attempts", inv.policy.Attempts,
			"err", err,
		)
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrNoAnswer, inv.policy.Attempts, lastErr)
}

func (inv *Invoker) attempt(base context.Context, attempt int, apiKey string, req models.ModelRequest) (string, error) {
	ctx, cancel := context.WithTimeout(base, inv.policy.TimeoutFor(attempt))
	defer cancel()

	text, err := inv.provider.Complete(ctx, apiKey, req)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
