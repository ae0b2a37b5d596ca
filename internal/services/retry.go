// Package services provides the LLM backend clients. Both clients speak
// plain HTTP and share the retry policy: transient failures back off
// exponentially, permanent request errors abort at once.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/storyweave/gamemaster/pkg/llm"
)

const (
	maxAttempts      = 3
	defaultRetryBase = time.Second
)

// apiError carries the HTTP status of a failed backend call so the
// retry loop can tell rate limits and outages from bad requests.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.status, e.body)
}

func (e *apiError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// generateWithRetries runs one backend call with up to maxAttempts
// tries. Network errors and retryable statuses back off starting at
// base and doubling per attempt; anything else fails immediately. The
// final failure is wrapped in llm.GenerationError.
func generateWithRetries(ctx context.Context, logger *slog.Logger, base time.Duration, call func(context.Context) (string, error)) (string, error) {
	if base <= 0 {
		base = defaultRetryBase
	}

	var lastErr error
	delay := base
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := call(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *apiError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return "", &llm.GenerationError{Attempts: attempt, Err: err}
		}
		if attempt == maxAttempts {
			break
		}

		logger.Warn("generation attempt failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return "", &llm.GenerationError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", &llm.GenerationError{Attempts: maxAttempts, Err: lastErr}
}
