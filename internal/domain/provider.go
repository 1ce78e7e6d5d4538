package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// TextGenerator is the abstract generation call every provider adapter
// implements. It does not know whether it is backed by a network call or an
// in-process model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}

// ClassifyFunc maps a provider error onto an attempt outcome.
type ClassifyFunc func(err error) AttemptOutcome

// ProviderDescriptor is configured once at process start and read-only
// afterwards.
type ProviderDescriptor struct {
	ID       string
	Priority int
	// Local providers run last in the cascade and never report rate limiting.
	Local           bool
	Timeout         time.Duration
	MaxRetries      int
	MaxOutputTokens int
	// ConcurrencySafe is false for in-process models that must be serialized.
	ConcurrencySafe bool
	Classify        ClassifyFunc
}

// SupportsRateLimitSignal reports whether rate limiting is a meaningful
// outcome for this provider.
func (d ProviderDescriptor) SupportsRateLimitSignal() bool {
	return !d.Local
}

// ClassifyFailure applies the provider's classification rules to err and
// enforces the local-provider restriction to success, fatal and timeout.
func (d ProviderDescriptor) ClassifyFailure(err error) AttemptOutcome {
	classify := d.Classify
	if classify == nil {
		classify = ClassifyError
	}
	outcome := classify(err)
	if d.Local && (outcome == OutcomeRateLimited || outcome == OutcomeTransientError) {
		return OutcomeFatalError
	}
	return outcome
}

// ProviderError carries the provider-declared failure signal.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError from a status code and cause.
func NewProviderError(provider string, statusCode int, err error) *ProviderError {
	msg := http.StatusText(statusCode)
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{Provider: provider, StatusCode: statusCode, Message: msg, Err: err}
}

// ClassifyError is the default classification:
// 429 is rate limited, malformed-request and auth statuses are fatal, and
// network failures, server errors and anything unrecognized are transient.
func ClassifyError(err error) AttemptOutcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, ErrFatalProvider):
		return OutcomeFatalError
	case errors.Is(err, ErrTransientProvider):
		return OutcomeTransientError
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode > 0 {
		return classifyStatus(pe.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return OutcomeTimeout
		}
		return OutcomeTransientError
	}
	return OutcomeTransientError
}

func classifyStatus(status int) AttemptOutcome {
	switch {
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusConflict, status >= 500:
		return OutcomeTransientError
	case status >= 400:
		return OutcomeFatalError
	default:
		return OutcomeTransientError
	}
}

// AttemptOutcome classifies a single provider call.
type AttemptOutcome string

const (
	OutcomeSuccess        AttemptOutcome = "success"
	OutcomeRateLimited    AttemptOutcome = "rate_limited"
	OutcomeTransientError AttemptOutcome = "transient_error"
	OutcomeFatalError     AttemptOutcome = "fatal_error"
	OutcomeTimeout        AttemptOutcome = "timeout"
)

// Retryable reports whether the same provider may be tried again.
func (o AttemptOutcome) Retryable() bool {
	return o == OutcomeRateLimited || o == OutcomeTransientError || o == OutcomeTimeout
}

// AttemptRecord is appended once per provider call and never mutated.
type AttemptRecord struct {
	Sequence   int            `json:"sequence"`
	Round      int            `json:"round"`
	ProviderID string         `json:"provider_id"`
	Attempt    int            `json:"attempt"`
	Outcome    AttemptOutcome `json:"outcome"`
	RawOutput  string         `json:"-"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	Elapsed    time.Duration  `json:"elapsed"`
}
