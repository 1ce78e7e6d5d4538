package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studyforge/internal/domain"

	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when a provider answers with blank text.
var ErrEmptyResponse = fmt.Errorf("%w: empty response", domain.ErrTransientProvider)

// Call is the payload of a single attempt.
type Call struct {
	Prompt          string
	MaxOutputTokens int
	Round           int
	Attempt         int
	Sequence        int
}

// Executor performs exactly one bounded generation call and classifies it.
type Executor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewExecutor creates an attempt executor.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger, now: time.Now}
}

type generateResult struct {
	text string
	err  error
}

// Execute calls p once, bounded by the provider timeout, and returns the
// attempt record. A call whose transport ignores cancellation is left to finish
// in the background; the record is produced as soon as the attempt times out.
func (e *Executor) Execute(ctx context.Context, p *Provider, call Call) domain.AttemptRecord {
	start := e.now()
	rec := domain.AttemptRecord{
		Sequence:   call.Sequence,
		Round:      call.Round,
		ProviderID: p.Descriptor.ID,
		Attempt:    call.Attempt,
		StartedAt:  start,
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.Descriptor.Timeout)
	defer cancel()

	if p.slot != nil {
		if err := p.slot.Acquire(attemptCtx, 1); err != nil {
			return e.finish(rec, start, contextOutcome(attemptCtx), "", err)
		}
	}

	done := make(chan generateResult, 1)
	go func() {
		if p.slot != nil {
			defer p.slot.Release(1)
		}
		text, err := p.Generator.Generate(attemptCtx, call.Prompt, outputBudget(call.MaxOutputTokens, p.Descriptor.MaxOutputTokens))
		done <- generateResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		switch {
		case res.err == nil && strings.TrimSpace(res.text) == "":
			return e.finish(rec, start, p.Descriptor.ClassifyFailure(ErrEmptyResponse), "", ErrEmptyResponse)
		case res.err == nil:
			return e.finish(rec, start, domain.OutcomeSuccess, res.text, nil)
		case attemptCtx.Err() != nil:
			return e.finish(rec, start, contextOutcome(attemptCtx), "", res.err)
		default:
			return e.finish(rec, start, p.Descriptor.ClassifyFailure(res.err), "", res.err)
		}
	case <-attemptCtx.Done():
		return e.finish(rec, start, contextOutcome(attemptCtx), "", attemptCtx.Err())
	}
}

func (e *Executor) finish(rec domain.AttemptRecord, start time.Time, outcome domain.AttemptOutcome, text string, err error) domain.AttemptRecord {
	rec.Outcome = outcome
	rec.RawOutput = text
	rec.Elapsed = e.now().Sub(start)
	if err != nil {
		rec.Error = err.Error()
	}

	fields := []zap.Field{
		zap.String("provider", rec.ProviderID),
		zap.Int("round", rec.Round),
		zap.Int("attempt", rec.Attempt),
		zap.String("outcome", string(rec.Outcome)),
		zap.Duration("elapsed", rec.Elapsed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	e.logger.Debug("Provider attempt finished", fields...)
	return rec
}

// contextOutcome classifies an attempt that ended because its context did.
func contextOutcome(attemptCtx context.Context) domain.AttemptOutcome {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return domain.OutcomeTimeout
	}
	return domain.OutcomeTransientError
}

func outputBudget(requested, providerMax int) int {
	switch {
	case requested <= 0:
		return providerMax
	case providerMax <= 0:
		return requested
	case requested < providerMax:
		return requested
	default:
		return providerMax
	}
}
