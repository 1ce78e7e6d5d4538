package cascade

import (
	"context"
	"time"

	"studyforge/internal/domain"

	"go.uber.org/zap"
)

const (
	DefaultBackoff          = 5 * time.Second
	DefaultMinAttemptWindow = 500 * time.Millisecond
)

// RoundStatus is the terminal state of one cascade round.
type RoundStatus string

const (
	RoundSucceeded RoundStatus = "succeeded"
	RoundExhausted RoundStatus = "exhausted"
)

// Stop reasons reported on exhausted rounds.
const (
	StopAllFailed   = "all providers failed"
	StopCancelled   = "request cancelled"
	StopDeadline    = "request deadline reached"
	StopNoProviders = "no providers available"
)

// RoundRequest describes one pass over the catalog.
type RoundRequest struct {
	Round           int
	Prompt          string
	MaxOutputTokens int
	// ProviderIDs restricts the round to these providers. Empty means all.
	ProviderIDs []string
	// SequenceStart numbers the first attempt of the round.
	SequenceStart int
}

// RoundResult is what a round hands back to the caller.
type RoundResult struct {
	Status     RoundStatus
	RawText    string
	ProviderID string
	Attempts   []domain.AttemptRecord
	StopReason string
}

// Tried reports every provider id that received at least one attempt.
func (r RoundResult) Tried() map[string]bool {
	tried := make(map[string]bool, len(r.Attempts))
	for _, a := range r.Attempts {
		tried[a.ProviderID] = true
	}
	return tried
}

// Options tunes an Orchestrator.
type Options struct {
	Backoff          time.Duration
	MinAttemptWindow time.Duration
	Logger           *zap.Logger
}

// Orchestrator runs the provider cascade.
type Orchestrator struct {
	catalog          *Catalog
	executor         *Executor
	backoff          time.Duration
	minAttemptWindow time.Duration
	logger           *zap.Logger
	sleep            func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator over catalog.
func NewOrchestrator(catalog *Catalog, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backoff := opts.Backoff
	if backoff < 0 {
		backoff = 0
	}
	window := opts.MinAttemptWindow
	if window <= 0 {
		window = DefaultMinAttemptWindow
	}
	return &Orchestrator{
		catalog:          catalog,
		executor:         NewExecutor(logger),
		backoff:          backoff,
		minAttemptWindow: window,
		logger:           logger,
		sleep:            sleepContext,
	}
}

// Catalog returns the provider catalog the orchestrator walks.
func (o *Orchestrator) Catalog() *Catalog {
	return o.catalog
}

// Run walks the providers in cascade order. Each provider is tried at most
// MaxRetries times; a fatal outcome moves on at once, a retryable one waits the
// fixed backoff first, unless the backoff would overrun the deadline, in which
// case the next provider is tried at once. The round ends at the first success, when every
// provider is exhausted, or when the context no longer leaves room for another
// attempt.
func (o *Orchestrator) Run(ctx context.Context, req RoundRequest) RoundResult {
	providers := o.catalog.subset(req.ProviderIDs)
	result := RoundResult{Status: RoundExhausted}
	if len(providers) == 0 {
		result.StopReason = StopNoProviders
		return result
	}

	seq := req.SequenceStart
	idx, attempt := 0, 0
	for idx < len(providers) {
		if reason, ok := o.canAttempt(ctx, 0); !ok {
			result.StopReason = reason
			o.logRound(req, result)
			return result
		}

		p := providers[idx]
		attempt++
		seq++
		rec := o.executor.Execute(ctx, p, Call{
			Prompt:          req.Prompt,
			MaxOutputTokens: req.MaxOutputTokens,
			Round:           req.Round,
			Attempt:         attempt,
			Sequence:        seq,
		})
		result.Attempts = append(result.Attempts, rec)

		switch {
		case rec.Outcome == domain.OutcomeSuccess:
			result.Status = RoundSucceeded
			result.RawText = rec.RawOutput
			result.ProviderID = p.Descriptor.ID
			o.logRound(req, result)
			return result
		case rec.Outcome.Retryable() && attempt < p.Descriptor.MaxRetries:
			if reason, ok := o.canAttempt(ctx, o.backoff); !ok {
				// No room to back off here, but the next provider starts
				// without waiting.
				if ctx.Err() == nil && idx+1 < len(providers) {
					o.logger.Debug("Skipping backoff past deadline",
						zap.String("provider", p.Descriptor.ID),
						zap.Int("round", req.Round))
					idx++
					attempt = 0
					continue
				}
				result.StopReason = reason
				o.logRound(req, result)
				return result
			}
			if err := o.sleep(ctx, o.backoff); err != nil {
				result.StopReason = StopCancelled
				o.logRound(req, result)
				return result
			}
		default:
			idx++
			attempt = 0
		}
	}

	result.StopReason = StopAllFailed
	o.logRound(req, result)
	return result
}

// canAttempt reports whether an attempt may start after waiting for wait.
func (o *Orchestrator) canAttempt(ctx context.Context, wait time.Duration) (string, bool) {
	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return StopDeadline, false
		}
		return StopCancelled, false
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline)-wait < o.minAttemptWindow {
		return StopDeadline, false
	}
	return "", true
}

func (o *Orchestrator) logRound(req RoundRequest, res RoundResult) {
	fields := []zap.Field{
		zap.Int("round", req.Round),
		zap.String("status", string(res.Status)),
		zap.Int("attempts", len(res.Attempts)),
	}
	if res.Status == RoundSucceeded {
		o.logger.Info("Cascade round succeeded", append(fields, zap.String("provider", res.ProviderID))...)
		return
	}
	o.logger.Warn("Cascade round exhausted", append(fields, zap.String("reason", res.StopReason))...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
