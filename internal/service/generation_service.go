package service

import (
	"context"
	"errors"
	"time"

	"studyforge/internal/cascade"
	"studyforge/internal/domain"
	"studyforge/internal/fallback"
	"studyforge/internal/logger"
	"studyforge/internal/parser"
	"studyforge/internal/preamble"
	"studyforge/internal/prompt"
	"studyforge/internal/util"
	"studyforge/internal/validation"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRequestTimeout = 90 * time.Second
	DefaultTokensPerItem  = 120
	persistTimeout        = 5 * time.Second
)

// RoundRunner runs one cascade round. *cascade.Orchestrator implements it.
type RoundRunner interface {
	Run(ctx context.Context, req cascade.RoundRequest) cascade.RoundResult
	Catalog() *cascade.Catalog
}

// GenerationService turns a generation request into study items.
type GenerationService interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error)
	GetRun(ctx context.Context, id string) (*domain.GenerationRun, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.GenerationRun, error)
	Providers() []domain.ProviderDescriptor
}

// GenerationDeps wires a GenerationService. Runs and Cache are optional.
type GenerationDeps struct {
	Rounds         RoundRunner
	Prompts        *prompt.Builder
	Stripper       *preamble.Stripper
	Items          *validation.ItemValidator
	Requests       *validation.Validator
	Policy         *fallback.Policy
	Runs           domain.GenerationRunRepository
	Cache          OutcomeCache
	RequestTimeout time.Duration
	TokensPerItem  int
	Logger         *zap.Logger
}

type generationService struct {
	rounds         RoundRunner
	prompts        *prompt.Builder
	stripper       *preamble.Stripper
	items          *validation.ItemValidator
	requests       *validation.Validator
	policy         *fallback.Policy
	runs           domain.GenerationRunRepository
	cache          OutcomeCache
	requestTimeout time.Duration
	tokensPerItem  int
	logger         *zap.Logger
	inflight       singleflight.Group
	now            func() time.Time
}

// NewGenerationService fills defaults for every optional dependency.
func NewGenerationService(deps GenerationDeps) (GenerationService, error) {
	if deps.Rounds == nil {
		return nil, errors.New("generation service requires a round runner")
	}
	if deps.Prompts == nil {
		b, err := prompt.NewBuilder(0)
		if err != nil {
			return nil, err
		}
		deps.Prompts = b
	}
	if deps.Stripper == nil {
		deps.Stripper = preamble.New()
	}
	if deps.Items == nil {
		deps.Items = validation.NewItemValidator(nil, deps.Stripper)
	}
	if deps.Requests == nil {
		deps.Requests = validation.NewValidator(validation.CountBounds{Min: 1, Max: 20})
	}
	if deps.Policy == nil {
		deps.Policy = fallback.NewPolicy()
	}
	if deps.Cache == nil {
		deps.Cache = noopOutcomeCache{}
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = DefaultRequestTimeout
	}
	if deps.TokensPerItem <= 0 {
		deps.TokensPerItem = DefaultTokensPerItem
	}
	return &generationService{
		rounds:         deps.Rounds,
		prompts:        deps.Prompts,
		stripper:       deps.Stripper,
		items:          deps.Items,
		requests:       deps.Requests,
		policy:         deps.Policy,
		runs:           deps.Runs,
		cache:          deps.Cache,
		requestTimeout: deps.RequestTimeout,
		tokensPerItem:  deps.TokensPerItem,
		logger:         logger.OrDefault(deps.Logger),
		now:            time.Now,
	}, nil
}

// Generate validates req, serves it from the outcome cache when possible and
// otherwise runs the fallback ladder. Identical concurrent requests share one
// pipeline run that is not tied to any caller's cancellation. A request that ends with nothing accepted returns its
// outcome together with a FAIL_CLOSED or PROVIDER_EXHAUSTED error.
func (s *generationService) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
	req = s.normalize(req)
	if errs := s.requests.ValidateGenerationRequest(req); len(errs) > 0 {
		return nil, domain.NewValidationError(errs)
	}

	key := OutcomeKey(req)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		cached.Cached = true
		s.logger.Info("Generation served from cache",
			zap.String("request_id", cached.RequestID),
			zap.String("status", string(cached.Status)))
		return cached, nil
	} else if !errors.Is(err, ErrOutcomeNotFound) {
		s.logger.Warn("Outcome cache lookup failed", zap.Error(err))
	}

	// The shared run outlives any single caller; each caller stops waiting on
	// its own context and deadline.
	runCtx := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		return s.execute(runCtx, req, key), nil
	})

	waitCtx, cancel := context.WithDeadline(ctx, req.Deadline)
	defer cancel()
	select {
	case res := <-ch:
		outcome := res.Val.(*domain.GenerationOutcome)
		if res.Shared {
			s.logger.Debug("Joined in-flight generation",
				zap.String("request_id", req.ID),
				zap.String("shared_request_id", outcome.RequestID))
		}
		return outcome, terminalError(outcome)
	case <-waitCtx.Done():
		outcome := s.abandoned(req, waitCtx.Err())
		return outcome, terminalError(outcome)
	}
}

// abandoned is the outcome of a caller that stopped waiting before the shared
// run finished. The run itself continues for any other caller.
func (s *generationService) abandoned(req domain.GenerationRequest, err error) *domain.GenerationOutcome {
	reason := cascade.StopDeadline
	if errors.Is(err, context.Canceled) {
		reason = cascade.StopCancelled
	}
	s.logger.Warn("Stopped waiting for generation",
		zap.String("request_id", req.ID),
		zap.String("reason", reason))
	return &domain.GenerationOutcome{
		RequestID:     req.ID,
		Kind:          req.Kind,
		Difficulty:    req.Difficulty,
		Origin:        req.Origin,
		Items:         []domain.StudyItem{},
		Requested:     req.Count,
		Status:        domain.StatusProviderExhausted,
		FailureReason: reason,
		CreatedAt:     s.now().UTC(),
	}
}

func (s *generationService) normalize(req domain.GenerationRequest) domain.GenerationRequest {
	if req.ID == "" {
		req.ID = util.NewULID()
	}
	if req.Origin == "" {
		req.Origin = domain.OriginDocument
	}
	if req.Difficulty == "" {
		req.Difficulty = domain.DifficultyBeginner
	}
	if req.Deadline.IsZero() {
		req.Deadline = s.now().Add(s.requestTimeout)
	}
	return req
}

func (s *generationService) execute(ctx context.Context, req domain.GenerationRequest, key string) *domain.GenerationOutcome {
	ctx, cancel := context.WithDeadline(ctx, req.Deadline)
	defer cancel()

	outcome := s.runPipeline(ctx, req)
	s.persist(ctx, outcome)
	if outcome.Status.Success() {
		if err := s.cache.Put(ctx, key, outcome); err != nil {
			s.logger.Warn("Failed to cache outcome", zap.String("request_id", outcome.RequestID), zap.Error(err))
		}
	}
	return outcome
}

func (s *generationService) runPipeline(ctx context.Context, req domain.GenerationRequest) *domain.GenerationOutcome {
	outcome := &domain.GenerationOutcome{
		RequestID:  req.ID,
		Kind:       req.Kind,
		Difficulty: req.Difficulty,
		Origin:     req.Origin,
		Requested:  req.Count,
		Items:      []domain.StudyItem{},
		CreatedAt:  s.now().UTC(),
	}

	catalog := s.rounds.Catalog()
	progress := fallback.Progress{
		Origin:    req.Origin,
		Requested: req.Count,
		Tried:     make(map[string]bool),
	}
	for _, p := range catalog.Local() {
		progress.LocalProviders = append(progress.LocalProviders, p.ID())
	}

	accepted := validation.NewAcceptedSet()
	var kept []domain.CandidateItem
	sequence := 0

	for round := 1; ctx.Err() == nil; round++ {
		strategy, plan, ok := s.policy.Next(progress)
		if !ok {
			break
		}
		text, err := s.prompts.Build(req, plan.Style)
		if err != nil {
			s.logger.Error("Failed to build prompt", zap.String("request_id", req.ID), zap.Error(err))
			progress.LastStop = err.Error()
			break
		}

		res := s.rounds.Run(ctx, cascade.RoundRequest{
			Round:           round,
			Prompt:          text,
			MaxOutputTokens: s.tokensPerItem * req.Count,
			ProviderIDs:     plan.ProviderIDs,
			SequenceStart:   sequence,
		})
		sequence += len(res.Attempts)
		outcome.Attempts = append(outcome.Attempts, res.Attempts...)
		progress.RoundsRun++
		progress.Ran = append(progress.Ran, strategy.Name)
		for id := range res.Tried() {
			progress.Tried[id] = true
		}

		if res.Status != cascade.RoundSucceeded {
			progress.LastStop = res.StopReason
			continue
		}

		progress.RawProduced = true
		candidates := parser.Parse(s.stripper.Strip(res.RawText), req.Kind)
		verdicts, roundKept := s.items.ValidateAll(candidates, accepted, round)
		progress.Candidates += len(candidates)
		outcome.Verdicts = append(outcome.Verdicts, verdicts...)
		kept = append(kept, roundKept...)
		progress.Accepted = len(kept)

		s.logger.Debug("Generation round validated",
			zap.String("request_id", req.ID),
			zap.String("strategy", strategy.Name),
			zap.String("provider", res.ProviderID),
			zap.Int("candidates", len(candidates)),
			zap.Int("accepted", len(roundKept)))
	}
	if ctx.Err() != nil && progress.LastStop == "" {
		progress.LastStop = cascade.StopDeadline
		if errors.Is(ctx.Err(), context.Canceled) {
			progress.LastStop = cascade.StopCancelled
		}
	}

	outcome.Status, outcome.FailureReason = fallback.Settle(progress)
	outcome.Rounds = progress.RoundsRun
	if len(kept) > req.Count {
		kept = kept[:req.Count]
	}
	for _, c := range kept {
		outcome.Items = append(outcome.Items, domain.NewStudyItem(c, req.Difficulty))
	}
	outcome.Delivered = len(outcome.Items)

	fields := []zap.Field{
		zap.String("request_id", req.ID),
		zap.String("status", string(outcome.Status)),
		zap.Int("requested", outcome.Requested),
		zap.Int("delivered", outcome.Delivered),
		zap.Int("rounds", outcome.Rounds),
		zap.Int("attempts", len(outcome.Attempts)),
	}
	if outcome.Status.Success() {
		s.logger.Info("Generation finished", fields...)
	} else {
		s.logger.Warn("Generation failed", append(fields, zap.String("reason", outcome.FailureReason))...)
	}
	return outcome
}

// persist records the run without letting a storage failure affect the
// response.
func (s *generationService) persist(ctx context.Context, outcome *domain.GenerationOutcome) {
	if s.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.runs.SaveRun(ctx, domain.NewGenerationRun(outcome)); err != nil {
		s.logger.Error("Failed to persist generation run", zap.String("request_id", outcome.RequestID), zap.Error(err))
	}
}

func terminalError(o *domain.GenerationOutcome) error {
	switch o.Status {
	case domain.StatusEmptyFailClosed:
		return domain.NewFailClosedError(o.FailureReason).WithContext("request_id", o.RequestID)
	case domain.StatusProviderExhausted:
		return domain.NewProviderExhaustedError(o.FailureReason).WithContext("request_id", o.RequestID)
	}
	return nil
}

func (s *generationService) GetRun(ctx context.Context, id string) (*domain.GenerationRun, error) {
	if s.runs == nil {
		return nil, domain.NewNotFoundError("run history is disabled")
	}
	if errs := s.requests.ValidateRunID(id); len(errs) > 0 {
		return nil, domain.NewValidationError(errs)
	}
	run, err := s.runs.GetRunByID(ctx, id)
	if err != nil {
		return nil, domain.NewInternalError("failed to load generation run", err)
	}
	if run == nil {
		return nil, domain.NewNotFoundError("generation run not found").WithContext("id", id)
	}
	return run, nil
}

func (s *generationService) ListRuns(ctx context.Context, limit int) ([]*domain.GenerationRun, error) {
	if s.runs == nil {
		return nil, domain.NewNotFoundError("run history is disabled")
	}
	runs, err := s.runs.ListRecentRuns(ctx, limit)
	if err != nil {
		return nil, domain.NewInternalError("failed to list generation runs", err)
	}
	return runs, nil
}

func (s *generationService) Providers() []domain.ProviderDescriptor {
	return s.rounds.Catalog().Descriptors()
}
