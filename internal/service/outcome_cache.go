package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"studyforge/internal/cache"
	"studyforge/internal/domain"
	"studyforge/internal/logger"

	"go.uber.org/zap"
)

// ErrOutcomeNotFound is returned when no outcome is cached for a request.
var ErrOutcomeNotFound = errors.New("generation outcome not found in cache")

// OutcomeCache stores successful outcomes keyed by request fingerprint.
type OutcomeCache interface {
	Put(ctx context.Context, key string, outcome *domain.GenerationOutcome) error
	Get(ctx context.Context, key string) (*domain.GenerationOutcome, error)
}

// OutcomeKey fingerprints the fields that determine generated content.
func OutcomeKey(req domain.GenerationRequest) string {
	fp := cache.Fingerprint(
		string(req.Kind),
		strconv.Itoa(req.Count),
		string(req.Difficulty),
		string(req.Origin),
		strings.ToLower(strings.TrimSpace(req.Language)),
		strings.TrimSpace(req.SourceText),
	)
	return cache.GenerateCacheKey(cache.ServiceGeneration, cache.ObjectOutcome, fp)
}

type outcomeCache struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewOutcomeCache returns a no-op cache when c is nil.
func NewOutcomeCache(c domain.Cache, ttl time.Duration) OutcomeCache {
	if c == nil {
		logger.Get().Warn("OutcomeCache initialized without a backing cache, caching disabled")
		return noopOutcomeCache{}
	}
	return &outcomeCache{cache: c, ttl: ttl}
}

func (s *outcomeCache) Put(ctx context.Context, key string, outcome *domain.GenerationOutcome) error {
	if outcome == nil {
		return domain.NewInvalidInputError("cannot cache nil outcome")
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return domain.NewInternalError("failed to marshal outcome for caching", err)
	}
	if err := s.cache.Set(ctx, key, string(data), s.ttl); err != nil {
		return domain.NewInternalError(fmt.Sprintf("failed to cache outcome for key %s", key), err)
	}
	logger.Get().Debug("Cached generation outcome", zap.String("key", key), zap.Duration("ttl", s.ttl))
	return nil
}

func (s *outcomeCache) Get(ctx context.Context, key string) (*domain.GenerationOutcome, error) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, ErrOutcomeNotFound
		}
		return nil, domain.NewInternalError(fmt.Sprintf("failed to read outcome for key %s", key), err)
	}
	if data == "" {
		return nil, ErrOutcomeNotFound
	}

	var outcome domain.GenerationOutcome
	if err := json.Unmarshal([]byte(data), &outcome); err != nil {
		return nil, domain.NewInternalError(fmt.Sprintf("failed to unmarshal outcome for key %s", key), err)
	}
	return &outcome, nil
}

type noopOutcomeCache struct{}

func (noopOutcomeCache) Put(context.Context, string, *domain.GenerationOutcome) error { return nil }

func (noopOutcomeCache) Get(context.Context, string) (*domain.GenerationOutcome, error) {
	return nil, ErrOutcomeNotFound
}
