package service

import (
	"context"
	"time"

	"studyforge/internal/cascade"
	"studyforge/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockRoundRunner ---
type MockRoundRunner struct {
	mock.Mock
	catalog *cascade.Catalog
}

func (m *MockRoundRunner) Run(ctx context.Context, req cascade.RoundRequest) cascade.RoundResult {
	args := m.Called(ctx, req)
	return args.Get(0).(cascade.RoundResult)
}

func (m *MockRoundRunner) Catalog() *cascade.Catalog {
	return m.catalog
}

// --- MockGenerationRunRepository ---
type MockGenerationRunRepository struct {
	mock.Mock
}

func (m *MockGenerationRunRepository) SaveRun(ctx context.Context, run *domain.GenerationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockGenerationRunRepository) GetRunByID(ctx context.Context, id string) (*domain.GenerationRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationRun), args.Error(1)
}

func (m *MockGenerationRunRepository) ListRecentRuns(ctx context.Context, limit int) ([]*domain.GenerationRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GenerationRun), args.Error(1)
}

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
