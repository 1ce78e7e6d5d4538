package provider

import (
	"context"
	"fmt"
	"time"

	"studyforge/internal/cascade"
	"studyforge/internal/config"
	"studyforge/internal/domain"
	"studyforge/internal/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
)

type factory func(ctx context.Context, cfg config.ProviderConfig) (domain.TextGenerator, error)

var factories = map[string]factory{
	config.ProviderGemini: func(ctx context.Context, cfg config.ProviderConfig) (domain.TextGenerator, error) {
		return NewGemini(ctx, cfg)
	},
	config.ProviderOpenAI: func(_ context.Context, cfg config.ProviderConfig) (domain.TextGenerator, error) {
		return NewOpenAI(cfg)
	},
	config.ProviderAnthropic: func(_ context.Context, cfg config.ProviderConfig) (domain.TextGenerator, error) {
		return NewAnthropic(cfg)
	},
	config.ProviderOpenRouter: func(_ context.Context, cfg config.ProviderConfig) (domain.TextGenerator, error) {
		return NewOpenRouter(cfg)
	},
	config.ProviderOllama: func(_ context.Context, cfg config.ProviderConfig) (domain.TextGenerator, error) {
		return NewOllama(cfg)
	},
	config.ProviderLorem: func(_ context.Context, cfg config.ProviderConfig) (domain.TextGenerator, error) {
		return NewLorem(cfg.ID, 0), nil
	},
}

// Descriptor turns a provider config into its cascade descriptor, filling
// defaults for unset timeout and retry budget.
func Descriptor(cfg config.ProviderConfig) domain.ProviderDescriptor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = defaultMaxRetries
	}
	return domain.ProviderDescriptor{
		ID:              cfg.ID,
		Priority:        cfg.Priority,
		Local:           cfg.IsLocal(),
		Timeout:         timeout,
		MaxRetries:      retries,
		MaxOutputTokens: cfg.MaxOutputTokens,
		ConcurrencySafe: !cfg.Serialize && cfg.Type != config.ProviderLorem,
	}
}

// Build constructs catalog entries in config order. Remote providers without
// an API key are skipped with a warning.
func Build(ctx context.Context, cfgs []config.ProviderConfig, log *zap.Logger) ([]cascade.Provider, error) {
	log = logger.OrDefault(log)
	out := make([]cascade.Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		build, ok := factories[cfg.Type]
		if !ok {
			return nil, fmt.Errorf("provider %s: unknown type %q", cfg.ID, cfg.Type)
		}
		if needsKey(cfg) && cfg.APIKey == "" {
			log.Warn("Skipping provider without API key",
				zap.String("provider", cfg.ID),
				zap.String("type", cfg.Type))
			continue
		}
		gen, err := build(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", cfg.ID, err)
		}
		desc := Descriptor(cfg)
		out = append(out, cascade.Provider{Descriptor: desc, Generator: gen})
		log.Info("Provider registered",
			zap.String("provider", desc.ID),
			zap.String("type", cfg.Type),
			zap.String("model", cfg.Model),
			zap.Bool("local", desc.Local),
			zap.Int("priority", desc.Priority))
	}
	return out, nil
}

func needsKey(cfg config.ProviderConfig) bool {
	switch cfg.Type {
	case config.ProviderGemini, config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderOpenRouter:
		return true
	}
	return false
}
