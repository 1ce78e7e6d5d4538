// Package bootstrap assembles the generation pipeline from configuration. It
// is shared by the API server and the command-line tool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	schema "studyforge/database"
	"studyforge/internal/adapter"
	"studyforge/internal/adapter/provider"
	"studyforge/internal/cache"
	"studyforge/internal/cascade"
	"studyforge/internal/config"
	"studyforge/internal/database"
	"studyforge/internal/domain"
	"studyforge/internal/logger"
	"studyforge/internal/preamble"
	"studyforge/internal/prompt"
	"studyforge/internal/repository"
	"studyforge/internal/service"
	"studyforge/internal/validation"

	"go.uber.org/zap"
)

// Options selects the optional infrastructure to connect.
type Options struct {
	// Cache connects Redis when an address is configured.
	Cache bool
	// Persistence opens the sqlite run store when a path is configured.
	Persistence bool
}

// Components is the assembled pipeline plus the infrastructure behind it.
type Components struct {
	Service  service.GenerationService
	Catalog  *cascade.Catalog
	Requests *validation.Validator
	// Cache is nil when no cache is connected.
	Cache domain.Cache

	closers []func() error
}

// Close releases every connection opened by Build.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires the generation service. Cache and persistence failures are
// logged and the service runs without them; a bad provider or preamble
// configuration is an error.
func Build(ctx context.Context, cfg *config.Config, opts Options, log *zap.Logger) (*Components, error) {
	log = logger.OrDefault(log)
	comps := &Components{Requests: validation.NewValidator(cfg.CountBounds())}

	stripper := preamble.New()
	if path := cfg.Preamble.ExtraRulesFile; path != "" {
		rules, err := preamble.LoadRules(path)
		if err != nil {
			return nil, fmt.Errorf("load preamble rules: %w", err)
		}
		stripper = stripper.WithRules(rules...)
		log.Info("Loaded extra preamble rules", zap.String("file", path), zap.Int("count", len(rules)))
	}

	prompts, err := prompt.NewBuilder(cfg.Generation.MaxSourceChars)
	if err != nil {
		return nil, fmt.Errorf("build prompt templates: %w", err)
	}

	providers, err := provider.Build(ctx, cfg.Providers, log)
	if err != nil {
		return nil, err
	}
	catalog, err := cascade.NewCatalog(providers...)
	if err != nil {
		return nil, fmt.Errorf("build provider catalog: %w", err)
	}
	if catalog.Len() == 0 {
		log.Warn("Provider catalog is empty, every request will be provider exhausted")
	}
	comps.Catalog = catalog

	orchestrator := cascade.NewOrchestrator(catalog, cascade.Options{
		Backoff:          cfg.Generation.Backoff,
		MinAttemptWindow: cfg.Generation.MinAttemptWindow,
		Logger:           log.Named("cascade"),
	})

	deps := service.GenerationDeps{
		Rounds:         orchestrator,
		Prompts:        prompts,
		Stripper:       stripper,
		Items:          validation.NewItemValidator(cfg.Validation, stripper),
		Requests:       comps.Requests,
		RequestTimeout: cfg.Generation.RequestTimeout,
		TokensPerItem:  cfg.Generation.TokensPerItem,
		Logger:         log.Named("generation"),
	}

	if opts.Cache && cfg.Redis.Address != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, outcome cache disabled", zap.Error(err))
		} else {
			comps.closers = append(comps.closers, client.Close)
			comps.Cache = adapter.NewRedisCacheAdapter(client)
			deps.Cache = service.NewOutcomeCache(comps.Cache, cfg.Generation.CacheTTL)
			log.Info("Outcome cache connected", zap.String("address", cfg.Redis.Address))
		}
	}

	if opts.Persistence && cfg.Database.Path != "" {
		db, err := database.NewSQLiteDB(ctx, cfg.Database.Path)
		if err != nil {
			log.Warn("Run store unavailable, persistence disabled", zap.Error(err))
		} else if err := database.RunMigrations(db.DB, schema.Migrations, schema.MigrationsDir); err != nil {
			_ = db.Close()
			log.Warn("Run store migration failed, persistence disabled", zap.Error(err))
		} else {
			comps.closers = append(comps.closers, db.Close)
			deps.Runs = repository.NewGenerationRunRepository(db, repository.NewTransactionManagerAdapter(db))
			log.Info("Run store opened", zap.String("path", cfg.Database.Path))
		}
	}

	svc, err := service.NewGenerationService(deps)
	if err != nil {
		_ = comps.Close()
		return nil, err
	}
	comps.Service = svc
	return comps, nil
}
