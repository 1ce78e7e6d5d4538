package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studyforge/internal/bootstrap"
	"studyforge/internal/config"
	"studyforge/internal/domain"
	"studyforge/internal/dto"
	"studyforge/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool
	persist    bool
	timeout    time.Duration
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "studygen",
		Short: "Generate study material from documents and topics",
		Long: `studygen turns a document or a topic into flashcards, multiple choice
questions or practice exercises using the configured provider cascade.

Available subcommands:
  generate  - Generate items from a PDF or text file
  topic     - Generate items about a topic
  providers - List the provider catalog in cascade order`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initLogger()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default: ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&c.persist, "persist", false, "Record the run in the configured sqlite store")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 0, "Request timeout (default: generation.request_timeout)")

	rootCmd.AddCommand(c.generateCmd())
	rootCmd.AddCommand(c.topicCmd())
	rootCmd.AddCommand(c.providersCmd())
	return rootCmd
}

// initLogger logs to stderr so stdout carries only command output.
func (c *cli) initLogger() error {
	level := zapcore.WarnLevel
	if c.verbose {
		level = zapcore.DebugLevel
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	c.log = l
	return nil
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.configPath != "" {
		return config.LoadConfigFrom(c.configPath)
	}
	return config.LoadConfig()
}

func (c *cli) pipeline(ctx context.Context) (*bootstrap.Components, *config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if c.timeout > 0 {
		cfg.Generation.RequestTimeout = c.timeout
	}
	comps, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Persistence: c.persist}, c.log)
	if err != nil {
		return nil, nil, err
	}
	return comps, cfg, nil
}

// run generates req and prints the response JSON. A terminal failure is
// printed too and returned as the command error.
func (c *cli) run(cmd *cobra.Command, req domain.GenerationRequest) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	comps, _, err := c.pipeline(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	outcome, genErr := comps.Service.Generate(ctx, req)
	if outcome != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(dto.NewGenerationResponse(outcome)); err != nil {
			return fmt.Errorf("failed to write outcome: %w", err)
		}
	}
	return genErr
}

// runSet generates every kind of req from the same source and prints the
// per-kind response JSON.
func (c *cli) runSet(cmd *cobra.Command, req domain.GenerationRequest, kinds []domain.ItemKind) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	comps, _, err := c.pipeline(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	results, genErr := service.GenerateKinds(ctx, comps.Service, req, kinds)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto.NewGenerationSetResponse(results)); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}
	return genErr
}
