package main

import (
	"fmt"

	"github.com/kursadbilgin/extraction-orchestrator/internal/app"
	"github.com/kursadbilgin/extraction-orchestrator/internal/config"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// commandContext lazily builds the shared core for subcommands.
type commandContext struct {
	logLevel string
	cfg      *config.Config
	logger   *zap.Logger
}

func (c *commandContext) ensureCore() (*app.Core, error) {
	if c.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		c.cfg = cfg
	}
	if c.logger == nil {
		level := c.cfg.LogLevel
		if c.logLevel != "" {
			level = c.logLevel
		}
		logger, err := observability.NewLogger(level, "console")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		c.logger = logger
	}
	return app.NewCore(c.cfg, c.logger, app.Options{})
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "extractorctl",
		Short:         "Submit statements to the extraction service from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newRecoverCommand(ctx))
	rootCmd.AddCommand(newHandshakeCommand(ctx))

	return rootCmd
}
