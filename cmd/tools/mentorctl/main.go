// Command mentorctl inspects and drives a z-mentor data store from the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/z-mentor/backend/internal/app"
	"github.com/zhouzirui/z-mentor/backend/internal/config"
)

type appFactory func(ctx context.Context, logger *zap.Logger) (*app.App, error)

type cli struct {
	verbose bool
	logger  *zap.Logger
	newApp  appFactory
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(loadApp).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(newApp appFactory) *cobra.Command {
	c := &cli{newApp: newApp}

	root := &cobra.Command{
		Use:          "mentorctl",
		Short:        "Inspect personas, plans and intents of a z-mentor store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			zcfg.Encoding = "console"
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if c.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.personasCmd(),
		c.extractCmd(),
		c.chatCmd(),
		c.planCmd(),
	)
	return root
}

func loadApp(ctx context.Context, logger *zap.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.New(ctx, cfg, logger)
}

// withApp runs fn against a freshly assembled App and closes it afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	a, err := c.newApp(cmd.Context(), c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	return fn(a)
}
