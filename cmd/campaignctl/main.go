package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/campaignwala/backend/internal/config"
	"github.com/campaignwala/backend/internal/database"
	"github.com/campaignwala/backend/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

// app carries what every subcommand needs once the root command has run.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	openDB func(ctx context.Context) (*sql.DB, error)
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "campaignctl",
		Short:         "campaignctl - operator tooling for the Campaignwala backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.AddCommand(migrateCmd(a))
	rootCmd.AddCommand(checkDBCmd(a))
	rootCmd.AddCommand(resetOTPAttemptsCmd(a))
	rootCmd.AddCommand(createAdminCmd(a))

	return rootCmd
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.cfg = cfg
	}

	if a.logger == nil {
		if err := logging.InitLogger(a.cfg.IsProduction()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logging.Named("campaignctl")
	}

	if a.openDB == nil {
		a.openDB = func(ctx context.Context) (*sql.DB, error) {
			return database.InitDB(ctx, a.logger)
		}
	}
	return nil
}
