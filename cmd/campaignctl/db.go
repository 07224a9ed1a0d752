package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campaignwala/backend/internal/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const commandTimeout = 2 * time.Minute

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(ctx, db)
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			}

			a.logger.Info("migrations applied", zap.Strings("applied", applied))
			return nil
		},
	}
}

func checkDBCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-db",
		Short: "Check the database connection and print row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			counts, err := database.TableCounts(ctx, db)
			if err != nil {
				return err
			}

			tables := make([]string, 0, len(counts))
			for table := range counts {
				tables = append(tables, table)
			}
			sort.Strings(tables)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Database connection OK")
			for _, table := range tables {
				fmt.Fprintf(out, "  %-20s %d\n", table, counts[table])
			}
			return nil
		},
	}
}
