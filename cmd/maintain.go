package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trustRecalcCmd = &cobra.Command{
	Use:   "trust-recalc",
	Short: "Recalculate stale trust scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		staleAfter := time.Duration(cfg.Trust.StaleDays) * 24 * time.Hour
		updated, err := env.Maintain.RecalculateStaleTrust(ctx, staleAfter, cfg.Trust.BatchLimit)
		if err != nil {
			return err
		}

		zap.L().Info("trust recalculation finished", zap.Int("updated", updated))
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete scrape jobs past the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		retention := time.Duration(cfg.Cleanup.RetentionDays) * 24 * time.Hour
		deleted, err := env.Maintain.CleanupScrapeJobs(ctx, retention)
		if err != nil {
			return err
		}

		zap.L().Info("cleanup finished", zap.Int("deleted", deleted))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trustRecalcCmd)
	rootCmd.AddCommand(cleanupCmd)
}
