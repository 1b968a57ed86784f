package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	refreshSpecialization string
	refreshLocation       string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Scrape, deduplicate and rescore workers",
	Long:  "Runs the scrape pipeline for one specialization, or for every configured specialization when none is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		location := refreshLocation
		if location == "" {
			location = cfg.Refresh.Location
		}

		if refreshSpecialization != "" {
			res, err := env.Refresh.Refresh(ctx, refreshSpecialization, location)
			if err != nil {
				return err
			}
			zap.L().Info("refresh finished",
				zap.String("specialization", refreshSpecialization),
				zap.Int("found", res.Found),
				zap.Int("saved", res.Saved))
			return nil
		}

		return env.Refresh.RefreshAll(ctx, cfg.Refresh.Specializations, location)
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshSpecialization, "specialization", "", "refresh a single specialization (pool, bathroom, kitchen, general)")
	refreshCmd.Flags().StringVar(&refreshLocation, "location", "", "location query (default from config)")
	rootCmd.AddCommand(refreshCmd)
}
