package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "renovation-os",
	Short: "Bali renovation worker marketplace backend",
	Long:  "Aggregates Bali construction workers from Google Maps, curated lists and marketplace listings, deduplicates and trust-scores them, and serves ranked search with paid contact unlocks.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
