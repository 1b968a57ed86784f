package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/dedup"
	"github.com/cassidypignatello/bali-renovation-os/internal/trust"
	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
	"github.com/cassidypignatello/bali-renovation-os/pkg/notion"
)

var importCmd = &cobra.Command{
	Use:   "import <workers.xlsx>",
	Short: "Import a curated worker spreadsheet into the Notion database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Notion.Token == "" || cfg.Notion.WorkerDB == "" {
			return eris.New("notion token and worker database are required (RENOVATION_NOTION_TOKEN, RENOVATION_NOTION_WORKER_DB)")
		}

		client := notion.NewClient(cfg.Notion.Token)
		created, err := notion.ImportXLSX(cmd.Context(), client, cfg.Notion.WorkerDB, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("import finished",
			zap.String("file", args[0]),
			zap.Int("created", created))
		return nil
	},
}

var syncCuratedCmd = &cobra.Command{
	Use:   "sync-curated",
	Short: "Pull curated workers from Notion into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" || cfg.Notion.WorkerDB == "" {
			return eris.New("notion token and worker database are required (RENOVATION_NOTION_TOKEN, RENOVATION_NOTION_WORKER_DB)")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		curated, err := notion.QueryActiveWorkers(ctx, env.Notion, cfg.Notion.WorkerDB)
		if err != nil {
			return err
		}

		// Merge curated entries against everything stored for their tags,
		// so a re-sync updates rather than duplicates.
		lookback := 2 * 365 * 24 * time.Hour
		seen := map[string]*worker.Record{}
		for _, rec := range curated {
			for _, spec := range rec.Specializations {
				existing, err := env.Store.CachedWorkers(ctx, spec, lookback)
				if err != nil {
					return eris.Wrap(err, "load existing workers")
				}
				for _, ex := range existing {
					seen[ex.ID] = ex
				}
			}
		}

		combined := make([]*worker.Record, 0, len(seen)+len(curated))
		for _, ex := range seen {
			combined = append(combined, ex)
		}
		combined = append(combined, curated...)
		merged := dedup.Deduplicate(combined, dedup.DefaultDetectorConfig())

		scorer := trust.NewScorer()
		for _, rec := range merged {
			scorer.Apply(rec)
		}

		saved, err := env.Store.UpsertWorkers(ctx, merged)
		if err != nil {
			return eris.Wrap(err, "upsert curated workers")
		}

		now := time.Now().UTC()
		for _, rec := range curated {
			pageID, _ := rec.Extra["notion_page_id"].(string)
			if pageID == "" {
				continue
			}
			if err := notion.MarkSynced(ctx, env.Notion, pageID, now); err != nil {
				zap.L().Warn("mark synced failed",
					zap.String("page_id", pageID),
					zap.Error(err))
			}
		}

		zap.L().Info("curated sync finished",
			zap.Int("pulled", len(curated)),
			zap.Int("saved", saved))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCuratedCmd)
}
