package jobs

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/store"
	"github.com/cassidypignatello/bali-renovation-os/internal/trust"
)

// MaintenanceService covers the periodic housekeeping jobs: stale trust
// recalculation and scrape-job retention.
type MaintenanceService struct {
	store  store.Store
	scorer *trust.Scorer
	now    func() time.Time
}

// NewMaintenanceService wires the housekeeping jobs.
func NewMaintenanceService(st store.Store) *MaintenanceService {
	return &MaintenanceService{
		store:  st,
		scorer: trust.NewScorer(),
		now:    time.Now,
	}
}

// RecalculateStaleTrust rescores workers whose trust score is older than
// staleAfter, at most limit per run. Individual failures are logged and
// skipped so one bad row cannot stall the batch.
func (m *MaintenanceService) RecalculateStaleTrust(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	cutoff := m.now().UTC().Add(-staleAfter)

	records, err := m.store.StaleTrustWorkers(ctx, cutoff, limit)
	if err != nil {
		return 0, eris.Wrap(err, "jobs: load stale trust workers")
	}

	updated := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return updated, eris.Wrap(ctx.Err(), "jobs: trust recalculation cancelled")
		}

		m.scorer.Apply(rec)
		if err := m.store.UpdateTrust(ctx, rec); err != nil {
			zap.L().Warn("jobs: trust update failed",
				zap.String("worker_id", rec.ID),
				zap.Error(err))
			continue
		}
		updated++
	}

	zap.L().Info("trust recalculation complete",
		zap.Int("stale", len(records)),
		zap.Int("updated", updated))

	return updated, nil
}

// CleanupScrapeJobs deletes finished scrape jobs older than retention.
func (m *MaintenanceService) CleanupScrapeJobs(ctx context.Context, retention time.Duration) (int, error) {
	deleted, err := m.store.DeleteOldScrapeJobs(ctx, retention)
	if err != nil {
		return 0, eris.Wrap(err, "jobs: cleanup scrape jobs")
	}

	zap.L().Info("scrape job cleanup complete",
		zap.Int("deleted", deleted),
		zap.Duration("retention", retention))

	return deleted, nil
}
