// Package jobs runs the background pipelines: scrape refreshes, stale
// trust recalculation, and scrape-job retention cleanup.
package jobs

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cassidypignatello/bali-renovation-os/internal/classify"
	"github.com/cassidypignatello/bali-renovation-os/internal/dedup"
	"github.com/cassidypignatello/bali-renovation-os/internal/resilience"
	"github.com/cassidypignatello/bali-renovation-os/internal/store"
	"github.com/cassidypignatello/bali-renovation-os/internal/trust"
	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// Scraper produces fresh records for a specialization. Implemented by
// the Google Maps scraper.
type Scraper interface {
	Scrape(ctx context.Context, specialization, location string) ([]*worker.Record, error)
}

// existingLookback bounds how far back stored records are pulled for
// cross-source deduplication. Inactive historical listings beyond it
// are left alone.
const existingLookback = 2 * 365 * 24 * time.Hour

// concurrentRefreshes caps specializations refreshed in parallel. Each
// refresh holds an Apify actor run, so fan-out is deliberately small.
const concurrentRefreshes = 2

// RefreshResult summarizes one specialization refresh.
type RefreshResult struct {
	JobID string
	Found int
	Saved int
}

// RefreshService scrapes a specialization, merges the results with what
// is already stored, rescores trust and persists the outcome.
type RefreshService struct {
	store      store.Store
	scraper    Scraper
	classifier *classify.Classifier
	scorer     *trust.Scorer
	detector   dedup.DetectorConfig
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker
	now        func() time.Time
}

// RefreshOption configures the service.
type RefreshOption func(*RefreshService)

// WithClassifier enables AI refinement of general-only specializations.
func WithClassifier(c *classify.Classifier) RefreshOption {
	return func(s *RefreshService) { s.classifier = c }
}

// WithRetryPolicy sets the retry policy around scrape calls.
func WithRetryPolicy(p resilience.RetryPolicy) RefreshOption {
	return func(s *RefreshService) { s.retry = p }
}

// WithBreaker wraps scrape calls in a circuit breaker.
func WithBreaker(b *resilience.Breaker) RefreshOption {
	return func(s *RefreshService) { s.breaker = b }
}

// WithDetectorConfig overrides the duplicate detection thresholds.
func WithDetectorConfig(cfg dedup.DetectorConfig) RefreshOption {
	return func(s *RefreshService) { s.detector = cfg }
}

// NewRefreshService wires the refresh pipeline.
func NewRefreshService(st store.Store, scraper Scraper, opts ...RefreshOption) *RefreshService {
	s := &RefreshService{
		store:    st,
		scraper:  scraper,
		scorer:   trust.NewScorer(),
		detector: dedup.DefaultDetectorConfig(),
		retry:    resilience.DefaultRetryPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = resilience.RetryLogger("apify", "scrape")
	}
	return s
}

// Refresh runs the full pipeline for one specialization. Every run is
// recorded as a scrape job, including failed ones.
func (s *RefreshService) Refresh(ctx context.Context, specialization, location string) (*RefreshResult, error) {
	jobID, err := s.store.CreateScrapeJob(ctx, specialization, location)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: create scrape job")
	}

	scraped, err := s.scrape(ctx, specialization, location)
	if err != nil {
		if finishErr := s.store.FinishScrapeJob(ctx, jobID, 0, 0, err); finishErr != nil {
			zap.L().Warn("jobs: finish failed scrape job",
				zap.String("job_id", jobID),
				zap.Error(finishErr))
		}
		return nil, eris.Wrapf(err, "jobs: refresh %s", specialization)
	}

	existing, err := s.store.CachedWorkers(ctx, specialization, existingLookback)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: load existing workers")
	}

	combined := make([]*worker.Record, 0, len(existing)+len(scraped))
	combined = append(combined, existing...)
	combined = append(combined, scraped...)
	merged := dedup.Deduplicate(combined, s.detector)

	for _, rec := range merged {
		s.classifier.Refine(ctx, rec)
		s.scorer.Apply(rec)
	}

	saved, err := s.store.UpsertWorkers(ctx, merged)
	if err != nil {
		if finishErr := s.store.FinishScrapeJob(ctx, jobID, len(scraped), 0, err); finishErr != nil {
			zap.L().Warn("jobs: finish failed scrape job",
				zap.String("job_id", jobID),
				zap.Error(finishErr))
		}
		return nil, eris.Wrap(err, "jobs: upsert workers")
	}

	ids := make([]string, 0, len(merged))
	for _, rec := range merged {
		if rec.ID != "" {
			ids = append(ids, rec.ID)
		}
	}
	if err := s.store.MarkScraped(ctx, ids, s.now().UTC()); err != nil {
		return nil, eris.Wrap(err, "jobs: mark scraped")
	}

	if err := s.store.FinishScrapeJob(ctx, jobID, len(scraped), saved, nil); err != nil {
		return nil, eris.Wrap(err, "jobs: finish scrape job")
	}

	zap.L().Info("refresh complete",
		zap.String("specialization", specialization),
		zap.String("location", location),
		zap.String("job_id", jobID),
		zap.Int("scraped", len(scraped)),
		zap.Int("merged", len(merged)),
		zap.Int("saved", saved))

	return &RefreshResult{JobID: jobID, Found: len(scraped), Saved: saved}, nil
}

// scrape calls the scraper through the retry policy and, when
// configured, the circuit breaker.
func (s *RefreshService) scrape(ctx context.Context, specialization, location string) ([]*worker.Record, error) {
	attempt := func(ctx context.Context) ([]*worker.Record, error) {
		return s.scraper.Scrape(ctx, specialization, location)
	}
	if s.breaker != nil {
		inner := attempt
		attempt = func(ctx context.Context) ([]*worker.Record, error) {
			return resilience.RunValue(ctx, s.breaker, inner)
		}
	}
	return resilience.RetryValue(ctx, s.retry, attempt)
}

// RefreshAll refreshes every listed specialization, a bounded number at
// a time. Failed specializations do not stop the others; the first
// error is returned after all finish.
func (s *RefreshService) RefreshAll(ctx context.Context, specializations []string, location string) error {
	g := new(errgroup.Group)
	g.SetLimit(concurrentRefreshes)

	for _, spec := range specializations {
		g.Go(func() error {
			if _, err := s.Refresh(ctx, spec, location); err != nil {
				zap.L().Error("refresh failed",
					zap.String("specialization", spec),
					zap.Error(err))
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
