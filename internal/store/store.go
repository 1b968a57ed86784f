// Package store persists worker profiles, contact unlocks and scrape-job
// audit rows. Two backends exist: sqlite for single-box deployments and
// postgres for shared ones.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// Pool is the subset of pgxpool.Pool the postgres backend uses. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ScrapeJob is one audit row for a background scrape.
type ScrapeJob struct {
	ID             string     `json:"id"`
	Specialization string     `json:"specialization"`
	Location       string     `json:"location"`
	Status         string     `json:"status"` // "running", "complete", "failed"
	WorkersFound   int        `json:"workers_found"`
	WorkersSaved   int        `json:"workers_saved"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Scrape job statuses.
const (
	JobRunning  = "running"
	JobComplete = "complete"
	JobFailed   = "failed"
)

// Unlock statuses follow Midtrans transaction states.
const (
	UnlockPending = "pending"
	UnlockPaid    = "settlement"
)

// Store is the persistence interface for the worker pipeline.
type Store interface {
	// Workers
	UpsertWorkers(ctx context.Context, records []*worker.Record) (int, error)
	CachedWorkers(ctx context.Context, specialization string, maxAge time.Duration) ([]*worker.Record, error)
	GetWorker(ctx context.Context, id string) (*worker.Record, error)
	MarkScraped(ctx context.Context, ids []string, at time.Time) error
	StaleTrustWorkers(ctx context.Context, cutoff time.Time, limit int) ([]*worker.Record, error)
	UpdateTrust(ctx context.Context, rec *worker.Record) error

	// Contact unlocks
	CreateUnlock(ctx context.Context, workerID, userEmail, orderID string, amountIDR int64) error
	IsUnlocked(ctx context.Context, workerID, userEmail string) (bool, error)
	SettleUnlock(ctx context.Context, orderID, status string) error

	// Scrape job audit
	CreateScrapeJob(ctx context.Context, specialization, location string) (string, error)
	FinishScrapeJob(ctx context.Context, jobID string, found, saved int, jobErr error) error
	DeleteOldScrapeJobs(ctx context.Context, olderThan time.Duration) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
