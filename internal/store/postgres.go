package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS workers (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	gmaps_place_id  TEXT UNIQUE,
	business_name   TEXT NOT NULL,
	specializations JSONB NOT NULL DEFAULT '[]',
	trust_score     INTEGER,
	profile         JSONB NOT NULL,
	last_scored_at  TIMESTAMPTZ,
	last_scraped_at TIMESTAMPTZ,
	is_active       BOOLEAN NOT NULL DEFAULT true,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS worker_unlocks (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	worker_id  TEXT NOT NULL REFERENCES workers(id),
	user_email TEXT NOT NULL,
	order_id   TEXT NOT NULL UNIQUE,
	amount_idr BIGINT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	settled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS scrape_jobs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	specialization TEXT NOT NULL,
	location       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	workers_found  INTEGER NOT NULL DEFAULT 0,
	workers_saved  INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_workers_specializations ON workers USING gin(specializations);
CREATE INDEX IF NOT EXISTS idx_workers_scraped ON workers(last_scraped_at);
CREATE INDEX IF NOT EXISTS idx_workers_scored ON workers(last_scored_at);
CREATE INDEX IF NOT EXISTS idx_unlocks_lookup ON worker_unlocks(worker_id, user_email);
CREATE INDEX IF NOT EXISTS idx_scrape_jobs_started ON scrape_jobs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertWorkers(ctx context.Context, records []*worker.Record) (int, error) {
	saved := 0
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}

		profileJSON, err := json.Marshal(rec)
		if err != nil {
			return saved, eris.Wrapf(err, "postgres: marshal worker %s", rec.BusinessName)
		}
		specsJSON, err := json.Marshal(rec.Specializations)
		if err != nil {
			return saved, eris.Wrap(err, "postgres: marshal specializations")
		}

		var placeID *string
		if rec.GmapsPlaceID != "" {
			placeID = &rec.GmapsPlaceID
		}

		if placeID != nil {
			err = s.pool.QueryRow(ctx, `
				INSERT INTO workers (id, gmaps_place_id, business_name, specializations, trust_score, profile, last_scored_at, last_scraped_at, is_active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (gmaps_place_id) DO UPDATE SET
					business_name   = excluded.business_name,
					specializations = excluded.specializations,
					trust_score     = excluded.trust_score,
					profile         = excluded.profile,
					last_scored_at  = excluded.last_scored_at,
					is_active       = excluded.is_active,
					updated_at      = now()
				RETURNING id`,
				rec.ID, placeID, rec.BusinessName, specsJSON, rec.TrustScore,
				profileJSON, rec.LastScoredAt, rec.LastScrapedAt, rec.IsActive,
			).Scan(&rec.ID)
		} else {
			_, err = s.pool.Exec(ctx, `
				INSERT INTO workers (id, gmaps_place_id, business_name, specializations, trust_score, profile, last_scored_at, last_scraped_at, is_active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE SET
					business_name   = excluded.business_name,
					specializations = excluded.specializations,
					trust_score     = excluded.trust_score,
					profile         = excluded.profile,
					last_scored_at  = excluded.last_scored_at,
					is_active       = excluded.is_active,
					updated_at      = now()`,
				rec.ID, placeID, rec.BusinessName, specsJSON, rec.TrustScore,
				profileJSON, rec.LastScoredAt, rec.LastScrapedAt, rec.IsActive,
			)
		}
		if err != nil {
			return saved, eris.Wrapf(err, "postgres: upsert worker %s", rec.BusinessName)
		}
		saved++
	}
	return saved, nil
}

func (s *PostgresStore) CachedWorkers(ctx context.Context, specialization string, maxAge time.Duration) ([]*worker.Record, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	specJSON, err := json.Marshal([]string{specialization})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal specialization filter")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, profile, last_scraped_at FROM workers
		WHERE is_active
		  AND specializations @> $1
		  AND last_scraped_at IS NOT NULL AND last_scraped_at > $2
		ORDER BY trust_score DESC NULLS LAST`,
		specJSON, cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cached workers")
	}
	defer rows.Close()

	return collectWorkers(rows, "postgres: cached workers")
}

func (s *PostgresStore) GetWorker(ctx context.Context, id string) (*worker.Record, error) {
	var profileJSON []byte
	var scrapedAt *time.Time
	var rowID string

	err := s.pool.QueryRow(ctx,
		`SELECT id, profile, last_scraped_at FROM workers WHERE id = $1`, id,
	).Scan(&rowID, &profileJSON, &scrapedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get worker %s", id)
	}

	return decodeWorker(rowID, profileJSON, scrapedAt)
}

func (s *PostgresStore) MarkScraped(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE workers SET last_scraped_at = $1, updated_at = now() WHERE id = ANY($2)`,
		at.UTC(), ids,
	)
	return eris.Wrap(err, "postgres: mark scraped")
}

func (s *PostgresStore) StaleTrustWorkers(ctx context.Context, cutoff time.Time, limit int) ([]*worker.Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile, last_scraped_at FROM workers
		WHERE is_active
		  AND (last_scored_at IS NULL OR last_scored_at < $1)
		ORDER BY last_scored_at ASC NULLS FIRST
		LIMIT $2`,
		cutoff.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stale trust workers")
	}
	defer rows.Close()

	return collectWorkers(rows, "postgres: stale trust workers")
}

func (s *PostgresStore) UpdateTrust(ctx context.Context, rec *worker.Record) error {
	profileJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal worker")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE workers SET trust_score = $1, profile = $2, last_scored_at = $3, updated_at = now()
		WHERE id = $4`,
		rec.TrustScore, profileJSON, rec.LastScoredAt, rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update trust %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("worker not found: %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) CreateUnlock(ctx context.Context, workerID, userEmail, orderID string, amountIDR int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO worker_unlocks (id, worker_id, user_email, order_id, amount_idr, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), workerID, userEmail, orderID, amountIDR, UnlockPending,
	)
	return eris.Wrapf(err, "postgres: create unlock for worker %s", workerID)
}

func (s *PostgresStore) IsUnlocked(ctx context.Context, workerID, userEmail string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM worker_unlocks
		WHERE worker_id = $1 AND user_email = $2 AND status = $3`,
		workerID, userEmail, UnlockPaid,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "postgres: check unlock")
	}
	return n > 0, nil
}

func (s *PostgresStore) SettleUnlock(ctx context.Context, orderID, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE worker_unlocks SET status = $1, settled_at = now() WHERE order_id = $2`,
		status, orderID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: settle unlock %s", orderID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("unlock not found: %s", orderID)
	}
	return nil
}

func (s *PostgresStore) CreateScrapeJob(ctx context.Context, specialization, location string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_jobs (id, specialization, location, status) VALUES ($1, $2, $3, $4)`,
		id, specialization, location, JobRunning,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create scrape job")
	}
	return id, nil
}

func (s *PostgresStore) FinishScrapeJob(ctx context.Context, jobID string, found, saved int, jobErr error) error {
	status := JobComplete
	var errMsg *string
	if jobErr != nil {
		status = JobFailed
		msg := jobErr.Error()
		errMsg = &msg
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET status = $1, workers_found = $2, workers_saved = $3, error = $4, finished_at = now()
		WHERE id = $5`,
		status, found, saved, errMsg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish scrape job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scrape job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) DeleteOldScrapeJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM scrape_jobs WHERE started_at < $1`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete old scrape jobs")
	}
	return int(tag.RowsAffected()), nil
}

// helpers

func collectWorkers(rows pgx.Rows, op string) ([]*worker.Record, error) {
	var out []*worker.Record
	for rows.Next() {
		var id string
		var profileJSON []byte
		var scrapedAt *time.Time
		if err := rows.Scan(&id, &profileJSON, &scrapedAt); err != nil {
			return nil, eris.Wrap(err, op+" scan")
		}
		rec, err := decodeWorker(id, profileJSON, scrapedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), op+" iterate")
}

func decodeWorker(id string, profileJSON []byte, scrapedAt *time.Time) (*worker.Record, error) {
	var rec worker.Record
	if err := json.Unmarshal(profileJSON, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal worker profile")
	}
	rec.ID = id
	if scrapedAt != nil {
		t := scrapedAt.UTC()
		rec.LastScrapedAt = &t
	}
	return &rec, nil
}
