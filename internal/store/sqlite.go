package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS workers (
	id              TEXT PRIMARY KEY,
	gmaps_place_id  TEXT UNIQUE,
	business_name   TEXT NOT NULL,
	specializations TEXT NOT NULL DEFAULT '[]',
	trust_score     INTEGER,
	profile         TEXT NOT NULL,
	last_scored_at  DATETIME,
	last_scraped_at DATETIME,
	is_active       INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS worker_unlocks (
	id         TEXT PRIMARY KEY,
	worker_id  TEXT NOT NULL REFERENCES workers(id),
	user_email TEXT NOT NULL,
	order_id   TEXT NOT NULL UNIQUE,
	amount_idr INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	settled_at DATETIME
);

CREATE TABLE IF NOT EXISTS scrape_jobs (
	id             TEXT PRIMARY KEY,
	specialization TEXT NOT NULL,
	location       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	workers_found  INTEGER NOT NULL DEFAULT 0,
	workers_saved  INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_workers_scraped ON workers(last_scraped_at);
CREATE INDEX IF NOT EXISTS idx_workers_scored ON workers(last_scored_at);
CREATE INDEX IF NOT EXISTS idx_unlocks_lookup ON worker_unlocks(worker_id, user_email);
CREATE INDEX IF NOT EXISTS idx_scrape_jobs_started ON scrape_jobs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertWorkers inserts or updates records, keyed by gmaps_place_id when
// present and by id otherwise. Each record gets its ID filled in.
func (s *SQLiteStore) UpsertWorkers(ctx context.Context, records []*worker.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	saved := 0
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}

		profileJSON, err := json.Marshal(rec)
		if err != nil {
			return saved, eris.Wrapf(err, "sqlite: marshal worker %s", rec.BusinessName)
		}
		specsJSON, err := json.Marshal(rec.Specializations)
		if err != nil {
			return saved, eris.Wrap(err, "sqlite: marshal specializations")
		}

		placeID := sql.NullString{String: rec.GmapsPlaceID, Valid: rec.GmapsPlaceID != ""}
		conflictKey := "id"
		if placeID.Valid {
			conflictKey = "gmaps_place_id"
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO workers (id, gmaps_place_id, business_name, specializations, trust_score, profile, last_scored_at, last_scraped_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(%s) DO UPDATE SET
				business_name   = excluded.business_name,
				specializations = excluded.specializations,
				trust_score     = excluded.trust_score,
				profile         = excluded.profile,
				last_scored_at  = excluded.last_scored_at,
				is_active       = excluded.is_active,
				updated_at      = datetime('now')`, conflictKey),
			rec.ID, placeID, rec.BusinessName, string(specsJSON), rec.TrustScore,
			string(profileJSON), rec.LastScoredAt, rec.LastScrapedAt, rec.IsActive,
		)
		if err != nil {
			return saved, eris.Wrapf(err, "sqlite: upsert worker %s", rec.BusinessName)
		}

		// The conflict row keeps its original id; read it back.
		if placeID.Valid {
			if err := tx.QueryRowContext(ctx,
				`SELECT id FROM workers WHERE gmaps_place_id = ?`, rec.GmapsPlaceID,
			).Scan(&rec.ID); err != nil {
				return saved, eris.Wrap(err, "sqlite: read upserted id")
			}
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return saved, eris.Wrap(err, "sqlite: commit upsert")
	}
	return saved, nil
}

func (s *SQLiteStore) CachedWorkers(ctx context.Context, specialization string, maxAge time.Duration) ([]*worker.Record, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, last_scraped_at FROM workers
		WHERE is_active = 1
		  AND specializations LIKE ?
		  AND last_scraped_at IS NOT NULL AND last_scraped_at > ?
		ORDER BY trust_score DESC`,
		`%"`+specialization+`"%`, cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cached workers")
	}
	defer rows.Close()

	var out []*worker.Record
	for rows.Next() {
		rec, err := scanWorkerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: cached workers iterate")
}

func (s *SQLiteStore) GetWorker(ctx context.Context, id string) (*worker.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile, last_scraped_at FROM workers WHERE id = ?`, id,
	)
	rec, err := scanWorkerRow(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) MarkScraped(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, at.UTC())
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE workers SET last_scraped_at = ?, updated_at = datetime('now') WHERE id IN (`+placeholders+`)`,
		args...,
	)
	return eris.Wrap(err, "sqlite: mark scraped")
}

func (s *SQLiteStore) StaleTrustWorkers(ctx context.Context, cutoff time.Time, limit int) ([]*worker.Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, last_scraped_at FROM workers
		WHERE is_active = 1
		  AND (last_scored_at IS NULL OR last_scored_at < ?)
		ORDER BY last_scored_at ASC
		LIMIT ?`,
		cutoff.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stale trust workers")
	}
	defer rows.Close()

	var out []*worker.Record
	for rows.Next() {
		rec, err := scanWorkerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: stale trust iterate")
}

func (s *SQLiteStore) UpdateTrust(ctx context.Context, rec *worker.Record) error {
	profileJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal worker")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE workers SET trust_score = ?, profile = ?, last_scored_at = ?, updated_at = datetime('now')
		WHERE id = ?`,
		rec.TrustScore, string(profileJSON), rec.LastScoredAt, rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update trust %s", rec.ID)
	}
	return checkRowsAffected(res, "worker", rec.ID)
}

func (s *SQLiteStore) CreateUnlock(ctx context.Context, workerID, userEmail, orderID string, amountIDR int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worker_unlocks (id, worker_id, user_email, order_id, amount_idr, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), workerID, userEmail, orderID, amountIDR, UnlockPending,
	)
	return eris.Wrapf(err, "sqlite: create unlock for worker %s", workerID)
}

func (s *SQLiteStore) IsUnlocked(ctx context.Context, workerID, userEmail string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM worker_unlocks
		WHERE worker_id = ? AND user_email = ? AND status = ?`,
		workerID, userEmail, UnlockPaid,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: check unlock")
	}
	return n > 0, nil
}

func (s *SQLiteStore) SettleUnlock(ctx context.Context, orderID, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE worker_unlocks SET status = ?, settled_at = datetime('now') WHERE order_id = ?`,
		status, orderID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: settle unlock %s", orderID)
	}
	return checkRowsAffected(res, "unlock", orderID)
}

func (s *SQLiteStore) CreateScrapeJob(ctx context.Context, specialization, location string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_jobs (id, specialization, location, status) VALUES (?, ?, ?, ?)`,
		id, specialization, location, JobRunning,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create scrape job")
	}
	return id, nil
}

func (s *SQLiteStore) FinishScrapeJob(ctx context.Context, jobID string, found, saved int, jobErr error) error {
	status := JobComplete
	errMsg := sql.NullString{}
	if jobErr != nil {
		status = JobFailed
		errMsg = sql.NullString{String: jobErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE scrape_jobs SET status = ?, workers_found = ?, workers_saved = ?, error = ?, finished_at = datetime('now')
		WHERE id = ?`,
		status, found, saved, errMsg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish scrape job %s", jobID)
	}
	return checkRowsAffected(res, "scrape job", jobID)
}

func (s *SQLiteStore) DeleteOldScrapeJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scrape_jobs WHERE started_at < ?`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete old scrape jobs")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// scanWorkerRow decodes (id, profile, last_scraped_at). The id and
// last_scraped_at columns are authoritative over the profile JSON.
func scanWorkerRow(row scannable) (*worker.Record, error) {
	var id, profileJSON string
	var scrapedAt sql.NullTime

	if err := row.Scan(&id, &profileJSON, &scrapedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(sql.ErrNoRows, "sqlite: worker")
		}
		return nil, eris.Wrap(err, "sqlite: scan worker")
	}

	var rec worker.Record
	if err := json.Unmarshal([]byte(profileJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal worker profile")
	}
	rec.ID = id
	if scrapedAt.Valid {
		t := scrapedAt.Time.UTC()
		rec.LastScrapedAt = &t
	}
	return &rec, nil
}
