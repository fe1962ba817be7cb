// Package checkpoint persists scrape progress in a local SQLite file so an
// interrupted scrape resumes where it stopped.
package checkpoint

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Store is a SQLite-backed checkpoint store.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS done_urls (
	stage   TEXT NOT NULL,
	url     TEXT NOT NULL,
	done_at INTEGER NOT NULL,
	PRIMARY KEY (stage, url)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL,
	items       INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);

CREATE TABLE IF NOT EXISTS page_cache (
	url        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
`

// Open opens (creating if needed) the checkpoint database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "checkpoint: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "checkpoint: migrate")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Done reports whether url was already processed in stage.
func (s *Store) Done(ctx context.Context, stage, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM done_urls WHERE stage = ? AND url = ?`, stage, url,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "checkpoint: query done")
	}
	return n > 0, nil
}

// Mark records url as processed in stage. Marking twice is a no-op.
func (s *Store) Mark(ctx context.Context, stage, url string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO done_urls (stage, url, done_at) VALUES (?, ?, ?)`,
		stage, url, time.Now().Unix(),
	)
	return eris.Wrap(err, "checkpoint: mark")
}

// Reset forgets every processed url of stage and returns how many were removed.
func (s *Store) Reset(ctx context.Context, stage string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM done_urls WHERE stage = ?`, stage)
	if err != nil {
		return 0, eris.Wrap(err, "checkpoint: reset")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "checkpoint: rows affected")
}

// Count returns the number of processed urls in stage.
func (s *Store) Count(ctx context.Context, stage string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM done_urls WHERE stage = ?`, stage).Scan(&n)
	return n, eris.Wrap(err, "checkpoint: count")
}

// Run is one recorded scrape invocation.
type Run struct {
	ID         string
	Stage      string
	Status     string
	Items      int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// StartRun records a new running scrape for stage and returns its id.
func (s *Store) StartRun(ctx context.Context, stage string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		id, stage, RunRunning, time.Now().Unix(),
	)
	if err != nil {
		return "", eris.Wrap(err, "checkpoint: insert run")
	}
	return id, nil
}

// FinishRun sets the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, items, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, items = ?, failed = ?, finished_at = ? WHERE id = ?`,
		status, items, failed, time.Now().Unix(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: finish run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "checkpoint: rows affected")
	}
	if n == 0 {
		return eris.Errorf("checkpoint: run not found: %s", id)
	}
	return nil
}

// Runs lists runs of stage, newest first. An empty stage lists all runs.
func (s *Store) Runs(ctx context.Context, stage string) ([]Run, error) {
	q := `SELECT id, stage, status, items, failed, started_at, finished_at FROM runs`
	var args []any
	if stage != "" {
		q += ` WHERE stage = ?`
		args = append(args, stage)
	}
	q += ` ORDER BY started_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Stage, &r.Status, &r.Items, &r.Failed, &started, &finished); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan run")
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "checkpoint: iterate runs")
}

// GetPage returns a cached page body. ok is false on a miss or when the
// entry expired.
func (s *Store) GetPage(ctx context.Context, url string) (body []byte, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT body FROM page_cache WHERE url = ? AND expires_at > ?`,
		url, time.Now().Unix(),
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "checkpoint: get page")
	}
	return body, true, nil
}

// PutPage caches a page body for ttl.
func (s *Store) PutPage(ctx context.Context, url string, body []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url, body, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET body = excluded.body,
		   fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		url, body, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "checkpoint: put page")
}

// PurgePages deletes expired cache entries.
func (s *Store) PurgePages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "checkpoint: purge pages")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "checkpoint: rows affected")
}
