// Package pg best-effort mirrors Checkpoint and DailyStats into Postgres
// through a pgxpool. Writes here are
// a convenience read-replica for dashboards/BI, never the source of truth —
// the JSON files under the data root remain authoritative, so every method
// logs and swallows its own errors rather than propagating them.
package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
)

// Config configures the mirror's pgxpool.
type Config struct {
	URL      string
	MaxConns int32
}

// Mirror is a best-effort Postgres sink for Checkpoint/DailyStats rows.
type Mirror struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

var newPool = pgxpool.NewWithConfig

// Open connects the mirror's pool and ensures its two tables exist.
func Open(ctx context.Context, cfg Config) (*Mirror, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, perr.StorageErrorf(err, "parse postgres mirror config")
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, perr.StorageErrorf(err, "open postgres mirror pool")
	}
	m := &Mirror{pool: pool, log: logger.Named("mirror.pg")}
	if err := m.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the pool.
func (m *Mirror) Close() {
	if m != nil && m.pool != nil {
		m.pool.Close()
	}
}

func (m *Mirror) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS checkpoints (
	key  TEXT PRIMARY KEY,
	date TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS daily_stats (
	date                   TEXT PRIMARY KEY,
	authored_count         INT NOT NULL,
	reviewed_count         INT NOT NULL,
	commented_count        INT NOT NULL,
	commit_count           INT NOT NULL,
	authored_issue_count   INT NOT NULL,
	commented_issue_count  INT NOT NULL,
	total_additions        INT NOT NULL,
	total_deletions        INT NOT NULL,
	repos_touched          TEXT[] NOT NULL
);`
	if _, err := m.pool.Exec(ctx, ddl); err != nil {
		return perr.StorageErrorf(err, "migrate postgres mirror schema")
	}
	return nil
}

// UpsertCheckpoint mirrors one Checkpoint key/date pair. Errors are logged
// and swallowed.
func (m *Mirror) UpsertCheckpoint(ctx context.Context, key domain.CheckpointKey, date string) {
	const q = `
INSERT INTO checkpoints (key, date) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET date = EXCLUDED.date`
	if _, err := m.pool.Exec(ctx, q, string(key), date); err != nil {
		m.log.Warn().Err(err).Str("key", string(key)).Msg("mirror: checkpoint upsert failed")
	}
}

// UpsertDailyStats mirrors one day's DailyStats row. Errors are logged and
// swallowed.
func (m *Mirror) UpsertDailyStats(ctx context.Context, stats domain.DailyStats) {
	const q = `
INSERT INTO daily_stats (
	date, authored_count, reviewed_count, commented_count, commit_count,
	authored_issue_count, commented_issue_count, total_additions,
	total_deletions, repos_touched
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (date) DO UPDATE SET
	authored_count = EXCLUDED.authored_count,
	reviewed_count = EXCLUDED.reviewed_count,
	commented_count = EXCLUDED.commented_count,
	commit_count = EXCLUDED.commit_count,
	authored_issue_count = EXCLUDED.authored_issue_count,
	commented_issue_count = EXCLUDED.commented_issue_count,
	total_additions = EXCLUDED.total_additions,
	total_deletions = EXCLUDED.total_deletions,
	repos_touched = EXCLUDED.repos_touched`
	g := stats.GitHub
	if _, err := m.pool.Exec(ctx, q, stats.Date, g.AuthoredCount, g.ReviewedCount,
		g.CommentedCount, g.CommitCount, g.AuthoredIssueCount, g.CommentedIssueCount,
		g.TotalAdditions, g.TotalDeletions, g.ReposTouched); err != nil {
		m.log.Warn().Err(err).Str("date", stats.Date).Msg("mirror: daily stats upsert failed")
	}
}
