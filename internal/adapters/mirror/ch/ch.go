// Package ch best-effort mirrors the normalised Activity stream into
// ClickHouse as a columnar table, wrapping clickhouse-go/v2 directly so the
// mirror dials and writes for real rather than stubbing the connection. Like
// the pg mirror, this is a convenience sink for ad-hoc analytics, never the
// source of truth, so writes log and swallow their own errors.
package ch

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
)

// Config configures the mirror's ClickHouse connection.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Mirror is a best-effort ClickHouse sink for the Activity stream.
type Mirror struct {
	conn clickhouse.Conn
	log  *logger.Logger
}

var openConn = clickhouse.Open

// Open dials ClickHouse and ensures the activities table exists.
func Open(ctx context.Context, cfg Config) (*Mirror, error) {
	conn, err := openConn(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, perr.StorageErrorf(err, "open clickhouse mirror connection")
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, perr.StorageErrorf(err, "ping clickhouse mirror")
	}
	m := &Mirror{conn: conn, log: logger.Named("mirror.ch")}
	if err := m.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the connection.
func (m *Mirror) Close() {
	if m != nil && m.conn != nil {
		_ = m.conn.Close()
	}
}

func (m *Mirror) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS activities (
	date        Date,
	ts          DateTime,
	kind        LowCardinality(String),
	repo        String,
	external_id Int64,
	title       String,
	url         String,
	additions   Int32,
	deletions   Int32,
	intent      LowCardinality(String)
) ENGINE = MergeTree()
ORDER BY (date, repo, ts)`
	if err := m.conn.Exec(ctx, ddl); err != nil {
		return perr.StorageErrorf(err, "migrate clickhouse mirror schema")
	}
	return nil
}

// InsertActivities mirrors one day's Activity stream as a batch insert.
// Errors are logged and swallowed.
func (m *Mirror) InsertActivities(ctx context.Context, date string, activities []domain.Activity) {
	if len(activities) == 0 {
		return
	}
	batch, err := m.conn.PrepareBatch(ctx, "INSERT INTO activities")
	if err != nil {
		m.log.Warn().Err(err).Str("date", date).Msg("mirror: activities batch prepare failed")
		return
	}
	for _, a := range activities {
		intent := ""
		if a.Intent != nil {
			intent = string(*a.Intent)
		}
		if err := batch.Append(a.Timestamp, a.Timestamp, string(a.Kind), a.Repo,
			int64(a.ExternalID), a.Title, a.URL, int32(a.Additions), int32(a.Deletions), intent); err != nil {
			m.log.Warn().Err(err).Str("date", date).Msg("mirror: activity row append failed")
			return
		}
	}
	if err := batch.Send(); err != nil {
		m.log.Warn().Err(err).Str("date", date).Msg("mirror: activities batch send failed")
	}
}
