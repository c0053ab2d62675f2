package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sitepulse/api/apperr"
	"sitepulse/api/database"
	"sitepulse/api/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Timestamps are stored as epoch milliseconds so both dialects compare and
// round-trip them identically.
var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS tracking_events (
		id                TEXT PRIMARY KEY,
		ip_address        TEXT NOT NULL DEFAULT '',
		domain            TEXT NOT NULL,
		page_path         TEXT NOT NULL DEFAULT '',
		page_title        TEXT NOT NULL DEFAULT '',
		user_agent        TEXT NOT NULL DEFAULT '',
		device_type       TEXT NOT NULL DEFAULT '',
		device_browser    TEXT NOT NULL DEFAULT '',
		device_os         TEXT NOT NULL DEFAULT '',
		referrer          TEXT NOT NULL DEFAULT '',
		language          TEXT NOT NULL DEFAULT '',
		screen_resolution TEXT NOT NULL DEFAULT '',
		country           TEXT NOT NULL DEFAULT '',
		city              TEXT NOT NULL DEFAULT '',
		timestamp         BIGINT NOT NULL,
		session_id        TEXT NOT NULL,
		session_start     BIGINT NOT NULL,
		session_end       BIGINT,
		session_duration  DOUBLE PRECISION,
		is_session_end    BOOLEAN NOT NULL DEFAULT FALSE,
		is_page_change    BOOLEAN NOT NULL DEFAULT FALSE,
		page_duration     DOUBLE PRECISION NOT NULL DEFAULT 0,
		page_view_count   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_events_domain_ts ON tracking_events (domain, timestamp)`,
	`CREATE TABLE IF NOT EXISTS chat_history (
		id        TEXT PRIMARY KEY,
		domain    TEXT NOT NULL DEFAULT '',
		query     TEXT NOT NULL,
		response  TEXT NOT NULL DEFAULT '',
		status    BOOLEAN NOT NULL,
		error     TEXT NOT NULL DEFAULT '',
		timestamp BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_ts ON chat_history (timestamp)`,
}

const sqlEventColumns = `id, ip_address, domain, page_path, page_title, user_agent,
	device_type, device_browser, device_os, referrer, language, screen_resolution,
	country, city, timestamp, session_id, session_start, session_end, session_duration,
	is_session_end, is_page_change, page_duration, page_view_count`

// SQLStore serves PostgreSQL and SQLite through database/sql.
type SQLStore struct {
	conn *database.Lazy[*database.DBClient]
	log  *zap.Logger
}

func NewPostgresStore(dbURL string, log *zap.Logger) *SQLStore {
	return newSQLStore("postgres", func(ctx context.Context) (*database.DBClient, error) {
		return database.NewPostgresDB(ctx, dbURL, log)
	}, log)
}

func NewSQLiteStore(path string, log *zap.Logger) *SQLStore {
	return newSQLStore("sqlite", func(ctx context.Context) (*database.DBClient, error) {
		return database.NewSQLiteDB(ctx, path, log)
	}, log)
}

func newSQLStore(name string, open func(context.Context) (*database.DBClient, error), log *zap.Logger) *SQLStore {
	return &SQLStore{
		conn: database.NewLazy(name, func(ctx context.Context) (*database.DBClient, error) {
			client, err := open(ctx)
			if err != nil {
				return nil, err
			}
			if err := initSQLSchema(ctx, client.DB); err != nil {
				client.Close()
				return nil, err
			}
			return client, nil
		}, (*database.DBClient).Close),
		log: log,
	}
}

func initSQLSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites `?` placeholders into the bind style of dialect.
func rebind(dialect, query string) string {
	if dialect == "postgres" {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return sqlx.Rebind(sqlx.QUESTION, query)
}

func (s *SQLStore) Insert(ctx context.Context, e *models.TrackingEvent) (string, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := insertSQLEvent(ctx, client.DB, client.Dialect, e); err != nil {
		return "", apperr.Operation("insert tracking event", err)
	}
	return e.ID, nil
}

func (s *SQLStore) InsertMany(ctx context.Context, events []models.TrackingEvent) error {
	if len(events) == 0 {
		return nil
	}
	client, err := s.conn.Get(ctx)
	if err != nil {
		return err
	}

	tx, err := client.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Operation("begin tracking batch", err)
	}
	defer tx.Rollback()

	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		if err := insertSQLEvent(ctx, tx, client.Dialect, &events[i]); err != nil {
			return apperr.Operation("insert tracking batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Operation("commit tracking batch", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertSQLEvent(ctx context.Context, db execer, dialect string, e *models.TrackingEvent) error {
	var end sql.NullInt64
	if e.SessionEnd != nil {
		end = sql.NullInt64{Int64: e.SessionEnd.UnixMilli(), Valid: true}
	}
	var duration sql.NullFloat64
	if e.SessionDuration != nil {
		duration = sql.NullFloat64{Float64: *e.SessionDuration, Valid: true}
	}

	query := rebind(dialect, `INSERT INTO tracking_events (`+sqlEventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, query,
		e.ID, e.IPAddress, e.Domain, e.PagePath, e.PageTitle, e.UserAgent,
		e.DeviceType, e.DeviceBrowser, e.DeviceOS, e.Referrer, e.Language, e.ScreenResolution,
		e.Country, e.City, e.Timestamp.UnixMilli(), e.SessionID, e.SessionStart.UnixMilli(), end, duration,
		e.IsSessionEnd, e.IsPageChange, e.PageDuration, e.PageViewCount,
	)
	return err
}

func (s *SQLStore) FindByDomain(ctx context.Context, domain string, f models.EventFilter) ([]models.TrackingEvent, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	where, args := eventWhere(domain, f, true)
	query := rebind(client.Dialect, fmt.Sprintf(`
		SELECT %s
		FROM tracking_events
		WHERE %s
		ORDER BY timestamp ASC, id ASC
	`, sqlEventColumns, where))

	rows, err := client.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Operation("query tracking events", err)
	}
	defer rows.Close()

	var events []models.TrackingEvent
	for rows.Next() {
		var (
			e         models.TrackingEvent
			ts, start int64
			end       sql.NullInt64
			duration  sql.NullFloat64
		)
		if err := rows.Scan(
			&e.ID, &e.IPAddress, &e.Domain, &e.PagePath, &e.PageTitle, &e.UserAgent,
			&e.DeviceType, &e.DeviceBrowser, &e.DeviceOS, &e.Referrer, &e.Language, &e.ScreenResolution,
			&e.Country, &e.City, &ts, &e.SessionID, &start, &end, &duration,
			&e.IsSessionEnd, &e.IsPageChange, &e.PageDuration, &e.PageViewCount,
		); err != nil {
			return nil, apperr.Operation("scan tracking event", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.SessionStart = time.UnixMilli(start).UTC()
		if end.Valid {
			t := time.UnixMilli(end.Int64).UTC()
			e.SessionEnd = &t
		}
		if duration.Valid {
			d := duration.Float64
			e.SessionDuration = &d
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Operation("iterate tracking events", err)
	}
	return events, nil
}

func (s *SQLStore) HasDomain(ctx context.Context, domain string) (bool, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return false, err
	}
	var one int
	query := rebind(client.Dialect, `SELECT 1 FROM tracking_events WHERE domain = ? LIMIT 1`)
	err = client.DB.QueryRowContext(ctx, query, domain).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperr.Operation("count tracking events", err)
	}
	return true, nil
}

func (s *SQLStore) Domains(ctx context.Context) ([]string, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := client.DB.QueryContext(ctx, `SELECT DISTINCT domain FROM tracking_events WHERE domain <> '' ORDER BY domain ASC`)
	if err != nil {
		return nil, apperr.Operation("list domains", err)
	}
	defer rows.Close()

	domains := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, apperr.Operation("scan domain", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Operation("iterate domains", err)
	}
	return domains, nil
}

func (s *SQLStore) SaveChat(ctx context.Context, m *models.ChatMessage) (string, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	query := rebind(client.Dialect, `INSERT INTO chat_history (id, domain, query, response, status, error, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err = client.DB.ExecContext(ctx, query, m.ID, m.Domain, m.Query, m.Response, m.Status, m.Error, m.Timestamp.UnixMilli())
	if err != nil {
		return "", apperr.Operation("insert chat message", err)
	}
	return m.ID, nil
}

func (s *SQLStore) RecentChats(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	query := rebind(client.Dialect, `
		SELECT id, domain, query, response, status, error, timestamp
		FROM chat_history
		ORDER BY timestamp DESC
		LIMIT ?
	`)
	rows, err := client.DB.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, apperr.Operation("query chat history", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m  models.ChatMessage
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.Domain, &m.Query, &m.Response, &m.Status, &m.Error, &ts); err != nil {
			return nil, apperr.Operation("scan chat message", err)
		}
		m.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Operation("iterate chat history", err)
	}
	return out, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return err
	}
	if err := client.DB.PingContext(ctx); err != nil {
		return apperr.Unavailable("ping "+client.Dialect, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}
