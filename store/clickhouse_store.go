// api/store/clickhouse_store.go
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sitepulse/api/apperr"
	"sitepulse/api/config"
	"sitepulse/api/database"
	"sitepulse/api/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS tracking_events (
		id                String,
		ip_address        String,
		domain            String,
		page_path         String,
		page_title        String,
		user_agent        String,
		device_type       LowCardinality(String),
		device_browser    LowCardinality(String),
		device_os         LowCardinality(String),
		referrer          String,
		language          LowCardinality(String),
		screen_resolution String,
		country           LowCardinality(String),
		city              String,
		timestamp         DateTime64(3, 'UTC'),
		session_id        String,
		session_start     DateTime64(3, 'UTC'),
		session_end       Nullable(DateTime64(3, 'UTC')),
		session_duration  Nullable(Float64),
		is_session_end    Bool,
		is_page_change    Bool,
		page_duration     Float64,
		page_view_count   Int64
	) ENGINE = MergeTree ORDER BY (domain, timestamp)`,
	`CREATE TABLE IF NOT EXISTS chat_history (
		id        String,
		domain    String,
		query     String,
		response  String,
		status    Bool,
		error     String,
		timestamp DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY timestamp`,
}

const clickhouseEventColumns = `id, ip_address, domain, page_path, page_title, user_agent,
	device_type, device_browser, device_os, referrer, language, screen_resolution,
	country, city, timestamp, session_id, session_start, session_end, session_duration,
	is_session_end, is_page_change, page_duration, page_view_count`

type ClickHouseStore struct {
	conn *database.Lazy[*database.ClickHouseClient]
	log  *zap.Logger
}

func NewClickHouseStore(cfg config.ClickHouseConfig, log *zap.Logger) *ClickHouseStore {
	return &ClickHouseStore{
		conn: database.NewLazy("clickhouse", func(ctx context.Context) (*database.ClickHouseClient, error) {
			client, err := database.NewClickHouseDB(ctx, cfg, log)
			if err != nil {
				return nil, err
			}
			for _, stmt := range clickhouseSchema {
				if err := client.Conn.Exec(ctx, stmt); err != nil {
					client.Close()
					return nil, fmt.Errorf("init clickhouse schema: %w", err)
				}
			}
			return client, nil
		}, (*database.ClickHouseClient).Close),
		log: log,
	}
}

func (s *ClickHouseStore) Insert(ctx context.Context, e *models.TrackingEvent) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.insertEvents(ctx, []models.TrackingEvent{*e}); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (s *ClickHouseStore) InsertMany(ctx context.Context, events []models.TrackingEvent) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
	}
	return s.insertEvents(ctx, events)
}

func (s *ClickHouseStore) insertEvents(ctx context.Context, events []models.TrackingEvent) error {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return err
	}

	batch, err := client.Conn.PrepareBatch(ctx, "INSERT INTO tracking_events ("+clickhouseEventColumns+")")
	if err != nil {
		return apperr.Operation("prepare tracking batch", err)
	}
	for _, e := range events {
		err := batch.Append(
			e.ID,
			e.IPAddress,
			e.Domain,
			e.PagePath,
			e.PageTitle,
			e.UserAgent,
			e.DeviceType,
			e.DeviceBrowser,
			e.DeviceOS,
			e.Referrer,
			e.Language,
			e.ScreenResolution,
			e.Country,
			e.City,
			e.Timestamp,
			e.SessionID,
			e.SessionStart,
			e.SessionEnd,
			e.SessionDuration,
			e.IsSessionEnd,
			e.IsPageChange,
			e.PageDuration,
			int64(e.PageViewCount),
		)
		if err != nil {
			_ = batch.Abort()
			return apperr.Operation("append tracking event", err)
		}
	}
	if err := batch.Send(); err != nil {
		return apperr.Operation("send tracking batch", err)
	}
	return nil
}

func (s *ClickHouseStore) FindByDomain(ctx context.Context, domain string, f models.EventFilter) ([]models.TrackingEvent, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	where, args := eventWhere(domain, f, false)
	query := fmt.Sprintf(`
		SELECT %s
		FROM tracking_events
		WHERE %s
		ORDER BY timestamp ASC
	`, clickhouseEventColumns, where)

	rows, err := client.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Operation("query tracking events", err)
	}
	defer rows.Close()

	var events []models.TrackingEvent
	for rows.Next() {
		var (
			e     models.TrackingEvent
			views int64
		)
		if err := rows.Scan(
			&e.ID, &e.IPAddress, &e.Domain, &e.PagePath, &e.PageTitle, &e.UserAgent,
			&e.DeviceType, &e.DeviceBrowser, &e.DeviceOS, &e.Referrer, &e.Language, &e.ScreenResolution,
			&e.Country, &e.City, &e.Timestamp, &e.SessionID, &e.SessionStart, &e.SessionEnd, &e.SessionDuration,
			&e.IsSessionEnd, &e.IsPageChange, &e.PageDuration, &views,
		); err != nil {
			return nil, apperr.Operation("scan tracking event", err)
		}
		e.PageViewCount = int(views)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Operation("iterate tracking events", err)
	}
	return events, nil
}

func (s *ClickHouseStore) HasDomain(ctx context.Context, domain string) (bool, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return false, err
	}
	var n uint64
	if err := client.Conn.QueryRow(ctx, `SELECT count() FROM tracking_events WHERE domain = ?`, domain).Scan(&n); err != nil {
		return false, apperr.Operation("count tracking events", err)
	}
	return n > 0, nil
}

func (s *ClickHouseStore) Domains(ctx context.Context) ([]string, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := client.Conn.Query(ctx, `SELECT DISTINCT domain FROM tracking_events WHERE domain != '' ORDER BY domain ASC`)
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

func (s *ClickHouseStore) SaveChat(ctx context.Context, m *models.ChatMessage) (string, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err = client.Conn.Exec(ctx,
		`INSERT INTO chat_history (id, domain, query, response, status, error, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Domain, m.Query, m.Response, m.Status, m.Error, m.Timestamp,
	)
	if err != nil {
		return "", apperr.Operation("insert chat message", err)
	}
	return m.ID, nil
}

func (s *ClickHouseStore) RecentChats(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := client.Conn.Query(ctx, `
		SELECT id, domain, query, response, status, error, timestamp
		FROM chat_history
		ORDER BY timestamp DESC
		LIMIT ?
	`, uint64(clampLimit(limit)))
	if err != nil {
		return nil, apperr.Operation("query chat history", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.Domain, &m.Query, &m.Response, &m.Status, &m.Error, &m.Timestamp); err != nil {
			return nil, apperr.Operation("scan chat message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Operation("iterate chat history", err)
	}
	return out, nil
}

func (s *ClickHouseStore) Ping(ctx context.Context) error {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return err
	}
	if err := client.Conn.Ping(ctx); err != nil {
		return apperr.Unavailable("ping clickhouse", err)
	}
	return nil
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

// eventWhere renders the domain predicate and filter with `?` placeholders.
// With millis set, time bounds are passed as epoch milliseconds.
func eventWhere(domain string, f models.EventFilter, millis bool) (string, []interface{}) {
	clauses := []string{"domain = ?"}
	args := []interface{}{domain}
	timeArg := func(t time.Time) interface{} {
		if millis {
			return t.UnixMilli()
		}
		return t
	}
	if f.From != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, timeArg(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, timeArg(*f.To))
	}
	if f.DeviceType != "" {
		clauses = append(clauses, "device_type = ?")
		args = append(args, f.DeviceType)
	}
	if f.Browser != "" {
		clauses = append(clauses, "device_browser = ?")
		args = append(args, f.Browser)
	}
	if f.OS != "" {
		clauses = append(clauses, "device_os = ?")
		args = append(args, f.OS)
	}
	if f.PagePath != "" {
		clauses = append(clauses, "page_path = ?")
		args = append(args, f.PagePath)
	}
	return strings.Join(clauses, " AND "), args
}
