package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagelens/pagelens/internal/analytics"
	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/event"
)

// PersistedSource reads events and comparison totals from ClickHouse and
// project configuration from Postgres.
type PersistedSource struct {
	conn driver.Conn
	pg   *pgxpool.Pool
}

func NewPersistedSource(cfg config.ClickHouseConfig, pg *pgxpool.Pool) (*PersistedSource, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &PersistedSource{conn: conn, pg: pg}, nil
}

// FetchEvents returns the project's events with created_at >= since in
// ascending time order, the ordering the single-pass aggregation depends
// on.
func (s *PersistedSource) FetchEvents(ctx context.Context, projectID string, since time.Time) ([]event.Event, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT event_name, created_at, user_id, session_id, properties
		FROM events
		WHERE project_id = ? AND created_at >= ?
		ORDER BY created_at ASC
	`, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ErrDataUnavailable, err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			e     event.Event
			props string
		)
		if err := rows.Scan(&e.Name, &e.CreatedAt, &e.UserID, &e.SessionID, &props); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", ErrDataUnavailable, err)
		}
		e.Properties = event.ParseProperties([]byte(props))
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate events: %v", ErrDataUnavailable, err)
	}

	return events, nil
}

// FetchProjectConfig loads the project's analytics settings. A project
// without a row yields a nil config, not an error; aggregation proceeds
// without a goal.
func (s *PersistedSource) FetchProjectConfig(ctx context.Context, projectID string) (*event.ProjectConfig, error) {
	var (
		goal       *string
		goalWindow *int
		defsJSON   []byte
	)
	err := s.pg.QueryRow(ctx, `
		SELECT primary_goal, goal_window_days, event_definitions
		FROM projects
		WHERE id = $1
	`, projectID).Scan(&goal, &goalWindow, &defsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query project config: %v", ErrDataUnavailable, err)
	}

	cfg := &event.ProjectConfig{}
	if goal != nil {
		cfg.PrimaryGoal = *goal
	}
	if goalWindow != nil {
		cfg.GoalWindowDays = *goalWindow
	}
	if len(defsJSON) > 0 {
		// Definitions only affect labeling; a malformed column degrades to
		// raw event names.
		_ = json.Unmarshal(defsJSON, &cfg.EventDefinitions)
	}

	return cfg, nil
}

// FetchComparisonTotals aggregates the preceding window [start, end) in
// ClickHouse, pushing the property filters down as JSON extractions so
// both windows count the same population.
func (s *PersistedSource) FetchComparisonTotals(ctx context.Context, projectID string, start, end time.Time, filters analytics.Filters) (analytics.Totals, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT countIf(event_name = 'page_view') AS page_views,
		       uniqIf(session_id, session_id != '') AS sessions
		FROM events
		WHERE project_id = ? AND created_at >= ? AND created_at < ?
	`)
	args := []interface{}{projectID, start, end}

	for _, f := range filters {
		switch f.Op {
		case analytics.OpEquals:
			sb.WriteString(" AND JSONExtractString(properties, ?) = ?")
		case analytics.OpContains:
			sb.WriteString(" AND position(JSONExtractString(properties, ?), ?) > 0")
		}
		args = append(args, f.Key, f.Value)
	}

	var pageViews, sessions uint64
	if err := s.conn.QueryRow(ctx, sb.String(), args...).Scan(&pageViews, &sessions); err != nil {
		return analytics.Totals{}, fmt.Errorf("%w: query comparison totals: %v", ErrDataUnavailable, err)
	}

	return analytics.Totals{
		Sessions:  int(sessions),
		PageViews: int(pageViews),
	}, nil
}

func (s *PersistedSource) Close() error {
	return s.conn.Close()
}
