package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DatasetFile is the per-connector analytics dataset name.
const DatasetFile = "ga4.sqlite"

// ErrNoData is returned when no GA4 export exists for a connector.
var ErrNoData = errors.New("No data available. Pull GA4 data first.") //nolint:staticcheck // message is user facing

// ErrNoPageData is returned when the page path export is missing. It matches ErrNoData.
var ErrNoPageData error = &noDataError{msg: "No data available. Pull GA4 page path data first."}

type noDataError struct {
	msg string
}

func (e *noDataError) Error() string { return e.msg }

func (e *noDataError) Is(target error) bool { return target == ErrNoData }

const eventColumns = `date,
	COALESCE(country, '') AS country,
	COALESCE(device_category, '') AS device_category,
	event_name,
	COALESCE(browser, '') AS browser,
	COALESCE(operating_system, '') AS operating_system,
	COALESCE(screen_resolution, '') AS screen_resolution,
	COALESCE(active_users, 0) AS active_users,
	COALESCE(sessions, 0) AS sessions,
	COALESCE(screen_page_views, 0) AS screen_page_views,
	COALESCE(bounce_rate, 0) AS bounce_rate,
	COALESCE(average_session_duration, 0) AS average_session_duration`

// Engine reads GA4 datasets laid out as <baseDir>/<project>/<connector>/ga4.sqlite.
// Datasets are opened read-only per query; it is safe for concurrent use.
type Engine struct {
	baseDir string
}

func NewEngine(baseDir string) *Engine {
	return &Engine{baseDir: baseDir}
}

func (e *Engine) DatasetPath(projectID, connectorID uuid.UUID) string {
	return filepath.Join(e.baseDir, projectID.String(), connectorID.String(), DatasetFile)
}

// HasData reports whether a dataset file exists for the connector.
func (e *Engine) HasData(projectID, connectorID uuid.UUID) bool {
	info, err := os.Stat(e.DatasetPath(projectID, connectorID))
	return err == nil && !info.IsDir()
}

func (e *Engine) open(ctx context.Context, projectID, connectorID uuid.UUID, missing error) (*sqlx.DB, error) {
	if !e.HasData(projectID, connectorID) {
		return nil, missing
	}
	dsn := fmt.Sprintf("file:%s?mode=ro", e.DatasetPath(projectID, connectorID))
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open analytics dataset: %w", err)
	}
	return db, nil
}

func (e *Engine) events(ctx context.Context, projectID, connectorID uuid.UUID, start, end string, where string) ([]EventRow, error) {
	db, err := e.open(ctx, projectID, connectorID, ErrNoData)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `SELECT ` + eventColumns + ` FROM ga4_events WHERE date >= ? AND date <= ?`
	if where != "" {
		query += " AND " + where
	}

	begin := time.Now()
	var rows []EventRow
	if err := db.SelectContext(ctx, &rows, query, start, end); err != nil {
		if isMissingTable(err) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("query ga4 events: %w", err)
	}

	slog.DebugContext(ctx, "loaded ga4 events",
		"project_id", projectID,
		"connector_id", connectorID,
		"rows", len(rows),
		"duration_ms", time.Since(begin).Milliseconds())

	return rows, nil
}

// Funnel returns the conversion funnel for dates in [start, end] (YYYYMMDD).
func (e *Engine) Funnel(ctx context.Context, projectID, connectorID uuid.UUID, dim Dimension, start, end string) ([]FunnelStage, error) {
	rows, err := e.events(ctx, projectID, connectorID, start, end, inClause(funnelEventNames()))
	if err != nil {
		return nil, err
	}
	return ComputeFunnel(rows, dim, start, end), nil
}

func (e *Engine) ScrollDepth(ctx context.Context, projectID, connectorID uuid.UUID, dim Dimension, start, end string) ([]ScrollDepth, error) {
	names := make([]string, 0, len(scrollEvents))
	for name := range scrollEvents {
		names = append(names, name)
	}
	rows, err := e.events(ctx, projectID, connectorID, start, end, inClause(names))
	if err != nil {
		return nil, err
	}
	return ComputeScrollDepth(rows, dim, start, end), nil
}

func (e *Engine) EventNames(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]EventNameCount, error) {
	rows, err := e.events(ctx, projectID, connectorID, start, end, "")
	if err != nil {
		return nil, err
	}
	return ComputeEventNames(rows, start, end), nil
}

func (e *Engine) PagePaths(ctx context.Context, projectID, connectorID uuid.UUID, start, end string) ([]PagePathStats, error) {
	db, err := e.open(ctx, projectID, connectorID, ErrNoPageData)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var rows []PagePathRow
	err = db.SelectContext(ctx, &rows, `
		SELECT date,
		       COALESCE(page_path, '') AS page_path,
		       COALESCE(screen_page_views, 0) AS screen_page_views,
		       COALESCE(total_users, 0) AS total_users,
		       COALESCE(user_engagement_duration, 0) AS user_engagement_duration
		FROM ga4_page_paths
		WHERE date >= ? AND date <= ?`, start, end)
	if err != nil {
		if isMissingTable(err) {
			return nil, ErrNoPageData
		}
		return nil, fmt.Errorf("query ga4 page paths: %w", err)
	}
	return ComputePagePaths(rows, start, end), nil
}

func funnelEventNames() []string {
	names := make([]string, 0, len(funnelStages))
	for name := range funnelStages {
		names = append(names, name)
	}
	return names
}

// inClause renders a constant event_name filter. Names come from package
// tables, never from callers.
func inClause(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "event_name IN (" + strings.Join(quoted, ", ") + ")"
}

func isMissingTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
