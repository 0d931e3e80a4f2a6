package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the query surface the job and user repositories depend on.
// Tests substitute a scripted executor; production uses SQLRunner.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// ErrMissingMarker is returned for queries whose first line is not a `--sql <uuid>` marker.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

var markerPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// DefaultSlowStatement is the duration above which a statement is logged at
// warn level. Lock and append writes touch one row and should stay far below it.
const DefaultSlowStatement = 250 * time.Millisecond

// SQLRunner runs sqlinline statements on a pool. Every log line carries the
// statement's marker so it can be matched to its constant with a grep.
type SQLRunner struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	slow   time.Duration
}

// NewSQLRunner wraps pool. Statements slower than DefaultSlowStatement are
// reported at warn level.
func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{
		pool:   pool,
		logger: logger.With().Str("component", "sql").Logger(),
		slow:   DefaultSlowStatement,
	}
}

// Exec runs a write. Coordination writes report their outcome through the
// affected row count, which is logged with the marker.
func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, stmt, err := ExtractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("marker", marker).Msg("sql: statement failed")
		return tag, err
	}
	r.observe(marker, start).Int64("rows_affected", tag.RowsAffected()).Msg("sql: statement")
	return tag, nil
}

// QueryRow runs a single-row read or a write with RETURNING. Scan errors
// other than no rows are logged against the marker.
func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, stmt, err := ExtractMarker(query)
	if err != nil {
		return failedRow{err: err}
	}
	return markedRow{
		row:    r.pool.QueryRow(ctx, stmt, args...),
		runner: r,
		marker: marker,
		start:  time.Now(),
	}
}

// Query runs a multi-row read such as the recovery listing.
func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, stmt, err := ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("marker", marker).Msg("sql: query failed")
		return nil, err
	}
	return markedRows{Rows: rows, runner: r, marker: marker, start: start}, nil
}

func (r *SQLRunner) observe(marker string, start time.Time) *zerolog.Event {
	took := time.Since(start)
	event := r.logger.Debug()
	if took > r.slow {
		event = r.logger.Warn().Bool("slow", true)
	}
	return event.Str("marker", marker).Dur("took", took)
}

// IsNoRows reports whether err means the statement matched nothing, which
// for conditional writes with RETURNING means the condition did not hold.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type markedRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

func (m markedRow) Scan(dest ...any) error {
	err := m.row.Scan(dest...)
	switch {
	case err == nil:
		m.runner.observe(m.marker, m.start).Bool("matched", true).Msg("sql: row")
	case IsNoRows(err):
		m.runner.observe(m.marker, m.start).Bool("matched", false).Msg("sql: row")
	default:
		m.runner.logger.Error().Err(err).Str("marker", m.marker).Msg("sql: scan failed")
	}
	return err
}

type markedRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
}

func (m markedRows) Close() {
	m.Rows.Close()
	if err := m.Rows.Err(); err != nil {
		m.runner.logger.Error().Err(err).Str("marker", m.marker).Msg("sql: rows failed")
		return
	}
	m.runner.observe(m.marker, m.start).Msg("sql: rows")
}

type failedRow struct {
	err error
}

func (f failedRow) Scan(...any) error {
	return f.err
}

// ExtractMarker splits a query into its marker id and the statement below it.
func ExtractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	head, stmt, _ := strings.Cut(trimmed, "\n")
	id, ok := strings.CutPrefix(strings.TrimSpace(head), "--sql ")
	if !ok || !markerPattern.MatchString(id) {
		return "", "", ErrMissingMarker
	}
	return id, stmt, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
