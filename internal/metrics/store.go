// Package metrics persists AI extraction telemetry to SQLite: which
// model ran, how many attempts the retry policy burned, token counts,
// and latency. The data feeds the usage report and cost tracking.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"recipe-book/internal/llm"
)

// ExtractionMetric records metadata for a single extraction run.
type ExtractionMetric struct {
	Source           string // "photo" or "url"
	Model            string
	PromptTokens     int
	CompletionTokens int
	Attempts         int
	Success          bool
	LatencyMS        int64
	Timestamp        time.Time
}

// sqliteTime is the text layout SQLite's date functions understand.
// Timestamps are always bound pre-formatted; binding a raw time.Time
// would store a representation date() cannot parse.
const sqliteTime = "2006-01-02 15:04:05"

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExtractionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_metrics
			(source, model, prompt_tokens, completion_tokens, attempts, success, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Source, m.Model, m.PromptTokens, m.CompletionTokens,
		m.Attempts, m.Success, m.LatencyMS, ts.UTC().Format(sqliteTime),
	)
	return err
}

// DailyUsage represents extraction totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalRuns       int
	FailedRuns      int
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(sqliteTime)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day,
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0)
		FROM extraction_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.TotalPrompt, &u.TotalCompletion, &u.TotalRuns, &u.FailedRuns); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(sqliteTime)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM extraction_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MapUsage converts token usage from an extraction run to a metric.
func MapUsage(source string, usage llm.TokenUsage, attempts int, latency time.Duration, success bool) ExtractionMetric {
	return ExtractionMetric{
		Source:           source,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Attempts:         attempts,
		Success:          success,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}
