package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/deskstats/aggregate"
)

// ErrReportNotFound is returned when no report has the requested run ID.
var ErrReportNotFound = errors.New("report not found")

// Store archives finished reports using SQLite.
type Store struct {
	db *sql.DB
}

// Summary is the listing view of an archived report.
type Summary struct {
	RunID        uuid.UUID `json:"run_id"`
	Mode         Mode      `json:"mode"`
	TotalHits    int       `json:"total_hits"`
	ArticleCount int       `json:"article_count"`
	MissingCount int       `json:"missing_count"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewStore opens (and if needed creates) the report archive at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the reports table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT PRIMARY KEY,
		mode INTEGER NOT NULL,
		total_hits INTEGER NOT NULL,
		article_count INTEGER NOT NULL,
		missing_pages TEXT NOT NULL,
		result TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a report. Saving the same run again replaces it.
func (s *Store) Save(r *Report) error {
	missing, err := json.Marshal(r.MissingPages)
	if err != nil {
		return fmt.Errorf("failed to marshal missing pages: %w", err)
	}
	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	articleCount := 0
	if r.Result != nil {
		articleCount = r.Result.ArticleCount()
	}

	query := `
		INSERT OR REPLACE INTO reports (
			run_id, mode, total_hits, article_count, missing_pages,
			result, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		r.RunID.String(),
		int(r.Mode),
		r.TotalHits,
		articleCount,
		string(missing),
		string(result),
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// Get retrieves a report by run ID.
func (s *Store) Get(runID uuid.UUID) (*Report, error) {
	query := `
		SELECT run_id, mode, total_hits, missing_pages, result,
		       started_at, finished_at
		FROM reports
		WHERE run_id = ?
	`

	var runIDStr, missingJSON, resultJSON, startedAtStr, finishedAtStr string
	var mode, totalHits int

	err := s.db.QueryRow(query, runID.String()).Scan(
		&runIDStr, &mode, &totalHits, &missingJSON, &resultJSON,
		&startedAtStr, &finishedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	id, err := uuid.Parse(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run ID: %w", err)
	}

	r := &Report{
		RunID:      id,
		Mode:       Mode(mode),
		TotalHits:  totalHits,
		StartedAt:  parseTime(startedAtStr),
		FinishedAt: parseTime(finishedAtStr),
	}
	if err := json.Unmarshal([]byte(missingJSON), &r.MissingPages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal missing pages: %w", err)
	}
	var result aggregate.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	r.Result = &result

	return r, nil
}

// List returns summaries of archived reports, newest first.
func (s *Store) List() ([]Summary, error) {
	query := `
		SELECT run_id, mode, total_hits, article_count, missing_pages, finished_at
		FROM reports
		ORDER BY finished_at DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var runIDStr, missingJSON, finishedAtStr string
		var mode, totalHits, articleCount int

		if err := rows.Scan(&runIDStr, &mode, &totalHits, &articleCount, &missingJSON, &finishedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		id, err := uuid.Parse(runIDStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run ID: %w", err)
		}
		var missing []int
		if err := json.Unmarshal([]byte(missingJSON), &missing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing pages: %w", err)
		}

		summaries = append(summaries, Summary{
			RunID:        id,
			Mode:         Mode(mode),
			TotalHits:    totalHits,
			ArticleCount: articleCount,
			MissingCount: len(missing),
			FinishedAt:   parseTime(finishedAtStr),
		})
	}

	return summaries, rows.Err()
}

// Present implements scheduler.Presenter by archiving the report.
func (s *Store) Present(_ context.Context, r *Report) error {
	return s.Save(r)
}

func formatTime(t time.Time) string {
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}
