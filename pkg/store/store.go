// Package store persists accepted names and the request log in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/magus-names/magus/pkg/models"
)

// DefaultHistoryLimit caps History when the filter sets no limit.
const DefaultHistoryLimit = 50

// Store records and queries generation history.
type Store interface {
	// RecordNames upserts accepted names; a name already stored for the same
	// culture has its usage count incremented.
	RecordNames(ctx context.Context, names []models.NameRecord) error
	// RecordRequest appends one request log entry.
	RecordRequest(ctx context.Context, rec models.RequestRecord) error
	// History returns stored names, newest first.
	History(ctx context.Context, filter models.HistoryFilter) ([]models.NameRecord, error)
	// Summary aggregates stored names and requests per culture.
	Summary(ctx context.Context) ([]models.CultureSummary, error)
	// Prune deletes names and requests created before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteStore implements Store with a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const createNamesTable = `
CREATE TABLE IF NOT EXISTS generated_names (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	culture TEXT NOT NULL,
	gender TEXT NOT NULL DEFAULT '',
	pronunciation TEXT NOT NULL DEFAULT '',
	syllables TEXT NOT NULL DEFAULT '[]',
	score REAL NOT NULL,
	parameters TEXT NOT NULL DEFAULT '{}',
	usage_count INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(name, culture)
);
CREATE INDEX IF NOT EXISTS idx_names_culture_time ON generated_names(culture, created_at);
CREATE INDEX IF NOT EXISTS idx_names_score ON generated_names(score);
`

const createRequestsTable = `
CREATE TABLE IF NOT EXISTS name_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	culture TEXT NOT NULL,
	gender TEXT NOT NULL DEFAULT '',
	count INTEGER NOT NULL,
	returned INTEGER NOT NULL DEFAULT 0,
	min_score REAL NOT NULL,
	response_time_ms REAL NOT NULL,
	cached INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_requests_culture_time ON name_requests(culture, created_at);
`

// New opens (or creates) the database at dbPath and runs auto-migration.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// a single connection serializes writers from the async recorder
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createNamesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate names table: %w", err)
	}
	if _, err := db.Exec(createRequestsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate requests table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// RecordNames upserts names in one transaction.
func (s *SQLiteStore) RecordNames(ctx context.Context, names []models.NameRecord) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record names: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO generated_names (name, culture, gender, pronunciation, syllables, score, parameters, usage_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		 ON CONFLICT(name, culture) DO UPDATE SET usage_count = usage_count + 1`,
	)
	if err != nil {
		return fmt.Errorf("prepare record names: %w", err)
	}
	defer stmt.Close()

	for _, n := range names {
		syllables, err := json.Marshal(orEmpty(n.Syllables))
		if err != nil {
			return fmt.Errorf("encode syllables: %w", err)
		}
		params, err := json.Marshal(n.Parameters)
		if err != nil {
			return fmt.Errorf("encode parameters: %w", err)
		}
		if n.Parameters == nil {
			params = []byte("{}")
		}
		created := n.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			n.Name, n.Culture, string(n.Gender), n.Pronunciation, string(syllables), n.Score, string(params), created.UTC(),
		); err != nil {
			return fmt.Errorf("record name %q: %w", n.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record names: %w", err)
	}
	return nil
}

// RecordRequest appends a request log entry.
func (s *SQLiteStore) RecordRequest(ctx context.Context, rec models.RequestRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO name_requests (request_id, culture, gender, count, returned, min_score, response_time_ms, cached, success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Culture, string(rec.Gender), rec.Count, rec.Returned, rec.MinScore,
		rec.ResponseTimeMs, rec.Cached, rec.Success, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

// History returns stored names matching filter, newest first.
func (s *SQLiteStore) History(ctx context.Context, filter models.HistoryFilter) ([]models.NameRecord, error) {
	query := `SELECT id, name, culture, gender, pronunciation, syllables, score, parameters, usage_count, created_at
		 FROM generated_names WHERE score >= ?`
	args := []any{filter.MinScore}
	if filter.Culture != "" {
		query += ` AND culture = ?`
		args = append(args, filter.Culture)
	}
	if filter.Gender != models.GenderNone {
		query += ` AND gender = ?`
		args = append(args, string(filter.Gender))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []models.NameRecord
	for rows.Next() {
		var r models.NameRecord
		var gender, syllables, params string
		if err := rows.Scan(&r.ID, &r.Name, &r.Culture, &gender, &r.Pronunciation, &syllables, &r.Score, &params, &r.UsageCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Gender = models.Gender(gender)
		if err := json.Unmarshal([]byte(syllables), &r.Syllables); err != nil {
			return nil, fmt.Errorf("decode syllables for %q: %w", r.Name, err)
		}
		if err := json.Unmarshal([]byte(params), &r.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters for %q: %w", r.Name, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns per-culture aggregates ordered by culture code.
func (s *SQLiteStore) Summary(ctx context.Context) ([]models.CultureSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.culture, COUNT(*), AVG(n.score), SUM(n.usage_count),
			(SELECT COUNT(*) FROM name_requests r WHERE r.culture = n.culture)
		 FROM generated_names n
		 GROUP BY n.culture
		 ORDER BY n.culture`,
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.CultureSummary
	for rows.Next() {
		var cs models.CultureSummary
		if err := rows.Scan(&cs.Culture, &cs.Names, &cs.AvgScore, &cs.TotalUsage, &cs.Requests); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// Prune deletes rows older than before from both tables.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UTC()
	var total int64
	for _, table := range []string{"generated_names", "name_requests"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
