// Package queue persists the document text extraction queue.
//
// One row per document. Rows are created when a document is registered
// (outside this service) and mutated here during an extraction attempt:
// the processing lock, the extraction status, the output URI, duration
// and error message. Rows are never deleted — retirement is the
// is_active flag owned by the registration side.
//
// Status values mirror the UI contract: NULL means not started, 0–99 an
// in-progress percentage, 100 complete, -1 failed.
//
// The is_processing flag is the sole guard against duplicate concurrent
// extraction of the same row. TryAcquireLock is a conditional UPDATE —
// a database-level compare-and-set — so the guard holds even when two
// orchestrator instances share the same queue database.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Terminal status values persisted in text_extraction_status.
const (
	StatusFailed   = -1
	StatusComplete = 100
)

// Schema creates the queue table. Pass to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS doc_text_extraction_queue (
    extraction_id          INTEGER PRIMARY KEY,
    doc_id                 TEXT NOT NULL UNIQUE,
    doc_name               TEXT NOT NULL DEFAULT '',
    file_ext               TEXT NOT NULL DEFAULT '.pdf',
    source_uri             TEXT NOT NULL DEFAULT '',
    raw_uri                TEXT NOT NULL DEFAULT '',
    text_uri               TEXT,
    password               TEXT NOT NULL DEFAULT '',
    status                 INTEGER,
    page_count             INTEGER NOT NULL DEFAULT 0,
    extracted_page_count   INTEGER NOT NULL DEFAULT 0,
    duration_seconds       INTEGER NOT NULL DEFAULT 0,
    error_message          TEXT NOT NULL DEFAULT '',
    is_processing          INTEGER NOT NULL DEFAULT 0,
    processing_started_at  INTEGER,                      -- unix seconds
    is_active              INTEGER NOT NULL DEFAULT 1,
    updated_at             INTEGER NOT NULL DEFAULT 0    -- unix seconds
);
CREATE INDEX IF NOT EXISTS idx_queue_processing ON doc_text_extraction_queue (is_processing);
`

// Entry is one row of the extraction queue.
type Entry struct {
	ExtractionID       int64
	DocID              string
	DocName            string
	FileExt            string
	SourceURI          string
	RawURI             string
	TextURI            sql.NullString
	Password           string
	Status             sql.NullInt64
	PageCount          int
	ExtractedPageCount int
	DurationSeconds    int
	ErrorMessage       string
	IsProcessing       bool
	ProcessingStarted  sql.NullInt64 // unix seconds
}

// StatusUpdate is the terminal state persisted after an extraction attempt.
type StatusUpdate struct {
	Status          int
	ExtractedPages  int
	DurationSeconds int
	ErrorMessage    string
	TextURI         string
}

// Repository is the narrow read/update contract the extraction core needs
// against the queue store.
type Repository interface {
	// FetchByIDs returns the active entries matching ids. Unknown or
	// inactive ids are silently absent from the result.
	FetchByIDs(ctx context.Context, ids []int64) ([]Entry, error)

	// TryAcquireLock attempts to set the processing lock on an entry.
	// Returns false without error when the lock is already held.
	TryAcquireLock(ctx context.Context, extractionID int64) (bool, error)

	// ReleaseLock clears the processing lock. Safe to call when not held.
	ReleaseLock(ctx context.Context, extractionID int64) error

	// UpdateStatus persists the terminal state of an extraction attempt.
	UpdateStatus(ctx context.Context, extractionID int64, upd StatusUpdate) error

	// UpdateRawURI records where the source bytes were resolved.
	UpdateRawURI(ctx context.Context, extractionID int64, rawURI string) error
}

// SQLiteRepository implements Repository over a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// New creates a repository handle. Call EnsureTable once at startup unless
// the schema was installed via dbopen.WithSchema.
func New(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// EnsureTable creates the queue table and index if they don't exist.
func (r *SQLiteRepository) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

const entryColumns = `extraction_id, doc_id, doc_name, file_ext, source_uri, raw_uri,
	text_uri, password, status, page_count, extracted_page_count,
	duration_seconds, error_message, is_processing, processing_started_at`

// FetchByIDs returns the active entries matching ids.
func (r *SQLiteRepository) FetchByIDs(ctx context.Context, ids []int64) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM doc_text_extraction_queue
		WHERE extraction_id IN (%s) AND is_active = 1
		ORDER BY extraction_id`, entryColumns, placeholders)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue fetch: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ExtractionID, &e.DocID, &e.DocName, &e.FileExt, &e.SourceURI, &e.RawURI,
			&e.TextURI, &e.Password, &e.Status, &e.PageCount, &e.ExtractedPageCount,
			&e.DurationSeconds, &e.ErrorMessage, &e.IsProcessing, &e.ProcessingStarted,
		); err != nil {
			return nil, fmt.Errorf("queue scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TryAcquireLock atomically flips is_processing from 0 to 1. The WHERE
// clause is the compare-and-set: no row changes when the lock is held.
func (r *SQLiteRepository) TryAcquireLock(ctx context.Context, extractionID int64) (bool, error) {
	now := time.Now().Unix()
	res, err := r.db.ExecContext(ctx, `
		UPDATE doc_text_extraction_queue
		SET is_processing = 1, processing_started_at = ?, updated_at = ?
		WHERE extraction_id = ? AND is_processing = 0 AND is_active = 1`,
		now, now, extractionID)
	if err != nil {
		return false, fmt.Errorf("queue lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseLock clears the processing lock unconditionally.
func (r *SQLiteRepository) ReleaseLock(ctx context.Context, extractionID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE doc_text_extraction_queue
		SET is_processing = 0, processing_started_at = NULL, updated_at = ?
		WHERE extraction_id = ?`,
		time.Now().Unix(), extractionID)
	if err != nil {
		return fmt.Errorf("queue unlock: %w", err)
	}
	return nil
}

// UpdateStatus persists the terminal state of an attempt in one statement.
// An empty TextURI leaves text_uri NULL so status=100 rows always carry a
// non-null text_uri and failed rows never do.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, extractionID int64, upd StatusUpdate) error {
	var textURI any
	if upd.TextURI != "" {
		textURI = upd.TextURI
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE doc_text_extraction_queue
		SET status = ?, extracted_page_count = ?, duration_seconds = ?,
		    error_message = ?, text_uri = ?, updated_at = ?
		WHERE extraction_id = ?`,
		upd.Status, upd.ExtractedPages, upd.DurationSeconds,
		upd.ErrorMessage, textURI, time.Now().Unix(), extractionID)
	if err != nil {
		return fmt.Errorf("queue status update: %w", err)
	}
	return nil
}

// UpdateRawURI records the resolved source location.
func (r *SQLiteRepository) UpdateRawURI(ctx context.Context, extractionID int64, rawURI string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE doc_text_extraction_queue
		SET raw_uri = ?, updated_at = ?
		WHERE extraction_id = ?`,
		rawURI, time.Now().Unix(), extractionID)
	if err != nil {
		return fmt.Errorf("queue raw uri update: %w", err)
	}
	return nil
}
