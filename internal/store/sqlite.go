package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adhit-r/fairmind-sub003/internal/model"

	_ "modernc.org/sqlite"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS run_history_cache (
    org_id       TEXT NOT NULL,
    id           TEXT NOT NULL,
    model_path   TEXT,
    dataset_path TEXT,
    target       TEXT,
    status       TEXT,
    summary      BLOB,
    created_at   DATETIME NOT NULL,
    PRIMARY KEY (org_id, id)
)`

const createSummariesTable = `
CREATE TABLE IF NOT EXISTS run_summaries (
    id           TEXT PRIMARY KEY,
    status       TEXT NOT NULL,
    org_id       TEXT,
    model_name   TEXT NOT NULL,
    dataset_kind TEXT,
    failed_stage TEXT,
    error        TEXT,
    duration_ms  INTEGER,
    created_at   DATETIME NOT NULL,
    finished_at  DATETIME
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent across queries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for name, ddl := range map[string]string{
		"run_history_cache": createHistoryTable,
		"run_summaries":     createSummariesTable,
	} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s table: %w", name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CacheHistory replaces the cached history of orgID with entries.
func (s *SQLiteStore) CacheHistory(ctx context.Context, orgID string, entries []model.RunHistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_history_cache WHERE org_id = ?", orgID); err != nil {
		return fmt.Errorf("clear history cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO run_history_cache (
			org_id, id, model_path, dataset_path, target, status, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			orgID, e.ID, e.ModelPath, e.DatasetPath, e.Target, e.Status,
			[]byte(e.Summary), e.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert history entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history cache: %w", err)
	}
	return nil
}

// CachedHistory returns up to limit cached entries for orgID, newest first.
// A limit <= 0 returns every entry.
func (s *SQLiteStore) CachedHistory(ctx context.Context, orgID string, limit int) ([]model.RunHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model_path, dataset_path, target, status, summary, created_at
		FROM run_history_cache WHERE org_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, orgID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history cache: %w", err)
	}
	defer rows.Close()

	entries := []model.RunHistoryEntry{}
	for rows.Next() {
		var (
			e                                   model.RunHistoryEntry
			modelPath, datasetPath, target, sts sql.NullString
			summary                             []byte
		)
		if err := rows.Scan(&e.ID, &modelPath, &datasetPath, &target, &sts, &summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.ModelPath = modelPath.String
		e.DatasetPath = datasetPath.String
		e.Target = target.String
		e.Status = sts.String
		e.OrgID = orgID
		if len(summary) > 0 {
			e.Summary = summary
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history cache: %w", err)
	}
	return entries, nil
}

// CreateRunSummary inserts a summary for a run that has just been accepted.
func (s *SQLiteStore) CreateRunSummary(ctx context.Context, rs *model.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_summaries (
			id, status, org_id, model_name, dataset_kind, failed_stage,
			error, duration_ms, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rs.ID, rs.Status, rs.OrgID, rs.ModelName, rs.DatasetKind, rs.FailedStage,
		rs.Error, rs.DurationMS, rs.CreatedAt.UTC(), rs.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// FinishRunSummary records the terminal state of a running summary.
func (s *SQLiteStore) FinishRunSummary(ctx context.Context, rs *model.RunSummary) error {
	if rs.Status != model.RunStatusSucceeded && rs.Status != model.RunStatusFailed {
		return fmt.Errorf("%w: %q is not terminal", ErrInvalidTransition, rs.Status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE run_summaries SET
			status = ?, dataset_kind = ?, failed_stage = ?, error = ?,
			duration_ms = ?, finished_at = ?
		WHERE id = ? AND status = ?`,
		rs.Status, rs.DatasetKind, rs.FailedStage, rs.Error,
		rs.DurationMS, rs.FinishedAt, rs.ID, model.RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update run summary: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetRunSummary(ctx, rs.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: run %s already finished", ErrInvalidTransition, rs.ID)
	}
	return nil
}

const summaryColumns = `id, status, org_id, model_name, dataset_kind, failed_stage,
	error, duration_ms, created_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*model.RunSummary, error) {
	var (
		rs                                  model.RunSummary
		orgID, datasetKind, failed, errText sql.NullString
		duration                            sql.NullInt64
		finished                            sql.NullTime
	)
	if err := row.Scan(
		&rs.ID, &rs.Status, &orgID, &rs.ModelName, &datasetKind, &failed,
		&errText, &duration, &rs.CreatedAt, &finished,
	); err != nil {
		return nil, err
	}
	rs.OrgID = orgID.String
	rs.DatasetKind = datasetKind.String
	rs.FailedStage = failed.String
	rs.Error = errText.String
	if duration.Valid {
		d := int(duration.Int64)
		rs.DurationMS = &d
	}
	if finished.Valid {
		f := finished.Time
		rs.FinishedAt = &f
	}
	return &rs, nil
}

// GetRunSummary retrieves a run summary by ID.
func (s *SQLiteStore) GetRunSummary(ctx context.Context, id string) (*model.RunSummary, error) {
	rs, err := scanSummary(s.db.QueryRowContext(ctx,
		"SELECT "+summaryColumns+" FROM run_summaries WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run summary: %w", err)
	}
	return rs, nil
}

// ListRunSummaries returns a page of summaries ordered by created_at DESC,
// along with the total count.
func (s *SQLiteStore) ListRunSummaries(ctx context.Context, limit, offset int) ([]*model.RunSummary, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_summaries").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count run summaries: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT "+summaryColumns+" FROM run_summaries ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list run summaries: %w", err)
	}
	defer rows.Close()

	summaries := []*model.RunSummary{}
	for rows.Next() {
		rs, err := scanSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run summary: %w", err)
		}
		summaries = append(summaries, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate run summaries: %w", err)
	}
	return summaries, total, nil
}
