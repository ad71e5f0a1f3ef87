package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sketchy/internal/domain"
)

// Timestamps are stored as fixed-width UTC strings so string comparison
// matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    api_key TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    request TEXT NOT NULL,
    result TEXT,
    error TEXT,
    progress TEXT,
    panels_completed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_api_key_created ON jobs (api_key, created_at);
`

const sqliteJobColumns = `id, api_key, status, request, result, error, progress, panels_completed, created_at, updated_at`

// JobRepositorySQLite implements domain.JobRepository on a local SQLite file.
// It is the default backend for single-node deployments and tests.
type JobRepositorySQLite struct {
	db *sql.DB
}

// NewJobRepositorySQLite opens (creating if needed) the database at path.
func NewJobRepositorySQLite(path string) (*JobRepositorySQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY between the claim's read and
	// conditional update.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure jobs schema: %w", err)
	}
	return &JobRepositorySQLite{db: db}, nil
}

func (r *JobRepositorySQLite) Enqueue(ctx context.Context, apiKey string, req domain.ComicRequest) (*domain.Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	id := domain.NewJobID()
	now := time.Now().UTC().Format(sqliteTimeLayout)
	_, err = r.db.ExecContext(ctx, `
INSERT INTO jobs (id, api_key, status, request, created_at, updated_at)
VALUES (?, ?, 'pending', ?, ?, ?)`,
		id, apiKey, string(reqJSON), now, now)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *JobRepositorySQLite) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteJobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanSQLiteJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositorySQLite) ClaimNext(ctx context.Context) (*domain.Job, error) {
	for {
		var id string
		err := r.db.QueryRowContext(ctx, `
SELECT id FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, id ASC LIMIT 1`).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoJob
		}
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC().Format(sqliteTimeLayout)
		res, err := r.db.ExecContext(ctx, `
UPDATE jobs SET status = 'writing_script', updated_at = ? WHERE id = ? AND status = 'pending'`, now, id)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			// Lost the race to a concurrent claimer; try the next pending job.
			continue
		}
		return r.GetByID(ctx, id)
	}
}

func (r *JobRepositorySQLite) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, update domain.StatusUpdate) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{status, time.Now().UTC().Format(sqliteTimeLayout)}
	if update.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, *update.Error)
	}
	if update.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *update.Progress)
	}
	if update.PanelsCompleted != nil {
		sets = append(sets, "panels_completed = ?")
		args = append(args, *update.PanelsCompleted)
	}
	if update.Result != nil {
		resultJSON, err := json.Marshal(update.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		sets = append(sets, "result = ?")
		args = append(args, string(resultJSON))
	}
	args = append(args, jobID)
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("UPDATE jobs SET %s WHERE id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositorySQLite) CountSince(ctx context.Context, apiKey string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT count(*) FROM jobs WHERE api_key = ? AND created_at >= ?`,
		apiKey, since.UTC().Format(sqliteTimeLayout)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *JobRepositorySQLite) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row rowScanner) (*domain.Job, error) {
	var (
		job        domain.Job
		reqJSON    string
		resultJSON sql.NullString
		errMsg     sql.NullString
		progress   sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(
		&job.ID,
		&job.APIKey,
		&job.Status,
		&reqJSON,
		&resultJSON,
		&errMsg,
		&progress,
		&job.PanelsCompleted,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reqJSON), &job.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		job.Result = &domain.ComicResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), job.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	job.Error = errMsg.String
	job.Progress = progress.String
	var err error
	if job.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}
