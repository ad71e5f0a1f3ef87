package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sketchy/internal/domain"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    api_key TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    request JSONB NOT NULL,
    result JSONB,
    error TEXT,
    progress TEXT,
    panels_completed INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_api_key_created ON jobs (api_key, created_at);
`

const pgJobColumns = `id, api_key, status, request, result, error, progress, panels_completed, created_at, updated_at`

// Claims are conditioned on the row still being pending, so concurrent
// claimers observe at most one winner per job. SKIP LOCKED keeps multiple
// claim loops from serializing on the same row.
const pgClaimNext = `
WITH next_job AS (
    SELECT id
    FROM jobs
    WHERE status = 'pending'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
UPDATE jobs
SET status = 'writing_script', updated_at = now()
WHERE id IN (SELECT id FROM next_job) AND status = 'pending'
RETURNING ` + pgJobColumns + `;
`

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepositoryPG creates the repository and ensures the jobs table exists.
func NewJobRepositoryPG(ctx context.Context, pool *pgxpool.Pool) (*JobRepositoryPG, error) {
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("ensure jobs schema: %w", err)
	}
	return &JobRepositoryPG{pool: pool}, nil
}

func (r *JobRepositoryPG) Enqueue(ctx context.Context, apiKey string, req domain.ComicRequest) (*domain.Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	query := `
INSERT INTO jobs (id, api_key, status, request)
VALUES ($1, $2, 'pending', $3)
RETURNING ` + pgJobColumns + `;
`
	row := r.pool.QueryRow(ctx, query, domain.NewJobID(), apiKey, reqJSON)
	return scanPGJob(row)
}

func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + pgJobColumns + ` FROM jobs WHERE id = $1;`
	job, err := scanPGJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositoryPG) ClaimNext(ctx context.Context) (*domain.Job, error) {
	job, err := scanPGJob(r.pool.QueryRow(ctx, pgClaimNext))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoJob
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, update domain.StatusUpdate) error {
	sets := []string{"status = $1", "updated_at = now()"}
	args := []any{status}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Error != nil {
		add("error", *update.Error)
	}
	if update.Progress != nil {
		add("progress", *update.Progress)
	}
	if update.PanelsCompleted != nil {
		add("panels_completed", *update.PanelsCompleted)
	}
	if update.Result != nil {
		resultJSON, err := json.Marshal(update.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		add("result", resultJSON)
	}
	args = append(args, jobID)
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $%d;", strings.Join(sets, ", "), len(args))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryPG) CountSince(ctx context.Context, apiKey string, since time.Time) (int, error) {
	var count int
	query := `SELECT count(*) FROM jobs WHERE api_key = $1 AND created_at >= $2;`
	if err := r.pool.QueryRow(ctx, query, apiKey, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *JobRepositoryPG) Close() error {
	r.pool.Close()
	return nil
}

func scanPGJob(row pgx.Row) (*domain.Job, error) {
	var (
		job        domain.Job
		reqJSON    []byte
		resultJSON []byte
		errMsg     *string
		progress   *string
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
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(reqJSON, &job.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if len(resultJSON) > 0 {
		job.Result = &domain.ComicResult{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	if progress != nil {
		job.Progress = *progress
	}
	return &job, nil
}
