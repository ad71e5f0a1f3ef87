package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sketchy/internal/domain"
)

const (
	redisPendingList = "sketchy:jobs:pending"
	redisJobPrefix   = "sketchy:jobs:"
	redisOwnerPrefix = "sketchy:requests:"
)

const redisTimeLayout = "2006-01-02T15:04:05.000000000Z"

// claimScript pops pending ids and performs the pending -> writing_script
// CAS in one atomic step. A list entry is only ever consumed together with a
// successful transition, so a failure between pop and claim cannot strand a
// pending job; stale entries for jobs that already moved on are discarded.
var claimScript = redis.NewScript(`
while true do
    local id = redis.call('LPOP', KEYS[1])
    if not id then
        return false
    end
    local key = ARGV[1] .. id
    if redis.call('HGET', key, 'status') == 'pending' then
        redis.call('HSET', key, 'status', ARGV[2], 'updated_at', ARGV[3])
        return id
    end
end
`)

// JobRepositoryRedis implements domain.JobRepository on Redis. Job records
// live in hashes, pending ids in a list, and per-caller creation times in a
// sorted set for the rate-limit window query.
type JobRepositoryRedis struct {
	rdb *redis.Client
}

// NewJobRepositoryRedis connects using a redis:// URL.
func NewJobRepositoryRedis(ctx context.Context, redisURL string) (*JobRepositoryRedis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &JobRepositoryRedis{rdb: rdb}, nil
}

func (r *JobRepositoryRedis) Enqueue(ctx context.Context, apiKey string, req domain.ComicRequest) (*domain.Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	id := domain.NewJobID()
	now := time.Now().UTC()
	stamp := now.Format(redisTimeLayout)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, redisJobPrefix+id, map[string]any{
		"api_key":          apiKey,
		"status":           string(domain.StatusPending),
		"request":          string(reqJSON),
		"panels_completed": 0,
		"created_at":       stamp,
		"updated_at":       stamp,
	})
	pipe.RPush(ctx, redisPendingList, id)
	pipe.ZAdd(ctx, redisOwnerPrefix+apiKey, redis.Z{Score: float64(now.UnixNano()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *JobRepositoryRedis) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	fields, err := r.rdb.HGetAll(ctx, redisJobPrefix+jobID).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return jobFromRedisHash(jobID, fields)
}

func (r *JobRepositoryRedis) ClaimNext(ctx context.Context) (*domain.Job, error) {
	stamp := time.Now().UTC().Format(redisTimeLayout)
	id, err := claimScript.Run(ctx, r.rdb,
		[]string{redisPendingList},
		redisJobPrefix, string(domain.StatusWritingScript), stamp).Text()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNoJob
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *JobRepositoryRedis) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, update domain.StatusUpdate) error {
	exists, err := r.rdb.Exists(ctx, redisJobPrefix+jobID).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	fields := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC().Format(redisTimeLayout),
	}
	if update.Error != nil {
		fields["error"] = *update.Error
	}
	if update.Progress != nil {
		fields["progress"] = *update.Progress
	}
	if update.PanelsCompleted != nil {
		fields["panels_completed"] = *update.PanelsCompleted
	}
	if update.Result != nil {
		resultJSON, err := json.Marshal(update.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fields["result"] = string(resultJSON)
	}
	return r.rdb.HSet(ctx, redisJobPrefix+jobID, fields).Err()
}

func (r *JobRepositoryRedis) CountSince(ctx context.Context, apiKey string, since time.Time) (int, error) {
	min := strconv.FormatInt(since.UnixNano(), 10)
	count, err := r.rdb.ZCount(ctx, redisOwnerPrefix+apiKey, min, "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *JobRepositoryRedis) Close() error {
	return r.rdb.Close()
}

func jobFromRedisHash(jobID string, fields map[string]string) (*domain.Job, error) {
	job := &domain.Job{
		ID:       jobID,
		APIKey:   fields["api_key"],
		Status:   domain.JobStatus(fields["status"]),
		Error:    fields["error"],
		Progress: fields["progress"],
	}
	if err := json.Unmarshal([]byte(fields["request"]), &job.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if raw := fields["result"]; raw != "" {
		job.Result = &domain.ComicResult{}
		if err := json.Unmarshal([]byte(raw), job.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	if raw := fields["panels_completed"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse panels_completed: %w", err)
		}
		job.PanelsCompleted = n
	}
	var err error
	if job.CreatedAt, err = time.Parse(redisTimeLayout, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(redisTimeLayout, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return job, nil
}
