package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

// Redis key prefixes
const (
	keyPrefixQueue      = "meetingmind:queue:"      // Scheduled jobs (sorted set by run_at ms)
	keyPrefixProcessing = "meetingmind:processing:" // Leased jobs (sorted set by lease deadline ms)
	keyPrefixJob        = "meetingmind:job:"        // Job payload
	keyPrefixDLQ        = "meetingmind:dlq:"        // Dead letters (list, newest first)
)

// claimScript moves the earliest due job id from the schedule into the lease set
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
	return false
end
redis.call('ZREM', KEYS[1], ids[1])
redis.call('ZADD', KEYS[2], ARGV[2], ids[1])
return ids[1]
`)

// recoverScript puts expired leases back on the schedule as due now
var recoverScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('ZADD', KEYS[1], ARGV[1], id)
end
return #ids
`)

// extendScript moves a lease deadline only while the job is still in the lease set
var extendScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[1], ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], 'XX', ARGV[1], ARGV[2])
return 1
`)

const recoverBatch = 100

// RedisQueue implements Queue using Redis sorted sets and a Lua claim
type RedisQueue struct {
	client *redis.Client
	opts   Options
	now    func() time.Time
}

// NewRedisQueue creates a new Redis-backed queue
func NewRedisQueue(client *redis.Client, opts Options) *RedisQueue {
	return &RedisQueue{client: client, opts: opts.withDefaults(), now: time.Now}
}

func (q *RedisQueue) Name() string { return q.opts.Name }

func (q *RedisQueue) queueKey() string      { return keyPrefixQueue + q.opts.Name }
func (q *RedisQueue) processingKey() string { return keyPrefixProcessing + q.opts.Name }
func (q *RedisQueue) dlqKey() string        { return keyPrefixDLQ + q.opts.Name }
func jobKey(id string) string               { return keyPrefixJob + id }

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

// Enqueue stores the payload and schedules it in one transaction
func (q *RedisQueue) Enqueue(ctx context.Context, job *entities.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	id := job.ID.String()
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKey(id), data, q.opts.Retention)
	pipe.ZAdd(ctx, q.queueKey(), redis.Z{Score: score(job.RunAt), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Claim leases the next due job for VisibilityTimeout
func (q *RedisQueue) Claim(ctx context.Context) (*entities.Job, error) {
	for {
		now := q.now()
		res, err := claimScript.Run(ctx, q.client,
			[]string{q.queueKey(), q.processingKey()},
			score(now), score(now.Add(q.opts.VisibilityTimeout)),
		).Text()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}

		data, err := q.client.Get(ctx, jobKey(res)).Bytes()
		if errors.Is(err, redis.Nil) {
			// payload expired; drop the orphan lease and look again
			q.client.ZRem(ctx, q.processingKey(), res)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get job data: %w", err)
		}

		var job entities.Job
		if err := json.Unmarshal(data, &job); err != nil {
			q.client.ZRem(ctx, q.processingKey(), res)
			return nil, fmt.Errorf("failed to unmarshal job %s: %w", res, err)
		}
		return &job, nil
	}
}

// Extend renews the lease of a claimed job
func (q *RedisQueue) Extend(ctx context.Context, job *entities.Job) (bool, error) {
	id := job.ID.String()
	deadline := score(q.now().Add(q.opts.VisibilityTimeout))
	held, err := extendScript.Run(ctx, q.client, []string{q.processingKey()}, deadline, id).Int()
	if err != nil {
		return false, fmt.Errorf("failed to extend lease: %w", err)
	}
	return held == 1, nil
}

// Ack acknowledges successful processing of a job
func (q *RedisQueue) Ack(ctx context.Context, job *entities.Job) error {
	id := job.ID.String()
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.processingKey(), id)
	pipe.Del(ctx, jobKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Retry stores the updated payload and moves the job back onto the schedule
func (q *RedisQueue) Retry(ctx context.Context, job *entities.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	id := job.ID.String()
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.processingKey(), id)
	pipe.Set(ctx, jobKey(id), data, q.opts.Retention)
	pipe.ZAdd(ctx, q.queueKey(), redis.Z{Score: score(job.RunAt), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}
	return nil
}

// DeadLetter moves a job to the dead letter list
func (q *RedisQueue) DeadLetter(ctx context.Context, job *entities.Job, reason string) error {
	entry, err := json.Marshal(DeadLetter{Job: *job, Reason: reason, FailedAt: q.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	id := job.ID.String()
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.processingKey(), id)
	pipe.ZRem(ctx, q.queueKey(), id)
	pipe.Del(ctx, jobKey(id))
	pipe.LPush(ctx, q.dlqKey(), entry)
	pipe.LTrim(ctx, q.dlqKey(), 0, q.opts.MaxDeadLetters-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move to DLQ: %w", err)
	}
	return nil
}

// RecoverStale re-queues jobs that exceeded their visibility timeout.
// Should be called periodically by a background worker.
func (q *RedisQueue) RecoverStale(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := recoverScript.Run(ctx, q.client,
			[]string{q.queueKey(), q.processingKey()},
			score(q.now()), strconv.Itoa(recoverBatch),
		).Int()
		if err != nil {
			return total, fmt.Errorf("failed to recover stale jobs: %w", err)
		}
		total += n
		if n < recoverBatch {
			return total, nil
		}
	}
}

// Depth returns the number of scheduled jobs
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueKey()).Result()
}

// DeadLetters returns up to limit dead letters, newest first
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := q.client.LRange(ctx, q.dlqKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	out := make([]DeadLetter, 0, len(raw))
	for _, r := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(r), &dl); err != nil {
			continue
		}
		out = append(out, dl)
	}
	return out, nil
}

// Close is a no-op; the redis client is owned by the caller
func (q *RedisQueue) Close() error {
	return nil
}

// Verify interface compliance
var _ Queue = (*RedisQueue)(nil)
