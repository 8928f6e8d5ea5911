package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/pkg/config"
)

// Queue is a durable, at-least-once job queue with delayed retries and a dead letter list
type Queue interface {
	// Enqueue schedules job at job.RunAt
	Enqueue(ctx context.Context, job *entities.Job) error
	// Claim leases the next due job; it returns nil, nil when nothing is due
	Claim(ctx context.Context) (*entities.Job, error)
	// Extend pushes the lease deadline of a claimed job one VisibilityTimeout past now.
	// It reports false when the job is no longer leased, e.g. after RecoverStale took it back.
	Extend(ctx context.Context, job *entities.Job) (bool, error)
	// Ack removes a finished job
	Ack(ctx context.Context, job *entities.Job) error
	// Retry releases the lease and reschedules job at job.RunAt
	Retry(ctx context.Context, job *entities.Job) error
	// DeadLetter removes job from the queue and records it with reason
	DeadLetter(ctx context.Context, job *entities.Job, reason string) error
	// RecoverStale re-queues jobs whose lease expired, keeping their attempt count
	RecoverStale(ctx context.Context) (int, error)
	// Depth counts jobs waiting to be claimed, due or scheduled
	Depth(ctx context.Context) (int64, error)
	// DeadLetters lists the most recent dead jobs first
	DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	Name() string
	Close() error
}

// DeadLetter is a job that exhausted its retries
type DeadLetter struct {
	Job      entities.Job `json:"job"`
	Reason   string       `json:"reason"`
	FailedAt time.Time    `json:"failed_at"`
}

// Options tunes lease and retention behaviour
type Options struct {
	Name              string
	VisibilityTimeout time.Duration
	Retention         time.Duration
	// MaxDeadLetters caps the dead letter list
	MaxDeadLetters int64
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "pipeline"
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = 30 * time.Minute
	}
	if o.Retention <= 0 {
		o.Retention = 7 * 24 * time.Hour
	}
	if o.MaxDeadLetters <= 0 {
		o.MaxDeadLetters = 10000
	}
	return o
}

// OptionsFromConfig maps queue configuration onto Options
func OptionsFromConfig(cfg config.QueueConfig) Options {
	return Options{
		Name:              cfg.Name,
		VisibilityTimeout: cfg.VisibilityTimeout,
		Retention:         cfg.Retention,
	}
}

// New builds the backend selected by cfg.Backend; client may be nil for the memory backend
func New(cfg config.QueueConfig, client *redis.Client) (Queue, error) {
	opts := OptionsFromConfig(cfg)
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("redis queue requires a redis client")
		}
		return NewRedisQueue(client, opts), nil
	case "memory":
		return NewMemoryQueue(opts), nil
	}
	return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
}
