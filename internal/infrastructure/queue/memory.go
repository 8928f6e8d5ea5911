package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

// MemoryQueue is an in-process Queue with the same scheduling and lease rules as RedisQueue.
// Jobs are stored as JSON so a claimed job never aliases the caller's value.
type MemoryQueue struct {
	mu         sync.RWMutex
	opts       Options
	now        func() time.Time
	seq        uint64
	jobs       map[string][]byte
	scheduled  map[string]memoryItem
	processing map[string]time.Time
	dead       []DeadLetter
}

type memoryItem struct {
	runAt time.Time
	seq   uint64
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(opts Options) *MemoryQueue {
	return &MemoryQueue{
		opts:       opts.withDefaults(),
		now:        time.Now,
		jobs:       make(map[string][]byte),
		scheduled:  make(map[string]memoryItem),
		processing: make(map[string]time.Time),
	}
}

func (q *MemoryQueue) Name() string { return q.opts.Name }

func (q *MemoryQueue) Enqueue(_ context.Context, job *entities.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return q.schedule(job)
}

func (q *MemoryQueue) schedule(job *entities.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := job.ID.String()
	q.seq++
	q.jobs[id] = data
	delete(q.processing, id)
	q.scheduled[id] = memoryItem{runAt: job.RunAt, seq: q.seq}
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context) (*entities.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var (
		bestID string
		best   memoryItem
	)
	for id, it := range q.scheduled {
		if it.runAt.After(now) {
			continue
		}
		if bestID == "" || it.runAt.Before(best.runAt) || (it.runAt.Equal(best.runAt) && it.seq < best.seq) {
			bestID, best = id, it
		}
	}
	if bestID == "" {
		return nil, nil
	}

	delete(q.scheduled, bestID)
	q.processing[bestID] = now.Add(q.opts.VisibilityTimeout)

	var job entities.Job
	if err := json.Unmarshal(q.jobs[bestID], &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", bestID, err)
	}
	return &job, nil
}

func (q *MemoryQueue) Extend(_ context.Context, job *entities.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := job.ID.String()
	if _, ok := q.processing[id]; !ok {
		return false, nil
	}
	q.processing[id] = q.now().Add(q.opts.VisibilityTimeout)
	return true, nil
}

func (q *MemoryQueue) Ack(_ context.Context, job *entities.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := job.ID.String()
	delete(q.processing, id)
	delete(q.jobs, id)
	return nil
}

func (q *MemoryQueue) Retry(_ context.Context, job *entities.Job) error {
	return q.schedule(job)
}

func (q *MemoryQueue) DeadLetter(_ context.Context, job *entities.Job, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := job.ID.String()
	delete(q.processing, id)
	delete(q.scheduled, id)
	delete(q.jobs, id)

	q.dead = append([]DeadLetter{{Job: *job, Reason: reason, FailedAt: q.now().UTC()}}, q.dead...)
	if int64(len(q.dead)) > q.opts.MaxDeadLetters {
		q.dead = q.dead[:q.opts.MaxDeadLetters]
	}
	return nil
}

func (q *MemoryQueue) RecoverStale(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	stale := make([]string, 0)
	for id, deadline := range q.processing {
		if !deadline.After(now) {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)

	for _, id := range stale {
		delete(q.processing, id)
		q.seq++
		q.scheduled[id] = memoryItem{runAt: now, seq: q.seq}
	}
	return len(stale), nil
}

func (q *MemoryQueue) Depth(_ context.Context) (int64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return int64(len(q.scheduled)), nil
}

func (q *MemoryQueue) DeadLetters(_ context.Context, limit int) ([]DeadLetter, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if limit > len(q.dead) {
		limit = len(q.dead)
	}
	out := make([]DeadLetter, limit)
	copy(out, q.dead[:limit])
	return out, nil
}

func (q *MemoryQueue) Close() error { return nil }

var _ Queue = (*MemoryQueue)(nil)
