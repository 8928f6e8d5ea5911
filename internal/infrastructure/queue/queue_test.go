package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/pkg/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var testOpts = Options{Name: "test", VisibilityTimeout: time.Minute, Retention: time.Hour}

// forEachQueue runs fn against the Redis and in-memory implementations with a controlled clock
func forEachQueue(t *testing.T, fn func(t *testing.T, q Queue, clk *fakeClock)) {
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		clk := &fakeClock{t: time.Now()}
		q := NewRedisQueue(client, testOpts)
		q.now = clk.Now
		fn(t, q, clk)
	})
	t.Run("memory", func(t *testing.T) {
		clk := &fakeClock{t: time.Now()}
		q := NewMemoryQueue(testOpts)
		q.now = clk.Now
		fn(t, q, clk)
	})
}

func newJob(clk *fakeClock, name entities.JobName) *entities.Job {
	j := entities.NewJob(name, uuid.New())
	j.RunAt = clk.Now()
	j.EnqueuedAt = clk.Now()
	return j
}

func TestQueue_EnqueueValidates(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue, clk *fakeClock) {
		err := q.Enqueue(context.Background(), newJob(clk, entities.JobNameUpdateKnowledgeGraph))
		assert.ErrorIs(t, err, entities.ErrInvalidJob)

		depth, err := q.Depth(context.Background())
		require.NoError(t, err)
		assert.Zero(t, depth)
	})
}

func TestQueue_ClaimOrderAndSchedule(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue, clk *fakeClock) {
		ctx := context.Background()

		job, err := q.Claim(ctx)
		require.NoError(t, err)
		assert.Nil(t, job)

		first := newJob(clk, entities.JobNameTranscribe)
		later := newJob(clk, entities.JobNameAnalyze)
		later.RunAt = clk.Now().Add(10 * time.Second)
		kg := newJob(clk, entities.JobNameUpdateKnowledgeGraph)
		kg.RunAt = clk.Now().Add(time.Millisecond)
		kg.Delta = &entities.KnowledgeDelta{Entities: []entities.Entity{{Name: "Budget", Type: entities.EntityTypeTopic}}}

		require.NoError(t, q.Enqueue(ctx, later))
		require.NoError(t, q.Enqueue(ctx, kg))
		require.NoError(t, q.Enqueue(ctx, first))

		depth, err := q.Depth(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, depth)

		got, err := q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)

		got, err = q.Claim(ctx)
		require.NoError(t, err)
		assert.Nil(t, got, "remaining jobs are not due yet")

		clk.Advance(time.Second)
		got, err = q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, kg.ID, got.ID)
		require.NotNil(t, got.Delta)
		assert.Equal(t, "Budget", got.Delta.Entities[0].Name)

		clk.Advance(10 * time.Second)
		got, err = q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, later.ID, got.ID)
	})
}

func TestQueue_StaleLeaseIsRecovered(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue, clk *fakeClock) {
		ctx := context.Background()
		job := newJob(clk, entities.JobNameTranscribe)
		job.Attempt = 2
		require.NoError(t, q.Enqueue(ctx, job))

		claimed, err := q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		n, err := q.RecoverStale(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "lease still valid")

		clk.Advance(testOpts.VisibilityTimeout + time.Second)
		n, err = q.RecoverStale(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		again, err := q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, job.ID, again.ID)
		assert.Equal(t, 2, again.Attempt, "recovery keeps the attempt count")
	})
}

func TestQueue_ExtendKeepsLease(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue, clk *fakeClock) {
		ctx := context.Background()
		job := newJob(clk, entities.JobNameTranscribe)
		require.NoError(t, q.Enqueue(ctx, job))

		claimed, err := q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		// renew twice across what would otherwise be two expiries
		for i := 0; i < 2; i++ {
			clk.Advance(testOpts.VisibilityTimeout / 2)
			held, err := q.Extend(ctx, claimed)
			require.NoError(t, err)
			assert.True(t, held)
		}
		clk.Advance(testOpts.VisibilityTimeout / 2)

		n, err := q.RecoverStale(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "renewed lease is not recovered")

		other, err := q.Claim(ctx)
		require.NoError(t, err)
		assert.Nil(t, other, "a leased job is never handed to a second worker")

		clk.Advance(testOpts.VisibilityTimeout)
		n, err = q.RecoverStale(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		held, err := q.Extend(ctx, claimed)
		require.NoError(t, err)
		assert.False(t, held, "lease was lost to recovery")
	})
}

func TestQueue_RetryReschedules(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue, clk *fakeClock) {
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, newJob(clk, entities.JobNameAnalyze)))

		job, err := q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)

		job.MarkForRetry("llm unavailable", time.Minute)
		job.RunAt = clk.Now().Add(time.Minute)
		require.NoError(t, q.Retry(ctx, job))

		got, err := q.Claim(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)

		n, err := q.RecoverStale(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "retried job no longer holds a lease")

		clk.Advance(time.Minute + time.Second)
		got, err = q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 1, got.Attempt)
		assert.Equal(t, "llm unavailable", got.LastError)
	})
}

func TestQueue_AckAndDeadLetter(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue, clk *fakeClock) {
		ctx := context.Background()
		a := newJob(clk, entities.JobNameTranscribe)
		b := newJob(clk, entities.JobNameAnalyze)
		b.RunAt = a.RunAt.Add(time.Millisecond)
		require.NoError(t, q.Enqueue(ctx, a))
		require.NoError(t, q.Enqueue(ctx, b))

		clk.Advance(time.Second)
		ja, err := q.Claim(ctx)
		require.NoError(t, err)
		jb, err := q.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, ja)
		require.NotNil(t, jb)

		require.NoError(t, q.Ack(ctx, ja))
		require.NoError(t, q.DeadLetter(ctx, jb, "max retries exceeded"))

		clk.Advance(testOpts.VisibilityTimeout * 2)
		n, err := q.RecoverStale(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		depth, err := q.Depth(ctx)
		require.NoError(t, err)
		assert.Zero(t, depth)

		dead, err := q.DeadLetters(ctx, 10)
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, b.ID, dead[0].Job.ID)
		assert.Equal(t, "max retries exceeded", dead[0].Reason)
	})
}

func TestRedisQueue_ExpiredPayloadIsSkipped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := NewRedisQueue(client, testOpts)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, entities.NewJob(entities.JobNameTranscribe, uuid.New())))

	mr.FastForward(testOpts.Retention + time.Second)

	job, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	leased, err := client.ZCard(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, leased)
}

func TestNew(t *testing.T) {
	q, err := New(config.QueueConfig{Backend: "memory", Name: "pipeline"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", q.Name())

	_, err = New(config.QueueConfig{Backend: "redis"}, nil)
	assert.Error(t, err)

	_, err = New(config.QueueConfig{Backend: "kafka"}, nil)
	assert.Error(t, err)
}
