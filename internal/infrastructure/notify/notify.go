package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

// ChannelPrefix prefixes the per-meeting pub/sub channel
const ChannelPrefix = "meetingmind:progress:"

// ProgressPublisher delivers progress events. Publishing never fails a stage.
type ProgressPublisher interface {
	Publish(ctx context.Context, event entities.ProgressEvent)
}

// Channel returns the pub/sub channel for a meeting
func Channel(meetingID uuid.UUID) string {
	return ChannelPrefix + meetingID.String()
}

// RedisPublisher publishes events as JSON on a per-meeting Redis channel
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a Redis pub/sub publisher
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, event entities.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("⚠️ Failed to encode progress event", zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, Channel(event.MeetingID), data).Err(); err != nil {
		p.logger.Warn("⚠️ Failed to publish progress event",
			zap.String("meeting_id", event.MeetingID.String()),
			zap.String("stage", string(event.Stage)),
			zap.Error(err),
		)
	}
}

// ChannelPublisher buffers events in memory and drops them when the buffer is full
type ChannelPublisher struct {
	events  chan entities.ProgressEvent
	mu      sync.Mutex
	dropped int
}

// NewChannelPublisher creates a publisher with room for size events
func NewChannelPublisher(size int) *ChannelPublisher {
	if size <= 0 {
		size = 64
	}
	return &ChannelPublisher{events: make(chan entities.ProgressEvent, size)}
}

func (p *ChannelPublisher) Publish(_ context.Context, event entities.ProgressEvent) {
	select {
	case p.events <- event:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

// Events returns the receive side of the buffer
func (p *ChannelPublisher) Events() <-chan entities.ProgressEvent {
	return p.events
}

// Dropped returns how many events were discarded because the buffer was full
func (p *ChannelPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, entities.ProgressEvent) {}

var (
	_ ProgressPublisher = (*RedisPublisher)(nil)
	_ ProgressPublisher = (*ChannelPublisher)(nil)
	_ ProgressPublisher = NopPublisher{}
)
