package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/errors"
	"github.com/johnquangdev/meetingmind/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meetingmind/internal/adapter/presenter"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
)

const defaultDeadLetterLimit = 50

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BucketChecker is satisfied by the object storage client
type BucketChecker interface {
	CheckBucket(ctx context.Context) error
}

// Ops handles health and queue inspection endpoints
type Ops struct {
	db      Pinger
	queue   queue.Queue
	storage BucketChecker
	logger  *zap.Logger
}

// NewOps creates a new ops handler; storage may be nil
func NewOps(db Pinger, q queue.Queue, storage BucketChecker, logger *zap.Logger) *Ops {
	return &Ops{db: db, queue: q, storage: storage, logger: logger}
}

// Health checks the database, the queue and, when configured, object storage
// GET /health
func (h *Ops) Health(c echo.Context) error {
	ctx := c.Request().Context()
	resp := meeting.HealthResponse{
		Status: "ok",
		Checks: map[string]string{},
	}

	check := func(name string, err error) {
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			if h.logger != nil {
				h.logger.Warn("⚠️ Health check failed", zap.String("check", name), zap.Error(err))
			}
			return
		}
		resp.Checks[name] = "ok"
	}

	check("database", h.db.PingContext(ctx))

	depth, err := h.queue.Depth(ctx)
	check("queue", err)
	resp.QueueDepth = depth

	if h.storage != nil {
		check("storage", h.storage.CheckBucket(ctx))
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}

// DeadLetters lists jobs that exhausted their retries, newest first
// GET /v1/queue/dead?limit=50
func (h *Ops) DeadLetters(c echo.Context) error {
	var req meeting.DeadLettersRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	if req.Limit == 0 {
		req.Limit = defaultDeadLetterLimit
	}

	dead, err := h.queue.DeadLetters(c.Request().Context(), req.Limit)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrQueueUnavailable(err))
	}
	return HandleSuccess(h.logger, c, presenter.ToDeadJobListResponse(dead))
}
