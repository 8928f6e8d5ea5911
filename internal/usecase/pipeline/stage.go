package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/metrics"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/notify"
	"github.com/johnquangdev/meetingmind/pkg/jobcontext"
)

// failureWriteTimeout bounds status writes made after the job context is gone
const failureWriteTimeout = 10 * time.Second

// maxLastErrorLength caps the message stored in meetings.last_error
const maxLastErrorLength = 2000

// Progress checkpoints reported while a stage runs
const (
	progressStarted     = 0.05
	progressDownloaded  = 0.2
	progressTranscribed = 0.7
	progressDiarized    = 0.85
	progressDone        = 1.0
)

// outcome is the metrics label for a finished stage run
type outcome = string

const (
	outcomeSuccess = metrics.OutcomeSuccess
	outcomeSkipped = metrics.OutcomeSkipped
	outcomeError   = metrics.OutcomeError
)

// detached returns a context that survives cancellation of ctx, for writing failure state
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
}

func errorMessage(err error) *string {
	msg := err.Error()
	if len(msg) > maxLastErrorLength {
		msg = msg[:maxLastErrorLength]
	}
	return &msg
}

func meetingNotFound(id uuid.UUID) error {
	return jobcontext.Permanent(fmt.Errorf("%w: %s", entities.ErrMeetingNotFound, id))
}

func publish(ctx context.Context, p notify.ProgressPublisher, id uuid.UUID, stage entities.Stage, status entities.StageStatus, progress float64, message string) {
	if p == nil {
		return
	}
	p.Publish(ctx, entities.NewProgressEvent(id, stage, status, progress, message))
}
