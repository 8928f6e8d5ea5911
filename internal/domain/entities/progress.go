package entities

import (
	"time"

	"github.com/google/uuid"
)

// ProgressEvent reports a stage transition or intermediate progress for a meeting
type ProgressEvent struct {
	MeetingID uuid.UUID   `json:"meeting_id"`
	Stage     Stage       `json:"stage"`
	Status    StageStatus `json:"status"`
	Progress  float64     `json:"progress"`
	Message   string      `json:"message,omitempty"`
	At        time.Time   `json:"at"`
}

// NewProgressEvent stamps an event with the current time
func NewProgressEvent(meetingID uuid.UUID, stage Stage, status StageStatus, progress float64, message string) ProgressEvent {
	return ProgressEvent{
		MeetingID: meetingID,
		Stage:     stage,
		Status:    status,
		Progress:  progress,
		Message:   message,
		At:        time.Now().UTC(),
	}
}
