package entities

import "errors"

// Domain errors
var (
	// Meeting errors
	ErrMeetingNotFound       = errors.New("meeting not found")
	ErrTranscriptNotReady    = errors.New("transcript not completed")
	ErrStageAlreadyCompleted = errors.New("stage already completed")

	// Queue errors
	ErrInvalidJob = errors.New("invalid job")

	// Recording errors
	ErrUnsupportedRecordingURL = errors.New("unsupported recording url")
	ErrRecordingTooLarge       = errors.New("recording exceeds size limit")
)
