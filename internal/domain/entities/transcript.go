package entities

import (
	"time"

	"github.com/google/uuid"
)

// UnknownSpeaker labels segments no diarization turn could be matched to
const UnknownSpeaker = "Unknown"

// Transcript is one immutable, timestamped segment of a meeting's speech
type Transcript struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	MeetingID   uuid.UUID `json:"meeting_id" gorm:"type:uuid;not null;index:idx_transcripts_meeting_order,priority:1"`
	SpeakerName string    `json:"speaker_name" gorm:"type:varchar(255)"`
	Text        string    `json:"text" gorm:"type:text;not null"`
	StartTime   float64   `json:"start_time" gorm:"not null;index:idx_transcripts_meeting_order,priority:2"`
	EndTime     float64   `json:"end_time" gorm:"not null"`
	Confidence  float64   `json:"confidence"`
	Sequence    int       `json:"sequence" gorm:"not null;index:idx_transcripts_meeting_order,priority:3"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Transcript) TableName() string {
	return "transcripts"
}

// NewTranscript creates a transcript row. An empty speaker is stored as UnknownSpeaker.
func NewTranscript(meetingID uuid.UUID, sequence int, speaker, text string, start, end, confidence float64) *Transcript {
	if speaker == "" {
		speaker = UnknownSpeaker
	}
	if end < start {
		end = start
	}
	return &Transcript{
		ID:          uuid.New(),
		MeetingID:   meetingID,
		SpeakerName: speaker,
		Text:        text,
		StartTime:   start,
		EndTime:     end,
		Confidence:  confidence,
		Sequence:    sequence,
		CreatedAt:   time.Now(),
	}
}

// Duration returns the segment length in seconds
func (t *Transcript) Duration() float64 {
	if t.EndTime < t.StartTime {
		return 0
	}
	return t.EndTime - t.StartTime
}
