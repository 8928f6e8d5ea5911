package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MeetingStatus is the lifecycle status of a meeting
type MeetingStatus string

const (
	MeetingStatusScheduled  MeetingStatus = "scheduled"
	MeetingStatusInProgress MeetingStatus = "in_progress"
	MeetingStatusCompleted  MeetingStatus = "completed"
	MeetingStatusFailed     MeetingStatus = "failed"
)

// StageStatus is the state of one pipeline stage for a meeting
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusProcessing StageStatus = "processing"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
)

// IsValid reports whether s is one of the known stage states
func (s StageStatus) IsValid() bool {
	switch s {
	case StageStatusPending, StageStatusProcessing, StageStatusCompleted, StageStatusFailed:
		return true
	}
	return false
}

// Meeting is the unit of work flowing through the pipeline
type Meeting struct {
	ID               uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	OrganizationID   uuid.UUID     `json:"organization_id" gorm:"type:uuid;not null;index"`
	Title            string        `json:"title" gorm:"type:varchar(255);not null"`
	Status           MeetingStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled'"`
	RecordingURL     string        `json:"recording_url" gorm:"type:text"`
	TranscriptStatus StageStatus   `json:"transcript_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	AnalysisStatus   StageStatus   `json:"analysis_status" gorm:"type:varchar(20);not null;default:'pending';index"`

	// Analysis output
	Summary        string                              `json:"summary,omitempty" gorm:"type:text"`
	KeyTopics      datatypes.JSONSlice[string]         `json:"key_topics,omitempty" gorm:"type:jsonb"`
	SentimentScore *float64                            `json:"sentiment_score,omitempty"`
	SentimentLabel string                              `json:"sentiment_label,omitempty" gorm:"type:varchar(20)"`
	Insights       datatypes.JSONType[MeetingInsights] `json:"insights" gorm:"type:jsonb"`

	LastError *string   `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// MeetingInsights holds the analysis fields that have no column of their own
type MeetingInsights struct {
	KeyMoments        []KeyMoment        `json:"key_moments"`
	Decisions         []string           `json:"decisions"`
	FollowUpQuestions []string           `json:"follow_up_questions"`
	Risks             []string           `json:"risks"`
	TalkTime          map[string]float64 `json:"talk_time"`
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}

// NewMeeting creates a scheduled meeting with both stages pending
func NewMeeting(organizationID uuid.UUID, title, recordingURL string) *Meeting {
	now := time.Now()
	return &Meeting{
		ID:               uuid.New(),
		OrganizationID:   organizationID,
		Title:            title,
		Status:           MeetingStatusScheduled,
		RecordingURL:     recordingURL,
		TranscriptStatus: StageStatusPending,
		AnalysisStatus:   StageStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// TranscriptReady reports whether analysis is allowed to start
func (m *Meeting) TranscriptReady() bool {
	return m.TranscriptStatus == StageStatusCompleted
}

// StageStatusFor returns the status of the named stage
func (m *Meeting) StageStatusFor(stage Stage) StageStatus {
	switch stage {
	case StageTranscription:
		return m.TranscriptStatus
	case StageAnalysis:
		return m.AnalysisStatus
	}
	return ""
}
