package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobName identifies which stage a queued job runs
type JobName string

const (
	JobNameTranscribe           JobName = "transcribe"
	JobNameAnalyze              JobName = "analyze"
	JobNameUpdateKnowledgeGraph JobName = "update_knowledge_graph"
)

// Stage names one unit of the pipeline
type Stage string

const (
	StageTranscription  Stage = "transcription"
	StageAnalysis       Stage = "analysis"
	StageKnowledgeGraph Stage = "knowledge_graph"
)

// Stage returns the pipeline stage a job drives
func (n JobName) Stage() Stage {
	switch n {
	case JobNameTranscribe:
		return StageTranscription
	case JobNameAnalyze:
		return StageAnalysis
	case JobNameUpdateKnowledgeGraph:
		return StageKnowledgeGraph
	}
	return ""
}

// IsValid reports whether n is a known job name
func (n JobName) IsValid() bool {
	return n.Stage() != ""
}

// Job is the queue payload for one stage invocation
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Name       JobName         `json:"name"`
	MeetingID  uuid.UUID       `json:"meeting_id"`
	Delta      *KnowledgeDelta `json:"delta,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RunAt      time.Time       `json:"run_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// NewJob creates a job that is due immediately
func NewJob(name JobName, meetingID uuid.UUID) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.New(),
		Name:       name,
		MeetingID:  meetingID,
		EnqueuedAt: now,
		RunAt:      now,
	}
}

// Validate checks that the job can be dispatched
func (j *Job) Validate() error {
	if !j.Name.IsValid() {
		return fmt.Errorf("%w: unknown job name %q", ErrInvalidJob, j.Name)
	}
	if j.MeetingID == uuid.Nil {
		return fmt.Errorf("%w: missing meeting id", ErrInvalidJob)
	}
	if j.Name == JobNameUpdateKnowledgeGraph && j.Delta == nil {
		return fmt.Errorf("%w: knowledge graph job without delta", ErrInvalidJob)
	}
	return nil
}

// MarkForRetry bumps the attempt counter and schedules the job after delay
func (j *Job) MarkForRetry(errMsg string, delay time.Duration) {
	j.Attempt++
	j.LastError = errMsg
	j.RunAt = time.Now().UTC().Add(delay)
}
