package meeting

import "time"

// StatusResponse represents the pipeline state of a meeting
type StatusResponse struct {
	MeetingID        string            `json:"meeting_id"`
	Title            string            `json:"title"`
	Status           string            `json:"status"`
	TranscriptStatus string            `json:"transcript_status"`
	AnalysisStatus   string            `json:"analysis_status"`
	LastError        *string           `json:"last_error,omitempty"`
	DeadJobs         []DeadJobResponse `json:"dead_jobs"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// EnqueueResponse represents an accepted manual re-enqueue
type EnqueueResponse struct {
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name"`
	MeetingID string    `json:"meeting_id"`
	RunAt     time.Time `json:"run_at"`
}

// BriefResponse represents a generated pre-meeting brief
type BriefResponse struct {
	Brief         string `json:"brief"`
	PriorMeetings int    `json:"prior_meetings"`
}

// QuizQuestionResponse represents one generated quiz question
type QuizQuestionResponse struct {
	Question    string   `json:"question"`
	Type        string   `json:"type"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// QuizResponse represents a generated quiz
type QuizResponse struct {
	MeetingID string                 `json:"meeting_id"`
	Questions []QuizQuestionResponse `json:"questions"`
}

// DeadJobResponse represents a job that exhausted its retries
type DeadJobResponse struct {
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name"`
	MeetingID string    `json:"meeting_id"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

// HealthResponse represents the result of the dependency checks
type HealthResponse struct {
	Status     string            `json:"status"`
	QueueDepth int64             `json:"queue_depth"`
	Checks     map[string]string `json:"checks"`
}
