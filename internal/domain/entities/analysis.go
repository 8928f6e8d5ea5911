package entities

import "time"

// Sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Knowledge graph entity types produced by the base analyzer
const (
	EntityTypeTopic    = "topic"
	EntityTypeDecision = "decision"
)

// AnalysisResult is the structured output of one analysis run
type AnalysisResult struct {
	Summary           string             `json:"summary"`
	KeyTopics         []string           `json:"key_topics"`
	ActionItems       []ActionItemResult `json:"action_items"`
	Sentiment         Sentiment          `json:"sentiment"`
	TalkTime          map[string]float64 `json:"talk_time_analysis"`
	KeyMoments        []KeyMoment        `json:"key_moments"`
	Decisions         []string           `json:"decisions_made"`
	FollowUpQuestions []string           `json:"follow_up_questions"`
	Risks             []string           `json:"risks_identified"`
	KnowledgeDelta    KnowledgeDelta     `json:"knowledge_delta"`
}

// ActionItemResult is an action item as returned by the analyzer
type ActionItemResult struct {
	Task     string             `json:"task"`
	Assignee string             `json:"assignee,omitempty"`
	DueDate  *time.Time         `json:"due_date,omitempty"`
	Priority ActionItemPriority `json:"priority"`
}

// Sentiment is an overall score in [0,1] plus its label
type Sentiment struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// KeyMoment marks a notable point in the meeting
type KeyMoment struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
}

// KnowledgeDelta is the set of graph changes an analysis run proposes
type KnowledgeDelta struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// IsEmpty reports whether the delta carries nothing to merge
func (d KnowledgeDelta) IsEmpty() bool {
	return len(d.Entities) == 0 && len(d.Relationships) == 0
}

// Entity is a candidate knowledge node
type Entity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Relationship is a candidate knowledge edge between two entities
type Relationship struct {
	Source   Entity  `json:"source"`
	Target   Entity  `json:"target"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength,omitempty"`
}

// Insights extracts the fields stored in Meeting.Insights
func (r *AnalysisResult) Insights() MeetingInsights {
	return MeetingInsights{
		KeyMoments:        r.KeyMoments,
		Decisions:         r.Decisions,
		FollowUpQuestions: r.FollowUpQuestions,
		Risks:             r.Risks,
		TalkTime:          r.TalkTime,
	}
}
