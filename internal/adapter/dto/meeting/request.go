package meeting

// TriggerStageRequest represents the query of a manual re-enqueue
type TriggerStageRequest struct {
	Force bool `query:"force"`
}

// BriefRequest represents the request to generate a pre-meeting brief
type BriefRequest struct {
	OrganizationID string   `json:"organization_id" validate:"required,uuid"`
	Title          string   `json:"title" validate:"required,max=255"`
	Participants   []string `json:"participants" validate:"omitempty,max=50,dive,required"`
}

// QuizRequest represents the request to generate a comprehension quiz
type QuizRequest struct {
	Count int `json:"count" validate:"required,min=1,max=20"`
}

// DeadLettersRequest represents the query for listing dead jobs
type DeadLettersRequest struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
}
