package entities

import (
	"time"

	"github.com/google/uuid"
)

// ActionItemPriority is the urgency of an action item
type ActionItemPriority string

const (
	ActionItemPriorityHigh   ActionItemPriority = "high"
	ActionItemPriorityMedium ActionItemPriority = "medium"
	ActionItemPriorityLow    ActionItemPriority = "low"
)

// ActionItemStatus tracks progress on an action item
type ActionItemStatus string

const (
	ActionItemStatusPending    ActionItemStatus = "pending"
	ActionItemStatusInProgress ActionItemStatus = "in_progress"
	ActionItemStatusCompleted  ActionItemStatus = "completed"
)

// ParsePriority maps free text onto a known priority, defaulting to medium
func ParsePriority(s string) ActionItemPriority {
	switch ActionItemPriority(s) {
	case ActionItemPriorityHigh, ActionItemPriorityMedium, ActionItemPriorityLow:
		return ActionItemPriority(s)
	}
	return ActionItemPriorityMedium
}

// ActionItem is a task extracted from a meeting's analysis
type ActionItem struct {
	ID           uuid.UUID          `json:"id" gorm:"type:uuid;primary_key"`
	MeetingID    uuid.UUID          `json:"meeting_id" gorm:"type:uuid;not null;index"`
	Task         string             `json:"task" gorm:"type:text;not null"`
	AssigneeName string             `json:"assignee_name,omitempty" gorm:"type:varchar(255)"`
	DueDate      *time.Time         `json:"due_date,omitempty" gorm:"type:date"`
	Priority     ActionItemPriority `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	Status       ActionItemStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (ActionItem) TableName() string {
	return "action_items"
}

// NewActionItem creates a pending action item for a meeting
func NewActionItem(meetingID uuid.UUID, item ActionItemResult) *ActionItem {
	return &ActionItem{
		ID:           uuid.New(),
		MeetingID:    meetingID,
		Task:         item.Task,
		AssigneeName: item.Assignee,
		DueDate:      item.DueDate,
		Priority:     ParsePriority(string(item.Priority)),
		Status:       ActionItemStatusPending,
		CreatedAt:    time.Now(),
	}
}
