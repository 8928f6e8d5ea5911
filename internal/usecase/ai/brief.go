package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/johnquangdev/meetingmind/internal/domain/repositories"
	pkgai "github.com/johnquangdev/meetingmind/pkg/ai"
)

// PriorMeeting is the slice of a past meeting a brief is built from
type PriorMeeting struct {
	Title       string
	Summary     string
	ActionItems []string
}

// GeneratePreMeetingBrief writes a short brief for an upcoming meeting.
// prior is in chronological order and only its last three entries are used,
// each with at most three action items.
func (a *Analyzer) GeneratePreMeetingBrief(ctx context.Context, title string, participants []string, prior []PriorMeeting) (string, error) {
	if len(prior) > maxBriefMeetings {
		prior = prior[len(prior)-maxBriefMeetings:]
	}

	text, err := a.llm.Complete(ctx, pkgai.LLMRequest{
		System:      briefSystemPrompt,
		Prompt:      buildBriefPrompt(title, participants, prior),
		MaxTokens:   briefMaxTokens,
		Temperature: analysisTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("brief completion: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// LoadPriorMeetings collects the organization's most recent completed meetings
// in chronological order, each with its first few action items.
func LoadPriorMeetings(ctx context.Context, meetings repositories.MeetingRepository, actionItems repositories.ActionItemRepository, organizationID uuid.UUID) ([]PriorMeeting, error) {
	recent, err := meetings.RecentCompleted(ctx, organizationID, uuid.Nil, maxBriefMeetings)
	if err != nil {
		return nil, fmt.Errorf("load recent meetings: %w", err)
	}

	prior := make([]PriorMeeting, 0, len(recent))
	// recent is newest first
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		items, err := actionItems.ListByMeeting(ctx, m.ID, maxBriefActionItems)
		if err != nil {
			return nil, fmt.Errorf("load action items for %s: %w", m.ID, err)
		}
		p := PriorMeeting{Title: m.Title, Summary: m.Summary}
		for _, item := range items {
			p.ActionItems = append(p.ActionItems, item.Task)
		}
		prior = append(prior, p)
	}
	return prior, nil
}
