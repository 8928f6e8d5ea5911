package ai

import (
	"fmt"
	"strings"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

const (
	analysisSystemPrompt = "You are an expert meeting analyst. Always respond with valid JSON."
	briefSystemPrompt    = "You are an expert meeting assistant who prepares people for upcoming meetings."
	quizSystemPrompt     = "You are an expert educator. Always respond with valid JSON."

	analysisTemperature = 0.3
	analysisMaxTokens   = 2000
	briefMaxTokens      = 500
	quizMaxTokens       = 2000

	maxPriorSummaries   = 3
	maxBriefMeetings    = 3
	maxBriefActionItems = 3
)

const analysisSchema = `{
    "summary": "Concise 3-5 sentence summary of the meeting",
    "key_topics": ["topic1", "topic2"],
    "action_items": [
        {
            "task": "description",
            "assignee": "person name or email",
            "due_date": "YYYY-MM-DD or null",
            "priority": "high|medium|low"
        }
    ],
    "sentiment": {
        "score": 0.0,
        "label": "positive|neutral|negative"
    },
    "key_moments": [
        {
            "timestamp": "approximate time or description",
            "description": "what happened",
            "importance": "high|medium|low"
        }
    ],
    "decisions_made": ["decision1"],
    "follow_up_questions": ["question1"],
    "risks_identified": ["risk1"]
}`

const quizSchema = `[
    {
        "question": "question text",
        "type": "multiple_choice",
        "options": ["A", "B", "C", "D"],
        "answer": "correct answer",
        "explanation": "why this is correct"
    }
]`

// FormatTranscript renders segments as "[speaker]: text" lines in the given order
func FormatTranscript(segments []*entities.Transcript) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := seg.SpeakerName
		if speaker == "" {
			speaker = entities.UnknownSpeaker
		}
		fmt.Fprintf(&b, "[%s]: %s", speaker, seg.Text)
	}
	return b.String()
}

func buildAnalysisPrompt(transcript, title string, priorSummaries []string) string {
	var b strings.Builder
	b.WriteString("Analyze the following meeting transcript and provide comprehensive insights.\n\n")
	fmt.Fprintf(&b, "Meeting Title: %s\n", title)

	if len(priorSummaries) > 0 {
		b.WriteString("\nPrevious Meeting Summaries:\n")
		for i, summary := range priorSummaries {
			fmt.Fprintf(&b, "\nMeeting %d:\n%s\n", i+1, summary)
		}
	}

	b.WriteString("\n=== TRANSCRIPT ===\n")
	b.WriteString(transcript)
	b.WriteString("\n=== END TRANSCRIPT ===\n\n")
	b.WriteString("Provide your analysis in JSON format with the following structure:\n\n")
	b.WriteString(analysisSchema)
	b.WriteString("\n\nThe sentiment score is a number between 0.0 and 1.0. Be specific and actionable. Extract exact quotes when relevant.")
	return b.String()
}

func buildBriefPrompt(title string, participants []string, prior []PriorMeeting) string {
	var b strings.Builder
	b.WriteString("Generate a concise pre-meeting brief for:\n\n")
	fmt.Fprintf(&b, "Meeting: %s\n", title)
	fmt.Fprintf(&b, "Participants: %s\n\n", strings.Join(participants, ", "))
	b.WriteString("Previous Meeting Summaries:\n")

	if len(prior) == 0 {
		b.WriteString("\nNone on record.\n")
	}
	for i, m := range prior {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, m.Summary)
		items := m.ActionItems
		if len(items) > maxBriefActionItems {
			items = items[:maxBriefActionItems]
		}
		if len(items) > 0 {
			b.WriteString("   Action Items:\n")
			for _, item := range items {
				fmt.Fprintf(&b, "   - %s\n", item)
			}
		}
	}

	b.WriteString(`
Generate a brief that includes:
1. Context from previous discussions
2. Pending action items
3. Key topics likely to be discussed
4. Questions to consider

Keep it under 200 words.`)
	return b.String()
}

func buildQuizPrompt(transcript string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d quiz questions based on this educational meeting transcript:\n\n", n)
	b.WriteString("=== TRANSCRIPT ===\n")
	b.WriteString(transcript)
	b.WriteString("\n=== END TRANSCRIPT ===\n\n")
	b.WriteString("Return a JSON array of questions. Multiple choice questions carry exactly four options:\n")
	b.WriteString(quizSchema)
	return b.String()
}
