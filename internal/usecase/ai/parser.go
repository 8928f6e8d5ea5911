package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

const (
	fallbackSummary  = "Analysis failed to parse."
	neutralScore     = 0.5
	positiveFloor    = 0.6
	negativeCeiling  = 0.4
	dueDateLayout    = "2006-01-02"
	rawPreviewLength = 2000
)

// ResponseParseError carries a model response that could not be turned into a result
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("unparseable model response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// Preview returns the head of the raw response for logging
func (e *ResponseParseError) Preview() string {
	if len(e.Raw) <= rawPreviewLength {
		return e.Raw
	}
	return e.Raw[:rawPreviewLength] + "..."
}

// rawAnalysis mirrors the JSON the model is asked for; pointer fields tell "missing" from zero
type rawAnalysis struct {
	Summary           string          `json:"summary"`
	KeyTopics         []string        `json:"key_topics"`
	ActionItems       []rawActionItem `json:"action_items"`
	Sentiment         *rawSentiment   `json:"sentiment"`
	KeyMoments        []rawKeyMoment  `json:"key_moments"`
	Decisions         []string        `json:"decisions_made"`
	FollowUpQuestions []string        `json:"follow_up_questions"`
	Risks             []string        `json:"risks_identified"`
}

type rawActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"due_date"`
	Priority string `json:"priority"`
}

type rawSentiment struct {
	Score *float64 `json:"score"`
	Label string   `json:"label"`
}

type rawKeyMoment struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
}

// ParseAnalysis turns a model response into a normalized result.
// On any failure it returns FallbackResult together with a *ResponseParseError.
func ParseAnalysis(text string) (*entities.AnalysisResult, error) {
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return FallbackResult(), &ResponseParseError{Raw: text, Err: fmt.Errorf("no JSON object found")}
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return FallbackResult(), &ResponseParseError{Raw: text, Err: err}
	}

	return normalize(raw), nil
}

// FallbackResult is the result stored when the model output cannot be parsed
func FallbackResult() *entities.AnalysisResult {
	return &entities.AnalysisResult{
		Summary:           fallbackSummary,
		KeyTopics:         []string{},
		ActionItems:       []entities.ActionItemResult{},
		Sentiment:         entities.Sentiment{Score: neutralScore, Label: entities.SentimentNeutral},
		TalkTime:          map[string]float64{},
		KeyMoments:        []entities.KeyMoment{},
		Decisions:         []string{},
		FollowUpQuestions: []string{},
		Risks:             []string{},
		KnowledgeDelta: entities.KnowledgeDelta{
			Entities:      []entities.Entity{},
			Relationships: []entities.Relationship{},
		},
	}
}

func normalize(raw rawAnalysis) *entities.AnalysisResult {
	result := FallbackResult()
	result.Summary = strings.TrimSpace(raw.Summary)
	result.KeyTopics = cleanStrings(raw.KeyTopics)
	result.Decisions = cleanStrings(raw.Decisions)
	result.FollowUpQuestions = cleanStrings(raw.FollowUpQuestions)
	result.Risks = cleanStrings(raw.Risks)
	result.Sentiment = normalizeSentiment(raw.Sentiment)

	for _, item := range raw.ActionItems {
		task := strings.TrimSpace(item.Task)
		if task == "" {
			continue
		}
		result.ActionItems = append(result.ActionItems, entities.ActionItemResult{
			Task:     task,
			Assignee: strings.TrimSpace(item.Assignee),
			DueDate:  parseDueDate(item.DueDate),
			Priority: entities.ParsePriority(strings.ToLower(strings.TrimSpace(item.Priority))),
		})
	}

	for _, m := range raw.KeyMoments {
		if strings.TrimSpace(m.Description) == "" {
			continue
		}
		result.KeyMoments = append(result.KeyMoments, entities.KeyMoment{
			Timestamp:   strings.TrimSpace(m.Timestamp),
			Description: strings.TrimSpace(m.Description),
			Importance:  string(entities.ParsePriority(strings.ToLower(strings.TrimSpace(m.Importance)))),
		})
	}

	return result
}

func normalizeSentiment(raw *rawSentiment) entities.Sentiment {
	score := neutralScore
	label := ""
	if raw != nil {
		if raw.Score != nil && !math.IsNaN(*raw.Score) {
			score = math.Max(0, math.Min(1, *raw.Score))
		}
		label = strings.ToLower(strings.TrimSpace(raw.Label))
	}

	switch label {
	case entities.SentimentPositive, entities.SentimentNeutral, entities.SentimentNegative:
	default:
		label = labelForScore(score)
	}
	return entities.Sentiment{Score: score, Label: label}
}

func labelForScore(score float64) string {
	switch {
	case score >= positiveFloor:
		return entities.SentimentPositive
	case score <= negativeCeiling:
		return entities.SentimentNegative
	}
	return entities.SentimentNeutral
}

func parseDueDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(dueDateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractJSONObject returns the first balanced top-level {...} in text that is valid JSON.
// Markdown fences, surrounding prose and brace pairs in that prose are skipped; braces inside strings are ignored.
func ExtractJSONObject(text string) (string, bool) {
	return scanBalanced(text, '{', '}', isJSON)
}

// ExtractJSONArray returns the first balanced top-level [...] in text that is valid JSON
func ExtractJSONArray(text string) (string, bool) {
	return scanBalanced(text, '[', ']', isJSON)
}

func isJSON(candidate string) bool {
	return json.Valid([]byte(candidate))
}

// scanBalanced walks every opening bracket in text and returns the first balanced
// candidate accept agrees to. A rejected candidate moves the scan to the next opening bracket.
func scanBalanced(text string, open, close byte, accept func(string) bool) (string, bool) {
	for start := strings.IndexByte(text, open); start >= 0; {
		if end := matchClose(text, start, open, close); end > 0 {
			if candidate := text[start : end+1]; accept(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchClose returns the index of the bracket closing text[start], or -1
func matchClose(text string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
