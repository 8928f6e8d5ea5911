package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	pkgai "github.com/johnquangdev/meetingmind/pkg/ai"
)

// DefaultQuizQuestions is used when the caller asks for zero or fewer questions
const DefaultQuizQuestions = 5

// QuizQuestion is one generated comprehension question
type QuizQuestion struct {
	Question    string   `json:"question"`
	Type        string   `json:"type,omitempty"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// GenerateQuiz asks the model for n questions about the transcript.
// An unparseable response yields an empty list and no error; at most n questions are returned.
func (a *Analyzer) GenerateQuiz(ctx context.Context, transcriptText string, n int) ([]QuizQuestion, error) {
	if n <= 0 {
		n = DefaultQuizQuestions
	}

	text, err := a.llm.Complete(ctx, pkgai.LLMRequest{
		System:      quizSystemPrompt,
		Prompt:      buildQuizPrompt(transcriptText, n),
		MaxTokens:   quizMaxTokens,
		Temperature: analysisTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("quiz completion: %w", err)
	}

	questions, err := parseQuiz(text)
	if err != nil {
		a.logParseFailure("quiz", &ResponseParseError{Raw: text, Err: err})
		return []QuizQuestion{}, nil
	}

	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

// parseQuiz decodes the first embedded array that holds quiz questions.
// Arrays of another shape, such as "[1]" in the surrounding prose, are skipped.
func parseQuiz(text string) ([]QuizQuestion, error) {
	var questions []QuizQuestion
	_, ok := scanBalanced(text, '[', ']', func(candidate string) bool {
		var decoded []QuizQuestion
		if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
			return false
		}
		questions = decoded
		return true
	})
	if !ok {
		return nil, fmt.Errorf("no JSON array of questions found")
	}
	if questions == nil {
		questions = []QuizQuestion{}
	}
	return questions, nil
}

func (a *Analyzer) logParseFailure(kind string, err *ResponseParseError) {
	if a.logger == nil {
		return
	}
	a.logger.Debug("unparseable model response",
		zap.String("kind", kind),
		zap.Error(err),
		zap.String("response", err.Preview()),
	)
}
