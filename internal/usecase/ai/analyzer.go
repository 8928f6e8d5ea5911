package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	pkgai "github.com/johnquangdev/meetingmind/pkg/ai"
)

// Analyzer produces structured meeting insights, briefs and quizzes from a language model
type Analyzer struct {
	llm    pkgai.LLMClient
	logger *zap.Logger
}

// NewAnalyzer constructs an Analyzer backed by llm
func NewAnalyzer(llm pkgai.LLMClient, logger *zap.Logger) *Analyzer {
	return &Analyzer{llm: llm, logger: logger}
}

// Analyze asks the model for a structured analysis of the transcript.
// Only the first three prior summaries are used as context. A response that
// cannot be parsed yields FallbackResult rather than an error; LLM call errors are returned.
// Talk time and the knowledge delta are not filled in here.
func (a *Analyzer) Analyze(ctx context.Context, segments []*entities.Transcript, title string, priorSummaries []string) (*entities.AnalysisResult, error) {
	if len(priorSummaries) > maxPriorSummaries {
		priorSummaries = priorSummaries[:maxPriorSummaries]
	}

	start := time.Now()
	text, err := a.llm.Complete(ctx, pkgai.LLMRequest{
		System:      analysisSystemPrompt,
		Prompt:      buildAnalysisPrompt(FormatTranscript(segments), title, priorSummaries),
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis completion: %w", err)
	}

	result, perr := ParseAnalysis(text)
	if perr != nil {
		if a.logger != nil {
			a.logger.Warn("⚠️ Analysis response could not be parsed, using fallback",
				zap.String("provider", a.llm.Provider()),
				zap.Error(perr),
			)
			var pe *ResponseParseError
			if errors.As(perr, &pe) {
				a.logParseFailure("analysis", pe)
			}
		}
		return result, nil
	}
	result.TalkTime = ComputeTalkTime(segments)

	if a.logger != nil {
		a.logger.Info("✅ Meeting analyzed",
			zap.String("provider", a.llm.Provider()),
			zap.Int("segments", len(segments)),
			zap.Int("action_items", len(result.ActionItems)),
			zap.Int("topics", len(result.KeyTopics)),
			zap.Duration("took", time.Since(start)),
		)
	}
	return result, nil
}
