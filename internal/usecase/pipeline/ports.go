package pipeline

import (
	"context"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/storage"
)

// RecordingResolver downloads a recording into a local file
type RecordingResolver interface {
	Resolve(ctx context.Context, rawURL string) (*storage.Recording, error)
}

// AudioEnhancer produces a cleaned copy of an audio file.
// cleanup removes the copy and must be called once the output is no longer needed.
type AudioEnhancer interface {
	Enhance(ctx context.Context, inputPath string) (outputPath string, cleanup func(), err error)
}

// MeetingAnalyzer produces the structured analysis of a transcript
type MeetingAnalyzer interface {
	Analyze(ctx context.Context, segments []*entities.Transcript, title string, priorSummaries []string) (*entities.AnalysisResult, error)
}
