package ai

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/pkg/config"
)

// Transcription backends
const (
	BackendOpenAI     = "openai"
	BackendAssemblyAI = "assemblyai"
	BackendLocal      = "local"
)

// Segment is one timestamped span of transcribed speech
type Segment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence"`
}

// TranscribeOptions tunes a single transcription call
type TranscribeOptions struct {
	// Language is an ISO code, or "auto"/"" for detection
	Language string
}

// Transcriber converts one audio file into segments ordered by start time
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) ([]Segment, error)
}

// NewTranscriber returns the backend selected by cfg.Backend
func NewTranscriber(cfg config.TranscriptionConfig, logger *zap.Logger) (Transcriber, error) {
	switch cfg.Backend {
	case BackendOpenAI:
		return NewOpenAITranscriber(cfg), nil
	case BackendAssemblyAI:
		return NewAssemblyAITranscriber(cfg), nil
	case BackendLocal:
		return NewLocalTranscriber(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
}

// CloseTranscriber releases whatever t holds open, such as the local helper process.
// Backends without resources are left alone.
func CloseTranscriber(t Transcriber) error {
	if c, ok := t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func languageParam(lang string) string {
	if lang == "auto" {
		return ""
	}
	return lang
}
