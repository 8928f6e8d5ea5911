package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"

	"github.com/johnquangdev/meetingmind/pkg/config"
)

// AssemblyAITranscriber uploads audio to AssemblyAI and waits for a speaker-labelled transcript
type AssemblyAITranscriber struct {
	client   *aai.Client
	language string
}

// NewAssemblyAITranscriber creates an SDK backed transcriber
func NewAssemblyAITranscriber(cfg config.TranscriptionConfig) *AssemblyAITranscriber {
	return &AssemblyAITranscriber{
		client:   aai.NewClient(cfg.AssemblyAIAPIKey),
		language: cfg.Language,
	}
}

// Transcribe uploads audioPath and blocks until AssemblyAI completes the transcript
func (a *AssemblyAITranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) ([]Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, transcriptionErr(BackendAssemblyAI, "open audio", err)
	}
	defer f.Close()

	uploadURL, err := a.client.Upload(ctx, f)
	if err != nil {
		return nil, transcriptionErr(BackendAssemblyAI, "upload", err)
	}

	params := &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(true),
	}
	lang := opts.Language
	if lang == "" {
		lang = a.language
	}
	if code := languageParam(lang); code != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(code)
	} else {
		params.LanguageDetection = aai.Bool(true)
	}

	transcript, err := a.client.Transcripts.TranscribeFromURL(ctx, uploadURL, params)
	if err != nil {
		return nil, transcriptionErr(BackendAssemblyAI, "transcribe", err)
	}

	segments, err := segmentsFromTranscript(transcript)
	if err != nil {
		return nil, transcriptionErr(BackendAssemblyAI, "transcribe", err)
	}
	return segments, nil
}

// segmentsFromTranscript converts utterances (millisecond offsets) into segments.
// A transcript without utterances yields a single unlabelled segment carrying the full text.
func segmentsFromTranscript(t aai.Transcript) ([]Segment, error) {
	if t.Status == aai.TranscriptStatusError {
		msg := "transcript failed"
		if t.Error != nil && *t.Error != "" {
			msg = *t.Error
		}
		return nil, errors.New(msg)
	}

	if len(t.Utterances) == 0 {
		text := strings.TrimSpace(deref(t.Text))
		if text == "" {
			return []Segment{}, nil
		}
		seg := Segment{Text: text, Confidence: deref(t.Confidence)}
		if n := len(t.Words); n > 0 {
			seg.Start = float64(deref(t.Words[0].Start)) / 1000.0
			seg.End = math.Max(float64(deref(t.Words[n-1].End))/1000.0, seg.Start)
		}
		return []Segment{seg}, nil
	}

	segments := make([]Segment, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		start := float64(deref(u.Start)) / 1000.0
		end := float64(deref(u.End)) / 1000.0
		if end < start {
			end = start
		}
		seg := Segment{
			Text:       strings.TrimSpace(deref(u.Text)),
			Start:      start,
			End:        end,
			Confidence: deref(u.Confidence),
		}
		if sp := deref(u.Speaker); sp != "" {
			seg.Speaker = fmt.Sprintf("Speaker %s", sp)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
