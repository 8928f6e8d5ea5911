package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/johnquangdev/meetingmind/pkg/config"
)

const openAIWhisperModel = "whisper-1"

// OpenAITranscriber calls the OpenAI audio transcription endpoint with verbose_json output
type OpenAITranscriber struct {
	apiKey   string
	baseURL  string
	language string
	client   *http.Client
}

// NewOpenAITranscriber creates a remote whisper transcriber from cfg
func NewOpenAITranscriber(cfg config.TranscriptionConfig) *OpenAITranscriber {
	base := strings.TrimRight(cfg.OpenAIBaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	return &OpenAITranscriber{
		apiKey:   cfg.OpenAIAPIKey,
		baseURL:  base,
		language: cfg.Language,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type whisperVerboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start      float64  `json:"start"`
		End        float64  `json:"end"`
		Text       string   `json:"text"`
		AvgLogprob *float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads audioPath and maps the returned segments
func (o *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) ([]Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, transcriptionErr(BackendOpenAI, "open audio", err)
	}
	defer f.Close()

	lang := opts.Language
	if lang == "" {
		lang = o.language
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeWhisperForm(mw, f, filepath.Base(audioPath), languageParam(lang)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/audio/transcriptions", pr)
	if err != nil {
		pr.Close()
		return nil, transcriptionErr(BackendOpenAI, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, transcriptionErr(BackendOpenAI, "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, transcriptionErr(BackendOpenAI, "request", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	var vr whisperVerboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, transcriptionErr(BackendOpenAI, "decode response", err)
	}

	segments := make([]Segment, 0, len(vr.Segments))
	for _, s := range vr.Segments {
		segments = append(segments, Segment{
			Text:       strings.TrimSpace(s.Text),
			Start:      s.Start,
			End:        math.Max(s.End, s.Start),
			Confidence: confidenceFromLogprob(s.AvgLogprob),
		})
	}
	return segments, nil
}

func writeWhisperForm(mw *multipart.Writer, audio io.Reader, filename, language string) error {
	fields := [][2]string{
		{"model", openAIWhisperModel},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if language != "" {
		fields = append(fields, [2]string{"language", language})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return err
	}
	return mw.Close()
}

// confidenceFromLogprob maps an average log-probability onto [0,1]; absent means 0
func confidenceFromLogprob(lp *float64) float64 {
	if lp == nil || math.IsNaN(*lp) {
		return 0
	}
	return math.Min(math.Max(math.Exp(*lp), 0), 1)
}
