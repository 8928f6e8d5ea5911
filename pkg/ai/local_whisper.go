package ai

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/pkg/config"
)

//go:embed assets/faster_whisper_server.py
var fasterWhisperServer []byte

type localRequest struct {
	Audio    string `json:"audio"`
	Language string `json:"language,omitempty"`
}

type localResponse struct {
	Ready    bool           `json:"ready,omitempty"`
	Error    string         `json:"error,omitempty"`
	Language string         `json:"language,omitempty"`
	Duration float64        `json:"duration,omitempty"`
	Segments []localSegment `json:"segments"`
}

type localSegment struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	AvgLogprob *float64 `json:"avg_logprob"`
}

// whisperSession is one loaded model answering requests in order
type whisperSession interface {
	Do(ctx context.Context, req localRequest) (localResponse, error)
	Close() error
}

// LocalTranscriber runs faster-whisper in a python helper that keeps the model loaded between calls.
// Requests are serialized; a helper that dies or is cancelled mid-request is restarted on the next call.
type LocalTranscriber struct {
	cfg    config.TranscriptionConfig
	logger *zap.Logger

	mu      sync.Mutex
	session whisperSession
	start   func(ctx context.Context) (whisperSession, error)
}

// NewLocalTranscriber creates a transcriber backed by a python faster-whisper helper
func NewLocalTranscriber(cfg config.TranscriptionConfig, logger *zap.Logger) *LocalTranscriber {
	t := &LocalTranscriber{cfg: cfg, logger: logger}
	t.start = t.startProcess
	return t
}

// Transcribe sends audioPath to the helper and maps its segments
func (t *LocalTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) ([]Segment, error) {
	lang := opts.Language
	if lang == "" {
		lang = t.cfg.Language
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		s, err := t.start(ctx)
		if err != nil {
			return nil, transcriptionErr(BackendLocal, "start helper", err)
		}
		t.session = s
	}

	resp, err := t.session.Do(ctx, localRequest{Audio: audioPath, Language: languageParam(lang)})
	if err != nil {
		_ = t.session.Close()
		t.session = nil
		return nil, transcriptionErr(BackendLocal, "transcribe", err)
	}
	if resp.Error != "" {
		return nil, transcriptionErr(BackendLocal, "transcribe", errors.New(resp.Error))
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		end := s.End
		if end < s.Start {
			end = s.Start
		}
		segments = append(segments, Segment{
			Text:       strings.TrimSpace(s.Text),
			Start:      s.Start,
			End:        end,
			Confidence: confidenceFromLogprob(s.AvgLogprob),
		})
	}
	return segments, nil
}

// Close stops the helper process if it is running
func (t *LocalTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	err := t.session.Close()
	t.session = nil
	return err
}

func (t *LocalTranscriber) startProcess(ctx context.Context) (whisperSession, error) {
	scriptPath, err := writeHelperScript("meetingmind_faster_whisper_*.py", fasterWhisperServer)
	if err != nil {
		return nil, err
	}

	py := t.cfg.PythonBin
	if py == "" {
		py = "python3"
	}
	// The helper outlives the request that starts it, so it is not bound to ctx
	cmd := exec.Command(py, scriptPath,
		"--model", t.cfg.Model,
		"--device", t.cfg.Device,
		"--compute-type", t.cfg.ComputeType,
	)
	cmd.Env = os.Environ()
	cmd.Stderr = &stderrTail{}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = os.Remove(scriptPath)
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.Remove(scriptPath)
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = os.Remove(scriptPath)
		return nil, fmt.Errorf("run helper: %w", err)
	}

	p := &processSession{cmd: cmd, stdin: stdin, reader: bufio.NewReaderSize(stdout, 1<<20), script: scriptPath}
	if t.logger != nil {
		t.logger.Info("🎙️ Loading local whisper model",
			zap.String("model", t.cfg.Model),
			zap.String("device", t.cfg.Device),
		)
	}

	ready, err := p.read(ctx)
	if err != nil || !ready.Ready {
		_ = p.Close()
		if err == nil {
			err = errors.New("helper did not report ready")
		}
		return nil, fmt.Errorf("%w: %s", err, cmd.Stderr.(*stderrTail).String())
	}
	return p, nil
}

type processSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	script string
}

func (p *processSession) Do(ctx context.Context, req localRequest) (localResponse, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return localResponse{}, err
	}
	if _, err := p.stdin.Write(append(b, '\n')); err != nil {
		return localResponse{}, fmt.Errorf("write request: %w", err)
	}
	return p.read(ctx)
}

func (p *processSession) read(ctx context.Context) (localResponse, error) {
	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.reader.ReadBytes('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		// the pending read unblocks once Close kills the process
		return localResponse{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return localResponse{}, fmt.Errorf("read response: %w", r.err)
		}
		var resp localResponse
		if err := json.Unmarshal(r.line, &resp); err != nil {
			return localResponse{}, fmt.Errorf("parse helper output: %w", err)
		}
		return resp, nil
	}
}

func (p *processSession) Close() error {
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	_ = os.Remove(p.script)
	return nil
}

// writeHelperScript writes an embedded python helper to a fresh temp file; the caller removes it
func writeHelperScript(pattern string, script []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("write helper script: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(script); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write helper script: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write helper script: %w", err)
	}
	return path, nil
}

// stderrTail keeps the last few KB a helper wrote to stderr for error messages
type stderrTail struct {
	mu  sync.Mutex
	buf []byte
}

const stderrTailSize = 4096

func (s *stderrTail) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, b...)
	if len(s.buf) > stderrTailSize {
		s.buf = s.buf[len(s.buf)-stderrTailSize:]
	}
	return len(b), nil
}

func (s *stderrTail) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(string(s.buf))
}
