package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/pkg/config"
)

// UnknownSpeaker labels a segment no speaker turn covers
const UnknownSpeaker = "Unknown"

//go:embed assets/pyannote_diarize.py
var pyannoteScript []byte

// Diarizer assigns speaker labels to segments. It never fails: on error the input comes back unchanged.
type Diarizer interface {
	AssignSpeakers(ctx context.Context, audioPath string, segments []Segment) []Segment
}

// NopDiarizer leaves speakers as they are
type NopDiarizer struct{}

func (NopDiarizer) AssignSpeakers(_ context.Context, _ string, segments []Segment) []Segment {
	return segments
}

// SpeakerTurn is one interval attributed to a speaker
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// AssignSpeakersFromTurns labels each segment with the first turn containing its start time
func AssignSpeakersFromTurns(segments []Segment, turns []SpeakerTurn) []Segment {
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		seg.Speaker = UnknownSpeaker
		for _, t := range turns {
			if t.Start <= seg.Start && seg.Start <= t.End {
				seg.Speaker = t.Speaker
				break
			}
		}
		out[i] = seg
	}
	return out
}

// commandRunner runs a helper and returns its stdout
type commandRunner func(ctx context.Context, name string, args []string, env []string) ([]byte, error)

func execRunner(ctx context.Context, name string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("pyannote failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("run helper: %w", err)
	}
	return out, nil
}

// PyannoteDiarizer runs pyannote in a python helper per recording
type PyannoteDiarizer struct {
	cfg    config.DiarizationConfig
	logger *zap.Logger
	run    commandRunner
}

// NewPyannoteDiarizer creates a pyannote backed diarizer
func NewPyannoteDiarizer(cfg config.DiarizationConfig, logger *zap.Logger) *PyannoteDiarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PyannoteDiarizer{cfg: cfg, logger: logger, run: execRunner}
}

// NewDiarizer returns a pyannote diarizer when enabled, otherwise a no-op
func NewDiarizer(enabled bool, cfg config.DiarizationConfig, logger *zap.Logger) Diarizer {
	if !enabled {
		return NopDiarizer{}
	}
	return NewPyannoteDiarizer(cfg, logger)
}

func (d *PyannoteDiarizer) AssignSpeakers(ctx context.Context, audioPath string, segments []Segment) []Segment {
	if len(segments) == 0 || allLabelled(segments) {
		return segments
	}

	turns, err := d.turns(ctx, audioPath)
	if err != nil {
		d.logger.Warn("⚠️ Diarization skipped",
			zap.String("audio", filepath.Base(audioPath)),
			zap.Error(&DiarizationError{Err: err}),
		)
		return segments
	}
	return AssignSpeakersFromTurns(segments, turns)
}

func (d *PyannoteDiarizer) turns(ctx context.Context, audioPath string) ([]SpeakerTurn, error) {
	if d.cfg.HFToken == "" {
		return nil, errors.New("HF_TOKEN is not set")
	}

	scriptPath, err := writeHelperScript("meetingmind_pyannote_*.py", pyannoteScript)
	if err != nil {
		return nil, err
	}
	defer os.Remove(scriptPath)

	py := d.cfg.PythonBin
	if py == "" {
		py = "python3"
	}
	env := append(os.Environ(), "HF_TOKEN="+d.cfg.HFToken)
	out, err := d.run(ctx, py, []string{scriptPath, "--audio", audioPath, "--model", d.cfg.Model}, env)
	if err != nil {
		return nil, err
	}

	var turns []SpeakerTurn
	if err := json.Unmarshal(out, &turns); err != nil {
		return nil, fmt.Errorf("parse helper output: %w", err)
	}
	return turns, nil
}

func allLabelled(segments []Segment) bool {
	for _, s := range segments {
		if s.Speaker == "" {
			return false
		}
	}
	return true
}
