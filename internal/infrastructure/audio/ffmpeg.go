package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// noiseFilter is ffmpeg's FFT denoiser with a -70dB noise floor
const noiseFilter = "afftdn=nf=-70"

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpegEnhancer denoises a recording and normalizes it to 16kHz mono WAV
type FFmpegEnhancer struct {
	bin string
	dir string
	run runFunc
}

// NewFFmpegEnhancer creates an enhancer using the ffmpeg binary on PATH
func NewFFmpegEnhancer() *FFmpegEnhancer {
	return &FFmpegEnhancer{bin: "ffmpeg", dir: os.TempDir(), run: combinedOutput}
}

// Enhance writes a denoised copy of inputPath and returns its path with a cleanup func.
// cleanup is safe to call even when err is non-nil.
func (e *FFmpegEnhancer) Enhance(ctx context.Context, inputPath string) (string, func(), error) {
	out := filepath.Join(e.dir, fmt.Sprintf("meetingmind_enhanced_%s.wav", uuid.New().String()))
	cleanup := func() { _ = os.Remove(out) }

	output, err := e.run(ctx, e.bin,
		"-y",
		"-i", inputPath,
		"-af", noiseFilter,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		out,
	)
	if err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, strings.TrimSpace(tail(output, 2048)))
	}
	return out, cleanup, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
