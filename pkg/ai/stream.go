package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// StreamingTranscriber transcribes a live PCM16 stream in fixed windows.
// Each window keeps a trailing overlap of the previous one as context; segments are emitted
// with stream-relative timestamps and a segment already covered by an earlier window is dropped.
type StreamingTranscriber struct {
	transcriber  Transcriber
	opts         TranscribeOptions
	windowBytes  int
	overlapBytes int
	logger       *zap.Logger
}

// NewStreamingTranscriber wraps t with window and overlap durations (5s and 1s when zero)
func NewStreamingTranscriber(t Transcriber, window, overlap time.Duration, opts TranscribeOptions, logger *zap.Logger) *StreamingTranscriber {
	if window <= 0 {
		window = 5 * time.Second
	}
	if overlap < 0 || overlap >= window {
		overlap = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamingTranscriber{
		transcriber:  t,
		opts:         opts,
		windowBytes:  durationBytes(window),
		overlapBytes: durationBytes(overlap),
		logger:       logger,
	}
}

func durationBytes(d time.Duration) int {
	n := int(d.Seconds() * streamBytesPerSecond)
	return n - n%StreamBytesPerSample
}

// TranscribeStream consumes chunks until the channel closes or ctx ends.
// Both returned channels are closed when the stream finishes; at most one error is sent.
func (s *StreamingTranscriber) TranscribeStream(ctx context.Context, chunks <-chan []byte) (<-chan Segment, <-chan error) {
	out := make(chan Segment, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		var (
			buf      []byte
			bufStart int // stream byte offset of buf[0]
			fresh    int // bytes in buf not yet transcribed
			lastEnd  float64
		)

		emit := func(window []byte, offset int) error {
			segs, err := s.transcribeWindow(ctx, window)
			if err != nil {
				return err
			}
			shift := float64(offset) / streamBytesPerSecond
			for _, seg := range segs {
				seg.Start += shift
				seg.End += shift
				if seg.End <= lastEnd {
					continue
				}
				lastEnd = seg.End
				select {
				case out <- seg:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}

		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunk, ok := <-chunks:
				if !ok {
					if fresh > 0 {
						if err := emit(buf, bufStart); err != nil {
							errs <- err
						}
					}
					return
				}
				buf = append(buf, chunk...)
				fresh += len(chunk)

				for len(buf) >= s.windowBytes {
					window := buf[:s.windowBytes]
					if err := emit(window, bufStart); err != nil {
						errs <- err
						return
					}
					keep := s.windowBytes - s.overlapBytes
					bufStart += keep
					buf = append([]byte(nil), buf[keep:]...)
					fresh = max(len(buf)-s.overlapBytes, 0)
				}
			}
		}
	}()

	return out, errs
}

func (s *StreamingTranscriber) transcribeWindow(ctx context.Context, pcm []byte) ([]Segment, error) {
	f, err := os.CreateTemp("", "meetingmind_stream_*.wav")
	if err != nil {
		return nil, fmt.Errorf("create window file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := writePCM16WAV(path, pcm); err != nil {
		return nil, err
	}

	segs, err := s.transcriber.Transcribe(ctx, path, s.opts)
	if err != nil {
		s.logger.Warn("⚠️ Stream window transcription failed", zap.Int("bytes", len(pcm)), zap.Error(err))
		return nil, err
	}
	return segs, nil
}
