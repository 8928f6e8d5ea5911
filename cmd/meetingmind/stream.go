package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	pkgai "github.com/johnquangdev/meetingmind/pkg/ai"
)

// streamChunkBytes is 100ms of 16kHz mono PCM16
const streamChunkBytes = pkgai.StreamSampleRate * pkgai.StreamBytesPerSample / 10

func newTranscribeStreamCmd(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "transcribe-stream",
		Short: "Transcribe raw 16kHz mono PCM16 audio as it arrives",
		Long: `Transcribe a live audio stream in overlapping windows and print each segment
as soon as its window is transcribed. Audio is read from --input, or stdin when omitted.

Example:
  ffmpeg -i meeting.mp3 -f s16le -ar 16000 -ac 1 - | meetingmind transcribe-stream`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			transcriber, err := pkgai.NewTranscriber(a.cfg.Transcription, a.logger)
			if err != nil {
				return err
			}
			defer a.closeTranscriber(transcriber)

			var src io.Reader = cmd.InOrStdin()
			if input != "" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			ctx, stop := signal.NotifyContext(a.context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stream := pkgai.NewStreamingTranscriber(
				transcriber,
				a.cfg.Transcription.StreamWindow,
				a.cfg.Transcription.StreamOverlap,
				pkgai.TranscribeOptions{Language: a.cfg.Transcription.Language},
				a.logger,
			)
			return runStream(ctx, stream, src, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Raw PCM16 file to read instead of stdin")

	return cmd
}

// runStream feeds src into the streaming transcriber and writes one line per segment
func runStream(ctx context.Context, stream *pkgai.StreamingTranscriber, src io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, streamChunkBytes)
			n, err := io.ReadFull(src, buf)
			if n > 0 {
				// keep whole samples only
				n -= n % pkgai.StreamBytesPerSample
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	segments, errs := stream.TranscribeStream(ctx, chunks)
	for seg := range segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(out, "[%7.2f - %7.2f] %s: %s\n", seg.Start, seg.End, speaker, seg.Text)
	}

	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	select {
	case err := <-readErr:
		return fmt.Errorf("read audio: %w", err)
	default:
		return nil
	}
}
