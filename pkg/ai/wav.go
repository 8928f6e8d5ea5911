package ai

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Streaming input format: 16-bit little-endian mono PCM at 16kHz
const (
	StreamSampleRate     = 16000
	StreamBytesPerSample = 2
	streamBytesPerSecond = StreamSampleRate * StreamBytesPerSample
)

// writePCM16WAV wraps raw PCM16LE mono bytes in a WAV container at path
func writePCM16WAV(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	samples := make([]int, len(pcm)/StreamBytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	enc := wav.NewEncoder(f, StreamSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: StreamSampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	return f.Close()
}
