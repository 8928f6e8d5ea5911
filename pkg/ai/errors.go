package ai

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TranscriptionError reports a speech-to-text failure: unreachable backend, unreadable or unsupported audio
type TranscriptionError struct {
	Backend string
	Op      string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription (%s) %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

func transcriptionErr(backend, op string, err error) error {
	return &TranscriptionError{Backend: backend, Op: op, Err: err}
}

// DiarizationError never leaves the diarizer; it is logged and the segments pass through unchanged
type DiarizationError struct {
	Err error
}

func (e *DiarizationError) Error() string {
	return fmt.Sprintf("diarization: %v", e.Err)
}

func (e *DiarizationError) Unwrap() error { return e.Err }

// LLMCallError reports an unreachable, rate-limited or failing language model backend
type LLMCallError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *LLMCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm (%s) status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm (%s): %v", e.Provider, e.Err)
}

func (e *LLMCallError) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated: network errors, 429 and 5xx
func (e *LLMCallError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode != 0 {
		return false
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr)
}
