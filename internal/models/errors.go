package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned for requests with an empty topic.
	ErrInvalidRequest = errors.New("topic is required")
	// ErrEmptyGeneration is returned when the assembled script is empty after trimming.
	ErrEmptyGeneration = errors.New("empty generation: text-generation service returned no script")
	// ErrMissingCredential is returned when audio is requested without a TTS key or voice id.
	ErrMissingCredential = errors.New("missing text-to-speech credential or voice id")
	// ErrNotFound is returned for any download path that cannot be served.
	ErrNotFound = errors.New("file not found")
)

// UpstreamError wraps a transport, timeout or status failure from an external service
type UpstreamError struct {
	Service    string // "ollama", "gemini", "elevenlabs"
	StatusCode int    // 0 when no response was received
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s request failed: status %d: %s", e.Service, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s request failed: status %d", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	default:
		return e.Service + " request failed"
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
