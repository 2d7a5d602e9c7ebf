package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultStyle is used when a request does not name a delivery style.
	DefaultStyle = "conversational"
	// DefaultDurationMinutes is the target episode length when none is given.
	DefaultDurationMinutes = 3
)

// GenerationRequest is one podcast generation request
type GenerationRequest struct {
	Topic           string `json:"topic"`
	Style           string `json:"style,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Model           string `json:"model,omitempty"`
	SkipAudio       bool   `json:"skip_audio,omitempty"`
	// OutputDir overrides the configured output directory. Not accepted from HTTP clients.
	OutputDir string `json:"-"`
}

// Normalize trims text fields and fills in defaults. defaultModel is used when Model is blank.
func (r *GenerationRequest) Normalize(defaultModel string) {
	r.Topic = strings.TrimSpace(r.Topic)
	r.Style = strings.TrimSpace(r.Style)
	if r.Style == "" {
		r.Style = DefaultStyle
	}
	if r.DurationMinutes <= 0 {
		r.DurationMinutes = DefaultDurationMinutes
	}
	r.Model = strings.TrimSpace(r.Model)
	if r.Model == "" {
		r.Model = defaultModel
	}
}

// Validate rejects requests the pipeline must never see
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return ErrInvalidRequest
	}
	return nil
}

// GenerationResult is the terminal artifact returned to the caller.
// AudioPath is empty when audio was skipped.
type GenerationResult struct {
	Script     string `json:"script"`
	ScriptPath string `json:"script_path"`
	AudioPath  string `json:"audio_path"`
}

// Generation event types
const (
	EventGenerated = "podcast.generated"
	EventFailed    = "podcast.failed"
)

// GenerationEvent describes the outcome of one pipeline run. It is published
// to the event stream and recorded in the run history.
type GenerationEvent struct {
	RunID        uuid.UUID `json:"run_id"`
	Type         string    `json:"type"`
	Topic        string    `json:"topic"`
	Style        string    `json:"style"`
	Model        string    `json:"model"`
	SkipAudio    bool      `json:"skip_audio"`
	ScriptPath   string    `json:"script_path,omitempty"`
	AudioPath    string    `json:"audio_path,omitempty"`
	ScriptLength int       `json:"script_length"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Duration returns how long the run took
func (e *GenerationEvent) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// GenerationRun is a stored row of the run history
type GenerationRun struct {
	ID           uuid.UUID `json:"id"`
	Topic        string    `json:"topic"`
	Style        string    `json:"style"`
	Model        string    `json:"model"`
	SkipAudio    bool      `json:"skip_audio"`
	Status       string    `json:"status"` // succeeded, failed
	ScriptPath   *string   `json:"script_path,omitempty"`
	AudioPath    *string   `json:"audio_path,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrorResponse is the JSON body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}
