package tts

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/storage"
)

// DefaultSynthesisTimeout bounds a single synthesis call.
const DefaultSynthesisTimeout = 10 * time.Minute

// Request is a single text-to-speech job.
type Request struct {
	Text    string
	VoiceID string // optional, overrides the synthesizer's voice
	ModelID string // optional, overrides the synthesizer's model
}

// Synthesizer converts text into an MP3 byte stream. The caller closes the reader.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (io.ReadCloser, error)
	Name() string
}

// WriteAudio synthesizes req and streams the audio to path in arrival order.
// A failed stream leaves nothing at path.
func WriteAudio(ctx context.Context, synth Synthesizer, req Request, path string) error {
	start := time.Now()

	body, err := synth.Synthesize(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	n, err := storage.WriteStream(path, body)
	if err != nil {
		return fmt.Errorf("%s audio stream: %w", synth.Name(), err)
	}

	log.Info().
		Str("synthesizer", synth.Name()).
		Str("path", path).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("Audio written")
	return nil
}
