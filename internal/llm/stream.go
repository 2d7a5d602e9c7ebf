package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
)

// DefaultScriptTimeout bounds one full streamed exchange with the text-generation service.
const DefaultScriptTimeout = 5 * time.Minute

// maxScriptLogBytes is the max length of a generated script to log in full.
const maxScriptLogBytes = 8192

// ScriptStreamer produces the fragments of a generated script.
// The returned sequence is lazy, finite and may be consumed only once.
type ScriptStreamer interface {
	Stream(ctx context.Context, model, prompt string) iter.Seq2[string, error]
	// Name identifies the backend in logs and errors.
	Name() string
}

// Assemble concatenates fragments in arrival order and trims the result.
// onFragment, if set, observes every fragment as it arrives.
func Assemble(fragments iter.Seq2[string, error], onFragment func(string)) (string, error) {
	var sb strings.Builder
	for fragment, err := range fragments {
		if err != nil {
			return "", err
		}
		sb.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}

	script := strings.TrimSpace(sb.String())
	if script == "" {
		return "", models.ErrEmptyGeneration
	}
	return script, nil
}

// GenerateScript streams a script for prompt and returns it assembled.
// A timeout <= 0 leaves ctx unbounded.
func GenerateScript(ctx context.Context, streamer ScriptStreamer, model, prompt string, timeout time.Duration, onFragment func(string)) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Debug().
		Str("backend", streamer.Name()).
		Str("model", model).
		Int("prompt_length", len(prompt)).
		Msg("Generating script")

	started := time.Now()
	script, err := Assemble(streamer.Stream(ctx, model, prompt), onFragment)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, models.ErrEmptyGeneration) {
			return "", &models.UpstreamError{
				Service: streamer.Name(),
				Err:     fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded),
			}
		}
		return "", err
	}

	logScript(streamer.Name(), script)
	log.Info().
		Str("backend", streamer.Name()).
		Str("model", model).
		Int("script_length", len(script)).
		Dur("elapsed", time.Since(started)).
		Msg("Script generation complete")

	return script, nil
}

// logScript logs generated text at debug level, truncating if over maxScriptLogBytes.
func logScript(backend, script string) {
	if len(script) <= maxScriptLogBytes {
		log.Debug().Str("backend", backend).Str("script", script).Msg("Generated script")
		return
	}
	log.Debug().
		Str("backend", backend).
		Str("script", script[:maxScriptLogBytes]+"... [truncated]").
		Int("script_len", len(script)).
		Msg("Generated script")
}
