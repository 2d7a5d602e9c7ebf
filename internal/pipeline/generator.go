package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/llm"
	"github.com/snappy-loop/podcasts/internal/models"
	"github.com/snappy-loop/podcasts/internal/naming"
	"github.com/snappy-loop/podcasts/internal/prompt"
	"github.com/snappy-loop/podcasts/internal/storage"
	"github.com/snappy-loop/podcasts/internal/tts"
)

const (
	// maxCollisionSuffix is the highest "-N" suffix tried before giving up on a stem.
	maxCollisionSuffix = 100
	// sideChannelTimeout bounds event publishing, run recording and mirroring.
	sideChannelTimeout = 30 * time.Second
)

// Config holds generator settings
type Config struct {
	OutputDir        string
	DefaultModel     string
	ScriptTimeout    time.Duration
	SynthesisTimeout time.Duration
}

// Generator runs the topic → script → audio pipeline
type Generator struct {
	streamer    llm.ScriptStreamer
	synthesizer tts.Synthesizer
	publishers  []EventPublisher
	recorder    RunRecorder
	mirror      ArtifactMirror
	cfg         Config
	now         func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithSynthesizer enables audio synthesis. Without it, audio requests fail with models.ErrMissingCredential.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(g *Generator) { g.synthesizer = s }
}

// WithPublisher publishes an event after every run. May be given more than once.
func WithPublisher(p EventPublisher) Option {
	return func(g *Generator) { g.publishers = append(g.publishers, p) }
}

// WithRunRecorder records every run
func WithRunRecorder(r RunRecorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithMirror uploads artifacts of successful runs
func WithMirror(m ArtifactMirror) Option {
	return func(g *Generator) { g.mirror = m }
}

// WithClock overrides the time source used for naming
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a new Generator
func NewGenerator(streamer llm.ScriptStreamer, cfg Config, opts ...Option) *Generator {
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = llm.DefaultScriptTimeout
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = tts.DefaultSynthesisTimeout
	}
	g := &Generator{
		streamer: streamer,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultModel returns the model used when a request names none
func (g *Generator) DefaultModel() string {
	return g.cfg.DefaultModel
}

// Generate runs the pipeline for req
func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	return g.GenerateStream(ctx, req, nil)
}

// GenerateStream is Generate with an observer called for every script fragment as it arrives.
func (g *Generator) GenerateStream(ctx context.Context, req models.GenerationRequest, onFragment func(string)) (*models.GenerationResult, error) {
	req.Normalize(g.cfg.DefaultModel)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = g.cfg.OutputDir
	}

	event := &models.GenerationEvent{
		RunID:     uuid.New(),
		Topic:     req.Topic,
		Style:     req.Style,
		Model:     req.Model,
		SkipAudio: req.SkipAudio,
		StartedAt: g.now(),
	}
	logger := log.With().
		Str("run_id", event.RunID.String()).
		Str("topic", req.Topic).
		Logger()
	logger.Info().
		Str("style", req.Style).
		Int("duration_minutes", req.DurationMinutes).
		Str("model", req.Model).
		Bool("skip_audio", req.SkipAudio).
		Msg("Generation started")

	result, err := g.run(ctx, req, outputDir, event.StartedAt, onFragment)

	event.FinishedAt = g.now()
	if result != nil {
		event.ScriptPath = result.ScriptPath
		event.AudioPath = result.AudioPath
		event.ScriptLength = len(result.Script)
	}
	if err != nil {
		event.Type = models.EventFailed
		event.Error = err.Error()
		logger.Error().Err(err).Str("script_path", event.ScriptPath).Msg("Generation failed")
	} else {
		event.Type = models.EventGenerated
		logger.Info().
			Str("script_path", result.ScriptPath).
			Str("audio_path", result.AudioPath).
			Dur("duration", event.Duration()).
			Msg("Generation completed")
	}

	g.emit(ctx, event)
	if err != nil {
		return nil, err
	}
	g.mirrorArtifacts(ctx, result)
	return result, nil
}

// run executes the core stages. On failure after the script is persisted,
// the partial result is returned alongside the error so it can be reported.
func (g *Generator) run(ctx context.Context, req models.GenerationRequest, outputDir string, started time.Time, onFragment func(string)) (*models.GenerationResult, error) {
	paths := naming.MakeOutputPaths(req.Topic, outputDir, started)

	text, err := prompt.Build(req.Topic, req.Style, req.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	script, err := llm.GenerateScript(ctx, g.streamer, req.Model, text, g.cfg.ScriptTimeout, onFragment)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	paths, err = persistScript(paths, script)
	if err != nil {
		return nil, err
	}
	result := &models.GenerationResult{Script: script, ScriptPath: paths.ScriptPath}

	if req.SkipAudio {
		return result, nil
	}
	if g.synthesizer == nil {
		return result, models.ErrMissingCredential
	}

	synthCtx, cancel := context.WithTimeout(ctx, g.cfg.SynthesisTimeout)
	defer cancel()
	if err := tts.WriteAudio(synthCtx, g.synthesizer, tts.Request{Text: script}, paths.AudioPath); err != nil {
		if errors.Is(synthCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &models.UpstreamError{
				Service: g.synthesizer.Name(),
				Err:     fmt.Errorf("timed out after %s: %w", g.cfg.SynthesisTimeout, context.DeadlineExceeded),
			}
		}
		return result, fmt.Errorf("synthesize audio: %w", err)
	}
	result.AudioPath = paths.AudioPath
	return result, nil
}

// persistScript reserves the first free stem, starting with paths itself and
// then "-2" up to "-maxCollisionSuffix". A stem is free when neither its script
// nor its audio path exists.
func persistScript(paths naming.OutputPaths, script string) (naming.OutputPaths, error) {
	candidate := paths
	for n := 2; ; n++ {
		if _, err := os.Lstat(candidate.AudioPath); errors.Is(err, os.ErrNotExist) {
			err := storage.WriteFileExclusive(candidate.ScriptPath, []byte(script))
			if err == nil {
				return candidate, nil
			}
			if !errors.Is(err, os.ErrExist) {
				return naming.OutputPaths{}, fmt.Errorf("persist script: %w", err)
			}
		}
		if n > maxCollisionSuffix {
			return naming.OutputPaths{}, fmt.Errorf("persist script: no free name for %s after %d attempts: %w", paths.Stem, maxCollisionSuffix, os.ErrExist)
		}
		candidate = paths.WithSuffix(n)
	}
}

func (g *Generator) emit(ctx context.Context, event *models.GenerationEvent) {
	if len(g.publishers) == 0 && g.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
	defer cancel()

	for _, p := range g.publishers {
		if err := p.PublishEvent(ctx, event); err != nil {
			log.Warn().Err(err).Str("run_id", event.RunID.String()).Msg("Failed to publish generation event")
		}
	}
	if g.recorder != nil {
		if err := g.recorder.RecordEvent(ctx, event); err != nil {
			log.Warn().Err(err).Str("run_id", event.RunID.String()).Msg("Failed to record generation run")
		}
	}
}

func (g *Generator) mirrorArtifacts(ctx context.Context, result *models.GenerationResult) {
	if g.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
	defer cancel()

	if err := g.mirror.Mirror(ctx, result.ScriptPath, result.AudioPath); err != nil {
		log.Warn().Err(err).Str("script_path", result.ScriptPath).Msg("Failed to mirror artifacts")
	}
}
