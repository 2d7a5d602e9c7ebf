// Package app assembles the generator and its optional integrations from config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/config"
	"github.com/snappy-loop/podcasts/internal/database"
	"github.com/snappy-loop/podcasts/internal/kafka"
	"github.com/snappy-loop/podcasts/internal/llm"
	"github.com/snappy-loop/podcasts/internal/pipeline"
	"github.com/snappy-loop/podcasts/internal/storage"
	"github.com/snappy-loop/podcasts/internal/tts"
	"github.com/snappy-loop/podcasts/internal/webhook"
	"github.com/snappy-loop/podcasts/migrations"
)

// App holds the generator and the resources it owns
type App struct {
	Generator *pipeline.Generator
	Runs      *database.RunRepository // nil when DATABASE_URL is unset

	db       *database.DB
	producer *kafka.Producer
}

// New builds an App. Optional integrations are enabled by their config.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	streamer, err := NewStreamer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{}
	var opts []pipeline.Option

	if cfg.SynthesisConfigured() {
		synth, err := tts.NewElevenLabs(tts.ElevenLabsConfig{
			APIURL:          cfg.ElevenLabsAPIURL,
			APIKey:          cfg.ElevenLabsAPIKey,
			VoiceID:         cfg.VoiceID,
			ModelID:         cfg.ElevenLabsModelID,
			Stability:       cfg.ElevenLabsStability,
			SimilarityBoost: cfg.ElevenLabsSimilarityBoost,
		}, &http.Client{})
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithSynthesizer(synth))
	} else {
		log.Warn().Msg("ELEVENLABS_API_KEY or VOICE_ID not set; audio requests will fail")
	}

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if n, err := migrations.Run(ctx, db.DB); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		} else if n > 0 {
			log.Info().Int("applied", n).Msg("Migrations applied")
		}
		a.db = db
		a.Runs = database.NewRunRepository(db)
		opts = append(opts, pipeline.WithRunRecorder(a.Runs))
	}

	if cfg.KafkaEnabled() {
		a.producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		opts = append(opts, pipeline.WithPublisher(a.producer))
	}

	if cfg.WebhookURL != "" {
		opts = append(opts, pipeline.WithPublisher(webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret, nil)))
	}

	if cfg.S3Enabled() {
		mirror, err := storage.NewS3Mirror(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
			cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Prefix, cfg.S3PublicURL,
		)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithMirror(mirror))
	}

	a.Generator = pipeline.NewGenerator(streamer, pipeline.Config{
		OutputDir:        cfg.OutputDir,
		DefaultModel:     cfg.ScriptModel(),
		ScriptTimeout:    cfg.ScriptTimeout,
		SynthesisTimeout: cfg.SynthesisTimeout,
	}, opts...)

	log.Info().
		Str("backend", streamer.Name()).
		Str("default_model", cfg.ScriptModel()).
		Str("output_dir", cfg.OutputDir).
		Bool("audio", cfg.SynthesisConfigured()).
		Bool("run_history", a.Runs != nil).
		Bool("events", a.producer != nil).
		Bool("webhook", cfg.WebhookURL != "").
		Bool("s3_mirror", cfg.S3Enabled()).
		Msg("Generator ready")

	return a, nil
}

// NewStreamer returns the script streamer selected by SCRIPT_BACKEND
func NewStreamer(ctx context.Context, cfg *config.Config) (llm.ScriptStreamer, error) {
	switch cfg.ScriptBackend {
	case config.BackendGemini:
		return llm.NewGeminiStreamer(ctx, cfg.GeminiAPIKey, cfg.GeminiAPIEndpoint)
	case config.BackendOllama:
		return llm.NewOllamaStreamer(cfg.OllamaURL, &http.Client{}), nil
	default:
		return nil, fmt.Errorf("unknown script backend %q", cfg.ScriptBackend)
	}
}

// Health pings the run history database when one is configured
func (a *App) Health(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Health(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Close releases the database and Kafka connections
func (a *App) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Kafka producer")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
