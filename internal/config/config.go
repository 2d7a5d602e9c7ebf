package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Script backends
const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Output
	OutputDir string

	// Script generation
	ScriptBackend     string
	OllamaURL         string
	DefaultModel      string
	ScriptTimeout     time.Duration
	GeminiAPIKey      string
	GeminiAPIEndpoint string // optional; custom base URL for the Gemini API
	GeminiModel       string

	// Speech synthesis
	ElevenLabsAPIKey          string
	VoiceID                   string
	ElevenLabsAPIURL          string
	ElevenLabsModelID         string
	ElevenLabsStability       float64
	ElevenLabsSimilarityBoost float64
	SynthesisTimeout          time.Duration

	// Run history (optional)
	DatabaseURL string

	// Event stream (optional)
	KafkaBrokers       []string
	KafkaTopicEvents   string
	KafkaConsumerGroup string

	// Outcome webhook (optional)
	WebhookURL    string
	WebhookSecret string

	// Artifact mirror (optional)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string // optional; public base URL for mirrored objects
	S3Prefix    string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":5000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OutputDir: getEnv("OUTPUT_DIR", "output"),

		ScriptBackend:     strings.ToLower(getEnv("SCRIPT_BACKEND", BackendOllama)),
		OllamaURL:         getEnv("OLLAMA_URL", "http://localhost:11434/api/generate"),
		DefaultModel:      getEnv("DEFAULT_MODEL", "llama3.2:3b"),
		ScriptTimeout:     getEnvDuration("SCRIPT_TIMEOUT", 5*time.Minute),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		ElevenLabsAPIKey:          getEnv("ELEVENLABS_API_KEY", ""),
		VoiceID:                   getEnv("VOICE_ID", ""),
		ElevenLabsAPIURL:          getEnv("ELEVENLABS_API_URL", "https://api.elevenlabs.io"),
		ElevenLabsModelID:         getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsStability:       getEnvFloat("ELEVENLABS_STABILITY", 0.5),
		ElevenLabsSimilarityBoost: getEnvFloat("ELEVENLABS_SIMILARITY_BOOST", 0.75),
		SynthesisTimeout:          getEnvDuration("SYNTHESIS_TIMEOUT", 10*time.Minute),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaTopicEvents:   getEnv("KAFKA_TOPIC_EVENTS", "podcasts.events.v1"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "podcasts-events-tail"),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),
		S3Prefix:    getEnv("S3_PREFIX", "podcasts"),
	}
}

// Validate reports settings that make the service unusable
func (c *Config) Validate() error {
	switch c.ScriptBackend {
	case BackendOllama:
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required for the %s backend", BackendOllama)
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s backend", BackendGemini)
		}
	default:
		return fmt.Errorf("unknown SCRIPT_BACKEND %q (want %s or %s)", c.ScriptBackend, BackendOllama, BackendGemini)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}
	return nil
}

// ScriptModel returns the model used when a request does not name one
func (c *Config) ScriptModel() string {
	if c.ScriptBackend == BackendGemini {
		return c.GeminiModel
	}
	return c.DefaultModel
}

// SynthesisConfigured reports whether both the TTS key and voice are present
func (c *Config) SynthesisConfigured() bool {
	return c.ElevenLabsAPIKey != "" && c.VoiceID != ""
}

// KafkaEnabled reports whether outcome events should be published
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// S3Enabled reports whether artifacts should be mirrored
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
