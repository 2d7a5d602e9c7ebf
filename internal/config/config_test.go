package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "OUTPUT_DIR", "SCRIPT_BACKEND", "OLLAMA_URL", "DEFAULT_MODEL",
		"SCRIPT_TIMEOUT", "SYNTHESIS_TIMEOUT", "ELEVENLABS_STABILITY", "KAFKA_BROKERS", "S3_BUCKET",
		"WEBHOOK_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.HTTPAddr != ":5000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.OutputDir != "output" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.OllamaURL != "http://localhost:11434/api/generate" {
		t.Errorf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.DefaultModel != "llama3.2:3b" || cfg.ScriptModel() != "llama3.2:3b" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.ScriptTimeout != 5*time.Minute || cfg.SynthesisTimeout != 10*time.Minute {
		t.Errorf("timeouts = %s / %s", cfg.ScriptTimeout, cfg.SynthesisTimeout)
	}
	if cfg.ElevenLabsStability != 0.5 || cfg.ElevenLabsSimilarityBoost != 0.75 {
		t.Errorf("voice settings = %v / %v", cfg.ElevenLabsStability, cfg.ElevenLabsSimilarityBoost)
	}
	if cfg.KafkaEnabled() || cfg.S3Enabled() || cfg.WebhookURL != "" {
		t.Error("optional integrations should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCRIPT_BACKEND", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("SCRIPT_TIMEOUT", "90s")
	t.Setenv("SYNTHESIS_TIMEOUT", "not-a-duration")
	t.Setenv("ELEVENLABS_STABILITY", "0.3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("ELEVENLABS_API_KEY", "el")
	t.Setenv("VOICE_ID", "voice")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/podcasts")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg := Load()
	if cfg.ScriptBackend != BackendGemini || cfg.ScriptModel() != "gemini-2.5-pro" {
		t.Errorf("backend = %q model = %q", cfg.ScriptBackend, cfg.ScriptModel())
	}
	if cfg.ScriptTimeout != 90*time.Second {
		t.Errorf("ScriptTimeout = %s", cfg.ScriptTimeout)
	}
	if cfg.SynthesisTimeout != 10*time.Minute {
		t.Errorf("invalid duration should fall back, got %s", cfg.SynthesisTimeout)
	}
	if cfg.ElevenLabsStability != 0.3 {
		t.Errorf("stability = %v", cfg.ElevenLabsStability)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.SynthesisConfigured() {
		t.Error("synthesis should be configured")
	}
	if cfg.WebhookURL != "https://hooks.example.com/podcasts" || cfg.WebhookSecret != "s3cret" {
		t.Errorf("webhook = %q / %q", cfg.WebhookURL, cfg.WebhookSecret)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ollama ok", Config{ScriptBackend: BackendOllama, OllamaURL: "http://x", OutputDir: "out"}, false},
		{"ollama no url", Config{ScriptBackend: BackendOllama, OutputDir: "out"}, true},
		{"gemini no key", Config{ScriptBackend: BackendGemini, OutputDir: "out"}, true},
		{"unknown backend", Config{ScriptBackend: "openai", OutputDir: "out"}, true},
		{"empty output dir", Config{ScriptBackend: BackendOllama, OllamaURL: "http://x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
