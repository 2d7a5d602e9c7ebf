package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
)

const (
	DefaultElevenLabsURL   = "https://api.elevenlabs.io"
	DefaultModelID         = "eleven_multilingual_v2"
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75

	maxErrorBody = 512
)

// ElevenLabsConfig holds ElevenLabs connection settings.
type ElevenLabsConfig struct {
	APIURL          string
	APIKey          string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabs streams MP3 audio from the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

// NewElevenLabs returns models.ErrMissingCredential when the API key or voice is unset.
func NewElevenLabs(cfg ElevenLabsConfig, httpClient *http.Client) (*ElevenLabs, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY: %w", models.ErrMissingCredential)
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, fmt.Errorf("VOICE_ID: %w", models.ErrMissingCredential)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultElevenLabsURL
	}
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ElevenLabs{cfg: cfg, httpClient: httpClient}, nil
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

// Synthesize starts a streaming synthesis. The returned body yields MP3 chunks as they arrive.
func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (io.ReadCloser, error) {
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = e.cfg.VoiceID
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = e.cfg.ModelID
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	endpoint := e.cfg.APIURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)

	log.Debug().
		Str("voice_id", voiceID).
		Str("model_id", modelID).
		Int("text_length", len(req.Text)).
		Msg("Requesting speech synthesis")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, &models.UpstreamError{Service: e.Name(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("Speech synthesis rejected")
		return nil, &models.UpstreamError{
			Service:    e.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return &upstreamBody{ReadCloser: resp.Body, service: e.Name()}, nil
}

// upstreamBody tags mid-stream transport failures as upstream errors.
type upstreamBody struct {
	io.ReadCloser
	service string
}

func (b *upstreamBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, &models.UpstreamError{Service: b.service, Err: err}
	}
	return n, err
}
