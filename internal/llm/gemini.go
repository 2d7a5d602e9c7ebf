package llm

import (
	"context"
	"errors"
	"iter"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when Stream is called without a model.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiStreamer streams scripts from the Gemini API through the unified genai SDK
type GeminiStreamer struct {
	client *genai.Client
}

// NewGeminiStreamer creates a Gemini-backed streamer.
// apiEndpoint optionally overrides the Gemini API base URL (e.g. a local proxy).
func NewGeminiStreamer(ctx context.Context, apiKey, apiEndpoint string) (*GeminiStreamer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if apiEndpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: apiEndpoint}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("api_endpoint", apiEndpoint).
		Msg("Gemini script streamer initialized")

	return &GeminiStreamer{client: client}, nil
}

// Name returns the backend identifier.
func (g *GeminiStreamer) Name() string {
	return "gemini"
}

// Stream yields the text parts of every streamed response chunk. Thought parts are skipped.
func (g *GeminiStreamer) Stream(ctx context.Context, model, prompt string) iter.Seq2[string, error] {
	if model == "" {
		model = DefaultGeminiModel
	}
	return func(yield func(string, error) bool) {
		contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, nil) {
			if err != nil {
				yield("", &models.UpstreamError{Service: g.Name(), Err: err})
				return
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought || part.Text == "" {
					continue
				}
				if !yield(part.Text, nil) {
					return
				}
			}
		}
	}
}
