package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
)

const (
	// DefaultOllamaURL is the generate endpoint of a local Ollama server.
	DefaultOllamaURL = "http://localhost:11434/api/generate"

	maxStreamLineBytes = 1 << 20
	maxErrorBodyBytes  = 512
)

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaChunk is one line of the NDJSON response. Response is the incremental fragment.
type ollamaChunk struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    string  `json:"error"`
}

// OllamaStreamer streams scripts from an Ollama-compatible /api/generate endpoint
type OllamaStreamer struct {
	endpoint   string
	httpClient *http.Client
}

// NewOllamaStreamer creates a streamer for endpoint. httpClient may be nil.
// The client should not carry its own Timeout; the exchange is bounded by the caller's context.
func NewOllamaStreamer(endpoint string, httpClient *http.Client) *OllamaStreamer {
	if endpoint == "" {
		endpoint = DefaultOllamaURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OllamaStreamer{endpoint: endpoint, httpClient: httpClient}
}

// Name returns the backend identifier.
func (o *OllamaStreamer) Name() string {
	return "ollama"
}

// Stream posts {model, prompt} and yields the "response" field of every line.
// Malformed JSON on any line ends the sequence with an error.
func (o *OllamaStreamer) Stream(ctx context.Context, model, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		payload, err := json.Marshal(ollamaGenerateRequest{Model: model, Prompt: prompt, Stream: true})
		if err != nil {
			yield("", fmt.Errorf("failed to marshal generate request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
		if err != nil {
			yield("", fmt.Errorf("failed to create generate request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/x-ndjson")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			yield("", &models.UpstreamError{Service: o.Name(), Err: err})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
			yield("", &models.UpstreamError{
				Service:    o.Name(),
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
			})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				log.Error().Err(err).Int("line", lineNo).Msg("Malformed line in generate stream")
				yield("", fmt.Errorf("malformed generate stream line %d: %w", lineNo, err))
				return
			}
			if chunk.Error != "" {
				yield("", &models.UpstreamError{Service: o.Name(), StatusCode: resp.StatusCode, Body: chunk.Error})
				return
			}
			if chunk.Response != nil {
				if !yield(*chunk.Response, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", &models.UpstreamError{Service: o.Name(), Err: err})
		}
	}
}
