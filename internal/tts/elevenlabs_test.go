package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/snappy-loop/podcasts/internal/models"
)

func TestNewElevenLabs_MissingCredential(t *testing.T) {
	tests := []struct {
		name string
		cfg  ElevenLabsConfig
	}{
		{"no key", ElevenLabsConfig{VoiceID: "voice"}},
		{"no voice", ElevenLabsConfig{APIKey: "key"}},
		{"blank key", ElevenLabsConfig{APIKey: "  ", VoiceID: "voice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewElevenLabs(tt.cfg, nil)
			if !errors.Is(err, models.ErrMissingCredential) {
				t.Errorf("expected ErrMissingCredential, got %v", err)
			}
		})
	}
}

func TestElevenLabs_WriteAudio(t *testing.T) {
	var (
		gotPath   string
		gotKey    string
		gotAccept string
		gotBody   elevenLabsRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotAccept = r.Header.Get("Accept")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"ID3", "chunk1", "chunk2"} {
			w.Write([]byte(chunk))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	synth, err := NewElevenLabs(ElevenLabsConfig{
		APIURL:          srv.URL + "/",
		APIKey:          "secret",
		VoiceID:         "voice-1",
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "episode.mp3")
	if err := WriteAudio(context.Background(), synth, Request{Text: "Hello listeners"}, path); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if string(got) != "ID3chunk1chunk2" {
		t.Errorf("audio bytes = %q", got)
	}
	if gotPath != "/v1/text-to-speech/voice-1/stream" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" || gotAccept != "audio/mpeg" {
		t.Errorf("headers key=%q accept=%q", gotKey, gotAccept)
	}
	if gotBody.Text != "Hello listeners" || gotBody.ModelID != DefaultModelID {
		t.Errorf("body = %+v", gotBody)
	}
	if gotBody.VoiceSettings.Stability != 0.5 || gotBody.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("voice settings = %+v", gotBody.VoiceSettings)
	}
}

func TestElevenLabs_RequestOverrides(t *testing.T) {
	var gotPath, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body elevenLabsRequest
		json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.ModelID
		w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	synth, _ := NewElevenLabs(ElevenLabsConfig{APIURL: srv.URL, APIKey: "k", VoiceID: "default"}, nil)
	path := filepath.Join(t.TempDir(), "a.mp3")
	if err := WriteAudio(context.Background(), synth, Request{Text: "x", VoiceID: "other", ModelID: "eleven_turbo_v2"}, path); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	if gotPath != "/v1/text-to-speech/other/stream" || gotModel != "eleven_turbo_v2" {
		t.Errorf("path=%q model=%q", gotPath, gotModel)
	}
}

func TestElevenLabs_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	synth, _ := NewElevenLabs(ElevenLabsConfig{APIURL: srv.URL, APIKey: "bad", VoiceID: "v"}, srv.Client())
	path := filepath.Join(t.TempDir(), "a.mp3")

	err := WriteAudio(context.Background(), synth, Request{Text: "x"}, path)
	var upstream *models.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusUnauthorized || upstream.Service != "elevenlabs" {
		t.Errorf("upstream = %+v", upstream)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no audio file expected: %v", err)
	}
}

func TestElevenLabs_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("ID3short"))
	}))
	defer srv.Close()

	synth, _ := NewElevenLabs(ElevenLabsConfig{APIURL: srv.URL, APIKey: "k", VoiceID: "v"}, srv.Client())
	path := filepath.Join(t.TempDir(), "a.mp3")

	err := WriteAudio(context.Background(), synth, Request{Text: "x"}, path)
	var upstream *models.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("truncated audio must not be left at target: %v", err)
	}
	if _, err := os.Stat(path + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial file must be removed: %v", err)
	}
}

func TestElevenLabs_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	synth, _ := NewElevenLabs(ElevenLabsConfig{APIURL: url, APIKey: "k", VoiceID: "v"}, nil)
	_, err := synth.Synthesize(context.Background(), Request{Text: "x"})
	var upstream *models.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != 0 {
		t.Fatalf("expected transport UpstreamError, got %v", err)
	}
}
