package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/snappy-loop/podcasts/internal/models"
	"github.com/snappy-loop/podcasts/internal/tts"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type fakeStreamer struct {
	fragments []string
	err       error
	gotModel  string
	gotPrompt string
	calls     int
}

func (s *fakeStreamer) Name() string { return "fake-llm" }

func (s *fakeStreamer) Stream(ctx context.Context, model, prompt string) iter.Seq2[string, error] {
	s.calls++
	s.gotModel = model
	s.gotPrompt = prompt
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

type fakeSynth struct {
	audio   string
	err     error
	block   bool
	gotText string
	calls   int
}

func (s *fakeSynth) Name() string { return "fake-tts" }

func (s *fakeSynth) Synthesize(ctx context.Context, req tts.Request) (io.ReadCloser, error) {
	s.calls++
	s.gotText = req.Text
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.audio)), nil
}

type recordingSink struct {
	mu       sync.Mutex
	events   []*models.GenerationEvent
	mirrored [][]string
	err      error
}

func (r *recordingSink) PublishEvent(ctx context.Context, e *models.GenerationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) Mirror(ctx context.Context, paths ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirrored = append(r.mirrored, paths)
	return r.err
}

func newTestGenerator(t *testing.T, streamer *fakeStreamer, opts ...Option) (*Generator, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "output")
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	g := NewGenerator(streamer, Config{
		OutputDir:    dir,
		DefaultModel: "llama3.2:3b",
	}, opts...)
	return g, dir
}

func TestGenerate_SkipAudio(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"Welcome ", "to ", "the show."}}
	synth := &fakeSynth{audio: "ID3"}
	g, dir := newTestGenerator(t, streamer, WithSynthesizer(synth))

	res, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "AI & The Future!!!", SkipAudio: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	wantPath := filepath.Join(dir, "20260314_150926_ai-the-future.txt")
	if res.ScriptPath != wantPath {
		t.Errorf("ScriptPath = %q, want %q", res.ScriptPath, wantPath)
	}
	if res.AudioPath != "" {
		t.Errorf("AudioPath = %q, want empty", res.AudioPath)
	}
	if res.Script != "Welcome to the show." {
		t.Errorf("Script = %q", res.Script)
	}
	got, _ := os.ReadFile(res.ScriptPath)
	if string(got) != res.Script {
		t.Errorf("file content %q != script %q", got, res.Script)
	}
	if synth.calls != 0 {
		t.Errorf("synthesizer called %d times with skip_audio", synth.calls)
	}
	if streamer.gotModel != "llama3.2:3b" {
		t.Errorf("model = %q", streamer.gotModel)
	}
	for _, want := range []string{"AI & The Future!!!", "conversational", "3 minutes"} {
		if !strings.Contains(streamer.gotPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerate_WithAudio(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"Hello listeners."}}
	synth := &fakeSynth{audio: "ID3frames"}
	sink := &recordingSink{}
	g, dir := newTestGenerator(t, streamer, WithSynthesizer(synth), WithPublisher(sink), WithMirror(sink))

	res, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Space Travel", Style: "playful", DurationMinutes: 5, Model: "mistral"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.AudioPath != filepath.Join(dir, "20260314_150926_space-travel.mp3") {
		t.Errorf("AudioPath = %q", res.AudioPath)
	}
	if strings.TrimSuffix(res.AudioPath, ".mp3") != strings.TrimSuffix(res.ScriptPath, ".txt") {
		t.Errorf("paths do not share a stem: %q %q", res.ScriptPath, res.AudioPath)
	}
	audio, _ := os.ReadFile(res.AudioPath)
	if string(audio) != "ID3frames" {
		t.Errorf("audio = %q", audio)
	}
	if synth.gotText != "Hello listeners." {
		t.Errorf("synthesized text = %q", synth.gotText)
	}
	if streamer.gotModel != "mistral" {
		t.Errorf("model = %q", streamer.gotModel)
	}

	if len(sink.events) != 1 || sink.events[0].Type != models.EventGenerated {
		t.Fatalf("events = %+v", sink.events)
	}
	if sink.events[0].AudioPath != res.AudioPath || sink.events[0].ScriptLength != len(res.Script) {
		t.Errorf("event = %+v", sink.events[0])
	}
	if len(sink.mirrored) != 1 || sink.mirrored[0][0] != res.ScriptPath || sink.mirrored[0][1] != res.AudioPath {
		t.Errorf("mirrored = %v", sink.mirrored)
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"x"}}
	g, dir := newTestGenerator(t, streamer)

	for _, topic := range []string{"", "   \t\n"} {
		if _, err := g.Generate(context.Background(), models.GenerationRequest{Topic: topic}); !errors.Is(err, models.ErrInvalidRequest) {
			t.Errorf("topic %q: expected ErrInvalidRequest, got %v", topic, err)
		}
	}
	if streamer.calls != 0 {
		t.Errorf("streamer called for invalid request")
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output dir should not be created: %v", err)
	}
}

func TestGenerate_MissingCredential(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"A script."}}
	sink := &recordingSink{}
	g, dir := newTestGenerator(t, streamer, WithPublisher(sink), WithMirror(sink))

	res, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Bees"})
	if !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if res != nil {
		t.Errorf("result should be nil on failure: %+v", res)
	}

	scriptPath := filepath.Join(dir, "20260314_150926_bees.txt")
	if got, err := os.ReadFile(scriptPath); err != nil || string(got) != "A script." {
		t.Errorf("script should be retained: %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "20260314_150926_bees.mp3")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no audio expected: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != models.EventFailed || sink.events[0].ScriptPath != scriptPath {
		t.Errorf("events = %+v", sink.events)
	}
	if len(sink.mirrored) != 0 {
		t.Errorf("failed runs must not be mirrored")
	}
}

func TestGenerate_ScriptFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name     string
		streamer *fakeStreamer
		want     error
	}{
		{"empty generation", &fakeStreamer{fragments: []string{"  ", "\n"}}, models.ErrEmptyGeneration},
		{"upstream error", &fakeStreamer{fragments: []string{"partial"}, err: &models.UpstreamError{Service: "ollama", StatusCode: 500}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynth{audio: "ID3"}
			g, dir := newTestGenerator(t, tt.streamer, WithSynthesizer(synth))

			_, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Bees"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var upstream *models.UpstreamError
			if tt.want == nil && !errors.As(err, &upstream) {
				t.Errorf("expected UpstreamError, got %v", err)
			}
			if synth.calls != 0 {
				t.Error("synthesizer must not run after a script failure")
			}
			if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("nothing should be written: %v", err)
			}
		})
	}
}

func TestGenerate_SynthesisFailureKeepsScript(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"A script."}}
	synth := &fakeSynth{err: &models.UpstreamError{Service: "fake-tts", StatusCode: 401}}
	g, dir := newTestGenerator(t, streamer, WithSynthesizer(synth))

	_, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Bees"})
	var upstream *models.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != 401 {
		t.Fatalf("expected 401 UpstreamError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "20260314_150926_bees.txt")); err != nil {
		t.Errorf("script should be retained: %v", err)
	}
}

func TestGenerate_SynthesisTimeout(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"A script."}}
	synth := &fakeSynth{block: true}
	g := NewGenerator(streamer, Config{
		OutputDir:        t.TempDir(),
		DefaultModel:     "m",
		SynthesisTimeout: 20 * time.Millisecond,
	}, WithSynthesizer(synth))

	_, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Bees"})
	var upstream *models.UpstreamError
	if !errors.As(err, &upstream) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout UpstreamError, got %v", err)
	}
	if upstream.Service != "fake-tts" {
		t.Errorf("service = %q", upstream.Service)
	}
}

func TestGenerate_CollisionSuffix(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"Second run."}}
	g, dir := newTestGenerator(t, streamer)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	first := filepath.Join(dir, "20260314_150926_bees.txt")
	if err := os.WriteFile(first, []byte("First run."), 0o644); err != nil {
		t.Fatal(err)
	}
	// An orphaned audio file also reserves its stem.
	if err := os.WriteFile(filepath.Join(dir, "20260314_150926_bees-2.mp3"), []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Bees", SkipAudio: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ScriptPath != filepath.Join(dir, "20260314_150926_bees-3.txt") {
		t.Errorf("ScriptPath = %q", res.ScriptPath)
	}
	got, _ := os.ReadFile(first)
	if string(got) != "First run." {
		t.Errorf("existing script overwritten: %q", got)
	}
}

func TestGenerate_OutputDirOverride(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"x"}}
	g, _ := newTestGenerator(t, streamer)
	override := filepath.Join(t.TempDir(), "custom")

	res, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Bees", SkipAudio: true, OutputDir: override})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Dir(res.ScriptPath) != override {
		t.Errorf("ScriptPath = %q", res.ScriptPath)
	}
}

func TestGenerate_SideChannelFailuresIgnored(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"x"}}
	sink := &recordingSink{err: errors.New("unavailable")}
	g, _ := newTestGenerator(t, streamer, WithPublisher(sink), WithPublisher(sink), WithRunRecorder(sinkRecorder{sink}), WithMirror(sink))

	if _, err := g.Generate(context.Background(), models.GenerationRequest{Topic: "Bees", SkipAudio: true}); err != nil {
		t.Fatalf("side channel errors must not fail the run: %v", err)
	}
	if len(sink.events) != 3 {
		t.Errorf("expected two publishes and one record, got %d events", len(sink.events))
	}
}

type sinkRecorder struct{ s *recordingSink }

func (r sinkRecorder) RecordEvent(ctx context.Context, e *models.GenerationEvent) error {
	return r.s.PublishEvent(ctx, e)
}

func TestGenerateStream_ObservesFragments(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"Hel", "lo ", "world"}}
	g, _ := newTestGenerator(t, streamer)

	var seen []string
	res, err := g.GenerateStream(context.Background(), models.GenerationRequest{Topic: "Bees", SkipAudio: true}, func(f string) {
		seen = append(seen, f)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if strings.Join(seen, "") != res.Script || len(seen) != 3 {
		t.Errorf("seen = %q, script = %q", seen, res.Script)
	}
}
