package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
	"github.com/snappy-loop/podcasts/internal/storage"
)

const (
	msgTopicRequired  = "Topic is required."
	msgScriptNotFound = "Script file not found."
	msgAudioNotFound  = "Audio file not found."

	maxRequestBody = 64 << 10
)

// podcastGenerator is the subset of pipeline.Generator used by Handler.
type podcastGenerator interface {
	GenerateStream(ctx context.Context, req models.GenerationRequest, onFragment func(string)) (*models.GenerationResult, error)
	DefaultModel() string
}

// RunLister lists stored generation runs
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]*models.GenerationRun, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	generator podcastGenerator
	runs      RunLister
	outputDir string
	health    func(ctx context.Context) error
}

// NewHandler creates a new handler. runs may be nil.
func NewHandler(generator podcastGenerator, runs RunLister, outputDir string) *Handler {
	return &Handler{
		generator: generator,
		runs:      runs,
		outputDir: outputDir,
	}
}

// SetHealthCheck makes /healthz report 503 while check fails
func (h *Handler) SetHealthCheck(check func(ctx context.Context) error) {
	h.health = check
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	data := struct {
		DefaultModel    string
		DefaultStyle    string
		DefaultDuration int
	}{
		DefaultModel:    h.generator.DefaultModel(),
		DefaultStyle:    models.DefaultStyle,
		DefaultDuration: models.DefaultDurationMinutes,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := executeTemplate(w, "index", data); err != nil {
		log.Error().Err(err).Msg("Failed to render index")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Generate handles POST /api/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	// An empty body is a request without a topic.
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OutputDir = ""

	result, err := h.generator.GenerateStream(r.Context(), req, nil)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			writeJSONError(w, http.StatusBadRequest, msgTopicRequired)
			return
		}
		log.Error().Err(err).Str("topic", req.Topic).Msg("Failed to generate podcast")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListRuns handles GET /api/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list generation runs")
		writeJSONError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*models.GenerationRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// DownloadScript handles GET /download/script?path=
func (h *Handler) DownloadScript(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, msgScriptNotFound)
}

// DownloadAudio handles GET /download/audio?path=
func (h *Handler) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, msgAudioNotFound)
}

func (h *Handler) serveArtifact(w http.ResponseWriter, r *http.Request, notFound string) {
	raw := r.URL.Query().Get("path")
	path, err := storage.ResolveDownload(raw, h.outputDir)
	if err != nil {
		log.Debug().Str("path", raw).Msg("Rejected download")
		writeJSONError(w, http.StatusNotFound, notFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, notFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSONError(w, http.StatusNotFound, notFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
