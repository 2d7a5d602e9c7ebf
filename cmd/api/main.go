package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/app"
	"github.com/snappy-loop/podcasts/internal/config"
	"github.com/snappy-loop/podcasts/internal/handlers"
	"github.com/snappy-loop/podcasts/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	log.Info().Msg("Starting Podcasts API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize generator")
	}
	defer a.Close()

	h := handlers.NewHandler(a.Generator, runLister(a), cfg.OutputDir)
	h.SetHealthCheck(a.Health)

	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(handlers.StaticFiles())))).Methods("GET")
	r.HandleFunc("/download/script", h.DownloadScript).Methods("GET")
	r.HandleFunc("/download/audio", h.DownloadAudio).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generate", h.Generate).Methods("POST")
	api.HandleFunc("/generate/ws", h.GenerateWS).Methods("GET")
	api.HandleFunc("/runs", h.ListRuns).Methods("GET")

	// Generation streams for minutes; only header reads are bounded.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}

// runLister avoids handing the handler a typed nil when run history is disabled.
func runLister(a *app.App) handlers.RunLister {
	if a.Runs == nil {
		return nil
	}
	return a.Runs
}
