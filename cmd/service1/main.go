// Entry point for the document text extraction service: config, SQLite
// queue, storage sink, extraction coordinator, chi HTTP server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "modernc.org/sqlite"

	"github.com/nashrakhan-aithon/service1-text-extraction/dbopen"
	"github.com/nashrakhan-aithon/service1-text-extraction/extraction"
	"github.com/nashrakhan-aithon/service1-text-extraction/pdfextract"
	"github.com/nashrakhan-aithon/service1-text-extraction/progress"
	"github.com/nashrakhan-aithon/service1-text-extraction/queue"
	"github.com/nashrakhan-aithon/service1-text-extraction/storage"
)

func main() {
	configPath := env("CONFIG_PATH", "")
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := extraction.DefaultServiceConfig()
	if configPath != "" {
		loaded, err := extraction.LoadServiceConfig(configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(queue.Schema))
	if err != nil {
		slog.Error("queue db", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := queue.New(db)

	sink, err := storage.Open(ctx, cfg.Output)
	if err != nil {
		slog.Error("storage", "error", err)
		os.Exit(1)
	}

	tracker := progress.NewTracker(progress.Options{TTL: cfg.ProgressTTL(), Logger: logger})
	go tracker.Run(ctx)

	processor := extraction.NewProcessor(extraction.ProcessorConfig{
		Queue:           repo,
		Extractor:       pdfextract.NewPDFCPU(),
		Sink:            sink,
		Timeout:         cfg.DocumentTimeout(),
		DefaultPassword: cfg.DefaultPDFPassword,
		Logger:          logger,
	})
	coordinator := extraction.NewCoordinator(extraction.CoordinatorConfig{
		Queue:     repo,
		Processor: processor,
		Tracker:   tracker,
		Workers:   cfg.Workers,
		Logger:    logger,
	})
	svc := extraction.NewService(coordinator, tracker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	svc.RegisterHTTP(r)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "listen", cfg.Listen, "output", cfg.Output.Location)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
