package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"amora/auth"
	"amora/domain/event"
	"amora/gateway"
	"amora/moderation"
	"amora/observability"
	"amora/repositories"
	"amora/runtime"
	"amora/runtime/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Database (BadgerDB) & Search Index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	// 3. Moderation wordlists
	censored, err := runtime.NewCensoredLoader().LoadAll()
	if err != nil {
		return fmt.Errorf("loading censored words: %w", err)
	}
	log.Info("Censored words loaded",
		"words", len(censored.Words), "languages", censored.Languages)
	moderator, err := moderation.NewModerator(censored.Words, config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("building moderator: %w", err)
	}

	// 4. Repositories, Directory & Engine
	conversationRepo := repositories.NewConversationRepository(db, log)
	messageRepo := repositories.NewMessageRepository(db, log, config.LimitMessages)
	presenceRepo := repositories.NewPresenceRepository(db, log)
	searchRepo := repositories.NewSearchRepository(indexWriter, log)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	directory := runtime.NewDirectory()
	events := make(chan event.DomainEvent, config.BufferSize)

	engine := runtime.NewEngine(
		conversationRepo, messageRepo, searchRepo,
		directory, moderator, events, log,
	)
	presence := runtime.NewPresenceManager(directory, presenceRepo, conversationRepo, events, log)

	// 5. Supervision & Workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewEventFanout(log, directory, events, observability.NewMetricsSink(metrics)),
		workers.NewHeartbeatWorker(log, metrics, config.HeartbeatInterval),
	)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 7. HTTP Server Setup
	tokens := auth.NewTokenValidator(config.AuthSecret)
	ws := gateway.NewWSHandler(engine, presence, tokens, metrics, config.ConnectionBufferSize, log)
	api := gateway.NewAPI(engine, presenceRepo, log)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: gateway.NewRouter(ws, api, registry),
	}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// newLogger maps the configured level onto a JSON slog handler.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
