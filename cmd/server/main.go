package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chatbot "github.com/tejaswanthparasa/chatbot"
	"github.com/tejaswanthparasa/chatbot/internal/handlers"
	"github.com/tejaswanthparasa/chatbot/internal/logging"
	"github.com/tejaswanthparasa/chatbot/internal/services"
	"github.com/tejaswanthparasa/chatbot/internal/stream"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
	"gopkg.in/yaml.v3"
)

const errLoggerKey = "error"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("error getting user config dir: %w", err)
	}
	cfgPath := filepath.Join(cfgDir, "chatwidget")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	cfg, err := loadConfig(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		File:     cfg.LogFile,
		Fallback: os.Stderr,
	})
	if err != nil {
		logger.Warn("Logging to file disabled", slog.String(errLoggerKey, err.Error()))
	}

	llm, err := cfg.LLM.llm(cfg.SystemPrompt, logger)
	if err != nil {
		return fmt.Errorf("error creating llm: %w", err)
	}

	boltDB, err := services.NewBoltDB(filepath.Join(cfgPath, "profiles.db"))
	if err != nil {
		return err
	}
	defer boltDB.Close()

	if err := boltDB.SeedProfiles(context.Background()); err != nil {
		return fmt.Errorf("error seeding profiles: %w", err)
	}
	profile, err := boltDB.Profile(context.Background(), cfg.Profile)
	if err != nil {
		return fmt.Errorf("error loading profile: %w", err)
	}
	widget := profile.Merge(cfg.Widget)

	conv := transcript.New(
		stream.NewHTTPTransport(cfg.Endpoint, &http.Client{}),
		transcript.WithLogger(logger),
		transcript.WithApology(cfg.apology()),
		transcript.WithGreeting(widget.Greeting()),
	)

	m, err := handlers.NewMain(conv, llm, boltDB, handlers.WidgetSettings{
		Profile:  cfg.Profile,
		Override: cfg.Widget,
	}, logger)
	if err != nil {
		return err
	}

	// Serve static files
	staticFS, err := fs.Sub(chatbot.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/chats/cancel", m.HandleCancel)
	mux.HandleFunc("/sse/messages", m.HandleSSE)
	mux.HandleFunc("/config", m.HandleConfig)
	mux.HandleFunc("/config/profiles", m.HandleProfiles)
	mux.HandleFunc("/api/chat", m.HandleCompletion)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("profile", cfg.Profile),
			slog.String("endpoint", cfg.Endpoint))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
			}
		}
	}

	return nil
}

func loadConfig(path string) (config, error) {
	cfgFile, err := os.Open(path)
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}
