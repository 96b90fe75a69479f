package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/api"
	"github.com/felixgeelhaar/polyglot/internal/config"
)

const pidFileName = "polyglotd.pid"

func main() {
	serverMode := flag.Bool("server", false, "run in server mode using environment configuration")
	flag.Parse()

	if err := run(*serverMode); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run(serverMode bool) error {
	// Ensure ~/.polyglot directory exists
	polyglotDir, err := config.EnsurePolyglotDir()
	if err != nil {
		return fmt.Errorf("ensure polyglot dir: %w", err)
	}

	lc, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load local config: %w", err)
	}

	var cfg *config.Config
	var addr string
	if serverMode {
		// Server deployments are configured entirely from the environment.
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		addr = fmt.Sprintf(":%d", cfg.Port)
	} else {
		cfg = localServerConfig(lc, polyglotDir)
		addr = fmt.Sprintf("%s:%d", lc.Daemon.Bind, lc.Daemon.Port)
	}

	logLevel := parseLogLevel(lc.Daemon.LogLevel)
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logFile, err := setupLogging(polyglotDir, logLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Write PID file
	pidPath := filepath.Join(polyglotDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx := context.Background()
	app, err := api.NewApp(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer app.Close()

	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	slog.Info("daemon listening", "addr", addr, "fixtures", cfg.UseFixtures)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// localServerConfig maps the ~/.polyglot configuration onto the server
// configuration. Postgres and RabbitMQ stay opt-in via the environment;
// without them the daemon runs self-contained.
func localServerConfig(lc *config.LocalConfig, polyglotDir string) *config.Config {
	return &config.Config{
		Port:             lc.Daemon.Port,
		Debug:            lc.Daemon.LogLevel == "debug",
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		SQLitePath:       filepath.Join(polyglotDir, "db", "polyglot.db"),
		DataDir:          filepath.Join(polyglotDir, "store"),
		AuthAPIURL:       lc.Backends.AuthURL,
		OnboardingAPIURL: lc.Backends.OnboardingURL,
		ExercisingAPIURL: lc.Backends.ExercisingURL,
		BackendToken:     lc.Backends.Token,
		UseFixtures:      lc.Backends.UseFixtures,
		SessionMaxAge:    86400 * 7,
		CacheTTLMinutes:  lc.Cache.TTLMinutes,
		CacheMaxEntries:  lc.Cache.MaxEntries,
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(polyglotDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(polyglotDir, "logs", "polyglotd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the log file, text to stderr for foreground mode
	multi := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}

	slog.SetDefault(slog.New(multi))

	return logFile, nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
