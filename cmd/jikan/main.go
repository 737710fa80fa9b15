package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashita-ai/jikan"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("JIKAN_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	sessionDir := flag.String("dir", "", "session directory (default: timestamp-derived, or JIKAN_SESSION_DIR)")
	flag.Parse()

	opts := []jikan.Option{
		jikan.WithLogger(logger),
		jikan.WithVersion(version),
	}
	if *sessionDir != "" {
		opts = append(opts, jikan.WithSessionDir(*sessionDir))
	}

	app, err := jikan.New(opts...)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
