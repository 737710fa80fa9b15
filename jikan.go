// Package jikan is the public API for embedding the jikan session tracker.
//
// jikan builds a nested timeline of named activities — a personal call
// stack with timestamps. You declare what you are working on, nest deeper,
// and pop back out; a background writer keeps a human-readable report and a
// resumable snapshot on disk the whole time.
//
//	app, err := jikan.New(
//	    jikan.WithVersion(version),
//	    jikan.WithLogger(logger),
//	    jikan.WithSpanHook(myHook{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: jikan (root) imports
// internal/*, but internal/* never imports jikan (root). Public types
// (ClosedSpan) are standalone structs; the conversion helper
// (toPublicClosed) lives here because this is the only file that sees both
// sides of the boundary.
package jikan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/jikan/internal/bench"
	"github.com/ashita-ai/jikan/internal/command"
	"github.com/ashita-ai/jikan/internal/config"
	"github.com/ashita-ai/jikan/internal/model"
	"github.com/ashita-ai/jikan/internal/report"
	"github.com/ashita-ai/jikan/internal/storage"
	"github.com/ashita-ai/jikan/internal/telemetry"
	"github.com/ashita-ai/jikan/internal/writer"
)

// App is one tracking session's lifecycle. Construct with New(), run with
// Run(). App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	logger       *slog.Logger
	clock        clockz.Clock
	bench        *bench.Bench
	session      *storage.Session
	archive      *storage.Archive
	writer       *writer.Writer
	loop         *command.Loop
	spanHooks    []SpanHook
	otelShutdown telemetry.Shutdown
	otelEnabled  bool
	out          io.Writer
	version      string
	resumed      bool
}

// New initialises a session. It prepares the session directory, loads a
// prior snapshot if one exists, opens the archive, and wires the writer and
// command loop. It does NOT start any goroutines — call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := o.clock
	if clock == nil {
		clock = clockz.RealClock
	}
	in := o.in
	if in == nil {
		in = os.Stdin
	}
	out := o.out
	if out == nil {
		out = os.Stdout
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load(clock.Now())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.sessionDir != "" {
		cfg.SessionDir = o.sessionDir
	}
	if o.flushInterval != 0 {
		cfg.FlushInterval = o.flushInterval
	}

	logger.Info("jikan starting", "version", version, "session_dir", cfg.SessionDir)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Prepare the session directory; fail fast on unwritable paths.
	session, err := storage.NewSession(cfg.SessionDir, cfg.ReportFile, cfg.SnapshotFile)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("session: %w", err)
	}

	// Resume from a snapshot when one exists, else start fresh.
	var b *bench.Bench
	var resumed bool
	snap, err := session.LoadSnapshot()
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("session: %w", err)
	}
	if snap != nil {
		b, err = bench.Resume(snap, clock)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("resume snapshot %s: %w", session.SnapshotPath(), err)
		}
		resumed = true
		logger.Info("session resumed", "snapshot", session.SnapshotPath(), "running", b.RunningPath())
	} else {
		b = bench.New(clock)
	}

	// Open the closed-span archive.
	archive, err := storage.OpenArchive(context.Background(), cfg.ArchivePath(), cfg.SessionDir, clock.Now())
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("archive: %w", err)
	}

	app := &App{
		cfg:          cfg,
		logger:       logger,
		clock:        clock,
		bench:        b,
		session:      session,
		archive:      archive,
		spanHooks:    o.spanHooks,
		otelShutdown: otelShutdown,
		otelEnabled:  cfg.OTELEndpoint != "",
		out:          out,
		version:      version,
		resumed:      resumed,
	}
	app.writer = writer.New(b, session, logger, cfg.FlushInterval, clock)
	app.loop = command.New(b, in, out, logger, app.spanClosed)
	return app, nil
}

// Resumed reports whether the session was restored from a snapshot.
func (a *App) Resumed() bool { return a.resumed }

// ReportPath returns the path of the rendered report file.
func (a *App) ReportPath() string { return a.session.ReportPath() }

// Run starts the background writer, drives the interactive loop until the
// session ends, then drains the writer so the final report and snapshot on
// disk reflect the fully-closed session.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintf(a.out, `jikan engaged — empty line, q, quit, exit or abort to stop.
Report: %s  (watch it with: kansoku %s)

  any line   enter a nested span named after it
  <          leave the innermost span

`, a.session.ReportPath(), a.session.ReportPath())

	a.writer.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.loop.Run(gctx) })
	loopErr := g.Wait()

	// The loop has drained every open span; arm the writer for its one
	// final flush so the terminal state lands on disk.
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a.writer.Drain(drainCtx)
	cancel()

	a.logSummary()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := a.archive.CloseSession(closeCtx, a.clock.Now()); err != nil {
		a.logger.Warn("archive close session failed", "error", err)
	}
	cancel()
	if err := a.archive.Close(); err != nil {
		a.logger.Warn("archive close failed", "error", err)
	}

	if err := a.otelShutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}

	a.logger.Info("jikan stopped", "report", a.session.ReportPath())
	return loopErr
}

// spanClosed fans a closed span out to the archive, the OTEL exporter, and
// every registered hook. Failures are logged, never fatal — losing one
// archive row does not justify killing the session.
func (a *App) spanClosed(c model.Closed) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.archive.RecordClosed(ctx, c); err != nil {
		a.logger.Warn("archive record failed", "error", err, "span", c.Name)
	}

	if a.otelEnabled {
		a.exportSpan(ctx, c)
	}

	pub := toPublicClosed(c)
	for _, hook := range a.spanHooks {
		if err := hook.OnSpanClosed(ctx, pub); err != nil {
			a.logger.Warn("span hook failed", "error", err, "span", c.Name)
		}
	}
}

// exportSpan emits the closed span as an OTEL span with its real
// begin/end timestamps.
func (a *App) exportSpan(ctx context.Context, c model.Closed) {
	tracer := telemetry.Tracer("jikan/session")
	_, span := tracer.Start(ctx, c.Name,
		trace.WithTimestamp(c.BegunAt),
		trace.WithAttributes(
			attribute.String("jikan.path", c.Path),
			attribute.Int64("jikan.personal_ns", int64(c.Personal)),
			attribute.Int64("jikan.total_ns", int64(c.Total)),
		),
	)
	span.End(trace.WithTimestamp(c.EndedAt))
}

// logSummary logs the per-name aggregates recorded in the archive.
func (a *App) logSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := a.archive.NameSummary(ctx)
	if err != nil {
		a.logger.Warn("name summary failed", "error", err)
		return
	}
	for _, st := range stats {
		a.logger.Info("session totals",
			"name", st.Name,
			"count", st.Count,
			"personal", report.FormatDuration(st.PersonalSum),
			"total", report.FormatDuration(st.TotalSum),
		)
	}
}

func toPublicClosed(c model.Closed) ClosedSpan {
	return ClosedSpan{
		Name:     c.Name,
		Path:     c.Path,
		BegunAt:  c.BegunAt,
		EndedAt:  c.EndedAt,
		Personal: c.Personal,
		Total:    c.Total,
	}
}
