package jikan

import (
	"io"
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	version       string
	sessionDir    string
	flushInterval time.Duration
	clock         clockz.Clock
	in            io.Reader
	out           io.Writer
	spanHooks     []SpanHook
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithSessionDir overrides the session directory from config
// (JIKAN_SESSION_DIR env var, default timestamp-derived).
func WithSessionDir(dir string) Option {
	return func(o *resolvedOptions) { o.sessionDir = dir }
}

// WithFlushInterval overrides the background writer cadence from config
// (JIKAN_FLUSH_INTERVAL env var).
func WithFlushInterval(d time.Duration) Option {
	return func(o *resolvedOptions) { o.flushInterval = d }
}

// WithClock injects the clock used for all timing. The real clock is the
// default; tests use clockz.NewFakeClock().
func WithClock(clock clockz.Clock) Option {
	return func(o *resolvedOptions) { o.clock = clock }
}

// WithInput sets the command input stream. Defaults to os.Stdin.
func WithInput(in io.Reader) Option {
	return func(o *resolvedOptions) { o.in = in }
}

// WithOutput sets the interactive output stream. Defaults to os.Stdout.
func WithOutput(out io.Writer) Option {
	return func(o *resolvedOptions) { o.out = out }
}

// WithSpanHook registers a hook to receive every closed span.
// Multiple hooks may be registered; all registered hooks receive every span.
func WithSpanHook(hook SpanHook) Option {
	return func(o *resolvedOptions) { o.spanHooks = append(o.spanHooks, hook) }
}
