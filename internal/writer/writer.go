// Package writer runs the background flush loop: every interval it renders
// the session report and serializes the span tree, writing both to disk.
package writer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/jikan/internal/bench"
	"github.com/ashita-ai/jikan/internal/storage"
	"github.com/ashita-ai/jikan/internal/telemetry"
)

// Writer periodically flushes the bench state to the session files. It is
// the sole external reader of the bench; the command loop is the sole
// writer. Drain arms exactly one more flush after cancellation so the final
// on-disk artifacts reflect the drained terminal state.
type Writer struct {
	bench    *bench.Bench
	session  *storage.Session
	logger   *slog.Logger
	clock    clockz.Clock
	interval time.Duration

	started    atomic.Bool
	cycles     atomic.Int64
	lastDurMs  atomic.Int64
	lastBytes  atomic.Int64
	flushCh    chan struct{}
	done       chan struct{}
	cancelLoop context.CancelFunc
}

// New creates a writer flushing every interval.
func New(b *bench.Bench, session *storage.Session, logger *slog.Logger, interval time.Duration, clock clockz.Clock) *Writer {
	return &Writer{
		bench:    b,
		session:  session,
		logger:   logger,
		clock:    clock,
		interval: interval,
		flushCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start begins the background flush loop and registers OTEL metrics.
// Idempotent; call Drain to stop. The loop deliberately outlives ctx
// cancellation: the one final flush must happen after the session has
// drained, and only Drain knows when that is. A caller that cancels ctx
// without draining would otherwise burn the final flush on a still-open
// tree.
func (w *Writer) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("writer: already started")
		return
	}
	w.registerMetrics()
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancelLoop = cancel
	go w.loop(loopCtx)
}

// Kick requests an immediate flush outside the normal cadence.
func (w *Writer) Kick() {
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

func (w *Writer) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// One final flush after arming — not zero, not a tail loop.
			w.flush()
			close(w.done)
			return
		case <-w.clock.After(w.interval):
			w.flush()
		case <-w.flushCh:
			w.flush()
		}
	}
}

// flush renders and serializes the bench, then writes both artifacts.
// Failures are logged and the cycle is skipped — the next one retries.
func (w *Writer) flush() {
	start := w.clock.Now()
	reportText := w.bench.Render()
	snap, err := w.bench.SnapshotJSON()
	if err != nil {
		w.logger.Error("writer: snapshot failed", "error", err)
		return
	}

	if err := w.session.WriteReport(reportText + "\n"); err != nil {
		w.logger.Error("writer: report write failed", "error", err, "path", w.session.ReportPath())
	}
	if err := w.session.WriteSnapshot(snap); err != nil {
		w.logger.Error("writer: snapshot write failed", "error", err, "path", w.session.SnapshotPath())
	}

	w.cycles.Add(1)
	w.lastDurMs.Store(w.clock.Since(start).Milliseconds())
	w.lastBytes.Store(int64(len(snap)))
}

// Drain signals the loop to stop, waits for its final flush, and returns.
// The ctx bounds the wait; the flush itself is local file I/O.
func (w *Writer) Drain(ctx context.Context) {
	if w.cancelLoop != nil {
		w.cancelLoop()
	}
	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn("writer: drain timed out waiting for final flush")
	}
}

// Cycles returns how many flushes have completed.
func (w *Writer) Cycles() int64 {
	return w.cycles.Load()
}

// registerMetrics registers observable OTEL gauges for flush health.
func (w *Writer) registerMetrics() {
	meter := telemetry.Meter("jikan/writer")

	_, _ = meter.Int64ObservableGauge("jikan.writer.cycles",
		metric.WithDescription("Completed flush cycles"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(w.cycles.Load())
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("jikan.writer.last_flush_ms",
		metric.WithDescription("Duration of the most recent flush in milliseconds"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(w.lastDurMs.Load())
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("jikan.writer.snapshot_bytes",
		metric.WithDescription("Size of the most recent snapshot in bytes"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(w.lastBytes.Load())
			return nil
		}),
	)
}
