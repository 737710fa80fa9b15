package writer_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/ashita-ai/jikan/internal/bench"
	"github.com/ashita-ai/jikan/internal/storage"
	"github.com/ashita-ai/jikan/internal/writer"
)

func newTestWriter(t *testing.T) (*writer.Writer, *bench.Bench, *storage.Session) {
	t.Helper()
	clock := clockz.NewFakeClock()
	b := bench.New(clock)
	session, err := storage.NewSession(t.TempDir(), "dev.profile", "session.json")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	w := writer.New(b, session, logger, 2*time.Second, clock)
	return w, b, session
}

func TestDrainFlushesExactlyOnceMore(t *testing.T) {
	w, b, session := newTestWriter(t)

	require.NoError(t, b.Enter("work"))
	_, err := b.Leave()
	require.NoError(t, err)
	_, err = b.Leave() // close the root: terminal state
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// No clock advance: the loop has not ticked. Arming the drain must
	// produce exactly one final flush — not zero, not a tail loop.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	w.Drain(drainCtx)

	assert.Equal(t, int64(1), w.Cycles())

	// The on-disk report reflects the fully-drained state.
	data, err := os.ReadFile(session.ReportPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "root (Ended")
	assert.Contains(t, string(data), "Totals by name:")

	snap, err := session.LoadSnapshot()
	require.NoError(t, err)
	assert.Contains(t, string(snap), `"name": "work"`)
}

func TestKickFlushesOutOfCadence(t *testing.T) {
	w, b, session := newTestWriter(t)
	require.NoError(t, b.Enter("thing"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Kick()
	require.Eventually(t, func() bool { return w.Cycles() == 1 }, 2*time.Second, 5*time.Millisecond)

	data, err := os.ReadFile(session.ReportPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Currently: root.thing")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	w.Drain(drainCtx)
	assert.Equal(t, int64(2), w.Cycles(), "drain adds its single final flush")
}

func TestCallerCancelDoesNotArmFinalFlush(t *testing.T) {
	// A signal cancels the app context while spans are still open. The loop
	// must ignore that cancellation; the final flush belongs to Drain, after
	// the session has drained, so the terminal state is what lands on disk.
	w, b, session := newTestWriter(t)
	require.NoError(t, b.Enter("work"))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	assert.Never(t, func() bool { return w.Cycles() > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"cancelling the start context must not flush")

	_, err := b.Leave()
	require.NoError(t, err)
	_, err = b.Leave() // root
	require.NoError(t, err)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	w.Drain(drainCtx)

	assert.Equal(t, int64(1), w.Cycles())
	data, err := os.ReadFile(session.ReportPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "root (Ended")
	assert.NotContains(t, string(data), "Currently:")
}

func TestStartIsIdempotent(t *testing.T) {
	w, _, _ := newTestWriter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	w.Start(ctx) // second call must not spawn a second loop or panic

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	w.Drain(drainCtx)
	assert.Equal(t, int64(1), w.Cycles())
}
