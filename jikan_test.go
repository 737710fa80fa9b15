package jikan_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/ashita-ai/jikan"
)

type recordingHook struct {
	spans []jikan.ClosedSpan
}

func (h *recordingHook) OnSpanClosed(_ context.Context, span jikan.ClosedSpan) error {
	h.spans = append(h.spans, span)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestSessionEndToEnd(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	dir := filepath.Join(t.TempDir(), "sess")
	hook := &recordingHook{}
	var out bytes.Buffer

	app, err := jikan.New(
		jikan.WithLogger(quietLogger()),
		jikan.WithClock(clockz.NewFakeClock()),
		jikan.WithSessionDir(dir),
		jikan.WithFlushInterval(time.Hour),
		jikan.WithInput(strings.NewReader("Emails\nreply to bob\n<\n<\nq\n")),
		jikan.WithOutput(&out),
		jikan.WithSpanHook(hook),
	)
	require.NoError(t, err)
	assert.False(t, app.Resumed())

	require.NoError(t, app.Run(context.Background()))

	// Every close reached the hook: two explicit leaves, then the drain.
	require.Len(t, hook.spans, 3)
	assert.Equal(t, "reply to bob", hook.spans[0].Name)
	assert.Equal(t, "root.emails.reply to bob", hook.spans[0].Path)
	assert.Equal(t, "emails", hook.spans[1].Name)
	assert.Equal(t, "root", hook.spans[2].Name)

	// The final flush landed the drained state on disk.
	report, err := os.ReadFile(app.ReportPath())
	require.NoError(t, err)
	assert.Contains(t, string(report), "root (Ended")
	assert.Contains(t, string(report), "emails: count=1,")
	assert.Contains(t, string(report), "Totals by name:")

	snapshot, err := os.ReadFile(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), `"name": "emails"`)

	assert.FileExists(t, filepath.Join(dir, "archive.db"))
	assert.Contains(t, out.String(), "entering emails")
}

func TestSessionResumesFromSnapshot(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	dir := filepath.Join(t.TempDir(), "sess")
	clock := clockz.NewFakeClock()

	first, err := jikan.New(
		jikan.WithLogger(quietLogger()),
		jikan.WithClock(clock),
		jikan.WithSessionDir(dir),
		jikan.WithFlushInterval(time.Hour),
		jikan.WithInput(strings.NewReader("deep work\nq\n")),
		jikan.WithOutput(&bytes.Buffer{}),
	)
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()))

	// The first run drained and persisted an ended root; resuming must
	// reopen it and carry the history forward.
	hook := &recordingHook{}
	second, err := jikan.New(
		jikan.WithLogger(quietLogger()),
		jikan.WithClock(clock),
		jikan.WithSessionDir(dir),
		jikan.WithFlushInterval(time.Hour),
		jikan.WithInput(strings.NewReader("more work\nq\n")),
		jikan.WithOutput(&bytes.Buffer{}),
		jikan.WithSpanHook(hook),
	)
	require.NoError(t, err)
	assert.True(t, second.Resumed())

	require.NoError(t, second.Run(context.Background()))

	report, err := os.ReadFile(second.ReportPath())
	require.NoError(t, err)
	assert.Contains(t, string(report), "deep work: count=1,", "history from the first run survives")
	assert.Contains(t, string(report), "more work: count=1,")
}
