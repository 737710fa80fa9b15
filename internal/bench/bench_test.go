package bench_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/ashita-ai/jikan/internal/bench"
	"github.com/ashita-ai/jikan/internal/model"
)

func TestEnterLeaveScenario(t *testing.T) {
	// enter a, enter b, leave, leave — the canonical nesting session.
	clock := clockz.NewFakeClock()
	b := bench.New(clock)

	clock.Advance(10 * time.Second)
	require.NoError(t, b.Enter("A")) // case-folded
	assert.Equal(t, "root.a", b.RunningPath())

	clock.Advance(5 * time.Second)
	require.NoError(t, b.Enter("b"))
	assert.Equal(t, "root.a.b", b.RunningPath())

	clock.Advance(3 * time.Second)
	closed, err := b.Leave()
	require.NoError(t, err)
	assert.Equal(t, "b", closed.Name)
	assert.Equal(t, "root.a.b", closed.Path)
	assert.Equal(t, 3*time.Second, closed.Personal)
	assert.Equal(t, 3*time.Second, closed.Total)

	clock.Advance(2 * time.Second)
	closed, err = b.Leave()
	require.NoError(t, err)
	assert.Equal(t, "a", closed.Name)
	assert.Equal(t, 7*time.Second, closed.Personal, "5s before b plus 2s after")
	assert.Equal(t, 10*time.Second, closed.Total, "full a-to-end duration")

	assert.False(t, b.Done(), "the root is never auto-closed")
	assert.Equal(t, "root", b.RunningPath())
}

func TestLeaveClosesRootLast(t *testing.T) {
	clock := clockz.NewFakeClock()
	b := bench.New(clock)

	require.NoError(t, b.Enter("a"))
	_, err := b.Leave()
	require.NoError(t, err)

	closed, err := b.Leave()
	require.NoError(t, err)
	assert.Equal(t, model.RootName, closed.Name)
	assert.True(t, b.Done())

	// A finished session rejects further mutation.
	_, err = b.Leave()
	require.ErrorIs(t, err, bench.ErrSessionDone)
	require.ErrorIs(t, b.Enter("x"), bench.ErrSessionDone)
}

func TestEnterEmptyName(t *testing.T) {
	b := bench.New(clockz.NewFakeClock())
	require.ErrorIs(t, b.Enter("   "), bench.ErrEmptyName)
}

func TestRepeatedNameMakesSiblings(t *testing.T) {
	// enter a, leave, enter a, leave → two separate children named "a".
	clock := clockz.NewFakeClock()
	b := bench.New(clock)

	require.NoError(t, b.Enter("a"))
	clock.Advance(time.Second)
	_, err := b.Leave()
	require.NoError(t, err)
	require.NoError(t, b.Enter("a"))
	clock.Advance(time.Second)
	_, err = b.Leave()
	require.NoError(t, err)
	_, err = b.Leave() // root
	require.NoError(t, err)

	out := b.Render()
	assert.Contains(t, out, "a: count=2,")
}

func TestRenderRunningTail(t *testing.T) {
	clock := clockz.NewFakeClock()
	b := bench.New(clock)
	require.NoError(t, b.Enter("deep"))
	clock.Advance(45 * time.Second)

	out := b.Render()
	assert.Contains(t, out, "Currently: root.deep [45.00 s]")
	assert.NotContains(t, out, "Totals by name:")
}

func TestDepthTracksNesting(t *testing.T) {
	b := bench.New(clockz.NewFakeClock())
	assert.Equal(t, 0, b.Depth())

	require.NoError(t, b.Enter("a"))
	require.NoError(t, b.Enter("b"))
	assert.Equal(t, 2, b.Depth())

	_, err := b.Leave()
	require.NoError(t, err)
	assert.Equal(t, 1, b.Depth())

	_, err = b.Leave()
	require.NoError(t, err)
	_, err = b.Leave() // root
	require.NoError(t, err)
	assert.Equal(t, 0, b.Depth(), "the root stays the leaf after it closes")
}

func TestSnapshotRoundTrip(t *testing.T) {
	clock := clockz.NewFakeClock()
	b := bench.New(clock)
	require.NoError(t, b.Enter("a"))
	clock.Advance(3 * time.Second)
	require.NoError(t, b.Enter("b"))
	clock.Advance(2 * time.Second)
	_, err := b.Leave()
	require.NoError(t, err)

	data, err := b.SnapshotJSON()
	require.NoError(t, err)

	resumed, err := bench.Resume(data, clock)
	require.NoError(t, err)
	assert.Equal(t, "root.a", resumed.RunningPath(), "active leaf re-derived from the tree")
	assert.False(t, resumed.Done())

	// The resumed session keeps accounting from where it left off.
	clock.Advance(4 * time.Second)
	closed, err := resumed.Leave()
	require.NoError(t, err)
	assert.Equal(t, "a", closed.Name)
	assert.Equal(t, 9*time.Second, closed.Total, "3s before b + 2s of b + 4s after resume")
}

func TestResumeForcesRootOpen(t *testing.T) {
	clock := clockz.NewFakeClock()
	b := bench.New(clock)
	require.NoError(t, b.Enter("a"))
	clock.Advance(time.Second)
	_, err := b.Leave()
	require.NoError(t, err)
	_, err = b.Leave()
	require.NoError(t, err)
	require.True(t, b.Done())

	data, err := b.SnapshotJSON()
	require.NoError(t, err)

	resumed, err := bench.Resume(data, clock)
	require.NoError(t, err)
	assert.False(t, resumed.Done(), "a drained session must resume open")
	require.NoError(t, resumed.Enter("again"))
}

func TestResumeRejectsMalformed(t *testing.T) {
	_, err := bench.Resume([]byte(`{"name":""}`), clockz.NewFakeClock())
	require.ErrorIs(t, err, model.ErrMalformedSnapshot)
}

func TestConcurrentRenderAndMutation(t *testing.T) {
	// One writer, one reader — the lock keeps renders consistent. Run with
	// -race to exercise the contract.
	clock := clockz.NewFakeClock()
	b := bench.New(clock)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := b.Enter("work"); err != nil {
				t.Error(err)
				return
			}
			if _, err := b.Leave(); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			out := b.Render()
			if !strings.HasPrefix(out, "root (Running...") {
				t.Errorf("unexpected render prefix: %q", out)
				return
			}
			_ = b.RunningPath()
		}
	}()
	wg.Wait()
}
