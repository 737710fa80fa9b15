// Package bench is the session controller: it owns the span tree and
// serializes every read and write behind one mutex. Public methods acquire
// the lock exactly once and only call the lock-free model core — nothing
// here ever needs a reentrant lock.
package bench

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zoobzio/clockz"

	"github.com/ashita-ai/jikan/internal/model"
	"github.com/ashita-ai/jikan/internal/report"
)

var (
	// ErrSessionDone is returned by Enter and Leave once the root has ended.
	ErrSessionDone = errors.New("bench: session already ended")

	// ErrEmptyName is returned when Enter is given a blank span name.
	ErrEmptyName = errors.New("bench: span name is empty")
)

// Bench tracks one session. One logical writer (the command loop) mutates
// it while the snapshot writer reads it concurrently; the mutex makes every
// operation linearizable. The deepest open node is cached so Enter and
// Leave never re-walk the tree.
type Bench struct {
	mu    sync.Mutex
	clock clockz.Clock
	root  *model.Process
	leaf  *model.Process // deepest open node; the root when nothing else is
}

// New starts a fresh session rooted at the clock's current time.
func New(clock clockz.Clock) *Bench {
	root := model.NewRoot(clock.Now())
	return &Bench{clock: clock, root: root, leaf: root}
}

// Resume rebuilds a session from snapshot bytes. The restored root is open
// regardless of how it was persisted, and the active leaf is re-derived
// from the tree shape.
func Resume(data []byte, clock clockz.Clock) (*Bench, error) {
	root, err := model.UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("bench: resume: %w", err)
	}
	return &Bench{clock: clock, root: root, leaf: root.ActiveLeaf()}, nil
}

// Enter opens a new span nested under the deepest running one. Names are
// case-folded and trimmed; an empty name is rejected.
func (b *Bench) Enter(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ErrEmptyName
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.root.Ended() {
		return ErrSessionDone
	}
	child, err := b.leaf.StartChild(name, b.clock.Now())
	if err != nil {
		return err
	}
	b.leaf = child
	return nil
}

// Leave closes the deepest running span and returns its final record. The
// root closes last; leaving a finished session is an error.
func (b *Bench) Leave() (model.Closed, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.root.Ended() {
		return model.Closed{}, ErrSessionDone
	}
	n := b.leaf
	if err := n.Close(b.clock.Now()); err != nil {
		return model.Closed{}, err
	}
	if parent := n.Parent(); parent != nil {
		b.leaf = parent
	}
	return n.CloseRecord(), nil
}

// Done reports whether the root has ended.
func (b *Bench) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.root.Ended()
}

// RunningPath returns the dot-joined names from the root to the deepest
// running node, the root itself included.
func (b *Bench) RunningPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.leaf.Path()
}

// Depth reports how many spans are open below the root: 0 when only the
// root is running.
func (b *Bench) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	depth := 0
	for n := b.leaf; n.Parent() != nil; n = n.Parent() {
		depth++
	}
	return depth
}

// Render produces the text report for the current state. Rendering holds
// the lock for the traversal so the report is a consistent point in time.
func (b *Bench) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return report.Render(b.root, b.clock.Now())
}

// SnapshotJSON serializes the whole tree.
func (b *Bench) SnapshotJSON() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := b.root.MarshalTree()
	if err != nil {
		return nil, fmt.Errorf("bench: snapshot: %w", err)
	}
	return data, nil
}
