// Package model holds the span tree: the nested time-accounting structure
// behind a jikan session. Everything here is lock-free and single-writer;
// the bench controller serializes access.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RootName is the reserved name of the session root.
const RootName = "root"

var (
	// ErrAlreadyEnded is returned when a begin or close targets a node that
	// has already ended. Unreachable through the bench API; guarded anyway.
	ErrAlreadyEnded = errors.New("model: process already ended")

	// ErrSpanEnded is returned when elapsed time is requested for a node
	// whose final durations are already fixed.
	ErrSpanEnded = errors.New("model: process ended, elapsed time undefined")

	// ErrOpenChild is returned when a node is asked to start or close while
	// its last child is still running. Routing must target the active leaf.
	ErrOpenChild = errors.New("model: last child still running")
)

// Process is one named, time-bounded activity. Children are append-only and
// in temporal order; the parent link is a non-owning back-reference. A node
// ends at most once, after which all of its fields are final.
type Process struct {
	name     string
	parent   *Process
	children []*Process
	begunAt  time.Time
	endedAt  time.Time // zero while running
	personal time.Duration
	total    time.Duration
}

// NewRoot creates the root of a fresh session tree.
func NewRoot(now time.Time) *Process {
	return &Process{name: RootName, begunAt: now}
}

func (p *Process) Name() string            { return p.name }
func (p *Process) Parent() *Process        { return p.parent }
func (p *Process) Children() []*Process    { return p.children }
func (p *Process) BegunAt() time.Time      { return p.begunAt }
func (p *Process) EndedAt() time.Time      { return p.endedAt }
func (p *Process) Ended() bool             { return !p.endedAt.IsZero() }
func (p *Process) Personal() time.Duration { return p.personal }
func (p *Process) Total() time.Duration    { return p.total }

func (p *Process) String() string {
	return fmt.Sprintf("<Process %s>", p.name)
}

// lastChild returns the most recent child, or nil.
func (p *Process) lastChild() *Process {
	if len(p.children) == 0 {
		return nil
	}
	return p.children[len(p.children)-1]
}

// marker is the point in time up to which this node's own time has been
// accounted: its begin if it has no children, else its last child's end.
// Only meaningful when the last child (if any) has ended.
func (p *Process) marker() time.Time {
	if last := p.lastChild(); last != nil {
		return last.endedAt
	}
	return p.begunAt
}

// StartChild appends a new running child beginning at now. The gap between
// this node's marker and now is time the node spent doing its own thing, so
// it is added to both personal and total time.
func (p *Process) StartChild(name string, now time.Time) (*Process, error) {
	if p.Ended() {
		return nil, fmt.Errorf("%w: cannot begin %q inside %q", ErrAlreadyEnded, name, p.name)
	}
	if last := p.lastChild(); last != nil && !last.Ended() {
		return nil, fmt.Errorf("%w: %q under %q", ErrOpenChild, last.name, p.name)
	}
	gap := now.Sub(p.marker())
	p.personal += gap
	p.total += gap
	child := &Process{name: name, parent: p, begunAt: now}
	p.children = append(p.children, child)
	return child, nil
}

// Close ends this node at now. The tail gap since the marker counts as
// personal time; the node's final total then bubbles up into its parent's
// total only (nested time is never personal to an ancestor).
func (p *Process) Close(now time.Time) error {
	if p.Ended() {
		return fmt.Errorf("%w: %q", ErrAlreadyEnded, p.name)
	}
	if last := p.lastChild(); last != nil && !last.Ended() {
		return fmt.Errorf("%w: close %q before %q", ErrOpenChild, last.name, p.name)
	}
	gap := now.Sub(p.marker())
	p.personal += gap
	p.total += gap
	p.endedAt = now
	if p.parent != nil {
		p.parent.total += p.total
	}
	return nil
}

// TimeSoFar reports how long a running node has been open.
func (p *Process) TimeSoFar(now time.Time) (time.Duration, error) {
	if p.Ended() {
		return 0, fmt.Errorf("%w: %q", ErrSpanEnded, p.name)
	}
	return now.Sub(p.begunAt), nil
}

// ActiveLeaf follows the chain of running last children and returns the
// deepest node a new span would attach to. Returns the receiver itself when
// nothing is open beneath it.
func (p *Process) ActiveLeaf() *Process {
	n := p
	for {
		last := n.lastChild()
		if last == nil || last.Ended() {
			return n
		}
		n = last
	}
}

// Path returns the dot-joined chain of names from the root down to p.
func (p *Process) Path() string {
	var names []string
	for n := p; n != nil; n = n.parent {
		names = append(names, n.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, ".")
}

// Walk visits p and every descendant pre-order, with the depth relative to p.
func (p *Process) Walk(fn func(n *Process, depth int)) {
	p.walk(0, fn)
}

func (p *Process) walk(depth int, fn func(n *Process, depth int)) {
	fn(p, depth)
	for _, c := range p.children {
		c.walk(depth+1, fn)
	}
}

// Closed is the record of a span that just ended, handed to hooks and the
// archive. All fields are final.
type Closed struct {
	Name     string
	Path     string
	BegunAt  time.Time
	EndedAt  time.Time
	Personal time.Duration
	Total    time.Duration
}

// CloseRecord captures the Closed record for an ended node.
func (p *Process) CloseRecord() Closed {
	return Closed{
		Name:     p.name,
		Path:     p.Path(),
		BegunAt:  p.begunAt,
		EndedAt:  p.endedAt,
		Personal: p.personal,
		Total:    p.total,
	}
}
