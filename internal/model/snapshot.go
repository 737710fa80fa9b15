package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedSnapshot is returned when a persisted snapshot is missing
// required fields or violates ordering. A corrupt snapshot must not resume.
var ErrMalformedSnapshot = errors.New("model: malformed snapshot")

// Snapshot is the durable form of one Process subtree. Durations are
// nanoseconds on the wire; timestamps keep full precision via RFC 3339.
type Snapshot struct {
	Name     string        `json:"name"`
	BegunAt  time.Time     `json:"begun_at"`
	EndedAt  *time.Time    `json:"ended_at,omitempty"`
	Personal time.Duration `json:"personal_ns"`
	Total    time.Duration `json:"total_ns"`
	Children []Snapshot    `json:"children,omitempty"`
}

// Snapshot captures the subtree rooted at p.
func (p *Process) Snapshot() Snapshot {
	s := Snapshot{
		Name:     p.name,
		BegunAt:  p.begunAt,
		Personal: p.personal,
		Total:    p.total,
	}
	if p.Ended() {
		ended := p.endedAt
		s.EndedAt = &ended
	}
	for _, c := range p.children {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}

// MarshalTree encodes the subtree rooted at p as indented JSON.
func (p *Process) MarshalTree() ([]byte, error) {
	return json.MarshalIndent(p.Snapshot(), "", "  ")
}

// Restore rebuilds a Process tree from its snapshot. Every node is
// validated; any violation fails the whole restore. The returned root is
// always forced open with no parent, whatever was persisted — that is what
// makes a session resumable after a kill mid-write. No other node is
// repaired.
func Restore(s Snapshot) (*Process, error) {
	root, err := restoreNode(s, nil)
	if err != nil {
		return nil, err
	}
	root.parent = nil
	root.endedAt = time.Time{}
	return root, nil
}

// UnmarshalTree decodes snapshot JSON and restores the tree.
func UnmarshalTree(data []byte) (*Process, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return Restore(s)
}

func restoreNode(s Snapshot, parent *Process) (*Process, error) {
	if err := validateSnapshot(s); err != nil {
		return nil, err
	}
	p := &Process{
		name:     s.Name,
		parent:   parent,
		begunAt:  s.BegunAt,
		personal: s.Personal,
		total:    s.Total,
	}
	if s.EndedAt != nil {
		p.endedAt = *s.EndedAt
	}
	for _, cs := range s.Children {
		c, err := restoreNode(cs, p)
		if err != nil {
			return nil, err
		}
		p.children = append(p.children, c)
	}
	return p, nil
}

func validateSnapshot(s Snapshot) error {
	if s.Name == "" {
		return fmt.Errorf("%w: node with empty name", ErrMalformedSnapshot)
	}
	if s.BegunAt.IsZero() {
		return fmt.Errorf("%w: node %q has no begun_at", ErrMalformedSnapshot, s.Name)
	}
	if s.EndedAt != nil && s.EndedAt.Before(s.BegunAt) {
		return fmt.Errorf("%w: node %q ends before it begins", ErrMalformedSnapshot, s.Name)
	}
	if s.Personal < 0 || s.Total < s.Personal {
		return fmt.Errorf("%w: node %q has inconsistent durations", ErrMalformedSnapshot, s.Name)
	}
	return nil
}
