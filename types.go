package jikan

import "time"

// ClosedSpan is the public record of one span that ended: its final
// timestamps and both duration aggregates. Personal time excludes time
// spent inside children; Total includes it.
type ClosedSpan struct {
	Name     string
	Path     string // dot-joined chain of names from the session root
	BegunAt  time.Time
	EndedAt  time.Time
	Personal time.Duration
	Total    time.Duration
}
