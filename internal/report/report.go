// Package report renders a span tree as the human-readable session report.
// It only reads the tree; the caller holds the bench lock for the duration.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ashita-ai/jikan/internal/model"
)

// FormatSeconds renders a duration in seconds as a bracketed human string,
// using the largest unit bracket that applies and nothing above it.
func FormatSeconds(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("[%.2f s]", seconds)
	case seconds < 3600:
		m := int(seconds / 60)
		return fmt.Sprintf("[%d m, %.2f s]", m, seconds-float64(m)*60)
	case seconds < 86400:
		h := int(seconds / 3600)
		rem := seconds - float64(h)*3600
		m := int(rem / 60)
		return fmt.Sprintf("[%d h, %d m, %.2f s]", h, m, rem-float64(m)*60)
	default:
		d := int(seconds / 86400)
		rem := seconds - float64(d)*86400
		h := int(rem / 3600)
		rem -= float64(h) * 3600
		m := int(rem / 60)
		return fmt.Sprintf("[%d d, %d h, %d m, %.2f s]", d, h, m, rem-float64(m)*60)
	}
}

// FormatDuration is FormatSeconds for a time.Duration.
func FormatDuration(d time.Duration) string {
	return FormatSeconds(d.Seconds())
}

// nameStats accumulates per-name occurrence totals while rendering.
type nameStats struct {
	count    int
	personal time.Duration
	total    time.Duration
}

// Render produces the depth-indented pre-order listing of the tree plus a
// tail: the active path and its elapsed time while the session runs, or the
// per-name aggregate table once the root has ended. The two tails are
// mutually exclusive.
func Render(root *model.Process, now time.Time) string {
	var b strings.Builder
	byName := make(map[string]*nameStats)

	root.Walk(func(n *model.Process, depth int) {
		state := "Ended"
		if !n.Ended() {
			state = "Running..."
		}
		fmt.Fprintf(&b, "%s%s (%s personal: %s, total: %s):\n",
			strings.Repeat("  ", depth), n.Name(), state,
			FormatDuration(n.Personal()), FormatDuration(n.Total()))

		st := byName[n.Name()]
		if st == nil {
			st = &nameStats{}
			byName[n.Name()] = st
		}
		st.count++
		st.personal += n.Personal()
		st.total += n.Total()
	})

	b.WriteByte('\n')
	if !root.Ended() {
		leaf := root.ActiveLeaf()
		elapsed, err := leaf.TimeSoFar(now)
		if err != nil {
			// Leaf of a running root cannot be ended; keep the report usable.
			fmt.Fprintf(&b, "Currently: %s\n", leaf.Path())
			return b.String()
		}
		fmt.Fprintf(&b, "Currently: %s %s\n", leaf.Path(), FormatDuration(elapsed))
		return b.String()
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("Totals by name:\n")
	for _, name := range names {
		st := byName[name]
		n := time.Duration(st.count)
		fmt.Fprintf(&b, "%s: count=%d, personal sum=%s avg=%s, total sum=%s avg=%s\n",
			name, st.count,
			FormatDuration(st.personal), FormatDuration(st.personal/n),
			FormatDuration(st.total), FormatDuration(st.total/n))
	}
	return b.String()
}
