// Package command turns terminal input into bench operations: the
// line-oriented front end of a tracking session.
package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ashita-ai/jikan/internal/bench"
	"github.com/ashita-ai/jikan/internal/model"
	"github.com/ashita-ai/jikan/internal/report"
)

// Intent is what a line of input asks the session to do.
type Intent int

const (
	// IntentQuit ends the session: an empty line or an exit word.
	IntentQuit Intent = iota
	// IntentEnter opens a new span named after the line.
	IntentEnter
	// IntentLeave closes the innermost running span: a line starting with <.
	IntentLeave
)

var exitWords = map[string]bool{
	"q":     true,
	"quit":  true,
	"exit":  true,
	"abort": true,
}

// Parse classifies one input line. Enter names keep the raw line; the bench
// case-folds them.
func Parse(line string) (Intent, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || exitWords[strings.ToLower(trimmed)] {
		return IntentQuit, ""
	}
	if strings.HasPrefix(trimmed, "<") {
		return IntentLeave, ""
	}
	return IntentEnter, trimmed
}

// OnClosed receives every span closed through the loop, including the
// shutdown drain.
type OnClosed func(c model.Closed)

// Loop is the interactive session driver. It is the bench's only mutator.
type Loop struct {
	bench    *bench.Bench
	in       io.Reader
	out      io.Writer
	logger   *slog.Logger
	onClosed OnClosed
}

// New creates a command loop. onClosed may be nil.
func New(b *bench.Bench, in io.Reader, out io.Writer, logger *slog.Logger, onClosed OnClosed) *Loop {
	return &Loop{bench: b, in: in, out: out, logger: logger, onClosed: onClosed}
}

// Run reads lines until quit, EOF, context cancellation, or the root span
// closing, then drains every still-open span so the session ends fully
// closed. Input is read on a goroutine so cancellation is honored between
// lines.
func (l *Loop) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		fmt.Fprint(l.out, "jikan> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if done := l.handle(line); done {
				break loop
			}
		}
	}

	return l.drain()
}

// handle applies one line and reports whether the session should end.
func (l *Loop) handle(line string) bool {
	intent, name := Parse(line)
	switch intent {
	case IntentQuit:
		fmt.Fprintln(l.out, "exiting...")
		return true

	case IntentEnter:
		if err := l.bench.Enter(name); err != nil {
			fmt.Fprintf(l.out, "cannot enter %q: %v\n", name, err)
			return false
		}
		fmt.Fprintf(l.out, "entering %s\n", strings.ToLower(name))

	case IntentLeave:
		closed, err := l.bench.Leave()
		if err != nil {
			fmt.Fprintf(l.out, "cannot leave: %v\n", err)
			return false
		}
		l.closed(closed)
		fmt.Fprintf(l.out, "leaving %s %s\n", closed.Name, report.FormatDuration(closed.Total))
		if l.bench.Done() {
			fmt.Fprintln(l.out, "all spans ended, exiting...")
			return true
		}
	}
	return false
}

// drain force-closes everything still open, innermost first, so the root
// ends and the final report carries the per-name totals.
func (l *Loop) drain() error {
	for !l.bench.Done() {
		closed, err := l.bench.Leave()
		if err != nil {
			return fmt.Errorf("command: drain: %w", err)
		}
		l.closed(closed)
	}
	return nil
}

func (l *Loop) closed(c model.Closed) {
	l.logger.Debug("span closed", "name", c.Name, "path", c.Path, "total", c.Total)
	if l.onClosed != nil {
		l.onClosed(c)
	}
}
