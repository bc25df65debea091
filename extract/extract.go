// Package extract runs the external document-extraction command that turns
// PDFs into spreadsheets. Its output is only logged; nothing is parsed.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zenibako/boardsync/audit"
)

var (
	// ErrNotConfigured is returned when no extraction command is set.
	ErrNotConfigured = errors.New("no extraction command configured")
	// ErrFailed is returned when the command exits non-zero or writes to stderr.
	ErrFailed = errors.New("extraction failed")
)

// Runner invokes Command with Args followed by the document paths.
type Runner struct {
	Command string
	Args    []string
	Timeout time.Duration
	Dir     string

	logger  *log.Logger
	emitter *audit.Emitter
}

// NewRunner creates a runner. A nil emitter discards audit events.
func NewRunner(command string, args []string, emitter *audit.Emitter) *Runner {
	return &Runner{
		Command: command,
		Args:    args,
		logger:  log.Default(),
		emitter: emitter,
	}
}

// SetLogger replaces the default logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Output is what the command printed.
type Output struct {
	Stdout []string
	Stderr []string
}

// Run executes the command once with all paths.
func (r *Runner) Run(ctx context.Context, paths []string) (*Output, error) {
	if strings.TrimSpace(r.Command) == "" {
		return nil, ErrNotConfigured
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no documents given", ErrFailed)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.Args...), paths...)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = time.Second

	out := &Output{}
	stdout := &lineWriter{emit: func(line string) {
		out.Stdout = append(out.Stdout, line)
		r.logger.Info(line, "command", r.Command)
	}}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	r.logger.Info("Running extraction", "command", r.Command, "documents", len(paths))
	r.emitter.Info(fmt.Sprintf("Running %s with %d document(s)", r.Command, len(paths)))
	runErr := cmd.Run()
	stdout.flush()

	out.Stderr = splitLines(stderr.String())
	for _, line := range out.Stderr {
		r.logger.Warn(line, "command", r.Command)
	}

	switch {
	case runErr != nil:
		return out, fmt.Errorf("%w: %s: %w", ErrFailed, r.Command, runErr)
	case len(out.Stderr) > 0:
		return out, fmt.Errorf("%w: %s wrote to stderr: %s", ErrFailed, r.Command, out.Stderr[0])
	}
	r.emitter.Info(fmt.Sprintf("%s output: %d line(s)", r.Command, len(out.Stdout)))
	return out, nil
}

// lineWriter calls emit once per complete line written to it.
type lineWriter struct {
	buf  []byte
	emit func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(strings.TrimRight(string(w.buf), "\r"))
		w.buf = nil
	}
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimRight(l, "\r"); strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
