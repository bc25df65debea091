package extract

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenibako/boardsync/audit"
)

func shellRunner(t *testing.T, script string, rec *audit.Recorder) (*Runner, *bytes.Buffer) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := NewRunner("sh", []string{"-c", script, "sh"}, audit.NewEmitter(rec))
	var buf bytes.Buffer
	r.SetLogger(log.New(&buf))
	return r, &buf
}

func TestRunForwardsPathsAndOutput(t *testing.T) {
	rec := &audit.Recorder{}
	r, logs := shellRunner(t, `for f in "$@"; do echo "parsed $f"; done`, rec)

	out, err := r.Run(context.Background(), []string{"a.pdf", "b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"parsed a.pdf", "parsed b.pdf"}, out.Stdout)
	assert.Empty(t, out.Stderr)
	assert.Contains(t, logs.String(), "parsed b.pdf")
	assert.Equal(t, 2, rec.Count(audit.KindInfo))
}

func TestRunStderrIsFailure(t *testing.T) {
	r, _ := shellRunner(t, `echo "bad page" 1>&2`, &audit.Recorder{})

	out, err := r.Run(context.Background(), []string{"a.pdf"})
	require.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, err.Error(), "bad page")
	assert.Equal(t, []string{"bad page"}, out.Stderr)
}

func TestRunNonZeroExit(t *testing.T) {
	r, _ := shellRunner(t, `echo partial; exit 3`, &audit.Recorder{})

	out, err := r.Run(context.Background(), []string{"a.pdf"})
	require.ErrorIs(t, err, ErrFailed)
	assert.Equal(t, []string{"partial"}, out.Stdout)
}

func TestRunTimeout(t *testing.T) {
	r, _ := shellRunner(t, `exec sleep 5`, &audit.Recorder{})
	r.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := r.Run(context.Background(), []string{"a.pdf"})
	require.ErrorIs(t, err, ErrFailed)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunNotConfigured(t *testing.T) {
	r := &Runner{}
	_, err := r.Run(context.Background(), []string{"a.pdf"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRunNoDocuments(t *testing.T) {
	r := NewRunner("true", nil, nil)
	_, err := r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrFailed)
}

func TestRunMissingCommand(t *testing.T) {
	r := NewRunner("boardsync-no-such-command", nil, nil)
	_, err := r.Run(context.Background(), []string{"a.pdf"})
	assert.ErrorIs(t, err, ErrFailed)
}
