package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/gofrs/flock"

	"github.com/zenibako/boardsync/audit"
	"github.com/zenibako/boardsync/board"
	"github.com/zenibako/boardsync/reconcile"
	"github.com/zenibako/boardsync/syncer"
)

var (
	errNoAPIKey   = errors.New("no API key: set BOARDSYNC_API_KEY, add it to .env, or set api.key")
	errNoBoard    = errors.New("no board: pass --board or --board-name, or set board.id")
	errAborted    = errors.New("aborted")
	errLocked     = errors.New("another boardsync run is using this spreadsheet")
	errNeedsYes   = errors.New("replace mode archives the existing group; rerun with --yes to confirm")
	errRunFailed  = errors.New("run failed")
	errNoDocument = errors.New("no documents given")
)

// syncerOptions converts the loaded configuration into engine options.
func (a *app) syncerOptions() (syncer.Options, error) {
	if err := a.cfg.Validate(); err != nil {
		return syncer.Options{}, err
	}
	mode, err := reconcile.ParseMode(a.cfg.Sync.Mode)
	if err != nil {
		return syncer.Options{}, err
	}
	return syncer.Options{
		Mode: mode,
		Policy: reconcile.Policy{
			KeyField:        strings.TrimSpace(a.cfg.Sync.KeyField),
			DisplayColumn:   strings.TrimSpace(a.cfg.Sync.DisplayColumn),
			ProtectedFields: a.cfg.Sync.ProtectedFields,
		},
		PreserveFormatting: a.cfg.Sync.PreserveFormatting,
		SettleDelay:        a.cfg.Sync.SettleDelay,
		GroupName:          strings.TrimSpace(a.cfg.Board.Group),
		DryRun:             a.cfg.Sync.DryRun,
	}, nil
}

// apiKey returns the configured key, asking for it on a terminal.
func (a *app) apiKey() (string, error) {
	if key := strings.TrimSpace(a.cfg.API.Key); key != "" {
		return key, nil
	}
	if !a.interactive() {
		return "", errNoAPIKey
	}
	key, err := a.promptKey()
	if err != nil {
		return "", err
	}
	if key = strings.TrimSpace(key); key == "" {
		return "", errNoAPIKey
	}
	return key, nil
}

func (a *app) newClient(apiKey string) *board.Client {
	c := board.NewClient(a.cfg.API.Endpoint, apiKey)
	c.SetTimeout(a.cfg.API.Timeout)
	c.SetAPIVersion(a.cfg.API.Version)
	c.SetPageSize(a.cfg.API.PageSize)
	c.SetDryRun(a.cfg.Sync.DryRun)
	c.SetLogger(a.logger)
	return c
}

// newEmitter fans audit events out to the log and, when configured, to an
// OSC listener.
func (a *app) newEmitter() (*audit.Emitter, error) {
	em := audit.NewEmitter(audit.NewLogSink(a.logger))
	if addr := a.cfg.Audit.OSCAddr; addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("audit.osc_addr: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("audit.osc_addr: invalid port %q", portStr)
		}
		em.Subscribe(audit.NewOSCSink(host, port))
	}
	return em, nil
}

// boardFinder is what resolveBoard needs from the client.
type boardFinder interface {
	FindBoard(ctx context.Context, name, workspaceID string) (board.Board, bool, error)
	CreateBoard(ctx context.Context, name, workspaceID string) (string, error)
}

// resolveBoard returns the configured board id. Without one it looks the
// board up by name, creating it when create is set.
func (a *app) resolveBoard(ctx context.Context, c boardFinder, create bool) (string, error) {
	if id := strings.TrimSpace(a.cfg.Board.ID); id != "" {
		return id, nil
	}
	name := strings.TrimSpace(a.cfg.Board.Name)
	if name == "" {
		return "", errNoBoard
	}

	b, found, err := c.FindBoard(ctx, name, a.cfg.Board.Workspace)
	if err != nil {
		return "", fmt.Errorf("listing boards: %w", err)
	}
	if found {
		a.logger.Info("Found board", "name", b.Name, "id", b.ID)
		return b.ID, nil
	}
	if !create {
		return "", fmt.Errorf("%w: no board named %q", errNoBoard, name)
	}

	id, err := c.CreateBoard(ctx, name, a.cfg.Board.Workspace)
	if err != nil {
		return "", fmt.Errorf("creating board %q: %w", name, err)
	}
	a.logger.Info("Created board", "name", name, "id", id)
	return id, nil
}

// lockSheet takes an exclusive lock next to the spreadsheet so two runs
// never write the same file. Releasing it removes the lock file.
func lockSheet(path string) (func(), error) {
	lockPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errLocked, path)
	}
	return func() {
		if err := lock.Unlock(); err == nil {
			_ = os.Remove(lockPath)
		}
	}, nil
}

func huhConfirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Replace").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("failed to get confirmation: %w", err)
	}
	return ok, nil
}

func huhAPIKey() (string, error) {
	var key string
	err := huh.NewInput().
		Title("Board API key").
		Description("Set BOARDSYNC_API_KEY to skip this prompt").
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Run()
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return key, nil
}
