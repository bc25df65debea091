package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zenibako/boardsync/audit"
	"github.com/zenibako/boardsync/board"
	"github.com/zenibako/boardsync/invocation"
	"github.com/zenibako/boardsync/reconcile"
	"github.com/zenibako/boardsync/sheet"
)

var (
	// ErrGroupNotFound is returned by a pull when the board has no group
	// with the spreadsheet's label.
	ErrGroupNotFound = errors.New("group not found")
	// ErrReplaceIncomplete is returned when a replace push archived the old
	// group and then failed before the new group was fully populated.
	ErrReplaceIncomplete = errors.New("replace incomplete")
)

// Board is the subset of the board API the engine drives.
type Board interface {
	ListGroups(ctx context.Context, boardID string) ([]board.Group, error)
	CreateGroup(ctx context.Context, boardID, title string) (string, error)
	ArchiveGroup(ctx context.Context, boardID, groupID string) (string, error)
	ListColumns(ctx context.Context, boardID string) ([]board.Column, error)
	CreateColumn(ctx context.Context, boardID, title string) (string, error)
	DeleteColumn(ctx context.Context, boardID, columnID string) (string, error)
	ListItemsInGroup(ctx context.Context, boardID, groupID string) ([]board.Item, error)
	CreateItem(ctx context.Context, boardID, groupID, name string) (string, error)
	UpdateItemFields(ctx context.Context, boardID, itemID string, values map[string]string) error
}

// Options parameterise one engine for both directions.
type Options struct {
	Mode               reconcile.Mode
	Policy             reconcile.Policy
	PreserveFormatting bool
	SettleDelay        time.Duration // wait between creating an item and filling it
	GroupName          string        // empty uses the file's label
	DryRun             bool
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Mode: reconcile.ModeIncremental,
		Policy: reconcile.Policy{
			KeyField:        "Year",
			DisplayColumn:   "Name",
			ProtectedFields: []string{"Comment"},
		},
		PreserveFormatting: true,
		SettleDelay:        time.Second,
	}
}

// Engine reconciles one spreadsheet with one board group. Remote calls run
// strictly one after another.
type Engine struct {
	board   Board
	opts    Options
	emitter *audit.Emitter
	logger  *log.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an engine. A nil emitter discards audit events.
func NewEngine(b Board, opts Options, emitter *audit.Emitter) *Engine {
	emitter.SetDryRun(opts.DryRun)
	return &Engine{
		board:   b,
		opts:    opts,
		emitter: emitter,
		logger:  log.Default(),
		sleep:   sleepContext,
	}
}

// SetLogger replaces the default logger.
func (e *Engine) SetLogger(logger *log.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Options returns the engine's settings.
func (e *Engine) Options() Options {
	return e.opts
}

// Run executes a request and reports the outcome. The caller builds the
// engine's Board from the request's API key.
func (e *Engine) Run(ctx context.Context, req invocation.Request) invocation.Result {
	if err := req.Validate(); err != nil {
		return invocation.Failure(err)
	}

	var (
		report *Report
		err    error
	)
	switch req.Direction {
	case invocation.DirectionPush:
		report, err = e.Push(ctx, req.BoardID, req.FilePath)
	case invocation.DirectionPull:
		report, err = e.Pull(ctx, req.BoardID, req.FilePath)
	}

	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrReplaceIncomplete) {
			msg = "The old group was archived but the new group is incomplete: " + msg
		}
		e.logger.Error("Sync failed", "direction", req.Direction, "err", err)
		return invocation.Result{Success: false, Message: msg, RunID: e.emitter.RunID()}
	}
	return invocation.Result{Success: true, Message: report.Message(), RunID: e.emitter.RunID()}
}

func (e *Engine) groupTitle(path string) string {
	if e.opts.GroupName != "" {
		return e.opts.GroupName
	}
	return sheet.GroupLabel(path)
}

func (e *Engine) openSheet(path string) (sheet.Workbook, []reconcile.Field, error) {
	wb, err := sheet.Open(path, sheet.Options{
		PreserveFormatting: e.opts.PreserveFormatting,
		DryRun:             e.opts.DryRun,
		Emitter:            e.emitter,
	})
	if err != nil {
		return nil, nil, err
	}
	return wb, e.opts.Policy.MarkProtected(wb.Schema()), nil
}

func findGroup(groups []board.Group, title string) (board.Group, bool) {
	for _, g := range groups {
		if reconcile.SameName(g.Title, title) {
			return g, true
		}
	}
	return board.Group{}, false
}

func toRemoteColumns(cols []board.Column) []reconcile.RemoteColumn {
	out := make([]reconcile.RemoteColumn, len(cols))
	for i, c := range cols {
		out[i] = reconcile.RemoteColumn{ID: c.ID, Title: c.Title}
	}
	return out
}

func toRemoteItems(items []board.Item) []reconcile.RemoteItem {
	out := make([]reconcile.RemoteItem, len(items))
	for i, it := range items {
		out[i] = reconcile.RemoteItem{ID: it.ID, Name: it.Name, Values: it.Values}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
