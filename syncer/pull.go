package syncer

import (
	"context"
	"fmt"

	"github.com/zenibako/boardsync/audit"
	"github.com/zenibako/boardsync/invocation"
	"github.com/zenibako/boardsync/reconcile"
)

// Pull copies board values into the spreadsheet at path. Only cells whose
// value differs are written; rows are never added for unmatched items.
func (e *Engine) Pull(ctx context.Context, boardID, path string) (*Report, error) {
	wb, schema, err := e.openSheet(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = wb.Close()
	}()

	records := wb.Records()
	if _, err := reconcile.ValidateRecords(schema, records, e.opts.Policy); err != nil {
		return nil, err
	}

	report := &Report{
		Direction: invocation.DirectionPull,
		BoardID:   boardID,
		Group:     e.groupTitle(path),
		DryRun:    e.opts.DryRun,
	}
	e.logger.Info("Starting pull", "file", path, "board", boardID, "group", report.Group)

	groups, err := e.board.ListGroups(ctx, boardID)
	if err != nil {
		return report, fmt.Errorf("listing groups: %w", err)
	}
	group, ok := findGroup(groups, report.Group)
	if !ok {
		return report, fmt.Errorf("%w: no group named %q on board %s", ErrGroupNotFound, report.Group, boardID)
	}
	report.GroupID = group.ID
	e.emitter.Emit(audit.Event{Kind: audit.KindGroupFound, Name: group.Title, ID: group.ID})

	cols, err := e.board.ListColumns(ctx, boardID)
	if err != nil {
		return report, fmt.Errorf("listing columns: %w", err)
	}
	items, err := e.board.ListItemsInGroup(ctx, boardID, group.ID)
	if err != nil {
		return report, fmt.Errorf("listing items: %w", err)
	}

	plan, err := reconcile.PlanPull(schema, records, toRemoteColumns(cols), toRemoteItems(items), e.opts.Policy)
	if err != nil {
		return report, err
	}
	for _, w := range plan.Warnings {
		report.Warnings = append(report.Warnings, w)
		e.emitter.Warn(w)
	}
	for _, item := range plan.Unmatched {
		report.Unmatched = append(report.Unmatched, item.Name)
		e.emitter.Emit(audit.Event{Kind: audit.KindItemNotMatched, Name: item.Name, ID: item.ID})
	}

	if err := wb.Apply(plan.Updates); err != nil {
		return report, err
	}
	report.CellUpdates = plan.Updates
	return report, nil
}
