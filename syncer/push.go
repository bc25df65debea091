package syncer

import (
	"context"
	"fmt"

	"github.com/zenibako/boardsync/audit"
	"github.com/zenibako/boardsync/board"
	"github.com/zenibako/boardsync/invocation"
	"github.com/zenibako/boardsync/reconcile"
)

// Push makes the board group match the spreadsheet at path.
func (e *Engine) Push(ctx context.Context, boardID, path string) (*Report, error) {
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
		Direction: invocation.DirectionPush,
		Mode:      e.opts.Mode,
		BoardID:   boardID,
		Group:     e.groupTitle(path),
		DryRun:    e.opts.DryRun,
	}
	e.logger.Info("Starting push", "file", path, "board", boardID, "group", report.Group, "mode", e.opts.Mode)

	existed, err := e.prepareGroup(ctx, report)
	if err != nil {
		return report, err
	}

	err = e.pushContents(ctx, report, schema, records, existed)
	if err != nil && report.ArchivedGroupID != "" {
		return report, fmt.Errorf("%w: group %q (ID: %s) was archived: %w", ErrReplaceIncomplete, report.Group, report.ArchivedGroupID, err)
	}
	return report, err
}

// prepareGroup finds or creates the target group. In replace mode an existing
// group is archived and a fresh one created. It reports whether the group
// that will receive items already existed.
func (e *Engine) prepareGroup(ctx context.Context, report *Report) (bool, error) {
	groups, err := e.board.ListGroups(ctx, report.BoardID)
	if err != nil {
		return false, fmt.Errorf("listing groups: %w", err)
	}

	group, found := findGroup(groups, report.Group)
	if found && e.opts.Mode == reconcile.ModeIncremental {
		report.GroupID = group.ID
		e.emitter.Emit(audit.Event{Kind: audit.KindGroupFound, Name: group.Title, ID: group.ID})
		return true, nil
	}

	if found {
		if _, err := e.board.ArchiveGroup(ctx, report.BoardID, group.ID); err != nil {
			return false, fmt.Errorf("archiving group %q: %w", group.Title, err)
		}
		report.ArchivedGroupID = group.ID
		e.emitter.Emit(audit.Event{Kind: audit.KindGroupArchived, Name: group.Title, ID: group.ID})
	}

	id, err := e.board.CreateGroup(ctx, report.BoardID, report.Group)
	if err != nil {
		err = fmt.Errorf("creating group %q: %w", report.Group, err)
		if report.ArchivedGroupID != "" {
			return false, fmt.Errorf("%w: group %q (ID: %s) was archived: %w", ErrReplaceIncomplete, report.Group, report.ArchivedGroupID, err)
		}
		return false, err
	}
	report.GroupID = id
	e.emitter.Emit(audit.Event{Kind: audit.KindGroupCreated, Name: report.Group, ID: id})
	return false, nil
}

func (e *Engine) pushContents(ctx context.Context, report *Report, schema []reconcile.Field, records []reconcile.Record, groupExisted bool) error {
	cols, err := e.reconcileColumns(ctx, report, schema)
	if err != nil {
		return err
	}

	var remote []reconcile.RemoteItem
	if groupExisted {
		items, err := e.board.ListItemsInGroup(ctx, report.BoardID, report.GroupID)
		if err != nil {
			return fmt.Errorf("listing items: %w", err)
		}
		remote = toRemoteItems(items)
	}

	plan, err := reconcile.PlanPush(schema, records, cols, remote, e.opts.Mode, e.opts.Policy)
	if err != nil {
		return err
	}
	for _, w := range plan.Warnings {
		report.Warnings = append(report.Warnings, w)
		e.emitter.Warn(w)
	}

	for _, op := range plan.Ops {
		if err := e.applyItemOp(ctx, report, &op); err != nil {
			return err
		}
		report.Ops = append(report.Ops, op)
	}
	return nil
}

// reconcileColumns applies the schema plan and returns the field -> column
// id map used for item payloads.
func (e *Engine) reconcileColumns(ctx context.Context, report *Report, schema []reconcile.Field) (reconcile.ColumnMap, error) {
	remote, err := e.board.ListColumns(ctx, report.BoardID)
	if err != nil {
		return nil, fmt.Errorf("listing columns: %w", err)
	}

	plan := reconcile.PlanSchema(schema, toRemoteColumns(remote), e.opts.Policy)
	cols := make(reconcile.ColumnMap, len(plan.Keep)+len(plan.Create))
	for field, id := range plan.Keep {
		cols[field] = id
	}

	for _, c := range plan.Create {
		id, err := e.board.CreateColumn(ctx, report.BoardID, c.Title)
		if err != nil {
			return nil, fmt.Errorf("creating column %q: %w", c.Title, err)
		}
		e.emitter.Emit(audit.Event{Kind: audit.KindColumnCreated, Name: c.Title, ID: id})
		report.ColumnsCreated = append(report.ColumnsCreated, c.Title)
		if !c.Protected {
			cols[c.Title] = id
		}
	}

	for _, c := range plan.Delete {
		if _, err := e.board.DeleteColumn(ctx, report.BoardID, c.ID); err != nil {
			return nil, fmt.Errorf("deleting column %q: %w", c.Title, err)
		}
		e.emitter.Emit(audit.Event{Kind: audit.KindColumnDeleted, Name: c.Title, ID: c.ID})
		report.ColumnsDeleted = append(report.ColumnsDeleted, c.Title)
	}

	return cols, nil
}

func (e *Engine) applyItemOp(ctx context.Context, report *Report, op *reconcile.ItemOp) error {
	switch op.Action {
	case reconcile.ActionCreate:
		id, err := e.board.CreateItem(ctx, report.BoardID, report.GroupID, op.Key)
		if err != nil {
			return fmt.Errorf("creating item %q: %w", op.Key, err)
		}
		op.ItemID = id
		e.emitter.Emit(audit.Event{Kind: audit.KindItemCreated, Name: op.Key, ID: id})
		for _, field := range op.Blank {
			e.emitter.Emit(audit.Event{Kind: audit.KindBlankSkipped, Name: op.Key, Field: field})
		}
		if len(op.Fields) == 0 {
			e.emitter.Info(fmt.Sprintf("No column values to update for item ID %s. Skipping update.", id))
			return nil
		}
		if !e.opts.DryRun {
			if err := e.sleep(ctx, e.opts.SettleDelay); err != nil {
				return fmt.Errorf("waiting to fill item %q: %w", op.Key, err)
			}
		}
		if err := e.board.UpdateItemFields(ctx, report.BoardID, id, op.Payload()); err != nil {
			return fmt.Errorf("filling item %q: %w", op.Key, err)
		}
		for _, fv := range op.Fields {
			e.emitter.Emit(audit.Event{Kind: audit.KindFieldChanged, Name: op.Key, ID: id, Field: fv.Field, New: fv.New})
		}

	case reconcile.ActionUpdate:
		if err := e.board.UpdateItemFields(ctx, report.BoardID, op.ItemID, op.Payload()); err != nil {
			return fmt.Errorf("updating item %q: %w", op.Key, err)
		}
		for _, fv := range op.Fields {
			if reconcile.SameValue(fv.Old, fv.New) {
				continue
			}
			e.emitter.Emit(audit.Event{Kind: audit.KindFieldChanged, Name: op.Key, ID: op.ItemID, Field: fv.Field, Old: fv.Old, New: fv.New})
		}
		e.emitter.Emit(audit.Event{Kind: audit.KindItemUpdated, Name: op.Key, ID: op.ItemID})

	case reconcile.ActionSkip:
		e.emitter.Emit(audit.Event{Kind: audit.KindItemSkipped, Name: op.Key, ID: op.ItemID})
	}
	return nil
}

// compile-time check that the HTTP client satisfies Board
var _ Board = (*board.Client)(nil)
