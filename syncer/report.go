package syncer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/zenibako/boardsync/invocation"
	"github.com/zenibako/boardsync/reconcile"
)

// Report describes what a run did.
type Report struct {
	Direction       invocation.Direction
	Mode            reconcile.Mode
	BoardID         string
	Group           string
	GroupID         string
	ArchivedGroupID string // replace mode only
	ColumnsCreated  []string
	ColumnsDeleted  []string
	Ops             []reconcile.ItemOp     // push
	CellUpdates     []reconcile.CellUpdate // pull
	Unmatched       []string               // pull: board items with no spreadsheet row
	Warnings        []string
	DryRun          bool
}

// Counts tallies item operations by action.
func (r *Report) Counts() map[reconcile.Action]int {
	return reconcile.PushPlan{Ops: r.Ops}.Counts()
}

// Message is the one-line outcome returned to the caller.
func (r *Report) Message() string {
	prefix := ""
	if r.DryRun {
		prefix = "[DRY RUN] "
	}
	if r.Direction == invocation.DirectionPull {
		return fmt.Sprintf("%sPull complete for group %q: %d cells updated, %d board items not in spreadsheet",
			prefix, r.Group, len(r.CellUpdates), len(r.Unmatched))
	}
	c := r.Counts()
	return fmt.Sprintf("%sPush complete for group %q: %d created, %d updated, %d unchanged; %d columns created, %d deleted",
		prefix, r.Group, c[reconcile.ActionCreate], c[reconcile.ActionUpdate], c[reconcile.ActionSkip],
		len(r.ColumnsCreated), len(r.ColumnsDeleted))
}

// PrintReport logs the run results item by item.
func PrintReport(logger *log.Logger, r *Report) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Info("=== Sync Results ===")
	logger.Infof("Direction: %s", r.Direction)
	logger.Infof("Group: %s (ID: %s)", r.Group, r.GroupID)

	if r.Direction == invocation.DirectionPull {
		logger.Infof("Cells updated: %d", len(r.CellUpdates))
		for _, u := range r.CellUpdates {
			logger.Infof("  Row %d [%s]: '%s' -> '%s'", u.Row, u.Field, u.Old, u.New)
		}
		if len(r.Unmatched) > 0 {
			logger.Warnf("Board items not in spreadsheet: %v", r.Unmatched)
		}
	} else {
		c := r.Counts()
		logger.Infof("Action Summary: %d create, %d update, %d skip",
			c[reconcile.ActionCreate], c[reconcile.ActionUpdate], c[reconcile.ActionSkip])

		if len(r.Ops) > 0 {
			logger.Info("--- Item-by-Item Results ---")
			for _, op := range r.Ops {
				info := fmt.Sprintf("Item [%s]", op.Key)
				if op.ItemID != "" {
					info += fmt.Sprintf(" (ID: %s)", op.ItemID)
				}
				logger.Infof("%s: Action: %s - Reason: %s", info, op.Action, op.Reason)

				if diffs := op.ModifiedFields(); len(diffs) > 0 && op.Action == reconcile.ActionUpdate {
					logger.Info("  Modified fields:")
					for field, diff := range diffs {
						logger.Infof("    %s: %s", field, diff)
					}
				}
			}
		} else {
			logger.Info("No rows found in spreadsheet")
		}
	}

	for _, w := range r.Warnings {
		logger.Warn(w)
	}
	logger.Info("=== End Sync Results ===")
}
