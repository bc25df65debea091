package audit

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Kind identifies a reconciliation decision.
type Kind string

const (
	KindGroupFound     Kind = "group_found"
	KindGroupCreated   Kind = "group_created"
	KindGroupArchived  Kind = "group_archived"
	KindColumnCreated  Kind = "column_created"
	KindColumnDeleted  Kind = "column_deleted"
	KindItemCreated    Kind = "item_created"
	KindItemUpdated    Kind = "item_updated"
	KindItemSkipped    Kind = "item_skipped"
	KindFieldChanged   Kind = "field_changed"
	KindBlankSkipped   Kind = "blank_skipped"
	KindCellUpdated    Kind = "cell_updated"
	KindItemNotMatched Kind = "item_not_matched"
	KindWarning        Kind = "warning"
	KindInfo           Kind = "info"
)

// Event is one reconciliation decision. Which fields are set depends on Kind.
type Event struct {
	RunID   string
	Time    time.Time
	Kind    Kind
	ID      string // remote id of the group, column or item
	Name    string // group title, column title or item key
	Field   string // field name for field and cell events
	Cell    string // spreadsheet address, e.g. "C5"
	Old     string
	New     string
	Message string // free text for warnings and info
	DryRun  bool
}

// String renders the event as the human-readable audit line.
func (e Event) String() string {
	var line string
	switch e.Kind {
	case KindGroupFound:
		line = fmt.Sprintf("Using group: %s with ID: %s", e.Name, e.ID)
	case KindGroupCreated:
		line = fmt.Sprintf("Created group: %s with ID: %s", e.Name, e.ID)
	case KindGroupArchived:
		line = fmt.Sprintf("Archived group: %s with ID: %s", e.Name, e.ID)
	case KindColumnCreated:
		line = fmt.Sprintf("Created column: %s with ID: %s", e.Name, e.ID)
	case KindColumnDeleted:
		line = fmt.Sprintf("Deleted extra column: %s with ID: %s", e.Name, e.ID)
	case KindItemCreated:
		line = fmt.Sprintf("Created item %q with ID: %s", e.Name, e.ID)
	case KindItemUpdated:
		line = fmt.Sprintf("Updated item %q (ID: %s)", e.Name, e.ID)
	case KindItemSkipped:
		line = fmt.Sprintf("No changes for item %q (ID: %s). Skipping update.", e.Name, e.ID)
	case KindFieldChanged:
		line = fmt.Sprintf("Updating item %q column %q: %q -> %q", e.Name, e.Field, e.Old, e.New)
	case KindBlankSkipped:
		line = fmt.Sprintf("Skipping blank cell for column %q in item %q", e.Field, e.Name)
	case KindCellUpdated:
		line = fmt.Sprintf("Updating cell %s [Item: %s][Column: %s]: %q -> %q", e.Cell, e.Name, e.Field, e.Old, e.New)
	case KindItemNotMatched:
		line = fmt.Sprintf("Item %q (ID: %s) not found in spreadsheet", e.Name, e.ID)
	default:
		line = e.Message
	}
	if e.DryRun {
		line = "[DRY RUN] " + line
	}
	return line
}

// Level is the log level the event is reported at.
func (e Event) Level() log.Level {
	switch e.Kind {
	case KindWarning, KindItemNotMatched, KindColumnDeleted, KindGroupArchived:
		return log.WarnLevel
	case KindItemSkipped, KindBlankSkipped, KindGroupFound:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}
