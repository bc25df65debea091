package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKeyFieldMissing is returned when the schema has no key field or a
	// non-empty record has a blank key.
	ErrKeyFieldMissing = errors.New("key field missing")
	// ErrDuplicateKey is returned, together with ErrKeyFieldMissing, when two
	// records share the same trimmed key.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Mode selects how a push treats the existing group.
type Mode string

const (
	ModeReplace     Mode = "replace"     // archive the group and recreate every item
	ModeIncremental Mode = "incremental" // diff against existing items
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReplace:
		return ModeReplace, nil
	case ModeIncremental, "":
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q (want replace or incremental)", s)
	}
}

// Field is one column of the spreadsheet schema.
type Field struct {
	Name      string // disambiguated, trimmed header text
	Position  int    // 1-based column index in the sheet
	Protected bool
}

// Record is one data row, keyed by disambiguated field name.
type Record struct {
	Row    int               // 1-based sheet row the record was read from
	Values map[string]string // field name -> cell text ("" for blank cells)
}

// Value returns the value of the named field, matching the name
// case-insensitively.
func (r Record) Value(field string) string {
	if v, ok := r.Values[field]; ok {
		return v
	}
	for name, v := range r.Values {
		if SameName(name, field) {
			return v
		}
	}
	return ""
}

// Policy holds the naming rules shared by every reconciler.
type Policy struct {
	KeyField        string   // field whose value names the remote item, e.g. "Year"
	DisplayColumn   string   // the board's built-in item name column, e.g. "Name"
	ProtectedFields []string // never deleted remotely, never overwritten in either direction
}

// IsKey reports whether name is the key field.
func (p Policy) IsKey(name string) bool {
	return p.KeyField != "" && SameName(name, p.KeyField)
}

// IsDisplay reports whether name is the board's display column.
func (p Policy) IsDisplay(name string) bool {
	return p.DisplayColumn != "" && SameName(name, p.DisplayColumn)
}

// IsProtected reports whether name is one of the protected fields.
func (p Policy) IsProtected(name string) bool {
	for _, protected := range p.ProtectedFields {
		if SameName(name, protected) {
			return true
		}
	}
	return false
}

// Syncable reports whether values of the named field travel between the
// spreadsheet and the board.
func (p Policy) Syncable(name string) bool {
	return !p.IsKey(name) && !p.IsDisplay(name) && !p.IsProtected(name)
}

// MarkProtected returns a copy of schema with the Protected flag set from the policy.
func (p Policy) MarkProtected(schema []Field) []Field {
	out := make([]Field, len(schema))
	for i, f := range schema {
		f.Protected = p.IsProtected(f.Name)
		out[i] = f
	}
	return out
}

// RemoteColumn is a column as the board reports it.
type RemoteColumn struct {
	ID    string
	Title string
}

// RemoteItem is a board item with its column values keyed by column id.
type RemoteItem struct {
	ID     string
	Name   string
	Values map[string]string
}

// ColumnMap maps a spreadsheet field name to the id of its remote column.
type ColumnMap map[string]string

// MatchColumns pairs each syncable schema field with the first remote column
// of the same title.
func MatchColumns(schema []Field, remote []RemoteColumn, p Policy) ColumnMap {
	m := make(ColumnMap)
	for _, f := range schema {
		if !p.Syncable(f.Name) {
			continue
		}
		if col, ok := findColumn(remote, f.Name); ok {
			m[f.Name] = col.ID
		}
	}
	return m
}

func findColumn(remote []RemoteColumn, title string) (RemoteColumn, bool) {
	for _, col := range remote {
		if SameName(col.Title, title) {
			return col, true
		}
	}
	return RemoteColumn{}, false
}
