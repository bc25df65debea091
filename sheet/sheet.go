package sheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zenibako/boardsync/audit"
	"github.com/zenibako/boardsync/reconcile"
)

var (
	// ErrSourceUnreadable is returned when the spreadsheet cannot be opened or parsed.
	ErrSourceUnreadable = errors.New("spreadsheet unreadable")
	// ErrSinkUnwritable is returned when updated cells cannot be written back.
	ErrSinkUnwritable = errors.New("spreadsheet unwritable")
)

// Options control how a workbook is opened and written.
type Options struct {
	PreserveFormatting bool           // keep each updated cell's style
	DryRun             bool           // report updates without writing the file
	Emitter            *audit.Emitter // receives one event per updated cell
}

// Workbook is a loaded spreadsheet: a header row of fields and the data rows
// below it.
type Workbook interface {
	Path() string
	Schema() []reconcile.Field
	Records() []reconcile.Record
	// Apply overwrites the addressed cells and writes the file back once.
	Apply(updates []reconcile.CellUpdate) error
	Close() error
}

// Open loads the first sheet of the file at path. The format is chosen by
// extension: .xlsx and .xlsm through excelize, legacy .xls read-only, .csv as
// plain text.
func Open(path string, opts Options) (Workbook, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		wb, err := openExcel(path, opts)
		if err != nil {
			return nil, err
		}
		return wb, nil
	case ".csv":
		wb, err := openCSV(path, opts)
		if err != nil {
			return nil, err
		}
		return wb, nil
	case ".xls":
		wb, err := openXLS(path)
		if err != nil {
			return nil, err
		}
		return wb, nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported file type", ErrSourceUnreadable, path)
	}
}

// GroupLabel is the label a file contributes as its group name: the first
// word of the file name without extension.
func GroupLabel(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if words := strings.Fields(name); len(words) > 0 {
		return words[0]
	}
	return name
}

// parseRows turns raw rows into a schema and records. Row 1 is the header;
// blank header cells are not fields and fully blank rows are not records.
func parseRows(rows [][]string) ([]reconcile.Field, []reconcile.Record) {
	if len(rows) == 0 {
		return nil, nil
	}

	names := reconcile.Disambiguate(rows[0])
	var schema []reconcile.Field
	for i, name := range names {
		if name == "" {
			continue
		}
		schema = append(schema, reconcile.Field{Name: name, Position: i + 1})
	}

	var records []reconcile.Record
	for r, row := range rows[1:] {
		values := make(map[string]string, len(schema))
		empty := true
		for _, f := range schema {
			v := ""
			if f.Position-1 < len(row) {
				v = row[f.Position-1]
			}
			if strings.TrimSpace(v) != "" {
				empty = false
			}
			values[f.Name] = v
		}
		if empty {
			continue
		}
		records = append(records, reconcile.Record{Row: r + 2, Values: values})
	}

	log.Debugf("Parsed %d fields and %d records", len(schema), len(records))
	return schema, records
}

func fieldPosition(schema []reconcile.Field, name string) (int, bool) {
	for _, f := range schema {
		if f.Name == name {
			return f.Position, true
		}
	}
	for _, f := range schema {
		if reconcile.SameName(f.Name, name) {
			return f.Position, true
		}
	}
	return 0, false
}

func emitCellUpdate(em *audit.Emitter, cell string, u reconcile.CellUpdate) {
	em.Emit(audit.Event{
		Kind:  audit.KindCellUpdated,
		Cell:  cell,
		Name:  u.Key,
		Field: u.Field,
		Old:   u.Old,
		New:   u.New,
	})
}
