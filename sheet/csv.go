package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/zenibako/boardsync/reconcile"
)

type csvWorkbook struct {
	path    string
	rows    [][]string
	bom     bool
	opts    Options
	schema  []reconcile.Field
	records []reconcile.Record
}

func openCSV(path string, opts Options) (*csvWorkbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}

	// Excel's "CSV UTF-8" export starts with a byte-order mark. Strip it so
	// the first header matches, and put it back on write.
	bom := hasBOM(data)
	r := csv.NewReader(transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(transform.Nop)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}

	schema, records := parseRows(rows)
	return &csvWorkbook{path: path, rows: rows, bom: bom, opts: opts, schema: schema, records: records}, nil
}

func (w *csvWorkbook) Path() string                { return w.path }
func (w *csvWorkbook) Schema() []reconcile.Field   { return w.schema }
func (w *csvWorkbook) Records() []reconcile.Record { return w.records }

func (w *csvWorkbook) Apply(updates []reconcile.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	for _, u := range updates {
		col, ok := fieldPosition(w.schema, u.Field)
		if !ok {
			return fmt.Errorf("%w: no column %q", ErrSinkUnwritable, u.Field)
		}
		for len(w.rows) < u.Row {
			w.rows = append(w.rows, nil)
		}
		row := w.rows[u.Row-1]
		for len(row) < col {
			row = append(row, "")
		}
		row[col-1] = u.New
		w.rows[u.Row-1] = row

		cell, _ := excelize.CoordinatesToCellName(col, u.Row)
		emitCellUpdate(w.opts.Emitter, cell, u)
	}

	if w.opts.DryRun {
		return nil
	}

	var buf bytes.Buffer
	if w.bom {
		buf.WriteString("\ufeff")
	}
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(w.rows); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSinkUnwritable, w.path, err)
	}
	if err := atomic.WriteFile(w.path, &buf); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSinkUnwritable, w.path, err)
	}
	return nil
}

func (w *csvWorkbook) Close() error { return nil }

func hasBOM(data []byte) bool {
	for _, bom := range [][]byte{{0xef, 0xbb, 0xbf}, {0xfe, 0xff}, {0xff, 0xfe}} {
		if bytes.HasPrefix(data, bom) {
			return true
		}
	}
	return false
}
