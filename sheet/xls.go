package sheet

import (
	"fmt"
	"os"

	"github.com/extrame/xls"

	"github.com/zenibako/boardsync/reconcile"
)

// BIFF8 worksheets have at most 256 columns.
const xlsMaxCols = 256

// xlsWorkbook is a legacy binary workbook. It can be read for a push but not
// written back.
type xlsWorkbook struct {
	path    string
	schema  []reconcile.Field
	records []reconcile.Record
}

func openXLS(path string) (wb *xlsWorkbook, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	// The decoder panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			wb, err = nil, fmt.Errorf("%w: %s: malformed workbook: %v", ErrSourceUnreadable, path, r)
		}
	}()

	book, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}
	if book == nil || book.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: %s: workbook has no sheets", ErrSourceUnreadable, path)
	}
	ws := book.GetSheet(0)
	if ws == nil {
		return nil, fmt.Errorf("%w: %s: workbook has no sheets", ErrSourceUnreadable, path)
	}

	schema, records := parseRows(xlsRows(ws))
	return &xlsWorkbook{path: path, schema: schema, records: records}, nil
}

// xlsRows returns the cell text of every row up to the sheet's last row.
// Missing rows come back empty and trailing empty cells are dropped.
func xlsRows(ws *xls.WorkSheet) [][]string {
	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := xlsRow(ws, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		var cells []string
		last := -1
		for j := 0; j < xlsMaxCols; j++ {
			v := row.Col(j)
			cells = append(cells, v)
			if v != "" {
				last = j
			}
		}
		rows = append(rows, cells[:last+1])
	}
	return rows
}

// xlsRow returns nil for rows the sheet does not store; WorkSheet.Row
// dereferences them.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func (w *xlsWorkbook) Path() string                { return w.path }
func (w *xlsWorkbook) Schema() []reconcile.Field   { return w.schema }
func (w *xlsWorkbook) Records() []reconcile.Record { return w.records }

func (w *xlsWorkbook) Apply(updates []reconcile.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: legacy .xls workbooks are read-only, save it as .xlsx to pull into it", ErrSinkUnwritable, w.path)
}

func (w *xlsWorkbook) Close() error { return nil }
