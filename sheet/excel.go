package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"

	"github.com/zenibako/boardsync/reconcile"
)

type excelWorkbook struct {
	path    string
	file    *excelize.File
	sheet   string
	opts    Options
	schema  []reconcile.Field
	records []reconcile.Record
}

func openExcel(path string, opts Options) (*excelWorkbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: workbook has no sheets", ErrSourceUnreadable, path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: reading sheet %q: %v", ErrSourceUnreadable, path, sheets[0], err)
	}

	schema, records := parseRows(rows)
	return &excelWorkbook{
		path:    path,
		file:    f,
		sheet:   sheets[0],
		opts:    opts,
		schema:  schema,
		records: records,
	}, nil
}

func (w *excelWorkbook) Path() string                { return w.path }
func (w *excelWorkbook) Schema() []reconcile.Field   { return w.schema }
func (w *excelWorkbook) Records() []reconcile.Record { return w.records }

func (w *excelWorkbook) Apply(updates []reconcile.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	for _, u := range updates {
		col, ok := fieldPosition(w.schema, u.Field)
		if !ok {
			return fmt.Errorf("%w: no column %q", ErrSinkUnwritable, u.Field)
		}
		cell, err := excelize.CoordinatesToCellName(col, u.Row)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSinkUnwritable, err)
		}

		if err := w.file.SetCellValue(w.sheet, cell, w.cellValue(cell, u.New)); err != nil {
			return fmt.Errorf("%w: setting %s: %v", ErrSinkUnwritable, cell, err)
		}
		if !w.opts.PreserveFormatting {
			if err := w.file.SetCellStyle(w.sheet, cell, cell, 0); err != nil {
				return fmt.Errorf("%w: resetting style of %s: %v", ErrSinkUnwritable, cell, err)
			}
		}
		emitCellUpdate(w.opts.Emitter, cell, u)
	}

	if w.opts.DryRun {
		return nil
	}

	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSinkUnwritable, w.path, err)
	}
	if err := atomic.WriteFile(w.path, buf); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSinkUnwritable, w.path, err)
	}
	return nil
}

// cellValue keeps a numeric cell numeric when the new text is a number.
// Everything else is written as text.
func (w *excelWorkbook) cellValue(cell, value string) any {
	typ, err := w.file.GetCellType(w.sheet, cell)
	if err != nil {
		return value
	}
	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
	default:
		return value
	}
	old, err := w.file.GetCellValue(w.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return value
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(old), 64); err != nil {
		return value
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return value
	}
	return n
}

func (w *excelWorkbook) Close() error {
	return w.file.Close()
}
