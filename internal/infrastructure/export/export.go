// Package export renders the sync audit log as CSV or XLSX documents.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/oliehub/backend/internal/domain/integration"
)

// Content types of the rendered documents
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Columns is the fixed header of every sync log export
var Columns = []string{"id", "type", "count", "status", "timestamp", "details"}

// SheetName is the worksheet holding the rows in XLSX exports
const SheetName = "sync_logs"

// Row renders one entry in column order. Timestamps are RFC 3339 in UTC.
func Row(e integration.SyncLogEntry) []string {
	return []string{
		strconv.FormatUint(uint64(e.ID), 10),
		string(e.Type),
		strconv.Itoa(e.Count),
		string(e.Status),
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Details,
	}
}

// CSVWriter writes sync log entries as CSV
type CSVWriter struct {
	delimiter rune
	bom       bool
}

// WriterOption is a functional option for CSVWriter configuration
type WriterOption func(*CSVWriter)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) WriterOption {
	return func(w *CSVWriter) {
		w.delimiter = d
	}
}

// WithBOM prefixes the output with a UTF-8 byte order mark so spreadsheet
// tools detect the encoding of accented text
func WithBOM(bom bool) WriterOption {
	return func(w *CSVWriter) {
		w.bom = bom
	}
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(opts ...WriterOption) *CSVWriter {
	w := &CSVWriter{delimiter: ','}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders the header followed by one row per entry
func (c *CSVWriter) Write(out io.Writer, entries []integration.SyncLogEntry) error {
	buf := bufio.NewWriter(out)
	if c.bom {
		if _, err := buf.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write byte order mark: %w", err)
		}
	}

	w := csv.NewWriter(buf)
	w.Comma = c.delimiter
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, e := range entries {
		if err := w.Write(Row(e)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Flush()
}

// WriteCSV renders entries with the default CSV settings
func WriteCSV(out io.Writer, entries []integration.SyncLogEntry) error {
	return NewCSVWriter().Write(out, entries)
}

// WriteXLSX renders entries as a single-sheet workbook. Numeric columns are
// stored as numbers so the sheet can be summed directly.
func WriteXLSX(out io.Writer, entries []integration.SyncLogEntry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}

	for i, e := range entries {
		r := i + 2
		set := func(col int, value any) error {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			return f.SetCellValue(SheetName, cell, value)
		}
		values := []any{
			e.ID,
			string(e.Type),
			e.Count,
			string(e.Status),
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Details,
		}
		for col, v := range values {
			if err := set(col+1, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", i+1, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "E", "E", 22)
	_ = f.SetColWidth(SheetName, "F", "F", 60)

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
