// Package table reads the tabular reference sources (CSV and XLSX) into a
// header-plus-rows form with normalized column names.
package table

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const utf8BOM = "\ufeff"

// Table is a rectangular-ish string table. Rows may be shorter than Header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the named column, or -1.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Has reports whether the named column exists.
func (t Table) Has(name string) bool { return t.Index(name) >= 0 }

// Value returns the trimmed cell of row for the named column, or "" when
// the column or cell is absent.
func (t Table) Value(row []string, name string) string {
	idx := t.Index(name)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Column returns every value of the named column; nil when absent.
func (t Table) Column(name string) []string {
	if !t.Has(name) {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = t.Value(row, name)
	}
	return out
}

// ReadCSV reads a CSV file whose first row is the header.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, eris.Wrapf(err, "table: open csv %s", path)
	}
	defer func() { _ = f.Close() }()

	t, err := ParseCSV(f)
	if err != nil {
		return Table{}, eris.Wrapf(err, "table: parse csv %s", path)
	}
	return t, nil
}

// ParseCSV parses CSV content, stripping a UTF-8 byte-order mark and
// surrounding whitespace from header names.
func ParseCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var t Table
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, eris.Wrap(err, "table: read csv row")
		}
		if first {
			first = false
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], utf8BOM)
			}
			t.Header = normalizeHeader(record)
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if first {
		return Table{}, eris.New("table: csv has no header row")
	}
	return t, nil
}

// XLSXOptions selects the worksheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads a worksheet whose first row is the header.
func ReadXLSX(path string, opts XLSXOptions) (Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return Table{}, eris.Wrapf(err, "table: open xlsx %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return Table{}, err
	}

	var t Table
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cellText(cell)
		}
		if i == 0 {
			t.Header = normalizeHeader(cells)
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if t.Header == nil {
		return Table{}, eris.Errorf("table: xlsx %s has no header row", path)
	}
	return t, nil
}

// cellText returns the stored value of numeric cells, so number formats
// such as "0.0" or "0%" do not round or decorate indicator values. Other
// cells, and numeric cells formatted as dates, use their display text.
func cellText(cell *xlsx.Cell) string {
	if cell.Type() == xlsx.CellTypeNumeric && !cell.IsTime() {
		if _, err := cell.Float(); err == nil {
			return cell.Value
		}
	}
	return cell.String()
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("table: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("table: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func normalizeHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
