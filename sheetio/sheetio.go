// Package sheetio converts gridb tables to and from XLSX workbooks.
package sheetio

import (
	"fmt"
	"strconv"

	"github.com/andreyvit/gridb"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

type ExportOptions struct {
	// SheetName names the only sheet of the workbook; defaults to Sheet1.
	SheetName string

	// Header writes column names as the first spreadsheet row.
	Header bool
}

// Export writes the table into a new single-sheet workbook. Values of
// Numeric columns that parse as numbers are stored as numbers, everything
// else as text.
func Export(content *gridb.TableContent, opts ExportOptions) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := defaultSheet
	if opts.SheetName != "" && opts.SheetName != defaultSheet {
		if err := f.SetSheetName(defaultSheet, opts.SheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet name %q: %w", opts.SheetName, err)
		}
		sheet = opts.SheetName
	}

	line := 1
	if opts.Header {
		for c, col := range content.Columns {
			if err := setCell(f, sheet, c, line, col.Name); err != nil {
				f.Close()
				return nil, err
			}
		}
		line++
	}
	for _, row := range content.Rows {
		for c, v := range row.Values {
			if v == "" {
				continue
			}
			var value any = v
			if content.Columns[c].DataType == gridb.Numeric {
				value = parseValue(v)
			}
			if err := setCell(f, sheet, c, line, value); err != nil {
				f.Close()
				return nil, err
			}
		}
		line++
	}
	return f, nil
}

func setCell(f *excelize.File, sheet string, colIdx, line int, value any) error {
	cellName, err := excelize.CoordinatesToCellName(colIdx+1, line)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cellName, value)
}

// parseValue attempts to parse a string value as a number.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func isNumber(s string) bool {
	_, ok := parseValue(s).(string)
	return !ok
}

type ImportOptions struct {
	// SheetName selects the sheet to read; defaults to the first one.
	SheetName string

	// Header takes column names from the first spreadsheet row.
	Header bool

	// Owner, when set, files the new table under a card owned by Owner
	// with the given Title.
	Owner string
	Title string
}

// Imported describes a table created by Import.
type Imported struct {
	Table   gridb.TableID
	Rows    int
	Columns int
}

// Import creates a table from a sheet. The widest spreadsheet row defines
// the number of columns. A column whose non-empty values are all numbers
// becomes Numeric, otherwise Textual. An empty sheet yields the usual
// single-cell table.
func Import(tx *gridb.Tx, f *excelize.File, opts ImportOptions) (Imported, error) {
	sheet := opts.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Imported{}, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	lines, err := f.GetRows(sheet)
	if err != nil {
		return Imported{}, fmt.Errorf("sheet %q: %w", sheet, err)
	}

	var names []string
	if opts.Header && len(lines) > 0 {
		names, lines = lines[0], lines[1:]
	}
	width := max(len(names), 1)
	for _, line := range lines {
		width = max(width, len(line))
	}
	height := max(len(lines), 1)

	var tbl gridb.TableID
	if opts.Owner != "" {
		card, err := tx.CreateCard(opts.Owner, gridb.CardSpec{Title: opts.Title})
		if err != nil {
			return Imported{}, err
		}
		tbl = card.Table
	} else {
		tbl, err = tx.CreateTable()
		if err != nil {
			return Imported{}, err
		}
	}

	for c := range width {
		spec := gridb.ColumnSpec{DataType: columnType(lines, c)}
		if c < len(names) {
			spec.Name = names[c]
		}
		if c == 0 {
			first, err := tx.ColumnIDAt(tbl, 0)
			if err != nil {
				return Imported{}, err
			}
			_, err = tx.PatchColumn(tbl, first, gridb.ColumnPatch{Name: &spec.Name, DataType: &spec.DataType})
			if err != nil {
				return Imported{}, err
			}
		} else if _, err := tx.AppendColumn(tbl, spec); err != nil {
			return Imported{}, err
		}
	}

	for r := range height {
		if r > 0 {
			if _, err := tx.AppendRow(tbl); err != nil {
				return Imported{}, err
			}
		}
		if r >= len(lines) {
			continue
		}
		values := make(map[int]string)
		for c, v := range lines[r] {
			if v != "" {
				values[c] = v
			}
		}
		if len(values) > 0 {
			if err := tx.UpdateRow(tbl, r, values); err != nil {
				return Imported{}, err
			}
		}
	}
	return Imported{Table: tbl, Rows: height, Columns: width}, nil
}

func columnType(lines [][]string, c int) gridb.DataType {
	seen := false
	for _, line := range lines {
		if c >= len(line) || line[c] == "" {
			continue
		}
		if !isNumber(line[c]) {
			return gridb.Textual
		}
		seen = true
	}
	if seen {
		return gridb.Numeric
	}
	return gridb.Textual
}
