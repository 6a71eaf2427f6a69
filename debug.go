package gridb

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type DumpFlags uint64

const (
	DumpHeader = DumpFlags(1 << iota)
	DumpStats
	DumpColumns
	DumpCells
	DumpIDs

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF) &^ DumpIDs

	maxDumpWidth = 24
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// DumpTable renders a table as text, for debugging and the CLI.
func (tx *Tx) DumpTable(tbl TableID, f DumpFlags) (string, error) {
	h, err := tx.LoadTable(tbl)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	dumpContent(&buf, h.Content(), f)
	return buf.String(), nil
}

func (db *DB) DumpTable(tbl TableID, f DumpFlags) (string, error) {
	return view(db, func(tx *Tx) (string, error) { return tx.DumpTable(tbl, f) })
}

func dumpContent(w *strings.Builder, c *TableContent, f DumpFlags) {
	if f.Contains(DumpHeader) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "table %v (%d rows, %d columns)\n", c.Table.ID, len(c.Rows), len(c.Columns))
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "created = %s, updated = %s\n", c.Table.CreatedAt.Format("2006-01-02 15:04:05"), c.Table.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if f.Contains(DumpColumns) {
		fmt.Fprintln(w, dumpSep2)
		for _, col := range c.Columns {
			if f.Contains(DumpIDs) {
				fmt.Fprintf(w, "col %d: %q %s %v\n", col.Index, col.Name, col.DataType, col.ID)
			} else {
				fmt.Fprintf(w, "col %d: %q %s\n", col.Index, col.Name, col.DataType)
			}
		}
	}
	if !f.Contains(DumpCells) {
		return
	}
	fmt.Fprintln(w, dumpSep2)

	widths := make([]int, len(c.Columns))
	for i, col := range c.Columns {
		widths[i] = max(utf8.RuneCountInString(dumpCell(col.Name)), 1)
	}
	for _, r := range c.Rows {
		for i, v := range r.Values {
			widths[i] = max(widths[i], utf8.RuneCountInString(dumpCell(v)))
		}
	}
	rowLabel := len(fmt.Sprint(len(c.Rows)))

	w.WriteString(strings.Repeat(" ", rowLabel))
	for i, col := range c.Columns {
		w.WriteString(" | ")
		w.WriteString(rpad(dumpCell(col.Name), widths[i], ' '))
	}
	w.WriteString("\n")
	for _, r := range c.Rows {
		w.WriteString(rpad(fmt.Sprint(r.Index), rowLabel, ' '))
		for i, v := range r.Values {
			w.WriteString(" | ")
			w.WriteString(rpad(dumpCell(v), widths[i], ' '))
		}
		if f.Contains(DumpIDs) {
			fmt.Fprintf(w, "  %v", r.ID)
		}
		w.WriteString("\n")
	}
}

func dumpCell(v string) string {
	v = strings.ReplaceAll(v, "\n", `\n`)
	if utf8.RuneCountInString(v) > maxDumpWidth {
		return string([]rune(v)[:maxDumpWidth-1]) + "…"
	}
	return v
}
