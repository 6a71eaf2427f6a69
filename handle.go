package gridb

// TableHandle is a lazily materialized view of a table bound to the
// transaction that loaded it. Rows and columns are each fetched with one
// range scan on first access and cached for the handle's lifetime; a nil
// slice means not fetched yet. A handle must not outlive its transaction or
// be shared between goroutines.
type TableHandle struct {
	tx      *Tx
	info    TableInfo
	rows    []RowRef
	columns []Column
}

// RowValues is a row with its cell values ordered by column index.
type RowValues struct {
	ID     RowID
	Index  int
	Values []string
}

// TableContent is a fully materialized table.
type TableContent struct {
	Table   TableInfo
	Columns []Column
	Rows    []RowValues
}

// LoadTable returns a handle for the table. Only the table record is read
// here.
func (tx *Tx) LoadTable(tbl TableID) (*TableHandle, error) {
	rec, err := tx.tableRecord(tbl)
	if err != nil {
		return nil, err
	}
	return &TableHandle{
		tx:   tx,
		info: TableInfo{ID: tbl, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt},
	}, nil
}

func (h *TableHandle) ID() TableID     { return h.info.ID }
func (h *TableHandle) Info() TableInfo { return h.info }

func (h *TableHandle) ensureLoaded(axis Axis) {
	switch axis {
	case AxisRows:
		if h.rows == nil {
			h.rows = rowRefs(rowAxis.list(h.tx, h.info.ID))
		}
	case AxisColumns:
		if h.columns == nil {
			h.columns = columnsOf(columnAxis.list(h.tx, h.info.ID))
		}
	}
}

// Rows returns the rows in index order. The slice is shared with the handle.
func (h *TableHandle) Rows() []RowRef {
	h.ensureLoaded(AxisRows)
	return h.rows
}

// Columns returns the columns in index order. The slice is shared with the
// handle.
func (h *TableHandle) Columns() []Column {
	h.ensureLoaded(AxisColumns)
	return h.columns
}

func (h *TableHandle) RowCount() int {
	if h.rows != nil {
		return len(h.rows)
	}
	return rowAxis.count(h.tx, h.info.ID)
}

func (h *TableHandle) ColumnCount() int {
	if h.columns != nil {
		return len(h.columns)
	}
	return columnAxis.count(h.tx, h.info.ID)
}

func (h *TableHandle) columnIDs() [][idLen]byte {
	cols := h.Columns()
	result := make([][idLen]byte, len(cols))
	for i, c := range cols {
		result[i] = c.ID
	}
	return result
}

// Row reads the cells of the row at index. Other rows are not loaded unless
// Rows was called before.
func (h *TableHandle) Row(index int) (RowValues, error) {
	var id RowID
	if h.rows != nil {
		if index < 0 || index >= len(h.rows) {
			return RowValues{}, &PositionError{Axis: AxisRows, Index: index, Count: len(h.rows)}
		}
		id = h.rows[index].ID
	} else {
		raw, err := rowAxis.findIDByIndex(h.tx, h.info.ID, index)
		if err != nil {
			return RowValues{}, err
		}
		id = raw
	}
	return RowValues{
		ID:     id,
		Index:  index,
		Values: h.tx.cellValues(id, h.columnIDs()),
	}, nil
}

// Content materializes the whole table.
func (h *TableHandle) Content() *TableContent {
	cols := h.columnIDs()
	rows := h.Rows()
	content := &TableContent{
		Table:   h.info,
		Columns: h.columns,
		Rows:    make([]RowValues, len(rows)),
	}
	for i, r := range rows {
		content.Rows[i] = RowValues{
			ID:     r.ID,
			Index:  r.Index,
			Values: h.tx.cellValues(r.ID, cols),
		}
	}
	return content
}

// Values returns the cell values as a grid, rows first.
func (c *TableContent) Values() [][]string {
	result := make([][]string, len(c.Rows))
	for i, r := range c.Rows {
		result[i] = r.Values
	}
	return result
}
