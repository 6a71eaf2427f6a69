package gridb

import (
	"log/slog"
	"maps"
	"slices"
)

type cellRecord struct {
	Value string `msgpack:"v,omitempty"`
}

// Cell is the value at the intersection of a row and a column.
type Cell struct {
	Row    RowID
	Column ColumnID
	Value  string
}

func cellNotFound(row RowID, col ColumnID) error {
	return &NotFoundError{Kind: KindCell, ID: row.String() + "/" + col.String()}
}

// cellValues reads the cells of one row, one value per column id, in the
// order of cols.
func (tx *Tx) cellValues(row RowID, cols [][idLen]byte) []string {
	tx.db.cellFetches.Add(1)
	cells := tx.bucket(cellsBucket)
	result := make([]string, len(cols))
	for i, col := range cols {
		result[i] = mustGetRecord[cellRecord](cells, cellKey(nil, row, col)).Value
	}
	return result
}

// CellsForRow returns the cells of a row ordered by column index.
func (tx *Tx) CellsForRow(id RowID) ([]Cell, error) {
	rec, err := getRecord[rowRecord](tx.bucket(rowsBucket), id[:])
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound(KindRow, id)
	}
	cols := columnAxis.ids(tx, rec.Table)
	values := tx.cellValues(id, cols)
	result := make([]Cell, len(cols))
	for i, col := range cols {
		result[i] = Cell{id, col, values[i]}
	}
	return result, nil
}

// CellsForColumn returns the cells of a column ordered by row index.
func (tx *Tx) CellsForColumn(id ColumnID) ([]Cell, error) {
	rec, err := getRecord[columnRecord](tx.bucket(columnsBucket), id[:])
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound(KindColumn, id)
	}
	tx.db.cellFetches.Add(1)
	cells := tx.bucket(cellsBucket)
	rows := rowAxis.ids(tx, rec.Table)
	result := make([]Cell, len(rows))
	for i, row := range rows {
		c := mustGetRecord[cellRecord](cells, cellKey(nil, row, id))
		result[i] = Cell{row, id, c.Value}
	}
	return result, nil
}

// Cell returns a single cell.
func (tx *Tx) Cell(row RowID, col ColumnID) (Cell, error) {
	c, err := getRecord[cellRecord](tx.bucket(cellsBucket), cellKey(nil, row, col))
	if err != nil {
		return Cell{}, err
	}
	if c == nil {
		return Cell{}, cellNotFound(row, col)
	}
	return Cell{row, col, c.Value}, nil
}

// setValue overwrites an existing cell; cells are never created here.
func (tx *Tx) setValue(tbl TableID, row RowID, col ColumnID, value string) error {
	key := cellKey(nil, row, col)
	cells := tx.bucket(cellsBucket)
	if cells.Get(key) == nil {
		return cellNotFound(row, col)
	}
	putRecord(cells, key, &cellRecord{Value: value})
	tx.trace("SET_CELL", slog.String("row", row.String()), slog.String("column", col.String()), slog.Int("len", len(value)))
	tx.recordChange(&Change{Op: OpSetCell, Table: tbl, Row: row, Column: col, Value: value})
	return nil
}

// UpdateCell sets the value of the cell at the given row and column.
func (tx *Tx) UpdateCell(tbl TableID, row RowID, col ColumnID, value string) error {
	if err := tx.checkTable(tbl); err != nil {
		return err
	}
	if _, err := rowAxis.lookup(tx, tbl, row); err != nil {
		return err
	}
	if _, err := columnAxis.lookup(tx, tbl, col); err != nil {
		return err
	}
	if err := tx.setValue(tbl, row, col, value); err != nil {
		return err
	}
	tx.touchTable(tbl)
	return nil
}

// UpdateCellAt sets a cell addressed by position. Positions are resolved in
// the same transaction as the write, so a concurrent shift can never
// redirect it to a different cell.
func (tx *Tx) UpdateCellAt(tbl TableID, rowIndex, colIndex int, value string) (Cell, error) {
	if err := tx.checkTable(tbl); err != nil {
		return Cell{}, err
	}
	row, err := rowAxis.findIDByIndex(tx, tbl, rowIndex)
	if err != nil {
		return Cell{}, err
	}
	col, err := columnAxis.findIDByIndex(tx, tbl, colIndex)
	if err != nil {
		return Cell{}, err
	}
	if err := tx.setValue(tbl, row, col, value); err != nil {
		return Cell{}, err
	}
	tx.touchTable(tbl)
	return Cell{row, col, value}, nil
}

// UpdateRow sets several cells of the row at rowIndex, keyed by column
// index.
func (tx *Tx) UpdateRow(tbl TableID, rowIndex int, values map[int]string) error {
	if err := tx.checkTable(tbl); err != nil {
		return err
	}
	row, err := rowAxis.findIDByIndex(tx, tbl, rowIndex)
	if err != nil {
		return err
	}
	for _, colIndex := range slices.Sorted(maps.Keys(values)) {
		value := values[colIndex]
		col, err := columnAxis.findIDByIndex(tx, tbl, colIndex)
		if err != nil {
			return err
		}
		if err := tx.setValue(tbl, row, col, value); err != nil {
			return err
		}
	}
	tx.touchTable(tbl)
	return nil
}

// ResetColumn blanks every cell of a column.
func (tx *Tx) ResetColumn(tbl TableID, col ColumnID) error {
	if err := tx.checkTable(tbl); err != nil {
		return err
	}
	if _, err := columnAxis.lookup(tx, tbl, col); err != nil {
		return err
	}
	tx.resetColumnValues(tbl, col)
	tx.touchTable(tbl)
	return nil
}

func (tx *Tx) resetColumnValues(tbl TableID, col ColumnID) {
	cells := tx.bucket(cellsBucket)
	empty := encodeRecord(nil, &cellRecord{})
	rows := rowAxis.ids(tx, tbl)
	for _, row := range rows {
		ensure(cells.Put(cellKey(nil, row, col), empty))
	}
	tx.trace("RESET_COLUMN", slog.String("column", col.String()), slog.Int("cells", len(rows)))
	tx.recordChange(&Change{Op: OpResetColumn, Table: tbl, Column: col})
}
