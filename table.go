package gridb

import (
	"fmt"
	"log/slog"
	"time"
)

type tableRecord struct {
	CreatedAt time.Time `msgpack:"ca"`
	UpdatedAt time.Time `msgpack:"ua"`
}

// TableInfo describes a table without loading any of its contents.
type TableInfo struct {
	ID        TableID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tx *Tx) tableRecord(tbl TableID) (*tableRecord, error) {
	rec, err := getRecord[tableRecord](tx.bucket(tablesBucket), tbl[:])
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound(KindTable, tbl)
	}
	return rec, nil
}

func (tx *Tx) checkTable(tbl TableID) error {
	if tx.bucket(tablesBucket).Get(tbl[:]) == nil {
		return notFound(KindTable, tbl)
	}
	return nil
}

// touchTable bumps the modification time of a table and of its card, once
// per transaction.
func (tx *Tx) touchTable(tbl TableID) {
	if tx.touched[tbl] {
		return
	}
	if tx.touched == nil {
		tx.touched = make(map[TableID]bool)
	}
	tx.touched[tbl] = true

	now := tx.db.now()
	buck := tx.bucket(tablesBucket)
	rec := mustGetRecord[tableRecord](buck, tbl[:])
	rec.UpdatedAt = now
	putRecord(buck, tbl[:], rec)
	tx.touchCard(tbl, now)
}

// CreateTable makes a table with one empty Textual column and one row.
func (tx *Tx) CreateTable() (TableID, error) {
	tbl := newTableID()
	now := tx.db.now()
	putRecord(tx.bucket(tablesBucket), tbl[:], &tableRecord{CreatedAt: now, UpdatedAt: now})

	col, _, err := columnAxis.appendAtEnd(tx, tbl, &columnRecord{Table: tbl, DataType: Textual})
	if err != nil {
		return TableID{}, err
	}
	row, _, err := rowAxis.appendAtEnd(tx, tbl, &rowRecord{Table: tbl})
	if err != nil {
		return TableID{}, err
	}

	tx.trace("CREATE_TABLE", slog.String("table", tbl.String()))
	tx.recordChange(&Change{Op: OpCreateTable, Table: tbl, Row: row, Column: col})
	return tbl, nil
}

// DeleteTable removes a table with all of its rows, columns, cells and its
// card.
func (tx *Tx) DeleteTable(tbl TableID) error {
	if err := tx.checkTable(tbl); err != nil {
		return err
	}
	rows := rowAxis.deleteAll(tx, tbl)
	cols := columnAxis.deleteAll(tx, tbl)
	ensure(tx.bucket(tablesBucket).Delete(tbl[:]))
	tx.deleteCardOf(tbl)

	tx.trace("DELETE_TABLE", slog.String("table", tbl.String()), slog.Int("rows", rows), slog.Int("columns", cols))
	tx.recordChange(&Change{Op: OpDeleteTable, Table: tbl})
	return nil
}

// verifyChangedTables checks every table the transaction changed: dense
// positions agreeing with the records, at least one row and one column, and
// a cell for every row and column pair. A deleted table must leave nothing
// behind. Databases opened with IsTesting run it before each commit.
func (tx *Tx) verifyChangedTables() error {
	seen := make(map[TableID]bool)
	for _, chg := range tx.changes {
		tbl := chg.Table
		if seen[tbl] {
			continue
		}
		seen[tbl] = true

		rows, err := rowAxis.checkDensity(tx, tbl)
		if err != nil {
			return err
		}
		cols, err := columnAxis.checkDensity(tx, tbl)
		if err != nil {
			return err
		}
		if tx.checkTable(tbl) != nil {
			if rows > 0 || cols > 0 {
				return fmt.Errorf("deleted table %v still has %d rows and %d columns", tbl, rows, cols)
			}
			continue
		}
		if rows == 0 || cols == 0 {
			return fmt.Errorf("table %v has %d rows and %d columns", tbl, rows, cols)
		}
		cells := tx.bucket(cellsBucket)
		colIDs := columnAxis.ids(tx, tbl)
		for _, row := range rowAxis.ids(tx, tbl) {
			for _, col := range colIDs {
				if cells.Get(cellKey(nil, RowID(row), ColumnID(col))) == nil {
					return fmt.Errorf("table %v: %w", tbl, cellNotFound(RowID(row), ColumnID(col)))
				}
			}
		}
	}
	return nil
}

func (tx *Tx) Table(tbl TableID) (TableInfo, error) {
	rec, err := tx.tableRecord(tbl)
	if err != nil {
		return TableInfo{}, err
	}
	return TableInfo{ID: tbl, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}, nil
}

// Tables lists every table in the database in ID order.
func (tx *Tx) Tables() []TableInfo {
	var result []TableInfo
	c := tx.scan(tablesBucket, rawRange{})
	for c.Next() {
		var rec tableRecord
		ensure(decodeRecord(c.Value(), &rec))
		result = append(result, TableInfo{
			ID:        TableID(decodeID(c.Key())),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return result
}

func update[T any](db *DB, f func(tx *Tx) (T, error)) (result T, err error) {
	err = db.Tx(true, func(tx *Tx) error {
		var err error
		result, err = f(tx)
		return err
	})
	return
}

func view[T any](db *DB, f func(tx *Tx) (T, error)) (result T, err error) {
	err = db.Tx(false, func(tx *Tx) error {
		var err error
		result, err = f(tx)
		return err
	})
	return
}

func (db *DB) CreateTable() (TableID, error) {
	return update(db, (*Tx).CreateTable)
}

func (db *DB) DeleteTable(tbl TableID) error {
	return db.Tx(true, func(tx *Tx) error { return tx.DeleteTable(tbl) })
}

func (db *DB) Table(tbl TableID) (TableInfo, error) {
	return view(db, func(tx *Tx) (TableInfo, error) { return tx.Table(tbl) })
}

func (db *DB) Tables() ([]TableInfo, error) {
	return view(db, func(tx *Tx) ([]TableInfo, error) { return tx.Tables(), nil })
}

func (db *DB) AppendRow(tbl TableID) (RowRef, error) {
	return update(db, func(tx *Tx) (RowRef, error) { return tx.AppendRow(tbl) })
}

func (db *DB) InsertRow(tbl TableID, index int) (RowRef, error) {
	return update(db, func(tx *Tx) (RowRef, error) { return tx.InsertRow(tbl, index) })
}

func (db *DB) DeleteRow(tbl TableID, id RowID) (int, error) {
	return update(db, func(tx *Tx) (int, error) { return tx.DeleteRow(tbl, id) })
}

func (db *DB) DeleteRows(tbl TableID, ids []RowID) ([]int, error) {
	return update(db, func(tx *Tx) ([]int, error) { return tx.DeleteRows(tbl, ids) })
}

func (db *DB) MoveRow(tbl TableID, id RowID, index int) error {
	return db.Tx(true, func(tx *Tx) error { return tx.MoveRow(tbl, id, index) })
}

func (db *DB) AppendColumn(tbl TableID, spec ColumnSpec) (ColumnRef, error) {
	return update(db, func(tx *Tx) (ColumnRef, error) { return tx.AppendColumn(tbl, spec) })
}

func (db *DB) InsertColumn(tbl TableID, index int, spec ColumnSpec) (ColumnRef, error) {
	return update(db, func(tx *Tx) (ColumnRef, error) { return tx.InsertColumn(tbl, index, spec) })
}

func (db *DB) DeleteColumn(tbl TableID, id ColumnID) (int, error) {
	return update(db, func(tx *Tx) (int, error) { return tx.DeleteColumn(tbl, id) })
}

func (db *DB) DeleteColumns(tbl TableID, ids []ColumnID) ([]int, error) {
	return update(db, func(tx *Tx) ([]int, error) { return tx.DeleteColumns(tbl, ids) })
}

func (db *DB) MoveColumn(tbl TableID, id ColumnID, index int) error {
	return db.Tx(true, func(tx *Tx) error { return tx.MoveColumn(tbl, id, index) })
}

func (db *DB) PatchColumn(tbl TableID, id ColumnID, patch ColumnPatch) (Column, error) {
	return update(db, func(tx *Tx) (Column, error) { return tx.PatchColumn(tbl, id, patch) })
}

func (db *DB) UpdateCell(tbl TableID, row RowID, col ColumnID, value string) error {
	return db.Tx(true, func(tx *Tx) error { return tx.UpdateCell(tbl, row, col, value) })
}

func (db *DB) UpdateCellAt(tbl TableID, rowIndex, colIndex int, value string) (Cell, error) {
	return update(db, func(tx *Tx) (Cell, error) { return tx.UpdateCellAt(tbl, rowIndex, colIndex, value) })
}

func (db *DB) UpdateRow(tbl TableID, rowIndex int, values map[int]string) error {
	return db.Tx(true, func(tx *Tx) error { return tx.UpdateRow(tbl, rowIndex, values) })
}

func (db *DB) ResetColumn(tbl TableID, col ColumnID) error {
	return db.Tx(true, func(tx *Tx) error { return tx.ResetColumn(tbl, col) })
}

// TableContent reads a whole table in one read transaction.
func (db *DB) TableContent(tbl TableID) (*TableContent, error) {
	return view(db, func(tx *Tx) (*TableContent, error) {
		h, err := tx.LoadTable(tbl)
		if err != nil {
			return nil, err
		}
		return h.Content(), nil
	})
}

// Row reads the row at index, without loading the other rows.
func (db *DB) Row(tbl TableID, index int) (RowValues, error) {
	return view(db, func(tx *Tx) (RowValues, error) {
		h, err := tx.LoadTable(tbl)
		if err != nil {
			return RowValues{}, err
		}
		return h.Row(index)
	})
}
