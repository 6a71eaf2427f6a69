package gridb

import (
	"log/slog"
)

type rowRecord struct {
	Table TableID `msgpack:"t"`
	Index int     `msgpack:"i"`
}

func (r *rowRecord) owner() TableID        { return r.Table }
func (r *rowRecord) position() int         { return r.Index }
func (r *rowRecord) setPosition(index int) { r.Index = index }

var rowAxis = axisOf[rowRecord, *rowRecord]{AxisRows}

// RowRef identifies a row together with its current index.
type RowRef struct {
	ID    RowID
	Index int
}

func rowRefs(entries []axisEntry[rowRecord]) []RowRef {
	result := make([]RowRef, len(entries))
	for i, e := range entries {
		result[i] = RowRef{RowID(e.ID), e.Rec.Index}
	}
	return result
}

func rowIDs(ids []RowID) [][idLen]byte {
	result := make([][idLen]byte, len(ids))
	for i, id := range ids {
		result[i] = id
	}
	return result
}

// AppendRow adds a row after the last one.
func (tx *Tx) AppendRow(tbl TableID) (RowRef, error) {
	if err := tx.checkTable(tbl); err != nil {
		return RowRef{}, err
	}
	id, index, err := rowAxis.appendAtEnd(tx, tbl, &rowRecord{Table: tbl})
	if err != nil {
		return RowRef{}, err
	}
	return tx.rowInserted(tbl, RowID(id), index), nil
}

// InsertRow adds a row at index, shifting the rows at and after it down.
// An index equal to the row count appends.
func (tx *Tx) InsertRow(tbl TableID, index int) (RowRef, error) {
	if err := tx.checkTable(tbl); err != nil {
		return RowRef{}, err
	}
	id, err := rowAxis.insertAt(tx, tbl, index, &rowRecord{Table: tbl})
	if err != nil {
		return RowRef{}, err
	}
	return tx.rowInserted(tbl, RowID(id), index), nil
}

func (tx *Tx) rowInserted(tbl TableID, id RowID, index int) RowRef {
	tx.trace("INSERT_ROW", slog.String("table", tbl.String()), slog.String("row", id.String()), slog.Int("index", index))
	tx.recordChange(&Change{Op: OpInsertRow, Table: tbl, Row: id, Index: index})
	tx.touchTable(tbl)
	return RowRef{id, index}
}

// DeleteRow deletes a row and its cells and returns the index it occupied.
func (tx *Tx) DeleteRow(tbl TableID, id RowID) (int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return 0, err
	}
	index, err := rowAxis.deleteByID(tx, tbl, id)
	if err != nil {
		return 0, err
	}
	tx.trace("DELETE_ROWS", slog.String("table", tbl.String()), slog.Any("freed", []int{index}))
	tx.recordChange(&Change{Op: OpDeleteRows, Table: tbl, Freed: []int{index}})
	tx.touchTable(tbl)
	return index, nil
}

// DeleteRows deletes several rows at once. The returned indexes are the
// positions the rows had before the call, in the order of ids.
func (tx *Tx) DeleteRows(tbl TableID, ids []RowID) ([]int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return nil, err
	}
	freed, err := rowAxis.deleteBatch(tx, tbl, rowIDs(ids))
	if err != nil || len(freed) == 0 {
		return freed, err
	}
	tx.trace("DELETE_ROWS", slog.String("table", tbl.String()), slog.Any("freed", freed))
	tx.recordChange(&Change{Op: OpDeleteRows, Table: tbl, Freed: freed})
	tx.touchTable(tbl)
	return freed, nil
}

// MoveRow moves a row to index; the rows in between shift by one.
func (tx *Tx) MoveRow(tbl TableID, id RowID, index int) error {
	if err := tx.checkTable(tbl); err != nil {
		return err
	}
	old, err := rowAxis.reposition(tx, tbl, id, index)
	if err != nil || old == index {
		return err
	}
	tx.trace("MOVE_ROW", slog.String("row", id.String()), slog.Int("from", old), slog.Int("to", index))
	tx.recordChange(&Change{Op: OpMoveRow, Table: tbl, Row: id, From: old, Index: index})
	tx.touchTable(tbl)
	return nil
}

func (tx *Tx) RowCount(tbl TableID) (int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return 0, err
	}
	return rowAxis.count(tx, tbl), nil
}

func (tx *Tx) RowIDAt(tbl TableID, index int) (RowID, error) {
	if err := tx.checkTable(tbl); err != nil {
		return RowID{}, err
	}
	id, err := rowAxis.findIDByIndex(tx, tbl, index)
	return RowID(id), err
}

func (tx *Tx) RowIndex(tbl TableID, id RowID) (int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return 0, err
	}
	return rowAxis.findIndexByID(tx, tbl, id)
}

// SortedRows resolves ids to their current indexes, ordered by index.
func (tx *Tx) SortedRows(tbl TableID, ids []RowID, descending bool) ([]RowRef, error) {
	if err := tx.checkTable(tbl); err != nil {
		return nil, err
	}
	entries, err := rowAxis.sortedIndexes(tx, tbl, rowIDs(ids), descending)
	if err != nil {
		return nil, err
	}
	return rowRefs(entries), nil
}

// Rows lists every row of a table in order.
func (tx *Tx) Rows(tbl TableID) ([]RowRef, error) {
	if err := tx.checkTable(tbl); err != nil {
		return nil, err
	}
	return rowRefs(rowAxis.list(tx, tbl)), nil
}
