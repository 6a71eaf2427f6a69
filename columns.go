package gridb

import (
	"log/slog"
)

type columnRecord struct {
	Table    TableID  `msgpack:"t"`
	Index    int      `msgpack:"i"`
	DataType DataType `msgpack:"dt"`
	Name     string   `msgpack:"n"`
}

func (r *columnRecord) owner() TableID        { return r.Table }
func (r *columnRecord) position() int         { return r.Index }
func (r *columnRecord) setPosition(index int) { r.Index = index }

var columnAxis = axisOf[columnRecord, *columnRecord]{AxisColumns}

// ColumnRef identifies a column together with its current index.
type ColumnRef struct {
	ID    ColumnID
	Index int
}

// Column describes a column as of the transaction that read it.
type Column struct {
	ID       ColumnID
	Index    int
	DataType DataType
	Name     string
}

// ColumnSpec holds the attributes of a new column.
type ColumnSpec struct {
	Name     string
	DataType DataType
}

// ColumnPatch lists the column attributes to change; nil fields stay as is.
type ColumnPatch struct {
	Name     *string
	DataType *DataType
	Index    *int
}

func columnsOf(entries []axisEntry[columnRecord]) []Column {
	result := make([]Column, len(entries))
	for i, e := range entries {
		result[i] = Column{
			ID:       ColumnID(e.ID),
			Index:    e.Rec.Index,
			DataType: e.Rec.DataType,
			Name:     e.Rec.Name,
		}
	}
	return result
}

func columnIDs(ids []ColumnID) [][idLen]byte {
	result := make([][idLen]byte, len(ids))
	for i, id := range ids {
		result[i] = id
	}
	return result
}

// AppendColumn adds a column after the last one.
func (tx *Tx) AppendColumn(tbl TableID, spec ColumnSpec) (ColumnRef, error) {
	return tx.addColumn(tbl, 0, true, spec)
}

// InsertColumn adds a column at index, shifting the columns at and after it
// right. An index equal to the column count appends.
func (tx *Tx) InsertColumn(tbl TableID, index int, spec ColumnSpec) (ColumnRef, error) {
	return tx.addColumn(tbl, index, false, spec)
}

func (tx *Tx) addColumn(tbl TableID, index int, atEnd bool, spec ColumnSpec) (ColumnRef, error) {
	if err := tx.checkTable(tbl); err != nil {
		return ColumnRef{}, err
	}
	if _, err := LookupDataType(int(spec.DataType)); err != nil {
		return ColumnRef{}, err
	}
	rec := &columnRecord{Table: tbl, DataType: spec.DataType, Name: spec.Name}

	var id [idLen]byte
	var err error
	if atEnd {
		id, index, err = columnAxis.appendAtEnd(tx, tbl, rec)
	} else {
		id, err = columnAxis.insertAt(tx, tbl, index, rec)
	}
	if err != nil {
		return ColumnRef{}, err
	}

	tx.trace("INSERT_COLUMN", slog.String("table", tbl.String()), slog.String("column", ColumnID(id).String()), slog.Int("index", index), slog.String("type", spec.DataType.String()))
	tx.recordChange(&Change{Op: OpInsertColumn, Table: tbl, Column: id, Index: index, Value: spec.Name})
	tx.touchTable(tbl)
	return ColumnRef{id, index}, nil
}

// DeleteColumn deletes a column and its cells and returns the index it
// occupied.
func (tx *Tx) DeleteColumn(tbl TableID, id ColumnID) (int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return 0, err
	}
	index, err := columnAxis.deleteByID(tx, tbl, id)
	if err != nil {
		return 0, err
	}
	tx.trace("DELETE_COLUMNS", slog.String("table", tbl.String()), slog.Any("freed", []int{index}))
	tx.recordChange(&Change{Op: OpDeleteColumns, Table: tbl, Freed: []int{index}})
	tx.touchTable(tbl)
	return index, nil
}

// DeleteColumns deletes several columns at once. The returned indexes are
// the positions the columns had before the call, in the order of ids.
func (tx *Tx) DeleteColumns(tbl TableID, ids []ColumnID) ([]int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return nil, err
	}
	freed, err := columnAxis.deleteBatch(tx, tbl, columnIDs(ids))
	if err != nil || len(freed) == 0 {
		return freed, err
	}
	tx.trace("DELETE_COLUMNS", slog.String("table", tbl.String()), slog.Any("freed", freed))
	tx.recordChange(&Change{Op: OpDeleteColumns, Table: tbl, Freed: freed})
	tx.touchTable(tbl)
	return freed, nil
}

// MoveColumn moves a column to index; the columns in between shift by one.
func (tx *Tx) MoveColumn(tbl TableID, id ColumnID, index int) error {
	if err := tx.checkTable(tbl); err != nil {
		return err
	}
	return tx.moveColumn(tbl, id, index)
}

func (tx *Tx) moveColumn(tbl TableID, id ColumnID, index int) error {
	old, err := columnAxis.reposition(tx, tbl, id, index)
	if err != nil || old == index {
		return err
	}
	tx.trace("MOVE_COLUMN", slog.String("column", id.String()), slog.Int("from", old), slog.Int("to", index))
	tx.recordChange(&Change{Op: OpMoveColumn, Table: tbl, Column: id, From: old, Index: index})
	tx.touchTable(tbl)
	return nil
}

// PatchColumn renames, retypes and/or repositions a column. Changing the
// data type blanks every cell of the column.
func (tx *Tx) PatchColumn(tbl TableID, id ColumnID, patch ColumnPatch) (Column, error) {
	if err := tx.checkTable(tbl); err != nil {
		return Column{}, err
	}
	rec, err := columnAxis.lookup(tx, tbl, id)
	if err != nil {
		return Column{}, err
	}
	if patch.DataType != nil {
		if _, err := LookupDataType(int(*patch.DataType)); err != nil {
			return Column{}, err
		}
	}

	changed := false
	if patch.Name != nil && *patch.Name != rec.Name {
		rec.Name = *patch.Name
		changed = true
	}
	retyped := patch.DataType != nil && *patch.DataType != rec.DataType
	if retyped {
		rec.DataType = *patch.DataType
		changed = true
	}
	if changed {
		putRecord(columnAxis.entities(tx), id[:], rec)
		tx.trace("PATCH_COLUMN", slog.String("column", id.String()), slog.String("name", rec.Name), slog.String("type", rec.DataType.String()))
		tx.recordChange(&Change{Op: OpPatchColumn, Table: tbl, Column: id, Index: rec.Index, Value: rec.Name})
		tx.touchTable(tbl)
	}
	if retyped {
		tx.resetColumnValues(tbl, id)
	}

	if patch.Index != nil {
		if err := tx.moveColumn(tbl, id, *patch.Index); err != nil {
			return Column{}, err
		}
		rec.Index = *patch.Index
	}
	return Column{ID: id, Index: rec.Index, DataType: rec.DataType, Name: rec.Name}, nil
}

func (tx *Tx) ColumnCount(tbl TableID) (int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return 0, err
	}
	return columnAxis.count(tx, tbl), nil
}

func (tx *Tx) ColumnIDAt(tbl TableID, index int) (ColumnID, error) {
	if err := tx.checkTable(tbl); err != nil {
		return ColumnID{}, err
	}
	id, err := columnAxis.findIDByIndex(tx, tbl, index)
	return ColumnID(id), err
}

func (tx *Tx) ColumnIndex(tbl TableID, id ColumnID) (int, error) {
	if err := tx.checkTable(tbl); err != nil {
		return 0, err
	}
	return columnAxis.findIndexByID(tx, tbl, id)
}

// SortedColumns resolves ids to their current indexes, ordered by index.
func (tx *Tx) SortedColumns(tbl TableID, ids []ColumnID, descending bool) ([]ColumnRef, error) {
	if err := tx.checkTable(tbl); err != nil {
		return nil, err
	}
	entries, err := columnAxis.sortedIndexes(tx, tbl, columnIDs(ids), descending)
	if err != nil {
		return nil, err
	}
	result := make([]ColumnRef, len(entries))
	for i, e := range entries {
		result[i] = ColumnRef{ColumnID(e.ID), e.Rec.Index}
	}
	return result, nil
}

// Columns lists every column of a table in order.
func (tx *Tx) Columns(tbl TableID) ([]Column, error) {
	if err := tx.checkTable(tbl); err != nil {
		return nil, err
	}
	return columnsOf(columnAxis.list(tx, tbl)), nil
}
