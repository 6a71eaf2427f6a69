package gridb

import (
	"errors"
	"testing"
)

func TestAxis_insertShiftsFollowingRows(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 3, 2)
		ref := must(db.InsertRow(tbl, 1))
		deepEqual(t, ref.Index, 1)
		checkTable(t, db, tbl)
		deepEqual(t, grid(t, db, tbl), [][]string{
			{"a0", "a1"},
			{"", ""},
			{"b0", "b1"},
			{"c0", "c1"},
		})
		deepEqual(t, rowIDsOf(t, db, tbl)[1], ref.ID)
	})
}

func TestAxis_insertAtCountAppends(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 2, 1)
		ref := must(db.InsertRow(tbl, 2))
		deepEqual(t, ref.Index, 2)
		col := must(db.InsertColumn(tbl, 1, ColumnSpec{Name: "last"}))
		deepEqual(t, col.Index, 1)
		checkTable(t, db, tbl)
		deepEqual(t, grid(t, db, tbl), [][]string{
			{"a0", ""},
			{"b0", ""},
			{"", ""},
		})
	})
}

func TestAxis_insertOutOfRange(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 2, 2)
		for _, index := range []int{-1, 3, 100} {
			_, err := db.InsertRow(tbl, index)
			isErr(t, err, ErrInvalidPosition)
			var pe *PositionError
			if errors.As(err, &pe) {
				deepEqual(t, *pe, PositionError{Axis: AxisRows, Index: index, Count: 2, Insert: true})
			}
		}
		_, err := db.InsertColumn(tbl, 5, ColumnSpec{})
		isErr(t, err, ErrInvalidPosition)
		checkTable(t, db, tbl)
		deepEqual(t, must(db.TableStats(tbl)), TableStats{Rows: 2, Columns: 2, Cells: 4})
	})
}

func TestAxis_density(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := must(db.CreateTable())
		steps := []func() error{
			func() error { _, err := db.AppendRow(tbl); return err },
			func() error { _, err := db.InsertRow(tbl, 0); return err },
			func() error { _, err := db.InsertRow(tbl, 2); return err },
			func() error { _, err := db.AppendColumn(tbl, ColumnSpec{}); return err },
			func() error { _, err := db.InsertColumn(tbl, 0, ColumnSpec{}); return err },
			func() error { return db.MoveRow(tbl, rowIDsOf(t, db, tbl)[0], 3) },
			func() error { return db.MoveRow(tbl, rowIDsOf(t, db, tbl)[3], 1) },
			func() error { _, err := db.DeleteRow(tbl, rowIDsOf(t, db, tbl)[2]); return err },
			func() error { return db.MoveColumn(tbl, columnIDsOf(t, db, tbl)[2], 0) },
			func() error { _, err := db.DeleteColumn(tbl, columnIDsOf(t, db, tbl)[1]); return err },
			func() error {
				ids := rowIDsOf(t, db, tbl)
				_, err := db.DeleteRows(tbl, []RowID{ids[0], ids[2]})
				return err
			},
		}
		for i, step := range steps {
			if err := step(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			checkTable(t, db, tbl)
		}
		deepEqual(t, must(db.TableStats(tbl)), TableStats{Rows: 1, Columns: 2, Cells: 2})
	})
}

func TestAxis_deleteShiftsOnlyFollowing(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 2, 4)
		before := columnIDsOf(t, db, tbl)

		freed := must(db.DeleteColumn(tbl, before[1]))
		deepEqual(t, freed, 1)

		deepEqual(t, columnIDsOf(t, db, tbl), []ColumnID{before[0], before[2], before[3]})
		deepEqual(t, grid(t, db, tbl), [][]string{
			{"a0", "a2", "a3"},
			{"b0", "b2", "b3"},
		})
		checkTable(t, db, tbl)

		row := rowIDsOf(t, db, tbl)[0]
		db.Read(func(tx *Tx) {
			if _, err := tx.Cell(row, before[1]); !IsNotFound(err, KindCell) {
				t.Errorf("cell of deleted column still readable: %v", err)
			}
		})
	})
}

func TestAxis_batchDeleteReportsOriginalIndexes(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 5, 1)
		ids := rowIDsOf(t, db, tbl)

		freed := must(db.DeleteRows(tbl, []RowID{ids[1], ids[3], ids[4]}))
		deepEqual(t, freed, []int{1, 3, 4})

		deepEqual(t, rowIDsOf(t, db, tbl), []RowID{ids[0], ids[2]})
		deepEqual(t, grid(t, db, tbl), [][]string{{"a0"}, {"c0"}})
		checkTable(t, db, tbl)
	})
}

func TestAxis_batchDeleteInputOrderAndDuplicates(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 1, 5)
		ids := columnIDsOf(t, db, tbl)

		freed := must(db.DeleteColumns(tbl, []ColumnID{ids[4], ids[0], ids[4], ids[2]}))
		deepEqual(t, freed, []int{4, 0, 2})
		deepEqual(t, columnIDsOf(t, db, tbl), []ColumnID{ids[1], ids[3]})
		deepEqual(t, grid(t, db, tbl), [][]string{{"a1", "a3"}})
		checkTable(t, db, tbl)
	})
}

func TestAxis_batchDeleteIsAllOrNothing(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 3, 1)
		other := newTableWith(t, db, 2, 1)
		ids := rowIDsOf(t, db, tbl)
		foreign := rowIDsOf(t, db, other)[0]

		_, err := db.DeleteRows(tbl, []RowID{ids[0], foreign})
		if !IsNotFound(err, KindRow) {
			t.Errorf("foreign row: err = %v, wanted row not found", err)
		}
		_, err = db.DeleteRows(tbl, []RowID{ids[1], newRowID()})
		if !IsNotFound(err, KindRow) {
			t.Errorf("unknown row: err = %v, wanted row not found", err)
		}
		_, err = db.DeleteRows(tbl, []RowID{ids[0], ids[1], ids[2]})
		isErr(t, err, ErrAtLeastOneRowAndOneColumn)

		deepEqual(t, rowIDsOf(t, db, tbl), ids)
		deepEqual(t, grid(t, db, tbl), [][]string{{"a0"}, {"b0"}, {"c0"}})
		deepEqual(t, grid(t, db, other), [][]string{{"a0"}, {"b0"}})
		checkTable(t, db, tbl)
		checkTable(t, db, other)
	})
}

func TestAxis_batchDeleteEmpty(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 2, 1)
		freed := must(db.DeleteRows(tbl, nil))
		deepEqual(t, len(freed), 0)
		deepEqual(t, must(db.TableStats(tbl)).Rows, 2)
	})
}

func TestAxis_lastColumnCannotBeDeleted(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 2, 1)
		col := columnIDsOf(t, db, tbl)[0]

		_, err := db.DeleteColumn(tbl, col)
		isErr(t, err, ErrAtLeastOneRowAndOneColumn)
		var ie *InvariantError
		if !errors.As(err, &ie) || ie.Axis != AxisColumns || ie.Table != tbl {
			t.Errorf("err = %#v, wanted InvariantError for columns", err)
		}
		_, err = db.DeleteColumns(tbl, []ColumnID{col})
		isErr(t, err, ErrAtLeastOneRowAndOneColumn)

		deepEqual(t, columnIDsOf(t, db, tbl), []ColumnID{col})
		deepEqual(t, grid(t, db, tbl), [][]string{{"a0"}, {"b0"}})
		checkTable(t, db, tbl)
	})
}

func TestAxis_lastRowCannotBeDeleted(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := must(db.CreateTable())
		_, err := db.DeleteRow(tbl, rowIDsOf(t, db, tbl)[0])
		isErr(t, err, ErrAtLeastOneRowAndOneColumn)
		deepEqual(t, must(db.TableStats(tbl)), TableStats{Rows: 1, Columns: 1, Cells: 1})
	})
}

func TestAxis_reposition(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 5, 1)
		ids := rowIDsOf(t, db, tbl)

		ensure(db.MoveRow(tbl, ids[1], 3)) // rows at (1, 3] shift by -1
		deepEqual(t, rowIDsOf(t, db, tbl), []RowID{ids[0], ids[2], ids[3], ids[1], ids[4]})
		checkTable(t, db, tbl)

		ensure(db.MoveRow(tbl, ids[4], 0)) // rows at [0, 4) shift by +1
		deepEqual(t, rowIDsOf(t, db, tbl), []RowID{ids[4], ids[0], ids[2], ids[3], ids[1]})
		checkTable(t, db, tbl)

		ensure(db.MoveRow(tbl, ids[2], 2))
		deepEqual(t, rowIDsOf(t, db, tbl), []RowID{ids[4], ids[0], ids[2], ids[3], ids[1]})

		isErr(t, db.MoveRow(tbl, ids[2], 5), ErrInvalidPosition)
		isErr(t, db.MoveRow(tbl, ids[2], -1), ErrInvalidPosition)
		deepEqual(t, grid(t, db, tbl), [][]string{{"e0"}, {"a0"}, {"c0"}, {"d0"}, {"b0"}})
	})
}

func TestAxis_lookups(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 4, 3)
		ids := rowIDsOf(t, db, tbl)
		cols := columnIDsOf(t, db, tbl)

		db.Read(func(tx *Tx) {
			deepEqual(t, must(tx.RowIDAt(tbl, 2)), ids[2])
			deepEqual(t, must(tx.RowIndex(tbl, ids[3])), 3)
			deepEqual(t, must(tx.RowCount(tbl)), 4)
			deepEqual(t, must(tx.ColumnIDAt(tbl, 1)), cols[1])
			deepEqual(t, must(tx.ColumnIndex(tbl, cols[2])), 2)
			deepEqual(t, must(tx.ColumnCount(tbl)), 3)

			_, err := tx.RowIDAt(tbl, 4)
			isErr(t, err, ErrInvalidPosition)
			_, err = tx.ColumnIDAt(tbl, -1)
			isErr(t, err, ErrInvalidPosition)

			deepEqual(t, must(tx.SortedRows(tbl, []RowID{ids[2], ids[0], ids[3]}, false)),
				[]RowRef{{ids[0], 0}, {ids[2], 2}, {ids[3], 3}})
			deepEqual(t, must(tx.SortedRows(tbl, []RowID{ids[2], ids[0], ids[3]}, true)),
				[]RowRef{{ids[3], 3}, {ids[2], 2}, {ids[0], 0}})
			deepEqual(t, must(tx.SortedColumns(tbl, []ColumnID{cols[1], cols[0]}, false)),
				[]ColumnRef{{cols[0], 0}, {cols[1], 1}})

			_, err = tx.RowIndex(tbl, newRowID())
			if !IsNotFound(err, KindRow) {
				t.Errorf("err = %v, wanted row not found", err)
			}
		})
	})
}

func TestAxis_tablesAreIndependent(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		a := newTableWith(t, db, 3, 2)
		b := newTableWith(t, db, 2, 3)
		must(db.InsertRow(a, 0))
		must(db.DeleteColumn(b, columnIDsOf(t, db, b)[0]))

		deepEqual(t, must(db.TableStats(a)), TableStats{Rows: 4, Columns: 2, Cells: 8})
		deepEqual(t, must(db.TableStats(b)), TableStats{Rows: 2, Columns: 2, Cells: 4})
		deepEqual(t, grid(t, db, b), [][]string{{"a1", "a2"}, {"b1", "b2"}})
		checkTable(t, db, a)
		checkTable(t, db, b)
	})
}
