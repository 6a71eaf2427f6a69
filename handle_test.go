package gridb

import (
	"testing"
)

func TestHandle_rowsFetchedOnce(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 3, 2)

		db.Read(func(tx *Tx) {
			start := db.FetchCounts()
			h := must(tx.LoadTable(tbl))
			deepEqual(t, db.FetchCounts(), start)

			first := h.Rows()
			second := h.Rows()
			deepEqual(t, len(first), 3)
			deepEqual(t, second, first)
			deepEqual(t, db.FetchCounts(), FetchCounts{Rows: start.Rows + 1, Columns: start.Columns, Cells: start.Cells})

			h.Columns()
			h.Columns()
			deepEqual(t, db.FetchCounts().Columns, start.Columns+1)
		})
	})
}

func TestHandle_singleRowDoesNotLoadRows(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 4, 3)
		rows := rowIDsOf(t, db, tbl)

		db.Read(func(tx *Tx) {
			start := db.FetchCounts()
			h := must(tx.LoadTable(tbl))
			row := must(h.Row(2))
			deepEqual(t, row, RowValues{ID: rows[2], Index: 2, Values: []string{"c0", "c1", "c2"}})

			counts := db.FetchCounts()
			deepEqual(t, counts.Rows, start.Rows)
			deepEqual(t, counts.Cells, start.Cells+1)
			if h.rows != nil {
				t.Errorf("rows were loaded by Row()")
			}

			_, err := h.Row(4)
			isErr(t, err, ErrInvalidPosition)
		})
	})
}

func TestHandle_rowAfterRowsUsesCache(t *testing.T) {
	db := setupMem(t)
	tbl := newTableWith(t, db, 2, 1)
	db.Read(func(tx *Tx) {
		h := must(tx.LoadTable(tbl))
		h.Rows()
		deepEqual(t, must(h.Row(1)).Values, []string{"b0"})
		_, err := h.Row(-1)
		isErr(t, err, ErrInvalidPosition)
		deepEqual(t, h.RowCount(), 2)
		deepEqual(t, h.ColumnCount(), 1)
	})
}

func TestHandle_cacheIsPerHandle(t *testing.T) {
	db := setupMem(t)
	tbl := newTableWith(t, db, 2, 1)

	db.Read(func(tx *Tx) {
		h := must(tx.LoadTable(tbl))
		deepEqual(t, len(h.Rows()), 2)
	})
	must(db.AppendRow(tbl))
	db.Read(func(tx *Tx) {
		h := must(tx.LoadTable(tbl))
		deepEqual(t, len(h.Rows()), 3)
		deepEqual(t, h.Info().ID, tbl)
	})
}

func TestHandle_content(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tbl := newTableWith(t, db, 2, 2)
		name := "B"
		must(db.PatchColumn(tbl, columnIDsOf(t, db, tbl)[1], ColumnPatch{Name: &name}))

		content := must(db.TableContent(tbl))
		deepEqual(t, content.Table.ID, tbl)
		deepEqual(t, content.Columns[1].Name, "B")
		deepEqual(t, content.Values(), [][]string{{"a0", "a1"}, {"b0", "b1"}})
		deepEqual(t, must(db.Row(tbl, 1)).Values, []string{"b0", "b1"})

		_, err := db.TableContent(newTableID())
		if !IsNotFound(err, KindTable) {
			t.Errorf("err = %v, wanted table not found", err)
		}
	})
}

func TestHandle_contentFetchesEachCollectionOnce(t *testing.T) {
	db := setupMem(t)
	tbl := newTableWith(t, db, 3, 2)
	db.Read(func(tx *Tx) {
		start := db.FetchCounts()
		h := must(tx.LoadTable(tbl))
		h.Content()
		c := h.Content()
		deepEqual(t, len(c.Rows), 3)
		deepEqual(t, db.FetchCounts(), FetchCounts{Rows: start.Rows + 1, Columns: start.Columns + 1, Cells: start.Cells + 6})
	})
}
