package gridb

import (
	"errors"
	"strings"
	"testing"
)

func TestTx_BeginUpdateRollsBackOnClose(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		tx := db.BeginUpdate()
		tbl := must(tx.CreateTable())
		tx.Close() // rollback

		db.Read(func(tx *Tx) {
			if err := tx.checkTable(tbl); !IsNotFound(err, KindTable) {
				t.Fatalf("table visible after rollback: %v", err)
			}
		})
	})
}

func TestTx_UnmanagedCommit(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		var tbl TableID
		db.Write(func(tx *Tx) {
			tbl = must(tx.CreateTable())
		})
		deepEqual(t, must(db.TableStats(tbl)).Cells, 1)
	})
}

func TestTx_PanicBecomesError(t *testing.T) {
	db := setupMem(t)
	err := db.Tx(true, func(tx *Tx) error {
		panic("boom")
	})
	if err == nil {
		t.Fatalf("db.Tx err = nil, wanted error")
	}
	if !strings.Contains(err.Error(), "panic: boom") {
		t.Fatalf("db.Tx err = %q, wanted it to include %q", err.Error(), "panic: boom")
	}

	inner := errors.New("inner")
	err = db.Tx(false, func(tx *Tx) error {
		panic(inner)
	})
	isErr(t, err, inner)
}

func TestTx_ReadOnlyRejectsWrites(t *testing.T) {
	db := setupMem(t)
	err := db.Tx(false, func(tx *Tx) error {
		_, err := tx.CreateTable()
		return err
	})
	if err == nil {
		t.Fatalf("CreateTable succeeded in a read-only transaction")
	}
	deepEqual(t, len(must(db.Tables())), 0)
}

func TestTx_Counters(t *testing.T) {
	db := setupMem(t)
	reads, writes := db.ReadCount.Load(), db.WriteCount.Load()
	must(db.CreateTable())
	must(db.Tables())
	deepEqual(t, db.WriteCount.Load(), writes+1)
	deepEqual(t, db.ReadCount.Load(), reads+1)
	deepEqual(t, db.ReaderCount.Load(), int64(0))
	deepEqual(t, db.WriterCount.Load(), int64(0))

	rtx := db.BeginRead()
	if !strings.Contains(db.DescribeOpenTxns(), "1 OPEN TRANSACTIONS") {
		t.Errorf("DescribeOpenTxns() = %q", db.DescribeOpenTxns())
	}
	rtx.Close()
	deepEqual(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")
}

func TestTx_CommitRejectsBrokenPositions(t *testing.T) {
	db := setupMem(t)
	tbl := newTableWith(t, db, 2, 1)

	err := db.Tx(true, func(tx *Tx) error {
		must(tx.AppendRow(tbl))
		return tx.bucket(rowPosBucket).Delete(posKey(nil, tbl, 1))
	})
	if err == nil || !strings.Contains(err.Error(), "index 2 where 1 was expected") {
		t.Fatalf("err = %v, wanted a density error", err)
	}
	deepEqual(t, grid(t, db, tbl), [][]string{{"a0"}, {"b0"}})
	checkTable(t, db, tbl)
}

func TestTx_CommitRejectsEmptyTable(t *testing.T) {
	db := setupMem(t)
	tbl := must(db.CreateTable())
	row := rowIDsOf(t, db, tbl)[0]
	col := columnIDsOf(t, db, tbl)[0]

	err := db.Tx(true, func(tx *Tx) error {
		ensure(tx.UpdateCell(tbl, row, col, "x"))
		return tx.bucket(rowPosBucket).Delete(posKey(nil, tbl, 0))
	})
	if err == nil || !strings.Contains(err.Error(), "0 rows") {
		t.Fatalf("err = %v, wanted an empty table error", err)
	}
	checkTable(t, db, tbl)
}
