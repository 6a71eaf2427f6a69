package gridb

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

func TestOp_String(t *testing.T) {
	if OpInsertRow.String() != "insert_row" || OpDeleteColumns.String() != "delete_columns" || OpNone.String() != "none" {
		t.Fatalf("unexpected Op.String values")
	}
	if got := Op(999).String(); got != "invalid op 999" {
		t.Fatalf("Op(999).String() = %q", got)
	}
}

func TestTx_OnChange(t *testing.T) {
	db := setupMem(t)
	tbl := newTableWith(t, db, 3, 2)
	ids := rowIDsOf(t, db, tbl)

	var got []*Change
	ensure(db.Tx(true, func(tx *Tx) error {
		tx.OnChange(func(tx *Tx, chg *Change) {
			got = append(got, chg)
		})
		must(tx.InsertRow(tbl, 1))
		must(tx.DeleteRows(tbl, []RowID{ids[2], ids[0]}))
		ensure(tx.MoveRow(tbl, ids[1], 0))
		must(tx.UpdateCellAt(tbl, 0, 1, "v"))
		return nil
	}))

	var ops []Op
	for _, chg := range got {
		ops = append(ops, chg.Op)
		if chg.Table != tbl {
			t.Errorf("change %v has table %v", chg, chg.Table)
		}
	}
	deepEqual(t, ops, []Op{OpInsertRow, OpDeleteRows, OpMoveRow, OpSetCell})
	deepEqual(t, got[0].Index, 1)
	deepEqual(t, got[1].Freed, []int{3, 0})
	deepEqual(t, got[2].From, 1)
	deepEqual(t, got[2].Index, 0)
	deepEqual(t, got[3].Value, "v")
}

func TestJournal_committedTransactionsOnly(t *testing.T) {
	dir := t.TempDir()
	opt := testOptions(t)
	opt.JournalDir = dir
	db := must(OpenMemory(opt))

	tbl := must(db.CreateTable())
	row := must(db.AppendRow(tbl))
	err := db.Tx(true, func(tx *Tx) error {
		must(tx.AppendColumn(tbl, ColumnSpec{Name: "lost"}))
		return errors.New("rollback")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	must(db.DeleteRows(tbl, []RowID{row.ID}))
	must(db.UpdateCellAt(tbl, 0, 0, "hello"))
	db.Close()

	var entries []*JournalEntry
	ensure(ReadJournal(dir, db.Logger(), func(entry *JournalEntry) error {
		entries = append(entries, entry)
		return nil
	}))

	var ops [][]Op
	for _, e := range entries {
		var txOps []Op
		for _, chg := range e.Changes {
			txOps = append(txOps, chg.Op)
		}
		ops = append(ops, txOps)
	}
	deepEqual(t, ops, [][]Op{
		{OpCreateTable},
		{OpInsertRow},
		{OpDeleteRows},
		{OpSetCell},
	})
	deepEqual(t, entries[0].Changes[0].Table, tbl)
	deepEqual(t, entries[1].Changes[0].Row, row.ID)
	deepEqual(t, entries[2].Changes[0].Freed, []int{1})
	deepEqual(t, entries[3].Changes[0].Value, "hello")
	if entries[3].Time.Before(entries[0].Time) {
		t.Errorf("journal times go backwards: %v then %v", entries[0].Time, entries[3].Time)
	}
}

func TestJournal_disabledByDefault(t *testing.T) {
	db := setupMem(t)
	if db.Journal() != nil {
		t.Fatal("journal enabled without JournalDir")
	}
	must(db.CreateTable())
}

// Journal records must come out in the order the store committed them, even
// when the clock is slow and writers race.
func TestJournal_orderFollowsCommits(t *testing.T) {
	dir := t.TempDir()
	opt := testOptions(t)
	opt.Verbose = false
	opt.JournalDir = dir
	opt.Now = func() time.Time {
		time.Sleep(time.Duration(rand.IntN(2000)) * time.Microsecond)
		return time.Now()
	}
	db := must(OpenMemory(opt))

	tbl := must(db.CreateTable())
	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.AppendRow(tbl); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	db.Close()

	var indexes []int
	ensure(ReadJournal(dir, db.Logger(), func(entry *JournalEntry) error {
		for _, chg := range entry.Changes {
			if chg.Op == OpInsertRow {
				indexes = append(indexes, chg.Index)
			}
		}
		return nil
	}))
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	deepEqual(t, indexes, want)
}
