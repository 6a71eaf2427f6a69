package gridb

import (
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// testClock ticks one second per reading so that every transaction gets a
// distinct timestamp.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func testOptions(t testing.TB) Options {
	return Options{
		IsTesting: true,
		Verbose:   true,
		Logger:    slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Now:       (&testClock{now: testStart}).Now,
	}
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	c.t.Log(strings.TrimSuffix(string(buf), "\n"))
	return len(buf), nil
}

func setup(t testing.TB) *DB {
	t.Helper()

	dbFile := must(os.CreateTemp("", "gridb_test_*.db"))
	t.Logf("DB: %s", dbFile.Name())
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db := must(Open(dbFile.Name(), testOptions(t)))
	t.Cleanup(db.Close)
	return db
}

func setupMem(t testing.TB) *DB {
	t.Helper()
	db := must(OpenMemory(testOptions(t)))
	t.Cleanup(db.Close)
	return db
}

// backends runs f against a Bolt file and against the in-memory store.
func backends(t *testing.T, f func(t *testing.T, db *DB)) {
	t.Run("bolt", func(t *testing.T) { f(t, setup(t)) })
	t.Run("mem", func(t *testing.T) { f(t, setupMem(t)) })
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}

// checkTable verifies density of both axes, that stored indexes match the
// position keys, and that every row has exactly one cell per column.
func checkTable(t testing.TB, db *DB, tbl TableID) {
	t.Helper()
	db.Read(func(tx *Tx) {
		checkAxis(t, tx, rowAxis, tbl)
		checkAxis(t, tx, columnAxis, tbl)

		cols := columnAxis.ids(tx, tbl)
		for _, row := range rowAxis.ids(tx, tbl) {
			var n int
			c := tx.scan(cellsBucket, rawPrefix(row[:]))
			for c.Next() {
				n++
			}
			if n != len(cols) {
				t.Errorf("** row %v has %d cells, wanted %d", RowID(row), n, len(cols))
			}
		}
	})
}

func checkAxis[T any, P interface {
	*T
	positioned
}](t testing.TB, tx *Tx, ax axisOf[T, P], tbl TableID) {
	t.Helper()
	var i int
	c := tx.scan(ax.posBucket(), rawPrefix(tbl[:]))
	for c.Next() {
		_, index := decodePosKey(c.Key())
		if index != i {
			t.Errorf("** %s: position key %d found where %d expected", ax, index, i)
		}
		id := decodeID(c.Value())
		rec := P(mustGetRecord[T](ax.entities(tx), id[:]))
		if rec.position() != index {
			t.Errorf("** %s: record of %x has index %d, position key says %d", ax, id, rec.position(), index)
		}
		if rec.owner() != tbl {
			t.Errorf("** %s: record of %x belongs to %v", ax, id, rec.owner())
		}
		i++
	}
	if n := ax.count(tx, tbl); n != i {
		t.Errorf("** %s: count = %d, scanned %d", ax, n, i)
	}
}

// rowIDsOf returns the row IDs in index order.
func rowIDsOf(t testing.TB, db *DB, tbl TableID) []RowID {
	t.Helper()
	refs, err := view(db, func(tx *Tx) ([]RowRef, error) { return tx.Rows(tbl) })
	if err != nil {
		t.Fatal(err)
	}
	result := make([]RowID, len(refs))
	for i, r := range refs {
		result[i] = r.ID
	}
	return result
}

func columnIDsOf(t testing.TB, db *DB, tbl TableID) []ColumnID {
	t.Helper()
	cols, err := view(db, func(tx *Tx) ([]Column, error) { return tx.Columns(tbl) })
	if err != nil {
		t.Fatal(err)
	}
	result := make([]ColumnID, len(cols))
	for i, c := range cols {
		result[i] = c.ID
	}
	return result
}

func grid(t testing.TB, db *DB, tbl TableID) [][]string {
	t.Helper()
	return must(db.TableContent(tbl)).Values()
}

// newTableWith creates a table of the given size with cell values "r,c" so
// that moves and deletes are easy to follow.
func newTableWith(t testing.TB, db *DB, rows, cols int) TableID {
	t.Helper()
	tbl := must(db.CreateTable())
	for range cols - 1 {
		must(db.AppendColumn(tbl, ColumnSpec{}))
	}
	for range rows - 1 {
		must(db.AppendRow(tbl))
	}
	ensure(db.Tx(true, func(tx *Tx) error {
		for r := range rows {
			for c := range cols {
				if _, err := tx.UpdateCellAt(tbl, r, c, cellName(r, c)); err != nil {
					return err
				}
			}
		}
		return nil
	}))
	return tbl
}

func cellName(r, c int) string {
	return string(rune('a'+r)) + string(rune('0'+c))
}

func TestDB_OpenCreatesBuckets(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		db.Read(func(tx *Tx) {
			for _, name := range allBuckets {
				if tx.stx.Bucket(name) == nil {
					t.Errorf("bucket %s missing", name)
				}
			}
		})
	})
}

func TestDB_ReopenKeepsData(t *testing.T) {
	dbFile := must(os.CreateTemp("", "gridb_reopen_*.db"))
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db := must(Open(dbFile.Name(), testOptions(t)))
	tbl := must(db.CreateTable())
	must(db.UpdateCellAt(tbl, 0, 0, "kept"))
	db.Close()

	db = must(Open(dbFile.Name(), testOptions(t)))
	defer db.Close()
	deepEqual(t, grid(t, db, tbl), [][]string{{"kept"}})
}
