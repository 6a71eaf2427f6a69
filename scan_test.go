package gridb

import (
	"testing"
)

func scanKeys(tx *Tx, bucket string, rang rawRange) []string {
	var result []string
	c := tx.scan(bucket, rang)
	for c.Next() {
		result = append(result, string(c.Key()))
	}
	return result
}

func TestScan_ranges(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		ensure(db.Tx(true, func(tx *Tx) error {
			b := tx.bucket(tablesBucket)
			for _, k := range []string{"a1", "a2", "a3", "b1", "b2", "c1"} {
				ensure(b.Put([]byte(k), []byte{}))
			}
			tx.markWritten()
			return nil
		}))

		db.Read(func(tx *Tx) {
			o := func(name string, rang rawRange, exp ...string) {
				t.Helper()
				got := scanKeys(tx, tablesBucket, rang)
				if len(exp) == 0 {
					exp = nil
				}
				if len(got) == 0 {
					got = nil
				}
				t.Run(name, func(t *testing.T) { deepEqual(t, got, exp) })
			}
			o("all", rawRange{}, "a1", "a2", "a3", "b1", "b2", "c1")
			o("all reverse", rawRange{}.reversed(), "c1", "b2", "b1", "a3", "a2", "a1")
			o("prefix", rawPrefix([]byte("a")), "a1", "a2", "a3")
			o("prefix reverse", rawPrefix([]byte("b")).reversed(), "b2", "b1")
			o("missing prefix", rawPrefix([]byte("x")))
			o("between", rawPrefix([]byte("a")).between([]byte("a2"), []byte("a3")), "a2", "a3")
			o("between reverse", rawPrefix([]byte("a")).between([]byte("a1"), []byte("a2")).reversed(), "a2", "a1")
			o("between absent bounds", rawRange{}.between([]byte("a25"), []byte("b15")), "a3", "b1")
			o("between absent bounds reverse", rawRange{}.between([]byte("a25"), []byte("b15")).reversed(), "b1", "a3")
			o("upper past end reverse", rawRange{}.between([]byte("b"), []byte("z")).reversed(), "c1", "b2", "b1")
		})
	})
}

func TestScan_collectKeysClones(t *testing.T) {
	db := setupMem(t)
	ensure(db.Tx(true, func(tx *Tx) error {
		b := tx.bucket(tablesBucket)
		ensure(b.Put([]byte("k1"), []byte{}))
		ensure(b.Put([]byte("k2"), []byte{}))
		keys := tx.scan(tablesBucket, rawPrefix([]byte("k"))).collectKeys()
		for _, k := range keys {
			ensure(b.Delete(k))
		}
		deepEqual(t, len(keys), 2)
		deepEqual(t, string(keys[1]), "k2")
		deepEqual(t, b.Stats().KeyN, 0)
		return nil
	}))
}
