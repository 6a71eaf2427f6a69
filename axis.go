package gridb

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
)

// Axis is one of the two independent orderings of a table.
type Axis int

const (
	AxisRows Axis = iota
	AxisColumns
)

func (a Axis) String() string {
	if a == AxisColumns {
		return "columns"
	}
	return "rows"
}

func (a Axis) entityName() string {
	if a == AxisColumns {
		return "column"
	}
	return "row"
}

func (a Axis) kind() Kind {
	if a == AxisColumns {
		return KindColumn
	}
	return KindRow
}

func (a Axis) other() Axis {
	if a == AxisColumns {
		return AxisRows
	}
	return AxisColumns
}

func (a Axis) entityBucket() string {
	if a == AxisColumns {
		return columnsBucket
	}
	return rowsBucket
}

func (a Axis) posBucket() string {
	if a == AxisColumns {
		return columnPosBucket
	}
	return rowPosBucket
}

// cellKey builds the key of the cell where an entity of this axis crosses
// an entity of the other axis.
func (a Axis) cellKey(entity, other [idLen]byte) []byte {
	if a == AxisColumns {
		return cellKey(nil, RowID(other), ColumnID(entity))
	}
	return cellKey(nil, RowID(entity), ColumnID(other))
}

func (a Axis) fetchCounter(db *DB) *atomic.Uint64 {
	if a == AxisColumns {
		return &db.columnFetches
	}
	return &db.rowFetches
}

// positioned is implemented by the stored records of rows and columns.
type positioned interface {
	owner() TableID
	position() int
	setPosition(index int)
}

// axisOf is the ordered index manager of one axis. T is the stored record
// type; its index is mirrored in the position bucket, which is the source of
// truth for ordering and density.
type axisOf[T any, P interface {
	*T
	positioned
}] struct {
	Axis
}

type axisEntry[T any] struct {
	ID  [idLen]byte
	Rec *T
}

func (ax axisOf[T, P]) entities(tx *Tx) storageBucket  { return tx.bucket(ax.entityBucket()) }
func (ax axisOf[T, P]) positions(tx *Tx) storageBucket { return tx.bucket(ax.posBucket()) }

func (ax axisOf[T, P]) notFound(id [idLen]byte) error {
	return notFound(ax.kind(), uuid.UUID(id))
}

// count returns the dense size of the axis by seeking to its last position
// key, which under density holds index count-1.
func (ax axisOf[T, P]) count(tx *Tx, tbl TableID) int {
	k, _ := ax.positions(tx).Cursor().SeekLast(tbl[:])
	if k == nil || !bytes.HasPrefix(k, tbl[:]) {
		return 0
	}
	_, index := decodePosKey(k)
	return index + 1
}

// lookup loads an entity record, reporting entities of other tables as not
// found.
func (ax axisOf[T, P]) lookup(tx *Tx, tbl TableID, id [idLen]byte) (P, error) {
	rec, err := getRecord[T](ax.entities(tx), id[:])
	if err != nil {
		return nil, err
	}
	if rec == nil || P(rec).owner() != tbl {
		return nil, ax.notFound(id)
	}
	return rec, nil
}

func (ax axisOf[T, P]) findIndexByID(tx *Tx, tbl TableID, id [idLen]byte) (int, error) {
	rec, err := ax.lookup(tx, tbl, id)
	if err != nil {
		return 0, err
	}
	return rec.position(), nil
}

// findIDByIndex is a single point read of the position bucket.
func (ax axisOf[T, P]) findIDByIndex(tx *Tx, tbl TableID, index int) ([idLen]byte, error) {
	if index >= 0 && index <= maxIndex {
		v := ax.positions(tx).Get(posKey(nil, tbl, index))
		if v != nil {
			return decodeID(v), nil
		}
	}
	return [idLen]byte{}, &PositionError{Axis: ax.Axis, Index: index, Count: ax.count(tx, tbl)}
}

// ids returns entity IDs in index order using one range scan.
func (ax axisOf[T, P]) ids(tx *Tx, tbl TableID) [][idLen]byte {
	var result [][idLen]byte
	c := tx.scan(ax.posBucket(), rawPrefix(tbl[:]))
	for c.Next() {
		result = append(result, decodeID(c.Value()))
	}
	return result
}

// list returns every entity of the axis in index order.
func (ax axisOf[T, P]) list(tx *Tx, tbl TableID) []axisEntry[T] {
	ax.fetchCounter(tx.db).Add(1)
	ids := ax.ids(tx, tbl)
	buck := ax.entities(tx)
	result := make([]axisEntry[T], 0, len(ids))
	for _, id := range ids {
		result = append(result, axisEntry[T]{id, mustGetRecord[T](buck, id[:])})
	}
	return result
}

// sortedIndexes resolves ids to their current indexes, sorted by index.
func (ax axisOf[T, P]) sortedIndexes(tx *Tx, tbl TableID, ids [][idLen]byte, descending bool) ([]axisEntry[T], error) {
	result := make([]axisEntry[T], 0, len(ids))
	for _, id := range ids {
		rec, err := ax.lookup(tx, tbl, id)
		if err != nil {
			return nil, err
		}
		result = append(result, axisEntry[T]{id, rec})
	}
	slices.SortFunc(result, func(a, b axisEntry[T]) int {
		if descending {
			return P(b.Rec).position() - P(a.Rec).position()
		}
		return P(a.Rec).position() - P(b.Rec).position()
	})
	return result, nil
}

// place writes the position key and the record of an entity at index.
func (ax axisOf[T, P]) place(tx *Tx, tbl TableID, id [idLen]byte, rec P, index int) {
	rec.setPosition(index)
	ensure(ax.positions(tx).Put(posKey(nil, tbl, index), bytes.Clone(id[:])))
	putRecord(ax.entities(tx), id[:], rec)
}

// shift moves every entity with index in [lo, hi] by delta (+1 or -1).
// Keys are rewritten in the order that never lands on an occupied slot.
func (ax axisOf[T, P]) shift(tx *Tx, tbl TableID, lo, hi, delta int) {
	if lo > hi {
		return
	}
	keys := tx.scan(ax.posBucket(), rawPrefix(tbl[:]).between(posKey(nil, tbl, lo), posKey(nil, tbl, hi))).collectKeys()
	if delta > 0 {
		slices.Reverse(keys)
	}
	pos := ax.positions(tx)
	buck := ax.entities(tx)
	for _, k := range keys {
		_, index := decodePosKey(k)
		id := decodeID(pos.Get(k))
		ensure(pos.Delete(k))
		rec := P(mustGetRecord[T](buck, id[:]))
		ax.place(tx, tbl, id, rec, index+delta)
	}
	if tx.db.verbose {
		tx.trace("SHIFT", slog.String("axis", ax.String()), slog.Int("lo", lo), slog.Int("hi", hi), slog.Int("delta", delta))
	}
}

// insertAt shifts [target, count) up by one and places a new entity at
// target, with an empty cell for every entity of the other axis.
func (ax axisOf[T, P]) insertAt(tx *Tx, tbl TableID, target int, rec P) ([idLen]byte, error) {
	n := ax.count(tx, tbl)
	if target < 0 || target > n {
		return [idLen]byte{}, &PositionError{Axis: ax.Axis, Index: target, Count: n, Insert: true}
	}
	if n >= maxIndex {
		return [idLen]byte{}, &PositionError{Axis: ax.Axis, Index: target, Count: n, Insert: true}
	}
	ax.shift(tx, tbl, target, n-1, +1)

	id := [idLen]byte(uuid.New())
	ax.place(tx, tbl, id, rec, target)

	cells := tx.bucket(cellsBucket)
	empty := encodeRecord(nil, &cellRecord{})
	for _, other := range ax.otherIDs(tx, tbl) {
		ensure(cells.Put(ax.cellKey(id, other), empty))
	}
	return id, nil
}

func (ax axisOf[T, P]) appendAtEnd(tx *Tx, tbl TableID, rec P) ([idLen]byte, int, error) {
	n := ax.count(tx, tbl)
	id, err := ax.insertAt(tx, tbl, n, rec)
	return id, n, err
}

func (ax axisOf[T, P]) otherIDs(tx *Tx, tbl TableID) [][idLen]byte {
	if ax.Axis == AxisColumns {
		return rowAxis.ids(tx, tbl)
	}
	return columnAxis.ids(tx, tbl)
}

// remove deletes an entity, its position key and its cells, leaving a gap
// that the caller must close.
func (ax axisOf[T, P]) remove(tx *Tx, tbl TableID, id [idLen]byte, index int, others [][idLen]byte) {
	ensure(ax.positions(tx).Delete(posKey(nil, tbl, index)))
	ensure(ax.entities(tx).Delete(id[:]))
	cells := tx.bucket(cellsBucket)
	for _, other := range others {
		ensure(cells.Delete(ax.cellKey(id, other)))
	}
}

// deleteByID removes one entity and shifts everything after it down by one.
// It returns the freed index.
func (ax axisOf[T, P]) deleteByID(tx *Tx, tbl TableID, id [idLen]byte) (int, error) {
	rec, err := ax.lookup(tx, tbl, id)
	if err != nil {
		return 0, err
	}
	n := ax.count(tx, tbl)
	if n <= 1 {
		return 0, &InvariantError{Table: tbl, Axis: ax.Axis}
	}
	d := rec.position()
	ax.remove(tx, tbl, id, d, ax.otherIDs(tx, tbl))
	ax.shift(tx, tbl, d+1, n-1, -1)
	return d, nil
}

// deleteBatch removes several entities at once. Freed indexes are taken
// before anything is deleted and are returned in the order of ids, with
// duplicates collapsed. Either every entity is deleted or none.
func (ax axisOf[T, P]) deleteBatch(tx *Tx, tbl TableID, ids [][idLen]byte) ([]int, error) {
	uniq := make([][idLen]byte, 0, len(ids))
	seen := make(map[[idLen]byte]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}

	freed := make([]int, len(uniq))
	for i, id := range uniq {
		rec, err := ax.lookup(tx, tbl, id)
		if err != nil {
			return nil, err
		}
		freed[i] = rec.position()
	}
	if len(uniq) == 0 {
		return freed, nil
	}
	if len(uniq) >= ax.count(tx, tbl) {
		return nil, &InvariantError{Table: tbl, Axis: ax.Axis}
	}

	others := ax.otherIDs(tx, tbl)
	for i, id := range uniq {
		ax.remove(tx, tbl, id, freed[i], others)
	}
	ax.compact(tx, tbl)
	return freed, nil
}

// compact renumbers the surviving entities to 0..n-1 preserving their order.
// Ascending order guarantees every target slot is already vacant.
func (ax axisOf[T, P]) compact(tx *Tx, tbl TableID) {
	keys := tx.scan(ax.posBucket(), rawPrefix(tbl[:])).collectKeys()
	pos := ax.positions(tx)
	buck := ax.entities(tx)
	for i, k := range keys {
		_, index := decodePosKey(k)
		if index == i {
			continue
		}
		id := decodeID(pos.Get(k))
		ensure(pos.Delete(k))
		rec := P(mustGetRecord[T](buck, id[:]))
		ax.place(tx, tbl, id, rec, i)
	}
}

// reposition moves an entity to newIndex, shifting the entities between the
// old and the new position by one towards the vacated slot.
func (ax axisOf[T, P]) reposition(tx *Tx, tbl TableID, id [idLen]byte, newIndex int) (int, error) {
	rec, err := ax.lookup(tx, tbl, id)
	if err != nil {
		return 0, err
	}
	n := ax.count(tx, tbl)
	if newIndex < 0 || newIndex >= n {
		return 0, &PositionError{Axis: ax.Axis, Index: newIndex, Count: n}
	}
	old := rec.position()
	if old == newIndex {
		return old, nil
	}
	ensure(ax.positions(tx).Delete(posKey(nil, tbl, old)))
	if old < newIndex {
		ax.shift(tx, tbl, old+1, newIndex, -1)
	} else {
		ax.shift(tx, tbl, newIndex, old-1, +1)
	}
	ax.place(tx, tbl, id, rec, newIndex)
	return old, nil
}

// deleteAll removes every entity of the axis in a table along with their
// cells; used when the table itself goes away.
func (ax axisOf[T, P]) deleteAll(tx *Tx, tbl TableID) int {
	keys := tx.scan(ax.posBucket(), rawPrefix(tbl[:])).collectKeys()
	pos := ax.positions(tx)
	buck := ax.entities(tx)
	cells := tx.bucket(cellsBucket)
	others := ax.otherIDs(tx, tbl)
	for _, k := range keys {
		id := decodeID(pos.Get(k))
		for _, other := range others {
			ensure(cells.Delete(ax.cellKey(id, other)))
		}
		ensure(buck.Delete(id[:]))
		ensure(pos.Delete(k))
	}
	return len(keys)
}

// checkDensity verifies that the positions of a table are exactly 0..n-1 and
// agree with the entity records they point to.
func (ax axisOf[T, P]) checkDensity(tx *Tx, tbl TableID) (int, error) {
	buck := ax.entities(tx)
	n := 0
	c := tx.scan(ax.posBucket(), rawPrefix(tbl[:]))
	for c.Next() {
		_, index := decodePosKey(c.Key())
		if index != n {
			return n, fmt.Errorf("%s of table %v: index %d where %d was expected", ax, tbl, index, n)
		}
		id := decodeID(c.Value())
		rec, err := getRecord[T](buck, id[:])
		if err != nil {
			return n, err
		}
		if rec == nil {
			return n, fmt.Errorf("%s of table %v: index %d points to missing %s %v", ax, tbl, index, ax.entityName(), uuid.UUID(id))
		}
		if P(rec).owner() != tbl || P(rec).position() != index {
			return n, fmt.Errorf("%s of table %v: %s %v at index %d records index %d of table %v", ax, tbl, ax.entityName(), uuid.UUID(id), index, P(rec).position(), P(rec).owner())
		}
		n++
	}
	return n, nil
}
