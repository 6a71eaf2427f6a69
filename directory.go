package gridb

import (
	"encoding/binary"
	"log/slog"
	"strings"
	"time"
)

// Cards are the user-facing side of tables: each table may have one card,
// keyed by the table ID, that records its owner and title. Every directory
// operation takes the caller's identity explicitly and treats cards of other
// owners as not found.

type cardRecord struct {
	Owner       string    `msgpack:"o"`
	Title       string    `msgpack:"t"`
	Description string    `msgpack:"d,omitempty"`
	CreatedAt   time.Time `msgpack:"ca"`
	UpdatedAt   time.Time `msgpack:"ua"`
}

type Card struct {
	Table       TableID
	Owner       string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CardSpec struct {
	Title       string
	Description string
}

// CardPatch lists the card attributes to change; nil fields stay as is.
type CardPatch struct {
	Title       *string
	Description *string
}

func (rec *cardRecord) card(tbl TableID) Card {
	return Card{
		Table:       tbl,
		Owner:       rec.Owner,
		Title:       rec.Title,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// recentKey orders an owner's cards newest first: owner, a zero byte, the
// inverted update time, then the table ID to keep keys unique.
func recentKey(owner string, updatedAt time.Time, tbl TableID) []byte {
	buf := make([]byte, 0, len(owner)+1+8+idLen)
	buf = append(buf, owner...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint64(buf, ^uint64(updatedAt.UnixNano()))
	return append(buf, tbl[:]...)
}

func recentPrefix(owner string) []byte {
	return append([]byte(owner), 0)
}

func checkOwner(owner string) error {
	if owner == "" || strings.IndexByte(owner, 0) >= 0 {
		return ErrInvalidOwner
	}
	return nil
}

func (tx *Tx) ownedCard(owner string, tbl TableID) (*cardRecord, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	rec, err := getRecord[cardRecord](tx.bucket(cardsBucket), tbl[:])
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Owner != owner {
		return nil, notFound(KindCard, tbl)
	}
	return rec, nil
}

func (tx *Tx) putCard(tbl TableID, rec *cardRecord) {
	putRecord(tx.bucket(cardsBucket), tbl[:], rec)
	ensure(tx.bucket(cardsRecentBucket).Put(recentKey(rec.Owner, rec.UpdatedAt, tbl), []byte{}))
	tx.trace("PUT_CARD", slog.String("table", tbl.String()), slog.String("owner", rec.Owner))
	tx.recordChange(&Change{Op: OpPutCard, Table: tbl, Value: rec.Title})
}

func (tx *Tx) unindexCard(tbl TableID, rec *cardRecord) {
	ensure(tx.bucket(cardsRecentBucket).Delete(recentKey(rec.Owner, rec.UpdatedAt, tbl)))
}

// CreateCard creates a new table and its card.
func (tx *Tx) CreateCard(owner string, spec CardSpec) (Card, error) {
	if err := checkOwner(owner); err != nil {
		return Card{}, err
	}
	tbl, err := tx.CreateTable()
	if err != nil {
		return Card{}, err
	}
	now := tx.db.now()
	rec := &cardRecord{
		Owner:       owner,
		Title:       spec.Title,
		Description: spec.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx.putCard(tbl, rec)
	return rec.card(tbl), nil
}

func (tx *Tx) Card(owner string, tbl TableID) (Card, error) {
	rec, err := tx.ownedCard(owner, tbl)
	if err != nil {
		return Card{}, err
	}
	return rec.card(tbl), nil
}

// Cards lists the owner's cards, most recently updated first. Page numbers
// start at zero; a non-positive pageSize returns everything.
func (tx *Tx) Cards(owner string, page, pageSize int) ([]Card, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	skip := 0
	if pageSize > 0 {
		skip = max(page, 0) * pageSize
	}
	prefix := recentPrefix(owner)
	cards := tx.bucket(cardsBucket)
	var result []Card
	c := tx.scan(cardsRecentBucket, rawPrefix(prefix))
	for c.Next() {
		if skip > 0 {
			skip--
			continue
		}
		tbl := TableID(decodeID(c.Key()[len(c.Key())-idLen:]))
		rec := mustGetRecord[cardRecord](cards, tbl[:])
		result = append(result, rec.card(tbl))
		if pageSize > 0 && len(result) >= pageSize {
			break
		}
	}
	return result, nil
}

// CardCount returns how many cards the owner has.
func (tx *Tx) CardCount(owner string) (int, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	var n int
	c := tx.scan(cardsRecentBucket, rawPrefix(recentPrefix(owner)))
	for c.Next() {
		n++
	}
	return n, nil
}

func (tx *Tx) UpdateCard(owner string, tbl TableID, patch CardPatch) (Card, error) {
	rec, err := tx.ownedCard(owner, tbl)
	if err != nil {
		return Card{}, err
	}
	tx.unindexCard(tbl, rec)
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.Description != nil {
		rec.Description = *patch.Description
	}
	rec.UpdatedAt = tx.db.now()
	tx.putCard(tbl, rec)

	tx.touchTable(tbl)
	return rec.card(tbl), nil
}

// DeleteCard deletes the card together with its table.
func (tx *Tx) DeleteCard(owner string, tbl TableID) error {
	if _, err := tx.ownedCard(owner, tbl); err != nil {
		return err
	}
	return tx.DeleteTable(tbl)
}

// touchCard moves the card of a modified table to the front of its owner's
// recency list. Tables without a card are left alone.
func (tx *Tx) touchCard(tbl TableID, now time.Time) {
	cards := tx.bucket(cardsBucket)
	rec := must(getRecord[cardRecord](cards, tbl[:]))
	if rec == nil || rec.UpdatedAt.Equal(now) {
		return
	}
	tx.unindexCard(tbl, rec)
	rec.UpdatedAt = now
	putRecord(cards, tbl[:], rec)
	ensure(tx.bucket(cardsRecentBucket).Put(recentKey(rec.Owner, now, tbl), []byte{}))
}

func (tx *Tx) deleteCardOf(tbl TableID) {
	cards := tx.bucket(cardsBucket)
	rec := must(getRecord[cardRecord](cards, tbl[:]))
	if rec == nil {
		return
	}
	tx.unindexCard(tbl, rec)
	ensure(cards.Delete(tbl[:]))
	tx.trace("DELETE_CARD", slog.String("table", tbl.String()))
	tx.recordChange(&Change{Op: OpDeleteCard, Table: tbl})
}

func (db *DB) CreateCard(owner string, spec CardSpec) (Card, error) {
	return update(db, func(tx *Tx) (Card, error) { return tx.CreateCard(owner, spec) })
}

func (db *DB) Card(owner string, tbl TableID) (Card, error) {
	return view(db, func(tx *Tx) (Card, error) { return tx.Card(owner, tbl) })
}

func (db *DB) Cards(owner string, page, pageSize int) ([]Card, error) {
	return view(db, func(tx *Tx) ([]Card, error) { return tx.Cards(owner, page, pageSize) })
}

func (db *DB) UpdateCard(owner string, tbl TableID, patch CardPatch) (Card, error) {
	return update(db, func(tx *Tx) (Card, error) { return tx.UpdateCard(owner, tbl, patch) })
}

func (db *DB) DeleteCard(owner string, tbl TableID) error {
	return db.Tx(true, func(tx *Tx) error { return tx.DeleteCard(owner, tbl) })
}
