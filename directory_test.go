package gridb

import (
	"testing"
)

func cardTitles(cards []Card) []string {
	var titles []string
	for _, c := range cards {
		titles = append(titles, c.Title)
	}
	return titles
}

func TestDirectory_createAndGet(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		card := must(db.CreateCard("alice", CardSpec{Title: "Budget", Description: "2024"}))
		deepEqual(t, card.Owner, "alice")
		deepEqual(t, card.Title, "Budget")
		deepEqual(t, must(db.TableStats(card.Table)), TableStats{Rows: 1, Columns: 1, Cells: 1})

		got := must(db.Card("alice", card.Table))
		deepEqual(t, got.Description, "2024")
		deepEqual(t, got.CreatedAt.Equal(card.CreatedAt), true)

		_, err := db.Card("bob", card.Table)
		if !IsNotFound(err, KindCard) {
			t.Errorf("other owner: err = %v, wanted card not found", err)
		}
		_, err = db.Card("", card.Table)
		isErr(t, err, ErrInvalidOwner)
		_, err = db.CreateCard("a\x00b", CardSpec{})
		isErr(t, err, ErrInvalidOwner)
	})
}

func TestDirectory_recencyAndPaging(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		a := must(db.CreateCard("alice", CardSpec{Title: "a"}))
		b := must(db.CreateCard("alice", CardSpec{Title: "b"}))
		must(db.CreateCard("alice", CardSpec{Title: "c"}))
		must(db.CreateCard("bob", CardSpec{Title: "x"}))
		must(db.CreateCard("alicia", CardSpec{Title: "y"}))

		deepEqual(t, cardTitles(must(db.Cards("alice", 0, 0))), []string{"c", "b", "a"})

		// editing a table moves its card to the front
		must(db.UpdateCellAt(a.Table, 0, 0, "edited"))
		deepEqual(t, cardTitles(must(db.Cards("alice", 0, 0))), []string{"a", "c", "b"})

		title := "B"
		must(db.UpdateCard("alice", b.Table, CardPatch{Title: &title}))
		deepEqual(t, cardTitles(must(db.Cards("alice", 0, 2))), []string{"B", "a"})
		deepEqual(t, cardTitles(must(db.Cards("alice", 1, 2))), []string{"c"})
		deepEqual(t, cardTitles(must(db.Cards("alice", 2, 2))), []string(nil))
		deepEqual(t, cardTitles(must(db.Cards("bob", 0, 10))), []string{"x"})

		n := must(view(db, func(tx *Tx) (int, error) { return tx.CardCount("alice") }))
		deepEqual(t, n, 3)
		db.Read(func(tx *Tx) {
			deepEqual(t, tx.bucket(cardsRecentBucket).Stats().KeyN, 5)
		})
	})
}

func TestDirectory_delete(t *testing.T) {
	backends(t, func(t *testing.T, db *DB) {
		card := must(db.CreateCard("alice", CardSpec{Title: "gone"}))
		keep := must(db.CreateCard("alice", CardSpec{Title: "kept"}))

		err := db.DeleteCard("bob", card.Table)
		if !IsNotFound(err, KindCard) {
			t.Errorf("other owner: err = %v, wanted card not found", err)
		}
		ensure(db.DeleteCard("alice", card.Table))

		deepEqual(t, cardTitles(must(db.Cards("alice", 0, 0))), []string{"kept"})
		_, err = db.Table(card.Table)
		if !IsNotFound(err, KindTable) {
			t.Errorf("table of deleted card: err = %v, wanted table not found", err)
		}
		checkTable(t, db, keep.Table)
	})
}

func TestDirectory_deleteTableRemovesCard(t *testing.T) {
	db := setupMem(t)
	card := must(db.CreateCard("alice", CardSpec{Title: "t"}))
	ensure(db.DeleteTable(card.Table))
	deepEqual(t, len(must(db.Cards("alice", 0, 0))), 0)
	_, err := db.Card("alice", card.Table)
	if !IsNotFound(err, KindCard) {
		t.Errorf("err = %v, wanted card not found", err)
	}
}
