package gridb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andreyvit/gridb/journal"
)

type Op int

const (
	OpNone Op = iota
	OpCreateTable
	OpDeleteTable
	OpInsertRow
	OpDeleteRows
	OpMoveRow
	OpInsertColumn
	OpDeleteColumns
	OpMoveColumn
	OpPatchColumn
	OpResetColumn
	OpSetCell
	OpPutCard
	OpDeleteCard
)

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpCreateTable:
		return "create_table"
	case OpDeleteTable:
		return "delete_table"
	case OpInsertRow:
		return "insert_row"
	case OpDeleteRows:
		return "delete_rows"
	case OpMoveRow:
		return "move_row"
	case OpInsertColumn:
		return "insert_column"
	case OpDeleteColumns:
		return "delete_columns"
	case OpMoveColumn:
		return "move_column"
	case OpPatchColumn:
		return "patch_column"
	case OpResetColumn:
		return "reset_column"
	case OpSetCell:
		return "set_cell"
	case OpPutCard:
		return "put_card"
	case OpDeleteCard:
		return "delete_card"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

// Change describes one mutation. Which fields are set depends on Op: row and
// column operations carry the entity ID and its index (the new index for
// moves, with From holding the old one), deletions carry the freed indexes,
// cell updates carry both IDs and the value.
type Change struct {
	Op     Op       `msgpack:"o"`
	Table  TableID  `msgpack:"t"`
	Row    RowID    `msgpack:"r,omitempty"`
	Column ColumnID `msgpack:"c,omitempty"`
	Index  int      `msgpack:"i,omitempty"`
	From   int      `msgpack:"fr,omitempty"`
	Freed  []int    `msgpack:"f,omitempty"`
	Value  string   `msgpack:"v,omitempty"`
}

func (chg *Change) String() string {
	switch chg.Op {
	case OpDeleteRows, OpDeleteColumns:
		return fmt.Sprintf("%s %v freed=%v", chg.Op, chg.Table, chg.Freed)
	case OpMoveRow, OpMoveColumn:
		return fmt.Sprintf("%s %v %d->%d", chg.Op, chg.Table, chg.From, chg.Index)
	case OpSetCell:
		return fmt.Sprintf("%s %v %v/%v=%q", chg.Op, chg.Table, chg.Row, chg.Column, chg.Value)
	default:
		return fmt.Sprintf("%s %v @%d", chg.Op, chg.Table, chg.Index)
	}
}

// JournalEntry is what a committed write transaction appends to the journal.
type JournalEntry struct {
	Time    time.Time `msgpack:"tm"`
	Changes []*Change `msgpack:"c"`
}

func (tx *Tx) recordChange(chg *Change) {
	tx.markWritten()
	tx.changes = append(tx.changes, chg)
	if tx.changeHandler != nil {
		tx.changeHandler(tx, chg)
	}
}

// publishChanges runs after a successful commit. The data is already durable
// at this point, so a journal failure is logged rather than returned.
func (tx *Tx) publishChanges() {
	j := tx.db.jrnl
	if j == nil || len(tx.changes) == 0 {
		return
	}
	entry := JournalEntry{
		Time:    tx.db.now(),
		Changes: tx.changes,
	}
	data := encodeRecord(nil, &entry)
	err := j.WriteRecord(0, data)
	if err == nil {
		err = j.Commit()
	}
	if err != nil {
		tx.db.logger.LogAttrs(context.Background(), slog.LevelError, "db: journal write failed", slog.Int("changes", len(tx.changes)), slog.Any("err", err))
	}
}

// ReadJournal replays every committed journal entry from dir in order.
func ReadJournal(dir string, logger *slog.Logger, f func(entry *JournalEntry) error) error {
	return journal.Read(dir, journal.Options{
		FileName: "gridb-*.wal",
		Logger:   logger,
	}, func(rec journal.Record) error {
		var entry JournalEntry
		if err := decodeRecord(rec.Data, &entry); err != nil {
			return fmt.Errorf("journal segment %d: %w", rec.Segment, err)
		}
		return f(&entry)
	})
}
