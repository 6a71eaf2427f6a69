package gridb

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

type Tx struct {
	db       *DB
	stx      storageTx
	managed  bool
	closed   bool
	released bool

	written bool
	changes []*Change
	touched map[TableID]bool

	startTime time.Time
	stack     string

	changeHandler func(tx *Tx, chg *Change)
}

func (db *DB) newTx(stx storageTx, managed bool) *Tx {
	tx := &Tx{
		db:        db,
		stx:       stx,
		managed:   managed,
		startTime: time.Now(),
	}
	if stx.Writable() {
		db.WriterCount.Add(1)
		db.WriteCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
		db.ReadCount.Add(1)
	}
	if trackTxns {
		tx.stack = string(debug.Stack())
		db.addTx(tx)
	}
	return tx
}

func (tx *Tx) DB() *DB {
	return tx.db
}

// OnChange installs a handler called synchronously for every change the
// transaction makes. Changes of a transaction that later fails are reported
// too; use the journal for committed changes only.
func (tx *Tx) OnChange(f func(tx *Tx, chg *Change)) {
	tx.changeHandler = f
}

// Tx runs f in a transaction. A writable transaction commits if f returns
// nil and rolls back otherwise; panics inside f become errors. Writable
// transactions are serialized by the storage, so f always sees the result
// of every previously committed write.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	if writable {
		db.PendingWriterCount.Add(1)
	}
	stx, err := db.stor.BeginTx(writable)
	if writable {
		db.PendingWriterCount.Add(-1)
	}
	if err != nil {
		return fmt.Errorf("gridb: begin: %w", err)
	}

	tx := db.newTx(stx, true)
	defer tx.Close()

	err = safelyCall(f, tx)
	if err != nil || !writable {
		return err
	}
	if !tx.written {
		return nil
	}
	err = tx.commit()
	if err != nil {
		return fmt.Errorf("gridb: commit: %w", err)
	}
	return nil
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func (p panicked) Unwrap() error {
	if err, ok := p.reason.(error); ok {
		return err
	}
	return nil
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (db *DB) BeginRead() *Tx {
	stx, err := db.stor.BeginTx(false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	return db.newTx(stx, false)
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (db *DB) BeginUpdate() *Tx {
	stx, err := db.stor.BeginTx(true)
	if err != nil {
		panic(fmt.Errorf("db.BeginTx(true) failed: %w", err))
	}
	return db.newTx(stx, false)
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

func (tx *Tx) markWritten() {
	if !tx.stx.Writable() {
		panic("attempt to modify data in a read-only transaction")
	}
	tx.written = true
}

func (tx *Tx) bucket(name string) storageBucket {
	b := tx.stx.Bucket(name)
	if b == nil {
		panic(fmt.Errorf("missing bucket %s", name))
	}
	return b
}

// Commit commits an unmanaged transaction started with BeginUpdate.
func (tx *Tx) Commit() error {
	if tx.managed {
		panic("Commit called on a managed transaction")
	}
	return tx.commit()
}

func (tx *Tx) commit() error {
	if tx.db.strict {
		if err := tx.verifyChangedTables(); err != nil {
			return err
		}
	}
	if tx.db.jrnl != nil && len(tx.changes) > 0 {
		tx.db.publishLock.Lock()
		defer tx.db.publishLock.Unlock()
	}
	size := tx.stx.Size()
	err := tx.stx.Commit()
	if err != nil {
		return err
	}
	tx.closed = true
	tx.db.lastSize.Store(size)
	tx.publishChanges()
	return nil
}

// Close rolls back the transaction unless it has been committed.
func (tx *Tx) Close() {
	if tx.closed {
		tx.release()
		return
	}
	tx.closed = true
	// The only error Rollback can report here is a closed tx, which just
	// signals that we've ran Commit (which is the normal flow).
	ensure(tx.stx.Rollback())
	tx.release()
}

func (tx *Tx) release() {
	if tx.released {
		return
	}
	tx.released = true
	if tx.stx.Writable() {
		tx.db.WriterCount.Add(-1)
	} else {
		tx.db.ReaderCount.Add(-1)
	}
	if trackTxns {
		tx.db.removeTx(tx)
	}
}

func (tx *Tx) trace(op string, attrs ...slog.Attr) {
	if !tx.db.verbose {
		return
	}
	tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "db: "+op, attrs...)
}
