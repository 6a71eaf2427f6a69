package gridb

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/gridb/journal"
)

const trackTxns = true

type DB struct {
	stor    storage
	logger  *slog.Logger
	verbose bool
	strict  bool
	now     func() time.Time
	jrnl    *journal.Journal

	// publishLock spans a store commit and its journal write so that journal
	// records follow commit order.
	publishLock sync.Mutex

	lastSize           atomic.Int64
	ReaderCount        atomic.Int64
	WriterCount        atomic.Int64
	PendingWriterCount atomic.Int64
	ReadCount          atomic.Uint64
	WriteCount         atomic.Uint64

	rowFetches    atomic.Uint64
	columnFetches atomic.Uint64
	cellFetches   atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
	Now       func() time.Time

	// JournalDir enables the edit journal: every committed write transaction
	// that changed tables is appended there as one record.
	JournalDir         string
	JournalMaxFileSize int64
	JournalSync        bool
}

// Open opens (creating if needed) a Bolt-backed database file.
func Open(path string, opt Options) (*DB, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("gridb: %w", err)
	}

	db, err := open(newBoltStorage(bdb), opt)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory returns a database that lives in memory until closed.
func OpenMemory(opt Options) (*DB, error) {
	return open(newMemStorage(), opt)
}

func open(stor storage, opt Options) (*DB, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	db := &DB{
		stor:    stor,
		logger:  opt.Logger,
		verbose: opt.Verbose,
		strict:  opt.IsTesting,
		now:     opt.Now,
	}

	err := db.Tx(true, func(tx *Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.stx.CreateBucket(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		tx.markWritten()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gridb: init: %w", err)
	}

	if opt.JournalDir != "" {
		db.jrnl = journal.New(opt.JournalDir, journal.Options{
			FileName:    "gridb-*.wal",
			MaxFileSize: opt.JournalMaxFileSize,
			Sync:        opt.JournalSync,
			DebugName:   "gridb.journal",
			Now:         opt.Now,
			Logger:      opt.Logger,
			Verbose:     opt.Verbose,
		})
		db.jrnl.StartWriting()
	}
	return db, nil
}

func (db *DB) Journal() *journal.Journal {
	return db.jrnl
}

func (db *DB) Logger() *slog.Logger {
	return db.logger
}

func (db *DB) Size() int64 {
	return db.lastSize.Load()
}

func (db *DB) Close() {
	if db.jrnl != nil {
		db.jrnl.FinishWriting()
	}
	err := db.stor.Close()
	if err != nil {
		panic(fmt.Errorf("gridb: closing: %w", err))
	}
}

func (db *DB) addTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	db.txns = append(db.txns, tx)
}

func (db *DB) removeTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()

	found := slices.Index(db.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}

	n := len(db.txns)
	db.txns[found] = db.txns[n-1]
	db.txns[n-1] = nil // ensure it gets collected
	db.txns = db.txns[:n-1]
}

func (db *DB) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	db.txnsLock.Lock()
	txns := slices.Clone(db.txns)
	db.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		mode := "read"
		if tx.IsWritable() {
			mode = "write"
		}
		if ms < 100 {
			fmt.Fprintf(&buf, "\n---\n%s tx open for %d ms\n", mode, ms)
		} else {
			fmt.Fprintf(&buf, "\n---\n%s tx open for %d ms:\n%s", mode, ms, tx.stack)
		}
	}

	return buf.String()
}
