package gridb

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// memStorage keeps all buckets in memory. A transaction works on a private
// copy of the buckets it touches and publishes them on commit. Writers are
// exclusive, readers see the state as of BeginTx.
type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[string]*memBucket
	closed  bool
	writer  bool
}

func newMemStorage() storage {
	s := &memStorage{buckets: make(map[string]*memBucket)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("storage closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("storage closed")
		}
		s.writer = true
	}

	// Committed buckets are never mutated in place, so a shallow copy of the
	// map is a consistent snapshot.
	snap := make(map[string]*memBucket, len(s.buckets))
	for k, b := range s.buckets {
		snap[k] = b
	}

	return &memTx{
		writable: writable,
		base:     s,
		buckets:  snap,
		owned:    make(map[string]bool),
	}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	buckets  map[string]*memBucket
	owned    map[string]bool // buckets already copied by this tx
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Bucket(name string) storageBucket {
	if tx.closed {
		panic("tx is closed")
	}
	if tx.buckets[name] == nil {
		return nil
	}
	return memBucketHandle{tx: tx, name: name}
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	if tx.buckets[name] == nil {
		tx.buckets[name] = &memBucket{}
		tx.owned[name] = true
	}
	return memBucketHandle{tx: tx, name: name}, nil
}

// mutable returns the bucket copy private to this tx, making one if needed.
func (tx *memTx) mutable(name string) *memBucket {
	b := tx.buckets[name]
	if !tx.owned[name] {
		b = b.clone()
		tx.buckets[name] = b
		tx.owned[name] = true
	}
	return b
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return fmt.Errorf("storage closed")
	}
	tx.base.buckets = tx.buckets
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

func (tx *memTx) Size() int64 { return 0 }

type memBucket struct {
	items []memKV // sorted by key
}

func (b *memBucket) clone() *memBucket {
	return &memBucket{items: slices.Clone(b.items)}
}

func (b *memBucket) find(key []byte) (idx int, ok bool) {
	i := sort.Search(len(b.items), func(i int) bool {
		return bytes.Compare(b.items[i].key, key) >= 0
	})
	return i, i < len(b.items) && bytes.Equal(b.items[i].key, key)
}

type memKV struct {
	key   []byte
	value []byte
}

type memBucketHandle struct {
	tx   *memTx
	name string
}

func (h memBucketHandle) bucket() *memBucket {
	return h.tx.buckets[h.name]
}

func (h memBucketHandle) Get(key []byte) []byte {
	b := h.bucket()
	i, ok := b.find(key)
	if !ok {
		return nil
	}
	return b.items[i].value
}

func (h memBucketHandle) Put(key, value []byte) error {
	if !h.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	b := h.tx.mutable(h.name)
	kv := memKV{key: slices.Clone(key), value: slices.Clone(value)}
	i, ok := b.find(key)
	if ok {
		b.items[i] = kv
	} else {
		b.items = slices.Insert(b.items, i, kv)
	}
	return nil
}

func (h memBucketHandle) Delete(key []byte) error {
	if !h.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	i, ok := h.bucket().find(key)
	if !ok {
		return nil
	}
	b := h.tx.mutable(h.name)
	b.items = slices.Delete(b.items, i, i+1)
	return nil
}

func (h memBucketHandle) Cursor() storageCursor {
	return &memCursor{b: h.bucket(), pos: -1}
}

func (h memBucketHandle) Stats() bucketStats {
	b := h.bucket()
	var inuse int64
	for _, kv := range b.items {
		inuse += int64(len(kv.key) + len(kv.value))
	}
	return bucketStats{
		KeyN:      len(b.items),
		LeafInuse: inuse,
		LeafAlloc: inuse,
	}
}

// memCursor walks the bucket as it was when the cursor was created.
type memCursor struct {
	b   *memBucket
	pos int
}

func (c *memCursor) at(i int) ([]byte, []byte) {
	c.pos = i
	if i < 0 || i >= len(c.b.items) {
		return nil, nil
	}
	kv := c.b.items[i]
	return kv.key, kv.value
}

func (c *memCursor) First() ([]byte, []byte) { return c.at(0) }

func (c *memCursor) Last() ([]byte, []byte) { return c.at(len(c.b.items) - 1) }

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	i, _ := c.b.find(seek)
	return c.at(i)
}

func (c *memCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.Last()
	}
	limit := append([]byte(nil), prefix...)
	if !inc(limit) {
		return c.Last()
	}
	i, _ := c.b.find(limit)
	if i == 0 {
		c.pos = 0
		return nil, nil
	}
	return c.at(i - 1)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos < 0 {
		return c.First()
	}
	return c.at(c.pos + 1)
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if c.pos <= 0 {
		c.pos = -1
		return nil, nil
	}
	return c.at(c.pos - 1)
}
