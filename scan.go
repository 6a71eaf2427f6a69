package gridb

import (
	"bytes"
	"context"
	"log/slog"
)

const (
	debugLogRawScans = false
)

// rawRange defines a range of byte strings, optionally restricted to keys
// with a given prefix. Bounds are inclusive.
type rawRange struct {
	Prefix  []byte
	Lower   []byte
	Upper   []byte
	Reverse bool
}

func rawPrefix(p []byte) rawRange                  { return rawRange{Prefix: p} }
func (rang rawRange) between(l, u []byte) rawRange { rang.Lower, rang.Upper = l, u; return rang }
func (rang rawRange) reversed() rawRange           { rang.Reverse = true; return rang }

func (r *rawRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		if r.Upper != nil {
			k, v = bcur.Seek(r.Upper)
			if k == nil {
				k, v = bcur.Last()
			} else if !bytes.Equal(k, r.Upper) {
				k, v = bcur.Prev()
			}
		} else if r.Prefix != nil {
			k, v = bcur.SeekLast(r.Prefix)
		} else {
			k, v = bcur.Last()
		}
	} else {
		if r.Lower != nil {
			k, v = bcur.Seek(r.Lower)
		} else if r.Prefix != nil {
			k, v = bcur.Seek(r.Prefix)
		} else {
			k, v = bcur.First()
		}
	}
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "START", hexAttr("key", k), slog.Bool("reverse", r.Reverse))
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *rawRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		k, v = bcur.Prev()
	} else {
		k, v = bcur.Next()
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *rawRange) match(k []byte, logger *slog.Logger) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on prefix", hexAttr("prefix", r.Prefix), hexAttr("key", k))
		}
		return false
	}
	if r.Lower != nil && bytes.Compare(k, r.Lower) < 0 {
		return false
	}
	if r.Upper != nil && bytes.Compare(k, r.Upper) > 0 {
		return false
	}
	return true
}

type rawRangeCursor struct {
	rang   rawRange
	bcur   storageCursor
	logger *slog.Logger
	k, v   []byte
	init   bool
}

func (tx *Tx) scan(bucket string, rang rawRange) *rawRangeCursor {
	return &rawRangeCursor{rang: rang, bcur: tx.bucket(bucket).Cursor(), logger: tx.db.logger}
}

func (c *rawRangeCursor) Next() bool {
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	return c.k != nil
}

func (c *rawRangeCursor) Key() []byte   { return c.k }
func (c *rawRangeCursor) Value() []byte { return c.v }

// collectKeys copies out the keys of the whole range; callers modifying the
// bucket afterwards must not rely on cursor slices.
func (c *rawRangeCursor) collectKeys() [][]byte {
	var result [][]byte
	for c.Next() {
		result = append(result, bytes.Clone(c.k))
	}
	return result
}
