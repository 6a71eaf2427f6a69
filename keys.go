package gridb

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	idLen      = 16
	posLen     = 4
	posKeyLen  = idLen + posLen
	cellKeyLen = idLen + idLen

	maxIndex = math.MaxInt32
)

const (
	tablesBucket      = "tables"
	rowsBucket        = "rows"
	columnsBucket     = "columns"
	rowPosBucket      = "row_pos"
	columnPosBucket   = "column_pos"
	cellsBucket       = "cells"
	cardsBucket       = "cards"
	cardsRecentBucket = "cards_recent"
)

var allBuckets = []string{
	tablesBucket,
	rowsBucket,
	columnsBucket,
	rowPosBucket,
	columnPosBucket,
	cellsBucket,
	cardsBucket,
	cardsRecentBucket,
}

// posKey is tableID followed by a big-endian index, so that a prefix scan
// over the table ID visits entities in index order.
func posKey(buf []byte, tbl [idLen]byte, index int) []byte {
	if index < 0 || index > maxIndex {
		panic(fmt.Errorf("index %d out of encodable range", index))
	}
	buf = append(buf, tbl[:]...)
	return binary.BigEndian.AppendUint32(buf, uint32(index))
}

func decodePosKey(key []byte) (tbl [idLen]byte, index int) {
	if len(key) != posKeyLen {
		panic(dataErrf(key, 0, nil, "invalid position key length %d", len(key)))
	}
	copy(tbl[:], key[:idLen])
	return tbl, int(binary.BigEndian.Uint32(key[idLen:]))
}

func cellKey(buf []byte, row RowID, col ColumnID) []byte {
	buf = append(buf, row[:]...)
	return append(buf, col[:]...)
}

func decodeCellKey(key []byte) (row RowID, col ColumnID) {
	if len(key) != cellKeyLen {
		panic(dataErrf(key, 0, nil, "invalid cell key length %d", len(key)))
	}
	copy(row[:], key[:idLen])
	copy(col[:], key[idLen:])
	return
}

func decodeID(raw []byte) (id [idLen]byte) {
	if len(raw) != idLen {
		panic(dataErrf(raw, 0, nil, "invalid id length %d", len(raw)))
	}
	copy(id[:], raw)
	return
}
