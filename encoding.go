package gridb

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeRecord appends the msgpack encoding of v to buf.
func encodeRecord(buf []byte, v any) []byte {
	bb := bytes.NewBuffer(buf)
	enc := msgpack.GetEncoder()
	enc.Reset(bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode %T using MsgPack: %w", v, err))
	}
	return bb.Bytes()
}

func decodeRecord(buf []byte, ptr any) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(ptr)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(buf, 0, err, "failed to decode msgpack into %T", ptr)
	}
	return nil
}

func getRecord[T any](buck storageBucket, key []byte) (*T, error) {
	raw := buck.Get(key)
	if raw == nil {
		return nil, nil
	}
	rec := new(T)
	if err := decodeRecord(raw, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// mustGetRecord is getRecord for records whose presence is implied by
// another record; a missing or corrupt record is a storage inconsistency.
func mustGetRecord[T any](buck storageBucket, key []byte) *T {
	rec := must(getRecord[T](buck, key))
	if rec == nil {
		panic(dataErrf(key, 0, nil, "missing %T record", rec))
	}
	return rec
}

func putRecord(buck storageBucket, key []byte, v any) {
	ensure(buck.Put(key, encodeRecord(nil, v)))
}
