package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Record is one committed record as seen by a reader.
type Record struct {
	Segment   uint32
	Timestamp uint32
	Data      []byte
}

// Read calls f for every committed record in dir, oldest first. Records of
// a commit are delivered only after its checksum has been verified. Reading
// stops quietly at the first torn or corrupted tail; an error returned by f
// aborts reading and is returned as is.
func Read(dir string, o Options, f func(rec Record) error) error {
	j := New(dir, o)
	names, err := listSegments(dir, j.fileNamePrefix, j.fileNameSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	var expectedSeg uint32
	for i, name := range names {
		seg, _, _, err := j.parseSegmentName(name)
		if err != nil {
			return err
		}
		if i > 0 && seg != expectedSeg {
			j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: segment gap", slog.String("jrnl", j.debugName), slog.String("file", name), slog.Uint64("expected", uint64(expectedSeg)))
			return nil
		}
		expectedSeg = seg + 1

		complete, err := j.readSegment(name, seg, f)
		if err != nil {
			return err
		}
		if !complete {
			return nil
		}
	}
	return nil
}

// readSegment returns false if the segment ended with a torn or corrupted
// tail; later segments are not trusted then.
func (j *Journal) readSegment(name string, seg uint32, f func(rec Record) error) (bool, error) {
	file, err := j.openFile(name, false)
	if err != nil {
		return false, err
	}
	defer file.Close()

	var hash xxhash.Digest
	hash.Reset()

	var h segmentHeader
	err = j.readHeader(file, &h, seg, &hash)
	if err == errCorruptedFile {
		j.corrupted(name, 0, "header")
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}

	r := bufio.NewReader(file)
	ts := h.Timestamp
	off := int64(segmentHeaderSize)
	var pending []Record
	for {
		b, err := r.Peek(1)
		if err == io.EOF {
			if len(pending) > 0 {
				j.corrupted(name, off, "uncommitted records")
				return false, nil
			}
			return true, nil
		} else if err != nil {
			return false, err
		}

		if b[0]&recordFlagCommit != 0 {
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				j.corrupted(name, off, "short commit")
				return false, nil
			}
			actual := binary.LittleEndian.Uint64(buf[:]) &^ uint64(recordFlagCommit)
			expected := hash.Sum64() &^ uint64(recordFlagCommit)
			if actual != expected {
				j.corrupted(name, off, "checksum mismatch")
				return false, nil
			}
			hash.Write(buf[:])
			off += int64(len(buf))

			for _, rec := range pending {
				if err := f(rec); err != nil {
					return false, err
				}
			}
			pending = pending[:0]
			continue
		}

		sizeAndFlags, err := binary.ReadUvarint(r)
		if err != nil {
			j.corrupted(name, off, "record size")
			return false, nil
		}
		tsDelta, err := binary.ReadUvarint(r)
		if err != nil || tsDelta > 0xFFFF_FFFF {
			j.corrupted(name, off, "record timestamp")
			return false, nil
		}
		size := sizeAndFlags >> recordFlagShift
		if size > maxRecordSize {
			j.corrupted(name, off, "record too large")
			return false, nil
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			j.corrupted(name, off, "short record")
			return false, nil
		}

		var hbuf [maxRecHeaderLen]byte
		rh := appendRecordHeader(hbuf[:0], int(size), uint32(tsDelta))
		hash.Write(rh)
		hash.Write(data)
		off += int64(len(rh)) + int64(size)

		ts += uint32(tsDelta)
		pending = append(pending, Record{Segment: seg, Timestamp: ts, Data: data})
	}
}

const maxRecordSize = 1 << 30

func (j *Journal) corrupted(name string, off int64, reason string) {
	j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: stopping at damaged tail", slog.String("jrnl", j.debugName), slog.String("file", name), slog.Int64("off", off), slog.String("reason", reason))
}
