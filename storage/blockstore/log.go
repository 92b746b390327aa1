// Copyright 2024 The Erigon Payload Index Authors
// This file is part of erigon-payload-index.
//
// erigon-payload-index is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// erigon-payload-index is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with erigon-payload-index. If not, see <http://www.gnu.org/licenses/>.

// Package blockstore is the append-only block backend (spec §6: "Block
// (append-only) layouts add a wal.log for incremental mutations between
// snapshots; a background compaction rewrites to a new sealed version").
// A mutable variant index that chooses this backend over its purely
// in-memory layout writes every AddPoint/RemovePoint
// as a record here first, then periodically compacts the log into a
// fresh sealed snapshot via storage/mmapfile and truncates it.
package blockstore

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
)

// Op tags a WAL record as a point addition or removal.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpRemove
)

// Record is one logged mutation: Payload is the caller's serialized
// value (e.g. gob-encoded []common.RawValue) for OpAdd, nil for OpRemove.
type Record struct {
	Op      Op
	PointID common.PointID
	Payload []byte
}

// recordHeader is op(1) + pointID(4) + compressed-len(4) + crc32(4).
const recordHeaderSize = 1 + 4 + 4 + 4

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Log is a single append-only wal.log file. Every record's payload is
// snappy-compressed individually so a reader can stop decoding at the
// first record it doesn't need. A CRC32C over the compressed bytes lets
// Replay detect and stop at a torn write left by a crash mid-append,
// rather than propagating garbage.
type Log struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// OpenLog opens (creating if absent) the wal.log file under dir for
// appending; existing records are left untouched.
func OpenLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.ServiceError("blockstore", err)
	}
	path := filepath.Join(dir, "wal.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.ServiceError("blockstore", err)
	}
	return &Log{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (l *Log) Path() string { return l.path }

// Append writes one record and flushes it to the OS before returning, so
// a crash immediately after Append never loses an acknowledged write.
func (l *Log) Append(rec Record) error {
	compressed := snappy.Encode(nil, rec.Payload)
	var hdr [recordHeaderSize]byte
	hdr[0] = byte(rec.Op)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(rec.PointID))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(compressed)))
	sum := crc32.Checksum(compressed, crcTable)
	binary.LittleEndian.PutUint32(hdr[9:13], sum)

	if _, err := l.w.Write(hdr[:]); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	if _, err := l.w.Write(compressed); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	if err := l.w.Flush(); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	if err := l.f.Sync(); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	return nil
}

// Replay reads every complete record from the start of the log and calls
// fn in order. A truncated trailing record (the tell-tale of a crash
// mid-append) stops replay instead of failing it.
func Replay(dir string, fn func(Record) error) error {
	path := filepath.Join(dir, "wal.log")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.ServiceError("blockstore", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var hdr [recordHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return errs.ServiceError("blockstore", err)
		}
		op := Op(hdr[0])
		pointID := common.PointID(binary.LittleEndian.Uint32(hdr[1:5]))
		clen := binary.LittleEndian.Uint32(hdr[5:9])
		wantSum := binary.LittleEndian.Uint32(hdr[9:13])

		compressed := make([]byte, clen)
		if _, err := io.ReadFull(r, compressed); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return errs.ServiceError("blockstore", err)
		}
		if crc32.Checksum(compressed, crcTable) != wantSum {
			return nil // torn write at the tail; stop, don't fail the open.
		}
		payload, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil
		}
		if err := fn(Record{Op: op, PointID: pointID, Payload: payload}); err != nil {
			return err
		}
	}
}

// Truncate empties the log after a successful compaction has absorbed
// every record it held into a new sealed snapshot.
func (l *Log) Truncate() error {
	if err := l.f.Truncate(0); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	l.w = bufio.NewWriter(l.f)
	return nil
}

func (l *Log) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return errs.ServiceError("blockstore", err)
	}
	if err := l.f.Close(); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	return nil
}
