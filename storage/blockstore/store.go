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

package blockstore

import (
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/erigontech/erigon-payload-index/common/errs"
)

// Store pairs a wal.log with a directory-level flock so two processes
// never append to (or compact) the same block-backed index concurrently.
// A single process still serializes its own writers with writeMu; flock
// only guards against a second OS process opening the same directory.
type Store struct {
	dir  string
	lock *flock.Flock

	writeMu sync.Mutex
	log     *Log

	compactMu sync.Mutex
}

// Open acquires dir's LOCK file and opens its wal.log for appending.
// It blocks until the lock is available, matching the rest of the
// engine's blocking-I/O-only-in-load/flusher contract (spec §5).
func Open(dir string) (*Store, error) {
	lock := flock.New(filepath.Join(dir, "LOCK"))
	if err := lock.Lock(); err != nil {
		return nil, errs.ServiceError("blockstore", err)
	}
	log, err := OpenLog(dir)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return &Store{dir: dir, lock: lock, log: log}, nil
}

// Append serializes one mutation behind writeMu and fsyncs before
// returning, so the caller may treat a successful Append as durable.
func (s *Store) Append(rec Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.log.Append(rec)
}

// Replay walks every record currently in the log, in append order.
func (s *Store) Replay(fn func(Record) error) error {
	return Replay(s.dir, fn)
}

// Compact runs snapshot (expected to durably persist the backend's
// current in-memory state as a fresh sealed version) and, only once it
// succeeds, truncates the log — so a crash mid-compaction leaves the old
// log intact and replay picks up exactly where the last good snapshot
// left off. Concurrent Append calls are blocked for the duration.
func (s *Store) Compact(snapshot func() error) error {
	s.compactMu.Lock()
	defer s.compactMu.Unlock()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := snapshot(); err != nil {
		return err
	}
	return s.log.Truncate()
}

func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.log.Close(); err != nil {
		s.lock.Unlock()
		return err
	}
	if err := s.lock.Unlock(); err != nil {
		return errs.ServiceError("blockstore", err)
	}
	return nil
}
