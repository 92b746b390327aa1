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

// Package mmapfile is the on-disk immutable mmap layout shared by the
// numeric and map indexes' immutable backends (spec §6 "On-disk
// layout"). It owns the sealed file's header, checksum, and the
// populate/clear-cache suspension points (spec §5).
package mmapfile

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"

	"github.com/erigontech/erigon-payload-index/common"
)

// Magic identifies an erigon-payload-index sealed file; distinct from
// any value a stray file of another format could produce.
const Magic uint64 = 0x45504958_46494c44 // "EPIXFILD"

// HeaderSize is the fixed little-endian header: magic, version, variant
// tag, flags, point count (spec §6).
const HeaderSize = 8 + 4 + 4 + 4 + 8

// Header is the fixed prefix of every sealed index.meta file.
type Header struct {
	Version    uint32
	Variant    common.VariantKind
	Flags      uint32
	PointCount uint64
}

// CurrentVersion is bumped whenever the sealed layout's schema changes;
// DecodeHeader reports any other version as ErrVersionMismatch. No index
// Load in this module reads the header back, so opening a layout does
// not check its version.
const CurrentVersion uint32 = 1

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.Variant))
	binary.LittleEndian.PutUint32(buf[16:20], h.Flags)
	binary.LittleEndian.PutUint64(buf[20:28], h.PointCount)
	return buf
}

// ErrBadMagic and ErrVersionMismatch are returned by DecodeHeader so
// callers can wrap them with errs.ServiceError/ChecksumMismatch as fits
// the call site.
var (
	ErrBadMagic        = errBadMagic{}
	ErrVersionMismatch = errVersionMismatch{}
)

type errBadMagic struct{}

func (errBadMagic) Error() string { return "mmapfile: bad magic" }

type errVersionMismatch struct{}

func (errVersionMismatch) Error() string { return "mmapfile: version mismatch" }

func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrBadMagic
	}
	if binary.LittleEndian.Uint64(buf[0:8]) != Magic {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version:    binary.LittleEndian.Uint32(buf[8:12]),
		Variant:    common.VariantKind(binary.LittleEndian.Uint32(buf[12:16])),
		Flags:      binary.LittleEndian.Uint32(buf[16:20]),
		PointCount: binary.LittleEndian.Uint64(buf[20:28]),
	}
	if h.Version != CurrentVersion {
		return h, ErrVersionMismatch
	}
	return h, nil
}

// WriteSealed atomically writes name under dir with a trailing CRC32C
// checksum, via write-to-temp-then-rename so a crash mid-write never
// leaves a corrupt file where a reader expects a sealed one.
func WriteSealed(dir, name string, payload []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	sum := crc32.Checksum(payload, crc32.MakeTable(crc32.Castagnoli))
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	var sumBuf [4]byte
	binary.LittleEndian.PutUint32(sumBuf[:], sum)
	if _, err := tmp.Write(sumBuf[:]); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, filepath.Join(dir, name))
}

// Sealed is an mmap-backed read-only view of a sealed file, with its
// trailing checksum already verified.
type Sealed struct {
	path string
	f    *os.File
	m    mmap.MMap
}

// Open mmaps path and verifies its trailing CRC32C checksum, returning
// ErrChecksum when the stored and computed sums differ to the
// caller, who wraps it as errs.ChecksumMismatch.
func Open(path string) (*Sealed, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if len(m) < 4 {
		m.Unmap()
		f.Close()
		return nil, nil, ErrBadMagic
	}
	payload := []byte(m[:len(m)-4])
	wantSum := binary.LittleEndian.Uint32(m[len(m)-4:])
	gotSum := crc32.Checksum(payload, crc32.MakeTable(crc32.Castagnoli))
	if gotSum != wantSum {
		m.Unmap()
		f.Close()
		return nil, nil, ErrChecksum
	}
	return &Sealed{path: path, f: f, m: m}, payload, nil
}

var ErrChecksum = errChecksum{}

type errChecksum struct{}

func (errChecksum) Error() string { return "mmapfile: checksum mismatch" }

// maxPopulated bounds how many sealed files can be prefaulted into the
// resident set at once. populateTracker evicts the least-recently
// populated file's pages (via madvise DONTNEED) once a process holds
// more than this many populated mappings open, so Populate() itself
// stays a local accounting decision rather than something every caller
// must coordinate.
const maxPopulated = 64

var populateTracker = newTracker()

type tracker struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Sealed]
}

func newTracker() *tracker {
	t := &tracker{}
	// The evict callback runs synchronously under the LRU's own lock, so
	// it must not re-enter the cache; clearCache only touches the
	// mapping, which is safe here.
	c, _ := lru.NewWithEvict(maxPopulated, func(_ string, s *Sealed) {
		_ = s.clearCache()
	})
	t.cache = c
	return t
}

func (t *tracker) touch(s *Sealed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Add(s.path, s)
}

func (t *tracker) forget(s *Sealed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Remove(s.path)
}

// Populate prefaults every page of the mapping by touching one byte per
// 4KiB page — the suspension point spec §5 requires to block until done
// — and records the file in the process-wide populate LRU (spec §6
// "page cache / populate accounting") so a bounded number of sealed
// files can be resident at once.
func (s *Sealed) Populate() error {
	const pageSize = 4096
	var sink byte
	for i := 0; i < len(s.m); i += pageSize {
		sink += s.m[i]
	}
	_ = sink
	populateTracker.touch(s)
	return nil
}

// ClearCache issues a madvise(DONTNEED)-equivalent over the mapping and
// drops it from the populate LRU, since it no longer counts as resident.
func (s *Sealed) ClearCache() error {
	populateTracker.forget(s)
	return s.clearCache()
}

func (s *Sealed) clearCache() error {
	return unix.Madvise([]byte(s.m), unix.MADV_DONTNEED)
}

func (s *Sealed) Path() string { return s.path }

func (s *Sealed) Close() error {
	populateTracker.forget(s)
	if err := s.m.Unmap(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
