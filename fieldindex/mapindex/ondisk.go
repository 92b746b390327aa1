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

package mapindex

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/blockstore"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

// gob needs every concrete type that flows through the common.RawValue
// (any) interface registered once, since WAL records and compaction
// snapshots serialize raw payload values directly.
func init() {
	gob.Register(int64(0))
	gob.Register("")
	gob.Register(uuid.UUID{})
}

// OnDiskMutable is the append-only block storage backend (spec §2 "3.
// storage backends ... append-only block store"): an in-memory Mutable
// that every mutation is durably logged to storage/blockstore's wal.log
// before it is applied, and periodically compacted into a gob-encoded
// snapshot so Load doesn't have to replay the log from the beginning of
// time.
//
// Embedding *Mutable gives OnDiskMutable the full query.VariantIndex
// surface for free; only the lifecycle methods that touch durability
// (AddPoint, RemovePoint, Load, Flusher, Files, ImmutableFiles, Cleanup,
// Populate, ClearCache, IsOnDisk, GetFullIndexType, GetTelemetryData)
// are overridden below.
type OnDiskMutable struct {
	*Mutable
	field string
	dir   string
	store *blockstore.Store
}

const snapshotFile = "snapshot.bin"

func snapshotPathFull(dir string) string { return filepath.Join(dir, snapshotFile) }

// NewOnDiskMutable opens (creating if absent) dir's WAL and replays any
// snapshot plus trailing log records to rebuild the in-memory state.
func NewOnDiskMutable(dir, field string, domain Domain) (*OnDiskMutable, error) {
	store, err := blockstore.Open(dir)
	if err != nil {
		return nil, err
	}
	idx := &OnDiskMutable{Mutable: NewMutable(field, domain), field: field, dir: dir, store: store}
	if err := idx.replay(); err != nil {
		store.Close()
		return nil, err
	}
	return idx, nil
}

type gobEntry struct {
	Values []common.RawValue
}

func (idx *OnDiskMutable) replay() error {
	if sealed, buf, err := mmapfile.Open(snapshotPathFull(idx.dir)); err == nil {
		defer sealed.Close()
		var snap map[common.PointID][]common.RawValue
		if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&snap); err != nil {
			return errs.ServiceError(idx.field, err)
		}
		ids := make([]common.PointID, 0, len(snap))
		for id := range snap {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		hw := hwcounter.New()
		for _, id := range ids {
			if err := idx.Mutable.AddPoint(id, snap[id], hw); err != nil {
				return err
			}
		}
	}
	return idx.store.Replay(func(rec blockstore.Record) error {
		hw := hwcounter.New()
		switch rec.Op {
		case blockstore.OpAdd:
			var e gobEntry
			if err := gob.NewDecoder(bytes.NewReader(rec.Payload)).Decode(&e); err != nil {
				return errs.ServiceError(idx.field, err)
			}
			return idx.Mutable.AddPoint(rec.PointID, e.Values, hw)
		case blockstore.OpRemove:
			return idx.Mutable.RemovePoint(rec.PointID)
		}
		return nil
	})
}

func (idx *OnDiskMutable) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobEntry{Values: values}); err != nil {
		return errs.ServiceError(idx.field, err)
	}
	if err := idx.store.Append(blockstore.Record{Op: blockstore.OpAdd, PointID: id, Payload: buf.Bytes()}); err != nil {
		return err
	}
	return idx.Mutable.AddPoint(id, values, hw)
}

func (idx *OnDiskMutable) RemovePoint(id common.PointID) error {
	if err := idx.store.Append(blockstore.Record{Op: blockstore.OpRemove, PointID: id}); err != nil {
		return err
	}
	return idx.Mutable.RemovePoint(id)
}

func (idx *OnDiskMutable) Load() (bool, error) {
	return true, idx.replay()
}

// Flusher compacts the WAL: a fresh gob snapshot of the current forward
// map is sealed first, and only once that succeeds is the log
// truncated, so a crash mid-compaction leaves the previous snapshot
// plus an intact log rather than a half-written one (spec §6 "a
// background compaction rewrites to a new sealed version").
func (idx *OnDiskMutable) Flusher() func() error {
	return func() error {
		return idx.store.Compact(func() error {
			snap := make(map[common.PointID][]common.RawValue, len(idx.forward))
			for id, keys := range idx.forward {
				vals := make([]common.RawValue, len(keys))
				for i, k := range keys {
					vals[i] = idx.domain.decode(k)
				}
				snap[id] = vals
			}
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
				return errs.ServiceError(idx.field, err)
			}
			return mmapfile.WriteSealed(idx.dir, snapshotFile, buf.Bytes())
		})
	}
}

func (idx *OnDiskMutable) Files() []string {
	return []string{snapshotPathFull(idx.dir)}
}

// ImmutableFiles is empty: this backend never seals a read-only layout
// of its own, only compaction snapshots it may still append to later.
func (idx *OnDiskMutable) ImmutableFiles() []string { return nil }

func (idx *OnDiskMutable) Cleanup() error {
	if err := idx.store.Close(); err != nil {
		return err
	}
	return mmapfile.RemoveAll(idx.dir)
}

func (idx *OnDiskMutable) Populate() error   { return nil }
func (idx *OnDiskMutable) ClearCache() error { return nil }
func (idx *OnDiskMutable) IsOnDisk() bool    { return true }

func (idx *OnDiskMutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: idx.domain.Variant(), Mutability: common.Mutable, Storage: common.StorageBlock}
}

func (idx *OnDiskMutable) GetTelemetryData() query.Telemetry {
	t := idx.Mutable.GetTelemetryData()
	return t
}
