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

package fulltext

import (
	"encoding/binary"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

const (
	flagStemming uint8 = 1 << 0
	flagPhrase   uint8 = 1 << 1
)

func dictPath(dir string) string     { return filepath.Join(dir, "dict.bin") }
func postingsPath(dir string) string { return filepath.Join(dir, "postings.bin") }
func forwardPath(dir string) string  { return filepath.Join(dir, "forward.bin") }
func trackedPath(dir string) string  { return filepath.Join(dir, "tracked.bitmap") }
func configPath(dir string) string   { return filepath.Join(dir, "config.bin") }

// OpenImmutable loads a previously-sealed full-text index directory.
func OpenImmutable(dir, field string) (*Index, error) {
	idx := &Index{field: field, dir: dir, onDisk: true}
	if _, err := idx.Load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) Load() (bool, error) {
	if idx.dir == "" {
		return true, nil
	}

	cfgSealed, cfgBuf, err := mmapfile.Open(configPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	defer cfgSealed.Close()
	langLen := int(cfgBuf[0])
	idx.cfg = Config{
		Language: string(cfgBuf[1 : 1+langLen]),
		Stemming: cfgBuf[1+langLen]&flagStemming != 0,
		Phrase:   cfgBuf[1+langLen]&flagPhrase != 0,
	}

	dictSealed, dictBuf, err := mmapfile.Open(dictPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	defer dictSealed.Close()
	idx.dict = make(map[string]uint32)
	idx.reverse = nil
	for off := 0; off < len(dictBuf); {
		n := int(binary.LittleEndian.Uint16(dictBuf[off : off+2]))
		off += 2
		term := string(dictBuf[off : off+n])
		off += n
		idx.dict[term] = uint32(len(idx.reverse))
		idx.reverse = append(idx.reverse, term)
	}

	postSealed, postBuf, err := mmapfile.Open(postingsPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	defer postSealed.Close()
	idx.postingIDs = make(map[uint32]*roaring.Bitmap)
	if idx.cfg.Phrase {
		idx.postingPos = make(map[uint32]map[common.PointID][]uint32)
	}
	for off := 0; off < len(postBuf); {
		tid := binary.LittleEndian.Uint32(postBuf[off : off+4])
		off += 4
		bmLen := int(binary.LittleEndian.Uint32(postBuf[off : off+4]))
		off += 4
		bm := roaring.New()
		if _, err := bm.FromBuffer(postBuf[off : off+bmLen]); err != nil {
			return false, errs.ServiceError(idx.field, err)
		}
		off += bmLen
		idx.postingIDs[tid] = bm
		nEntries := int(binary.LittleEndian.Uint32(postBuf[off : off+4]))
		off += 4
		if nEntries > 0 {
			posMap := make(map[common.PointID][]uint32, nEntries)
			for e := 0; e < nEntries; e++ {
				pid := binary.LittleEndian.Uint32(postBuf[off : off+4])
				off += 4
				nPos := int(binary.LittleEndian.Uint32(postBuf[off : off+4]))
				off += 4
				positions := make([]uint32, nPos)
				for p := 0; p < nPos; p++ {
					positions[p] = binary.LittleEndian.Uint32(postBuf[off : off+4])
					off += 4
				}
				posMap[pid] = positions
			}
			idx.postingPos[tid] = posMap
		}
	}

	fwdSealed, fwdBuf, err := mmapfile.Open(forwardPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	defer fwdSealed.Close()
	idx.forward = make(map[common.PointID][][]string)
	for off := 0; off < len(fwdBuf); {
		pid := binary.LittleEndian.Uint32(fwdBuf[off : off+4])
		off += 4
		nValues := int(binary.LittleEndian.Uint16(fwdBuf[off : off+2]))
		off += 2
		values := make([][]string, nValues)
		for v := 0; v < nValues; v++ {
			nTokens := int(binary.LittleEndian.Uint16(fwdBuf[off : off+2]))
			off += 2
			terms := make([]string, nTokens)
			for t := 0; t < nTokens; t++ {
				tl := int(binary.LittleEndian.Uint16(fwdBuf[off : off+2]))
				off += 2
				terms[t] = string(fwdBuf[off : off+tl])
				off += tl
			}
			values[v] = terms
		}
		idx.forward[pid] = values
	}

	tracked, err := mmapfile.LoadBitmap(trackedPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.tracked = tracked
	return true, nil
}

func (idx *Index) Flusher() func() error {
	return func() error {
		var flags uint8
		if idx.cfg.Stemming {
			flags |= flagStemming
		}
		if idx.cfg.Phrase {
			flags |= flagPhrase
		}
		cfgBuf := append([]byte{byte(len(idx.cfg.Language))}, idx.cfg.Language...)
		cfgBuf = append(cfgBuf, flags)
		if err := mmapfile.WriteSealed(idx.dir, "config.bin", cfgBuf); err != nil {
			return err
		}

		var dictBuf []byte
		for _, term := range idx.reverse {
			var lenBuf [2]byte
			binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(term)))
			dictBuf = append(dictBuf, lenBuf[:]...)
			dictBuf = append(dictBuf, term...)
		}
		if err := mmapfile.WriteSealed(idx.dir, "dict.bin", dictBuf); err != nil {
			return err
		}

		var postBuf []byte
		for tid := uint32(0); int(tid) < len(idx.reverse); tid++ {
			bm, ok := idx.postingIDs[tid]
			if !ok {
				bm = roaring.New()
			}
			data, err := bm.ToBytes()
			if err != nil {
				return errs.ServiceError(idx.field, err)
			}
			var hdr [8]byte
			binary.LittleEndian.PutUint32(hdr[0:4], tid)
			binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(data)))
			postBuf = append(postBuf, hdr[:]...)
			postBuf = append(postBuf, data...)

			posMap := idx.postingPos[tid]
			var cntBuf [4]byte
			binary.LittleEndian.PutUint32(cntBuf[:], uint32(len(posMap)))
			postBuf = append(postBuf, cntBuf[:]...)
			if len(posMap) > 0 {
				pids := make([]common.PointID, 0, len(posMap))
				for pid := range posMap {
					pids = append(pids, pid)
				}
				sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
				for _, pid := range pids {
					positions := posMap[pid]
					var entry [8]byte
					binary.LittleEndian.PutUint32(entry[0:4], uint32(pid))
					binary.LittleEndian.PutUint32(entry[4:8], uint32(len(positions)))
					postBuf = append(postBuf, entry[:]...)
					for _, p := range positions {
						var pbuf [4]byte
						binary.LittleEndian.PutUint32(pbuf[:], p)
						postBuf = append(postBuf, pbuf[:]...)
					}
				}
			}
		}
		if err := mmapfile.WriteSealed(idx.dir, "postings.bin", postBuf); err != nil {
			return err
		}

		ids := make([]common.PointID, 0, len(idx.forward))
		for id := range idx.forward {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var fwdBuf []byte
		for _, id := range ids {
			values := idx.forward[id]
			var hdr [6]byte
			binary.LittleEndian.PutUint32(hdr[0:4], uint32(id))
			binary.LittleEndian.PutUint16(hdr[4:6], uint16(len(values)))
			fwdBuf = append(fwdBuf, hdr[:]...)
			for _, terms := range values {
				var nBuf [2]byte
				binary.LittleEndian.PutUint16(nBuf[:], uint16(len(terms)))
				fwdBuf = append(fwdBuf, nBuf[:]...)
				for _, term := range terms {
					var lBuf [2]byte
					binary.LittleEndian.PutUint16(lBuf[:], uint16(len(term)))
					fwdBuf = append(fwdBuf, lBuf[:]...)
					fwdBuf = append(fwdBuf, term...)
				}
			}
		}
		if err := mmapfile.WriteSealed(idx.dir, "forward.bin", fwdBuf); err != nil {
			return err
		}

		if err := mmapfile.WriteBitmap(trackedPath(idx.dir), idx.tracked); err != nil {
			return err
		}

		header := mmapfile.EncodeHeader(mmapfile.Header{
			Version:    mmapfile.CurrentVersion,
			Variant:    common.VariantFullText,
			PointCount: idx.tracked.GetCardinality(),
		})
		return mmapfile.WriteSealed(idx.dir, "index.meta", header)
	}
}

func (idx *Index) Files() []string {
	if idx.dir == "" {
		return nil
	}
	return []string{
		dictPath(idx.dir), postingsPath(idx.dir), forwardPath(idx.dir),
		trackedPath(idx.dir), configPath(idx.dir),
		filepath.Join(idx.dir, "index.meta"),
	}
}
func (idx *Index) ImmutableFiles() []string { return idx.Files() }

func (idx *Index) Cleanup() error {
	if idx.dir == "" {
		return nil
	}
	return mmapfile.RemoveAll(idx.dir)
}
