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

// Package fulltext implements the full-text field index (spec §4.4):
// tokenize, drop stop words, stem, and index (token_id, position) pairs
// per point, supporting match-text (token-set intersection) and
// match-phrase (positional adjacency) queries.
//
// Grounded on original_source/field_index_base.rs's FullTextIndex
// description and the two stop-word source files it ships (french,
// hungarian). Like boolindex and nullindex, there is one Index type
// rather than a mutable/immutable split: postings-with-positions and
// variable-length token strings don't admit the fixed-width
// binary-searchable array numeric/mapindex use, so the immutable
// instance materializes its dictionary, postings and forward index
// fully into memory at Load time — the same tradeoff geoindex accepts
// for its per-level cell postings.
package fulltext

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/fieldindex/fulltext/stopwords"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

// Config is the per-field tokenizer configuration (spec §4.4): language
// selects both the stop-word corpus and, when Stemming is set, the
// snowball algorithm; Phrase enables position tracking so match-phrase
// queries are supported (without it only match-text is native and
// match-phrase falls through to SpecialCheckCondition).
type Config struct {
	Language string
	Stemming bool
	Phrase   bool
}

// analyzedToken is one token at its position in the original stream,
// post casefold/stem, with whether it was dropped as a stop word.
type analyzedToken struct {
	Term string
	Pos  int
	Stop bool
}

// analyze runs the full spec §4.4 pipeline (normalize, casefold, split,
// stop-word tag, stem) over one text value. Positions are assigned
// before stop-word removal so phrase adjacency survives it.
func analyze(cfg Config, text string) []analyzedToken {
	raw := rawTokenize(text)
	stopSet, _ := stopwordSet(cfg.Language)
	out := make([]analyzedToken, len(raw))
	for i, t := range raw {
		_, isStop := stopSet[t]
		term := t
		if !isStop && cfg.Stemming {
			term = stem(cfg.Language, t)
		}
		out[i] = analyzedToken{Term: term, Pos: i, Stop: isStop}
	}
	return out
}

// Index is the single physical layout for full-text.
type Index struct {
	field string
	dir   string
	cfg   Config

	dict    map[string]uint32
	reverse []string

	postingIDs map[uint32]*roaring.Bitmap
	postingPos map[uint32]map[common.PointID][]uint32 // nil when !cfg.Phrase

	forward map[common.PointID][][]string
	tracked *roaring.Bitmap

	onDisk bool
}

// NewMutable returns an empty in-memory full-text index for field.
func NewMutable(field string, cfg Config) *Index {
	idx := &Index{
		field:      field,
		cfg:        cfg,
		dict:       make(map[string]uint32),
		postingIDs: make(map[uint32]*roaring.Bitmap),
		forward:    make(map[common.PointID][][]string),
		tracked:    roaring.New(),
	}
	if cfg.Phrase {
		idx.postingPos = make(map[uint32]map[common.PointID][]uint32)
	}
	return idx
}

func (idx *Index) internTerm(term string) uint32 {
	if id, ok := idx.dict[term]; ok {
		return id
	}
	id := uint32(len(idx.reverse))
	idx.dict[term] = id
	idx.reverse = append(idx.reverse, term)
	return id
}

func (idx *Index) CountIndexedPoints() uint64 { return idx.tracked.GetCardinality() }

// AddPoint tokenizes every string value for id and indexes the
// non-stop-word tokens; all values for the field are pre-cleared first
// (spec §4.7 idempotency).
func (idx *Index) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if err := idx.RemovePoint(id); err != nil {
		return err
	}
	flat := common.FlattenOneLevel(values)
	var perValue [][]string
	var any bool
	for _, v := range flat {
		s, ok := common.AsKeyword(v)
		if !ok {
			continue
		}
		any = true
		perValue = append(perValue, idx.indexOneValue(id, s, hw))
	}
	if any {
		idx.tracked.Add(uint32(id))
		idx.forward[id] = perValue
	}
	return nil
}

func (idx *Index) indexOneValue(id common.PointID, text string, hw *hwcounter.Counter) []string {
	analyzed := analyze(idx.cfg, text)
	terms := make([]string, len(analyzed))
	for i, a := range analyzed {
		terms[i] = a.Term
		if a.Stop {
			continue
		}
		hw.AddComparisons(1)
		tid := idx.internTerm(a.Term)
		bm, ok := idx.postingIDs[tid]
		if !ok {
			bm = roaring.New()
			idx.postingIDs[tid] = bm
		}
		bm.Add(uint32(id))
		if idx.cfg.Phrase {
			posMap, ok := idx.postingPos[tid]
			if !ok {
				posMap = make(map[common.PointID][]uint32)
				idx.postingPos[tid] = posMap
			}
			posMap[id] = append(posMap[id], uint32(a.Pos))
		}
	}
	return terms
}

func (idx *Index) RemovePoint(id common.PointID) error {
	perValue, ok := idx.forward[id]
	if ok {
		for _, terms := range perValue {
			for _, term := range terms {
				tid, ok := idx.dict[term]
				if !ok {
					continue
				}
				if bm := idx.postingIDs[tid]; bm != nil {
					bm.Remove(uint32(id))
					if bm.IsEmpty() {
						delete(idx.postingIDs, tid)
					}
				}
				if idx.postingPos != nil {
					if pm := idx.postingPos[tid]; pm != nil {
						delete(pm, id)
						if len(pm) == 0 {
							delete(idx.postingPos, tid)
						}
					}
				}
			}
		}
		delete(idx.forward, id)
	}
	idx.tracked.Remove(uint32(id))
	return nil
}

func bitmapIter(bm *roaring.Bitmap, hw *hwcounter.Counter) query.PointIter {
	return func(yield func(common.PointID) bool) {
		it := bm.Iterator()
		for it.HasNext() {
			hw.AddPostingBytes(4)
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// requiredTokenIDs analyzes query, drops stop words, and resolves each
// surviving term to its dictionary id. ok is false only when a
// non-stop-word term has no postings at all (query can never match).
func (idx *Index) requiredTokenIDs(query string) (ids []uint32, ok bool) {
	for _, a := range analyze(idx.cfg, query) {
		if a.Stop {
			continue
		}
		tid, found := idx.dict[a.Term]
		if !found {
			return nil, false
		}
		ids = append(ids, tid)
	}
	return ids, true
}

func (idx *Index) intersect(ids []uint32) *roaring.Bitmap {
	var result *roaring.Bitmap
	for i, tid := range ids {
		bm := idx.postingIDs[tid]
		if bm == nil {
			return roaring.New()
		}
		if i == 0 {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
	}
	return result
}

func (idx *Index) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	switch cond.Shape() {
	case query.ShapeMatchText:
		ids, ok := idx.requiredTokenIDs(*cond.Match.Text)
		if !ok {
			return bitmapIter(roaring.New(), hw), true
		}
		if len(ids) == 0 {
			return bitmapIter(idx.tracked, hw), true
		}
		return bitmapIter(idx.intersect(ids), hw), true

	case query.ShapeMatchPhrase:
		if !idx.cfg.Phrase {
			return nil, false
		}
		toks := analyze(idx.cfg, *cond.Match.Phrase)
		var nonStop []uint32
		for _, a := range toks {
			if a.Stop {
				continue
			}
			tid, found := idx.dict[a.Term]
			if !found {
				return bitmapIter(roaring.New(), hw), true
			}
			nonStop = append(nonStop, tid)
		}
		var candidates *roaring.Bitmap
		if len(nonStop) == 0 {
			candidates = idx.tracked.Clone()
		} else {
			candidates = idx.intersect(nonStop)
		}
		return func(yield func(common.PointID) bool) {
			it := candidates.Iterator()
			for it.HasNext() {
				id := it.Next()
				hw.AddPostingBytes(4)
				if idx.phraseMatchesPoint(id, toks) {
					if !yield(id) {
						return
					}
				}
			}
		}, true

	default:
		return nil, false
	}
}

func (idx *Index) phraseMatchesPoint(id common.PointID, toks []analyzedToken) bool {
	n := len(toks)
	if n == 0 {
		return true
	}
	for _, vt := range idx.forward[id] {
		for p := 0; p+n <= len(vt); p++ {
			match := true
			for i, a := range toks {
				if a.Stop {
					continue
				}
				if vt[p+i] != a.Term {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}

func (idx *Index) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	total := idx.CountIndexedPoints()
	switch cond.Shape() {
	case query.ShapeMatchText:
		ids, ok := idx.requiredTokenIDs(*cond.Match.Text)
		if !ok || total == 0 {
			return query.Exact(0), true
		}
		if len(ids) == 0 {
			return query.Exact(total), true
		}
		return idx.independenceEstimate(ids, total), true

	case query.ShapeMatchPhrase:
		if !idx.cfg.Phrase {
			return query.Estimate{}, false
		}
		toks := analyze(idx.cfg, *cond.Match.Phrase)
		var ids []uint32
		for _, a := range toks {
			if a.Stop {
				continue
			}
			tid, found := idx.dict[a.Term]
			if !found {
				return query.Exact(0), true
			}
			ids = append(ids, tid)
		}
		if total == 0 || len(ids) == 0 {
			return query.Exact(total), true
		}
		est := idx.independenceEstimate(ids, total)
		// Phrase match is a stricter condition than text match with no
		// retained positional statistics to sharpen the estimate
		// further, so approximate expected as half the text-match
		// estimate (a phrase can never exceed the text match count).
		est.Expected /= 2
		return est.Clamp(total), true
	}
	return query.Estimate{}, false
}

// independenceEstimate assumes token occurrence is independent across a
// multi-token query, the same assumption spec §4.2/§9 uses for numeric
// selectivity composition.
func (idx *Index) independenceEstimate(ids []uint32, total uint64) query.Estimate {
	minCard := total
	prod := 1.0
	for _, tid := range ids {
		bm := idx.postingIDs[tid]
		var c uint64
		if bm != nil {
			c = bm.GetCardinality()
		}
		if c < minCard {
			minCard = c
		}
		prod *= float64(c) / float64(total)
	}
	expected := uint64(prod * float64(total))
	return query.Estimate{Min: 0, Expected: expected, Max: minCard}.Clamp(total)
}

// PayloadBlocks: full-text does not emit blocks (spec §4.1).
func (idx *Index) PayloadBlocks(int, string) query.BlockIter {
	return func(func(query.Block) bool) {}
}

// SpecialCheckCondition is full-text's override (spec §6: "only
// full-text overrides it") — it re-tokenizes raw directly rather than
// consulting postings, since whether a token survives stop-word
// removal/stemming is information the raw value alone doesn't carry.
func (idx *Index) SpecialCheckCondition(cond query.Condition, raw []common.RawValue) (bool, bool) {
	switch cond.Shape() {
	case query.ShapeMatchText:
		return idx.checkText(*cond.Match.Text, raw), true
	case query.ShapeMatchPhrase:
		return idx.checkPhrase(*cond.Match.Phrase, raw), true
	default:
		return false, false
	}
}

func (idx *Index) valueTermLists(raw []common.RawValue) [][]string {
	flat := common.FlattenOneLevel(raw)
	var out [][]string
	for _, v := range flat {
		s, ok := common.AsKeyword(v)
		if !ok {
			continue
		}
		analyzed := analyze(idx.cfg, s)
		terms := make([]string, len(analyzed))
		for i, a := range analyzed {
			terms[i] = a.Term
		}
		out = append(out, terms)
	}
	return out
}

func (idx *Index) checkText(q string, raw []common.RawValue) bool {
	need := map[string]struct{}{}
	for _, a := range analyze(idx.cfg, q) {
		if !a.Stop {
			need[a.Term] = struct{}{}
		}
	}
	if len(need) == 0 {
		return true
	}
	have := map[string]struct{}{}
	for _, terms := range idx.valueTermLists(raw) {
		for _, t := range terms {
			have[t] = struct{}{}
		}
	}
	for t := range need {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

func (idx *Index) checkPhrase(q string, raw []common.RawValue) bool {
	toks := analyze(idx.cfg, q)
	n := len(toks)
	if n == 0 {
		return true
	}
	for _, vt := range idx.valueTermLists(raw) {
		for p := 0; p+n <= len(vt); p++ {
			match := true
			for i, a := range toks {
				if a.Stop {
					continue
				}
				if vt[p+i] != a.Term {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}

func (idx *Index) Populate() error   { return nil }
func (idx *Index) ClearCache() error { return nil }
func (idx *Index) IsOnDisk() bool    { return idx.onDisk }

func (idx *Index) GetTelemetryData() query.Telemetry {
	var postings uint64
	for _, bm := range idx.postingIDs {
		postings += bm.GetCardinality()
	}
	return query.Telemetry{
		FieldName:     idx.field,
		PointsCount:   idx.CountIndexedPoints(),
		PostingsCount: postings,
	}
}

func (idx *Index) GetFullIndexType() common.FullIndexType {
	storage := common.StorageInMemory
	mut := common.Mutable
	if idx.onDisk {
		storage = common.StorageMmap
		mut = common.Immutable
	}
	return common.FullIndexType{Kind: common.VariantFullText, Mutability: mut, Storage: storage}
}

func stopwordSet(language string) (map[string]struct{}, bool) {
	return stopwords.Lookup(language)
}
