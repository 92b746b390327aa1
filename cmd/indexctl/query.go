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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/fieldindex"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

// condSpec is the JSON condition shape --cond reads: a flattened view
// of query.Condition's tagged arms, one of which should be set.
type condSpec struct {
	Range *struct {
		Gt  *float64 `json:"gt"`
		Gte *float64 `json:"gte"`
		Lt  *float64 `json:"lt"`
		Lte *float64 `json:"lte"`
	} `json:"range"`
	MatchValue  any      `json:"match_value"`
	MatchAnyOf  []any    `json:"match_any_of"`
	MatchExcept []any    `json:"match_except"`
	MatchText   *string  `json:"match_text"`
	MatchPhrase *string  `json:"match_phrase"`
	GeoBoundingBox *struct {
		TopLeft     common.GeoPoint `json:"top_left"`
		BottomRight common.GeoPoint `json:"bottom_right"`
	} `json:"geo_bounding_box"`
	GeoRadius *struct {
		Center       common.GeoPoint `json:"center"`
		RadiusMeters float64         `json:"radius_meters"`
	} `json:"geo_radius"`
	IsNull  bool `json:"is_null"`
	IsEmpty bool `json:"is_empty"`
}

func (s condSpec) toCondition(field string, kind common.VariantKind) (query.Condition, error) {
	cond := query.Condition{Field: field}
	switch {
	case s.Range != nil:
		cond.Range = &query.Range{Gt: s.Range.Gt, Gte: s.Range.Gte, Lt: s.Range.Lt, Lte: s.Range.Lte}
	case s.MatchValue != nil:
		v, err := convertValue(kind, s.MatchValue)
		if err != nil {
			return query.Condition{}, fmt.Errorf("match_value: %w", err)
		}
		cond.Match = &query.Match{Value: &v}
	case len(s.MatchAnyOf) > 0:
		vs, err := convertValues(kind, s.MatchAnyOf)
		if err != nil {
			return query.Condition{}, fmt.Errorf("match_any_of: %w", err)
		}
		cond.Match = &query.Match{AnyOf: vs}
	case len(s.MatchExcept) > 0:
		vs, err := convertValues(kind, s.MatchExcept)
		if err != nil {
			return query.Condition{}, fmt.Errorf("match_except: %w", err)
		}
		cond.Match = &query.Match{Except: vs}
	case s.MatchText != nil:
		cond.Match = &query.Match{Text: s.MatchText}
	case s.MatchPhrase != nil:
		cond.Match = &query.Match{Phrase: s.MatchPhrase}
	case s.GeoBoundingBox != nil:
		cond.GeoBoundingBox = &query.GeoBoundingBox{TopLeft: s.GeoBoundingBox.TopLeft, BottomRight: s.GeoBoundingBox.BottomRight}
	case s.GeoRadius != nil:
		cond.GeoRadius = &query.GeoRadius{Center: s.GeoRadius.Center, RadiusMeters: s.GeoRadius.RadiusMeters}
	case s.IsNull:
		cond.IsNull = true
	case s.IsEmpty:
		cond.IsEmpty = true
	}
	return cond, nil
}

func openForQuery(dir, field string, kind common.VariantKind, storage common.StorageKind) (*fieldindex.FieldIndex, error) {
	switch storage {
	case common.StorageMmap:
		return fieldindex.OpenImmutable(dir, field, kind)
	case common.StorageBlock, common.StorageRocksDBLike:
		return fieldindex.NewOnDiskMutable(dir, field, kind)
	default:
		return nil, fmt.Errorf("query only opens persisted indexes; --storage=memory has nothing to load")
	}
}

func newQueryCmd() *cobra.Command {
	var (
		field     string
		kindStr   string
		storage   string
		dir       string
		condPath  string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filter a persisted field index against a JSON condition",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindStr)
			if err != nil {
				return err
			}
			store, err := parseStorage(storage)
			if err != nil {
				return err
			}
			idx, err := openForQuery(dir, field, kind, store)
			if err != nil {
				return err
			}
			defer idx.Cleanup()

			raw, err := os.ReadFile(condPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", condPath, err)
			}
			var spec condSpec
			if err := json.Unmarshal(raw, &spec); err != nil {
				return fmt.Errorf("parse %s: %w", condPath, err)
			}
			cond, err := spec.toCondition(field, kind)
			if err != nil {
				return err
			}

			hw := hwcounter.New()
			iter, ok := idx.Filter(cond, hw)
			if !ok {
				est, estOK := idx.EstimateCardinality(cond)
				if !estOK {
					return fmt.Errorf("condition shape %d is not native to %s and has no estimate", cond.Shape(), kind)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "condition not natively filterable; estimate=[%d,%d,%d]\n", est.Min, est.Expected, est.Max)
				return nil
			}
			n := 0
			for id := range iter {
				fmt.Fprintln(cmd.OutOrStdout(), id)
				n++
			}
			snap := hw.Snapshot()
			fmt.Fprintf(cmd.ErrOrStderr(), "%d matches, disk_bytes=%d comparisons=%d\n", n, snap.DiskBytes, snap.Comparisons)
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "payload field name (required)")
	cmd.Flags().StringVar(&kindStr, "kind", "", "variant kind (required)")
	cmd.Flags().StringVar(&storage, "storage", "mmap", "mmap|block|rocksdb")
	cmd.Flags().StringVar(&dir, "dir", "", "index directory (required)")
	cmd.Flags().StringVar(&condPath, "cond", "", "path to a JSON condition file (required)")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("cond")
	return cmd
}
