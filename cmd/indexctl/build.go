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
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/fieldindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/fulltext"
	"github.com/erigontech/erigon-payload-index/hwcounter"
)

func newBuildCmd() *cobra.Command {
	var (
		field     string
		kindStr   string
		storage   string
		dir       string
		inputPath string
		language  string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a field index from an NDJSON points file",
		Long: `build reads one JSON object per line from --in, each of the shape
{"id": <uint32>, "values": [...]}, and feeds them to a fieldindex.Builder
for --field/--kind/--storage in strictly increasing id order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindStr)
			if err != nil {
				return err
			}
			store, err := parseStorage(storage)
			if err != nil {
				return err
			}
			if store != common.StorageInMemory && dir == "" {
				return fmt.Errorf("--dir is required for --storage=%s", storage)
			}

			cfg := fulltext.Config{Language: language, Stemming: language != ""}
			builder, err := fieldindex.NewBuilder(dir, field, kind, store, cfg)
			if err != nil {
				return err
			}
			if err := builder.Init(); err != nil {
				return err
			}

			f, err := os.Open(inputPath)
			if err != nil {
				_ = builder.Abort()
				return fmt.Errorf("open %s: %w", inputPath, err)
			}
			defer f.Close()

			hw := hwcounter.New()
			n := 0
			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var p point
				if err := json.Unmarshal(line, &p); err != nil {
					_ = builder.Abort()
					return fmt.Errorf("line %d: %w", n+1, err)
				}
				values, err := convertValues(kind, p.Values)
				if err != nil {
					_ = builder.Abort()
					return fmt.Errorf("line %d: %w", n+1, err)
				}
				if err := builder.AddPoint(p.ID, values, hw); err != nil {
					_ = builder.Abort()
					return fmt.Errorf("line %d: add_point(%d): %w", n+1, p.ID, err)
				}
				n++
			}
			if err := scanner.Err(); err != nil {
				_ = builder.Abort()
				return fmt.Errorf("read %s: %w", inputPath, err)
			}

			idx, err := builder.Finalize()
			if err != nil {
				return err
			}
			if flush := idx.Flusher(); flush != nil {
				if err := flush(); err != nil {
					return fmt.Errorf("flush: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %s: %d points, %d comparisons\n", idx, n, hw.Snapshot().Comparisons)
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "payload field name (required)")
	cmd.Flags().StringVar(&kindStr, "kind", "", "int|datetime|float|uuid|int-map|keyword|uuid-map|geo|full-text|bool|null (required)")
	cmd.Flags().StringVar(&storage, "storage", "memory", "memory|mmap|block|rocksdb")
	cmd.Flags().StringVar(&dir, "dir", "", "index directory (required unless --storage=memory)")
	cmd.Flags().StringVar(&inputPath, "in", "", "NDJSON points file (required)")
	cmd.Flags().StringVar(&language, "language", "", "full-text analyzer language (full-text kind only)")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
