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

	"github.com/spf13/cobra"

	"github.com/erigontech/erigon-payload-index/telemetry"
)

func newStatsCmd() *cobra.Command {
	var (
		field   string
		kindStr string
		storage string
		dir     string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a persisted field index's telemetry data",
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

			instrumented := telemetry.Wrap(field, idx)
			data := instrumented.GetTelemetryData()
			out, err := json.MarshalIndent(struct {
				Telemetry    any
				FullIndexType string
				Files        []string
				ImmutableFiles []string
			}{
				Telemetry:      data,
				FullIndexType:  idx.String(),
				Files:          idx.Files(),
				ImmutableFiles: idx.ImmutableFiles(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "payload field name (required)")
	cmd.Flags().StringVar(&kindStr, "kind", "", "variant kind (required)")
	cmd.Flags().StringVar(&storage, "storage", "mmap", "mmap|block|rocksdb")
	cmd.Flags().StringVar(&dir, "dir", "", "index directory (required)")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
