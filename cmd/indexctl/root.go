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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erigontech/erigon-payload-index/common"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexctl",
		Short: "Build and query payload field indexes",
	}
	root.AddCommand(newBuildCmd(), newQueryCmd(), newStatsCmd())
	return root
}

func parseKind(s string) (common.VariantKind, error) {
	switch s {
	case "int":
		return common.VariantInt, nil
	case "datetime":
		return common.VariantDatetime, nil
	case "float":
		return common.VariantFloat, nil
	case "uuid":
		return common.VariantUUID, nil
	case "int-map":
		return common.VariantIntMap, nil
	case "keyword":
		return common.VariantKeyword, nil
	case "uuid-map":
		return common.VariantUUIDMap, nil
	case "geo":
		return common.VariantGeo, nil
	case "full-text":
		return common.VariantFullText, nil
	case "bool":
		return common.VariantBool, nil
	case "null":
		return common.VariantNull, nil
	default:
		return 0, fmt.Errorf("unknown --kind %q", s)
	}
}

func parseStorage(s string) (common.StorageKind, error) {
	switch s {
	case "memory":
		return common.StorageInMemory, nil
	case "mmap":
		return common.StorageMmap, nil
	case "block":
		return common.StorageBlock, nil
	case "rocksdb":
		return common.StorageRocksDBLike, nil
	default:
		return 0, fmt.Errorf("unknown --storage %q", s)
	}
}
