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

package mmapfile

import (
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"
)

// ReadFileIfExists returns nil, nil when path does not exist, so callers
// can treat "no deleted.bitmap yet" the same as "empty bitmap".
func ReadFileIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// LoadBitmap reads a roaring bitmap previously written by WriteBitmap,
// or an empty bitmap if the file does not exist yet (a freshly opened
// index with no deletions).
func LoadBitmap(path string) (*roaring.Bitmap, error) {
	b := roaring.New()
	data, err := ReadFileIfExists(path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return b, nil
	}
	if _, err := b.FromBuffer(data); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteBitmap serializes b to path, used for deleted.bitmap and the
// bitmaps the bool, null and full-text indexes persist.
func WriteBitmap(path string, b *roaring.Bitmap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := b.ToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RemoveAll deletes dir and everything under it — used by Cleanup to
// release a sealed index's backing files (spec §3 "Closing is triggered
// by cleanup, which releases and deletes backing files").
func RemoveAll(dir string) error {
	return os.RemoveAll(dir)
}
