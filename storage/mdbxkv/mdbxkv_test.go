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

package mdbxkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestEnv(t *testing.T) *Env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mdbx")
	env, err := Open(path, "test-field", []string{"a", "b"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestPutGetDelete(t *testing.T) {
	env := openTestEnv(t)

	_, found, err := env.Get("a", []byte("k1"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, env.Put("a", []byte("k1"), []byte("v1")))
	val, found, err := env.Get("a", []byte("k1"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), val)

	require.NoError(t, env.Delete("a", []byte("k1")))
	_, found, err = env.Get("a", []byte("k1"))
	require.NoError(t, err)
	require.False(t, found)

	// Deleting an absent key is a no-op, not an error.
	require.NoError(t, env.Delete("a", []byte("k1")))
}

func TestTablesAreIndependent(t *testing.T) {
	env := openTestEnv(t)
	require.NoError(t, env.Put("a", []byte("k"), []byte("in-a")))
	require.NoError(t, env.Put("b", []byte("k"), []byte("in-b")))

	va, _, err := env.Get("a", []byte("k"))
	require.NoError(t, err)
	vb, _, err := env.Get("b", []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("in-a"), va)
	require.Equal(t, []byte("in-b"), vb)
}

func TestForEachAscendingFromCursor(t *testing.T) {
	env := openTestEnv(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, env.Put("a", []byte(k), []byte(k+"-val")))
	}

	var seen []string
	require.NoError(t, env.ForEach("a", []byte("b"), func(k, _ []byte) bool {
		seen = append(seen, string(k))
		return true
	}))
	require.Equal(t, []string{"b", "c", "d"}, seen)
}

func TestForEachStopsEarly(t *testing.T) {
	env := openTestEnv(t)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, env.Put("a", []byte(k), nil))
	}
	var seen []string
	require.NoError(t, env.ForEach("a", nil, func(k, _ []byte) bool {
		seen = append(seen, string(k))
		return len(seen) < 2
	}))
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.mdbx")

	env, err := Open(path, "f", []string{"t"})
	require.NoError(t, err)
	require.NoError(t, env.Put("t", []byte("k"), []byte("v")))
	require.NoError(t, env.Sync())
	require.NoError(t, env.Close())

	reopened, err := Open(path, "f", []string{"t"})
	require.NoError(t, err)
	defer reopened.Close()

	val, found, err := reopened.Get("t", []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), val)
}

func TestRemoveAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.mdbx")
	env, err := Open(path, "f", []string{"t"})
	require.NoError(t, err)
	require.NoError(t, env.Close())

	require.NoError(t, RemoveAll(path))

	reopened, err := Open(path, "f", []string{"t"})
	require.NoError(t, err)
	_ = reopened.Close()
}
