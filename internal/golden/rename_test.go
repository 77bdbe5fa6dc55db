// SPDX-License-Identifier: MIT

package golden

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFolder(t *testing.T, dir, marker string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, BestName), []byte(marker), 0o600))
}

func readMarker(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, BestName))
	require.NoError(t, err)
	return string(data)
}

func TestRenameFoldersSwap(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	root, err := store.GoldenRoot("demoA")
	require.NoError(t, err)
	seedFolder(t, filepath.Join(root, "roi_1"), "one")
	seedFolder(t, filepath.Join(root, "roi_2"), "two")

	require.NoError(t, lib.RenameFolders(ctx, "demoA", map[int]int{1: 2, 2: 1}))

	assert.Equal(t, "two", readMarker(t, filepath.Join(root, "roi_1")))
	assert.Equal(t, "one", readMarker(t, filepath.Join(root, "roi_2")))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp folders may survive")
}

func TestRenameFoldersShiftClobbersDestination(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	root, err := store.GoldenRoot("demoA")
	require.NoError(t, err)
	seedFolder(t, filepath.Join(root, "roi_1"), "stale")
	seedFolder(t, filepath.Join(root, "roi_2"), "fresh")

	require.NoError(t, lib.RenameFolders(ctx, "demoA", map[int]int{2: 1}))

	assert.Equal(t, "fresh", readMarker(t, filepath.Join(root, "roi_1")))
	assert.NoDirExists(t, filepath.Join(root, "roi_2"))
}

func TestRenameFoldersSkipsMissingSources(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	root, err := store.GoldenRoot("demoA")
	require.NoError(t, err)
	seedFolder(t, filepath.Join(root, "roi_3"), "three")

	// roi_7 has no goldens; only roi_3 moves
	require.NoError(t, lib.RenameFolders(ctx, "demoA", map[int]int{3: 1, 7: 2}))

	assert.Equal(t, "three", readMarker(t, filepath.Join(root, "roi_1")))
	assert.NoDirExists(t, filepath.Join(root, "roi_2"))
	assert.NoDirExists(t, filepath.Join(root, "roi_3"))
}

func TestRenameFoldersValidation(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	require.ErrorIs(t, lib.RenameFolders(ctx, "demoA", nil), ErrBadMapping)
	require.ErrorIs(t, lib.RenameFolders(ctx, "demoA", map[int]int{1: 3, 2: 3}), ErrBadMapping)
	require.ErrorIs(t, lib.RenameFolders(ctx, "demoA", map[int]int{0: 1}), ErrBadMapping)
	require.ErrorIs(t, lib.RenameFolders(ctx, "demoA", map[int]int{1: -2}), ErrBadMapping)
}

func TestRenameFoldersMissingProduct(t *testing.T) {
	lib, _ := newTestLibrary(t)
	err := lib.RenameFolders(context.Background(), "ghost", map[int]int{1: 2})
	require.ErrorIs(t, err, ErrNotFound)
}
