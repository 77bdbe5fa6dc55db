// SPDX-License-Identifier: MIT

package golden

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/product"
)

func newTestLibrary(t *testing.T) (*Library, *product.Store) {
	t.Helper()
	store, err := product.NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Create(context.Background(), "demoA", 1)
	require.NoError(t, err)
	return NewLibrary(store), store
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imaging.EncodeJPEG(image.NewRGBA(image.Rect(0, 0, w, h)), 80)
	require.NoError(t, err)
	return data
}

func goldenDir(t *testing.T, store *product.Store, roi string) string {
	t.Helper()
	root, err := store.GoldenRoot("demoA")
	require.NoError(t, err)
	return filepath.Join(root, roi)
}

func TestSaveBacksUpPreviousBest(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	first, err := lib.Save(ctx, "demoA", 2, testJPEG(t, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, BestName, first.Written)
	assert.Empty(t, first.Backup)

	lib.now = func() int64 { return 1700000000 }
	second, err := lib.Save(ctx, "demoA", 2, testJPEG(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "original_1700000000_old_best.jpg", second.Backup)

	samples, err := lib.List(ctx, "demoA", 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, BestName, samples[0].Name)
	assert.True(t, samples[0].IsBest)
	assert.Equal(t, "original_1700000000_old_best.jpg", samples[1].Name)
	assert.False(t, samples[1].IsBest)
}

func TestSaveRejectsEmptyUpload(t *testing.T) {
	lib, _ := newTestLibrary(t)
	_, err := lib.Save(context.Background(), "demoA", 2, nil)
	require.ErrorIs(t, err, ErrEmptyUpload)
}

func TestBackupNamesNeverCollide(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()
	lib.now = func() int64 { return 42 }

	_, err := lib.Save(ctx, "demoA", 1, testJPEG(t, 2, 2))
	require.NoError(t, err)
	second, err := lib.Save(ctx, "demoA", 1, testJPEG(t, 2, 2))
	require.NoError(t, err)
	third, err := lib.Save(ctx, "demoA", 1, testJPEG(t, 2, 2))
	require.NoError(t, err)

	assert.Equal(t, "original_42_old_best.jpg", second.Backup)
	assert.Equal(t, "original_43_old_best.jpg", third.Backup)
}

func TestListMissingFolder(t *testing.T) {
	lib, _ := newTestLibrary(t)
	_, err := lib.List(context.Background(), "demoA", 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPromoteCopiesAlternative(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	alt := testJPEG(t, 6, 6)
	_, err := lib.Save(ctx, "demoA", 2, testJPEG(t, 8, 8))
	require.NoError(t, err)

	dir := goldenDir(t, store, "roi_2")
	altPath := filepath.Join(dir, "original_100.jpg")
	require.NoError(t, os.WriteFile(altPath, alt, 0o600))

	res, err := lib.Promote(ctx, "demoA", 2, "original_100.jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Backup)

	// the alternative stays, the best now carries its bytes
	assert.FileExists(t, altPath)
	best, err := os.ReadFile(filepath.Join(dir, BestName))
	require.NoError(t, err)
	assert.Equal(t, alt, best)
}

func TestPromoteRejectsBestAsSource(t *testing.T) {
	lib, _ := newTestLibrary(t)
	_, err := lib.Promote(context.Background(), "demoA", 2, BestName)
	require.ErrorIs(t, err, ErrBadName)
}

func TestPromoteMissingAlternative(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()
	_, err := lib.Save(ctx, "demoA", 2, testJPEG(t, 8, 8))
	require.NoError(t, err)

	_, err = lib.Promote(ctx, "demoA", 2, "original_12345.jpg")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreRequiresBackupSuffix(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	_, err := lib.Save(ctx, "demoA", 2, testJPEG(t, 8, 8))
	require.NoError(t, err)
	dir := goldenDir(t, store, "roi_2")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "original_100.jpg"), testJPEG(t, 2, 2), 0o600))
	backup := testJPEG(t, 3, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "original_200_old_best.jpg"), backup, 0o600))

	_, err = lib.Restore(ctx, "demoA", 2, "original_100.jpg")
	require.ErrorIs(t, err, ErrBadName)

	res, err := lib.Restore(ctx, "demoA", 2, "original_200_old_best.jpg")
	require.NoError(t, err)
	assert.Equal(t, BestName, res.Written)

	best, err := os.ReadFile(filepath.Join(dir, BestName))
	require.NoError(t, err)
	assert.Equal(t, backup, best)
}

func TestDeleteGuards(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	_, err := lib.Save(ctx, "demoA", 2, testJPEG(t, 8, 8))
	require.NoError(t, err)

	// the only file must survive
	err = lib.Delete(ctx, "demoA", 2, BestName)
	require.ErrorIs(t, err, ErrLastSample)

	dir := goldenDir(t, store, "roi_2")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "original_100.jpg"), testJPEG(t, 2, 2), 0o600))

	require.ErrorIs(t, lib.Delete(ctx, "demoA", 2, "original_999.jpg"), ErrNotFound)
	require.ErrorIs(t, lib.Delete(ctx, "demoA", 2, "../escape.jpg"), ErrBadName)

	require.NoError(t, lib.Delete(ctx, "demoA", 2, "original_100.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "original_100.jpg"))
}

func TestOpenStreamsSample(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	payload := testJPEG(t, 8, 8)
	_, err := lib.Save(ctx, "demoA", 2, payload)
	require.NoError(t, err)

	f, err := lib.Open(ctx, "demoA", 2, BestName)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = lib.Open(ctx, "demoA", 2, "original_404.jpg")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = lib.Open(ctx, "demoA", 2, "../../secret")
	require.ErrorIs(t, err, ErrBadName)
}

func TestListPathsBestFirst(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	// no folder yet: no goldens, no error
	paths, err := lib.ListPaths(ctx, "demoA", 2)
	require.NoError(t, err)
	assert.Empty(t, paths)

	_, err = lib.Save(ctx, "demoA", 2, testJPEG(t, 8, 8))
	require.NoError(t, err)
	dir := goldenDir(t, store, "roi_2")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "original_100.jpg"), testJPEG(t, 2, 2), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "original_300.jpg"), testJPEG(t, 2, 2), 0o600))

	paths, err = lib.ListPaths(ctx, "demoA", 2)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, BestName), paths[0])
	assert.Equal(t, filepath.Join(dir, "original_300.jpg"), paths[1])
	assert.Equal(t, filepath.Join(dir, "original_100.jpg"), paths[2])
}

func TestMetadataCarriesDimensions(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	_, err := lib.Save(ctx, "demoA", 2, testJPEG(t, 8, 6))
	require.NoError(t, err)

	details, err := lib.Metadata(ctx, "demoA", 2)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, 8, details[0].Width)
	assert.Equal(t, 6, details[0].Height)
	assert.True(t, details[0].IsBest)
	assert.Positive(t, details[0].Size)
}
