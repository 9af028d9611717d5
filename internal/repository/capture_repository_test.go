package repository

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/pkg/storage"
)

func grayPatch(size int, shade uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	return img
}

func TestCaptureRepositorySaveAndLoad(t *testing.T) {
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "faces"))
	require.NoError(t, err)
	repo := NewCaptureRepository(store)
	ctx := context.Background()

	next, err := repo.NextIndex("10000001")
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	path, err := repo.Save(ctx, "10000001", next, grayPatch(8, 120))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BaseDir(), "10000001", "1.png"), path)

	next, err = repo.NextIndex("10000001")
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir("10000001"), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir("10000001"), "7.jpg"), []byte("not an image"), 0o644))

	samples, skipped, err := repo.LoadSamples(ctx, "10000001")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, uint8(120), samples[0].GrayAt(3, 3).Y)

	count, err := repo.Count(ctx, "10000001")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	next, err = repo.NextIndex("10000001")
	require.NoError(t, err)
	assert.Equal(t, 8, next)

	students, err := repo.ListStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10000001"}, students)
}
