package repository

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/vision"
	"github.com/noah-isme/smart-attendance/pkg/storage"
)

type stubModel struct {
	content string
}

func (m stubModel) Predict(*image.Gray) (vision.Prediction, error) {
	return vision.Prediction{}, nil
}

func (m stubModel) Save(path string) error {
	return os.WriteFile(path, []byte(m.content), 0o644)
}

type stubBackend struct {
	loaded string
}

func (b *stubBackend) Train(context.Context, []*image.Gray, []int) (vision.TrainedClassifier, error) {
	return stubModel{}, nil
}

func (b *stubBackend) Load(path string) (vision.Classifier, error) {
	b.loaded = path
	return stubModel{}, nil
}

func newModelRepo(t *testing.T) *ModelRepository {
	t.Helper()
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "models"))
	require.NoError(t, err)
	return NewModelRepository(store)
}

func TestModelRepositorySaveLoadPair(t *testing.T) {
	repo := newModelRepo(t)
	ctx := context.Background()

	labels := models.NewLabelMap("run-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	labels.Assign("10000001")
	labels.Assign("10000002")
	require.NoError(t, repo.Save(ctx, stubModel{content: "lbph"}, labels))
	assert.NotEmpty(t, labels.ModelSHA256)

	exists, err := repo.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	backend := &stubBackend{}
	classifier, loaded, err := repo.Load(ctx, backend)
	require.NoError(t, err)
	assert.NotNil(t, classifier)
	assert.Equal(t, repo.ModelPath(), backend.loaded)
	assert.Equal(t, "run-1", loaded.RunID)
	id, ok := loaded.StudentID(1)
	require.True(t, ok)
	assert.Equal(t, "10000002", id)

	entries, err := os.ReadDir(filepath.Dir(repo.ModelPath()))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestModelRepositoryLoadRequiresBothFiles(t *testing.T) {
	repo := newModelRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(repo.ModelPath(), []byte("orphan"), 0o644))
	_, _, err := repo.Load(ctx, &stubBackend{})
	assert.ErrorIs(t, err, ErrModelMissing)
}

func TestModelRepositoryLoadRejectsForeignModel(t *testing.T) {
	repo := newModelRepo(t)
	ctx := context.Background()

	labels := models.NewLabelMap("run-1", time.Now())
	labels.Assign("10000001")
	require.NoError(t, repo.Save(ctx, stubModel{content: "first"}, labels))
	require.NoError(t, os.WriteFile(repo.ModelPath(), []byte("retrained elsewhere"), 0o644))

	_, _, err := repo.Load(ctx, &stubBackend{})
	assert.ErrorIs(t, err, ErrModelMismatch)
}
