package service

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	"github.com/noah-isme/smart-attendance/internal/vision"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/jobs"
	"github.com/noah-isme/smart-attendance/pkg/storage"
)

type recordingModel struct{}

func (recordingModel) Predict(*image.Gray) (vision.Prediction, error) { return vision.Prediction{}, nil }
func (recordingModel) Save(path string) error                         { return os.WriteFile(path, []byte("model"), 0o644) }

type recordingBackend struct {
	faces  int
	labels []int
	err    error
}

func (b *recordingBackend) Train(ctx context.Context, faces []*image.Gray, labels []int) (vision.TrainedClassifier, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.faces = len(faces)
	b.labels = append([]int(nil), labels...)
	return recordingModel{}, nil
}

func (b *recordingBackend) Load(string) (vision.Classifier, error) { return recordingModel{}, nil }

type trainingFixture struct {
	svc      *TrainingService
	captures *repository.CaptureRepository
	models   *repository.ModelRepository
	modelDir string
	backend  *recordingBackend
}

func newTrainingFixture(t *testing.T) *trainingFixture {
	t.Helper()
	root := t.TempDir()
	faces, err := storage.NewLocalStorage(filepath.Join(root, "faces"))
	require.NoError(t, err)
	modelStore, err := storage.NewLocalStorage(filepath.Join(root, "models"))
	require.NoError(t, err)

	f := &trainingFixture{
		captures: repository.NewCaptureRepository(faces),
		models:   repository.NewModelRepository(modelStore),
		modelDir: modelStore.BaseDir(),
		backend:  &recordingBackend{},
	}
	f.svc = NewTrainingService(f.captures, f.models, f.backend, nil, nil)
	f.svc.newID = func() string { return "run-1" }
	f.svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func (f *trainingFixture) capture(t *testing.T, id string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := f.captures.Save(context.Background(), id, i, image.NewGray(image.Rect(0, 0, 6, 6)))
		require.NoError(t, err)
	}
}

func TestTrainingServiceZeroSamplesWritesNothing(t *testing.T) {
	f := newTrainingFixture(t)
	require.NoError(t, os.MkdirAll(f.captures.Dir("10000001"), 0o755))

	_, err := f.svc.Train(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	entries, err := os.ReadDir(f.modelDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrainingServiceAssignsLabelsPerDirectory(t *testing.T) {
	f := newTrainingFixture(t)
	f.capture(t, "10000002", 2)
	f.capture(t, "10000001", 3)
	require.NoError(t, os.MkdirAll(f.captures.Dir("not-a-student"), 0o755))

	result, err := f.svc.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 2, result.Students)
	assert.Equal(t, 5, result.Samples)
	assert.Equal(t, []int{0, 0, 0, 1, 1}, f.backend.labels)

	_, labels, err := f.models.Load(context.Background(), f.backend)
	require.NoError(t, err)
	first, _ := labels.StudentID(0)
	second, _ := labels.StudentID(1)
	assert.Equal(t, "10000001", first)
	assert.Equal(t, "10000002", second)
}

func TestTrainingServiceQueuedJob(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enqueue(ctx)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	assert.Equal(t, models.TrainingStatusIdle, f.svc.Status().Status)

	f.capture(t, "10000001", 1)
	queue := &jobCapture{}
	f.svc.UseQueue(queue)

	job, err := f.svc.Enqueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TrainingStatusQueued, job.Status)

	_, err = f.svc.Enqueue(ctx)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.HandleJob(ctx, queue.jobs[0]))
	status := f.svc.Status()
	assert.Equal(t, models.TrainingStatusSucceeded, status.Status)
	require.NotNil(t, status.Result)
	assert.Equal(t, 1, status.Result.Samples)
	require.NotNil(t, status.FinishedAt)
}

func TestTrainingServiceFailedJob(t *testing.T) {
	f := newTrainingFixture(t)
	f.capture(t, "10000001", 1)
	f.backend.err = errors.New("lbph exploded")
	queue := &jobCapture{}
	f.svc.UseQueue(queue)

	_, err := f.svc.Enqueue(context.Background())
	require.NoError(t, err)
	require.Error(t, f.svc.HandleJob(context.Background(), queue.jobs[0]))

	status := f.svc.Status()
	assert.Equal(t, models.TrainingStatusFailed, status.Status)
	assert.Equal(t, "failed to train classifier", status.Error)

	_, err = f.svc.Enqueue(context.Background())
	require.NoError(t, err)
}

func TestTrainingServiceEnqueueFailureRestoresStatus(t *testing.T) {
	f := newTrainingFixture(t)
	f.svc.UseQueue(failingQueue{})

	_, err := f.svc.Enqueue(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.TrainingStatusIdle, f.svc.Status().Status)
}

type failingQueue struct{}

func (failingQueue) Enqueue(jobs.Job) error { return errors.New("queue full") }

type jobCapture struct {
	jobs []jobs.Job
}

func (q *jobCapture) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}
