package service

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/vision"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/jobs"
)

// TrainingJobType identifies training jobs on the queue.
const TrainingJobType = "training"

type sampleSource interface {
	ListStudents(ctx context.Context) ([]string, error)
	LoadSamples(ctx context.Context, studentID string) ([]*image.Gray, int, error)
}

type modelWriter interface {
	Save(ctx context.Context, model vision.TrainedClassifier, labels *models.LabelMap) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// TrainingService rebuilds the face classifier from every stored sample.
// Each run replaces the model and label map; labels are not stable across runs.
type TrainingService struct {
	samples sampleSource
	models  modelWriter
	backend vision.ClassifierBackend
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	runMu sync.Mutex

	mu    sync.Mutex
	queue jobEnqueuer
	job   models.TrainingJob
}

// NewTrainingService constructs the trainer.
func NewTrainingService(samples sampleSource, modelStore modelWriter, backend vision.ClassifierBackend, metrics *MetricsService, logger *zap.Logger) *TrainingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{
		samples: samples,
		models:  modelStore,
		backend: backend,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		job:     models.TrainingJob{Status: models.TrainingStatusIdle},
	}
}

// UseQueue routes Enqueue through q. q should dispatch to HandleJob.
func (s *TrainingService) UseQueue(q jobEnqueuer) {
	s.mu.Lock()
	s.queue = q
	s.mu.Unlock()
}

// Train runs one full training pass. With zero samples in total nothing is written.
func (s *TrainingService) Train(ctx context.Context) (*models.TrainingResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := s.now()
	result, err := s.train(ctx, started)
	status := models.TrainingStatusSucceeded
	if err != nil {
		status = models.TrainingStatusFailed
	}
	s.metrics.ObserveTraining(status, s.now().Sub(started))
	return result, err
}

func (s *TrainingService) train(ctx context.Context, started time.Time) (*models.TrainingResult, error) {
	dirs, err := s.samples.ListStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list face samples")
	}

	labels := models.NewLabelMap(s.newID(), started.UTC())
	var (
		faces   []*image.Gray
		ids     []int
		skipped int
	)
	for _, dir := range dirs {
		if !ValidStudentID(dir) {
			s.logger.Warn("skipping sample directory that is not a student id", zap.String("dir", dir))
			continue
		}
		label := labels.Assign(dir)
		samples, bad, err := s.samples.LoadSamples(ctx, dir)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load face samples")
		}
		skipped += bad
		if len(samples) == 0 {
			s.logger.Warn("student has no readable samples", zap.String("student_id", dir))
		}
		for _, sample := range samples {
			faces = append(faces, sample)
			ids = append(ids, label)
		}
	}

	if len(faces) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no face samples found; capture students first")
	}

	model, err := s.backend.Train(ctx, faces, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to train classifier")
	}
	if err := s.models.Save(ctx, model, labels); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist model")
	}

	result := &models.TrainingResult{
		RunID:     labels.RunID,
		Students:  len(labels.Labels),
		Samples:   len(faces),
		Skipped:   skipped,
		TrainedAt: labels.TrainedAt,
	}
	s.logger.Info("classifier trained",
		zap.String("run_id", result.RunID),
		zap.Int("students", result.Students),
		zap.Int("samples", result.Samples),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// Enqueue schedules a training run on the background queue.
func (s *TrainingService) Enqueue(ctx context.Context) (*models.TrainingJob, error) {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrInternal, "training queue not configured")
	}
	if s.job.Status == models.TrainingStatusQueued || s.job.Status == models.TrainingStatusRunning {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "training already in progress")
	}
	queue, previous := s.queue, s.job
	job := models.TrainingJob{ID: s.newID(), Status: models.TrainingStatusQueued, QueuedAt: s.now().UTC()}
	s.job = job
	s.mu.Unlock()

	if err := queue.Enqueue(jobs.Job{ID: job.ID, Type: TrainingJobType, Enqueued: job.QueuedAt}); err != nil {
		s.setJob(func(j *models.TrainingJob) { *j = previous })
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue training")
	}
	return &job, nil
}

// HandleJob is the queue handler for training jobs.
func (s *TrainingService) HandleJob(ctx context.Context, job jobs.Job) error {
	s.setJob(func(j *models.TrainingJob) { j.Status = models.TrainingStatusRunning })

	result, err := s.Train(ctx)
	finished := s.now().UTC()
	s.setJob(func(j *models.TrainingJob) {
		j.FinishedAt = &finished
		if err != nil {
			j.Status = models.TrainingStatusFailed
			j.Error = appErrors.FromError(err).Message
			return
		}
		j.Status = models.TrainingStatusSucceeded
		j.Result = result
	})
	return err
}

// Status returns the latest training job.
func (s *TrainingService) Status() models.TrainingJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

func (s *TrainingService) setJob(update func(*models.TrainingJob)) {
	s.mu.Lock()
	update(&s.job)
	s.mu.Unlock()
}
