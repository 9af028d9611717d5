package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/dto"
	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	"github.com/noah-isme/smart-attendance/internal/vision"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
)

type modelLoader interface {
	Load(ctx context.Context, backend vision.ClassifierBackend) (vision.Classifier, *models.LabelMap, error)
}

type studentDirectory interface {
	Directory(ctx context.Context) (models.StudentDirectory, error)
}

// SessionConfig tunes camera sessions.
type SessionConfig struct {
	ConfidenceThreshold float64
	SampleLimit         int
}

// SessionDeps groups the collaborators of SessionService.
type SessionDeps struct {
	Gate     CameraGate
	Cameras  vision.CameraOpener
	Detector vision.FaceDetector
	QR       vision.QRDecoder
	Backend  vision.ClassifierBackend
	Models   modelLoader
	Students studentDirectory
	Ledger   attendanceLedger
	Samples  sampleWriter
	// Displays returns the preview for a new session. Nil runs headless.
	Displays func(mode models.SessionMode) vision.Display
	Metrics  *MetricsService
	Logger   *zap.Logger
}

// SessionService starts and stops the camera loops: face recognition, QR
// scanning and enrollment capture. Only one loop holds the camera at a time.
type SessionService struct {
	deps  SessionDeps
	cfg   SessionConfig
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	current *Session
	last    *Session
}

// NewSessionService constructs the service.
func NewSessionService(deps SessionDeps, cfg SessionConfig) *SessionService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gate == nil {
		deps.Gate = NewLocalCameraGate()
	}
	if deps.Displays == nil {
		deps.Displays = func(models.SessionMode) vision.Display { return vision.NopDisplay{} }
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 70
	}
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = 30
	}
	return &SessionService{deps: deps, cfg: cfg, now: time.Now, newID: uuid.NewString}
}

// StartFace starts live face recognition. The model pair and the student
// store are loaded once here and stay fixed for the session.
func (s *SessionService) StartFace(ctx context.Context) (*Session, error) {
	students, err := s.requireStudents(ctx)
	if err != nil {
		return nil, err
	}

	classifier, labels, err := s.deps.Models.Load(ctx, s.deps.Backend)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrModelMissing):
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no trained model found; train the classifier first")
		case errors.Is(err, repository.ErrModelMismatch):
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "model and label map are from different training runs; retrain the classifier")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "failed to load trained model")
		}
	}

	proc := &faceProcessor{
		detector:   s.deps.Detector,
		classifier: classifier,
		labels:     labels,
		threshold:  s.cfg.ConfidenceThreshold,
		marker:     newAttendanceMarker(s.deps.Ledger, students, models.AttendanceMethodFace, s.now, s.deps.Metrics, s.deps.Logger),
		logger:     s.deps.Logger,
	}
	return s.start(ctx, models.SessionModeFace, proc)
}

// StartQR starts live QR scanning.
func (s *SessionService) StartQR(ctx context.Context) (*Session, error) {
	students, err := s.requireStudents(ctx)
	if err != nil {
		return nil, err
	}
	proc := &qrProcessor{
		decoder: s.deps.QR,
		marker:  newAttendanceMarker(s.deps.Ledger, students, models.AttendanceMethodQR, s.now, s.deps.Metrics, s.deps.Logger),
	}
	return s.start(ctx, models.SessionModeQR, proc)
}

// StartCapture starts enrollment capture for a registered student.
func (s *SessionService) StartCapture(ctx context.Context, studentID string) (*Session, error) {
	if !ValidStudentID(studentID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id must be exactly 8 digits")
	}
	students, err := s.deps.Students.Directory(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student store")
	}
	if _, ok := students.Lookup(studentID); !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not registered")
	}

	next, err := s.deps.Samples.NextIndex(studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read capture store")
	}
	proc := &captureProcessor{
		detector:  s.deps.Detector,
		samples:   s.deps.Samples,
		studentID: studentID,
		limit:     s.cfg.SampleLimit,
		next:      next,
	}
	return s.start(ctx, models.SessionModeCapture, proc)
}

// Stop cancels the running session and waits for it to release the camera.
func (s *SessionService) Stop(ctx context.Context) (*models.SessionSummary, error) {
	s.mu.Lock()
	session := s.current
	s.mu.Unlock()
	if session == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no camera session running")
	}

	session.Stop()
	select {
	case <-session.Done():
		summary := session.Summary()
		return &summary, nil
	case <-ctx.Done():
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session did not stop in time")
	}
}

// Status reports the running session and the last finished one.
func (s *SessionService) Status(ctx context.Context) dto.SessionStatus {
	s.mu.Lock()
	current, last := s.current, s.last
	s.mu.Unlock()

	status := dto.SessionStatus{}
	if busy, err := s.deps.Gate.Busy(ctx); err == nil {
		status.CameraBusy = busy
	} else {
		s.deps.Logger.Warn("failed to read camera gate", zap.Error(err))
	}
	if current != nil {
		summary := current.Summary()
		status.Current = &summary
	}
	if last != nil {
		summary := last.Summary()
		status.Last = &summary
	}
	return status
}

// Shutdown stops any running session. It is safe to call when idle.
func (s *SessionService) Shutdown(ctx context.Context) {
	if _, err := s.Stop(ctx); err != nil && !appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
		s.deps.Logger.Warn("camera session did not stop cleanly", zap.Error(err))
	}
}

func (s *SessionService) requireStudents(ctx context.Context) (models.StudentDirectory, error) {
	students, err := s.deps.Students.Directory(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student store")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no students registered")
	}
	return students, nil
}

func (s *SessionService) start(ctx context.Context, mode models.SessionMode, proc frameProcessor) (*Session, error) {
	id := s.newID()
	ok, err := s.deps.Gate.Acquire(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire camera gate")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCameraBusy, "another camera session is already running")
	}

	camera, err := s.deps.Cameras.Open(ctx)
	if err != nil {
		s.releaseGate(id)
		return nil, appErrors.Wrap(err, appErrors.ErrDevice.Code, appErrors.ErrDevice.Status, "failed to open camera")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	session := newSession(id, mode, s.now(), cancel)

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.deps.Metrics.SessionStarted(mode)
	s.deps.Logger.Info("camera session started", zap.String("session_id", id), zap.String("mode", string(mode)))

	go s.run(runCtx, session, camera, s.deps.Displays(mode), proc)
	return session, nil
}

func (s *SessionService) run(ctx context.Context, session *Session, camera vision.Camera, display vision.Display, proc frameProcessor) {
	reason, err := s.loop(ctx, session, camera, display, proc)
	session.cancel()
	s.releaseGate(session.id)

	s.mu.Lock()
	if s.current == session {
		s.current = nil
	}
	s.last = session
	s.mu.Unlock()

	session.finish(s.now(), reason, err)
	s.deps.Metrics.SessionStopped(session.mode, reason)

	summary := session.Summary()
	fields := []zap.Field{
		zap.String("session_id", session.id),
		zap.String("mode", string(session.mode)),
		zap.String("reason", string(reason)),
		zap.Int("frames", summary.Frames),
		zap.Int("marked", summary.MarkedCount),
		zap.Strings("marked_ids", summary.MarkedIDs),
		zap.Int("captured", summary.Captured),
	}
	if err != nil {
		s.deps.Logger.Error("camera session stopped", append(fields, zap.Error(err))...)
		return
	}
	s.deps.Logger.Info("camera session stopped", fields...)
}

// loop owns the camera and display until it returns.
func (s *SessionService) loop(ctx context.Context, session *Session, camera vision.Camera, display vision.Display, proc frameProcessor) (reason models.StopReason, err error) {
	defer func() {
		if cerr := camera.Close(); cerr != nil {
			s.deps.Logger.Warn("failed to release camera", zap.Error(cerr))
		}
	}()
	defer func() {
		if cerr := display.Close(); cerr != nil {
			s.deps.Logger.Warn("failed to close preview", zap.Error(cerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			reason = models.StopReasonFailed
			err = fmt.Errorf("session panic: %v", r)
		}
	}()

	for {
		if ctx.Err() != nil {
			return models.StopReasonRequested, nil
		}

		frame, err := camera.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return models.StopReasonRequested, nil
			}
			return models.StopReasonDevice, appErrors.Wrap(err, appErrors.ErrDevice.Code, appErrors.ErrDevice.Status, "camera read failed")
		}

		result, err := proc.Process(ctx, frame, session)
		session.recordFrame(result.detections)
		s.deps.Metrics.ObserveFrame(session.mode, result.detections)
		if err != nil {
			_ = frame.Close()
			if ctx.Err() != nil {
				return models.StopReasonRequested, nil
			}
			return models.StopReasonFailed, err
		}

		quit, err := display.Show(frame, result.annotations)
		_ = frame.Close()
		if err != nil {
			s.deps.Logger.Warn("failed to render preview", zap.Error(err))
		}
		if quit {
			return models.StopReasonOperator, nil
		}
		if result.done {
			return models.StopReasonCompleted, nil
		}
	}
}

func (s *SessionService) releaseGate(owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Gate.Release(ctx, owner); err != nil {
		s.deps.Logger.Warn("failed to release camera gate", zap.String("session_id", owner), zap.Error(err))
	}
}
