package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/dto"
	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/qrcodec"
)

type attendanceRepository interface {
	AlreadyMarked(ctx context.Context, studentID, date string) (bool, error)
	Append(ctx context.Context, record models.AttendanceRecord) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type qrImageDecoder interface {
	Decode(r io.Reader) (*qrcodec.Result, error)
}

// AttendanceService is the attendance ledger. Appends never consult
// AlreadyMarked; callers that want one mark per day check first.
type AttendanceService struct {
	repo     attendanceRepository
	students studentFinder
	decoder  qrImageDecoder
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewAttendanceService constructs the ledger service.
func NewAttendanceService(repo attendanceRepository, students studentFinder, decoder qrImageDecoder, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decoder == nil {
		decoder = qrcodec.New()
	}
	return &AttendanceService{repo: repo, students: students, decoder: decoder, metrics: metrics, logger: logger, now: time.Now}
}

// Today returns the ledger date for the current instant.
func (s *AttendanceService) Today() string {
	return s.now().Format(models.DateLayout)
}

// AlreadyMarked reports whether studentID has a record on date.
func (s *AttendanceService) AlreadyMarked(ctx context.Context, studentID, date string) (bool, error) {
	marked, err := s.repo.AlreadyMarked(ctx, studentID, date)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attendance ledger")
	}
	return marked, nil
}

// Mark appends a record for student stamped with the current date and time.
func (s *AttendanceService) Mark(ctx context.Context, student models.Student, method models.AttendanceMethod) (*models.AttendanceRecord, error) {
	return s.MarkAt(ctx, student, method, s.now())
}

// MarkAt appends a record for student stamped with at.
func (s *AttendanceService) MarkAt(ctx context.Context, student models.Student, method models.AttendanceMethod, at time.Time) (*models.AttendanceRecord, error) {
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported attendance method")
	}
	record := models.NewAttendanceRecord(student, method, at)
	if err := s.repo.Append(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write attendance ledger")
	}
	s.logger.Info("attendance marked",
		zap.String("student_id", record.StudentID),
		zap.String("method", string(method)),
		zap.String("date", record.Date),
		zap.String("time", record.Time),
	)
	return &record, nil
}

// List returns ledger records matching filter in ledger order.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attendance ledger")
	}
	return records, nil
}

// ScanQRImage decodes a QR code from an uploaded image and marks the
// student it names, once per day.
func (s *AttendanceService) ScanQRImage(ctx context.Context, r io.Reader) (*dto.ScanResult, error) {
	decoded, err := s.decoder.Decode(r)
	if err != nil {
		if errors.Is(err, qrcodec.ErrNoCode) {
			return nil, appErrors.Clone(appErrors.ErrNoCode, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "uploaded file is not a readable image")
	}

	id := strings.TrimSpace(decoded.Payload)
	result := &dto.ScanResult{StudentID: id}

	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("qr payload does not match a registered student", zap.String("student_id", id))
			result.Outcome = models.MarkOutcomeUnknown
			s.metrics.RecordOutcome(models.AttendanceMethodQR, result.Outcome)
			return result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student store")
	}
	result.Student = student

	now := s.now()
	marked, err := s.AlreadyMarked(ctx, id, now.Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	if marked {
		result.Outcome = models.MarkOutcomeAlreadyMarked
		s.metrics.RecordOutcome(models.AttendanceMethodQR, result.Outcome)
		return result, nil
	}

	record, err := s.MarkAt(ctx, *student, models.AttendanceMethodQR, now)
	if err != nil {
		return nil, err
	}
	result.Outcome = models.MarkOutcomeMarked
	result.Record = record
	s.metrics.RecordOutcome(models.AttendanceMethodQR, result.Outcome)
	return result, nil
}
