package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/dto"
	"github.com/noah-isme/smart-attendance/internal/models"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/qrcodec"
	"github.com/noah-isme/smart-attendance/pkg/storage"
)

type qrEncoder interface {
	Encode(payload string) ([]byte, error)
}

type qrFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Exists(filename string) (bool, error)
	Open(filename string) (*os.File, error)
	Path(filename string) string
	BaseDir() string
}

type studentLister interface {
	List(ctx context.Context) ([]models.Student, error)
}

// QRService produces one QR image per student id. Generation is idempotent:
// an existing image is never rewritten.
type QRService struct {
	storage   qrFileStorage
	encoder   qrEncoder
	students  studentLister
	signer    *storage.SignedURLSigner
	apiPrefix string
	logger    *zap.Logger
}

// NewQRService constructs the service. signer may be nil when download links are disabled.
func NewQRService(files qrFileStorage, encoder qrEncoder, students studentLister, signer *storage.SignedURLSigner, apiPrefix string, logger *zap.Logger) *QRService {
	if encoder == nil {
		encoder = qrcodec.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QRService{storage: files, encoder: encoder, students: students, signer: signer.Scope("qr"), apiPrefix: apiPrefix, logger: logger}
}

func qrFilename(studentID string) string {
	return studentID + ".png"
}

// Generate writes the QR image for studentID unless it already exists.
func (s *QRService) Generate(ctx context.Context, studentID string) (*dto.QRGenerateResult, error) {
	studentID = strings.TrimSpace(studentID)
	if !ValidStudentID(studentID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id must be exactly 8 digits")
	}
	created, err := s.generate(studentID)
	if err != nil {
		return nil, err
	}
	return &dto.QRGenerateResult{StudentID: studentID, Path: s.storage.Path(qrFilename(studentID)), Created: created}, nil
}

// GenerateAll writes QR images for every registered student that lacks one.
func (s *QRService) GenerateAll(ctx context.Context) (*dto.QRBatchResult, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student store")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no students registered")
	}

	result := &dto.QRBatchResult{Total: len(students), Dir: s.storage.BaseDir()}
	for _, student := range students {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		created, err := s.generate(student.ID)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}
	s.logger.Info("qr codes generated", zap.Int("created", result.Created), zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *QRService) generate(studentID string) (bool, error) {
	filename := qrFilename(studentID)
	exists, err := s.storage.Exists(filename)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check qr image")
	}
	if exists {
		return false, nil
	}
	png, err := s.encoder.Encode(studentID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode qr image")
	}
	if _, err := s.storage.Save(filename, png); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save qr image")
	}
	return true, nil
}

// DownloadLink returns a signed, expiring URL for an existing QR image.
func (s *QRService) DownloadLink(ctx context.Context, studentID string) (*dto.QRLinkResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "download links are disabled")
	}
	if !ValidStudentID(studentID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id must be exactly 8 digits")
	}
	exists, err := s.storage.Exists(qrFilename(studentID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check qr image")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "qr image not generated")
	}
	token, expiresAt, err := s.signer.Generate(studentID, qrFilename(studentID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	prefix := strings.TrimRight(s.apiPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &dto.QRLinkResponse{
		StudentID: studentID,
		URL:       fmt.Sprintf("%s/qr/download/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenSigned validates token and opens the QR image it names.
func (s *QRService) OpenSigned(token string) (*os.File, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download links are disabled")
	}
	studentID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, err.Error())
	}
	if relPath != qrFilename(studentID) {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "qr image not found")
	}
	s.logger.Debug("qr image downloaded", zap.String("student_id", studentID), zap.Time("expires_at", expiresAt.UTC()), zap.Duration("remaining", time.Until(expiresAt)))
	return file, relPath, nil
}
