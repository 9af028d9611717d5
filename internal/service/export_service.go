package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/dto"
	"github.com/noah-isme/smart-attendance/internal/models"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/export"
	"github.com/noah-isme/smart-attendance/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type attendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportService renders ledger records and persists the files behind signed links.
type ExportService struct {
	attendance attendanceLister
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(attendance attendanceLister, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		attendance: attendance,
		storage:    files,
		csv:        csv,
		pdf:        pdf,
		signer:     signer.Scope("export"),
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

var attendanceHeaders = []string{"Student ID", "Name", "Course", "Email", "Method", "Date", "Time"}

// Generate renders the records matching filter and returns a signed download link.
func (s *ExportService) Generate(ctx context.Context, filter models.AttendanceFilter, format ExportFormat) (*dto.ExportResponse, error) {
	records, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := attendanceDataset(records)

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Attendance Records", describeFilter(filter))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	relPath, err := s.storage.Save(s.buildFilename(filter, format), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("attendance exported",
		zap.String("export_id", exportID),
		zap.String("format", string(format)),
		zap.Int("records", len(records)),
	)
	return &dto.ExportResponse{
		URL:       fmt.Sprintf("%s/export/%s", prefix, token),
		Token:     token,
		Format:    string(format),
		Records:   len(records),
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(filter models.AttendanceFilter, format ExportFormat) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := "all"
	if filter.Date != "" {
		scope = filter.Date
	}
	if filter.StudentID != "" {
		scope += "_" + filter.StudentID
	}
	return fmt.Sprintf("attendance_%s_%s.%s", sanitizeFilename(scope), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func attendanceDataset(records []models.AttendanceRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, map[string]string{
			"Student ID": record.StudentID,
			"Name":       record.Name,
			"Course":     record.Course,
			"Email":      record.Email,
			"Method":     string(record.Method),
			"Date":       record.Date,
			"Time":       record.Time,
		})
	}
	return export.Dataset{
		Headers: attendanceHeaders,
		Rows:    rows,
		Widths:  []float64{28, 50, 50, 70, 20, 28, 24},
	}
}

func describeFilter(filter models.AttendanceFilter) string {
	parts := make([]string, 0, 3)
	if filter.Date != "" {
		parts = append(parts, "Date: "+filter.Date)
	}
	if filter.StudentID != "" {
		parts = append(parts, "Student: "+filter.StudentID)
	}
	if filter.Method != "" {
		parts = append(parts, "Method: "+string(filter.Method))
	}
	if len(parts) == 0 {
		return "All records"
	}
	return strings.Join(parts, "  |  ")
}
