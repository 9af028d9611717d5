package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/dto"
	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/service"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/response"
)

// maxScanUpload bounds the image accepted by the QR scan endpoint.
const maxScanUpload = 8 << 20

type attendanceService interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	ScanQRImage(ctx context.Context, r io.Reader) (*dto.ScanResult, error)
}

type exportService interface {
	Generate(ctx context.Context, filter models.AttendanceFilter, format service.ExportFormat) (*dto.ExportResponse, error)
	ParseToken(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
}

// AttendanceHandler exposes the attendance ledger.
type AttendanceHandler struct {
	attendance attendanceService
	exports    exportService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService, exports exportService, validate *validator.Validate, logger *zap.Logger) *AttendanceHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHandler{attendance: attendance, exports: exports, validator: validate, logger: logger}
}

// List godoc
// @Summary List attendance records
// @Description Returns ledger rows in file order, optionally filtered
// @Tags Attendance
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param student_id query string false "Student ID"
// @Param method query string false "FACE or QR"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	var query dto.AttendanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	records, err := h.attendance.List(c.Request.Context(), query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil, map[string]interface{}{"count": len(records)})
}

// ScanQR godoc
// @Summary Mark attendance from a QR image
// @Description Decodes a student QR code from an uploaded image and marks attendance once per day
// @Tags Attendance
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image containing a student QR code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/qr-scan [post]
func (h *AttendanceHandler) ScanQR(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image file required"))
		return
	}
	if header.Size > maxScanUpload {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image too large"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.attendance.ScanQRImage(c.Request.Context(), io.LimitReader(file, maxScanUpload))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("qr image scanned",
		zap.String("operator", operatorName(c)),
		zap.String("student_id", result.StudentID),
		zap.String("outcome", string(result.Outcome)),
	)
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export attendance records
// @Tags Attendance
// @Produce json
// @Param format query string true "csv or pdf"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param student_id query string false "Student ID"
// @Param method query string false "FACE or QR"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export request"))
		return
	}
	result, err := h.exports.Generate(c.Request.Context(), req.Filter(), service.ExportFormat(req.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a rendered export
// @Tags Attendance
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /export/{token} [get]
func (h *AttendanceHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.exports.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, err.Error()))
		return
	}
	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found"))
		return
	}
	serveFile(c, file, filepath.Base(relPath))
}
