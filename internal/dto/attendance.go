package dto

import (
	"time"

	"github.com/noah-isme/smart-attendance/internal/models"
)

// AttendanceQuery captures list filters from the query string.
type AttendanceQuery struct {
	Date      string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	StudentID string `form:"student_id" validate:"omitempty,len=8,numeric"`
	Method    string `form:"method" validate:"omitempty,oneof=FACE QR"`
}

// Filter converts the query into a ledger filter.
func (q AttendanceQuery) Filter() models.AttendanceFilter {
	return models.AttendanceFilter{
		Date:      q.Date,
		StudentID: q.StudentID,
		Method:    models.AttendanceMethod(q.Method),
	}
}

// ScanResult reports what happened to a QR payload decoded from an upload.
type ScanResult struct {
	StudentID string                   `json:"student_id"`
	Outcome   models.MarkOutcome       `json:"outcome"`
	Student   *models.Student          `json:"student,omitempty"`
	Record    *models.AttendanceRecord `json:"record,omitempty"`
}

// ExportRequest selects the records and format of an attendance export.
type ExportRequest struct {
	AttendanceQuery
	Format string `form:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse points at a rendered export.
type ExportResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Format    string    `json:"format"`
	Records   int       `json:"records"`
	ExpiresAt time.Time `json:"expires_at"`
}
