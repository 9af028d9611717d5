package dto

import "github.com/noah-isme/smart-attendance/internal/models"

// StartCaptureRequest starts an enrollment capture for one student.
type StartCaptureRequest struct {
	StudentID string `json:"student_id" validate:"required,len=8,numeric"`
}

// SessionStatus is the control surface view of the camera.
type SessionStatus struct {
	CameraBusy bool                   `json:"camera_busy"`
	Current    *models.SessionSummary `json:"current,omitempty"`
	Last       *models.SessionSummary `json:"last,omitempty"`
}
