package dto

import "time"

// QRGenerateResult reports a single QR image generation.
type QRGenerateResult struct {
	StudentID string `json:"student_id"`
	Path      string `json:"path"`
	Created   bool   `json:"created"`
}

// QRBatchResult reports QR generation across every registered student.
type QRBatchResult struct {
	Total   int    `json:"total"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Dir     string `json:"dir"`
}

// QRLinkResponse is a signed download link for a student's QR image.
type QRLinkResponse struct {
	StudentID string    `json:"student_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
