package models

import "time"

// SessionMode names what a camera session does with each frame.
type SessionMode string

const (
	SessionModeFace    SessionMode = "FACE"
	SessionModeQR      SessionMode = "QR"
	SessionModeCapture SessionMode = "CAPTURE"
)

// SessionState is the lifecycle position of a camera session.
type SessionState string

const (
	SessionStateIdle    SessionState = "IDLE"
	SessionStateRunning SessionState = "RUNNING"
	SessionStateStopped SessionState = "STOPPED"
)

// StopReason explains how a session reached STOPPED.
type StopReason string

const (
	StopReasonRequested StopReason = "requested"
	StopReasonOperator  StopReason = "operator_quit"
	StopReasonDevice    StopReason = "device_error"
	StopReasonCompleted StopReason = "completed"
	StopReasonFailed    StopReason = "failed"
)

// MarkOutcome is the per-detection status shown over the preview.
type MarkOutcome string

const (
	MarkOutcomeMarked        MarkOutcome = "MARKED"
	MarkOutcomeAlreadyMarked MarkOutcome = "ALREADY_MARKED"
	MarkOutcomeUnknown       MarkOutcome = "UNKNOWN"
	MarkOutcomeCaptured      MarkOutcome = "CAPTURED"
)

// SessionSummary is reported once a session stops.
type SessionSummary struct {
	SessionID   string       `json:"session_id"`
	Mode        SessionMode  `json:"mode"`
	State       SessionState `json:"state"`
	StartedAt   time.Time    `json:"started_at"`
	StoppedAt   *time.Time   `json:"stopped_at,omitempty"`
	Frames      int          `json:"frames"`
	Detections  int          `json:"detections"`
	MarkedIDs   []string     `json:"marked_ids"`
	MarkedCount int          `json:"marked_count"`
	Captured    int          `json:"captured,omitempty"`
	Unknown     int          `json:"unknown"`
	Reason      StopReason   `json:"reason,omitempty"`
	Error       string       `json:"error,omitempty"`
}
