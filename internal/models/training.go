package models

import (
	"fmt"
	"time"
)

// LabelMap binds the dense integer labels of one training run to student ids.
// It is only meaningful next to the model artifact of the same run.
type LabelMap struct {
	RunID       string         `json:"run_id"`
	TrainedAt   time.Time      `json:"trained_at"`
	ModelSHA256 string         `json:"model_sha256"`
	Labels      map[int]string `json:"labels"`
}

// NewLabelMap returns an empty map for the given run.
func NewLabelMap(runID string, trainedAt time.Time) *LabelMap {
	return &LabelMap{RunID: runID, TrainedAt: trainedAt, Labels: make(map[int]string)}
}

// Assign binds the next unused label to studentID and returns it.
func (m *LabelMap) Assign(studentID string) int {
	label := len(m.Labels)
	m.Labels[label] = studentID
	return label
}

// StudentID resolves label to the student it was trained for.
func (m *LabelMap) StudentID(label int) (string, bool) {
	if m == nil {
		return "", false
	}
	id, ok := m.Labels[label]
	return id, ok
}

// Validate checks that labels are dense (0..N-1) and ids unique.
func (m *LabelMap) Validate() error {
	if m == nil {
		return fmt.Errorf("label map missing")
	}
	seen := make(map[string]int, len(m.Labels))
	for i := 0; i < len(m.Labels); i++ {
		id, ok := m.Labels[i]
		if !ok {
			return fmt.Errorf("label %d missing: labels must be dense", i)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("student %s bound to labels %d and %d", id, prev, i)
		}
		seen[id] = i
	}
	return nil
}

// TrainingResult summarises a completed training run.
type TrainingResult struct {
	RunID     string    `json:"run_id"`
	Students  int       `json:"students"`
	Samples   int       `json:"samples"`
	Skipped   int       `json:"skipped"`
	TrainedAt time.Time `json:"trained_at"`
}

// TrainingStatus tracks the asynchronous training job.
type TrainingStatus string

const (
	TrainingStatusIdle      TrainingStatus = "IDLE"
	TrainingStatusQueued    TrainingStatus = "QUEUED"
	TrainingStatusRunning   TrainingStatus = "RUNNING"
	TrainingStatusSucceeded TrainingStatus = "SUCCEEDED"
	TrainingStatusFailed    TrainingStatus = "FAILED"
)

// TrainingJob is the externally visible state of the latest training request.
type TrainingJob struct {
	ID         string          `json:"id"`
	Status     TrainingStatus  `json:"status"`
	Result     *TrainingResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	QueuedAt   time.Time       `json:"queued_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
