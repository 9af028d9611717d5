package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/students", http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/students", http.StatusOK, 30*time.Millisecond)
	m.SessionStarted(models.SessionModeFace)
	m.ObserveFrame(models.SessionModeFace, 2)
	m.ObserveFrame(models.SessionModeFace, 0)
	m.RecordOutcome(models.AttendanceMethodFace, models.MarkOutcomeMarked)
	m.RecordOutcome(models.AttendanceMethodFace, models.MarkOutcomeUnknown)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.HTTPRequests)
	assert.InDelta(t, 20.0, snap.AvgRequestMillis, 0.001)
	assert.Equal(t, uint64(2), snap.Frames)
	assert.Equal(t, uint64(2), snap.FacesDetected)
	assert.Equal(t, uint64(1), snap.Marks)
	assert.Equal(t, int64(1), snap.ActiveSessions)

	m.SessionStopped(models.SessionModeFace, models.StopReasonRequested)
	assert.Equal(t, int64(0), m.Snapshot().ActiveSessions)
	assert.Equal(t, uint64(1), m.Snapshot().SessionsStarted)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveFrame(models.SessionModeQR, 1)
	m.ObserveTraining(models.TrainingStatusSucceeded, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `camera_frames_total{mode="QR"} 1`)
	assert.Contains(t, body, `training_runs_total{status="SUCCEEDED"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveFrame(models.SessionModeFace, 3)
	m.RecordOutcome(models.AttendanceMethodQR, models.MarkOutcomeMarked)
	m.SessionStarted(models.SessionModeQR)
	m.SessionStopped(models.SessionModeQR, models.StopReasonDevice)
	assert.Equal(t, models.MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
