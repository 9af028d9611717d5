package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/smart-attendance/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	frames          *prometheus.CounterVec
	faces           *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	trainingRuns    *prometheus.CounterVec
	trainingTime    prometheus.Histogram

	requestCount         uint64
	requestDurationTotal uint64
	frameCount           uint64
	faceCount            uint64
	markCount            uint64
	sessionCount         uint64
	activeCount          int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	frames := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camera_frames_total",
		Help: "Frames processed by camera sessions",
	}, []string{"mode"})

	faces := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faces_detected_total",
		Help: "Face regions or QR codes found in processed frames",
	}, []string{"mode"})

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_outcomes_total",
		Help: "Per-detection attendance outcomes",
	}, []string{"method", "outcome"})

	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camera_sessions_total",
		Help: "Camera sessions by mode and stop reason",
	}, []string{"mode", "reason"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_sessions_active",
		Help: "Camera sessions currently holding the device",
	})

	trainingRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "training_runs_total",
		Help: "Classifier training runs by result",
	}, []string{"status"})

	trainingTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "training_duration_seconds",
		Help:    "Duration of classifier training runs",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 180, 600},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, frames, faces, outcomes, sessions, activeSessions, trainingRuns, trainingTime, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		frames:          frames,
		faces:           faces,
		outcomes:        outcomes,
		sessions:        sessions,
		activeSessions:  activeSessions,
		trainingRuns:    trainingRuns,
		trainingTime:    trainingTime,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveFrame counts one processed frame and the detections found in it.
func (m *MetricsService) ObserveFrame(mode models.SessionMode, detections int) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(string(mode)).Inc()
	atomic.AddUint64(&m.frameCount, 1)
	if detections > 0 {
		m.faces.WithLabelValues(string(mode)).Add(float64(detections))
		atomic.AddUint64(&m.faceCount, uint64(detections))
	}
}

// RecordOutcome counts a per-detection attendance outcome.
func (m *MetricsService) RecordOutcome(method models.AttendanceMethod, outcome models.MarkOutcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(method), string(outcome)).Inc()
	if outcome == models.MarkOutcomeMarked {
		atomic.AddUint64(&m.markCount, 1)
	}
}

// SessionStarted tracks a session acquiring the camera.
func (m *MetricsService) SessionStarted(mode models.SessionMode) {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
	atomic.AddUint64(&m.sessionCount, 1)
	atomic.AddInt64(&m.activeCount, 1)
}

// SessionStopped tracks a session releasing the camera.
func (m *MetricsService) SessionStopped(mode models.SessionMode, reason models.StopReason) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.sessions.WithLabelValues(string(mode), string(reason)).Inc()
	atomic.AddInt64(&m.activeCount, -1)
}

// ObserveTraining records a finished training run.
func (m *MetricsService) ObserveTraining(status models.TrainingStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues(string(status)).Inc()
	m.trainingTime.Observe(duration.Seconds())
}

// Snapshot returns aggregated counters for the status endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		HTTPRequests:     requests,
		AvgRequestMillis: avgRequestMs,
		Frames:           atomic.LoadUint64(&m.frameCount),
		FacesDetected:    atomic.LoadUint64(&m.faceCount),
		Marks:            atomic.LoadUint64(&m.markCount),
		SessionsStarted:  atomic.LoadUint64(&m.sessionCount),
		ActiveSessions:   atomic.LoadInt64(&m.activeCount),
	}
}
