package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth       *AuthHandler
	Students   *StudentHandler
	Attendance *AttendanceHandler
	QR         *QRHandler
	Sessions   *SessionHandler
	Training   *TrainingHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts the API under prefix. Routes other than login, health
// and signed downloads pass through auth.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth gin.HandlerFunc) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(strings.TrimRight(prefix, "/"))
	api.POST("/auth/login", h.Auth.Login)
	api.GET("/export/:token", h.Attendance.Download)
	api.GET("/qr/download/:token", h.QR.Download)

	secured := api.Group("")
	secured.Use(auth)

	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/metrics/summary", h.Metrics.Snapshot)

	secured.GET("/students", h.Students.List)
	secured.POST("/students", h.Students.Register)
	secured.GET("/students/:id", h.Students.Get)
	secured.POST("/students/:id/qr", h.QR.Generate)
	secured.GET("/students/:id/qr", h.QR.Link)
	secured.POST("/qr/generate", h.QR.GenerateAll)

	secured.GET("/attendance", h.Attendance.List)
	secured.POST("/attendance/qr-scan", h.Attendance.ScanQR)
	secured.GET("/attendance/export", h.Attendance.Export)

	secured.GET("/sessions", h.Sessions.Status)
	secured.POST("/sessions/face", h.Sessions.StartFace)
	secured.POST("/sessions/qr", h.Sessions.StartQR)
	secured.POST("/sessions/capture", h.Sessions.StartCapture)
	secured.POST("/sessions/stop", h.Sessions.Stop)

	secured.POST("/training", h.Training.Train)
	secured.GET("/training", h.Training.Status)
}
