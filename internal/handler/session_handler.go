package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/dto"
	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/service"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/response"
)

// stopTimeout bounds how long Stop waits for the loop to release the camera.
const stopTimeout = 10 * time.Second

type sessionService interface {
	StartFace(ctx context.Context) (*service.Session, error)
	StartQR(ctx context.Context) (*service.Session, error)
	StartCapture(ctx context.Context, studentID string) (*service.Session, error)
	Stop(ctx context.Context) (*models.SessionSummary, error)
	Status(ctx context.Context) dto.SessionStatus
}

// SessionHandler starts and stops camera sessions.
type SessionHandler struct {
	sessions sessionService
	logger   *zap.Logger
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{sessions: sessions, logger: logger}
}

// StartFace godoc
// @Summary Start face recognition attendance
// @Tags Sessions
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sessions/face [post]
func (h *SessionHandler) StartFace(c *gin.Context) {
	h.started(c, func(ctx context.Context) (*service.Session, error) {
		return h.sessions.StartFace(ctx)
	})
}

// StartQR godoc
// @Summary Start QR attendance
// @Tags Sessions
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/qr [post]
func (h *SessionHandler) StartQR(c *gin.Context) {
	h.started(c, func(ctx context.Context) (*service.Session, error) {
		return h.sessions.StartQR(ctx)
	})
}

// StartCapture godoc
// @Summary Capture face samples for a student
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.StartCaptureRequest true "Student to enroll"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/capture [post]
func (h *SessionHandler) StartCapture(c *gin.Context) {
	var req dto.StartCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid capture payload"))
		return
	}
	h.started(c, func(ctx context.Context) (*service.Session, error) {
		return h.sessions.StartCapture(ctx, req.StudentID)
	})
}

func (h *SessionHandler) started(c *gin.Context, start func(context.Context) (*service.Session, error)) {
	session, err := start(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("camera session started",
		zap.String("session_id", session.ID()),
		zap.String("mode", string(session.Mode())),
		zap.String("operator", operatorName(c)),
	)
	response.Accepted(c, session.Summary())
}

// Stop godoc
// @Summary Stop the running camera session
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/stop [post]
func (h *SessionHandler) Stop(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), stopTimeout)
	defer cancel()

	summary, err := h.sessions.Stop(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Status godoc
// @Summary Camera session status
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.sessions.Status(c.Request.Context()), nil)
}
