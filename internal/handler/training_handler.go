package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/pkg/response"
)

type trainingService interface {
	Train(ctx context.Context) (*models.TrainingResult, error)
	Enqueue(ctx context.Context) (*models.TrainingJob, error)
	Status() models.TrainingJob
}

// TrainingHandler triggers classifier training.
type TrainingHandler struct {
	training trainingService
}

// NewTrainingHandler constructs TrainingHandler.
func NewTrainingHandler(training trainingService) *TrainingHandler {
	return &TrainingHandler{training: training}
}

// Train godoc
// @Summary Train the face classifier
// @Description Queues a full rebuild of the model from every captured sample. Pass wait=true to train inline.
// @Tags Training
// @Produce json
// @Param wait query bool false "Block until training finishes"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /training [post]
func (h *TrainingHandler) Train(c *gin.Context) {
	if c.Query("wait") == "true" {
		result, err := h.training.Train(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
		return
	}

	job, err := h.training.Enqueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Latest training job
// @Tags Training
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /training [get]
func (h *TrainingHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.training.Status(), nil)
}
