package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-attendance/internal/dto"
	"github.com/noah-isme/smart-attendance/pkg/response"
)

type qrService interface {
	Generate(ctx context.Context, studentID string) (*dto.QRGenerateResult, error)
	GenerateAll(ctx context.Context) (*dto.QRBatchResult, error)
	DownloadLink(ctx context.Context, studentID string) (*dto.QRLinkResponse, error)
	OpenSigned(token string) (*os.File, string, error)
}

// QRHandler exposes student QR code generation.
type QRHandler struct {
	qr qrService
}

// NewQRHandler constructs QRHandler.
func NewQRHandler(qr qrService) *QRHandler {
	return &QRHandler{qr: qr}
}

// Generate godoc
// @Summary Generate a student QR code
// @Description Writes <id>.png once; repeated calls report created=false
// @Tags QR
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Router /students/{id}/qr [post]
func (h *QRHandler) Generate(c *gin.Context) {
	result, err := h.qr.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateAll godoc
// @Summary Generate QR codes for every student
// @Tags QR
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /qr/generate [post]
func (h *QRHandler) GenerateAll(c *gin.Context) {
	result, err := h.qr.GenerateAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Link godoc
// @Summary Signed download link for a student QR code
// @Tags QR
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/qr [get]
func (h *QRHandler) Link(c *gin.Context) {
	link, err := h.qr.DownloadLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a student QR code
// @Tags QR
// @Produce png
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /qr/download/{token} [get]
func (h *QRHandler) Download(c *gin.Context) {
	file, name, err := h.qr.OpenSigned(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, file, filepath.Base(name))
}
