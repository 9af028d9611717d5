package handler

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/response"
)

// serveFile streams file as an attachment and closes it.
func serveFile(c *gin.Context, file *os.File, name string) {
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat file"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", contentType)
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
