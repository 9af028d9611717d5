package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) { seen = Value(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(Header, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestMiddlewareReusesCallerID(t *testing.T) {
	w, seen := serve("kiosk-7:42")
	assert.Equal(t, "kiosk-7:42", seen)
	assert.Equal(t, "kiosk-7:42", w.Header().Get(Header))
}

func TestMiddlewareReplacesUnusableID(t *testing.T) {
	for _, header := range []string{"", strings.Repeat("a", 65), "has space"} {
		w, seen := serve(header)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, header)
		assert.Equal(t, seen, w.Header().Get(Header))
	}
}
