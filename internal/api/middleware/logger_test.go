package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(buf *bytes.Buffer) *gin.Engine {
		logger := slog.New(slog.NewJSONHandler(buf, nil))
		r := gin.New()
		r.Use(CorrelationID(), Logger(logger))
		r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/work", func(c *gin.Context) { c.String(http.StatusTeapot, "short and stout") })
		return r
	}

	t.Run("LogsRequestDetails", func(t *testing.T) {
		var buf bytes.Buffer
		router := newRouter(&buf)

		req, _ := http.NewRequest(http.MethodGet, "/work?limit=5", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "HTTP request", entry["msg"])
		assert.Equal(t, http.MethodGet, entry["method"])
		assert.Equal(t, "/work?limit=5", entry["path"])
		assert.Equal(t, float64(http.StatusTeapot), entry["status"])
		assert.NotEmpty(t, entry["correlation_id"])
	})

	t.Run("SkipsHealthProbes", func(t *testing.T) {
		var buf bytes.Buffer
		router := newRouter(&buf)

		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Zero(t, buf.Len())
	})
}
