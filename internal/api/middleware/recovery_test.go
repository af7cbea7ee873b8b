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

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("PanicBecomes500", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		router := gin.New()
		router.Use(CorrelationID(), Recovery(logger))
		router.GET("/boom", func(c *gin.Context) {
			panic("ledger cache corrupted")
		})

		req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		errInfo, ok := body["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", errInfo["code"])
		assert.NotEmpty(t, body["correlation_id"])

		// The panic value and stack end up in the log, not the response.
		assert.Contains(t, buf.String(), "ledger cache corrupted")
		assert.NotContains(t, rr.Body.String(), "ledger cache corrupted")
	})

	t.Run("PassesThroughNormalRequests", func(t *testing.T) {
		logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

		router := gin.New()
		router.Use(Recovery(logger))
		router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })

		req, _ := http.NewRequest(http.MethodGet, "/ok", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "fine", rr.Body.String())
	})
}
