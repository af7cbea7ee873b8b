package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(capture *string) *gin.Engine {
		r := gin.New()
		r.Use(CorrelationID())
		r.GET("/ping", func(c *gin.Context) {
			*capture = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})
		return r
	}

	t.Run("GeneratesIDWhenHeaderMissing", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.NotEmpty(t, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, rr.Header().Get(CorrelationIDHeader))
	})

	t.Run("ReusesValidInboundID", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)
		inbound := uuid.New().String()

		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(CorrelationIDHeader, inbound)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, inbound, seen)
		assert.Equal(t, inbound, rr.Header().Get(CorrelationIDHeader))
	})

	t.Run("ReplacesMalformedInboundID", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(CorrelationIDHeader, "not-a-uuid'); DROP TABLE--")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.NotEmpty(t, seen)
		assert.NotEqual(t, "not-a-uuid'); DROP TABLE--", seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})
}

func TestGetCorrelationID_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Equal(t, "", GetCorrelationID(c))
}
