package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stacksos/patron-billing/internal/api/handler"
	"github.com/stacksos/patron-billing/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	billingHandler *handler.BillingHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// One billing session per staff patron view
		sessions := v1.Group("/billing/sessions")
		{
			sessions.POST("", billingHandler.OpenSession)
			sessions.GET("/:id", billingHandler.GetSession)
			sessions.POST("/:id/reload", billingHandler.Reload)
			sessions.PATCH("/:id/selection", billingHandler.SetSelection)
			sessions.POST("/:id/payments", billingHandler.SubmitPayment)
			sessions.POST("/:id/refunds", billingHandler.SubmitRefund)
			sessions.DELETE("/:id", billingHandler.CloseSession)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
