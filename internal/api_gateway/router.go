package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pfin-cycle-ledger/internal/api_gateway/handler"
	"github.com/pfin-cycle-ledger/internal/api_gateway/middleware"
	"github.com/pfin-cycle-ledger/internal/config"
)

// handlers groups the HTTP handlers mounted by setupRouter
type handlers struct {
	cycle     *handler.CycleHandler
	ledger    *handler.LedgerHandler
	liability *handler.LiabilityHandler
	preview   *handler.PreviewHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, auth config.AuthConfig, h handlers) {
	// Recovery sits inside Logger so recovered panics are logged as 500s
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	// API v1 endpoints, all scoped to the authenticated user
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity(auth.JWTSecret, auth.Issuer, logger))
	{
		cycles := v1.Group("/cycles")
		{
			cycles.POST("/run", h.cycle.Run)
			cycles.POST("/trigger", h.cycle.Trigger)
			cycles.GET("/runs", h.cycle.ListRuns)
			cycles.GET("/snapshots/:cycle_key", h.cycle.GetSnapshot)
			cycles.GET("/audits", h.cycle.ListAudits)
		}

		previews := v1.Group("/previews")
		{
			previews.POST("/cards", h.preview.PreviewCard)
			previews.POST("/loans", h.preview.PreviewLoan)
		}

		liabilities := v1.Group("/liabilities")
		{
			liabilities.GET("", h.liability.List)
			liabilities.POST("/cards", h.liability.CreateCard)
			liabilities.POST("/loans", h.liability.CreateLoan)
			liabilities.GET("/:id/preview", h.liability.Preview)
			liabilities.POST("/:id/charges", h.liability.Charge)
			liabilities.POST("/:id/payments", h.liability.Pay)
		}

		v1.POST("/recurrences/next-occurrence", h.preview.NextOccurrence)

		entries := v1.Group("/ledger/entries")
		{
			entries.POST("", h.ledger.Append)
			entries.GET("", h.ledger.List)
			entries.GET("/:id", h.ledger.GetByID)
			entries.POST("/:id/reverse", h.ledger.Reverse)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
