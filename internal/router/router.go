package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gstrecon/internal/config"
	"gstrecon/internal/handler"
	"gstrecon/internal/metrics"
	"gstrecon/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	log logrus.FieldLogger,
	m *metrics.Metrics,
	reconH *handler.ReconciliationHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()
	handler.SetErrorLogger(log)

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(m.Middleware())

	// Health checks and metrics
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	r.GET("/metrics", m.Handler())

	v1 := r.Group("/api/v1")

	recon := v1.Group("/reconciliations")
	recon.Use(middleware.BodyLimit(cfg.Server.MaxBodyMB << 20))
	recon.POST("/preview", reconH.Preview)
	recon.POST("", reconH.Create)
	recon.GET("", reconH.List)
	recon.GET("/:id", reconH.GetByID)
	recon.DELETE("/:id", reconH.Delete)
	recon.GET("/:id/mismatches", reconH.ListMismatches)
	recon.GET("/:id/vendors", reconH.ListVendors)
	recon.GET("/:id/groups", reconH.ListGroups)
	recon.GET("/:id/insights", reconH.Insights)
	recon.GET("/:id/graph", reconH.Graph)
	recon.GET("/:id/export", reconH.Export)
	recon.GET("/:id/report-url", reconH.ReportURL)

	return r
}
