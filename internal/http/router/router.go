package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oraclewalid/discoveo/internal/http/handler"
	"github.com/oraclewalid/discoveo/internal/service"
)

type RouterConfig struct {
	MetricsEnabled bool
	// Progress backs the SSE status stream. Nil answers 503.
	Progress handler.ProgressReader
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		projects := v1.Group("/projects/:project_id")

		croHandler := handler.NewCroHandler(services.Reports())
		statusHandler := handler.NewStatusHandler(cfg.Progress)
		CroRouter(projects.Group("/cro"), croHandler, statusHandler)

		analyticsHandler := handler.NewAnalyticsHandler(services.Analytics())
		AnalyticsRouter(projects.Group("/connectors/ga4/:connector_id"), analyticsHandler)

		qualitativeHandler := handler.NewQualitativeHandler(services.Qualitative())
		QualitativeRouter(projects.Group("/qualitative"), qualitativeHandler)
	}
}
