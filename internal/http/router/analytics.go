package router

import (
	"github.com/gin-gonic/gin"

	"github.com/oraclewalid/discoveo/internal/http/handler"
)

func AnalyticsRouter(rg *gin.RouterGroup, h *handler.AnalyticsHandler) {
	rg.GET("/funnel", h.Funnel)
	rg.GET("/scroll-depth", h.ScrollDepth)
	rg.GET("/page-paths", h.PagePaths)
	rg.GET("/debug/events", h.DebugEvents)
}
