package router

import (
	"github.com/gin-gonic/gin"

	"github.com/oraclewalid/discoveo/internal/http/handler"
)

func CroRouter(rg *gin.RouterGroup, h *handler.CroHandler, status *handler.StatusHandler) {
	rg.POST("/report", h.Generate)
	rg.POST("/report/jobs", h.Enqueue)
	rg.GET("/reports", h.List)
	rg.GET("/reports/:report_id", h.Get)
	rg.GET("/status", status.Stream)
}
