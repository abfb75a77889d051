package router

import (
	"github.com/gin-gonic/gin"

	"github.com/oraclewalid/discoveo/internal/http/handler"
)

func QualitativeRouter(rg *gin.RouterGroup, h *handler.QualitativeHandler) {
	rg.GET("/stats", h.Stats)
	rg.GET("/embeddings/status", h.EmbeddingStatus)
	rg.POST("/embeddings", h.EnqueueEmbeddings)
	rg.POST("/comments/search", h.SearchComments)
	rg.POST("/feedback", h.AnalyzeFeedback)
}
