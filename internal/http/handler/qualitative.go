package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oraclewalid/discoveo/internal/http/dto"
	"github.com/oraclewalid/discoveo/internal/service"
)

type QualitativeHandler struct {
	qualitative service.QualitativeService
}

func NewQualitativeHandler(qualitative service.QualitativeService) *QualitativeHandler {
	return &QualitativeHandler{qualitative: qualitative}
}

func (h *QualitativeHandler) Stats(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	stats, err := h.qualitative.Stats(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *QualitativeHandler) EmbeddingStatus(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	status, err := h.qualitative.EmbeddingStatus(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *QualitativeHandler) EnqueueEmbeddings(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	jobID, err := h.qualitative.EnqueueEmbeddings(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ToEnqueueJobResponse(jobID))
}

func (h *QualitativeHandler) SearchComments(c *gin.Context) {
	ctx := c.Request.Context()
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	var req dto.SearchCommentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comments, err := h.qualitative.SearchComments(ctx, projectID, service.SearchQuery{
		Query:         req.Query,
		Limit:         req.Limit,
		MinSimilarity: req.MinSimilarity,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToSearchCommentsResponse(req.Query, comments))
}

// AnalyzeFeedback returns the cached theme analysis or runs a new one.
// ?force=true skips the cache.
func (h *QualitativeHandler) AnalyzeFeedback(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "force must be a boolean"})
			return
		}
		force = parsed
	}

	analysis, err := h.qualitative.AnalyzeFeedback(c.Request.Context(), projectID, force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}
