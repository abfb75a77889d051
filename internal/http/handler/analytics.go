package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/service"
)

const datasetDateLayout = "20060102"

type AnalyticsHandler struct {
	analytics service.AnalyticsService
}

func NewAnalyticsHandler(analytics service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

type analyticsQuery struct {
	projectID   uuid.UUID
	connectorID uuid.UUID
	dimension   analytics.Dimension
	start, end  string
}

// parseQuery reads ids, dimension and the YYYYMMDD date window. It writes the
// 400 response itself and reports false on bad input.
func parseQuery(c *gin.Context) (analyticsQuery, bool) {
	var q analyticsQuery
	var ok bool
	if q.projectID, ok = uuidParam(c, "project_id"); !ok {
		return q, false
	}
	if q.connectorID, ok = uuidParam(c, "connector_id"); !ok {
		return q, false
	}

	q.dimension = analytics.DimensionAll
	if raw := c.Query("dimension"); raw != "" {
		if q.dimension, ok = analytics.ParseDimension(raw); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown dimension " + raw})
			return q, false
		}
	}

	q.start, q.end = c.Query("start_date"), c.Query("end_date")
	for name, value := range map[string]string{"start_date": q.start, "end_date": q.end} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(datasetDateLayout, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYYMMDD"})
			return q, false
		}
	}
	return q, true
}

func (h *AnalyticsHandler) Funnel(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}

	stages, err := h.analytics.Funnel(c.Request.Context(), q.projectID, q.connectorID, q.dimension, q.start, q.end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

func (h *AnalyticsHandler) ScrollDepth(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}

	depths, err := h.analytics.ScrollDepth(c.Request.Context(), q.projectID, q.connectorID, q.dimension, q.start, q.end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, depths)
}

func (h *AnalyticsHandler) PagePaths(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}

	pages, err := h.analytics.PagePaths(c.Request.Context(), q.projectID, q.connectorID, q.start, q.end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

// DebugEvents lists raw event names with counts, to check what an export contains.
func (h *AnalyticsHandler) DebugEvents(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}

	events, err := h.analytics.EventNames(c.Request.Context(), q.projectID, q.connectorID, q.start, q.end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
