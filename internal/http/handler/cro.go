package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oraclewalid/discoveo/internal/http/dto"
	"github.com/oraclewalid/discoveo/internal/service"
)

type CroHandler struct {
	reports service.ReportService
}

func NewCroHandler(reports service.ReportService) *CroHandler {
	return &CroHandler{reports: reports}
}

// Generate runs an audit in the request and returns the report.
func (h *CroHandler) Generate(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	report, err := h.reports.Generate(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Enqueue hands the audit to the worker. Progress is on the status stream.
func (h *CroHandler) Enqueue(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	job, err := h.reports.Enqueue(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ToEnqueueReportResponse(job))
}

func (h *CroHandler) List(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	reports, err := h.reports.List(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToReportListResponse(reports))
}

func (h *CroHandler) Get(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	reportID, ok := uuidParam(c, "report_id")
	if !ok {
		return
	}

	report, err := h.reports.Get(c.Request.Context(), projectID, reportID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
