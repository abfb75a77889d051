package dto

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/service"
)

type EnqueueReportResponse struct {
	RunID       string    `json:"run_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	ConnectorID uuid.UUID `json:"connector_id"`
	Status      string    `json:"status"`
}

func ToEnqueueReportResponse(job *service.ReportJob) EnqueueReportResponse {
	return EnqueueReportResponse{
		RunID:       strconv.FormatInt(job.RunID, 10),
		ProjectID:   job.ProjectID,
		ConnectorID: job.ConnectorID,
		Status:      "queued",
	}
}

type ReportListResponse struct {
	Reports []model.CroReport `json:"reports"`
	Count   int               `json:"count"`
}

func ToReportListResponse(reports []model.CroReport) ReportListResponse {
	if reports == nil {
		reports = []model.CroReport{}
	}
	return ReportListResponse{Reports: reports, Count: len(reports)}
}
