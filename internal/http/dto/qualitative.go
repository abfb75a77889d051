package dto

import (
	"strconv"
	"time"

	"github.com/oraclewalid/discoveo/internal/model"
)

type SearchCommentsRequest struct {
	Query         string   `json:"query" binding:"required"`
	Limit         *int     `json:"limit,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

type CommentResult struct {
	Comment    string     `json:"comment"`
	Similarity float64    `json:"similarity"`
	Rating     *float64   `json:"rating"`
	Date       *time.Time `json:"date"`
	Country    *string    `json:"country"`
	Device     *string    `json:"device"`
	URL        *string    `json:"url"`
}

type SearchCommentsResponse struct {
	Query   string          `json:"query"`
	Results []CommentResult `json:"results"`
}

func ToSearchCommentsResponse(query string, comments []model.SimilarComment) SearchCommentsResponse {
	results := make([]CommentResult, 0, len(comments))
	for _, c := range comments {
		results = append(results, CommentResult{
			Comment:    c.Response.CommentText(),
			Similarity: c.Similarity,
			Rating:     c.Response.Rating,
			Date:       c.Response.Date,
			Country:    c.Response.Country,
			Device:     c.Response.Device,
			URL:        c.Response.URL,
		})
	}
	return SearchCommentsResponse{Query: query, Results: results}
}

type EnqueueJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func ToEnqueueJobResponse(jobID int64) EnqueueJobResponse {
	return EnqueueJobResponse{JobID: strconv.FormatInt(jobID, 10), Status: "queued"}
}
