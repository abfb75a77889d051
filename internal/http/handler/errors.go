package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/qualitative"
	"github.com/oraclewalid/discoveo/internal/service"
	"github.com/oraclewalid/discoveo/internal/store"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var parseErr *cro.ParseError
	var runErr *cro.RunError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNotGA4Connector),
		errors.Is(err, qualitative.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrNoData),
		errors.Is(err, qualitative.ErrNotEnoughComments):
		return http.StatusPreconditionFailed
	case errors.Is(err, llm.ErrMissingAPIKey),
		errors.Is(err, qualitative.ErrNoEmbedder),
		errors.Is(err, service.ErrQueueDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &parseErr),
		errors.Is(err, qualitative.ErrInvalidAnalysis),
		errors.As(err, &runErr) && runErr.Kind == cro.KindTerminal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status := statusFor(err)
	_ = c.Error(err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// uuidParam reads a path parameter, answering 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return parsed, true
}
