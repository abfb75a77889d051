package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oraclewalid/discoveo/internal/cro"
)

const defaultStatusBlock = 25 * time.Second

// ProgressReader reads a project's agent progress stream. *cro.RedisProgress
// implements it.
type ProgressReader interface {
	Read(ctx context.Context, projectID uuid.UUID, lastID string, block time.Duration) ([]cro.ProgressEvent, string, error)
}

type StatusHandler struct {
	progress ProgressReader
	block    time.Duration
}

func NewStatusHandler(progress ProgressReader) *StatusHandler {
	return &StatusHandler{progress: progress, block: defaultStatusBlock}
}

// WithBlock sets how long each read waits before a keep-alive ping.
func (h *StatusHandler) WithBlock(block time.Duration) *StatusHandler {
	h.block = block
	return h
}

// Stream sends progress events as SSE. Clients resume with last_id or the
// Last-Event-ID header. With run_id, only that run is streamed and the
// response ends after its terminal event.
func (h *StatusHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.progress == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "redis not configured"})
		return
	}

	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	var runID int64
	if raw := c.Query("run_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
			return
		}
		runID = parsed
	}

	lastID := c.Query("last_id")
	if lastID == "" {
		lastID = c.GetHeader("Last-Event-ID")
	}
	if lastID == "" && runID != 0 {
		// replay the retained history so early events of the run are not missed
		lastID = "0"
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	sseWrite(c.Writer, "", "ping", "ready")
	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		events, cursor, err := h.progress.Read(ctx, projectID, lastID, h.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sseWrite(c.Writer, "", "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		lastID = cursor

		if len(events) == 0 {
			sseWrite(c.Writer, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}

		for _, event := range events {
			if runID != 0 && event.RunID != runID {
				continue
			}
			sseWrite(c.Writer, event.ID, "progress", event)
			flusher.Flush()
			if runID != 0 && event.Terminal() {
				return
			}
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, id, event string, data any) {
	payload := marshalPayload(data)
	if id != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", id)
	}
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case []byte:
		return string(payload)
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
