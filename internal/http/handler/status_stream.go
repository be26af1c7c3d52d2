package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/queue"
)

type StatusReader interface {
	Read(ctx context.Context, kind model.JobKind, lastID string, block time.Duration) ([]queue.StatusEvent, error)
}

// StatusStreamHandler relays the redis status stream of one job kind to the
// browser as server-sent events.
type StatusStreamHandler struct {
	reader StatusReader
	block  time.Duration
}

func NewStatusStreamHandler(reader StatusReader, block time.Duration) *StatusStreamHandler {
	if block <= 0 {
		block = 25 * time.Second
	}
	return &StatusStreamHandler{reader: reader, block: block}
}

func (h *StatusStreamHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.reader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "status streaming requires redis"})
		return
	}

	kind := model.JobKind(c.Param("kind"))
	if !kind.Valid() {
		badRequest(c, fmt.Sprintf("unknown job kind %q", kind))
		return
	}

	lastID := c.Query("last_id")
	if lastID == "" {
		lastID = c.GetHeader("Last-Event-ID")
	}
	if lastID == "" {
		lastID = "$"
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming not supported"})
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

		events, err := h.reader.Read(ctx, kind, lastID, h.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sseWrite(c.Writer, "", "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			select {
			case <-ctx.Done():
				return
			case <-time.After(min(h.block, time.Second)):
			}
			continue
		}

		if len(events) == 0 {
			sseWrite(c.Writer, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}

		for _, ev := range events {
			lastID = ev.ID
			sseWrite(c.Writer, ev.ID, "status", ev.Record)
		}
		flusher.Flush()
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
	case json.RawMessage:
		return string(payload)
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
