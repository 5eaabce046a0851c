package handler

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/broadcast"
	"github.com/safecommute/safecommute-backend-go/pkg/response"
)

var knownTopics = map[string]bool{
	broadcast.TopicCrowd:    true,
	broadcast.TopicVehicles: true,
	broadcast.TopicAlerts:   true,
	broadcast.TopicSystem:   true,
}

// StreamHandler serves live events over server-sent events
type StreamHandler struct {
	hub *broadcast.Hub
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *broadcast.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Stream handles GET /api/v1/stream?topics=crowd,alerts&location=central-station
func (h *StreamHandler) Stream(c *gin.Context) {
	var topics []string
	for _, t := range strings.Split(c.Query("topics"), ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !knownTopics[t] {
			response.BadRequest(c, "Unknown topic: "+t)
			return
		}
		topics = append(topics, t)
	}

	sub := h.hub.Subscribe(topics, c.Query("location"))
	defer h.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		}
	})
}
