package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/realtime"
	"github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
)

// RealtimeHandler upgrades authenticated users to the websocket hub.
type RealtimeHandler struct {
	hub     *realtime.Hub
	allowed map[string]struct{}
}

// NewRealtimeHandler constructs a realtime handler restricted to the known streams.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	allowed := make(map[string]struct{})
	for _, stream := range realtime.KnownStreams() {
		allowed[stream] = struct{}{}
	}
	return &RealtimeHandler{hub: hub, allowed: allowed}
}

// Stream GET /api/notifications/stream
//
// Browsers cannot set headers on websocket upgrades, so the auth middleware
// in front of this route also accepts ?token=.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	streams := gatherStreams(c)
	if len(streams) == 0 {
		streams = []string{realtime.StreamNotifications}
	}
	for _, stream := range streams {
		if _, ok := h.allowed[stream]; !ok {
			response.Error(c, errors.NewBadRequest("unknown stream "+stream))
			return
		}
	}

	h.hub.Serve(userID, streams, h.allowed, c.Writer, c.Request)
}

func gatherStreams(c *gin.Context) []string {
	var streams []string
	for _, value := range c.QueryArray("stream") {
		if normalized := normalizeStream(value); normalized != "" {
			streams = append(streams, normalized)
		}
	}
	if raw := c.Query("streams"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if normalized := normalizeStream(part); normalized != "" {
				streams = append(streams, normalized)
			}
		}
	}
	return uniqueStreams(streams)
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
