package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iamnithishraja/cavens-assistant/internal/api"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

const defaultHeartbeatInterval = 30 * time.Second

// chatStream runs one SSE session. Every frame is `data: {json}\n\n`;
// heartbeats keep idle proxies from closing the connection.
func (h *Handler) chatStream(w http.ResponseWriter, r *http.Request, req types.ChatRequest, userID uuid.UUID) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := r.Context()

	streamResp, err := h.service.ChatStream(ctx, req, userID)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			h.writeSSEEvent(w, flusher, types.StreamEvent{
				Type:  types.EventTypeError,
				Error: "message is required",
				Ts:    time.Now().UnixMilli(),
			})
			return
		}
		h.writeSSEEvent(w, flusher, types.StreamEvent{
			Type:  types.EventTypeError,
			Error: "Failed to start session",
			Ts:    time.Now().UnixMilli(),
		})
		return
	}
	defer streamResp.Cancel()

	h.logger.InfoContext(ctx, "Started streaming session",
		slog.String("session_id", streamResp.SessionID.String()),
		slog.String("city", req.City))

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-streamResp.Stream:
			if !ok {
				h.logger.InfoContext(ctx, "Stream closed",
					slog.String("session_id", streamResp.SessionID.String()))
				return
			}
			h.writeSSEEvent(w, flusher, event)

		case <-heartbeat.C:
			h.writeSSEEvent(w, flusher, types.StreamEvent{
				Type: types.EventTypeHeartbeat,
				Ts:   time.Now().UnixMilli(),
			})

		case <-ctx.Done():
			h.logger.InfoContext(ctx, "Client disconnected",
				slog.String("session_id", streamResp.SessionID.String()))
			return
		}
	}
}

func (h *Handler) writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event types.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal stream event", slog.Any("error", err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
