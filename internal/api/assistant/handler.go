package assistant

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	appMiddleware "github.com/iamnithishraja/cavens-assistant/app/middleware"
	"github.com/iamnithishraja/cavens-assistant/internal/api"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

type Handler struct {
	service   Service
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler builds the HTTP surface; heartbeat is the SSE keepalive
// interval, zero meaning the default.
func NewHandler(service Service, logger *slog.Logger, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	return &Handler{service: service, logger: logger, heartbeat: heartbeat}
}

// Chat handles POST /assistant/chat. The stream flag in the body switches
// between the synchronous JSON response and the SSE session.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := appMiddleware.GetUserUUIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req types.ChatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Stream {
		h.chatStream(w, r, req, userID)
		return
	}

	result, err := h.service.Chat(ctx, req, userID)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "message is required")
			return
		}
		h.logger.ErrorContext(ctx, "chat failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process message")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// Suggestions handles GET /assistant/suggestions?city=.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	city := r.URL.Query().Get("city")

	resp, err := h.service.Suggestions(ctx, city)
	if err != nil {
		h.logger.ErrorContext(ctx, "suggestions failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load suggestions")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
