package http

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/primary"
)

const maxDetailSize = 64 << 10

// VisibilityHandler handles PUT /visibility requests.
type VisibilityHandler struct {
	service primary.ScreenService
	logger  *zap.Logger
}

// NewVisibilityHandler creates a handler for page visibility reports.
func NewVisibilityHandler(service primary.ScreenService, logger *zap.Logger) *VisibilityHandler {
	return &VisibilityHandler{service: service, logger: logger.Named("visibility-handler")}
}

// ServeHTTP records the reported visibility state.
func (h *VisibilityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, http.MethodPut)
		return
	}

	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBody(w)
		return
	}
	state, err := entity.ParseVisibility(req.State)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	h.service.SetVisibility(state)
	respondJSON(w, http.StatusOK, VisibilityResponse{State: string(state)})
}

// RealtimeHandler handles POST /realtime/{topic} requests.
type RealtimeHandler struct {
	service primary.ScreenService
	logger  *zap.Logger
}

// NewRealtimeHandler creates a handler that injects realtime events.
func NewRealtimeHandler(service primary.ScreenService, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{service: service, logger: logger.Named("realtime-handler")}
}

// ServeHTTP publishes an event for the path's topic. The optional body is
// the opaque event detail and must be JSON.
func (h *RealtimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	topic, err := entity.ParseTopic(r.PathValue("topic"))
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDetailSize))
	if err != nil {
		invalidBody(w)
		return
	}
	var detail json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			invalidBody(w)
			return
		}
		detail = body
	}

	if err := h.service.Publish(r.Context(), entity.NewTopicEvent(topic, detail)); err != nil {
		respondError(w, err, h.logger)
		return
	}
	respondJSON(w, http.StatusAccepted, PublishResponse{Event: topic.EventName()})
}
