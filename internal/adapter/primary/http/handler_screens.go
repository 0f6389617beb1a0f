package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/port/primary"
)

// ScreensHandler serves the /screens collection and its per-screen actions.
type ScreensHandler struct {
	service primary.ScreenService
	logger  *zap.Logger
}

// NewScreensHandler creates the screens handler.
func NewScreensHandler(service primary.ScreenService, logger *zap.Logger) *ScreensHandler {
	return &ScreensHandler{
		service: service,
		logger:  logger.Named("screens-handler"),
	}
}

// List handles GET /screens.
func (h *ScreensHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	snaps := h.service.List()
	resp := ScreenListResponse{Screens: make([]ScreenResponse, 0, len(snaps))}
	for _, s := range snaps {
		resp.Screens = append(resp.Screens, toScreenResponse(s, false))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /screens/{name}.
func (h *ScreensHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	snap, err := h.service.Snapshot(r.PathValue("name"))
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, toScreenResponse(snap, true))
}

// Action handles POST /screens/{name}/{action} for mount, unmount and refresh.
// A failed initial fetch still leaves the screen mounted.
func (h *ScreensHandler) Action(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	name := r.PathValue("name")
	var err error
	switch r.PathValue("action") {
	case "mount":
		err = h.service.Mount(r.Context(), name)
	case "unmount":
		err = h.service.Unmount(name)
	case "refresh":
		err = h.service.Refresh(r.Context(), name)
	default:
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown action", Code: "NOT_FOUND"})
		return
	}
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	snap, err := h.service.Snapshot(name)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, toScreenResponse(snap, true))
}
