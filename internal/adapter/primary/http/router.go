package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/port/primary"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// NewRouter creates an HTTP mux with all application routes registered.
func NewRouter(
	screenService primary.ScreenService,
	healthChecks []secondary.HealthChecker,
	logger *zap.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Screen endpoints
	screens := NewScreensHandler(screenService, logger)
	mux.HandleFunc("/screens", screens.List)
	mux.HandleFunc("/screens/{name}", screens.Get)
	mux.HandleFunc("/screens/{name}/{action}", screens.Action)

	// Signal endpoints
	mux.Handle("/visibility", NewVisibilityHandler(screenService, logger))
	mux.Handle("/realtime/{topic}", NewRealtimeHandler(screenService, logger))

	// Health check endpoint
	mux.Handle("/health", NewHealthHandler(healthChecks))

	return mux
}
