package http

import (
	"encoding/json"
	"time"

	"github.com/ruudy-sib/resync/internal/domain/entity"
)

// ScreenResponse is a screen's state as exposed over HTTP.
type ScreenResponse struct {
	Name            string                     `json:"name"`
	Mounted         bool                       `json:"mounted"`
	IntervalSeconds int64                      `json:"interval_seconds"`
	Topics          []string                   `json:"topics"`
	Refreshes       int                        `json:"refreshes"`
	FetchedAt       *time.Time                 `json:"fetched_at,omitempty"`
	LastError       string                     `json:"last_error,omitempty"`
	TaskID          string                     `json:"task_id,omitempty"`
	Data            map[string]json.RawMessage `json:"data,omitempty"`
}

// ScreenListResponse is returned by GET /screens.
type ScreenListResponse struct {
	Screens []ScreenResponse `json:"screens"`
}

// VisibilityRequest is the body of PUT /visibility.
type VisibilityRequest struct {
	State string `json:"state"`
}

// VisibilityResponse echoes the recorded visibility state.
type VisibilityResponse struct {
	State string `json:"state"`
}

// PublishResponse is returned on a successfully dispatched realtime event.
type PublishResponse struct {
	Event string `json:"event"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// toScreenResponse converts a snapshot to its DTO. Data is only included
// when withData is set so listings stay small.
func toScreenResponse(s entity.Snapshot, withData bool) ScreenResponse {
	resp := ScreenResponse{
		Name:            s.Screen,
		Mounted:         s.Mounted,
		IntervalSeconds: int64(s.Interval / time.Second),
		Topics:          make([]string, 0, len(s.Topics)),
		Refreshes:       s.Refreshes,
		LastError:       s.LastError,
		TaskID:          s.TaskID,
	}
	for _, t := range s.Topics {
		resp.Topics = append(resp.Topics, string(t))
	}
	if !s.FetchedAt.IsZero() {
		at := s.FetchedAt
		resp.FetchedAt = &at
	}
	if withData {
		resp.Data = s.Data
	}
	return resp
}
