package domain

import "time"

const (
	// RealtimeEventPrefix prefixes every realtime topic signal name.
	RealtimeEventPrefix = "realtime:"

	// NotificationsInterval is the refresh cadence of the notifications screen.
	NotificationsInterval = 60 * time.Second

	// DefaultScreenInterval is the refresh cadence of dashboards, attendance,
	// marks, profile and the download center.
	DefaultScreenInterval = 300 * time.Second

	// TimetableInterval is the refresh cadence of the timetable screen.
	TimetableInterval = 1800 * time.Second

	// MinScreenInterval rejects screen definitions that would hammer the API.
	MinScreenInterval = 1 * time.Second

	// DefaultSubscriberBuffer is the channel buffer for topic and visibility subscribers.
	DefaultSubscriberBuffer = 16

	// DefaultReconnectInterval is the base delay before a realtime source reconnects.
	DefaultReconnectInterval = 1 * time.Second

	// MaxReconnectInterval caps the realtime reconnect backoff.
	MaxReconnectInterval = 30 * time.Second

	// MaxEndpointsPerScreen caps how many REST endpoints a single screen may fetch.
	MaxEndpointsPerScreen = 16
)
