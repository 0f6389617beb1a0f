package secondary

import "github.com/ruudy-sib/resync/internal/domain/entity"

// VisibilitySignal exposes the hosting page's visibility state and its
// change notifications.
type VisibilitySignal interface {
	// State returns the current visibility state.
	State() entity.VisibilityState

	// Subscribe returns a channel that receives the new state on every change,
	// and a func that retires the subscription.
	Subscribe(buffer int) (<-chan entity.VisibilityState, func())
}

// VisibilityController is a VisibilitySignal whose state can be driven,
// e.g. by the page reporting visibilitychange events.
type VisibilityController interface {
	VisibilitySignal

	// Set records the new state and reports whether it was a transition.
	Set(state entity.VisibilityState) bool
}
