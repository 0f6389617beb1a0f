package primary

import (
	"context"

	"github.com/ruudy-sib/resync/internal/domain/entity"
)

// ScreenService defines the primary port for screen operations
// exposed to driving adapters (HTTP handlers, config watcher, library API).
type ScreenService interface {
	// Mount performs the screen's initial fetch and starts its refresh scheduling.
	Mount(ctx context.Context, name string) error

	// Unmount stops the screen's refresh scheduling and topic subscription.
	Unmount(name string) error

	// Refresh refetches the screen's data immediately.
	Refresh(ctx context.Context, name string) error

	// Snapshot returns the screen's current local state.
	Snapshot(name string) (entity.Snapshot, error)

	// List returns a snapshot of every registered screen, ordered by name.
	List() []entity.Snapshot

	// SetVisibility records the hosting page's visibility state.
	SetVisibility(state entity.VisibilityState)

	// Publish dispatches a realtime topic event.
	Publish(ctx context.Context, event entity.TopicEvent) error

	// ApplyDefinitions reconciles registered screens with the given definitions.
	ApplyDefinitions(defs []entity.ScreenDefinition) error
}
