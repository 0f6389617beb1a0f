package secondary

import "context"

// HealthChecker reports on an external dependency behind a realtime
// transport. GET /health keys each result by Name.
type HealthChecker interface {
	// Name identifies the dependency and the role it serves, e.g. "redis:source".
	Name() string

	// Check returns an error if the dependency is unreachable.
	Check(ctx context.Context) error
}
