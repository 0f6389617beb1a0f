package resync

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"
)

// DIParams holds dependencies needed to create a Resync instance via DI.
type DIParams struct {
	dig.In

	Logger *zap.Logger
	Config *Config `optional:"true"`
}

// ProvideResync creates a Resync instance for dependency injection.
// Use this when integrating Resync into an app that uses uber-go/dig.
//
// Example:
//
//	container := dig.New()
//	container.Provide(resync.ProvideResync)
//	container.Invoke(func(rs *resync.Resync) {
//	    rs.Start(ctx)
//	})
func ProvideResync(params DIParams) (*Resync, error) {
	cfg := params.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Use the provided logger without touching the caller's config.
	withLogger := *cfg
	withLogger.Logger = params.Logger

	return New(&withLogger)
}

// RegisterWithContainer registers Resync with a dig container.
//
// Example:
//
//	container := dig.New()
//	if err := resync.RegisterWithContainer(container); err != nil {
//	    log.Fatal(err)
//	}
func RegisterWithContainer(container *dig.Container) error {
	return container.Provide(ProvideResync)
}

// StartParams holds dependencies for starting Resync via DI.
type StartParams struct {
	dig.In

	Resync  *Resync
	Context context.Context `optional:"true"`
}

// StartResync is a lifecycle hook that starts Resync when invoked via DI.
//
//	container.Invoke(resync.StartResync)
func StartResync(params StartParams) error {
	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return params.Resync.Start(ctx)
}
