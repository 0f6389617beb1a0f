package secondary

import (
	"context"
	"encoding/json"
)

// Fetcher defines the secondary port for reading resources from the
// institute REST API.
type Fetcher interface {
	// Get fetches the resource at path and returns its raw JSON body.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
