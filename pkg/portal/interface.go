package portal

import (
	"context"

	"github.com/raterudder/azzurro/pkg/types"
)

// Portal fetches telemetry for one device from a remote source.
type Portal interface {
	// Fetch performs a single request for thingKey and classifies the
	// outcome. It never retries and never returns a nil-class result.
	Fetch(ctx context.Context, thingKey string) types.RemoteResult
}
