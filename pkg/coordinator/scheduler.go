package coordinator

import (
	"context"
	"time"
)

// Scheduler runs fn periodically until ctx is done.
type Scheduler interface {
	Schedule(ctx context.Context, interval time.Duration, fn func(context.Context))
}

// Ticker is a Scheduler that runs fn immediately and then every interval. A
// run that takes longer than interval delays the next one instead of
// overlapping it.
type Ticker struct{}

// Schedule implements Scheduler. It blocks until ctx is done.
func (Ticker) Schedule(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if ctx.Err() != nil {
		return
	}
	fn(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
