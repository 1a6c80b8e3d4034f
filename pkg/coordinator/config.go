package coordinator

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/azzurro/pkg/portal"
)

// Configured sets up the Hub based on flags. Devices are added by the caller.
func Configured(p portal.Portal) *Hub {
	interval := lflag.Duration("poll-interval", DefaultPollInterval, "How often each device is polled")
	timezone := lflag.String("timezone", "", "Time zone that defines the local day for daily energy counters (default: system local)")

	h := NewHub(p, Ticker{}, DefaultPollInterval, time.Local)

	lflag.Do(func() {
		if *interval <= 0 {
			panic(fmt.Sprintf("invalid poll-interval: %s", *interval))
		}
		h.interval = *interval
		if *timezone != "" {
			loc, err := time.LoadLocation(*timezone)
			if err != nil {
				panic(fmt.Sprintf("invalid timezone %q: %v", *timezone, err))
			}
			h.location = loc
		}
	})

	return h
}
