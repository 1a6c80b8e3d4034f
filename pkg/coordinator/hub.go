package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/portal"
	"github.com/raterudder/azzurro/pkg/types"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRegistered is returned by Add for a thing key that is already
// being polled.
var ErrAlreadyRegistered = errors.New("device already registered")

// DefaultPollInterval is how often each device is polled.
const DefaultPollInterval = 5 * time.Minute

type hubDevice struct {
	coordinator *Coordinator
	cancel      context.CancelFunc
}

// Hub manages the coordinators of all registered devices.
type Hub struct {
	portal    portal.Portal
	scheduler Scheduler
	interval  time.Duration
	location  *time.Location

	mu      sync.Mutex
	devices map[string]*hubDevice
	group   *errgroup.Group
	runCtx  context.Context
}

// NewHub returns an empty Hub polling every interval with scheduler.
func NewHub(p portal.Portal, scheduler Scheduler, interval time.Duration, loc *time.Location) *Hub {
	if loc == nil {
		loc = time.Local
	}
	return &Hub{
		portal:    p,
		scheduler: scheduler,
		interval:  interval,
		location:  loc,
		devices:   make(map[string]*hubDevice),
	}
}

// Add registers device. When the hub is running the device starts polling
// right away.
func (h *Hub) Add(device types.Device) (*Coordinator, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.devices[device.ThingKey]; ok {
		return nil, ErrAlreadyRegistered
	}
	hd := &hubDevice{
		coordinator: New(device, h.portal, h.location),
	}
	h.devices[device.ThingKey] = hd
	if h.group != nil {
		h.start(hd)
	}
	return hd.coordinator, nil
}

// Remove stops polling thingKey. It returns false when it was not registered.
func (h *Hub) Remove(thingKey string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	hd, ok := h.devices[thingKey]
	if !ok {
		return false
	}
	if hd.cancel != nil {
		hd.cancel()
	}
	delete(h.devices, thingKey)
	return true
}

// Get returns the coordinator of thingKey.
func (h *Hub) Get(thingKey string) (*Coordinator, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hd, ok := h.devices[thingKey]
	if !ok {
		return nil, false
	}
	return hd.coordinator, true
}

// List returns every coordinator ordered by thing key.
func (h *Hub) List() []*Coordinator {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := make([]*Coordinator, 0, len(h.devices))
	for _, hd := range h.devices {
		list = append(list, hd.coordinator)
	}
	slices.SortFunc(list, func(a, b *Coordinator) int {
		return strings.Compare(a.device.ThingKey, b.device.ThingKey)
	})
	return list
}

// start must be called with h.mu held.
func (h *Hub) start(hd *hubDevice) {
	ctx, cancel := context.WithCancel(h.runCtx)
	hd.cancel = cancel
	c := hd.coordinator
	h.group.Go(func() error {
		ctx := log.WithThing(ctx, c.device.ThingKey)
		log.Ctx(ctx).InfoContext(ctx, "polling device", slog.Duration("interval", h.interval))
		h.scheduler.Schedule(ctx, h.interval, func(ctx context.Context) {
			// failures are kept on the coordinator and logged by Refresh
			_ = c.Refresh(ctx)
		})
		return nil
	})
}

// Run polls every registered device until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.group != nil {
		h.mu.Unlock()
		return errors.New("hub is already running")
	}
	g, gctx := errgroup.WithContext(ctx)
	h.group = g
	h.runCtx = gctx
	for _, hd := range h.devices {
		h.start(hd)
	}
	// keeps the group open for devices added later
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	h.mu.Unlock()

	err := g.Wait()

	h.mu.Lock()
	h.group = nil
	h.runCtx = nil
	for _, hd := range h.devices {
		hd.cancel = nil
	}
	h.mu.Unlock()
	return err
}

// RefreshAll refreshes every device concurrently and returns the joined
// update failures.
func (h *Hub) RefreshAll(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, c := range h.List() {
		g.Go(func() error {
			if err := c.Refresh(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
