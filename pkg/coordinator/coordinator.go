package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/portal"
	"github.com/raterudder/azzurro/pkg/sensor"
	"github.com/raterudder/azzurro/pkg/types"
)

// UpdateFailedError is returned by Refresh when the portal rejected the
// request. The device is unavailable until a later refresh succeeds.
type UpdateFailedError struct {
	ThingKey string
	Class    types.StatusClass
	Code     int
	Err      error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("update failed for %s (%s, code %d): %v", log.Redact(e.ThingKey), e.Class, e.Code, e.Err)
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

type stored struct {
	snap *types.Snapshot
	gen  uint64
}

type refreshResult struct {
	at      time.Time
	class   types.StatusClass
	code    int
	err     error
	success bool
	cached  bool
}

// Coordinator polls the portal for one device and keeps its latest snapshot.
type Coordinator struct {
	device   types.Device
	portal   portal.Portal
	entities []*sensor.Entity
	now      func() time.Time

	// serializes refreshes so there is one fetch in flight per device
	refreshMu sync.Mutex

	current atomic.Pointer[stored]
	last    atomic.Pointer[refreshResult]
	fetches [types.StatusParseError + 1]atomic.Uint64
}

// New returns a coordinator for device with one entity per catalog metric.
// loc defines the local day of the device.
func New(device types.Device, p portal.Portal, loc *time.Location) *Coordinator {
	c := &Coordinator{
		device: device,
		portal: p,
		now:    time.Now,
	}
	for _, d := range sensor.Catalog() {
		c.entities = append(c.entities, sensor.NewEntity(d, device.ThingKey, c, loc))
	}
	return c
}

// Device returns the device polled by the coordinator.
func (c *Coordinator) Device() types.Device {
	return c.device
}

// Entities returns the exposed metrics of the device in catalog order.
func (c *Coordinator) Entities() []*sensor.Entity {
	return c.entities
}

// Refresh fetches the device, merges the response and stores the snapshot.
// Only a rejected request is returned as an error; transient failures store a
// snapshot asking metrics to use their cached values.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	ctx = log.WithThing(ctx, c.device.ThingKey)
	start := c.now()

	res := c.portal.Fetch(ctx, c.device.ThingKey)
	c.fetches[res.Class].Add(1)

	snap := portal.Merge(ctx, res, c.device.ThingKey)
	c.store(snap)

	rr := &refreshResult{
		at:      start,
		class:   res.Class,
		code:    res.Code,
		err:     res.Err,
		success: !res.Class.Fatal(),
		cached:  snap.UseCachedResult,
	}

	if res.Class.Fatal() {
		err := &UpdateFailedError{
			ThingKey: c.device.ThingKey,
			Class:    res.Class,
			Code:     res.Code,
			Err:      res.Err,
		}
		rr.err = err
		c.last.Store(rr)
		log.Ctx(ctx).ErrorContext(ctx, "device update failed", slog.Any("error", err))
		return err
	}
	c.last.Store(rr)

	log.Ctx(ctx).DebugContext(
		ctx,
		"device refreshed",
		slog.String("class", res.Class.String()),
		slog.Bool("cached", snap.UseCachedResult),
		slog.Duration("took", c.now().Sub(start)),
	)
	return nil
}

func (c *Coordinator) store(snap *types.Snapshot) {
	var gen uint64 = 1
	if prev := c.current.Load(); prev != nil {
		gen = prev.gen + 1
	}
	c.current.Store(&stored{snap: snap, gen: gen})
}

// Current implements sensor.Source.
func (c *Coordinator) Current() (*types.Snapshot, uint64) {
	s := c.current.Load()
	if s == nil {
		return nil, 0
	}
	return s.snap, s.gen
}

// Snapshot returns the latest snapshot or nil before the first refresh.
func (c *Coordinator) Snapshot() *types.Snapshot {
	snap, _ := c.Current()
	return snap
}

// Generation returns the number of snapshots stored so far.
func (c *Coordinator) Generation() uint64 {
	_, gen := c.Current()
	return gen
}

// LastUpdateSuccess reports whether the last refresh succeeded. It is false
// before the first refresh.
func (c *Coordinator) LastUpdateSuccess() bool {
	rr := c.last.Load()
	return rr != nil && rr.success
}

// LastRefresh returns when the last refresh started.
func (c *Coordinator) LastRefresh() time.Time {
	if rr := c.last.Load(); rr != nil {
		return rr.at
	}
	return time.Time{}
}

// LastError returns the error of the last refresh, if any.
func (c *Coordinator) LastError() error {
	if rr := c.last.Load(); rr != nil {
		return rr.err
	}
	return nil
}

// Fetches returns the number of fetches per outcome since the coordinator was
// created.
func (c *Coordinator) Fetches() map[types.StatusClass]uint64 {
	m := make(map[types.StatusClass]uint64, len(c.fetches))
	for i := range c.fetches {
		m[types.StatusClass(i)] = c.fetches[i].Load()
	}
	return m
}

// Status summarizes the availability of the device.
func (c *Coordinator) Status() types.DeviceStatus {
	ds := types.DeviceStatus{
		Device:    c.device,
		Available: c.LastUpdateSuccess(),
	}
	if rr := c.last.Load(); rr != nil {
		ds.LastRefresh = rr.at
		ds.LastClass = rr.class
		ds.CachedOnly = rr.cached
		if rr.err != nil {
			ds.LastError = rr.err.Error()
		}
	}
	return ds
}

// Read resolves every metric of the device.
func (c *Coordinator) Read(ctx context.Context) []types.Reading {
	ctx = log.WithThing(ctx, c.device.ThingKey)
	readings := make([]types.Reading, 0, len(c.entities))
	for _, e := range c.entities {
		readings = append(readings, e.Read(ctx))
	}
	return readings
}
