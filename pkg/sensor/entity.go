package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/types"
)

// Source provides the latest snapshot of one device.
type Source interface {
	// Current returns the latest stored snapshot, or nil before the first
	// refresh, together with its generation. The generation is incremented
	// every time a snapshot is stored.
	Current() (*types.Snapshot, uint64)
	// LastUpdateSuccess reports whether the last refresh succeeded.
	LastUpdateSuccess() bool
}

// Entity is one exposed metric of one device. It owns the resolution state of
// the metric and resolves at most once per snapshot so that repeated reads
// return the same value.
type Entity struct {
	desc     Descriptor
	thingKey string
	source   Source
	location *time.Location
	now      func() time.Time

	mu       sync.Mutex
	state    State
	resolved bool
	gen      uint64
	last     Resolution
}

// NewEntity returns an entity for metric d of thingKey reading from source.
// loc defines the local day used to reset daily counters.
func NewEntity(d Descriptor, thingKey string, source Source, loc *time.Location) *Entity {
	if loc == nil {
		loc = time.Local
	}
	return &Entity{
		desc:     d,
		thingKey: thingKey,
		source:   source,
		location: loc,
		now:      time.Now,
	}
}

// Descriptor returns the catalog entry of the entity.
func (e *Entity) Descriptor() Descriptor {
	return e.desc
}

// UniqueID identifies the entity across all devices.
func (e *Entity) UniqueID() string {
	return e.desc.Key + "-" + e.thingKey
}

// State returns a copy of the current resolution state.
func (e *Entity) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Entity) resolve(ctx context.Context) Resolution {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, gen := e.source.Current()
	if e.resolved && gen == e.gen {
		return e.last
	}

	now := e.now()
	res, st := Resolve(e.desc, snap, e.state, e.thingKey, now, e.location)

	if res.DayReset {
		log.Ctx(ctx).DebugContext(
			ctx,
			"device not seen since before start of day, forcing energy measurement to 0",
			slog.String("metric", e.desc.Key),
			slog.Any("lastUpdate", snap.Get(types.FieldLastUpdate)),
			slog.Time("startOfDay", StartOfDay(now, e.location)),
		)
	}
	if res.FromCache {
		log.Ctx(ctx).DebugContext(
			ctx,
			"serving cached value",
			slog.String("metric", e.desc.Key),
			slog.Int("cacheUses", st.CacheUses),
		)
	}

	e.state = st
	e.last = res
	e.gen = gen
	e.resolved = true
	return res
}

// Read resolves the entity against the latest snapshot.
func (e *Entity) Read(ctx context.Context) types.Reading {
	res := e.resolve(ctx)
	return types.Reading{
		Key:              e.desc.Key,
		Value:            res.Value,
		Unit:             e.desc.Unit,
		DeviceClass:      e.desc.DeviceClass,
		StateClass:       e.desc.StateClass,
		Icon:             res.Icon,
		Attributes:       res.Attributes,
		Available:        e.source.LastUpdateSuccess(),
		Assumed:          res.FromCache,
		EnabledByDefault: e.desc.EnabledByDefault,
	}
}
