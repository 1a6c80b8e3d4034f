package sensor

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/raterudder/azzurro/pkg/types"
)

// State is the resolution state of one metric of one device. It survives
// snapshot replacements and is only changed by Resolve.
type State struct {
	LastGood      any
	LastGoodAttrs map[string]any
	// LastObserved is the lastUpdate of the snapshot LastGood was taken from.
	LastObserved time.Time
	CacheUses    int
}

// Resolution is the value a metric exposes for one snapshot.
type Resolution struct {
	Value      any
	Attributes map[string]any
	Icon       string
	// FromCache is set when Value is the last good value instead of what the
	// snapshot contains.
	FromCache bool
	// DayReset is set when a daily counter was forced to zero because the
	// device has not reported since before local midnight.
	DayReset bool
}

// Resolve computes the value of metric d for snap and returns it with the
// updated state. It is a pure function of its arguments. now and loc define
// the local start of day used to reset daily counters.
func Resolve(d Descriptor, snap *types.Snapshot, st State, thingKey string, now time.Time, loc *time.Location) (Resolution, State) {
	if snap == nil {
		snap = &types.Snapshot{}
	}

	value, dayReset := readValue(d, snap, now, loc)

	if value == nil {
		if snap.UseCachedResult && st.CacheUses < CachedLimit && st.LastGood != nil {
			st.CacheUses++
			return cached(d, st), st
		}
		if snap.UseCachedResult && st.CacheUses >= CachedLimit {
			// the streak is over, stay empty until a fresh value shows up
			st.LastGood = nil
			st.LastGoodAttrs = nil
		}
		st.CacheUses = 0
		return Resolution{
			Attributes: attributes(d, snap, thingKey),
			Icon:       d.Icon,
		}, st
	}

	st.CacheUses = 0

	lastUpdate, hasLastUpdate := snap.LastUpdate()
	if hasLastUpdate && !st.LastObserved.IsZero() && lastUpdate.Before(st.LastObserved) {
		if st.LastGood == nil {
			return Resolution{
				Attributes: attributes(d, snap, thingKey),
				Icon:       d.Icon,
			}, st
		}
		return cached(d, st), st
	}

	res := Resolution{
		Value:      value,
		Attributes: attributes(d, snap, thingKey),
		Icon:       icon(d, value),
		DayReset:   dayReset,
	}
	st.LastGood = value
	st.LastGoodAttrs = res.Attributes
	if hasLastUpdate {
		st.LastObserved = lastUpdate
	} else {
		st.LastObserved = time.Time{}
	}
	return res, st
}

func readValue(d Descriptor, snap *types.Snapshot, now time.Time, loc *time.Location) (any, bool) {
	if d.Derived() {
		if d.Key != StatusKey {
			return nil, false
		}
		status, ok := DeriveStatus(snap)
		if !ok {
			return nil, false
		}
		return string(status), false
	}

	if d.MonotonicDaily() {
		if lastUpdate, ok := snap.LastUpdate(); ok && lastUpdate.Before(StartOfDay(now, loc)) {
			return json.Number("0"), true
		}
	}
	return snap.Get(d.DataTag), false
}

func cached(d Descriptor, st State) Resolution {
	return Resolution{
		Value:      st.LastGood,
		Attributes: maps.Clone(st.LastGoodAttrs),
		Icon:       icon(d, st.LastGood),
		FromCache:  st.LastGood != nil,
	}
}

func attributes(d Descriptor, snap *types.Snapshot, thingKey string) map[string]any {
	attrs := make(map[string]any, len(d.ExtraAttributes)+1)
	for _, name := range d.ExtraAttributes {
		switch name {
		case AttrLastUpdate:
			attrs[name] = snap.Get(types.FieldLastUpdate)
		case AttrFirstUpdate:
			attrs[name] = snap.Get(types.FieldThingFind)
		default:
			attrs[name] = nil
		}
	}
	attrs[AttrSerial] = thingKey
	return attrs
}

func icon(d Descriptor, value any) string {
	if d.Key == StatusKey {
		if s, ok := value.(string); ok {
			if i := Status(s).Icon(); i != "" {
				return i
			}
		}
	}
	return d.Icon
}

// StartOfDay returns local midnight of the day containing now.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
