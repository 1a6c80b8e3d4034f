package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// Reserved snapshot keys.
const (
	FieldLastUpdate = "lastUpdate"
	FieldThingFind  = "thingFind"
)

// Snapshot is the normalized telemetry of one device produced by one fetch
// cycle. Values in Fields are json.Number, string, bool or nil. A snapshot is
// never mutated after it has been stored.
type Snapshot struct {
	Fields          map[string]any `json:"fields"`
	UseCachedResult bool           `json:"useCachedResult"`
}

// Get returns the raw value for tag or nil when absent. It is safe to call on
// a nil snapshot.
func (s *Snapshot) Get(tag string) any {
	if s == nil || s.Fields == nil {
		return nil
	}
	return s.Fields[tag]
}

// Has reports whether tag is present with a non-nil value.
func (s *Snapshot) Has(tag string) bool {
	return s.Get(tag) != nil
}

// LastUpdate parses the lastUpdate field.
func (s *Snapshot) LastUpdate() (time.Time, bool) {
	return ParseTimestamp(s.Get(FieldLastUpdate))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the ISO-8601 timestamps returned by the portal. Times
// without a zone are assumed to be UTC. Non-string values never parse.
func ParseTimestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Float converts a snapshot value to a float64 when it is numeric.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
