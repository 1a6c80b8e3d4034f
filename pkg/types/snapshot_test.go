package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 3, 10, 15, 0, 0, time.UTC)

	t.Run("RFC3339", func(t *testing.T) {
		ts, ok := ParseTimestamp("2024-05-03T10:15:00Z")
		require.True(t, ok)
		assert.True(t, want.Equal(ts))
	})

	t.Run("Milliseconds", func(t *testing.T) {
		ts, ok := ParseTimestamp("2024-05-03T10:15:00.000Z")
		require.True(t, ok)
		assert.True(t, want.Equal(ts))
	})

	t.Run("Offset", func(t *testing.T) {
		ts, ok := ParseTimestamp("2024-05-03T12:15:00+02:00")
		require.True(t, ok)
		assert.True(t, want.Equal(ts))
	})

	t.Run("NoZoneIsUTC", func(t *testing.T) {
		ts, ok := ParseTimestamp("2024-05-03T10:15:00")
		require.True(t, ok)
		assert.True(t, want.Equal(ts))
	})

	t.Run("Invalid", func(t *testing.T) {
		_, ok := ParseTimestamp("yesterday")
		assert.False(t, ok)
		_, ok = ParseTimestamp(nil)
		assert.False(t, ok)
		_, ok = ParseTimestamp(json.Number("12"))
		assert.False(t, ok)
	})
}

func TestSnapshotAccessors(t *testing.T) {
	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.Get("powerGenerating"))
	_, ok := nilSnap.LastUpdate()
	assert.False(t, ok)

	snap := &Snapshot{Fields: map[string]any{
		"powerGenerating": json.Number("1500"),
		"missing":         nil,
		FieldLastUpdate:   "2024-05-03T10:15:00Z",
	}}
	assert.True(t, snap.Has("powerGenerating"))
	assert.False(t, snap.Has("missing"))
	assert.False(t, snap.Has("nope"))
	ts, ok := snap.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
}

func TestFloat(t *testing.T) {
	f, ok := Float(json.Number("12.5"))
	require.True(t, ok)
	assert.Equal(t, 12.5, f)

	f, ok = Float(3)
	require.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = Float(nil)
	assert.False(t, ok)
	_, ok = Float("abc")
	assert.False(t, ok)
	_, ok = Float(true)
	assert.False(t, ok)
}
