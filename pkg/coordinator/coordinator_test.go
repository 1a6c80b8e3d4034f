package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raterudder/azzurro/pkg/portal"
	"github.com/raterudder/azzurro/pkg/sensor"
	"github.com/raterudder/azzurro/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testThing = "ZA1ES123456789"

type portalFunc func(ctx context.Context, thingKey string) types.RemoteResult

func (f portalFunc) Fetch(ctx context.Context, thingKey string) types.RemoteResult {
	return f(ctx, thingKey)
}

func realtimeBody(lastUpdate string, power int) string {
	b, _ := json.Marshal(map[string]any{
		"realtimeData": map[string]any{
			"params": map[string]any{
				"value": []any{map[string]any{
					testThing: map[string]any{
						"lastUpdate":      lastUpdate,
						"thingFind":       "2021-01-01T00:00:00Z",
						"powerGenerating": power,
						"powerConsuming":  0,
					},
				}},
			},
		},
	})
	return string(b)
}

func readingByKey(t *testing.T, readings []types.Reading, key string) types.Reading {
	t.Helper()
	for _, r := range readings {
		if r.Key == key {
			return r
		}
	}
	require.FailNow(t, "missing reading", key)
	return types.Reading{}
}

// portalServer answers with the queued responses in order and repeats the
// last one.
func portalServer(t *testing.T, responses ...func(w http.ResponseWriter)) *httptest.Server {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(calls.Add(1)) - 1
		if i >= len(responses) {
			i = len(responses) - 1
		}
		responses[i](w)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func ok(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Write([]byte(body))
	}
}

func status(code int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
		w.Write([]byte(body))
	}
}

func newTestCoordinator(url string) *Coordinator {
	p := portal.NewZCS(url, "client", "auth", time.Second)
	return New(types.Device{ThingKey: testThing}, p, time.UTC)
}

func TestCoordinatorRefresh(t *testing.T) {
	ts := portalServer(t, ok(realtimeBody(time.Now().UTC().Format(time.RFC3339), 1500)))
	c := newTestCoordinator(ts.URL)

	assert.Nil(t, c.Snapshot())
	assert.Equal(t, uint64(0), c.Generation())
	assert.False(t, c.LastUpdateSuccess())

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, uint64(1), c.Generation())
	assert.True(t, c.LastUpdateSuccess())
	assert.NoError(t, c.LastError())
	assert.False(t, c.LastRefresh().IsZero())
	assert.Equal(t, json.Number("1500"), c.Snapshot().Get("powerGenerating"))
	assert.Equal(t, uint64(1), c.Fetches()[types.StatusSuccess])

	readings := c.Read(context.Background())
	require.Len(t, readings, len(sensor.Catalog()))
	assert.Equal(t, json.Number("1500"), readingByKey(t, readings, "power_generating").Value)
	assert.Equal(t, string(sensor.StatusGenerating), readingByKey(t, readings, sensor.StatusKey).Value)
	assert.True(t, readingByKey(t, readings, "power_generating").Available)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, uint64(2), c.Generation())
}

func TestCoordinatorRefreshHistoric(t *testing.T) {
	now := time.Now().UTC()
	realtimeTS := sensor.StartOfDay(now, time.UTC)
	historicTS := realtimeTS.Add(now.Sub(realtimeTS) / 2).Truncate(time.Second)
	if !historicTS.After(realtimeTS) {
		time.Sleep(2 * time.Second)
		historicTS = realtimeTS.Add(time.Second)
	}

	realtime := map[string]any{
		types.FieldLastUpdate: realtimeTS.Format(time.RFC3339),
		types.FieldThingFind:  "2021-01-01T00:00:00Z",
	}
	for i, d := range sensor.Catalog() {
		if !d.Derived() {
			realtime[d.DataTag] = json.Number(fmt.Sprintf("%d.125", i+1))
		}
	}
	historic := map[string]any{
		"ts":                    []any{realtimeTS.Add(-time.Hour).Format(time.RFC3339), historicTS.Format(time.RFC3339)},
		"powerGenerating":       []any{json.Number("1"), json.Number("2222.5")},
		"energyGenerating":      []any{json.Number("1"), json.Number("12.345")},
		"energyGeneratingTotal": []any{json.Number("1"), json.Number("98765.432")},
		"currentDC":             []any{json.Number("1"), json.Number("7.25")},
		"voltageDC":             []any{json.Number("1"), json.Number("412.5")},
		"powerDC":               []any{json.Number("1"), json.Number("2990.75")},
		"temperature":           []any{json.Number("1"), json.Number("41.5")},
	}
	command := func(values map[string]any) map[string]any {
		return map[string]any{
			"params": map[string]any{
				"value": []any{map[string]any{testThing: values}},
			},
		}
	}
	body, err := json.Marshal(map[string]any{
		"realtimeData": command(realtime),
		"historicData": command(historic),
	})
	require.NoError(t, err)

	// realtime overlaid by the latest historic sample
	want := make(map[string]any, len(realtime))
	for k, v := range realtime {
		want[k] = v
	}
	want[types.FieldLastUpdate] = historicTS.Format(time.RFC3339)
	for k, v := range historic {
		if k != "ts" {
			want[k] = v.([]any)[1]
		}
	}

	ts := portalServer(t, ok(string(body)))
	c := newTestCoordinator(ts.URL)
	require.NoError(t, c.Refresh(context.Background()))

	readings := c.Read(context.Background())
	require.Len(t, readings, len(sensor.Catalog()))
	for _, d := range sensor.Catalog() {
		r := readingByKey(t, readings, d.Key)
		assert.False(t, r.Assumed, d.Key)
		assert.True(t, r.Available, d.Key)
		assert.Equal(t, testThing, r.Attributes[sensor.AttrSerial], d.Key)
		if d.Derived() {
			status, ok := sensor.DeriveStatus(c.Snapshot())
			require.True(t, ok)
			assert.Equal(t, string(status), r.Value)
			assert.Equal(t, historicTS.Format(time.RFC3339), r.Attributes[sensor.AttrLastUpdate])
			continue
		}
		assert.Equal(t, want[d.DataTag], r.Value, d.Key)
	}
}

func TestCoordinatorServiceUnavailable(t *testing.T) {
	ts := portalServer(t,
		ok(realtimeBody(time.Now().UTC().Format(time.RFC3339), 1500)),
		status(http.StatusServiceUnavailable, "<html><title>503 Service Unavailable</title></html>"),
	)
	c := newTestCoordinator(ts.URL)

	require.NoError(t, c.Refresh(context.Background()))
	c.Read(context.Background())

	for i := 0; i < sensor.CachedLimit; i++ {
		require.NoError(t, c.Refresh(context.Background()))
		assert.True(t, c.Snapshot().UseCachedResult)
		assert.True(t, c.LastUpdateSuccess())

		r := readingByKey(t, c.Read(context.Background()), "power_generating")
		assert.Equal(t, json.Number("1500"), r.Value)
		assert.True(t, r.Assumed)
		assert.True(t, r.Available)
	}
	assert.Equal(t, types.StatusServerError, c.Status().LastClass)
	assert.True(t, c.Status().CachedOnly)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Nil(t, readingByKey(t, c.Read(context.Background()), "power_generating").Value)
}

func TestCoordinatorClientError(t *testing.T) {
	ts := portalServer(t,
		ok(realtimeBody(time.Now().UTC().Format(time.RFC3339), 1500)),
		status(http.StatusUnauthorized, `{"error":"invalid authorization"}`),
	)
	c := newTestCoordinator(ts.URL)

	require.NoError(t, c.Refresh(context.Background()))
	c.Read(context.Background())

	err := c.Refresh(context.Background())
	require.Error(t, err)
	var ufe *UpdateFailedError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, types.StatusClientError, ufe.Class)
	assert.Equal(t, http.StatusUnauthorized, ufe.Code)
	assert.NotContains(t, err.Error(), testThing)

	assert.False(t, c.Snapshot().UseCachedResult)
	assert.False(t, c.LastUpdateSuccess())
	assert.Equal(t, err, c.LastError())

	r := readingByKey(t, c.Read(context.Background()), "power_generating")
	assert.Nil(t, r.Value)
	assert.False(t, r.Available)

	st := c.Status()
	assert.False(t, st.Available)
	assert.NotEmpty(t, st.LastError)
}

func TestCoordinatorRefreshSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	p := portalFunc(func(ctx context.Context, thingKey string) types.RemoteResult {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return types.Failed(types.StatusTimeout, 0, context.DeadlineExceeded)
	})
	c := New(types.Device{ThingKey: testThing}, p, time.UTC)

	done := make(chan struct{})
	for range 3 {
		go func() {
			c.Refresh(context.Background())
			done <- struct{}{}
		}()
	}
	for range 3 {
		<-done
	}
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, uint64(3), c.Generation())
	assert.Equal(t, uint64(3), c.Fetches()[types.StatusTimeout])
}
