package portal

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/raterudder/azzurro/pkg/types"
)

// Mock simulates a small hybrid inverter per thing key and answers with the
// same payload shape as the ZCS portal.
type Mock struct {
	mu       sync.Mutex
	now      func() time.Time
	location *time.Location
	things   map[string]*mockThing
}

type mockThing struct {
	firstSeen time.Time
	timestamp time.Time

	energyGenerating       float64
	energyGeneratingTotal  float64
	energyConsuming        float64
	energyConsumingTotal   float64
	energyAutoconsuming    float64
	energyAutoconsumingTot float64
	batterySoC             float64
}

// NewMock returns a simulated portal using the local time zone.
func NewMock() *Mock {
	return &Mock{
		now:      time.Now,
		location: time.Local,
		things:   make(map[string]*mockThing),
	}
}

func getMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Fetch advances the simulation for thingKey up to now and returns it.
func (m *Mock) Fetch(ctx context.Context, thingKey string) types.RemoteResult {
	if err := ctx.Err(); err != nil {
		return types.Failed(types.StatusTimeout, 0, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().In(m.location)
	th, ok := m.things[thingKey]
	if !ok {
		th = &mockThing{
			firstSeen:  now,
			timestamp:  now,
			batterySoC: 50,
		}
		m.things[thingKey] = th
	}

	if getMidnight(now).After(getMidnight(th.timestamp)) {
		th.energyGenerating = 0
		th.energyConsuming = 0
		th.energyAutoconsuming = 0
	}

	solarKW, homeKW := mockLoad(now)
	if hours := now.Sub(th.timestamp).Hours(); hours > 0 {
		selfKW := math.Min(solarKW, homeKW)
		gridKW := math.Max(homeKW-solarKW, 0)
		th.energyGenerating += solarKW * hours
		th.energyGeneratingTotal += solarKW * hours
		th.energyConsuming += gridKW * hours
		th.energyConsumingTotal += gridKW * hours
		th.energyAutoconsuming += selfKW * hours
		th.energyAutoconsumingTot += selfKW * hours
		th.batterySoC = math.Max(10, math.Min(100, th.batterySoC+(solarKW-homeKW)*hours*10))
	}
	th.timestamp = now

	realtime := map[string]any{
		types.FieldLastUpdate:      now.UTC().Format(time.RFC3339),
		types.FieldThingFind:       th.firstSeen.UTC().Format(time.RFC3339),
		"powerGenerating":          number(solarKW * 1000),
		"powerConsuming":           number(math.Max(homeKW-solarKW, 0) * 1000),
		"powerAutoconsuming":       number(math.Min(solarKW, homeKW) * 1000),
		"energyGenerating":         number(th.energyGenerating),
		"energyGeneratingTotal":    number(th.energyGeneratingTotal),
		"energyConsuming":          number(th.energyConsuming),
		"energyConsumingTotal":     number(th.energyConsumingTotal),
		"energyAutoconsuming":      number(th.energyAutoconsuming),
		"energyAutoconsumingTotal": number(th.energyAutoconsumingTot),
		"batterySoC":               number(th.batterySoC),
	}
	historic := map[string]any{
		"ts":          []any{now.UTC().Format(time.RFC3339)},
		"currentDC":   []any{number(solarKW * 1000 / 380)},
		"voltageDC":   []any{number(380)},
		"powerDC":     []any{number(solarKW * 1000)},
		"temperature": []any{number(25 + 15*solarKW/3)},
	}

	return types.RemoteResult{
		Class: types.StatusSuccess,
		Code:  200,
		Payload: map[string]any{
			"realtimeData": map[string]any{
				"params": map[string]any{
					"value": []any{map[string]any{thingKey: realtime}},
				},
			},
			"historicData": map[string]any{
				"params": map[string]any{
					"value": []any{map[string]any{thingKey: historic}},
				},
			},
		},
	}
}

// mockLoad returns solar generation peaking at 13:00 and a home load between
// 1 and 2 kW.
func mockLoad(t time.Time) (solarKW, homeKW float64) {
	hour := float64(t.Hour()) + float64(t.Minute())/60.0
	homeKW = max(1.5+0.5*math.Sin(hour*math.Pi), 1.0)
	if hour >= 6 && hour <= 19 {
		solarKW = 3.0 * math.Sin((hour-6)/13*math.Pi)
	}
	return solarKW, homeKW
}

func number(f float64) json.Number {
	return json.Number(strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64))
}
