package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/types"
)

// ErrMissingData is returned when an otherwise successful response does not
// contain data for the requested device.
var ErrMissingData = errors.New("missing data in portal response")

// fields taken from the latest historic sample only when it is newer than the
// real-time reading
var historicTimedFields = []string{
	"powerGenerating",
	"energyGenerating",
	"energyGeneratingTotal",
}

// fields taken from the latest historic sample whenever one exists, the
// real-time feed does not reliably carry them
var historicInstantFields = []string{
	"currentDC",
	"voltageDC",
	"powerDC",
	"temperature",
}

// Merge combines the real-time and historic data of res for thingKey into a
// normalized snapshot. Failed results become an empty snapshot that asks for
// cached values only when the failure is transient.
func Merge(ctx context.Context, res types.RemoteResult, thingKey string) *types.Snapshot {
	if res.Class != types.StatusSuccess {
		return &types.Snapshot{UseCachedResult: res.Class.AllowsCache()}
	}

	realtime, err := readRealtime(res.Payload, thingKey)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "no real-time data in portal response", slog.Any("error", err))
	}

	fields := flatten(realtime)

	historic, err := readHistoric(res.Payload, thingKey, fields[types.FieldLastUpdate])
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "no historic data in portal response", slog.Any("error", err))
	}
	for k, v := range historic {
		fields[k] = v
	}

	if fields[types.FieldLastUpdate] == nil {
		log.Ctx(ctx).WarnContext(ctx, "portal response has no usable last update, using cached result")
		return &types.Snapshot{UseCachedResult: true}
	}

	return &types.Snapshot{
		Fields:          fields,
		UseCachedResult: false,
	}
}

func readRealtime(payload map[string]any, thingKey string) (map[string]any, error) {
	v, ok := dig(payload, "realtimeData", "params", "value", 0, thingKey)
	if !ok {
		return map[string]any{}, fmt.Errorf("%w: realtimeData", ErrMissingData)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, fmt.Errorf("%w: realtimeData is %T", ErrMissingData, v)
	}
	return m, nil
}

// readHistoric returns the fields accepted from the most recent historic
// sample. A nil map with a nil error means no historic command was included or
// the series is empty.
func readHistoric(payload map[string]any, thingKey string, realtimeTS any) (map[string]any, error) {
	if _, ok := payload["historicData"]; !ok {
		return nil, nil
	}
	v, ok := dig(payload, "historicData", "params", "value", 0, thingKey)
	if !ok {
		return nil, fmt.Errorf("%w: historicData", ErrMissingData)
	}
	series, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: historicData is %T", ErrMissingData, v)
	}
	ts, ok := series["ts"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: historicData has no ts series", ErrMissingData)
	}
	idx := len(ts) - 1
	if idx < 0 {
		return nil, nil
	}

	historic := make(map[string]any)
	if historicIsNewer(ts[idx], realtimeTS) {
		historic[types.FieldLastUpdate] = ts[idx]
		copySample(historic, series, idx, historicTimedFields)
	}
	copySample(historic, series, idx, historicInstantFields)
	return historic, nil
}

func historicIsNewer(historicTS, realtimeTS any) bool {
	rt, ok := types.ParseTimestamp(realtimeTS)
	if !ok {
		return historicTS != nil
	}
	ht, ok := types.ParseTimestamp(historicTS)
	return ok && ht.After(rt)
}

// copySample copies the value at idx of each named series. Series that are
// missing or too short are skipped.
func copySample(dst, series map[string]any, idx int, names []string) {
	for _, name := range names {
		values, ok := series[name].([]any)
		if !ok || idx >= len(values) {
			continue
		}
		dst[name] = values[idx]
	}
}

// dig walks nested maps (string keys) and lists (int keys).
func dig(v any, path ...any) (any, bool) {
	for _, p := range path {
		switch key := p.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return nil, false
			}
			if v, ok = m[key]; !ok {
				return nil, false
			}
		case int:
			l, ok := v.([]any)
			if !ok || key >= len(l) {
				return nil, false
			}
			v = l[key]
		default:
			return nil, false
		}
	}
	return v, true
}
