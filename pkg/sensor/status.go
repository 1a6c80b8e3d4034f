package sensor

import "github.com/raterudder/azzurro/pkg/types"

// Status is the derived operating state of an inverter.
type Status string

const (
	StatusGeneratingConsumingFromNetwork  Status = "generating_consuming_from_network"
	StatusGeneratingConsumingFromProduced Status = "generating_consuming_from_produced"
	StatusGenerating                      Status = "generating"
	StatusConsumingFromNetwork            Status = "consuming_from_network"
	StatusConsumingFromProduced           Status = "consuming_from_produced"
	StatusNotConnected                    Status = "not_connected"
	StatusOff                             Status = "off"
)

var statusIcons = map[Status]string{
	StatusGeneratingConsumingFromNetwork:  "mdi:transmission-tower-import",
	StatusGeneratingConsumingFromProduced: "mdi:home-lightning-bolt",
	StatusGenerating:                      "mdi:solar-power",
	StatusConsumingFromNetwork:            "mdi:transmission-tower",
	StatusConsumingFromProduced:           "mdi:home-battery",
	StatusNotConnected:                    "mdi:lan-disconnect",
	StatusOff:                             "mdi:power-off",
}

// Icon returns the icon for the status or "" when unknown.
func (s Status) Icon() string {
	return statusIcons[s]
}

// DeriveStatus classifies the snapshot by which power flows are present and
// positive. It returns false when the device was never seen by the portal.
func DeriveStatus(snap *types.Snapshot) (Status, bool) {
	if !snap.Has(types.FieldThingFind) {
		return "", false
	}

	generating, generatingOK := positive(snap.Get("powerGenerating"))
	consuming, consumingOK := positive(snap.Get("powerConsuming"))
	autoconsuming, autoconsumingOK := positive(snap.Get("powerAutoconsuming"))

	switch {
	case generating && consuming:
		return StatusGeneratingConsumingFromNetwork, true
	case generating && autoconsuming:
		return StatusGeneratingConsumingFromProduced, true
	case generating:
		return StatusGenerating, true
	case consuming:
		return StatusConsumingFromNetwork, true
	case autoconsuming:
		return StatusConsumingFromProduced, true
	case !generatingOK && !consumingOK && !autoconsumingOK:
		return StatusNotConnected, true
	default:
		return StatusOff, true
	}
}

// positive returns whether v is a number greater than zero, and whether v was
// present at all.
func positive(v any) (bool, bool) {
	if v == nil {
		return false, false
	}
	f, ok := types.Float(v)
	return ok && f > 0, true
}
