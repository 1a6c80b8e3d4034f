package sensor

import (
	"slices"

	"github.com/raterudder/azzurro/pkg/types"
)

// CachedLimit is the number of consecutive snapshots for which a metric may
// serve its last good value while the portal is failing.
const CachedLimit = 5

// StatusKey is the key of the derived status metric.
const StatusKey = "status"

// Status metric attributes.
const (
	AttrLastUpdate  = "last_update"
	AttrFirstUpdate = "first_update"
	AttrSerial      = "serial"
)

// Descriptor is a static catalog entry for one exposed metric. Metrics with
// no DataTag are derived from other fields instead of read directly.
type Descriptor struct {
	Key              string
	DataTag          string
	Unit             string
	DeviceClass      types.DeviceClass
	StateClass       types.StateClass
	Icon             string
	ExtraAttributes  []string
	EnabledByDefault bool
}

// Derived reports whether the metric is computed rather than read from a tag.
func (d Descriptor) Derived() bool {
	return d.DataTag == ""
}

// MonotonicDaily reports whether the metric is an energy counter that resets
// at local midnight.
func (d Descriptor) MonotonicDaily() bool {
	return d.DeviceClass == types.DeviceClassEnergy && d.StateClass == types.StateClassTotalIncreasing
}

func power(key, tag, icon string, enabled bool) Descriptor {
	return Descriptor{
		Key:              key,
		DataTag:          tag,
		Unit:             types.UnitWatt,
		DeviceClass:      types.DeviceClassPower,
		StateClass:       types.StateClassMeasurement,
		Icon:             icon,
		EnabledByDefault: enabled,
	}
}

func energy(key, tag, icon string, state types.StateClass, enabled bool) Descriptor {
	return Descriptor{
		Key:              key,
		DataTag:          tag,
		Unit:             types.UnitKiloWattHour,
		DeviceClass:      types.DeviceClassEnergy,
		StateClass:       state,
		Icon:             icon,
		EnabledByDefault: enabled,
	}
}

var catalog = []Descriptor{
	{
		Key:              StatusKey,
		Icon:             "mdi:solar-panel-large",
		ExtraAttributes:  []string{AttrLastUpdate, AttrFirstUpdate},
		EnabledByDefault: true,
	},
	power("power_generating", "powerGenerating", "mdi:solar-power-variant", true),
	energy("energy_generating_today", "energyGenerating", "mdi:solar-power", types.StateClassTotalIncreasing, true),
	energy("energy_generating_total", "energyGeneratingTotal", "mdi:solar-power", types.StateClassTotal, true),
	power("power_consuming", "powerConsuming", "mdi:power-plug", false),
	energy("energy_consuming_today", "energyConsuming", "mdi:power-plug-outline", types.StateClassTotalIncreasing, false),
	energy("energy_consuming_total", "energyConsumingTotal", "mdi:power-plug-outline", types.StateClassTotal, false),
	power("power_autoconsuming", "powerAutoconsuming", "mdi:home-lightning-bolt", false),
	energy("energy_autoconsuming_today", "energyAutoconsuming", "mdi:home-lightning-bolt-outline", types.StateClassTotalIncreasing, false),
	energy("energy_autoconsuming_total", "energyAutoconsumingTotal", "mdi:home-lightning-bolt-outline", types.StateClassTotal, false),
	power("power_charging", "powerCharging", "mdi:battery-charging", false),
	energy("energy_charging_today", "energyCharging", "mdi:battery-charging-outline", types.StateClassTotalIncreasing, false),
	energy("energy_charging_total", "energyChargingTotal", "mdi:battery-charging-outline", types.StateClassTotal, false),
	power("power_discharging", "powerDischarging", "mdi:power-plug-battery", false),
	energy("energy_discharging_today", "energyDischarging", "mdi:power-plug-battery-outline", types.StateClassTotalIncreasing, false),
	energy("energy_discharging_total", "energyDischargingTotal", "mdi:power-plug-battery-outline", types.StateClassTotal, false),
	power("power_importing", "powerImporting", "mdi:transmission-tower-import", false),
	energy("energy_importing_today", "energyImporting", "mdi:transmission-tower-import", types.StateClassTotalIncreasing, false),
	energy("energy_importing_total", "energyImportingTotal", "mdi:transmission-tower-import", types.StateClassTotal, false),
	power("power_exporting", "powerExporting", "mdi:transmission-tower-export", false),
	energy("energy_exporting_today", "energyExporting", "mdi:transmission-tower-export", types.StateClassTotalIncreasing, false),
	energy("energy_exporting_total", "energyExportingTotal", "mdi:transmission-tower-export", types.StateClassTotal, false),
	{
		Key:         "battery_soc",
		DataTag:     "batterySoC",
		Unit:        types.UnitPercentage,
		DeviceClass: types.DeviceClassBattery,
		StateClass:  types.StateClassMeasurement,
	},
	{
		Key:         "battery_soc_2",
		DataTag:     "batterySoC2",
		Unit:        types.UnitPercentage,
		DeviceClass: types.DeviceClassBattery,
		StateClass:  types.StateClassMeasurement,
	},
	{
		Key:              "temperature",
		DataTag:          "temperature",
		Unit:             types.UnitCelsius,
		DeviceClass:      types.DeviceClassTemperature,
		StateClass:       types.StateClassMeasurement,
		Icon:             "mdi:thermometer",
		EnabledByDefault: true,
	},
	{
		Key:              "dc_current",
		DataTag:          "currentDC",
		Unit:             types.UnitAmpere,
		DeviceClass:      types.DeviceClassCurrent,
		StateClass:       types.StateClassMeasurement,
		Icon:             "mdi:current-dc",
		EnabledByDefault: true,
	},
	{
		Key:              "dc_voltage",
		DataTag:          "voltageDC",
		Unit:             types.UnitVolt,
		DeviceClass:      types.DeviceClassVoltage,
		StateClass:       types.StateClassMeasurement,
		Icon:             "mdi:flash-triangle",
		EnabledByDefault: true,
	},
	power("dc_power", "powerDC", "mdi:solar-power-variant-outline", true),
}

// Catalog returns every metric exposed for a device, status first.
func Catalog() []Descriptor {
	return slices.Clone(catalog)
}

// Lookup returns the descriptor for key.
func Lookup(key string) (Descriptor, bool) {
	i := slices.IndexFunc(catalog, func(d Descriptor) bool {
		return d.Key == key
	})
	if i < 0 {
		return Descriptor{}, false
	}
	return catalog[i], true
}
