package types

import "time"

// Device is a registered inverter identified by its thing key in the portal.
type Device struct {
	ThingKey  string    `json:"thingKey"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName falls back to the thing key when no name was given.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ThingKey
}

// DeviceStatus is the availability summary of one device as seen by its
// coordinator.
type DeviceStatus struct {
	Device
	Available   bool        `json:"available"`
	LastRefresh time.Time   `json:"lastRefresh"`
	LastClass   StatusClass `json:"lastClass"`
	LastError   string      `json:"lastError,omitempty"`
	CachedOnly  bool        `json:"cachedOnly"`
}

// DeviceClass is the physical quantity a metric measures.
type DeviceClass string

const (
	DeviceClassNone        DeviceClass = ""
	DeviceClassPower       DeviceClass = "power"
	DeviceClassEnergy      DeviceClass = "energy"
	DeviceClassBattery     DeviceClass = "battery"
	DeviceClassTemperature DeviceClass = "temperature"
	DeviceClassCurrent     DeviceClass = "current"
	DeviceClassVoltage     DeviceClass = "voltage"
)

// StateClass describes how a metric evolves over time.
type StateClass string

const (
	StateClassNone            StateClass = ""
	StateClassMeasurement     StateClass = "measurement"
	StateClassTotal           StateClass = "total"
	StateClassTotalIncreasing StateClass = "total_increasing"
)

// Units used by the metric catalog.
const (
	UnitWatt         = "W"
	UnitKiloWattHour = "kWh"
	UnitPercentage   = "%"
	UnitCelsius      = "°C"
	UnitAmpere       = "A"
	UnitVolt         = "V"
)

// Reading is what one exposed metric of a device reports at read time.
type Reading struct {
	Key              string         `json:"key"`
	Value            any            `json:"value"`
	Unit             string         `json:"unit,omitempty"`
	DeviceClass      DeviceClass    `json:"deviceClass,omitempty"`
	StateClass       StateClass     `json:"stateClass,omitempty"`
	Icon             string         `json:"icon,omitempty"`
	Attributes       map[string]any `json:"attributes"`
	Available        bool           `json:"available"`
	Assumed          bool           `json:"assumed"`
	EnabledByDefault bool           `json:"enabledByDefault"`
}
