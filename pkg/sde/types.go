package sde

// Position is a location in the source's coordinate space, in meters.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SolarSystem represents one solar system from the static data export
type SolarSystem struct {
	SolarSystemID   int      `json:"solarSystemID"`
	Name            string   `json:"name"`
	ConstellationID int      `json:"constellationID"`
	RegionID        int      `json:"regionID"`
	SecurityStatus  float64  `json:"securityStatus"`
	Position        Position `json:"position"`
}

// Constellation represents a constellation from the static data export
type Constellation struct {
	ConstellationID int    `json:"constellationID"`
	Name            string `json:"name"`
	RegionID        int    `json:"regionID"`
}

// Region represents a region from the static data export
type Region struct {
	RegionID int    `json:"regionID"`
	Name     string `json:"name"`
}

// SystemJump is one directed stargate connection between two solar systems
type SystemJump struct {
	FromSolarSystemID int `json:"fromSolarSystemID"`
	ToSolarSystemID   int `json:"toSolarSystemID"`
}

// Group represents an inventory group (e.g. "Combat Battlecruiser")
type Group struct {
	GroupID    int    `json:"groupID"`
	CategoryID int    `json:"categoryID"`
	Name       string `json:"name"`
	Published  bool   `json:"published,omitempty"`
}

// Type represents an inventory type (e.g. a specific ship hull)
type Type struct {
	TypeID    int    `json:"typeID"`
	GroupID   int    `json:"groupID"`
	Name      string `json:"name"`
	Published bool   `json:"published,omitempty"`
}

// Security classes a solar system can resolve to. Wormhole space is keyed off
// the J-space system ID range rather than the raw security status.
type SecurityClass string

const (
	SecurityHighSec SecurityClass = "HIGH"
	SecurityLowSec  SecurityClass = "LOW"
	SecurityNullSec SecurityClass = "NULL"
	SecurityWSpace  SecurityClass = "WSPACE"
	SecurityUnknown SecurityClass = "UNKNOWN"
)

const (
	// CategoryShip and CategoryStructure bound which groups trackers may
	// match on.
	CategoryShip      = 6
	CategoryStructure = 65

	wspaceSystemIDMin = 31000000
	wspaceSystemIDMax = 31999999
)

// ClassifySecurity maps a solar system to its security class. Rounding to one
// decimal matches the in-game display: 0.45 shows (and counts) as high sec.
func ClassifySecurity(system *SolarSystem) SecurityClass {
	if system == nil {
		return SecurityUnknown
	}
	if system.SolarSystemID >= wspaceSystemIDMin && system.SolarSystemID <= wspaceSystemIDMax {
		return SecurityWSpace
	}

	rounded := float64(int(system.SecurityStatus*10+0.5)) / 10
	if system.SecurityStatus < 0 {
		rounded = float64(int(system.SecurityStatus*10-0.5)) / 10
	}
	switch {
	case rounded >= 0.5:
		return SecurityHighSec
	case rounded > 0.0:
		return SecurityLowSec
	default:
		return SecurityNullSec
	}
}
