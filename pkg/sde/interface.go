package sde

// UniverseDataService defines the interface for accessing static universe data
type UniverseDataService interface {
	// Solar system operations
	GetSolarSystem(id int) (*SolarSystem, error)
	GetConstellation(id int) (*Constellation, error)
	GetRegion(id int) (*Region, error)

	// Stargate graph operations
	RouteJumps(originID, destinationID int) (int, error)
	DistanceMeters(originID, destinationID int) (float64, error)

	// Ship taxonomy operations
	GetType(id int) (*Type, error)
	GetGroup(id int) (*Group, error)

	// Service status
	IsLoaded() bool
	GetLoadStatus() map[string]DatasetStatus
	ReloadAll() error
}
