package sde

import (
	"log/slog"
	"time"
)

// DatasetStatus represents the load status of a single static dataset
type DatasetStatus struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Count  int    `json:"count"`
}

// GetLoadStatus returns the load status of all datasets
func (s *Service) GetLoadStatus() map[string]DatasetStatus {
	counts := map[string]int{
		"solarSystems":   len(s.solarSystems),
		"constellations": len(s.constellations),
		"regions":        len(s.regions),
		"systemJumps":    len(s.jumps),
		"groups":         len(s.groups),
		"types":          len(s.types),
	}

	status := make(map[string]DatasetStatus, len(counts))
	for name, count := range counts {
		status[name] = DatasetStatus{
			Name:   name,
			Loaded: count > 0,
			Count:  count,
		}
	}
	return status
}

// ReloadAll clears all datasets and reloads them from the data directory
func (s *Service) ReloadAll() error {
	s.loadMu.Lock()
	s.loaded = false
	s.solarSystems = nil
	s.constellations = nil
	s.regions = nil
	s.jumps = nil
	s.groups = nil
	s.types = nil
	s.loadMu.Unlock()

	startTime := time.Now()
	err := s.ensureLoaded()
	if err != nil {
		slog.Error("Static data reload failed",
			"error", err,
			"reload_duration_ms", time.Since(startTime).Milliseconds())
		return err
	}

	slog.Info("Static data reload completed",
		"reload_duration_ms", time.Since(startTime).Milliseconds())
	return nil
}
