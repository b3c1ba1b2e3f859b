package module

import (
	"context"
	"log/slog"
	"sync"
)

// Module is the lifecycle contract the killtracker binary drives: every
// feature module is initialized, given a background goroutine, and stopped
// on shutdown through this interface.
type Module interface {
	// Name identifies the module in logs.
	Name() string

	// Initialize prepares the module before any pipeline work starts,
	// typically by creating collection indexes.
	Initialize(ctx context.Context) error

	// StartBackgroundTasks runs the module's background work. It blocks
	// until the context is cancelled or Stop is called.
	StartBackgroundTasks(ctx context.Context)

	// Stop signals background tasks to finish. Safe to call more than once.
	Stop()
}

// BaseModule carries the name and stop plumbing shared by all modules.
// Modules embed it and override StartBackgroundTasks when they have
// real background work.
type BaseModule struct {
	name   string
	stopCh chan struct{}
	stop   sync.Once
}

// NewBaseModule creates the shared module scaffolding.
func NewBaseModule(name string) *BaseModule {
	return &BaseModule{
		name:   name,
		stopCh: make(chan struct{}),
	}
}

// Name returns the module name.
func (b *BaseModule) Name() string {
	return b.name
}

// StopChannel is closed once Stop has been called. Background loops
// select on it alongside their context.
func (b *BaseModule) StopChannel() <-chan struct{} {
	return b.stopCh
}

// Stop signals background tasks to finish.
func (b *BaseModule) Stop() {
	b.stop.Do(func() {
		close(b.stopCh)
		slog.Info("Module stopped", "module", b.name)
	})
}

// StartBackgroundTasks is the default implementation for modules whose
// work is driven entirely by HTTP requests or the scheduler. It parks
// until shutdown so every module can be started the same way.
func (b *BaseModule) StartBackgroundTasks(ctx context.Context) {
	slog.Info("Module has no background loop, idling until shutdown", "module", b.name)

	select {
	case <-ctx.Done():
	case <-b.stopCh:
	}
}
