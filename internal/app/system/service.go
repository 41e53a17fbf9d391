// Package system defines the lifecycle contract shared by long-running
// application components and a manager that starts and stops them in order.
package system

import (
	"context"

	"github.com/davbaghdasaryann/ehvm2/pkg/logger"
)

// Service represents a lifecycle-managed component. Modules implement this
// interface so the manager can start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager owns a set of services and runs their lifecycles: registration
// order for start, reverse order for stop.
type Manager struct {
	services []Service
	log      *logger.Logger
}

// NewManager builds an empty manager.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{log: log}
}

// Register appends a service to the start order.
func (m *Manager) Register(service Service) {
	m.services = append(m.services, service)
}

// Start brings every registered service up. On failure the services already
// started are stopped again before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	for i, service := range m.services {
		if err := service.Start(ctx); err != nil {
			m.log.WithError(err).WithField("service", service.Name()).Error("service failed to start")
			m.stopFrom(ctx, i-1)
			return err
		}
		m.log.WithField("service", service.Name()).Debug("service started")
	}
	return nil
}

// Stop brings every service down in reverse start order. Stop errors are
// logged, not returned; shutdown keeps going.
func (m *Manager) Stop(ctx context.Context) {
	m.stopFrom(ctx, len(m.services)-1)
}

func (m *Manager) stopFrom(ctx context.Context, index int) {
	for i := index; i >= 0; i-- {
		service := m.services[i]
		if err := service.Stop(ctx); err != nil {
			m.log.WithError(err).WithField("service", service.Name()).Warn("service failed to stop cleanly")
			continue
		}
		m.log.WithField("service", service.Name()).Debug("service stopped")
	}
}
