package health

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
)

// Manager collects component status reports. Components push their state;
// nothing here polls.
type Manager struct {
	mu         sync.RWMutex
	components map[string]types.ComponentHealth
	logger     types.Logger
}

func NewManager(logger types.Logger) *Manager {
	return &Manager{
		components: make(map[string]types.ComponentHealth),
		logger:     logger,
	}
}

func (m *Manager) SetStatus(component string, status types.HealthStatus, detail string) {
	m.mu.Lock()
	previous, existed := m.components[component]
	m.components[component] = types.ComponentHealth{
		Name:      component,
		Status:    status,
		Detail:    detail,
		UpdatedAt: time.Now(),
	}
	m.mu.Unlock()

	if existed && previous.Status != status {
		m.logger.Info("Component health changed",
			zap.String("component", component),
			zap.String("from", string(previous.Status)),
			zap.String("to", string(status)),
			zap.String("detail", detail))
	}
}

func (m *Manager) Snapshot() map[string]types.ComponentHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]types.ComponentHealth, len(m.components))
	for name, component := range m.components {
		snapshot[name] = component
	}

	return snapshot
}
