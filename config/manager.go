package config

import (
	"sync/atomic"

	"github.com/tavolo/posdata/types"
)

// Manager holds the loaded configuration behind an atomic pointer so a
// future reload never races readers.
type Manager struct {
	config atomic.Pointer[types.Config]
	path   string
	loader *Loader
}

func NewManager(configPath string) (*Manager, error) {
	m := &Manager{
		path:   configPath,
		loader: NewLoader(),
	}

	if err := m.Load(); err != nil {
		return nil, err
	}

	return m, nil
}

func NewManagerFromConfig(config *types.Config) *Manager {
	m := &Manager{loader: NewLoader()}
	m.config.Store(config)
	return m
}

func (m *Manager) Load() error {
	config, err := m.loader.LoadFromFile(m.path)
	if err != nil {
		return types.WrapError(err, "config load failed")
	}

	m.config.Store(config)
	return nil
}

func (m *Manager) GetConfig() *types.Config {
	return m.config.Load()
}
