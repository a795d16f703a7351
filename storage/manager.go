package storage

import (
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
)

const (
	BackendSQLite = "sqlite"
	BackendClover = "clover"
	BackendMemory = "memory"
)

// Prober selects a persistence backend once at startup. The capability
// decision is never revisited per call: callers get a KVStore, and those
// that need SQL type-assert to types.SQLStore.
type Prober struct {
	logger types.Logger
	health types.HealthManager

	openSQLite func(types.Logger, string) (types.SQLStore, error)
	openClover func(types.Logger, string) (types.KVStore, error)
}

func NewProber(logger types.Logger, health types.HealthManager) *Prober {
	return &Prober{
		logger:     logger,
		health:     health,
		openSQLite: NewSQLiteStore,
		openClover: NewCloverStore,
	}
}

// Open probes backends in capability order. An explicit backend in config is
// honored without fallback so a misconfigured terminal fails loudly.
func (p *Prober) Open(config *types.StorageConfig) (types.KVStore, string, error) {
	switch config.Backend {
	case BackendSQLite:
		store, err := p.openSQLite(p.logger, config.Path)
		if err != nil {
			return nil, "", err
		}
		p.report(BackendSQLite, types.HealthOK, "")
		return store, BackendSQLite, nil

	case BackendClover:
		store, err := p.openClover(p.logger, config.Path)
		if err != nil {
			return nil, "", err
		}
		p.report(BackendClover, types.HealthDegraded, "key-value only, no ad-hoc queries")
		return store, BackendClover, nil

	case BackendMemory:
		p.report(BackendMemory, types.HealthDegraded, "volatile, nothing survives restart")
		return NewMemoryStore(), BackendMemory, nil
	}

	return p.probe(config.Path)
}

func (p *Prober) probe(dataDir string) (types.KVStore, string, error) {
	if store, err := p.openSQLite(p.logger, dataDir); err == nil {
		p.report(BackendSQLite, types.HealthOK, "")
		return store, BackendSQLite, nil
	} else {
		p.logger.Warn("SQL backend unavailable, probing document store", zap.Error(err))
	}

	if store, err := p.openClover(p.logger, dataDir); err == nil {
		p.report(BackendClover, types.HealthDegraded, "key-value only, no ad-hoc queries")
		return store, BackendClover, nil
	} else {
		p.logger.Warn("Document backend unavailable, falling back to memory", zap.Error(err))
	}

	p.report(BackendMemory, types.HealthDegraded, "volatile, nothing survives restart")
	return NewMemoryStore(), BackendMemory, nil
}

func (p *Prober) report(backend string, status types.HealthStatus, detail string) {
	if p.health != nil {
		p.health.SetStatus("storage", status, detail)
	}

	if status == types.HealthOK {
		p.logger.Info("Storage backend selected", zap.String("backend", backend))
	} else {
		p.logger.Warn("Storage backend selected with reduced capability",
			zap.String("backend", backend),
			zap.String("detail", detail))
	}
}
