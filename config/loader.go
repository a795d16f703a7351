package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tavolo/posdata/types"
)

const (
	EnvAPIBaseURL  = "POSDATA_API_URL"
	EnvRealtimeURL = "POSDATA_REALTIME_URL"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(configPath string) (*types.Config, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.Load(data)
}

func (l *Loader) Load(data []byte) (*types.Config, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.WrapError(err, "failed to parse YAML config")
	}

	l.applyEnvOverrides(config)

	if err := l.validator.Struct(config); err != nil {
		return nil, types.WrapError(err, "config validation failed")
	}

	return config, nil
}

// Defaults returns a config suitable for a terminal pointed at a local
// backend. Every section can run on these values except network.base_url,
// which validation requires.
func (l *Loader) Defaults() *types.Config {
	return &types.Config{
		Name: "posdata",
		Logger: types.LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Storage: types.StorageConfig{
			Backend: "auto",
			Path:    "./data",
		},
		Cache: types.CacheConfig{
			MemoryMaxEntries: 100,
			Durable: types.DurableConfig{
				Backend:           "storage",
				KeyPrefix:         "response:",
				CompressThreshold: 4096,
			},
		},
		Network: types.NetworkConfig{
			Timeout: "5s",
			Retries: 1,
			Breaker: types.BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				RecoveryTimeout:  "30s",
				HalfOpenRequests: 2,
			},
		},
		Realtime: types.RealtimeConfig{
			BackoffBase:  "1s",
			BackoffCap:   "30s",
			MaxAttempts:  10,
			PingInterval: "54s",
			PongWait:     "60s",
			WriteWait:    "10s",
		},
		Sync: types.SyncConfig{
			MaxAttempts:   3,
			DrainSchedule: "@every 1m",
			KeyPrefix:     "sync:",
		},
		Policies: types.PolicyConfig{
			MenuMaxAge:     "5m",
			OrdersMaxAge:   "30s",
			TablesMaxAge:   "1m",
			SettingsMaxAge: "10m",
		},
		Metrics: types.MetricsConfig{
			Enabled:   true,
			Namespace: "posdata",
		},
	}
}

func (l *Loader) applyEnvOverrides(config *types.Config) {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		config.Network.BaseURL = v
	}

	if v := os.Getenv(EnvRealtimeURL); v != "" {
		config.Realtime.URL = v
	}
}
