package types

type Config struct {
	Name     string         `yaml:"name" json:"name" validate:"required"`
	Logger   LoggerConfig   `yaml:"logger" json:"logger"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Network  NetworkConfig  `yaml:"network" json:"network"`
	Realtime RealtimeConfig `yaml:"realtime" json:"realtime"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	Policies PolicyConfig   `yaml:"policies" json:"policies"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Preload  []string       `yaml:"preload" json:"preload"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
	File   string `yaml:"file" json:"file"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" json:"backend" validate:"omitempty,oneof=auto sqlite clover memory"`
	Path    string `yaml:"path" json:"path"`
}

type CacheConfig struct {
	MemoryMaxEntries int           `yaml:"memory_max_entries" json:"memory_max_entries" validate:"omitempty,gt=0"`
	Durable          DurableConfig `yaml:"durable" json:"durable"`
}

type DurableConfig struct {
	Backend           string       `yaml:"backend" json:"backend" validate:"omitempty,oneof=storage redis"`
	KeyPrefix         string       `yaml:"key_prefix" json:"key_prefix"`
	CompressThreshold int          `yaml:"compress_threshold" json:"compress_threshold"`
	Redis             *RedisConfig `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type BreakerConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	FailureThreshold int    `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout  string `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests int    `yaml:"half_open_requests" json:"half_open_requests"`
}

type NetworkConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" validate:"required"`
	Timeout string        `yaml:"timeout" json:"timeout"`
	Retries int           `yaml:"retries" json:"retries"`
	Breaker BreakerConfig `yaml:"breaker" json:"breaker"`
}

type RealtimeConfig struct {
	URL          string `yaml:"url" json:"url"`
	BackoffBase  string `yaml:"backoff_base" json:"backoff_base"`
	BackoffCap   string `yaml:"backoff_cap" json:"backoff_cap"`
	MaxAttempts  int    `yaml:"max_attempts" json:"max_attempts"`
	PingInterval string `yaml:"ping_interval" json:"ping_interval"`
	PongWait     string `yaml:"pong_wait" json:"pong_wait"`
	WriteWait    string `yaml:"write_wait" json:"write_wait"`
}

type SyncConfig struct {
	MaxAttempts   int    `yaml:"max_attempts" json:"max_attempts" validate:"omitempty,gt=0"`
	DrainSchedule string `yaml:"drain_schedule" json:"drain_schedule"`
	KeyPrefix     string `yaml:"key_prefix" json:"key_prefix"`
}

type PolicyConfig struct {
	MenuMaxAge     string `yaml:"menu_max_age" json:"menu_max_age"`
	OrdersMaxAge   string `yaml:"orders_max_age" json:"orders_max_age"`
	TablesMaxAge   string `yaml:"tables_max_age" json:"tables_max_age"`
	SettingsMaxAge string `yaml:"settings_max_age" json:"settings_max_age"`
}

type MetricsConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Namespace       string `yaml:"namespace" json:"namespace"`
	EnableGoMetrics bool   `yaml:"enable_go_metrics" json:"enable_go_metrics"`
}
