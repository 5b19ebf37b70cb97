package domain

import "time"

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Mode determines the deployment profile
	Mode Mode `json:"mode"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Loader     LoaderConfig     `json:"loader"`
	Engine     EngineConfig     `json:"engine"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// Mode represents the deployment profile.
type Mode string

const (
	// ModeStandalone runs single-node on SQLite with in-process cache
	// and channel bus.
	ModeStandalone Mode = "standalone"

	// ModeDistributed runs on PostgreSQL + Redis + NATS so several
	// replicas share facts, cache, and refresh events.
	ModeDistributed Mode = "distributed"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// Per-client request rate (requests/second); zero disables limiting.
	RateLimit float64 `json:"rateLimit"`
	RateBurst int     `json:"rateBurst"`
}

// LoaderConfig holds fact-loader settings.
type LoaderConfig struct {
	// CSVPath is an optional fact file loaded into the repository at
	// startup when the dataset is empty.
	CSVPath string `json:"csvPath"`

	// BatchSize is the number of rows per repository insert batch.
	BatchSize int `json:"batchSize"`

	// Strict fails the whole load on the first invalid row; otherwise
	// invalid rows are skipped and counted.
	Strict bool `json:"strict"`
}

// EngineConfig holds evaluation settings.
type EngineConfig struct {
	// MaxGroupWorkers bounds parallel group evaluation.
	MaxGroupWorkers int `json:"maxGroupWorkers"`

	// CacheTTL is the query-result cache TTL in seconds. Zero disables
	// result caching.
	CacheTTL int `json:"cacheTtl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the standalone profile: SQLite, local LRU cache,
// channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			RateLimit:    50,
			RateBurst:    100,
		},
		Mode: ModeStandalone,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./superstore.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Loader: LoaderConfig{
			BatchSize: 500,
			Strict:    true,
		},
		Engine: EngineConfig{
			MaxGroupWorkers: 8,
			CacheTTL:        300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "superstore",
		},
	}
}

// DistributedConfig returns the distributed profile: PostgreSQL + Redis +
// NATS, for running several replicas against shared state.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeDistributed
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "superstore",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
