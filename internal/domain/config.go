package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings (serve mode only)
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Analysis parameters for the batch pipeline
	Analysis AnalysisConfig `json:"analysis"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// AnalysisConfig holds the tunable parameters of the analysis pipeline.
// These replace the module-level constants of earlier iterations; they
// are passed into the pipeline explicitly so runs are reproducible.
type AnalysisConfig struct {
	// Clusters is k for the k-means stage. Must be >= 1 and <= the
	// number of records; the engine rejects anything else rather than
	// clamping silently.
	Clusters int `json:"clusters"`

	// SimilarityThreshold is the cosine similarity above which two
	// transactions are linked in the similarity graph.
	SimilarityThreshold float64 `json:"similarityThreshold"`

	// MaxIterations bounds Lloyd's iteration.
	MaxIterations int `json:"maxIterations"`

	// Tolerance is the convergence threshold on the sum of squared
	// centroid displacements between iterations.
	Tolerance float64 `json:"tolerance"`

	// Seed drives k-means++ initialization. Identical seed, input and
	// configuration produce byte-identical output.
	Seed int64 `json:"seed"`

	// Workers bounds parallelism in the assignment step and the
	// pairwise similarity computation. 0 means GOMAXPROCS.
	Workers int `json:"workers"`

	// ExtendedFeatures switches the vectorizer from the 5-feature
	// numeric encoding to the 9-feature encoding with log-amount,
	// time-of-day fraction and categorical buckets.
	ExtendedFeatures bool `json:"extendedFeatures"`

	// Risk-rate thresholds used by the reporting layer.
	HighRiskRate   float64 `json:"highRiskRate"`
	MediumRiskRate float64 `json:"mediumRiskRate"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
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
	Endpoint    string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultAnalysisConfig returns the default pipeline parameters.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Clusters:            5,
		SimilarityThreshold: 0.7,
		MaxIterations:       100,
		Tolerance:           1e-4,
		Seed:                1,
		Workers:             0, // GOMAXPROCS
		ExtendedFeatures:    false,
		HighRiskRate:        0.5,
		MediumRiskRate:      0.2,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:     TierCommunity,
		Analysis: DefaultAnalysisConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier deployments: larger
// k, tighter convergence, PostgreSQL + Redis + NATS.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Analysis.Clusters = 10
	cfg.Analysis.MaxIterations = 200
	cfg.Analysis.Tolerance = 1e-5
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
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
