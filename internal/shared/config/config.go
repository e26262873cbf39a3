package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	HIS       HISConfig
	Artifact  ArtifactConfig
	Engine    EngineConfig
	Snapshot  SnapshotConfig
	Forecast  ForecastConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port      int
	Env       string
	RateLimit int // requests per second per client IP
	RateBurst int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// HISConfig holds connection settings for the hospital information system
// bed-status feed (SQL Server).
type HISConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	// PollInterval between bed-status polls
	PollInterval time.Duration
}

// ArtifactConfig selects where serialized engine state is persisted.
type ArtifactConfig struct {
	// Backend: "postgres" or "filesystem"
	Backend string
	// Dir is the root directory for the filesystem backend
	Dir string
	// Key identifies the engine artifact (also the filename under Dir)
	Key string
}

// EngineConfig carries the ranking tunables. Defaults are the production
// tuning values and should not be changed without revalidating against
// historical placement outcomes.
type EngineConfig struct {
	Alpha       float64 // trail-strength exponent
	Beta        float64 // desirability exponent
	OccWeight   float64 // occupancy-ratio cost weight
	DistWeight  float64 // transfer-rate cost weight
	UpdateAlpha float64 // feedback EMA retention factor
	// GraphPath optionally overrides the embedded ward graph with a JSON file
	GraphPath string
}

type SnapshotConfig struct {
	// FetchTimeout bounds each of the three temporal fetches; a fetch that
	// exceeds it is treated as a missing snapshot, not a failure.
	FetchTimeout time.Duration
}

// ForecastConfig selects the congestion/discharge predictor. When
// ModelURL is empty the local occupancy heuristic is used instead of the
// remote model service.
type ForecastConfig struct {
	ModelURL string
	Timeout  time.Duration
}

type JobsConfig struct {
	Enabled bool
	// RetrainInterval between feedback-drain/persist cycles
	RetrainInterval time.Duration
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:      getEnvInt("SERVER_PORT", 8080),
			Env:       getEnv("ENV", "development"),
			RateLimit: getEnvInt("SERVER_RATE_LIMIT", 50),
			RateBurst: getEnvInt("SERVER_RATE_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "rmrp"),
			Password: getEnv("DB_PASSWORD", "rmrp"),
			Database: getEnv("DB_NAME", "rmrp"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", "rmrp"),
		},
		HIS: HISConfig{
			Enabled:      getEnvBool("HIS_ENABLED", false),
			Host:         getEnv("HIS_HOST", "localhost"),
			Port:         getEnvInt("HIS_PORT", 1433),
			Database:     getEnv("HIS_DATABASE", "HIS"),
			User:         getEnv("HIS_USER", ""),
			Password:     getEnv("HIS_PASSWORD", ""),
			SSLMode:      getEnv("HIS_SSLMODE", "disable"),
			PollInterval: getEnvDuration("HIS_POLL_INTERVAL", 5*time.Minute),
		},
		Artifact: ArtifactConfig{
			Backend: getEnv("ARTIFACT_BACKEND", "postgres"),
			Dir:     getEnv("ARTIFACT_DIR", "./data/models"),
			Key:     getEnv("ARTIFACT_KEY", "hybrid-scheduler"),
		},
		Engine: EngineConfig{
			Alpha:       getEnvFloat("ENGINE_ALPHA", 1.0),
			Beta:        getEnvFloat("ENGINE_BETA", 2.0),
			OccWeight:   getEnvFloat("ENGINE_OCC_WEIGHT", 0.7),
			DistWeight:  getEnvFloat("ENGINE_DIST_WEIGHT", 0.3),
			UpdateAlpha: getEnvFloat("ENGINE_UPDATE_ALPHA", 0.6),
			GraphPath:   getEnv("ENGINE_GRAPH_PATH", ""),
		},
		Snapshot: SnapshotConfig{
			FetchTimeout: getEnvDuration("SNAPSHOT_FETCH_TIMEOUT", 5*time.Second),
		},
		Forecast: ForecastConfig{
			ModelURL: getEnv("FORECAST_MODEL_URL", ""),
			Timeout:  getEnvDuration("FORECAST_TIMEOUT", 10*time.Second),
		},
		Jobs: JobsConfig{
			Enabled:         getEnvBool("JOBS_ENABLED", true),
			RetrainInterval: getEnvDuration("JOBS_RETRAIN_INTERVAL", time.Hour),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
