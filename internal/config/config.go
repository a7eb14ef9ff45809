package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	SLA      SLAConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	MetricsAddr           string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	NotifyChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig guards the mutating operational endpoints.
type AuthConfig struct {
	JWTSecret string
}

// RemoteConfig describes the external ticketing API connection.
type RemoteConfig struct {
	BaseURL        string
	Table          string
	Username       string
	Password       string
	Source         string
	TimeoutSeconds int
}

// SyncConfig tunes the sync coordinator.
type SyncConfig struct {
	PollIntervalSeconds        int
	HealthCheckIntervalSeconds int
	IncrementalBatchSize       int
	BulkBatchSize              int
	TripThreshold              int
}

// SLAConfig holds escalation targets and thresholds. A YAML policy file, when
// present, overrides the env-provided values.
type SLAConfig struct {
	EvalIntervalSeconds int
	TargetHoursP1       float64
	TargetHoursP2       float64
	TargetHoursP3       float64
	WarningThreshold    float64
	CriticalThreshold   float64
	PolicyFile          string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-sla-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			MetricsAddr:           getEnv("METRICS_ADDR", ":9090"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			NotifyChannel: getEnv("REDIS_NOTIFY_CHANNEL", "engine:notifications"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Remote: RemoteConfig{
			BaseURL:        os.Getenv("REMOTE_BASE_URL"),
			Table:          getEnv("REMOTE_TABLE", "incident"),
			Username:       os.Getenv("REMOTE_USERNAME"),
			Password:       os.Getenv("REMOTE_PASSWORD"),
			Source:         getEnv("REMOTE_SOURCE", "servicenow"),
			TimeoutSeconds: getEnvAsInt("REMOTE_TIMEOUT_SECONDS", 15),
		},
		Sync: SyncConfig{
			PollIntervalSeconds:        getEnvAsInt("SYNC_POLL_INTERVAL_SECONDS", 60),
			HealthCheckIntervalSeconds: getEnvAsInt("SYNC_HEALTH_CHECK_INTERVAL_SECONDS", 300),
			IncrementalBatchSize:       getEnvAsInt("SYNC_INCREMENTAL_BATCH_SIZE", 100),
			BulkBatchSize:              getEnvAsInt("SYNC_BULK_BATCH_SIZE", 500),
			TripThreshold:              getEnvAsInt("SYNC_TRIP_THRESHOLD", 1),
		},
		SLA: SLAConfig{
			EvalIntervalSeconds: getEnvAsInt("SLA_EVAL_INTERVAL_SECONDS", 300),
			TargetHoursP1:       getEnvAsFloat("SLA_TARGET_HOURS_P1", 4),
			TargetHoursP2:       getEnvAsFloat("SLA_TARGET_HOURS_P2", 8),
			TargetHoursP3:       getEnvAsFloat("SLA_TARGET_HOURS_P3", 24),
			WarningThreshold:    getEnvAsFloat("SLA_WARNING_THRESHOLD", 0.2),
			CriticalThreshold:   getEnvAsFloat("SLA_CRITICAL_THRESHOLD", 0.6),
			PolicyFile:          os.Getenv("SLA_POLICY_FILE"),
		},
	}

	if cfg.SLA.PolicyFile != "" {
		if err := applyPolicyFile(&cfg.SLA, cfg.SLA.PolicyFile); err != nil {
			return nil, fmt.Errorf("load SLA policy file: %w", err)
		}
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the remote request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// MissingParams lists required remote connection parameters that are absent.
func (r RemoteConfig) MissingParams() []string {
	var missing []string
	if r.BaseURL == "" {
		missing = append(missing, "REMOTE_BASE_URL")
	}
	if r.Username == "" {
		missing = append(missing, "REMOTE_USERNAME")
	}
	if r.Password == "" {
		missing = append(missing, "REMOTE_PASSWORD")
	}
	return missing
}

// PollInterval returns the incremental poll cadence.
func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// HealthCheckInterval returns the periodic health re-check cadence.
func (s SyncConfig) HealthCheckInterval() time.Duration {
	return time.Duration(s.HealthCheckIntervalSeconds) * time.Second
}

// EvalInterval returns the SLA evaluation cadence.
func (s SLAConfig) EvalInterval() time.Duration {
	return time.Duration(s.EvalIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
