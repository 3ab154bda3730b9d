package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRulesHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	AutoMigrate       bool

	RedisURL string

	RulesConfigPath string

	Pipeline  PipelineConfig
	Scheduler SchedulerConfig
}

// PipelineConfig tunes the line item processing pipeline.
type PipelineConfig struct {
	PageSize           int
	NumberMaxLength    int
	NumberSuffixLength int
	MaxAttempts        int
	CutoffPolicy       string
}

type SchedulerConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
	LockKey  string
}

const (
	CutoffPolicyNow            = "now"
	CutoffPolicyPreviousSunday = "previous_sunday"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "salesledger"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "salesledger"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "salesledger.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		AutoMigrate:       getenvBool("DATABASE_AUTO_MIGRATE", false),
		RedisURL:          strings.TrimSpace(getenv("REDIS_URL", "")),
		RulesConfigPath:   strings.TrimSpace(getenv("RULES_CONFIG_PATH", "")),
		Pipeline: PipelineConfig{
			PageSize:           getenvInt("PIPELINE_PAGE_SIZE", 100),
			NumberMaxLength:    getenvInt("PIPELINE_NUMBER_MAX_LENGTH", 15),
			NumberSuffixLength: getenvInt("PIPELINE_NUMBER_SUFFIX_LENGTH", 4),
			MaxAttempts:        getenvInt("PIPELINE_MAX_ATTEMPTS", 2),
			CutoffPolicy:       normalizeCutoffPolicy(getenv("PIPELINE_CUTOFF_POLICY", CutoffPolicyNow)),
		},
		Scheduler: SchedulerConfig{
			Interval: getenvDuration("SCHEDULER_INTERVAL", 24*time.Hour),
			LockTTL:  getenvDuration("SCHEDULER_LOCK_TTL", time.Hour),
			LockKey:  getenv("SCHEDULER_LOCK_KEY", "salesledger:pipeline:lock"),
		},
	}
}

func normalizeCutoffPolicy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CutoffPolicyPreviousSunday:
		return CutoffPolicyPreviousSunday
	default:
		return CutoffPolicyNow
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
