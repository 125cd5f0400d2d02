package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/leave-engine/leave"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config aggregates runtime configuration for the leave service.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Lock   LockConfig
	Redis  RedisConfig
	Policy leave.Policy
	Logger LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Addr     string
	Timezone string
}

// DBConfig points at the SQLite database file.
type DBConfig struct {
	Path string
}

// LockConfig selects how requests are serialized across processes.
type LockConfig struct {
	Backend    string
	TTLSeconds int
}

// RedisConfig holds Redis connection values for the redis lock backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Addr:     getEnv("LEAVE_HTTP_ADDR", ":8080"),
			Timezone: getEnv("LEAVE_TIMEZONE", "UTC"),
		},
		DB: DBConfig{
			Path: getEnv("LEAVE_DB_PATH", "leave.db"),
		},
		Lock: LockConfig{
			Backend:    strings.ToLower(getEnv("LEAVE_LOCK_BACKEND", LockBackendLocal)),
			TTLSeconds: getEnvAsInt("LEAVE_LOCK_TTL_SECONDS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Policy: leave.Policy{
			AnnualQuota:       getEnvAsInt("LEAVE_ANNUAL_QUOTA", leave.DefaultAnnualQuota),
			MaxRegularDays:    getEnvAsInt("LEAVE_MAX_REGULAR_DAYS", leave.MaxRegularDays),
			EligibilityMonths: getEnvAsInt("LEAVE_ELIGIBILITY_MONTHS", leave.EligibilityMonths),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("invalid LEAVE_LOCK_BACKEND %q: want %s or %s", c.Lock.Backend, LockBackendLocal, LockBackendRedis)
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid LEAVE_TIMEZONE: %w", err)
	}
	if c.Policy.AnnualQuota < 0 || c.Policy.MaxRegularDays < 0 || c.Policy.EligibilityMonths < 0 {
		return fmt.Errorf("policy values must not be negative")
	}
	return nil
}

// Location resolves the timezone "today" is evaluated in.
func (a AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// LockTTL returns how long a distributed lock is held before it expires.
func (l LockConfig) LockTTL() time.Duration {
	if l.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(l.TTLSeconds) * time.Second
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
