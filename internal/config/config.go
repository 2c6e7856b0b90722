package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Crypto    CryptoConfig
}

type DatabaseConfig struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	SQLitePath        string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	SessionTTL       time.Duration
	MaxFailedLogins  int
	LockoutDuration  time.Duration
	CleanupInterval  time.Duration
	TimingBaseDelay  time.Duration
	TimingRandomSpan time.Duration
	OwnerUsername    string
	OwnerPassword    string
}

type RateLimitConfig struct {
	Backend             string
	RedisURL            string
	GeneralMax          int
	AuthMax             int
	Window              time.Duration
	MaxKeys             int
	NoteWritesPerMinute int
}

type CryptoConfig struct {
	EncryptionKey string // 64 hex chars, decoded by pkg/crypto.DeriveKey
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:            strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "snipvault"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			SQLitePath:        getEnv("SQLITE_PATH", "snipvault.db"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:  parseAllowedOrigins(env),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			MaxFailedLogins:  getEnvAsInt("MAX_FAILED_LOGINS", 5),
			LockoutDuration:  getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			CleanupInterval:  getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour),
			TimingBaseDelay:  getEnvAsDuration("AUTH_TIMING_BASE_DELAY", 100*time.Millisecond),
			TimingRandomSpan: getEnvAsDuration("AUTH_TIMING_RANDOM_DELAY", 50*time.Millisecond),
			OwnerUsername:    getEnv("OWNER_USERNAME", ""),
			OwnerPassword:    getEnv("OWNER_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			Backend:             strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendMemory)),
			RedisURL:            getEnv("REDIS_URL", ""),
			GeneralMax:          getEnvAsInt("RATE_LIMIT_GENERAL_MAX", 100),
			AuthMax:             getEnvAsInt("RATE_LIMIT_AUTH_MAX", 5),
			Window:              getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			MaxKeys:             getEnvAsInt("RATE_LIMIT_MAX_KEYS", 10000),
			NoteWritesPerMinute: getEnvAsInt("NOTE_WRITES_PER_MINUTE", 30),
		},
		Crypto: CryptoConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q (got %q)", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.RateLimit.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q (got %q)",
			RateLimitBackendMemory, RateLimitBackendRedis, c.RateLimit.Backend)
	}

	if c.RateLimit.GeneralMax <= 0 || c.RateLimit.AuthMax <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit maxima and window must be positive")
	}
	if c.Auth.MaxFailedLogins <= 0 || c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("MAX_FAILED_LOGINS and SESSION_TTL must be positive")
	}

	if (c.Auth.OwnerUsername == "") != (c.Auth.OwnerPassword == "") {
		return fmt.Errorf("OWNER_USERNAME and OWNER_PASSWORD must be set together")
	}

	return validateEncryptionKey(c.Crypto.EncryptionKey)
}

// validateEncryptionKey requires a 256-bit key written as 64 hex characters
func validateEncryptionKey(key string) error {
	if key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(key) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (got %d)", len(key))
	}
	if _, err := hex.DecodeString(key); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY must be hex encoded")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsProduction reports whether cookies and headers should use production settings
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
