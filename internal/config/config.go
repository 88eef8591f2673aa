// Package config reads the service configuration from the environment.
// main loads .env files first through godotenv/autoload.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/skillstake/internal/auth"
	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type Config struct {
	Addr           string
	Production     bool
	AllowedOrigins []string

	// StoreDriver selects the backend: postgres or memory.
	StoreDriver string
	DatabaseURL string
	// FeedDriver selects the change feed: redis or memory. Redis is needed
	// as soon as more than one server instance runs.
	FeedDriver string

	AuditBatchSize  int
	AuditFlushDelay time.Duration
	// AuditDrainInProcess runs the drainer inside the API server. Turn it
	// off when cmd/auditor runs as its own process.
	AuditDrainInProcess bool

	TokenTTL          time.Duration
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string

	PresenceTTL   time.Duration
	PresenceSweep time.Duration

	LogLevel logrus.Level
}

// Load reads every setting, applying defaults for unset values.
func Load() (Config, error) {
	c := Config{
		Production:          getEnv("SKILLSTAKE_ENV", "development") == "production",
		StoreDriver:         getEnv("STORE_DRIVER", DriverPostgres),
		AuditBatchSize:      getEnvInt("AUDIT_BATCH_SIZE", 20),
		AuditFlushDelay:     time.Duration(getEnvInt("AUDIT_FLUSH_MS", 500)) * time.Millisecond,
		AuditDrainInProcess: getEnv("AUDIT_DRAIN_INPROCESS", "true") != "false",
		JWTPrivateKeyPath:   os.Getenv("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:    os.Getenv("JWT_PUBLIC_KEY_PATH"),
	}

	port := getEnv("PORT", "8080")
	if c.Production {
		// bind to all hosts in production mode, otherwise to localhost
		c.Addr = ":" + port
	} else {
		c.Addr = "localhost:" + port
	}

	if c.Production {
		for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
		if len(c.AllowedOrigins) == 0 {
			return Config{}, fmt.Errorf("ALLOWED_ORIGINS is required in production")
		}
	} else {
		c.AllowedOrigins = []string{"https://*", "http://*"}
	}

	switch c.StoreDriver {
	case DriverPostgres:
		c.DatabaseURL = DatabaseURL()
		c.FeedDriver = getEnv("FEED_DRIVER", DriverRedis)
	case DriverMemory:
		c.FeedDriver = getEnv("FEED_DRIVER", DriverMemory)
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.FeedDriver != DriverRedis && c.FeedDriver != DriverMemory {
		return Config{}, fmt.Errorf("unknown FEED_DRIVER %q", c.FeedDriver)
	}

	var err error
	if c.TokenTTL, err = auth.ParseTokenExpireTime(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		return Config{}, err
	}
	if c.PresenceTTL, err = getEnvDuration("PRESENCE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if c.PresenceSweep, err = getEnvDuration("PRESENCE_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if c.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return c, nil
}

// DatabaseURL prefers DATABASE_URL and otherwise assembles one from the
// POSTGRES_* variables.
func DatabaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:   getEnv("PG_HOST", "localhost") + ":" + getEnv("PG_PORT", "5432"),
		Path:   "/" + os.Getenv("PG_DATABASE"),
	}
	return u.String()
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
