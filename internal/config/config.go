package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const devJWTSecret = "dev-secret-change-in-production"

var (
	ErrProductionSecret = errors.New("JWT_SECRET must be set in production environment")
	ErrInvalidTTL       = errors.New("JWT_TTL must be a positive duration")
)

type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseDSN        string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTExpiry          time.Duration
	CORSAllowedOrigins []string
	MigrateOnStart     bool
	ShutdownTimeout    time.Duration
}

// Load reads the configuration from the environment. Call godotenv.Load first
// if a .env file should be honoured.
func Load() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseDSN:        getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/blog?parseTime=true"),
		JWTSecret:          getEnv("JWT_SECRET", devJWTSecret),
		JWTIssuer:          getEnv("JWT_ISSUER", "blog-api"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "blog-api"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MigrateOnStart:     true,
	}

	var err error
	if cfg.JWTExpiry, err = getEnvDuration("JWT_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MigrateOnStart, err = getEnvBool("MIGRATE_ON_START", true); err != nil {
		return Config{}, err
	}

	if cfg.JWTExpiry <= 0 {
		return Config{}, ErrInvalidTTL
	}
	if cfg.IsProduction() && cfg.JWTSecret == devJWTSecret {
		return Config{}, ErrProductionSecret
	}

	return cfg, nil
}

// IsProduction reports whether ENV is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
