package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinJWTSecretLen is the shortest signing secret the admin API accepts.
const MinJWTSecretLen = 32

type Config struct {
	Env string `yaml:"env"`

	// Page server
	ListenAddr     string        `yaml:"listen_addr"`
	PoolSize       int           `yaml:"pool_size"`
	MaxConnections int           `yaml:"max_connections"`
	SleepDelay     time.Duration `yaml:"sleep_delay"`
	StaticDir      string        `yaml:"static_dir"`

	// Admin API
	AdminAddr         string        `yaml:"admin_addr"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTIssuer         string        `yaml:"jwt_issuer"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	RateRPS           int           `yaml:"rate_rps"`

	// Access log storage
	DatabaseURL string `yaml:"database_url"`
	Migrate     bool   `yaml:"migrate"`

	// Logging
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

func Load() Config {
	cfg := Config{
		Env:               get("APP_ENV", "dev"),
		ListenAddr:        get("LISTEN_ADDR", "0.0.0.0:7878"),
		PoolSize:          getInt("POOL_SIZE", 4),
		MaxConnections:    getInt("MAX_CONNECTIONS", 0),
		SleepDelay:        getDuration("SLEEP_DELAY", 5*time.Second),
		StaticDir:         get("STATIC_DIR", ""),
		AdminAddr:         get("ADMIN_ADDR", ""),
		AdminPasswordHash: get("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         get("JWT_SECRET", ""),
		JWTIssuer:         get("JWT_ISSUER", "webpool"),
		TokenTTL:          getDuration("TOKEN_TTL", 15*time.Minute),
		RateRPS:           getInt("RATE_RPS", 100),
		DatabaseURL:       get("DATABASE_URL", ""),
		Migrate:           get("APP_MIGRATE", "") == "true",
		LogFile:           get("LOG_FILE", ""),
		LogMaxSizeMB:      getInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups:     getInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays:     getInt("LOG_MAX_AGE_DAYS", 28),
	}
	return cfg
}

// ApplyFile overlays the values set in a YAML file onto cfg. Keys missing
// from the file keep their current value.
func ApplyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.PoolSize <= 0 {
		errs = append(errs, errors.New("pool_size must be greater than zero"))
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, errors.New("max_connections must be non-negative"))
	}
	if c.SleepDelay < 0 {
		errs = append(errs, errors.New("sleep_delay must be non-negative"))
	}
	if c.RateRPS < 0 {
		errs = append(errs, errors.New("rate_rps must be non-negative"))
	}
	if c.AdminAddr != "" {
		if c.TokenTTL <= 0 {
			errs = append(errs, errors.New("token_ttl must be positive"))
		}
		if len(c.JWTSecret) < MinJWTSecretLen {
			errs = append(errs, fmt.Errorf("jwt_secret must be at least %d bytes when the admin API is enabled", MinJWTSecretLen))
		}
		if c.AdminPasswordHash == "" {
			errs = append(errs, errors.New("admin_password_hash is required when the admin API is enabled"))
		}
	}
	return errors.Join(errs...)
}

func get(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(get(key, ""))
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(get(key, ""))
	if err != nil {
		return def
	}
	return d
}
