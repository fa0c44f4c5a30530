package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port             string        `yaml:"port"`
	DBDriver         string        `yaml:"db_driver"`
	DBConn           string        `yaml:"db_conn"`
	LogLevel         string        `yaml:"log_level"`
	JWTSecret        string        `yaml:"jwt_secret"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	StaticOTP        string        `yaml:"static_otp"`
	ReviewTurnaround string        `yaml:"review_turnaround"`
	MaxProofBytes    int64         `yaml:"max_proof_bytes"`
	OverdueSchedule  string        `yaml:"overdue_schedule"`
	TimeZone         string        `yaml:"time_zone"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// NewConfig loads configuration from a .env file (if present), the YAML file
// named by CONFIG_FILE (if set) and environment variables, in increasing order
// of precedence.
func NewConfig() (*Config, error) {
	// Load .env for local dev
	_ = godotenv.Load()

	cfg := &Config{
		Port:             "8080",
		DBDriver:         "sqlite3",
		DBConn:           "loantracker.db",
		LogLevel:         "INFO",
		TokenTTL:         24 * time.Hour,
		StaticOTP:        "321456",
		ReviewTurnaround: "24-48 hours",
		MaxProofBytes:    5 << 20,
		OverdueSchedule:  "0 1 * * *",
		TimeZone:         "Asia/Manila",
		ReadTimeout:      10 * time.Second,
		WriteTimeout:     30 * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBConn = getEnv("DB_CONN", c.DBConn)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.StaticOTP = getEnv("STATIC_OTP", c.StaticOTP)
	c.ReviewTurnaround = getEnv("REVIEW_TURNAROUND", c.ReviewTurnaround)
	c.OverdueSchedule = getEnv("OVERDUE_SCHEDULE", c.OverdueSchedule)
	c.TimeZone = getEnv("TIME_ZONE", c.TimeZone)

	var err error
	if c.TokenTTL, err = getDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.ReadTimeout, err = getDuration("READ_TIMEOUT", c.ReadTimeout); err != nil {
		return err
	}
	if c.WriteTimeout, err = getDuration("WRITE_TIMEOUT", c.WriteTimeout); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("MAX_PROOF_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_PROOF_BYTES: %w", err)
		}
		c.MaxProofBytes = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "sqlite3", "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.MaxProofBytes <= 0 {
		return fmt.Errorf("MAX_PROOF_BYTES must be positive")
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
