// Package config loads service configuration: defaults, then an optional
// yaml file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulsefeed/trendwatch/internal/gate"
	"github.com/pulsefeed/trendwatch/internal/infrastructure/db"
	"github.com/pulsefeed/trendwatch/internal/ingest"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database db.Config      `yaml:"database"`
	Detector DetectorConfig `yaml:"detector"`
	Gate     gate.Config    `yaml:"gate"`
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	Port            int           `yaml:"port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	CronSecret      string        `yaml:"cron_secret" env:"CRON_SECRET"`
	AdminToken      string        `yaml:"admin_token" env:"ADMIN_TOKEN"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	RateBurst       int           `yaml:"rate_burst"`
}

// DetectorConfig tunes detection runs.
type DetectorConfig struct {
	WindowHours int           `yaml:"window_hours"`
	Budget      time.Duration `yaml:"budget"`
	Caps        ingest.Caps   `yaml:"caps"`
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			RequestTimeout:  60 * time.Second,
			RateLimitPerMin: 10,
			RateBurst:       3,
		},
		Database: db.DefaultConfig(),
		Detector: DetectorConfig{
			WindowHours: 24,
			Budget:      45 * time.Second,
			Caps:        ingest.DefaultCaps(),
		},
		Gate: *gate.DefaultConfig(),
	}
}

// Load reads path when non-empty, then applies environment overrides. A
// missing file at the default path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PG_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Database.MaxOpenConns = n
		}
	}
	if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Database.MaxIdleConns = n
		}
	}
	if v := os.Getenv("PG_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Database.ConnMaxLifetime = d
		}
	}
	if v := os.Getenv("PG_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Database.QueryTimeout = d
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = n
		}
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		c.HTTP.CronSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.HTTP.AdminToken = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		out := origins[:0]
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
		c.HTTP.AllowedOrigins = out
	}
	if v := os.Getenv("DETECT_WINDOW_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Detector.WindowHours = n
		}
	}
	if v := os.Getenv("DETECT_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Detector.Budget = d
		}
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.Detector.WindowHours <= 0 {
		return fmt.Errorf("detector window must be positive, got %d", c.Detector.WindowHours)
	}
	if c.Detector.Budget <= 0 {
		return fmt.Errorf("detector budget must be positive, got %s", c.Detector.Budget)
	}
	if c.HTTP.RateLimitPerMin <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.HTTP.RateLimitPerMin)
	}
	return nil
}
