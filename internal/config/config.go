// Package config loads application configuration from defaults, an
// optional YAML file, and PAYGRID_ environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the process environment. Nesting uses a double
// underscore so single underscores survive inside key names, e.g.
// PAYGRID_DATABASE__MAX_OPEN_CONNS maps to database.max_open_conns.
const envPrefix = "PAYGRID_"

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Database    DatabaseConfig    `koanf:"database"`
	Channels    ChannelsConfig    `koanf:"channels"`
	Ai          AiConfig          `koanf:"ai"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	Migrate         bool          `koanf:"migrate"`
}

// ChannelsConfig contains chat transport settings.
type ChannelsConfig struct {
	Telegram   TelegramConfig   `koanf:"telegram"`
	Mattermost MattermostConfig `koanf:"mattermost"`
}

// TelegramConfig contains Telegram Bot API settings.
type TelegramConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BotToken  string        `koanf:"bot_token"`
	APIBase   string        `koanf:"api_base"`
	RateLimit float64       `koanf:"rate_limit"`
	Timeout   time.Duration `koanf:"timeout"`
}

// MattermostConfig contains Mattermost webhook settings.
type MattermostConfig struct {
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout"`
}

// AiConfig contains the analysis provider settings.
type AiConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// AggregationConfig tunes the statistics engine.
type AggregationConfig struct {
	BandLowerPct      int           `koanf:"band_lower_pct"`
	BandUpperPct      int           `koanf:"band_upper_pct"`
	HistogramBuckets  int           `koanf:"histogram_buckets"`
	RelativeThreshold float64       `koanf:"relative_threshold"`
	SendTimeout       time.Duration `koanf:"send_timeout"`
	SegmentCacheTTL   time.Duration `koanf:"segment_cache_ttl"`
}

// SchedulerConfig contains scheduler settings.
type SchedulerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	TickInterval time.Duration `koanf:"tick_interval"`
	BatchHourUTC int           `koanf:"batch_hour_utc"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			Migrate:         true,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				RateLimit: 20,
				Timeout:   15 * time.Second,
			},
			Mattermost: MattermostConfig{
				Timeout: 15 * time.Second,
			},
		},
		Ai: AiConfig{
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Aggregation: AggregationConfig{
			BandLowerPct:      10,
			BandUpperPct:      90,
			HistogramBuckets:  10,
			RelativeThreshold: 0.01,
			SendTimeout:       15 * time.Second,
			SegmentCacheTTL:   5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			TickInterval: time.Minute,
			BatchHourUTC: 9,
		},
	}
}

// Load builds the configuration. path may be empty to skip the file
// layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.BotToken == "" {
		errs = append(errs, errors.New("channels.telegram.bot_token is required when telegram is enabled"))
	}
	if c.Ai.Enabled && c.Ai.BaseURL == "" {
		errs = append(errs, errors.New("ai.base_url is required when ai is enabled"))
	}
	if c.Aggregation.BandLowerPct < 0 || c.Aggregation.BandUpperPct > 100 ||
		c.Aggregation.BandLowerPct >= c.Aggregation.BandUpperPct {
		errs = append(errs, errors.New("aggregation band percentiles must satisfy 0 <= lower < upper <= 100"))
	}
	if c.Scheduler.BatchHourUTC < 0 || c.Scheduler.BatchHourUTC > 23 {
		errs = append(errs, errors.New("scheduler.batch_hour_utc must be between 0 and 23"))
	}

	return errors.Join(errs...)
}
