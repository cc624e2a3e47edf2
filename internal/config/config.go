// Package config loads CalMate settings from defaults, an optional
// calmate.yaml, CALMATE_ environment variables and bound command flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CALMATE_HTTP_ADDR.
const EnvPrefix = "CALMATE"

// Store backends.
const (
	StoreBadger = "badger"
	StoreMongo  = "mongo"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds all configuration values.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Store     StoreConfig     `mapstructure:"store"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimit is requests per minute per client. Zero disables limiting.
	RateLimit int `mapstructure:"rate_limit"`
	RateBurst int `mapstructure:"rate_burst"`
}

type MCPConfig struct {
	Addr        string `mapstructure:"addr"`
	BaseURL     string `mapstructure:"base_url"`
	BearerToken string `mapstructure:"bearer_token"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// Path is the badger directory. Empty keeps bookings in memory.
	Path          string `mapstructure:"path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type SessionConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Size    int           `mapstructure:"size"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CalendarConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Account string `mapstructure:"account"`
	ID      string `mapstructure:"id"`
}

type AssistantConfig struct {
	StepMinutes        int           `mapstructure:"step_minutes"`
	AlternativesWindow time.Duration `mapstructure:"alternatives_window"`
	MaxAlternatives    int           `mapstructure:"max_alternatives"`
	ListActiveOnly     bool          `mapstructure:"list_active_only"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TelemetryConfig selects the OpenTelemetry exporters. Exporter names are
// checked when the provider is built.
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MetricsExporter   string  `mapstructure:"metrics_exporter"`
	TracingExporter   string  `mapstructure:"tracing_exporter"`
	OTLPEndpoint      string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure      bool    `mapstructure:"otlp_insecure"`
	TraceSamplingRate float64 `mapstructure:"trace_sampling_rate"`
	DetailedLabels    bool    `mapstructure:"detailed_labels"`
	AuditEnabled      bool    `mapstructure:"audit_enabled"`
	AuditIncludePII   bool    `mapstructure:"audit_include_pii"`
}

// Step returns the free-slot step as a duration.
func (c AssistantConfig) Step() time.Duration {
	return time.Duration(c.StepMinutes) * time.Minute
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{})
	v.SetDefault("http.rate_limit", 120)
	v.SetDefault("http.rate_burst", 20)

	v.SetDefault("mcp.addr", ":8081")
	v.SetDefault("mcp.base_url", "http://localhost:8081")
	v.SetDefault("mcp.bearer_token", "")

	v.SetDefault("store.backend", StoreBadger)
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_database", "calmate")

	v.SetDefault("session.backend", SessionMemory)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.size", 10000)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("calendar.enabled", false)
	v.SetDefault("calendar.account", "default")
	v.SetDefault("calendar.id", "primary")

	v.SetDefault("assistant.step_minutes", 15)
	v.SetDefault("assistant.alternatives_window", 2*time.Hour)
	v.SetDefault("assistant.max_alternatives", 3)
	v.SetDefault("assistant.list_active_only", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_exporter", "prometheus")
	v.SetDefault("telemetry.tracing_exporter", "none")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.trace_sampling_rate", 0.1)
	v.SetDefault("telemetry.detailed_labels", false)
	v.SetDefault("telemetry.audit_enabled", true)
	v.SetDefault("telemetry.audit_include_pii", false)
}

// New returns a viper instance with defaults, config search paths and
// environment overrides set up. Flags can be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("calmate")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "calmate"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, when one exists, and decodes v. configFile
// overrides the search paths. The returned config is validated.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// Comma separated values arrive as one string from the environment.
	cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backends and non-positive sizes.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case StoreBadger:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongo_uri is required for the mongo backend"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("store.mongo_database is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", StoreBadger, StoreMongo, c.Store.Backend))
	}

	switch c.Session.Backend {
	case SessionMemory:
	case SessionRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend must be %q or %q, got %q", SessionMemory, SessionRedis, c.Session.Backend))
	}

	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL))
	}
	if c.Session.Size <= 0 {
		errs = append(errs, fmt.Errorf("session.size must be positive, got %d", c.Session.Size))
	}
	if c.Assistant.StepMinutes <= 0 {
		errs = append(errs, fmt.Errorf("assistant.step_minutes must be positive, got %d", c.Assistant.StepMinutes))
	}
	if c.Assistant.AlternativesWindow <= 0 {
		errs = append(errs, fmt.Errorf("assistant.alternatives_window must be positive, got %s", c.Assistant.AlternativesWindow))
	}
	if c.Assistant.MaxAlternatives <= 0 {
		errs = append(errs, fmt.Errorf("assistant.max_alternatives must be positive, got %d", c.Assistant.MaxAlternatives))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("http.rate_limit must not be negative, got %d", c.HTTP.RateLimit))
	}
	if r := c.Telemetry.TraceSamplingRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sampling_rate must be between 0 and 1, got %g", r))
	}
	if c.Calendar.Enabled && c.Calendar.Account == "" {
		errs = append(errs, errors.New("calendar.account is required when the calendar is enabled"))
	}

	return errors.Join(errs...)
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func defaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "calmate", "bookings")
}
