package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// SidecarConfig is the full sidecar configuration as read from TOML.
type SidecarConfig struct {
	Server        ServerSection        `toml:"server"`
	Planner       PlannerSection       `toml:"planner"`
	Guidance      GuidanceSection      `toml:"guidance"`
	Telemetry     TelemetrySection     `toml:"telemetry"`
	RateLimit     RateLimitSection     `toml:"rate_limit"`
	Logging       LoggingSection       `toml:"logging"`
	Observability ObservabilitySection `toml:"observability"`
}

type ServerSection struct {
	Host                   string `toml:"host"`
	Port                   int    `toml:"port"`
	ReadTimeoutSeconds     int    `toml:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

type PlannerSection struct {
	ModelSimple     string `toml:"model_simple"`
	ModelComplex    string `toml:"model_complex"`
	EnableRemoteLLM bool   `toml:"enable_remote_llm"`
}

// Guidance sources
const (
	GuidanceNone = "none"
	GuidanceFile = "file"
	GuidanceHTTP = "http"
)

type GuidanceSection struct {
	Source         string `toml:"source"`
	RootDir        string `toml:"root_dir"`
	Path           string `toml:"path"`
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Telemetry backends
const (
	TelemetryMemory   = "memory"
	TelemetrySQLite   = "sqlite"
	TelemetryPostgres = "postgres"
	TelemetryRedis    = "redis"
)

type TelemetrySection struct {
	Backend   string `toml:"backend"`
	DSN       string `toml:"dsn"`
	MaxEvents int    `toml:"max_events"`
	RedisKey  string `toml:"redis_key"`
}

type RateLimitSection struct {
	RequestsPerSecond int `toml:"requests_per_second"`
	Burst             int `toml:"burst"`
}

type LoggingSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ObservabilitySection struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint"`
	Insecure    bool    `toml:"insecure"`
	SampleRate  float64 `toml:"sample_rate"`
	ServiceName string  `toml:"service_name"`
}

// Address returns host:port for the HTTP listener.
func (s ServerSection) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultPath is the config file used when neither a flag nor ORANGE_CONFIG
// names one.
const DefaultPath = "config/sidecar.toml"

// ConfigPath resolves the config file location from ORANGE_CONFIG.
func ConfigPath() string {
	if path := os.Getenv("ORANGE_CONFIG"); path != "" {
		return path
	}
	return DefaultPath
}

// LoadConfig loads the sidecar configuration. A missing file yields defaults;
// environment overrides are applied in both cases.
func LoadConfig(path string) (*SidecarConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig mirrors the defaults the desktop app expects when it spawns the
// sidecar without a config file.
func DefaultConfig() *SidecarConfig {
	return &SidecarConfig{
		Server: ServerSection{
			Host:                   "127.0.0.1",
			Port:                   7789,
			ReadTimeoutSeconds:     15,
			ShutdownTimeoutSeconds: 5,
		},
		Planner: PlannerSection{
			ModelSimple:  "gpt-4o-mini",
			ModelComplex: "gpt-4o",
		},
		Guidance: GuidanceSection{
			Source:         GuidanceFile,
			RootDir:        "vendor/macos-use",
			TimeoutSeconds: 3,
		},
		Telemetry: TelemetrySection{
			Backend:   TelemetryMemory,
			MaxEvents: 5000,
			RedisKey:  "orange:telemetry",
		},
		RateLimit: RateLimitSection{
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Logging: LoggingSection{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilitySection{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRate:  1.0,
			ServiceName: "orange-sidecar",
		},
	}
}

type lookupFunc func(key string) (string, bool)

func (cfg *SidecarConfig) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup("ORANGE_SIDECAR_HOST"); ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := lookup("ORANGE_SIDECAR_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ORANGE_SIDECAR_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("ORANGE_MODEL_SIMPLE"); ok && v != "" {
		cfg.Planner.ModelSimple = v
	}
	if v, ok := lookup("ORANGE_MODEL_COMPLEX"); ok && v != "" {
		cfg.Planner.ModelComplex = v
	}
	if v, ok := lookup("ORANGE_ENABLE_REMOTE_LLM"); ok {
		cfg.Planner.EnableRemoteLLM = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := lookup("ORANGE_GUIDANCE_PATH"); ok && v != "" {
		cfg.Guidance.Source = GuidanceFile
		cfg.Guidance.Path = v
	}
	if v, ok := lookup("ORANGE_GUIDANCE_URL"); ok && v != "" {
		cfg.Guidance.Source = GuidanceHTTP
		cfg.Guidance.URL = v
	}
	if v, ok := lookup("ORANGE_TELEMETRY_BACKEND"); ok && v != "" {
		cfg.Telemetry.Backend = strings.ToLower(v)
	}
	if v, ok := lookup("ORANGE_TELEMETRY_DSN"); ok && v != "" {
		cfg.Telemetry.DSN = v
	}
	if v, ok := lookup("ORANGE_LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup("ORANGE_OTEL_ENDPOINT"); ok && v != "" {
		cfg.Observability.Enabled = true
		cfg.Observability.Endpoint = v
	}
	return nil
}

func (cfg *SidecarConfig) validate() error {
	if cfg.Server.Host == "" {
		return fmt.Errorf("server host is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15 // default
	}

	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 5 // default
	}

	if cfg.Planner.ModelSimple == "" || cfg.Planner.ModelComplex == "" {
		return fmt.Errorf("planner models are required")
	}

	switch cfg.Guidance.Source {
	case "":
		cfg.Guidance.Source = GuidanceNone
	case GuidanceNone, GuidanceFile:
	case GuidanceHTTP:
		if cfg.Guidance.URL == "" {
			return fmt.Errorf("guidance url is required for http source")
		}
	default:
		return fmt.Errorf("unknown guidance source %q", cfg.Guidance.Source)
	}

	if cfg.Guidance.TimeoutSeconds <= 0 {
		cfg.Guidance.TimeoutSeconds = 3 // default
	}

	switch cfg.Telemetry.Backend {
	case "":
		cfg.Telemetry.Backend = TelemetryMemory
	case TelemetryMemory:
	case TelemetrySQLite, TelemetryPostgres, TelemetryRedis:
		if cfg.Telemetry.DSN == "" {
			return fmt.Errorf("telemetry dsn is required for %s backend", cfg.Telemetry.Backend)
		}
	default:
		return fmt.Errorf("unknown telemetry backend %q", cfg.Telemetry.Backend)
	}

	if cfg.Telemetry.MaxEvents <= 0 {
		cfg.Telemetry.MaxEvents = 5000 // default
	}

	if cfg.Telemetry.RedisKey == "" {
		cfg.Telemetry.RedisKey = "orange:telemetry"
	}

	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}

	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("observability sample_rate must be within [0, 1]")
	}

	return nil
}
