// Package config loads engine process configuration from YAML with
// environment-variable overrides, mirroring the layered Load/DefaultConfig/
// Validate shape used across this codebase's services.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the top-level process configuration for the engine host process
// (one session per process in the reference deployment).
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Transport    TransportConfig    `yaml:"transport"`
	Session      SessionConfig      `yaml:"session"`
	WebRTC       WebRTCConfig       `yaml:"webrtc"`
	Redis        RedisConfig        `yaml:"redis"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	Logging      LoggingConfig      `yaml:"logging"`
	Admission    AdmissionConfig    `yaml:"admission"`
}

// ServerConfig governs the admin/control HTTP surface.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TransportConfig governs the Media Event WebSocket transport.
type TransportConfig struct {
	Address      string        `yaml:"address"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SessionConfig governs the engine actor's own behavior.
type SessionConfig struct {
	ID               string        `yaml:"id"`
	DisplayManager   bool          `yaml:"display_manager"`
	AdmissionTimeout time.Duration `yaml:"admission_timeout"`
	SubscribeTimeout time.Duration `yaml:"subscribe_timeout"`
}

type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

// WebRTCConfig configures the reference data-plane.
type WebRTCConfig struct {
	ICEServers []ICEServerConfig `yaml:"ice_servers"`
	Simulcast  bool              `yaml:"simulcast"`
	MaxBitrate int               `yaml:"max_bitrate"`
	PortMin    uint16            `yaml:"port_min"`
	PortMax    uint16            `yaml:"port_max"`
}

// RedisConfig configures the optional cross-instance Registry mirror.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	TracingEnabled    bool   `yaml:"tracing_enabled"`
	JaegerURL         string `yaml:"jaeger_url"`
}

type RateLimitingConfig struct {
	Enabled bool          `yaml:"enabled"`
	HTTP    HTTPRateLimit `yaml:"http"`
	Join    JoinRateLimit `yaml:"join"`
}

type HTTPRateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
}

type JoinRateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AdmissionConfig configures the optional reference JWT admission controller.
// Disabled by default. With it disabled nothing resolves a join on its own:
// each joining peer waits until some caller invokes AcceptPeer or DenyPeer.
type AdmissionConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	MinRole   string        `yaml:"min_role"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Transport: TransportConfig{
			Address:      ":8081",
			PingInterval: 30 * time.Second,
			PongTimeout:  60 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			ID:               "default",
			DisplayManager:   false,
			AdmissionTimeout: 15 * time.Second,
			SubscribeTimeout: 5 * time.Second,
		},
		WebRTC: WebRTCConfig{
			Simulcast:  true,
			MaxBitrate: 2_500_000,
			PortMin:    10000,
			PortMax:    20000,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			DB:       0,
			PoolSize: 10,
			Channel:  "sfucore:registry",
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: true,
			PrometheusPort:    9090,
			TracingEnabled:    false,
			JaegerURL:         "http://localhost:14268/api/traces",
		},
		RateLimiting: RateLimitingConfig{
			Enabled: false,
			HTTP:    HTTPRateLimit{RequestsPerSecond: 50, Burst: 100, MaxConcurrent: 200},
			Join:    JoinRateLimit{RequestsPerSecond: 5, Burst: 10},
		},
		Logging: LoggingConfig{Level: "info"},
		Admission: AdmissionConfig{
			Enabled:  false,
			TokenTTL: time.Hour,
			MinRole:  "viewer",
		},
	}
}

// Load reads path over DefaultConfig's values, then applies environment
// overrides and validates. A missing file is an error; Load does not fall
// back to DefaultConfig on its own.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SFUCORE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SFUCORE_TRANSPORT_ADDRESS"); v != "" {
		cfg.Transport.Address = v
	}
	if v := os.Getenv("SFUCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SFUCORE_SESSION_ID"); v != "" {
		cfg.Session.ID = v
	}
	if v := os.Getenv("SFUCORE_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SFUCORE_JWT_SECRET"); v != "" {
		cfg.Admission.JWTSecret = v
		cfg.Admission.Enabled = true
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime errors much later (zero timeouts, empty session id, etc.).
func (c *Config) Validate() error {
	if c.Session.ID == "" {
		return fmt.Errorf("session.id is required")
	}
	if c.Session.SubscribeTimeout <= 0 {
		return fmt.Errorf("session.subscribe_timeout must be positive")
	}
	if c.Session.AdmissionTimeout <= 0 {
		return fmt.Errorf("session.admission_timeout must be positive")
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Transport.Address == "" {
		return fmt.Errorf("transport.address is required")
	}
	if c.WebRTC.PortMin > 0 && c.WebRTC.PortMax > 0 && c.WebRTC.PortMin >= c.WebRTC.PortMax {
		return fmt.Errorf("webrtc.port_min must be less than webrtc.port_max")
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis.enabled is true")
	}
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be positive")
		}
	}
	if c.Admission.Enabled {
		if c.Admission.JWTSecret == "" {
			return fmt.Errorf("admission.jwt_secret is required when admission.enabled is true")
		}
		if c.Admission.TokenTTL <= 0 {
			return fmt.Errorf("admission.token_ttl must be positive")
		}
		switch c.Admission.MinRole {
		case "viewer", "moderator", "owner":
		default:
			return fmt.Errorf("admission.min_role must be one of viewer, moderator, owner")
		}
	}
	return nil
}
