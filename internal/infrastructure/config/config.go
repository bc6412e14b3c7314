package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Givehub Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	API           APIConfig           `yaml:"api"`
	Session       SessionConfig       `yaml:"session"`
	Redis         RedisConfig         `yaml:"redis"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Logging       LoggingConfig       `yaml:"logging"`
	Security      SecurityConfig      `yaml:"security"`
	PasswordReset PasswordResetConfig `yaml:"password_reset"`
	Bootstrap     BootstrapConfig     `yaml:"bootstrap"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// Credentials are always allowed because the web console relies on cookies.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// SessionConfig controls the web channel's server-side sessions.
type SessionConfig struct {
	// Driver selects the session store: "memory" or "redis".
	Driver string `yaml:"driver"`

	// CookieName is the name of the HttpOnly session cookie.
	CookieName string `yaml:"cookie_name"`

	// LifetimeMinutes is how long an idle session stays valid.
	LifetimeMinutes int `yaml:"lifetime_minutes"`

	// Secure marks session and XSRF cookies as HTTPS-only.
	Secure bool `yaml:"secure"`

	// Domain scopes the cookies; empty means the request host.
	Domain string `yaml:"domain"`
}

// RedisConfig contains Redis connection settings (used when session.driver is redis).
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig contains OpenTelemetry tracing settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC collector endpoint. Tracing is off when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	Password      PasswordConfig     `yaml:"password"`
	Tokens        TokenConfig        `yaml:"tokens"`
	ServiceTokens ServiceTokenConfig `yaml:"service_tokens"`
}

// PasswordConfig contains password policy and Argon2id cost parameters.
type PasswordConfig struct {
	MinLength int `yaml:"min_length"`

	// Argon2id cost. Zero values fall back to the built-in defaults.
	Time    uint32 `yaml:"argon_time"`
	Memory  uint32 `yaml:"argon_memory_kib"`
	Threads uint8  `yaml:"argon_threads"`
}

// TokenConfig contains mobile access token settings.
type TokenConfig struct {
	// TTLMinutes expires access tokens after the given lifetime. 0 disables expiry.
	TTLMinutes int `yaml:"ttl_minutes"`

	// PruneInterval is how often expired tokens are deleted (seconds).
	PruneInterval int `yaml:"prune_interval"`
}

// ServiceTokenConfig enables HS256 bearer tokens for internal services.
// These never have a database row and cannot be revoked by logout.
type ServiceTokenConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// PasswordResetConfig decides where password reset links point.
type PasswordResetConfig struct {
	// Mode is "web" (frontend URL) or "mobile" (app deep link).
	Mode           string `yaml:"mode"`
	WebURL         string `yaml:"web_url"`
	MobileDeepLink string `yaml:"mobile_deep_link"`
	ExpireMinutes  int    `yaml:"expire_minutes"`
}

// BootstrapConfig describes the first system administrator created on an empty database.
type BootstrapConfig struct {
	AdminEmail string `yaml:"admin_email"`
	AdminName  string `yaml:"admin_name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GIVEHUB_SECTION_KEY
// For example: GIVEHUB_DATABASE_PATH, GIVEHUB_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/givehub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Session: SessionConfig{
			Driver:          "memory",
			CookieName:      "givehub_session",
			LifetimeMinutes: 120,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "givehub:session:",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "givehub-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "givehub",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "givehub-core",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			Password: PasswordConfig{
				MinLength: 8,
			},
			Tokens: TokenConfig{
				PruneInterval: 3600,
			},
			ServiceTokens: ServiceTokenConfig{
				Issuer: "givehub",
			},
		},
		PasswordReset: PasswordResetConfig{
			Mode:          "web",
			WebURL:        "http://localhost:3000/reset-password",
			ExpireMinutes: 60,
		},
		Bootstrap: BootstrapConfig{
			AdminName: "System Administrator",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GIVEHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GIVEHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("GIVEHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GIVEHUB_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Sessions
	if v := os.Getenv("GIVEHUB_SESSION_DRIVER"); v != "" {
		cfg.Session.Driver = v
	}
	if v := os.Getenv("GIVEHUB_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GIVEHUB_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// MQTT
	if v := os.Getenv("GIVEHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GIVEHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GIVEHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GIVEHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Telemetry
	if v := os.Getenv("GIVEHUB_TELEMETRY_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}

	// Security
	if v := os.Getenv("GIVEHUB_SERVICE_TOKEN_SECRET"); v != "" {
		cfg.Security.ServiceTokens.Secret = v
	}

	// Password reset
	if v := os.Getenv("GIVEHUB_PASSWORD_RESET_MODE"); v != "" {
		cfg.PasswordReset.Mode = v
	}

	// Bootstrap
	if v := os.Getenv("GIVEHUB_BOOTSTRAP_ADMIN_EMAIL"); v != "" {
		cfg.Bootstrap.AdminEmail = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Session.Driver {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when session.driver is redis")
		}
	default:
		errs = append(errs, "session.driver must be memory or redis")
	}
	if c.Session.CookieName == "" {
		errs = append(errs, "session.cookie_name is required")
	}
	if c.Session.LifetimeMinutes < 1 {
		errs = append(errs, "session.lifetime_minutes must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	const minPasswordLength = 8
	if c.Security.Password.MinLength < minPasswordLength {
		errs = append(errs, "security.password.min_length must be at least 8")
	}
	if c.Security.Tokens.TTLMinutes < 0 {
		errs = append(errs, "security.tokens.ttl_minutes cannot be negative")
	}

	// Service tokens are optional, but a short secret makes them forgeable.
	const minServiceSecretLength = 32
	if s := c.Security.ServiceTokens.Secret; s != "" && len(s) < minServiceSecretLength {
		errs = append(errs, "security.service_tokens.secret must be at least 32 characters")
	}

	errs = append(errs, c.PasswordReset.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (p PasswordResetConfig) validate() []string {
	var errs []string

	var base string
	switch p.Mode {
	case "web":
		base = p.WebURL
	case "mobile":
		base = p.MobileDeepLink
	default:
		return []string{"password_reset.mode must be web or mobile"}
	}

	if base == "" {
		errs = append(errs, fmt.Sprintf("password_reset link for mode %q is required", p.Mode))
	} else if u, err := url.Parse(base); err != nil || u.Scheme == "" {
		errs = append(errs, fmt.Sprintf("password_reset link for mode %q must be an absolute URL", p.Mode))
	}

	if p.ExpireMinutes < 1 {
		errs = append(errs, "password_reset.expire_minutes must be positive")
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// SessionLifetime returns the session idle lifetime as a Duration.
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.Session.LifetimeMinutes) * time.Minute
}

// TokenTTL returns the access token lifetime, or 0 when tokens never expire.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.Tokens.TTLMinutes) * time.Minute
}

// ResetLinkTTL returns how long a password reset link stays valid.
func (p PasswordResetConfig) ResetLinkTTL() time.Duration {
	return time.Duration(p.ExpireMinutes) * time.Minute
}
