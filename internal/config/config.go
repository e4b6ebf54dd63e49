// Package config loads and validates reconengine configuration from YAML
// files and RECONENGINE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cyberdash/reconengine/internal/db"
	"github.com/cyberdash/reconengine/internal/errors"
	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/recon"
	"github.com/cyberdash/reconengine/internal/schedule"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. RECONENGINE_ENGINE_BATCH_SIZE.
const EnvPrefix = "RECONENGINE"

const (
	defaultAPIPort            = 8080
	defaultMaxRequestSize     = 64 * 1024
	defaultMaxConcurrentScans = 8
)

// Config represents the complete service configuration.
type Config struct {
	Engine   recon.Config         `yaml:"engine" json:"engine" mapstructure:"engine"`
	Resolver recon.ResolverConfig `yaml:"resolver" json:"resolver" mapstructure:"resolver"`
	API      APIConfig            `yaml:"api" json:"api" mapstructure:"api"`
	Database DatabaseConfig       `yaml:"database" json:"database" mapstructure:"database"`
	Logging  logging.Config       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig        `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Schedules are recurring full scans run by the server.
	Schedules []schedule.Job `yaml:"schedules,omitempty" json:"schedules,omitempty" mapstructure:"schedules" validate:"dive"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	// Listen address
	Host string `yaml:"host" json:"host" mapstructure:"host" validate:"required"`
	Port int    `yaml:"port" json:"port" mapstructure:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gt=0"`

	// ScanTimeout is the deadline attached to every scan request.
	ScanTimeout time.Duration `yaml:"scan_timeout" json:"scan_timeout" mapstructure:"scan_timeout" validate:"gt=0"`

	// MaxConcurrentScans bounds the scans the server runs at once.
	MaxConcurrentScans int `yaml:"max_concurrent_scans" json:"max_concurrent_scans" mapstructure:"max_concurrent_scans" validate:"min=1"`

	// Maximum request body size in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size" mapstructure:"max_request_size" validate:"gt=0"`

	// DocsEnabled serves the Swagger UI under /swagger/.
	DocsEnabled bool `yaml:"docs_enabled" json:"docs_enabled" mapstructure:"docs_enabled"`

	CORS CORSConfig `yaml:"cors" json:"cors" mapstructure:"cors"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers" mapstructure:"allowed_headers"`
}

// DatabaseConfig enables the report history and holds connection settings.
type DatabaseConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	db.Config `yaml:",inline" mapstructure:",squash"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" json:"path" mapstructure:"path" validate:"omitempty,startswith=/"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Engine:   recon.DefaultConfig(),
		Resolver: recon.ResolverConfig{Backend: recon.BackendSystem, Net: "udp"},
		API: APIConfig{
			Host:               "127.0.0.1",
			Port:               defaultAPIPort,
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       60 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			ScanTimeout:        30 * time.Second,
			MaxConcurrentScans: defaultMaxConcurrentScans,
			MaxRequestSize:     defaultMaxRequestSize,
			DocsEnabled:        true,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			},
		},
		Database: DatabaseConfig{
			Enabled: false,
			Config:  db.DefaultConfig(),
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from a YAML (or JSON) file on top of the
// defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, cfg.Validate()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder covers both extensions.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config file %s", filepath.Base(path)), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults registers every config key with v so that AutomaticEnv can
// override nested keys.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("engine.batch_size", d.Engine.BatchSize)
	v.SetDefault("engine.probe_timeout", d.Engine.ProbeTimeout)
	v.SetDefault("engine.quick_probe_timeout", d.Engine.QuickProbeTimeout)
	v.SetDefault("engine.max_ports", d.Engine.MaxPorts)
	v.SetDefault("engine.quick_ports", d.Engine.QuickPorts)
	v.SetDefault("engine.resolve_timeout", d.Engine.ResolveTimeout)

	v.SetDefault("resolver.backend", d.Resolver.Backend)
	v.SetDefault("resolver.nameserver", d.Resolver.Nameserver)
	v.SetDefault("resolver.net", d.Resolver.Net)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.read_timeout", d.API.ReadTimeout)
	v.SetDefault("api.write_timeout", d.API.WriteTimeout)
	v.SetDefault("api.idle_timeout", d.API.IdleTimeout)
	v.SetDefault("api.shutdown_timeout", d.API.ShutdownTimeout)
	v.SetDefault("api.scan_timeout", d.API.ScanTimeout)
	v.SetDefault("api.max_concurrent_scans", d.API.MaxConcurrentScans)
	v.SetDefault("api.max_request_size", d.API.MaxRequestSize)
	v.SetDefault("api.docs_enabled", d.API.DocsEnabled)
	v.SetDefault("api.cors.enabled", d.API.CORS.Enabled)
	v.SetDefault("api.cors.allowed_origins", d.API.CORS.AllowedOrigins)
	v.SetDefault("api.cors.allowed_methods", d.API.CORS.AllowedMethods)
	v.SetDefault("api.cors.allowed_headers", d.API.CORS.AllowedHeaders)

	v.SetDefault("database.enabled", d.Database.Enabled)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.database", d.Database.Database)
	v.SetDefault("database.username", d.Database.Username)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.ssl_mode", d.Database.SSLMode)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", d.Database.ConnMaxIdleTime)

	v.SetDefault("logging.level", string(d.Logging.Level))
	v.SetDefault("logging.format", string(d.Logging.Format))
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.add_source", d.Logging.AddSource)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// BindEnv makes v read RECONENGINE_SECTION_KEY variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes the merged viper state (defaults, config file,
// environment and bound flags) into a validated Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to decode configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return errors.WrapConfigError(errors.CodeValidation, "invalid engine configuration", err)
	}

	if c.API.ScanTimeout >= c.API.WriteTimeout {
		return errors.ErrConfigInvalid("api.scan_timeout", c.API.ScanTimeout)
	}

	seen := make(map[string]bool, len(c.Schedules))
	for _, job := range c.Schedules {
		if seen[job.Name] {
			return errors.ErrConfigInvalid("schedules.name", job.Name)
		}
		seen[job.Name] = true
		if err := job.Validate(); err != nil {
			return errors.WrapConfigError(errors.CodeValidation, "invalid schedule", err)
		}
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return errors.ErrConfigInvalid("database.host", c.Database.Host)
		}
		if c.Database.Database == "" {
			return errors.ErrConfigInvalid("database.database", c.Database.Database)
		}
		if c.Database.Username == "" {
			return errors.ErrConfigInvalid("database.username", c.Database.Username)
		}
	}

	return nil
}

// APIAddress returns the host:port the HTTP server listens on.
func (c *Config) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
