package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Azimuth device core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Hub       HubConfig       `yaml:"hub"`
	TLS       TLSConfig       `yaml:"tls"`
	NTP       NTPConfig       `yaml:"ntp"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Spool     SpoolConfig     `yaml:"spool"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains device-level identity settings.
type DeviceConfig struct {
	// Name is a human-readable label for logs; the wire identity comes
	// from the hub connection string.
	Name string `yaml:"name"`
}

// HubConfig contains Azure IoT Hub connection settings.
type HubConfig struct {
	// ConnectionString is the device connection string
	// (HostName=...;DeviceId=...;SharedAccessKey=...). Prefer setting it
	// through AZIMUTH_HUB_CONNECTION_STRING over committing it to YAML.
	ConnectionString string `yaml:"connection_string"`

	APIVersion string `yaml:"api_version"`
	Port       int    `yaml:"port"`

	ConnectAttempts   int `yaml:"connect_attempts"`
	ConnectRetryDelay int `yaml:"connect_retry_delay"` // seconds

	TokenTTL      int `yaml:"token_ttl"`      // seconds
	RenewalMargin int `yaml:"renewal_margin"` // seconds
	KeepAlive     int `yaml:"keep_alive"`     // seconds

	// ReconnectInLoop lets the protocol service tick run its bounded
	// reconnect sequence inline when it detects a dropped connection.
	// Disable it when tick latency must stay bounded; the agent then
	// reconnects on its own schedule.
	ReconnectInLoop bool `yaml:"reconnect_in_loop"`
}

// TLSConfig contains TLS trust settings for the hub connection.
type TLSConfig struct {
	// CAFile is an optional PEM bundle to validate the hub certificate
	// against. Empty uses the system roots.
	CAFile string `yaml:"ca_file"`

	// AllowInsecureFallback permits an unvalidated TLS connection when
	// certificate validation fails. Field-diagnostics escape hatch;
	// keep false in production.
	AllowInsecureFallback bool `yaml:"allow_insecure_fallback"`
}

// NTPConfig contains time-source settings for SAS token expiry.
type NTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Server  string `yaml:"server"`
	Timeout int    `yaml:"timeout"` // seconds
}

// TelemetryConfig contains the publish cadence settings.
type TelemetryConfig struct {
	Interval int `yaml:"interval"`  // seconds between telemetry publishes
	LoopTick int `yaml:"loop_tick"` // milliseconds between protocol service ticks
}

// SpoolConfig contains the offline telemetry spool settings.
type SpoolConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
	DrainBatch int    `yaml:"drain_batch"`
}

// InfluxDBConfig contains the optional local telemetry mirror settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // milliseconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AZIMUTH_SECTION_KEY
// For example: AZIMUTH_HUB_CONNECTION_STRING, AZIMUTH_LOGGING_LEVEL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Device: DeviceConfig{
			Name: "azimuth-device",
		},
		Hub: HubConfig{
			APIVersion:        "2021-04-12",
			Port:              8883,
			ConnectAttempts:   5,
			ConnectRetryDelay: 3,
			TokenTTL:          3600,
			RenewalMargin:     300,
			KeepAlive:         60,
			ReconnectInLoop:   true,
		},
		NTP: NTPConfig{
			Enabled: true,
			Server:  "pool.ntp.org",
			Timeout: 5,
		},
		Telemetry: TelemetryConfig{
			Interval: 10,
			LoopTick: 100,
		},
		Spool: SpoolConfig{
			Enabled:    true,
			Path:       "./data/spool.db",
			MaxEntries: 10000,
			DrainBatch: 25,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     50,
			FlushInterval: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AZIMUTH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub - the connection string carries the device key, so the
	// environment is the preferred channel for it.
	if v := os.Getenv("AZIMUTH_HUB_CONNECTION_STRING"); v != "" {
		cfg.Hub.ConnectionString = v
	}
	if v := os.Getenv("AZIMUTH_HUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Hub.Port = port
		}
	}

	// TLS
	if v := os.Getenv("AZIMUTH_TLS_CA_FILE"); v != "" {
		cfg.TLS.CAFile = v
	}

	// NTP
	if v := os.Getenv("AZIMUTH_NTP_SERVER"); v != "" {
		cfg.NTP.Server = v
	}

	// Spool
	if v := os.Getenv("AZIMUTH_SPOOL_PATH"); v != "" {
		cfg.Spool.Path = v
	}

	// InfluxDB
	if v := os.Getenv("AZIMUTH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("AZIMUTH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hub validation - the connection string is the one required value.
	if c.Hub.ConnectionString == "" {
		errs = append(errs, "hub.connection_string is required (set AZIMUTH_HUB_CONNECTION_STRING environment variable)")
	}
	if c.Hub.Port < 1 || c.Hub.Port > 65535 {
		errs = append(errs, "hub.port must be between 1 and 65535")
	}
	if c.Hub.ConnectAttempts < 1 {
		errs = append(errs, "hub.connect_attempts must be at least 1")
	}
	if c.Hub.TokenTTL < 60 {
		errs = append(errs, "hub.token_ttl must be at least 60 seconds")
	}
	if c.Hub.RenewalMargin >= c.Hub.TokenTTL {
		errs = append(errs, "hub.renewal_margin must be less than hub.token_ttl")
	}

	// NTP validation
	if c.NTP.Enabled && c.NTP.Server == "" {
		errs = append(errs, "ntp.server is required when ntp.enabled is true")
	}

	// Telemetry validation
	if c.Telemetry.Interval < 1 {
		errs = append(errs, "telemetry.interval must be at least 1 second")
	}
	if c.Telemetry.LoopTick < 10 {
		errs = append(errs, "telemetry.loop_tick must be at least 10 milliseconds")
	}

	// Spool validation
	if c.Spool.Enabled {
		if c.Spool.Path == "" {
			errs = append(errs, "spool.path is required when spool.enabled is true")
		}
		if c.Spool.DrainBatch < 1 {
			errs = append(errs, "spool.drain_batch must be at least 1")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled is true")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb.enabled is true (set AZIMUTH_INFLUXDB_TOKEN environment variable)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConnectRetryDelay returns the inter-attempt connect delay as a Duration.
func (c *Config) ConnectRetryDelay() time.Duration {
	return time.Duration(c.Hub.ConnectRetryDelay) * time.Second
}

// TokenTTL returns the SAS token lifetime as a Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Hub.TokenTTL) * time.Second
}

// RenewalMargin returns the token renewal margin as a Duration.
func (c *Config) RenewalMargin() time.Duration {
	return time.Duration(c.Hub.RenewalMargin) * time.Second
}

// KeepAlive returns the MQTT keepalive interval as a Duration.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.Hub.KeepAlive) * time.Second
}

// NTPTimeout returns the NTP query timeout as a Duration.
func (c *Config) NTPTimeout() time.Duration {
	return time.Duration(c.NTP.Timeout) * time.Second
}

// TelemetryInterval returns the telemetry publish cadence as a Duration.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}

// LoopTick returns the protocol service tick as a Duration.
func (c *Config) LoopTick() time.Duration {
	return time.Duration(c.Telemetry.LoopTick) * time.Millisecond
}
