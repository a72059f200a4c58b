package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testConnectionString = "HostName=hub.example.net;DeviceId=dev1;SharedAccessKey=AAAAAAAAAAAAAAAAAAAAAA=="

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  name: "bench-rig-3"
hub:
  connection_string: "` + testConnectionString + `"
  port: 8883
telemetry:
  interval: 30
spool:
  enabled: true
  path: "/tmp/spool.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Name != "bench-rig-3" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "bench-rig-3")
	}

	if cfg.Hub.ConnectionString != testConnectionString {
		t.Errorf("Hub.ConnectionString = %q", cfg.Hub.ConnectionString)
	}

	if cfg.Telemetry.Interval != 30 {
		t.Errorf("Telemetry.Interval = %d, want 30", cfg.Telemetry.Interval)
	}

	// Unset sections keep their defaults.
	if cfg.Hub.APIVersion != "2021-04-12" {
		t.Errorf("Hub.APIVersion = %q, want default", cfg.Hub.APIVersion)
	}
	if cfg.Hub.ConnectAttempts != 5 {
		t.Errorf("Hub.ConnectAttempts = %d, want 5", cfg.Hub.ConnectAttempts)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	// No connection string anywhere: validation must fail.
	content := `
device:
  name: "bench-rig-3"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for missing connection string, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Hub.ConnectionString = testConnectionString
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing connection string",
			mutate:  func(c *Config) { c.Hub.ConnectionString = "" },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.Hub.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.Hub.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero connect attempts",
			mutate:  func(c *Config) { c.Hub.ConnectAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "token ttl too short",
			mutate:  func(c *Config) { c.Hub.TokenTTL = 30 },
			wantErr: true,
		},
		{
			name: "renewal margin exceeds ttl",
			mutate: func(c *Config) {
				c.Hub.TokenTTL = 300
				c.Hub.RenewalMargin = 300
			},
			wantErr: true,
		},
		{
			name: "ntp enabled without server",
			mutate: func(c *Config) {
				c.NTP.Enabled = true
				c.NTP.Server = ""
			},
			wantErr: true,
		},
		{
			name:    "zero telemetry interval",
			mutate:  func(c *Config) { c.Telemetry.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "loop tick too fast",
			mutate:  func(c *Config) { c.Telemetry.LoopTick = 1 },
			wantErr: true,
		},
		{
			name: "spool enabled without path",
			mutate: func(c *Config) {
				c.Spool.Enabled = true
				c.Spool.Path = ""
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
				c.InfluxDB.Token = "t"
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Token = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Hub: HubConfig{
			ConnectRetryDelay: 3,
			TokenTTL:          3600,
			RenewalMargin:     300,
			KeepAlive:         60,
		},
		NTP:       NTPConfig{Timeout: 5},
		Telemetry: TelemetryConfig{Interval: 10, LoopTick: 100},
	}

	if got := cfg.ConnectRetryDelay().Seconds(); got != 3 {
		t.Errorf("ConnectRetryDelay() = %v, want 3s", got)
	}
	if got := cfg.TokenTTL().Seconds(); got != 3600 {
		t.Errorf("TokenTTL() = %v, want 3600s", got)
	}
	if got := cfg.RenewalMargin().Seconds(); got != 300 {
		t.Errorf("RenewalMargin() = %v, want 300s", got)
	}
	if got := cfg.KeepAlive().Seconds(); got != 60 {
		t.Errorf("KeepAlive() = %v, want 60s", got)
	}
	if got := cfg.NTPTimeout().Seconds(); got != 5 {
		t.Errorf("NTPTimeout() = %v, want 5s", got)
	}
	if got := cfg.TelemetryInterval().Seconds(); got != 10 {
		t.Errorf("TelemetryInterval() = %v, want 10s", got)
	}
	if got := cfg.LoopTick().Milliseconds(); got != 100 {
		t.Errorf("LoopTick() = %v, want 100ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("AZIMUTH_HUB_CONNECTION_STRING", testConnectionString)
	t.Setenv("AZIMUTH_HUB_PORT", "18883")
	t.Setenv("AZIMUTH_TLS_CA_FILE", "/etc/azimuth/ca.pem")
	t.Setenv("AZIMUTH_NTP_SERVER", "ntp.example.net")
	t.Setenv("AZIMUTH_SPOOL_PATH", "/custom/spool.db")
	t.Setenv("AZIMUTH_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("AZIMUTH_LOGGING_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Hub.ConnectionString != testConnectionString {
		t.Errorf("Hub.ConnectionString = %q", cfg.Hub.ConnectionString)
	}
	if cfg.Hub.Port != 18883 {
		t.Errorf("Hub.Port = %d, want 18883", cfg.Hub.Port)
	}
	if cfg.TLS.CAFile != "/etc/azimuth/ca.pem" {
		t.Errorf("TLS.CAFile = %q", cfg.TLS.CAFile)
	}
	if cfg.NTP.Server != "ntp.example.net" {
		t.Errorf("NTP.Server = %q", cfg.NTP.Server)
	}
	if cfg.Spool.Path != "/custom/spool.db" {
		t.Errorf("Spool.Path = %q", cfg.Spool.Path)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("AZIMUTH_HUB_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.Hub.Port != 8883 {
		t.Errorf("Hub.Port = %d, want default 8883 for unparseable override", cfg.Hub.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Hub.APIVersion != "2021-04-12" {
		t.Errorf("defaultConfig Hub.APIVersion = %q, want 2021-04-12", cfg.Hub.APIVersion)
	}
	if cfg.Hub.Port != 8883 {
		t.Errorf("defaultConfig Hub.Port = %d, want 8883", cfg.Hub.Port)
	}
	if cfg.Hub.ConnectAttempts != 5 {
		t.Errorf("defaultConfig Hub.ConnectAttempts = %d, want 5", cfg.Hub.ConnectAttempts)
	}
	if cfg.Hub.ConnectRetryDelay != 3 {
		t.Errorf("defaultConfig Hub.ConnectRetryDelay = %d, want 3", cfg.Hub.ConnectRetryDelay)
	}
	if !cfg.Hub.ReconnectInLoop {
		t.Error("defaultConfig should enable inline reconnect")
	}
	if !cfg.Spool.Enabled {
		t.Error("defaultConfig should enable the spool")
	}
	if cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave InfluxDB disabled")
	}
}
