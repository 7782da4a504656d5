package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBackendURL is the fixed fallback base URL of the forge backend.
const DefaultBackendURL = "http://127.0.0.1:8765"

// Config is the root configuration structure for Sidekick.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	API       APIConfig       `yaml:"api"`
	Journal   JournalConfig   `yaml:"journal"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BackendConfig describes the forge backend this instance supervises.
type BackendConfig struct {
	// URL is the HTTP base URL of the backend.
	// Overridden by SIDEKICK_FORGE_URL, then FORGE_URL.
	URL string `yaml:"url"`

	// Python is the runtime executable used to spawn the backend.
	// Overridden by SIDEKICK_PYTHON, then FORGE_PYTHON.
	// Empty means the platform default (python3 on unix, python on windows).
	Python string `yaml:"python"`

	// Module is the module entry point invoked as `<python> -m <module>`.
	Module string `yaml:"module"`

	// GracefulTimeout is how long to wait for graceful shutdown
	// before force-killing the backend (seconds).
	GracefulTimeout int `yaml:"graceful_timeout"`

	// ProbeTimeout is the health probe request timeout (seconds).
	ProbeTimeout int `yaml:"probe_timeout"`
}

// WorkspaceConfig controls working-directory resolution for the spawned backend.
type WorkspaceConfig struct {
	// Root pins the backend's working directory. Empty means resolve it by
	// walking up from the current directory looking for a project marker
	// (.git, go.mod, pyproject.toml), falling back to the current directory.
	Root string `yaml:"root"`
}

// APIConfig contains the local status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// JournalConfig contains the SQLite event journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains the optional MQTT event relay settings.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// TelemetryConfig contains the optional InfluxDB telemetry settings.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the configuration from the given YAML file, applies environment
// variable overrides, and validates the result.
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

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file exists, since Sidekick is expected to
// work with zero configuration.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:             DefaultBackendURL,
			Module:          "forge_server",
			GracefulTimeout: 2,
			ProbeTimeout:    2,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    7171,
		},
		Journal: JournalConfig{
			Enabled:     true,
			Path:        "./data/sidekick.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "sidekick",
			QoS:      1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The shim-specific SIDEKICK_* variables take precedence over the general
// FORGE_* variables shared with other forge tooling.
func applyEnvOverrides(cfg *Config) {
	// Backend base URL: SIDEKICK_FORGE_URL > FORGE_URL > yaml > default
	if v := os.Getenv("SIDEKICK_FORGE_URL"); v != "" {
		cfg.Backend.URL = v
	} else if v := os.Getenv("FORGE_URL"); v != "" {
		cfg.Backend.URL = v
	}

	// Runtime executable: SIDEKICK_PYTHON > FORGE_PYTHON > yaml > platform default
	if v := os.Getenv("SIDEKICK_PYTHON"); v != "" {
		cfg.Backend.Python = v
	} else if v := os.Getenv("FORGE_PYTHON"); v != "" {
		cfg.Backend.Python = v
	}

	if v := os.Getenv("SIDEKICK_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("SIDEKICK_INFLUXDB_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
	if v := os.Getenv("SIDEKICK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("SIDEKICK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Backend.URL == "" {
		errs = append(errs, "backend.url is required")
	} else if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		errs = append(errs, "backend.url must be an http or https URL")
	}

	if c.Backend.Module == "" {
		errs = append(errs, "backend.module is required")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Host == "" {
			errs = append(errs, "mqtt.host is required when the relay is enabled")
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.URL == "" {
		errs = append(errs, "telemetry.url is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PythonExecutable returns the runtime executable used to spawn the backend,
// falling back to the platform default when unset.
func (c *BackendConfig) PythonExecutable() string {
	if c.Python != "" {
		return c.Python
	}
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// GetGracefulTimeout returns the backend stop grace period as a Duration.
func (c *BackendConfig) GetGracefulTimeout() time.Duration {
	return time.Duration(c.GracefulTimeout) * time.Second
}

// GetProbeTimeout returns the health probe timeout as a Duration.
func (c *BackendConfig) GetProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}
