package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration, loaded from a single YAML
// file at startup (spec.md's config surface has no live-reload requirement,
// so this is read once in cmd/acquire).
type Config struct {
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Redis       RedisConfig       `yaml:"redis"`
	Log         LogConfig         `yaml:"log"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

// AcquisitionConfig drives driver selection and the default scan/session
// parameters (spec.md §4.2/§6).
type AcquisitionConfig struct {
	// Driver is one of the registered driver names: "ols", "dslogic", "rs9lcd".
	Driver string `yaml:"driver"`
	// Connection is the serial device path the ols and rs9lcd drivers scan;
	// the dslogic driver ignores it and probes its own VID:PID table.
	Connection string `yaml:"connection"`
	// SerialComm overrides the default "<baud>/<databits><parity><stopbits>"
	// string; empty uses the driver's own default.
	SerialComm string `yaml:"serial_comm"`
	// Samplerate, in Hz, applied via ConfigSet(ConfigSamplerate) once the
	// device is open.
	Samplerate uint64 `yaml:"samplerate_hz"`
	// LimitSamples is the requested capture length.
	LimitSamples uint64 `yaml:"limit_samples"`
	// CaptureRatio is the pre/post-trigger split, 0-100.
	CaptureRatio uint64 `yaml:"capture_ratio"`
	// RLE enables run-length encoding on drivers that support it.
	RLE bool `yaml:"rle"`
	// ScanTimeout bounds how long Scan is allowed to probe for hardware.
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

// RedisConfig configures the datafeed sink that republishes packets over
// Redis pub/sub, with a list-backed backup for replay (spec.md §7 sink
// Non-goal on persistence is scoped to the core; the sink is an ambient
// concern carried from the teacher).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
	// BackupList, if non-empty, also LPUSHes every packet onto the
	// per-device list "<backup_list>:<device id>", trimmed to the newest 1000.
	BackupList string `yaml:"backup_list"`
}

// LogConfig configures the shared logrus logger.
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// MonitorConfig configures the Prometheus metrics HTTP endpoint.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given, or as
// the base that LoadConfig unmarshals on top of.
func DefaultConfig() *Config {
	return &Config{
		Acquisition: AcquisitionConfig{
			Driver:       "ols",
			SerialComm:   "115200/8n1",
			Samplerate:   1000000,
			LimitSamples: 1000,
			CaptureRatio: 0,
			RLE:          false,
			ScanTimeout:  2 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			Channel:  "acquire.datafeed",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     true,
			MetricsPort: 9090,
		},
	}
}
