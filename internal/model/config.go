// Package model defines shared configuration structures used to initialize AirNode.
// It includes logging, sampler, hardware, storage and forwarding settings.
package model

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/airnode.yml.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Sampler     SamplerConfig     `yaml:"sampler"`
	Air         AirConfig         `yaml:"air"`
	Temperature TemperatureConfig `yaml:"temperature"`
	Radio       RadioConfig       `yaml:"radio"`
	Storage     StorageConfig     `yaml:"storage"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http"`
	Console     bool              `yaml:"console"`
	Collector   CollectorConfig   `yaml:"collector"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level"` // logrus level name
	File  string `yaml:"file"`  // optional, teed with stdout
}

// SamplerConfig holds the cadence and recovery timings of the sampling loop.
type SamplerConfig struct {
	Interval       time.Duration `yaml:"interval"`
	FrameTimeout   time.Duration `yaml:"frame_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	RecoveryDelay  time.Duration `yaml:"recovery_delay"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// AirConfig describes the UART air-quality module.
type AirConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
	AddrHigh uint8  `yaml:"addr_high"`
	AddrLow  uint8  `yaml:"addr_low"`
}

// TemperatureConfig describes the one-wire probe.
type TemperatureConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseDir  string `yaml:"base_dir"`  // w1 sysfs devices directory
	SensorID string `yaml:"sensor_id"` // empty = first 28-* sensor found
}

// RadioConfig describes the LoRa forwarding link and its mode pins.
type RadioConfig struct {
	Enabled bool          `yaml:"enabled"`
	Device  string        `yaml:"device"`
	Baud    int           `yaml:"baud"`
	M0Pin   string        `yaml:"m0_pin"` // empty disables pin control
	M1Pin   string        `yaml:"m1_pin"`
	Format  string        `yaml:"format"` // json/csv
	LoRaWAN LoRaWANConfig `yaml:"lorawan"`
}

// LoRaWANConfig enables ABP-style uplink framing of forwarded records.
type LoRaWANConfig struct {
	Enabled bool   `yaml:"enabled"`
	DevAddr string `yaml:"dev_addr"` // 8 hex chars
	NwkSKey string `yaml:"nwk_s_key"`
	AppSKey string `yaml:"app_s_key"`
	FPort   uint8  `yaml:"fport"`
}

// StorageConfig selects the database sinks. Empty paths disable a store.
type StorageConfig struct {
	BoltPath   string `yaml:"bolt_path"`
	SQLitePath string `yaml:"sqlite_path"`
	Table      string `yaml:"table"`
}

// MQTTConfig configures the optional MQTT publish sink.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// HTTPConfig configures the read-only API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

// CollectorConfig configures the receiving side of the radio link.
type CollectorConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	Format      string        `yaml:"format"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultConfig returns the settings used for every key missing from the file.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Sampler: SamplerConfig{
			Interval:       time.Hour,
			FrameTimeout:   2 * time.Second,
			ProbeTimeout:   5 * time.Second,
			RecoveryDelay:  5 * time.Second,
			ReconnectDelay: 5 * time.Second,
		},
		Air: AirConfig{
			Enabled:  true,
			Device:   "/dev/serial0",
			Baud:     9600,
			AddrHigh: 0x2C,
			AddrLow:  0xE4,
		},
		Temperature: TemperatureConfig{
			Enabled: true,
			BaseDir: "/sys/bus/w1/devices",
		},
		Radio: RadioConfig{
			Device:  "/dev/ttyAMA0",
			Baud:    9600,
			Format:  "json",
			LoRaWAN: LoRaWANConfig{FPort: 10},
		},
		Storage: StorageConfig{Table: "tempanvoc"},
		MQTT: MQTTConfig{
			ClientID: "airnode",
			Topic:    "airnode/readings",
		},
		Console: true,
		Collector: CollectorConfig{
			Device:      "/dev/ttyUSB0",
			Baud:        9600,
			Format:      "json",
			ReadTimeout: 2 * time.Second,
		},
	}
}

// LoadConfig reads the YAML file at path on top of DefaultConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML bytes on top of DefaultConfig and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Sampler.Interval <= 0 {
		return errors.New("sampler.interval must be positive")
	}
	if c.Sampler.FrameTimeout <= 0 {
		return errors.New("sampler.frame_timeout must be positive")
	}
	if c.Air.Enabled && c.Air.Device == "" {
		return errors.New("air.device is required when air.enabled")
	}
	if c.Air.Baud <= 0 || c.Radio.Baud <= 0 || c.Collector.Baud <= 0 {
		return errors.New("baud rates must be positive")
	}
	if c.Radio.Enabled && c.Radio.Device == "" {
		return errors.New("radio.device is required when radio.enabled")
	}
	if (c.Radio.M0Pin == "") != (c.Radio.M1Pin == "") {
		return errors.New("radio.m0_pin and radio.m1_pin must be set together")
	}
	switch c.Radio.Format {
	case "json", "csv":
	default:
		return errors.Errorf("unknown radio.format %q", c.Radio.Format)
	}
	if c.Collector.ReadTimeout <= 0 {
		return errors.New("collector.read_timeout must be positive")
	}
	switch c.Collector.Format {
	case "json", "csv":
	default:
		return errors.Errorf("unknown collector.format %q", c.Collector.Format)
	}
	if c.Storage.SQLitePath != "" && c.Storage.Table == "" {
		return errors.New("storage.table is required with storage.sqlite_path")
	}
	return nil
}
