// Package config loads the receiver configuration from a YAML file.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Dialect holds the per-dialect tuning knobs. Keys in the Dialects map are
// "tk10x", "gprmc", "lantrix", "astra" or "default".
type Dialect struct {
	// MinimumSpeedKPH is the floor below which a fix is treated as stopped.
	MinimumSpeedKPH float64 `yaml:"minimumSpeedKPH"`

	// MinimumMovedMeters gates persisting consecutive plain location events.
	MinimumMovedMeters float64 `yaml:"minimumMovedMeters"`

	// EstimateOdometer enables odometer accumulation from fix distances.
	EstimateOdometer bool `yaml:"estimateOdometer"`

	// MaximumOdometerKM caps a device-reported odometer value.
	MaximumOdometerKM float64 `yaml:"maximumOdometerKM"`

	// SimulateGeozones enables arrive/depart synthesis from zone lookups.
	SimulateGeozones bool `yaml:"simulateGeozones"`

	// DigitalInputMask selects the input bits that produce on/off events.
	// Zero disables input edge synthesis.
	DigitalInputMask int64 `yaml:"digitalInputMask"`

	// UseLastValidGPS substitutes the last valid location for an invalid fix.
	UseLastValidGPS bool `yaml:"useLastValidGPS"`

	// StatusLocationInMotion promotes a moving plain-location fix to
	// an in-motion event.
	StatusLocationInMotion bool `yaml:"statusLocationInMotion"`

	// MaximumHDOP rejects fixes above this dilution. Zero means no limit.
	MaximumHDOP float64 `yaml:"maximumHDOP"`

	// EndOfStreamFraming frames line-oriented packets at connection close
	// instead of at the line terminator, for modems that never send one.
	EndOfStreamFraming bool `yaml:"endOfStreamFraming"`
}

// Geozone is a circular zone checked when SimulateGeozones is on.
type Geozone struct {
	ID        string  `yaml:"id"`
	AccountID string  `yaml:"accountId"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	RadiusM   float64 `yaml:"radiusM"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

type Store struct {
	// Kind is "jsonlines" or "grpc".
	Kind string `yaml:"kind"`

	// Dir receives the JSON-lines event log (jsonlines kind).
	Dir string `yaml:"dir"`

	// Target is the backend gRPC address (grpc kind).
	Target string `yaml:"target"`
}

type Redis struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type Devices struct {
	// AutoRegister admits unknown modem IDs instead of rejecting them.
	AutoRegister bool `yaml:"autoRegister"`

	// AccountID is the account auto-registered devices land in.
	AccountID string `yaml:"accountId"`

	// Known maps modem IDs to device IDs for the in-process resolver.
	Known map[string]string `yaml:"known"`

	// AllowedIPs maps a modem ID to the source addresses it may report
	// from. Devices without an entry may report from anywhere.
	AllowedIPs map[string][]string `yaml:"allowedIps"`
}

type Config struct {
	ListenAddr     string `yaml:"listenAddr"`
	UDPAddr        string `yaml:"udpAddr"`
	WebSocketAddr  string `yaml:"webSocketAddr"`
	MetricsAddr    string `yaml:"metricsAddr"`
	IdleTimeoutSec int    `yaml:"idleTimeoutSec"`

	Log      Log                `yaml:"log"`
	Store    Store              `yaml:"store"`
	Redis    Redis              `yaml:"redis"`
	Devices  Devices            `yaml:"devices"`
	Dialects map[string]Dialect `yaml:"dialects"`
	Geozones []Geozone          `yaml:"geozones"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8500",
		MetricsAddr:    ":9100",
		IdleTimeoutSec: 600,
		Log:            Log{Level: "info", MaxSizeMB: 100, MaxBackups: 5},
		Store:          Store{Kind: "jsonlines", Dir: "./data"},
		Devices:        Devices{AutoRegister: true, AccountID: "fleet"},
		Dialects: map[string]Dialect{
			"default": {
				MinimumSpeedKPH:    3.0,
				MinimumMovedMeters: 50.0,
				EstimateOdometer:   true,
				UseLastValidGPS:    true,
			},
		},
	}
}

// Load reads and validates a YAML config file. Missing dialect sections fall
// back to "default".
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("listenAddr must be set")
	}
	if _, ok := cfg.Dialects["default"]; !ok {
		if cfg.Dialects == nil {
			cfg.Dialects = make(map[string]Dialect)
		}
		cfg.Dialects["default"] = Default().Dialects["default"]
	}
	return cfg, nil
}

// DialectConfig returns the section for key, falling back to "default".
func (c *Config) DialectConfig(key string) Dialect {
	if d, ok := c.Dialects[key]; ok {
		return d
	}
	return c.Dialects["default"]
}
