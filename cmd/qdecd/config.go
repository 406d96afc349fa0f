package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"qdecd/gpio"
	"qdecd/qdec"
)

// Config is the top-level YAML configuration for the qdecd daemon.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config.
type Config struct {
	// Encoders lists every physical encoder the daemon decodes.
	Encoders []EncoderConfig `yaml:"encoders"`

	// Report controls how often accumulated rotation is read and published.
	Report ReportConfig `yaml:"report"`

	// IPC configuration (qdec-ctl and scripts)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP API and state WebSocket
	HTTP HTTPConfig `yaml:"http"`

	// InfluxDB export of readings
	Influx InfluxConfig `yaml:"influx"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type EncoderConfig struct {
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"`        // cdev, sysfs, periph, sim
	Chip    string `yaml:"chip,omitempty"` // cdev only

	// Line offsets (cdev, sysfs) or pin names (periph). Ignored by sim.
	A string `yaml:"a"`
	B string `yaml:"b"`

	PullUp     bool `yaml:"pull_up"`
	ActiveLow  bool `yaml:"active_low"`
	DebounceUS int  `yaml:"debounce_us,omitempty"`

	// StepsPerRotation > 0 selects degrees mode. 0 selects ticks mode with
	// Resolution pulses per tick.
	StepsPerRotation int `yaml:"steps_per_rotation"`
	Resolution       int `yaml:"resolution,omitempty"`

	IdleMS int `yaml:"idle_ms"`
	PollMS int `yaml:"poll_ms,omitempty"` // optional periodic sampling next to edges
}

type ReportConfig struct {
	Hz int `yaml:"hz"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type InfluxConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	TokenFile   string `yaml:"token_file"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or pretty
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Encoders: []EncoderConfig{
			{
				Name:             "knob",
				Backend:          gpio.BackendCdev,
				Chip:             "gpiochip0",
				A:                "17",
				B:                "27",
				PullUp:           true,
				StepsPerRotation: defaultStepsPerRotation,
				IdleMS:           defaultIdleMS,
			},
		},
		Report: ReportConfig{
			Hz: defaultReportHz,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/qdecd.sock",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    ":3002",
		},
		Influx: InfluxConfig{
			Enabled:     false,
			URL:         "http://localhost:8086",
			Measurement: defaultInfluxMeasurement,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	fillDefaults(&cfg)
	return cfg, nil
}

// FlagOverrides carries flag values that were explicitly set on the command
// line. A nil pointer means "not set".
type FlagOverrides struct {
	IPCSocketPath *string
	HTTPAddr      *string
	ReportHz      *int
	LogLevel      *string
	LogFormat     *string
}

// Apply merges the overrides into cfg and fills fields a config file left
// empty.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	defer fillDefaults(cfg)

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
		// an empty address disables the listener
		cfg.HTTP.Enabled = *o.HTTPAddr != ""
	}
	if o.ReportHz != nil {
		cfg.Report.Hz = *o.ReportHz
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

func fillDefaults(cfg *Config) {
	for i := range cfg.Encoders {
		if cfg.Encoders[i].Backend == "" {
			cfg.Encoders[i].Backend = gpio.BackendCdev
		}
	}
	if cfg.Influx.Measurement == "" {
		cfg.Influx.Measurement = defaultInfluxMeasurement
	}
}

// Validate checks config invariants and returns a user-friendly error. It
// does not modify c. Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	if len(c.Encoders) == 0 {
		return errors.New("encoders must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Encoders))
	for i := range c.Encoders {
		e := &c.Encoders[i]
		if e.Name == "" {
			return fmt.Errorf("encoders[%d].name must not be empty", i)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("encoders[%d].name %q is duplicated", i, e.Name)
		}
		seen[e.Name] = struct{}{}

		switch e.Backend {
		case gpio.BackendCdev, gpio.BackendSysfs, gpio.BackendPeriph:
			if e.A == "" || e.B == "" {
				return fmt.Errorf("encoders[%d] (%s): a and b must not be empty for backend %q", i, e.Name, e.Backend)
			}
		case gpio.BackendSim:
		default:
			return fmt.Errorf("encoders[%d] (%s): backend must be one of cdev, sysfs, periph, sim (got %q)", i, e.Name, e.Backend)
		}

		if e.StepsPerRotation < 0 {
			return fmt.Errorf("encoders[%d] (%s): steps_per_rotation must be >= 0", i, e.Name)
		}
		if _, err := e.Mode(); err != nil {
			return fmt.Errorf("encoders[%d] (%s): %w", i, e.Name, err)
		}
		if e.IdleMS < 0 {
			return fmt.Errorf("encoders[%d] (%s): idle_ms must be >= 0", i, e.Name)
		}
		if e.PollMS < 0 {
			return fmt.Errorf("encoders[%d] (%s): poll_ms must be >= 0", i, e.Name)
		}
		if e.DebounceUS < 0 {
			return fmt.Errorf("encoders[%d] (%s): debounce_us must be >= 0", i, e.Name)
		}
	}

	if c.Report.Hz <= 0 || c.Report.Hz > 1000 {
		return errors.New("report.hz must be between 1 and 1000")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return errors.New("http.enabled is true but http.addr is empty")
	}

	if c.Influx.Enabled {
		if c.Influx.URL == "" {
			return errors.New("influx.enabled is true but influx.url is empty")
		}
		if c.Influx.Org == "" {
			return errors.New("influx.enabled is true but influx.org is empty")
		}
		if c.Influx.Bucket == "" {
			return errors.New("influx.enabled is true but influx.bucket is empty")
		}
		if c.Influx.Measurement == "" {
			return errors.New("influx.measurement must not be empty")
		}
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be text, json or pretty (got %q)", c.Logging.Format)
	}

	return nil
}

// Mode maps the YAML fields onto a decoder mode.
func (e EncoderConfig) Mode() (qdec.Mode, error) {
	return qdec.ModeFromLegacy(e.StepsPerRotation, e.Resolution)
}

// GPIOSpec returns the line description for the encoder's backend.
func (e EncoderConfig) GPIOSpec() gpio.Spec {
	return gpio.Spec{
		Backend:   e.Backend,
		Chip:      e.Chip,
		A:         e.A,
		B:         e.B,
		PullUp:    e.PullUp,
		ActiveLow: e.ActiveLow,
		Debounce:  time.Duration(e.DebounceUS) * time.Microsecond,
		Consumer:  "qdecd-" + e.Name,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
