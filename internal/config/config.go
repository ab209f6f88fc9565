package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loicwouters/SDL/internal/logic/geometry"
)

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// Physically safe servo pulse limits (µs). Configured ranges must stay inside.
const (
	SafeMinPulseUs = 500
	SafeMaxPulseUs = 2500
)

// ServoConfig holds the configuration for a positional servo.
type ServoConfig struct {
	Pin int `yaml:"pin"` // BCM pin with hardware PWM. 0 = not fitted.
}

// AimConfig describes the travel of the aim servos.
type AimConfig struct {
	MinPulseUs    int `yaml:"min_pulse_us"`    // default 500
	MaxPulseUs    int `yaml:"max_pulse_us"`    // default 2500
	CenterPulseUs int `yaml:"center_pulse_us"` // default 1500
	StepUs        int `yaml:"step_us"`         // per move command, default 100
}

// ReleaseConfig describes the ball release servo.
type ReleaseConfig struct {
	Pin           int `yaml:"pin"`
	OpenPulseUs   int `yaml:"open_pulse_us"`   // lets one ball drop, default 2000
	ClosedPulseUs int `yaml:"closed_pulse_us"` // holds remaining balls, default 1000
}

// MotorConfig is one launcher wheel motor.
type MotorConfig struct {
	Name string `yaml:"name"`
	Pin  int    `yaml:"pin"`
}

// MotorsConfig groups the motor channels. All motors get the same power.
type MotorsConfig struct {
	Channels  []MotorConfig `yaml:"channels"`    // 1 or 2 motors
	PWMFreqHz int           `yaml:"pwm_freq_hz"` // default 1000
	DutyRange int           `yaml:"duty_range"`  // duty units for 100%, default 255
}

// LaunchConfig holds the launch sequence guard and phase timings.
type LaunchConfig struct {
	MinPowerPercent int `yaml:"min_power_percent"` // launches below are rejected, default 10
	SpinUpMs        int `yaml:"spin_up_ms"`        // motors reach speed before release, default 3000
	ReleaseMs       int `yaml:"release_ms"`        // release held open, default 500
	EjectMs         int `yaml:"eject_ms"`          // motors keep running after release, default 3000
}

// WebConfig configures the HTTP control surface.
type WebConfig struct {
	Port     int    `yaml:"port"`      // default 5000
	VideoURL string `yaml:"video_url"` // optional external MJPEG stream shown in the UI
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"` // default true
	Path    string `yaml:"path"`    // default /metrics
}

// LoggingConfig configures debug output.
type LoggingConfig struct {
	DebugLevel int    `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	File       string `yaml:"file"`        // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"` // default 10
	MaxBackups int    `yaml:"max_backups"` // default 3
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	MockGPIO bool `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	DirectionServo ServoConfig    `yaml:"direction_servo"`
	TiltServo      ServoConfig    `yaml:"tilt_servo"` // optional
	Aim            AimConfig      `yaml:"aim"`
	Release        ReleaseConfig  `yaml:"release"`
	Motors         MotorsConfig   `yaml:"motors"`
	Launch         LaunchConfig   `yaml:"launch"`
	Web            WebConfig      `yaml:"web"`
	Metrics        MetricsConfig  `yaml:"metrics"`
	Logging        LoggingConfig  `yaml:"logging"`
	Defaults       DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only *.yaml files located directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be inside a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Aim.MinPulseUs == 0 {
		c.Aim.MinPulseUs = SafeMinPulseUs
	}
	if c.Aim.MaxPulseUs == 0 {
		c.Aim.MaxPulseUs = SafeMaxPulseUs
	}
	if c.Aim.CenterPulseUs == 0 {
		c.Aim.CenterPulseUs = 1500
	}
	if c.Aim.StepUs == 0 {
		c.Aim.StepUs = 100
	}
	if c.Release.OpenPulseUs == 0 {
		c.Release.OpenPulseUs = 2000
	}
	if c.Release.ClosedPulseUs == 0 {
		c.Release.ClosedPulseUs = 1000
	}
	if c.Motors.PWMFreqHz == 0 {
		c.Motors.PWMFreqHz = 1000 // 1 kHz
	}
	if c.Motors.DutyRange == 0 {
		c.Motors.DutyRange = 255
	}
	for i := range c.Motors.Channels {
		if c.Motors.Channels[i].Name == "" {
			c.Motors.Channels[i].Name = fmt.Sprintf("motor%d", i+1)
		}
	}
	if c.Launch.MinPowerPercent == 0 {
		c.Launch.MinPowerPercent = 10
	}
	if c.Launch.SpinUpMs == 0 {
		c.Launch.SpinUpMs = 3000
	}
	if c.Launch.ReleaseMs == 0 {
		c.Launch.ReleaseMs = 500
	}
	if c.Launch.EjectMs == 0 {
		c.Launch.EjectMs = 3000
	}
	if c.Web.Port == 0 {
		c.Web.Port = 5000
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
}

// Validate checks ranges and pin assignments. Load calls it after applying defaults.
func (c *Config) Validate() error {
	if c.DirectionServo.Pin <= 0 {
		return errors.New("direction_servo.pin is required")
	}
	if c.TiltServo.Pin < 0 {
		return fmt.Errorf("tilt_servo.pin must be >= 0, got %d", c.TiltServo.Pin)
	}
	if c.Release.Pin <= 0 {
		return errors.New("release.pin is required")
	}
	if n := len(c.Motors.Channels); n < 1 || n > 2 {
		return fmt.Errorf("motors.channels must list 1 or 2 motors, got %d", n)
	}

	pins := map[int]string{c.DirectionServo.Pin: "direction_servo"}
	claim := func(pin int, owner string) error {
		if prev, ok := pins[pin]; ok {
			return fmt.Errorf("pin %d used by both %s and %s", pin, prev, owner)
		}
		pins[pin] = owner
		return nil
	}
	if c.TiltServo.Pin > 0 {
		if err := claim(c.TiltServo.Pin, "tilt_servo"); err != nil {
			return err
		}
	}
	if err := claim(c.Release.Pin, "release"); err != nil {
		return err
	}
	for _, m := range c.Motors.Channels {
		if m.Pin <= 0 {
			return fmt.Errorf("motor %s: pin is required", m.Name)
		}
		if err := claim(m.Pin, m.Name); err != nil {
			return err
		}
	}

	a := c.Aim
	if a.MinPulseUs < SafeMinPulseUs || a.MaxPulseUs > SafeMaxPulseUs {
		return fmt.Errorf("aim pulse range must stay within [%d, %d], got [%d, %d]",
			SafeMinPulseUs, SafeMaxPulseUs, a.MinPulseUs, a.MaxPulseUs)
	}
	if !(a.MinPulseUs <= a.CenterPulseUs && a.CenterPulseUs <= a.MaxPulseUs) || a.MinPulseUs == a.MaxPulseUs {
		return fmt.Errorf("aim pulses must satisfy min <= center <= max with min < max, got %d/%d/%d",
			a.MinPulseUs, a.CenterPulseUs, a.MaxPulseUs)
	}
	if a.StepUs <= 0 || a.StepUs > a.MaxPulseUs-a.MinPulseUs {
		return fmt.Errorf("aim.step_us must be between 1 and %d, got %d", a.MaxPulseUs-a.MinPulseUs, a.StepUs)
	}

	for name, us := range map[string]int{
		"release.open_pulse_us":   c.Release.OpenPulseUs,
		"release.closed_pulse_us": c.Release.ClosedPulseUs,
	} {
		if us < SafeMinPulseUs || us > SafeMaxPulseUs {
			return fmt.Errorf("%s must be between %d and %d, got %d", name, SafeMinPulseUs, SafeMaxPulseUs, us)
		}
	}

	if c.Motors.PWMFreqHz < 1 || c.Motors.PWMFreqHz > 20000 {
		return fmt.Errorf("motors.pwm_freq_hz must be between 1 and 20000, got %d", c.Motors.PWMFreqHz)
	}
	if c.Motors.DutyRange < 1 {
		return fmt.Errorf("motors.duty_range must be > 0, got %d", c.Motors.DutyRange)
	}

	if c.Launch.MinPowerPercent < 0 || c.Launch.MinPowerPercent > 100 {
		return fmt.Errorf("launch.min_power_percent must be between 0 and 100, got %d", c.Launch.MinPowerPercent)
	}
	if c.Launch.SpinUpMs < 0 || c.Launch.ReleaseMs < 0 || c.Launch.EjectMs < 0 {
		return errors.New("launch timings must be >= 0")
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 1-65535, got %d", c.Web.Port)
	}
	if c.Logging.DebugLevel < 0 || c.Logging.DebugLevel > 4 {
		return fmt.Errorf("logging.debug_level must be between 0 and 4, got %d", c.Logging.DebugLevel)
	}
	return nil
}

// HasTilt reports whether a tilt servo is fitted.
func (c *Config) HasTilt() bool {
	return c.TiltServo.Pin > 0
}

// AimRange returns the aim servo travel as a pulse range.
func (c *Config) AimRange() geometry.PulseRange {
	return geometry.PulseRange{
		Min:    c.Aim.MinPulseUs,
		Center: c.Aim.CenterPulseUs,
		Max:    c.Aim.MaxPulseUs,
	}
}

// MetricsEnabled reports whether /metrics is served. Defaults to true.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

// SpinUp returns how long motors run before the ball is released.
func (c *Config) SpinUp() time.Duration {
	return time.Duration(c.Launch.SpinUpMs) * time.Millisecond
}

// ReleaseHold returns how long the release servo stays open.
func (c *Config) ReleaseHold() time.Duration {
	return time.Duration(c.Launch.ReleaseMs) * time.Millisecond
}

// Eject returns how long motors keep running after the release closes.
func (c *Config) Eject() time.Duration {
	return time.Duration(c.Launch.EjectMs) * time.Millisecond
}
