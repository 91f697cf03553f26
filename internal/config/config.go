// Package config handles loading and saving the iptsd configuration.
//
// The on-disk format is YAML: the dotted key families of the runtime
// configuration (contacts.*, stylus.*, dft.*, cone.*) nest naturally, and
// a devices list carries per-device overrides matched by vendor/product
// ID, overriding the global values for matching hardware.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/iptsd-go/iptsd/contacts/detect"
	"github.com/iptsd-go/iptsd/contacts/stability"
	"github.com/iptsd-go/iptsd/contacts/validate"
	"github.com/iptsd-go/iptsd/daemon"
	"github.com/iptsd-go/iptsd/ipts/dft"
)

// Thresholds is a min/max pair used by the stability keys.
type Thresholds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// TouchscreenConfig holds the touchscreen.* keys.
type TouchscreenConfig struct {
	Disable         bool `yaml:"disable"`
	DisableOnPalm   bool `yaml:"disable_on_palm"`
	DisableOnStylus bool `yaml:"disable_on_stylus"`
}

// ContactsConfig holds the contacts.* keys.
type ContactsConfig struct {
	Neutral      string  `yaml:"neutral"`
	NeutralValue float64 `yaml:"neutral_value"`

	ActivationThreshold   float64 `yaml:"activation_threshold"`
	DeactivationThreshold float64 `yaml:"deactivation_threshold"`

	SizeMin   float64 `yaml:"size_min"`
	SizeMax   float64 `yaml:"size_max"`
	AspectMin float64 `yaml:"aspect_min"`
	AspectMax float64 `yaml:"aspect_max"`

	PositionThreshold    Thresholds `yaml:"position_threshold"`
	SizeThreshold        Thresholds `yaml:"size_threshold"`
	OrientationThreshold Thresholds `yaml:"orientation_threshold"`

	TemporalWindow int `yaml:"temporal_window"`
}

// StylusConfig holds the stylus.* keys.
type StylusConfig struct {
	Disable     bool    `yaml:"disable"`
	TipDistance float64 `yaml:"tip_distance"`
}

// DftConfig holds the dft.* keys.
type DftConfig struct {
	PositionMinAmp float64 `yaml:"position_min_amp"`
	PositionMinMag float64 `yaml:"position_min_mag"`
	ButtonMinMag   float64 `yaml:"button_min_mag"`
	TiltMinMag     float64 `yaml:"tilt_min_mag"`
	TiltDistance   float64 `yaml:"tilt_distance"`
	FreqMinMag     float64 `yaml:"freq_min_mag"`
	PositionExp    float64 `yaml:"position_exp"`
}

// ConeConfig holds the cone.* keys.
type ConeConfig struct {
	Angle    float64 `yaml:"angle"`
	Distance float64 `yaml:"distance"`
}

// Values is the flat set of configuration values, shared by the global
// config and the per-device override blocks.
type Values struct {
	InvertX bool `yaml:"invert_x"`
	InvertY bool `yaml:"invert_y"`

	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	Touchscreen TouchscreenConfig `yaml:"touchscreen"`
	Contacts    ContactsConfig    `yaml:"contacts"`
	Stylus      StylusConfig      `yaml:"stylus"`
	Dft         DftConfig         `yaml:"dft"`
	Cone        ConeConfig        `yaml:"cone"`
}

// DeviceOverride is one entry of the devices list: the values apply only
// to hardware with a matching vendor/product ID.
type DeviceOverride struct {
	Vendor    uint16 `yaml:"vendor"`
	Product   uint16 `yaml:"product"`
	Overrides Values `yaml:"overrides"`
}

// Config is the full configuration file.
type Config struct {
	mu sync.RWMutex

	Values  `yaml:",inline"`
	Devices []DeviceOverride `yaml:"devices"`

	path string
}

// Default returns the configuration iptsd ships with.
func Default() *Config {
	d := dft.DefaultConfig()

	return &Config{
		Values: Values{
			Width:  28,
			Height: 19,
			Contacts: ContactsConfig{
				Neutral:               "mode",
				ActivationThreshold:   0.1,
				DeactivationThreshold: 0.06,
				SizeMin:               0.2,
				SizeMax:               2.0,
				AspectMin:             1.0,
				AspectMax:             2.5,
				PositionThreshold:     Thresholds{Min: 0.005, Max: 0.2},
				SizeThreshold:         Thresholds{Min: 0.01, Max: 0.2},
				OrientationThreshold:  Thresholds{Min: 0.02, Max: 0.5},
				TemporalWindow:        3,
			},
			Dft: DftConfig{
				PositionMinAmp: d.PositionMinAmp,
				PositionMinMag: d.PositionMinMag,
				ButtonMinMag:   d.ButtonMinMag,
				TiltMinMag:     d.TiltMinMag,
				TiltDistance:   d.TiltDistance,
				FreqMinMag:     d.FreqMinMag,
				PositionExp:    d.PositionExp,
			},
			Cone: ConeConfig{Angle: 30, Distance: 5},
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join("/etc", "iptsd", "iptsd.yaml")
}

// Load reads the configuration from path, applying the file's values on
// top of the defaults. A missing file is not an error; the defaults are
// returned. An invalid file is: the process must refuse to start rather
// than run with half-applied settings.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate enum-valued keys up front.
	if _, err := detect.ParseNeutralMode(cfg.Contacts.Neutral); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to disk atomically (write temp, rename).
func (c *Config) Save() error {
	c.mu.RLock()
	data, err := yaml.Marshal(c)
	path := c.path
	c.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if path == "" {
		return fmt.Errorf("config has no backing file")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ForDevice returns the effective values for the given hardware: the
// first matching device override, or the global values.
func (c *Config) ForDevice(vendor, product uint16) Values {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, dev := range c.Devices {
		if dev.Vendor == vendor && dev.Product == product {
			return dev.Overrides
		}
	}

	return c.Values
}

// Update replaces the global values.
func (c *Config) Update(v Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Values = v
}

// Snapshot returns a copy of the global values.
func (c *Config) Snapshot() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Values
}

// Runtime translates the values into the pipeline configuration the
// daemon context consumes. The enum-valued keys are validated here as
// well as at load time, since values can also arrive through the control
// server.
func (v Values) Runtime() (daemon.Config, error) {
	neutral, err := detect.ParseNeutralMode(v.Contacts.Neutral)
	if err != nil {
		return daemon.Config{}, err
	}

	cfg := daemon.Config{
		Width:   v.Width,
		Height:  v.Height,
		InvertX: v.InvertX,
		InvertY: v.InvertY,
		Touchscreen: daemon.TouchscreenConfig{
			Disable:         v.Touchscreen.Disable,
			DisableOnPalm:   v.Touchscreen.DisableOnPalm,
			DisableOnStylus: v.Touchscreen.DisableOnStylus,
		},
		Stylus: daemon.StylusConfig{
			Disable:     v.Stylus.Disable,
			TipDistance: v.Stylus.TipDistance,
		},
		Cone: daemon.ConeConfig{
			Angle:    v.Cone.Angle,
			Distance: v.Cone.Distance,
		},
		Detection: detect.Config{
			Normalize:             true,
			NeutralMode:           neutral,
			NeutralValueOffset:    v.Contacts.NeutralValue,
			NeutralValueBackoff:   1,
			ActivationThreshold:   v.Contacts.ActivationThreshold,
			DeactivationThreshold: v.Contacts.DeactivationThreshold,
		},
		Validation: validate.Config{
			TrackValidity: true,
			SizeLimits:    &validate.Limits{Min: v.Contacts.SizeMin, Max: v.Contacts.SizeMax},
			AspectLimits:  &validate.Limits{Min: v.Contacts.AspectMin, Max: v.Contacts.AspectMax},
		},
		Checker: stability.CheckerConfig{
			TemporalWindow:          max(v.Contacts.TemporalWindow, 2),
			SizeDifferenceThreshold: &v.Contacts.SizeThreshold.Max,
			MovementLimits: &stability.Threshold{
				Min: v.Contacts.PositionThreshold.Min,
				Max: v.Contacts.PositionThreshold.Max,
			},
		},
		Stabilizer: stability.StabilizerConfig{
			SizeThreshold: &stability.Threshold{
				Min: v.Contacts.SizeThreshold.Min,
				Max: v.Contacts.SizeThreshold.Max,
			},
			PositionThreshold: &stability.Threshold{
				Min: v.Contacts.PositionThreshold.Min,
				Max: v.Contacts.PositionThreshold.Max,
			},
			OrientationThreshold: &stability.Threshold{
				Min: v.Contacts.OrientationThreshold.Min,
				Max: v.Contacts.OrientationThreshold.Max,
			},
		},
		Dft: dft.Config{
			PositionMinAmp: v.Dft.PositionMinAmp,
			PositionMinMag: v.Dft.PositionMinMag,
			ButtonMinMag:   v.Dft.ButtonMinMag,
			TiltMinMag:     v.Dft.TiltMinMag,
			TiltDistance:   v.Dft.TiltDistance,
			FreqMinMag:     v.Dft.FreqMinMag,
			PositionExp:    v.Dft.PositionExp,
		},
	}

	if v.Stylus.TipDistance > 0 {
		dist := v.Stylus.TipDistance
		cfg.Checker.DistanceThreshold = &dist
	}

	return cfg, nil
}
