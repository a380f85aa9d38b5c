package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Unnamed-Studios-LLC/Pixl-sub000/internal/core/timing"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Frame   FrameConfig   `toml:"frame" yaml:"frame"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Window  WindowConfig  `toml:"window" yaml:"window"`
	Script  ScriptConfig  `toml:"script" yaml:"script"`
}

type FrameConfig struct {
	TargetUpdateDelta float64  `toml:"target_update_delta" yaml:"target_update_delta"` // seconds, 0 = uncapped
	TargetFixedDelta  float64  `toml:"target_fixed_delta" yaml:"target_fixed_delta"`   // seconds, <= 0 disables
	SpinThreshold     Duration `toml:"spin_threshold" yaml:"spin_threshold"`
	MaxCatchUpSteps   int      `toml:"max_catch_up_steps" yaml:"max_catch_up_steps"` // 0 = unlimited
	CloseTimeout      Duration `toml:"close_timeout" yaml:"close_timeout"`
	TickFrequency     int64    `toml:"tick_frequency" yaml:"tick_frequency"` // ticks per second
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
	File   string `toml:"file" yaml:"file"`     // empty = stderr
}

type WindowConfig struct {
	Backend   string `toml:"backend" yaml:"backend"`       // "terminal" or "headless"
	MaxFrames int    `toml:"max_frames" yaml:"max_frames"` // headless only, 0 = until signalled
}

type ScriptConfig struct {
	Path string `toml:"path" yaml:"path"` // Lua simulation, empty = none
}

// Duration accepts "2ms"-style strings in both toml and yaml.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads a toml file, or yaml when the extension is .yaml/.yml, over
// the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

func (c *Config) validate() error {
	if c.Frame.TargetUpdateDelta < 0 {
		return fmt.Errorf("frame.target_update_delta must be >= 0, got %v", c.Frame.TargetUpdateDelta)
	}
	if c.Frame.TickFrequency <= 0 {
		return fmt.Errorf("frame.tick_frequency must be > 0, got %d", c.Frame.TickFrequency)
	}
	if c.Frame.MaxCatchUpSteps < 0 {
		return fmt.Errorf("frame.max_catch_up_steps must be >= 0, got %d", c.Frame.MaxCatchUpSteps)
	}
	switch c.Window.Backend {
	case "terminal", "headless":
	default:
		return fmt.Errorf("window.backend must be terminal or headless, got %q", c.Window.Backend)
	}
	return nil
}

// TargetUpdateTicks converts the pacing target to ticks at freq.
func (f FrameConfig) TargetUpdateTicks(freq timing.Frequency) timing.Tick {
	return freq.FromSeconds(f.TargetUpdateDelta)
}

// TargetFixedTicks converts the fixed step period to ticks at freq.
func (f FrameConfig) TargetFixedTicks(freq timing.Frequency) timing.Tick {
	return freq.FromSeconds(f.TargetFixedDelta)
}

func defaults() *Config {
	return &Config{
		Frame: FrameConfig{
			TargetUpdateDelta: 1.0 / 60.0,
			TargetFixedDelta:  1.0 / 50.0,
			SpinThreshold:     Duration{timing.DefaultSpinThreshold},
			MaxCatchUpSteps:   0,
			CloseTimeout:      Duration{2 * time.Second},
			TickFrequency:     int64(timing.DefaultFrequency),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Window: WindowConfig{
			Backend: "terminal",
		},
	}
}
