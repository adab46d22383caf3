// Package config loads the viewer configuration surface from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wudi/flipbook/observability"
	"github.com/wudi/flipbook/recovery"
)

// Duration wraps time.Duration with YAML support for strings like "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(time.Duration(n))
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Render-failure policies.
const (
	PolicyLenient = "lenient"
	PolicyStrict  = "strict"
	PolicyWarn    = "warn"
)

// Config is the viewer configuration surface.
type Config struct {
	// Location is the document URL, or a bundled-resource path when Bundled
	// is set.
	Location string `yaml:"location"`
	Bundled  bool   `yaml:"bundled"`

	// ProxyEndpoint, when set, is the fallback retrieval prefix used after
	// a failed direct fetch.
	ProxyEndpoint string `yaml:"proxy_endpoint"`

	// RenderPolicy selects how page-level render failures are handled:
	// lenient (default), strict or warn.
	RenderPolicy string `yaml:"render_policy"`

	// ZoomThreshold is the transform magnitude above which the view counts
	// as zoomed in and page-turn drags are refused.
	ZoomThreshold float64 `yaml:"zoom_threshold"`

	// SettleDuration is the fixed length of the page-turn settle.
	SettleDuration Duration `yaml:"settle_duration"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		RenderPolicy:   PolicyLenient,
		ZoomThreshold:  1.05,
		SettleDuration: Duration(400 * time.Millisecond),
	}
}

// Load reads and validates a YAML configuration file. Missing fields take
// their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Location == "" {
		return fmt.Errorf("config: location required")
	}
	switch c.RenderPolicy {
	case PolicyLenient, PolicyStrict, PolicyWarn:
	default:
		return fmt.Errorf("config: unknown render policy %q", c.RenderPolicy)
	}
	if c.ZoomThreshold <= 0 {
		return fmt.Errorf("config: zoom threshold must be positive")
	}
	if c.SettleDuration <= 0 {
		return fmt.Errorf("config: settle duration must be positive")
	}
	return nil
}

// Strategy builds the recovery strategy named by RenderPolicy.
func (c Config) Strategy(logger observability.Logger) recovery.Strategy {
	switch c.RenderPolicy {
	case PolicyStrict:
		return recovery.NewStrictStrategy()
	case PolicyWarn:
		return recovery.NewWarnStrategy(logger)
	default:
		return recovery.NewLenientStrategy()
	}
}
