// ABOUTME: Configuration for the tempostream client
// ABOUTME: Defines the YAML config schema, defaults, and validation
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/tempostream/internal/discovery"
	"github.com/harperreed/tempostream/internal/logging"
	"github.com/harperreed/tempostream/pkg/audio/output"
)

// Config is the client configuration file
type Config struct {
	URL       string          `yaml:"url"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Audio     AudioConfig     `yaml:"audio"`
	Log       LogConfig       `yaml:"log"`
	UI        UIConfig        `yaml:"ui"`
}

// DiscoveryConfig controls mDNS server lookup when no URL is set
type DiscoveryConfig struct {
	Enabled bool     `yaml:"enabled"`
	Service string   `yaml:"service"`
	Timeout Duration `yaml:"timeout"`
}

// AudioConfig controls the playback sink
type AudioConfig struct {
	Latency  string `yaml:"latency"`
	Volume   int    `yaml:"volume"`
	Disabled bool   `yaml:"disabled"`
}

// LogConfig controls logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// UIConfig controls the terminal UI
type UIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration back as a string
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Enabled: true,
			Service: discovery.DefaultService,
			Timeout: Duration{5 * time.Second},
		},
		Audio: AudioConfig{
			Latency: string(output.LatencyPlayback),
			Volume:  100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   "tempostream.log",
		},
		UI: UIConfig{Enabled: true},
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	var errs []error

	if c.URL == "" && !c.Discovery.Enabled {
		errs = append(errs, errors.New("url is required when discovery is disabled"))
	}
	if c.Discovery.Enabled && c.Discovery.Service == "" {
		errs = append(errs, errors.New("discovery.service must not be empty"))
	}
	if c.Discovery.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("discovery.timeout must not be negative, got %s", c.Discovery.Timeout))
	}
	if _, err := output.ParseLatency(c.Audio.Latency); err != nil {
		errs = append(errs, fmt.Errorf("audio.latency: %w", err))
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		errs = append(errs, fmt.Errorf("audio.volume must be 0-100, got %d", c.Audio.Volume))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
