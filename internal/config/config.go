// Package config handles weighted region layer configuration.
package config

import (
	"fmt"
	"sync"

	"github.com/Faultbox/weighted-region-layer/pkg/costmap"
	"github.com/Faultbox/weighted-region-layer/pkg/overlay"
)

// NoFile is the file name value meaning "no region configured".
const NoFile = "none"

// Config holds all layer settings.
type Config struct {
	Layer   LayerConfig       `yaml:"layer"`
	Cost    CostConfig        `yaml:"cost"`
	Params  map[string]string `yaml:"params"` // parameter source for dynamic file lookup
	Logging LoggingConfig     `yaml:"logging"`

	mu   sync.RWMutex // guards Params once the layer is running
	path string       // file the config was loaded from, if any
}

// LayerConfig holds region layer settings.
type LayerConfig struct {
	Enabled            bool   `yaml:"enabled"`
	RegionDir          string `yaml:"region_dir"`           // base directory for relative region names
	FileName           string `yaml:"file_name"`            // initial region name, "none" to skip
	EnableParamUpdates bool   `yaml:"enable_param_updates"` // reload on geometry change
	ParameterName      string `yaml:"wrl_parameter_name"`   // param holding the current region name
	MapTopic           string `yaml:"map_topic"`            // map source for the host, passed through unread
	LegacyStatus       bool   `yaml:"legacy_status"`        // service always reports success
}

// CostConfig holds the weight to cost mapping.
type CostConfig struct {
	NeutralWeight float64 `yaml:"neutral_weight"`
	Scale         float64 `yaml:"scale"`
	MaxCost       uint8   `yaml:"max_cost"`
}

// Policy returns the overlay cost policy described by the config.
func (c CostConfig) Policy() overlay.LinearPolicy {
	return overlay.LinearPolicy{
		Neutral: c.NeutralWeight,
		Scale:   c.Scale,
		MaxCost: c.MaxCost,
	}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	policy := overlay.DefaultPolicy()
	return &Config{
		Layer: LayerConfig{
			Enabled:            true,
			RegionDir:          ".",
			FileName:           NoFile,
			EnableParamUpdates: false,
			ParameterName:      "wrl_file",
			MapTopic:           "/map",
			LegacyStatus:       false,
		},
		Cost: CostConfig{
			NeutralWeight: policy.Neutral,
			Scale:         policy.Scale,
			MaxCost:       costmap.LethalObstacle,
		},
		Params: map[string]string{},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if err := c.Cost.Policy().Validate(); err != nil {
		return fmt.Errorf("cost: %w", err)
	}
	if c.Layer.EnableParamUpdates && c.Layer.ParameterName == "" {
		return fmt.Errorf("layer: wrl_parameter_name is required with enable_param_updates")
	}
	return nil
}

// Param looks up a parameter value. It satisfies layer.ParamSource.
func (c *Config) Param(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.Params[name]
	return v, ok
}

// SetParam sets a parameter value in memory.
func (c *Config) SetParam(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	c.Params[name] = value
}

// Path returns the file the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}
