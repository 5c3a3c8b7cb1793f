// Package config loads run configuration from JSON. Every field is a
// pointer so an omitted key is distinguishable from a zero value; partial
// config files are safe and the Get* accessors supply defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunConfig is the file-level counterpart of the trajgen command line.
// Flags given explicitly on the command line win over file values.
type RunConfig struct {
	EngineAddr *string `json:"engine_addr,omitempty"`
	OutputDir  *string `json:"output_dir,omitempty"`
	ScriptPath *string `json:"script,omitempty"`
	NoisePath  *string `json:"noise,omitempty"`

	Trials    *int    `json:"trials,omitempty"`
	MaxFrames *int    `json:"max_frames,omitempty"`
	BaseSeed  *uint64 `json:"seed,omitempty"`

	// Timeout is a duration string like "30s".
	Timeout *string `json:"timeout,omitempty"`

	CommandLog        *string `json:"command_log,omitempty"`
	UnloadAssetsEvery *int    `json:"unload_assets_every,omitempty"`
	Provenance        *string `json:"provenance,omitempty"`
}

// Empty returns a RunConfig with all fields unset.
func Empty() *RunConfig {
	return &RunConfig{}
}

// Load reads a RunConfig from a JSON file. Fields omitted from the file stay
// unset; unknown keys are ignored.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that configured values are usable.
func (c *RunConfig) Validate() error {
	if c.Trials != nil && *c.Trials < 0 {
		return fmt.Errorf("trials must be non-negative, got %d", *c.Trials)
	}
	if c.MaxFrames != nil && *c.MaxFrames < 1 {
		return fmt.Errorf("max_frames must be at least 1, got %d", *c.MaxFrames)
	}
	if c.Timeout != nil && *c.Timeout != "" {
		if _, err := time.ParseDuration(*c.Timeout); err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
	}
	if c.UnloadAssetsEvery != nil && *c.UnloadAssetsEvery < 0 {
		return fmt.Errorf("unload_assets_every must be non-negative, got %d", *c.UnloadAssetsEvery)
	}
	return nil
}

// GetEngineAddr returns the engine address, defaulting to localhost:1071.
func (c *RunConfig) GetEngineAddr() string {
	if c.EngineAddr == nil || *c.EngineAddr == "" {
		return "localhost:1071"
	}
	return *c.EngineAddr
}

// GetTrials returns the trial count, defaulting to 100.
func (c *RunConfig) GetTrials() int {
	if c.Trials == nil {
		return 100
	}
	return *c.Trials
}

// GetMaxFrames returns the per-trial frame cap, defaulting to 1000.
func (c *RunConfig) GetMaxFrames() int {
	if c.MaxFrames == nil {
		return 1000
	}
	return *c.MaxFrames
}

// GetBaseSeed returns the base seed, defaulting to 0.
func (c *RunConfig) GetBaseSeed() uint64 {
	if c.BaseSeed == nil {
		return 0
	}
	return *c.BaseSeed
}

// GetTimeout parses and returns the per-exchange timeout, defaulting to 30s.
func (c *RunConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetUnloadAssetsEvery returns the unload interval, defaulting to 0 (never).
func (c *RunConfig) GetUnloadAssetsEvery() int {
	if c.UnloadAssetsEvery == nil {
		return 0
	}
	return *c.UnloadAssetsEvery
}

// GetProvenance returns the provenance string, defaulting to "trajgen".
func (c *RunConfig) GetProvenance() string {
	if c.Provenance == nil || *c.Provenance == "" {
		return "trajgen"
	}
	return *c.Provenance
}

// GetString returns the value of an optional string field, or "" if unset.
func GetString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
