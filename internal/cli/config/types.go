// Package config provides configuration management for the leapschema CLI.
//
// It layers CLI-only settings (output mode, state path, environments) on top
// of the shared project settings in internal/config.
package config

import (
	intconfig "github.com/leapstack-labs/leapschema/internal/config"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = intconfig.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	Document     string               `koanf:"document"`
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Schemas      []string             `koanf:"schemas"`
	ExtraTypes   []string             `koanf:"extra_types"`
	Target       *TargetConfig        `koanf:"target"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	Document string        `koanf:"document"`
	Schemas  []string      `koanf:"schemas"`
	Target   *TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	DefaultDocument  = intconfig.DefaultDocument
	DefaultStateFile = ".leapschema/state.db"
	DefaultOutput    = "auto" // TTY=text, otherwise sql
)

// Project returns the shared project settings of c.
func (c *Config) Project() *intconfig.ProjectConfig {
	return &intconfig.ProjectConfig{
		Document:   c.Document,
		Schemas:    c.Schemas,
		ExtraTypes: c.ExtraTypes,
		Target:     c.Target,
	}
}
