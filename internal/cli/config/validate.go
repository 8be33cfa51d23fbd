package config

import (
	"fmt"
	"os"
	"slices"
)

var outputFormats = []string{"", "auto", "text", "sql", "json"}

// Validate checks settings every command relies on. Target settings are
// checked separately, only by commands that connect.
func (c *Config) Validate() error {
	if c.Document == "" {
		return fmt.Errorf("document is required")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if !slices.Contains(outputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (expected auto, text, sql or json)", c.OutputFormat)
	}
	return nil
}

// ValidateTarget checks that a database target is configured.
func (c *Config) ValidateTarget() error {
	if c.Target == nil {
		return fmt.Errorf("no target configured\nHint: add a target section to %s or set LEAPSCHEMA_TARGET__DATABASE", ConfigFileName)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	return nil
}

// ValidateDocument checks that the document path exists.
func (c *Config) ValidateDocument() error {
	if _, err := os.Stat(c.Document); os.IsNotExist(err) {
		return fmt.Errorf("document does not exist: %s\nHint: run `leapschema dump` to create one or use --document", c.Document)
	}
	return nil
}
