package config

// Default configuration values.
const (
	DefaultDocument = "schema.yaml"
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultSSLMode  = "disable"
)

// ApplyDefaults applies default values to a ProjectConfig.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.Document == "" {
		c.Document = DefaultDocument
	}
}

// ApplyDefaults applies default values to a TargetConfig.
func (t *TargetConfig) ApplyDefaults() {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = "postgres"
	}
	if t.Host == "" {
		t.Host = DefaultHost
	}
	if t.Port == 0 {
		t.Port = DefaultPort
	}
}
