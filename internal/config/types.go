// Package config provides shared configuration types for leapschema.
// It is decoupled from CLI concerns so the introspection layer can use the
// target settings without importing cobra or koanf.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// TargetConfig holds the PostgreSQL connection used for introspection.
type TargetConfig struct {
	Type     string `koanf:"type"` // only "postgres" is supported
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Options are appended to the DSN as key=value pairs (sslmode, application_name, ...).
	Options map[string]string `koanf:"options"`
}

// UnknownTargetError is returned for an unsupported target type.
type UnknownTargetError struct {
	Type string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target type %q (supported: %s); check the target section of %s",
		e.Type, strings.Join(SupportedTargets, ", "), ConfigFileName)
}

// SupportedTargets lists the target types leapschema can introspect.
var SupportedTargets = []string{"postgres"}

// Validate checks if the target configuration is usable.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !strings.EqualFold(t.Type, "postgres") && !strings.EqualFold(t.Type, "postgresql") {
		return &UnknownTargetError{Type: t.Type}
	}
	if t.Database == "" {
		return fmt.Errorf("target database is required")
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("target port %d out of range", t.Port)
	}
	return nil
}

// String describes the target without credentials, for logs and plan history.
func (t *TargetConfig) String() string {
	if t == nil {
		return "<none>"
	}
	s := fmt.Sprintf("postgres://%s:%d/%s", t.Host, t.Port, t.Database)
	if t.User != "" {
		s = fmt.Sprintf("postgres://%s@%s:%d/%s", t.User, t.Host, t.Port, t.Database)
	}
	return s
}

// DSN returns a key=value connection string for the pgx driver.
func (t *TargetConfig) DSN() string {
	host := t.Host
	if host == "" {
		host = DefaultHost
	}
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}

	sslmode := DefaultSSLMode
	if mode, ok := t.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, t.Database, sslmode)
	if t.User != "" {
		dsn += fmt.Sprintf(" user=%s", t.User)
	}
	if t.Password != "" {
		dsn += fmt.Sprintf(" password=%s", quoteDSNValue(t.Password))
	}

	keys := make([]string, 0, len(t.Options))
	for k := range t.Options {
		if k != "sslmode" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		dsn += fmt.Sprintf(" %s=%s", k, quoteDSNValue(t.Options[k]))
	}
	return dsn
}

// quoteDSNValue single-quotes values libpq would otherwise split.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// ProjectConfig is the subset of the configuration file that does not depend
// on the CLI.
type ProjectConfig struct {
	Document   string        `koanf:"document"`
	Schemas    []string      `koanf:"schemas"`
	ExtraTypes []string      `koanf:"extra_types"`
	Target     *TargetConfig `koanf:"target"`
}
