package config

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/leapschema/internal/config"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// Config file names, in lookup order.
const (
	ConfigFileName    = intconfig.ConfigFileName
	ConfigFileNameAlt = intconfig.ConfigFileNameAlt
)

// EnvPrefix prefixes environment variables read as configuration.
// A double underscore descends into a section: LEAPSCHEMA_TARGET__HOST.
const EnvPrefix = "LEAPSCHEMA_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	projectRoot, err := inferProjectRoot(cfgFile)
	if err != nil {
		return nil, err
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"document":   DefaultDocument,
		"state_path": DefaultStateFile,
		"verbose":    false,
		"output":     DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile != "" {
		configFileUsed = cfgFile
	} else {
		configFileUsed = intconfig.FindConfigFile(projectRoot)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment: LEAPSCHEMA_STATE_PATH -> state_path, LEAPSCHEMA_TARGET__HOST -> target.host
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "state":
				key = "state_path"
			case "env":
				key = "environment"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot
	cfg.Schemas = splitList(cfg.Schemas)
	cfg.ExtraTypes = splitList(cfg.ExtraTypes)

	if err := applyEnvironment(&cfg, flags); err != nil {
		return nil, err
	}

	// Paths given as flags are relative to the working directory, the rest
	// to the project root.
	cfg.Document = resolvePath(cfg.Document, projectRoot, flagChanged(flags, "document"))
	cfg.StatePath = resolvePath(cfg.StatePath, projectRoot, flagChanged(flags, "state"))

	if cfg.Target != nil {
		cfg.Target.ApplyDefaults()
		expandTargetEnvVars(cfg.Target)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// applyEnvironment merges the selected environment section into cfg.
func applyEnvironment(cfg *Config, flags *pflag.FlagSet) error {
	if cfg.Environment == "" {
		return nil
	}
	envCfg, ok := cfg.Environments[cfg.Environment]
	if !ok {
		return fmt.Errorf("unknown environment %q (defined: %s)", cfg.Environment, strings.Join(environmentNames(cfg), ", "))
	}
	if envCfg.Document != "" && !flagChanged(flags, "document") {
		cfg.Document = envCfg.Document
	}
	if len(envCfg.Schemas) > 0 && !flagChanged(flags, "schemas") {
		cfg.Schemas = splitList(envCfg.Schemas)
	}
	cfg.Target = MergeTargetConfig(cfg.Target, envCfg.Target)
	return nil
}

func environmentNames(cfg *Config) []string {
	names := make([]string, 0, len(cfg.Environments))
	for name := range cfg.Environments {
		names = append(names, name)
	}
	if len(names) == 0 {
		return []string{"none"}
	}
	slices.Sort(names)
	return names
}

// inferProjectRoot picks the directory of an explicit config file, else the
// nearest ancestor of the working directory holding one, else the working
// directory.
func inferProjectRoot(cfgFile string) (string, error) {
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return "", fmt.Errorf("failed to resolve config path: %w", err)
		}
		return filepath.Dir(abs), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	if root := intconfig.FindProjectRoot(cwd, maxUpwardSearchLevels); root != "" {
		return root, nil
	}
	return cwd, nil
}

func resolvePath(path, baseDir string, fromFlag bool) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if fromFlag {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(baseDir, path)
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// splitList flattens comma-separated entries, as env vars deliver lists as
// a single string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns. Unset variables are left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

func expandTargetEnvVars(t *TargetConfig) {
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.User = expandEnvVars(t.User)
	t.Password = expandEnvVars(t.Password)
	for key, v := range t.Options {
		t.Options[key] = expandEnvVars(v)
	}
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	maps.Copy(merged.Options, base.Options)
	maps.Copy(merged.Options, override.Options)

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	return &merged
}
