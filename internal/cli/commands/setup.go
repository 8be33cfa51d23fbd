package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapschema/internal/cli/config"
	"github.com/leapstack-labs/leapschema/internal/cli/output"
	"github.com/leapstack-labs/leapschema/internal/document"
	"github.com/leapstack-labs/leapschema/internal/introspect"
	"github.com/leapstack-labs/leapschema/internal/state"
	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    state.Store
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open plan store.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	c := NewCommandContextWithoutStore(cmd)

	store, err := openStore(c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, nil, err
	}
	c.Store = store

	cleanup := func() {
		if err := store.Close(); err != nil {
			c.Logger.Warn("failed to close plan history", "error", err)
		}
	}
	return c, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without plan history.
// Useful for commands that only read documents or the database.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the configuration loaded by the root command, or the
// defaults when a command runs on its own.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Document:     config.DefaultDocument,
		StatePath:    config.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
	}
}

func openStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open plan history: %w", err)
	}
	return store, nil
}

// snapshotSource reads the live catalog of a database.
type snapshotSource interface {
	Snapshot(ctx context.Context, include []string) (*introspect.Snapshot, error)
	Close() error
}

// connect opens the configured database. Tests replace it.
var connect = func(ctx context.Context, target *config.TargetConfig, logger *slog.Logger) (snapshotSource, error) {
	return introspect.Connect(ctx, target, logger)
}

// liveCatalog introspects the configured target.
func liveCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dbobject.TypeCatalog, error) {
	src, err := connect(ctx, cfg.Target, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("failed to close database connection", "error", err)
		}
	}()

	snap, err := src.Snapshot(ctx, cfg.Schemas)
	if err != nil {
		return nil, err
	}
	logger.Debug("introspected database",
		"target", cfg.Target.String(),
		"domains", len(snap.Rows),
		"schemas", len(snap.Schemas))
	return snap.Catalog(cfg.ExtraTypes)
}

// documentCatalog loads a document restricted to the configured schemas.
func documentCatalog(path string, cfg *config.Config, logger *slog.Logger) (*dbobject.TypeCatalog, error) {
	doc, err := document.Load(path)
	if err != nil {
		return nil, err
	}
	doc, excluded := document.Filter(doc, cfg.Schemas)
	c, err := document.Catalog(doc, append(excluded, cfg.ExtraTypes...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("loaded document", "path", path, "domains", c.Len(), "schemas", len(c.Schemas()))
	return c, nil
}
