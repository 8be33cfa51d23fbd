package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapschema/internal/cli/output"
	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// PlanOptions holds options for the plan command.
type PlanOptions struct {
	NoSave bool
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	opts := &PlanOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan the DDL that brings the database in line with the document",
		Long: `Introspect the target database, compare it with the schema document and
print the statements that would reconcile them.

Nothing is executed. Each plan is recorded in the local history unless
--no-save is given; see 'leapschema history'.

Output adapts to environment:
  - Terminal: a table of operations
  - Piped/Scripted: a runnable SQL script
  - JSON: operations and statements`,
		Example: `  # Show what would change
  leapschema plan

  # Write a migration script
  leapschema plan -o sql > migrate.sql

  # Plan against production, only for the sales schema
  leapschema plan --env prod --schemas sales`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "Do not record the plan in history")

	return cmd
}

func runPlan(cmd *cobra.Command, opts *PlanOptions) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := c.Cfg
	if err := cfg.ValidateTarget(); err != nil {
		return err
	}
	if err := cfg.ValidateDocument(); err != nil {
		return err
	}

	var current, target *dbobject.TypeCatalog
	g, gctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		var err error
		current, err = liveCatalog(gctx, cfg, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to read database: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		target, err = documentCatalog(cfg.Document, cfg, c.Logger)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	ops, err := dbobject.NewDiffEngine(c.Logger).Compare(current, target)
	if err != nil {
		return fmt.Errorf("failed to plan changes: %w", err)
	}

	result := output.PlanOutput{
		Source:     cfg.Target.String(),
		Document:   cfg.Document,
		Operations: ops,
	}
	if !opts.NoSave {
		plan, err := c.Store.SavePlan(cmd.Context(), result.Source, result.Document, ops)
		if err != nil {
			return fmt.Errorf("failed to record plan: %w", err)
		}
		result.ID = plan.ID
		c.Logger.Debug("recorded plan", "id", plan.ID, "operations", len(ops))
	}

	return c.Renderer.Plan(result)
}
