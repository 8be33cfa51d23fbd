package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapschema/internal/cli/output"
	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <current> [target]",
		Short: "Compare two schema documents without a database",
		Long: `Compute the operations that turn the current document into the target
document. The target defaults to the configured document.

Useful for reviewing a change to the schema document before it reaches
a database, for example between two git revisions.`,
		Example: `  # What changes between a dump and the working copy
  leapschema diff prod-dump.yaml

  # Compare two explicit documents as JSON
  leapschema diff old.yaml new.yaml -o json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args)
		},
	}
}

func runDiff(cmd *cobra.Command, args []string) error {
	c := NewCommandContextWithoutStore(cmd)

	currentPath := args[0]
	targetPath := c.Cfg.Document
	if len(args) > 1 {
		targetPath = args[1]
	}

	var current, target *dbobject.TypeCatalog
	var g errgroup.Group
	g.Go(func() error {
		var err error
		current, err = documentCatalog(currentPath, c.Cfg, c.Logger)
		return err
	})
	g.Go(func() error {
		var err error
		target, err = documentCatalog(targetPath, c.Cfg, c.Logger)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	ops, err := dbobject.NewDiffEngine(c.Logger).Compare(current, target)
	if err != nil {
		return fmt.Errorf("failed to compare documents: %w", err)
	}

	return c.Renderer.Plan(output.PlanOutput{
		Source:     currentPath,
		Document:   targetPath,
		Operations: ops,
	})
}
