package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapschema/internal/cli/output"
	"github.com/leapstack-labs/leapschema/internal/document"
)

// DumpOptions holds options for the dump command.
type DumpOptions struct {
	Write bool
}

// NewDumpCommand creates the dump command.
func NewDumpCommand() *cobra.Command {
	opts := &DumpOptions{}
	cmd := &cobra.Command{
		Use:   "dump [file]",
		Short: "Write the database's domains as a schema document",
		Long: `Introspect the target database and print its schemas and domains as a
YAML schema document. Planning the dump against the same database yields
no changes, so a dump is a good starting point for a new document.`,
		Example: `  # Print the document
  leapschema dump

  # Replace the configured document
  leapschema dump --write

  # Write to a specific file
  leapschema dump db/baseline.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write to the configured document instead of stdout")

	return cmd
}

func runDump(cmd *cobra.Command, args []string, opts *DumpOptions) error {
	c := NewCommandContextWithoutStore(cmd)
	if err := c.Cfg.ValidateTarget(); err != nil {
		return err
	}

	catalog, err := liveCatalog(cmd.Context(), c.Cfg, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to read database: %w", err)
	}
	doc := catalog.ToMap()

	path := ""
	switch {
	case len(args) > 0:
		path = args[0]
	case opts.Write:
		path = c.Cfg.Document
	}

	if path != "" {
		if err := document.Write(path, doc); err != nil {
			return err
		}
		c.Renderer.Success(fmt.Sprintf("Wrote %d domains in %d schemas to %s", catalog.Len(), len(catalog.Schemas()), path))
		return nil
	}

	if c.Renderer.EffectiveMode() == output.ModeJSON {
		return c.Renderer.JSON(doc)
	}
	return document.Encode(c.Renderer.Writer(), doc)
}
