package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapschema/internal/cli/output"
	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// ValidateOutput is the JSON output for the validate command.
type ValidateOutput struct {
	Document string   `json:"document"`
	Valid    bool     `json:"valid"`
	Domains  int      `json:"domains"`
	Casts    int      `json:"casts"`
	Schemas  []string `json:"schemas"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [document]",
		Short: "Check that a schema document is well formed",
		Long: `Parse a schema document, resolve every base type and cast type, and check
that domains do not depend on each other in a cycle. No database is needed.

The document defaults to the configured one.`,
		Example: `  leapschema validate
  leapschema validate db/schema`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	c := NewCommandContextWithoutStore(cmd)

	path := c.Cfg.Document
	if len(args) > 0 {
		path = args[0]
	}

	catalog, err := documentCatalog(path, c.Cfg, c.Logger)
	if err != nil {
		return err
	}
	// Creating everything from scratch orders every domain, which surfaces cycles.
	if _, err := dbobject.NewDiffEngine(c.Logger).Compare(nil, catalog); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	result := ValidateOutput{
		Document: path,
		Valid:    true,
		Domains:  catalog.Len(),
		Casts:    len(catalog.CastKeys()),
		Schemas:  catalog.Schemas(),
	}
	if c.Renderer.EffectiveMode() == output.ModeJSON {
		return c.Renderer.JSON(result)
	}
	msg := fmt.Sprintf("%s is valid: %d domains in %d schemas", path, result.Domains, len(result.Schemas))
	if result.Casts > 0 {
		msg += fmt.Sprintf(", %d casts", result.Casts)
	}
	c.Renderer.Success(msg)
	return nil
}
