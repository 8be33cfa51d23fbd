package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapschema/internal/cli/config"
	"github.com/leapstack-labs/leapschema/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapschema project",
		Long: `Initialize a new leapschema project with a configuration file and an
empty schema document.

Use --example to create a document split across files, with domains that
build on each other, and a production environment in the configuration.`,
		Example: `  # Initialize in current directory
  leapschema init

  # Initialize with example domains
  leapschema init --example

  # Initialize in a new directory
  leapschema init my-project

  # Force overwrite existing config
  leapschema init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example document with related domains")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, config.ConfigFileName)); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles(template)
	for _, f := range files {
		r.Println("  created " + f)
	}

	r.Println("")
	r.Success("leapschema project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Point the target in " + config.ConfigFileName + " at your database")
	r.Println("  2. Run 'leapschema dump --write' to capture its domains")
	r.Println("  3. Edit the document and run 'leapschema plan'")

	return nil
}
