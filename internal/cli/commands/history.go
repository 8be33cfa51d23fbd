package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapschema/internal/cli/output"
	"github.com/leapstack-labs/leapschema/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// HistoryEntry is the JSON form of a stored plan summary.
type HistoryEntry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"`
	Document   string    `json:"document"`
	Operations int       `json:"operations"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}
	cmd := &cobra.Command{
		Use:   "history [plan-id]",
		Short: "List recorded plans or show one of them",
		Long: `List the plans recorded by 'leapschema plan', newest first.

Given a plan ID, print that plan again in the selected output format, for
example to regenerate its SQL script.`,
		Example: `  leapschema history
  leapschema history --limit 5
  leapschema history 3f0c9a52-4c1e-4c55-9d1e-0f5b7e3e0a11 -o sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of plans to list (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 1 {
		plan, err := c.Store.GetPlan(cmd.Context(), args[0])
		if errors.Is(err, state.ErrPlanNotFound) {
			return fmt.Errorf("no plan with ID %s\nHint: run 'leapschema history' to list recorded plans", args[0])
		}
		if err != nil {
			return err
		}
		return c.Renderer.Plan(output.PlanOutput{
			ID:         plan.ID,
			Source:     plan.Source,
			Document:   plan.Document,
			Operations: plan.Operations,
		})
	}

	plans, err := c.Store.ListPlans(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}

	entries := make([]HistoryEntry, len(plans))
	for i, p := range plans {
		entries[i] = HistoryEntry{
			ID:         p.ID,
			CreatedAt:  p.CreatedAt,
			Source:     p.Source,
			Document:   p.Document,
			Operations: len(p.Operations),
		}
	}

	if c.Renderer.EffectiveMode() == output.ModeJSON {
		return c.Renderer.JSON(entries)
	}
	if len(entries) == 0 {
		c.Renderer.Println("No plans recorded yet.")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.ID,
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Source,
			e.Document,
			strconv.Itoa(e.Operations),
		}
	}
	c.Renderer.Table([]string{"ID", "Created", "Source", "Document", "Operations"}, rows)
	return nil
}
