package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPlanCommand(t *testing.T) {
	cmd := NewPlanCommand()

	assert.Equal(t, "plan", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("no-save"), "flag %q should exist", "no-save")
}

func TestNewDiffCommand(t *testing.T) {
	cmd := NewDiffCommand()

	assert.Equal(t, "diff <current> [target]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Error(t, cmd.Args(cmd, nil), "current document is required")
	assert.Error(t, cmd.Args(cmd, []string{"a", "b", "c"}))
}

func TestNewDumpCommand(t *testing.T) {
	cmd := NewDumpCommand()

	assert.Equal(t, "dump [file]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().ShorthandLookup("w"), "--write should have a shorthand")
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	assert.Equal(t, "validate [document]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history [plan-id]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	limit := cmd.Flags().Lookup("limit")
	if assert.NotNil(t, limit) {
		assert.Equal(t, "20", limit.DefValue)
	}
}
