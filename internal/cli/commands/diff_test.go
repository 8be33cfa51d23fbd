package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/leapstack-labs/leapschema/internal/cli/testutil"
	"github.com/leapstack-labs/leapschema/internal/cli/output"
)

func TestDiffCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	loadProject(t, dir)
	old := clitestutil.WriteFile(t, filepath.Join(dir, "old.yaml"), `schema public:
  domain posint:
    type: integer
    check_constraints:
      posint_check: VALUE >= 0
schema legacy:
  domain code:
    type: text
`)

	out, _, err := execute(t, NewDiffCommand(), old)
	require.NoError(t, err)

	assert.Equal(t, "-- "+old+" -> "+filepath.Join(dir, "schema.yaml")+"\n\n"+
		"CREATE SCHEMA sales;\n\n"+
		"DROP DOMAIN legacy.code;\n\n"+
		"ALTER DOMAIN public.posint DROP CONSTRAINT posint_check;\n\n"+
		"ALTER DOMAIN public.posint SET NOT NULL;\n\n"+
		"ALTER DOMAIN public.posint ADD CONSTRAINT posint_check CHECK (VALUE > 0);\n\n"+
		"CREATE DOMAIN sales.amount AS numeric(12,2)\n    DEFAULT 0;\n\n"+
		"DROP SCHEMA legacy;\n", out)
}

func TestDiffCommand_IdenticalDocuments(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	loadProject(t, dir)
	doc := filepath.Join(dir, "schema.yaml")

	out, _, err := execute(t, NewDiffCommand(), doc, doc)
	require.NoError(t, err)
	assert.Equal(t, "-- no changes\n", out)
}

func TestDiffCommand_JSON(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	clitestutil.WriteFile(t, filepath.Join(dir, "leapschema.yaml"), clitestutil.ProjectConfig+"output: json\n")
	loadProject(t, dir)
	empty := clitestutil.WriteFile(t, filepath.Join(dir, "empty.yaml"), "")

	out, _, err := execute(t, NewDiffCommand(), empty)
	require.NoError(t, err)

	var plan output.PlanOutput
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Operations, 3)
	assert.Equal(t, []string{
		"CREATE SCHEMA sales",
		"CREATE DOMAIN public.posint AS integer\n    NOT NULL\n    CONSTRAINT posint_check CHECK (VALUE > 0)",
		"CREATE DOMAIN sales.amount AS numeric(12,2)\n    DEFAULT 0",
	}, plan.Statements)
}

func TestDiffCommand_Errors(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	loadProject(t, dir)
	bad := clitestutil.WriteFile(t, filepath.Join(dir, "bad.yaml"), "schema public:\n  domain d:\n    not_null: true\n")

	_, _, err := execute(t, NewDiffCommand(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required key "type"`)

	_, _, err = execute(t, NewDiffCommand())
	assert.Error(t, err, "current document is required")
}
