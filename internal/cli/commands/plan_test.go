package commands

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/leapstack-labs/leapschema/internal/cli/testutil"
	"github.com/leapstack-labs/leapschema/internal/state"
	"github.com/leapstack-labs/leapschema/internal/testutil"
	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

func listPlans(t *testing.T, path string) []*state.Plan {
	t.Helper()
	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(path))
	defer store.Close()
	plans, err := store.ListPlans(context.Background(), 0)
	require.NoError(t, err)
	return plans
}

func TestPlanCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	cfg := loadProject(t, dir)
	mock := mockDatabase(t, []string{"public"}, posint)

	out, _, err := execute(t, NewPlanCommand())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "-- postgres://postgres@localhost:5432/app -> "+filepath.Join(dir, "schema.yaml")+"\n\n"+
		"CREATE SCHEMA sales;\n\n"+
		"CREATE DOMAIN sales.amount AS numeric(12,2)\n    DEFAULT 0;\n", out)
	clitestutil.AssertSQLScript(t, out)

	plans := listPlans(t, cfg.StatePath)
	require.Len(t, plans, 1)
	assert.Equal(t, "postgres://postgres@localhost:5432/app", plans[0].Source)
	assert.Equal(t, []dbobject.OpKind{dbobject.OpCreateSchema, dbobject.OpCreateDomain},
		[]dbobject.OpKind{plans[0].Operations[0].Kind, plans[0].Operations[1].Kind})
}

func TestPlanCommand_NoChanges(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	cfg := loadProject(t, dir)
	mockDatabase(t, []string{"public", "sales"}, posint,
		liveDomain{"sales", "amount", "numeric(12,2)", false, "0", "postgres", ""})

	out, _, err := execute(t, NewPlanCommand(), "--no-save")
	require.NoError(t, err)
	assert.Equal(t, "-- no changes\n", out)
	assert.Empty(t, listPlans(t, cfg.StatePath))
}

func TestPlanCommand_ReplacesDependents(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	clitestutil.WriteFile(t, filepath.Join(dir, "schema.yaml"), `schema public:
  domain posint:
    type: bigint
  domain qty:
    type: posint
`)
	loadProject(t, dir)
	mockDatabase(t, []string{"public"},
		liveDomain{"public", "posint", "integer", false, "", "postgres", ""},
		liveDomain{"public", "qty", "posint", false, "", "postgres", ""})

	out, _, err := execute(t, NewPlanCommand(), "--no-save")
	require.NoError(t, err)

	assert.Contains(t, out, "DROP DOMAIN public.qty;\n\nDROP DOMAIN public.posint;\n\n"+
		"CREATE DOMAIN public.posint AS bigint;\n\nCREATE DOMAIN public.qty AS posint;\n")
}

func TestPlanCommand_Errors(t *testing.T) {
	t.Run("no target", func(t *testing.T) {
		dir := clitestutil.SetupTestProject(t)
		clitestutil.WriteFile(t, filepath.Join(dir, "leapschema.yaml"), "document: schema.yaml\n")
		loadProject(t, dir)

		_, _, err := execute(t, NewPlanCommand())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no target configured")
	})

	t.Run("missing document", func(t *testing.T) {
		dir := clitestutil.SetupTestProject(t)
		clitestutil.WriteFile(t, filepath.Join(dir, "leapschema.yaml"), strings.Replace(clitestutil.ProjectConfig, "schema.yaml", "missing.yaml", 1))
		loadProject(t, dir)

		_, _, err := execute(t, NewPlanCommand())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "document does not exist")
	})

	t.Run("unresolved base type in database", func(t *testing.T) {
		dir := clitestutil.SetupTestProject(t)
		loadProject(t, dir)
		mockDatabase(t, []string{"public"}, liveDomain{"public", "odd", "public.ghost", false, "", "postgres", ""})

		_, _, err := execute(t, NewPlanCommand())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read database")
		assert.Contains(t, err.Error(), "public.odd -> public.ghost")
	})
}

func TestPlanCommand_SchemaFilter(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	clitestutil.WriteFile(t, filepath.Join(dir, "leapschema.yaml"), clitestutil.ProjectConfig+"schemas: [public]\n")
	loadProject(t, dir)
	mockDatabase(t, []string{"public", "legacy"}, posint,
		liveDomain{"legacy", "old", "text", false, "", "postgres", ""})

	out, _, err := execute(t, NewPlanCommand(), "--no-save")
	require.NoError(t, err)
	assert.Equal(t, "-- no changes\n", out, "sales and legacy are outside the filter")
}

func TestPlanCommand_SchemaFilterBareSection(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	clitestutil.WriteFile(t, filepath.Join(dir, "leapschema.yaml"), clitestutil.ProjectConfig+"schemas: [public]\n")
	clitestutil.WriteFile(t, filepath.Join(dir, "schema.yaml"), `schema public:
  domain posint:
    type: integer
    not_null: true
    check_constraints:
      posint_check: VALUE > 0
sales:
  domain qty:
    type: posint
`)
	loadProject(t, dir)
	mockDatabase(t, []string{"public"}, posint)

	out, _, err := execute(t, NewPlanCommand(), "--no-save")
	require.NoError(t, err)
	assert.Equal(t, "-- no changes\n", out, "a bare sales section is outside the filter too")
}

func TestPlanCommand_StoredDefaultForm(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	loadProject(t, dir)
	mockDatabase(t, []string{"public", "sales"}, posint,
		liveDomain{"sales", "amount", "numeric(12,2)", false, "'0'::numeric", "postgres", ""})

	out, _, err := execute(t, NewPlanCommand(), "--no-save")
	require.NoError(t, err)
	assert.Equal(t, "-- no changes\n", out)
}

func TestPlanCommand_Casts(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	clitestutil.WriteFile(t, filepath.Join(dir, "schema.yaml"), clitestutil.SchemaDocument+`
cast (posint AS text):
  context: assignment
  method: inout
cast (posint AS bigint):
  context: implicit
  method: binary coercible
  description: widening
`)
	loadProject(t, dir)
	mockDatabaseWithCasts(t, []string{"public", "sales"},
		[]liveCast{
			{"posint", "text", "", "e", "i"},
			{"posint", "boolean", "public.posint_bool(posint)", "e", "f"},
		},
		posint,
		liveDomain{"sales", "amount", "numeric(12,2)", false, "0", "postgres", ""})

	out, _, err := execute(t, NewPlanCommand(), "--no-save")
	require.NoError(t, err)

	assert.Equal(t, "-- postgres://postgres@localhost:5432/app -> "+filepath.Join(dir, "schema.yaml")+"\n\n"+
		"DROP CAST (posint AS boolean);\n\n"+
		"DROP CAST (posint AS text);\n\n"+
		"CREATE CAST (posint AS bigint)\n    WITHOUT FUNCTION\n    AS IMPLICIT;\n\n"+
		"COMMENT ON CAST (posint AS bigint) IS 'widening';\n\n"+
		"CREATE CAST (posint AS text)\n    WITH INOUT\n    AS ASSIGNMENT;\n", out)
	clitestutil.AssertSQLScript(t, out)
}
