package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/leapstack-labs/leapschema/internal/cli/testutil"
	"github.com/leapstack-labs/leapschema/internal/document"
)

func TestDumpCommand_Stdout(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	loadProject(t, dir)
	mockDatabase(t, []string{"public", "reporting"}, posint)

	out, _, err := execute(t, NewDumpCommand())
	require.NoError(t, err)

	assert.Contains(t, out, "schema public:\n  domain posint:\n")
	assert.Contains(t, out, "owner: postgres")
	assert.Contains(t, out, "schema reporting: {}")
}

func TestDumpCommand_FileRoundTrip(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	loadProject(t, dir)
	mockDatabase(t, []string{"public"}, posint,
		liveDomain{"public", "small", "posint", false, "1", "postgres", ""})
	path := filepath.Join(dir, "dumps", "baseline.yaml")

	_, _, err := execute(t, NewDumpCommand(), path)
	require.NoError(t, err)

	c, err := document.LoadCatalog(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"public.posint", "public.small"}, c.Keys())
	dep, ok := c.DependencyOf("public.small")
	require.True(t, ok)
	assert.Equal(t, "public.posint", dep)
}

func TestDumpCommand_Write(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	cfg := loadProject(t, dir)
	mockDatabase(t, []string{"public"}, posint)

	out, _, err := execute(t, NewDumpCommand(), "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 domains in 1 schemas to "+cfg.Document)

	c, err := document.LoadCatalog(cfg.Document, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"public.posint"}, c.Keys())
}

func TestDumpCommand_NoTarget(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	clitestutil.WriteFile(t, filepath.Join(dir, "leapschema.yaml"), "document: schema.yaml\n")
	loadProject(t, dir)

	_, _, err := execute(t, NewDumpCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no target configured")
}
