package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

const salesDoc = `
schema sales:
  domain amount:
    type: numeric(12,2)
    not_null: true
    default: 0
    check_constraints:
      - name: amount_nonneg
        expression: VALUE >= 0
  table orders:
    columns: []
`

const publicDoc = `
schema public:
  domain posint:
    type: integer
    check_constraints:
      posint_check: VALUE > 0
    owner: app
    description: positive integers
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	writeFile(t, path, salesDoc)

	doc, err := Load(path)
	require.NoError(t, err)

	section, ok := doc["schema sales"].(map[string]any)
	require.True(t, ok, "expected a mapping, got %T", doc["schema sales"])
	amount := section["domain amount"].(map[string]any)
	assert.Equal(t, "numeric(12,2)", amount["type"])
	assert.Equal(t, true, amount["not_null"])
	assert.Equal(t, 0, amount["default"])
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read document")

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "schema public: [unterminated\n")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	writeFile(t, path, "")

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestLoad_DirectoryMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "public.yaml"), publicDoc)
	writeFile(t, filepath.Join(dir, "sales", "amount.yml"), salesDoc)
	writeFile(t, filepath.Join(dir, "sales", "more.yaml"), "schema sales:\n  domain qty:\n    type: public.posint\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not yaml")
	writeFile(t, filepath.Join(dir, ".git", "config.yaml"), "schema hidden: {}\n")

	doc, err := Load(dir)
	require.NoError(t, err)

	assert.Len(t, doc, 2)
	sales := doc["schema sales"].(map[string]any)
	assert.Contains(t, sales, "domain amount")
	assert.Contains(t, sales, "domain qty")
	assert.NotContains(t, doc, "schema hidden")
}

func TestLoad_DirectoryConflict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), publicDoc)
	writeFile(t, filepath.Join(dir, "b.yaml"), publicDoc)

	_, err := Load(dir)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "schema public domain posint", conflict.Key)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml")}, conflict.Files)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "public.yaml"), publicDoc)
	writeFile(t, filepath.Join(dir, "sales.yaml"), salesDoc+"  domain qty:\n    type: posint\n")

	c, err := LoadCatalog(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"public.posint", "sales.amount", "sales.qty"}, c.Keys())

	amount, ok := c.Domain("sales.amount")
	require.True(t, ok)
	assert.Equal(t, "0", amount.Default)
	assert.Equal(t, []dbobject.CheckConstraint{{Name: "amount_nonneg", Expression: "VALUE >= 0"}}, amount.Checks)
}

func TestLoadCatalog_ReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	writeFile(t, path, "schema public:\n  domain d:\n    type: public.ghost\n")

	_, err := LoadCatalog(path, nil)
	var uerr *dbobject.UnresolvedReferenceError
	require.ErrorAs(t, err, &uerr)
	assert.True(t, strings.HasPrefix(err.Error(), path+": "))

	_, err = LoadCatalog(path, []string{"public.ghost"})
	assert.NoError(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	writeFile(t, path, publicDoc+salesDoc)

	c, err := LoadCatalog(path, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, c.ToMap()))
	assert.True(t, strings.HasPrefix(buf.String(), "schema public:\n  domain posint:\n"), buf.String())

	out := filepath.Join(t.TempDir(), "out", "dump.yaml")
	require.NoError(t, Write(out, c.ToMap()))
	again, err := LoadCatalog(out, nil)
	require.NoError(t, err)
	assert.Equal(t, c.ToMap(), again.ToMap())

	ops, err := c.DiffMap(again)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestFilter(t *testing.T) {
	doc := map[string]any{
		"schema public": map[string]any{"domain posint": map[string]any{"type": "integer"}},
		"schema sales": map[string]any{
			"domain qty":   map[string]any{"type": "public.posint"},
			"table orders": map[string]any{},
		},
	}

	kept, excluded := Filter(doc, nil)
	assert.Equal(t, doc, kept)
	assert.Empty(t, excluded)

	kept, excluded = Filter(doc, []string{"public"})
	assert.Equal(t, []string{"schema public"}, sortedKeys(kept))
	assert.Equal(t, []string{"sales.qty"}, excluded)

	kept, excluded = Filter(doc, []string{"sales"})
	assert.Equal(t, []string{"public.posint"}, excluded)
	c, err := Catalog(kept, excluded)
	require.NoError(t, err, "sales.qty may be based on a filtered-out domain")
	assert.Equal(t, []string{"sales.qty"}, c.Keys())
}

func TestFilter_BareSectionsAndCasts(t *testing.T) {
	doc := map[string]any{
		"public": map[string]any{"domain posint": map[string]any{"type": "integer"}},
		"sales": map[string]any{
			"domain qty": map[string]any{"type": "public.posint"},
		},
		"schema Audit": map[string]any{
			"domain Actor": map[string]any{"type": "text"},
		},
		"cast (sales.qty AS text)": map[string]any{"context": "explicit", "method": "inout"},
	}

	kept, excluded := Filter(doc, []string{"public"})
	assert.Equal(t, []string{"cast (sales.qty AS text)", "public"}, sortedKeys(kept))
	assert.Equal(t, []string{"sales.qty", `"Audit"."Actor"`}, excluded)

	c, err := Catalog(kept, excluded)
	require.NoError(t, err, "the kept cast may convert a filtered-out domain")
	assert.Equal(t, []string{"public.posint"}, c.Keys())
	assert.Equal(t, []string{"(sales.qty AS text)"}, c.CastKeys())
}

func TestLoad_DirectoryCastConflict(t *testing.T) {
	dir := t.TempDir()
	cast := "cast (posint AS text):\n  context: explicit\n  method: inout\n"
	writeFile(t, filepath.Join(dir, "a.yaml"), publicDoc+cast)
	writeFile(t, filepath.Join(dir, "b.yaml"), cast)

	_, err := Load(dir)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "cast (posint AS text)", conflict.Key)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml")}, conflict.Files)
}
