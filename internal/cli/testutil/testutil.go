// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapschema/internal/cli/output"
)

// ProjectConfig is the leapschema.yaml written by SetupTestProject.
const ProjectConfig = `document: schema.yaml
state_path: .leapschema/state.db
target:
  type: postgres
  host: localhost
  port: 5432
  database: app
  user: postgres
`

// SchemaDocument is the schema.yaml written by SetupTestProject.
const SchemaDocument = `schema public:
  domain posint:
    type: integer
    not_null: true
    check_constraints:
      posint_check: VALUE > 0

schema sales:
  domain amount:
    type: numeric(12,2)
    default: 0
`

// SetupTestProject creates a temporary project with a config file and a
// schema document, and returns its directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	WriteFile(t, filepath.Join(dir, "leapschema.yaml"), ProjectConfig)
	WriteFile(t, filepath.Join(dir, "schema.yaml"), SchemaDocument)
	return dir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererSQL creates a new test renderer in SQL mode.
func NewTestRendererSQL() *TestRenderer {
	return NewTestRenderer(output.ModeSQL, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertSQLScript checks that every non-comment paragraph of a script is a
// single statement terminated by a semicolon.
func AssertSQLScript(t *testing.T, script string) {
	t.Helper()
	AssertNoANSI(t, script)
	for _, stmt := range strings.Split(strings.TrimSpace(script), "\n\n") {
		if strings.HasPrefix(stmt, "--") {
			continue
		}
		if !strings.HasSuffix(stmt, ";") || strings.Count(stmt, ";") != 1 {
			t.Errorf("malformed statement in script: %q", stmt)
		}
	}
}
