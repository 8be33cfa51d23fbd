package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapschema/internal/cli/config"
	clitestutil "github.com/leapstack-labs/leapschema/internal/cli/testutil"
	"github.com/leapstack-labs/leapschema/internal/introspect"
	"github.com/leapstack-labs/leapschema/internal/testutil"
)

var (
	domainPattern   = regexp.QuoteMeta("t.typtype = 'd'")
	schemaPattern   = `SELECT n\.nspname\s+FROM pg_namespace`
	typeNamePattern = regexp.QuoteMeta("t.typtype <> 'd'")
	castPattern     = regexp.QuoteMeta("FROM pg_cast")
	domainColumns   = []string{"nspname", "typname", "format_type", "typnotnull", "typdefault", "owner", "description", "constraints"}
	castColumns     = []string{"source", "target", "function", "context", "method", "description"}
)

// liveDomain is one row of the mocked domain query.
type liveDomain struct {
	schema, name, baseType string
	notNull                bool
	def, owner             string
	constraints            string
}

// liveCast is one row of the mocked cast query.
type liveCast struct {
	source, target, function, context, method string
}

// posint matches the public.posint domain of the test project's document.
var posint = liveDomain{"public", "posint", "integer", true, "", "postgres", `[{"name":"posint_check","expression":"CHECK ((VALUE > 0))"}]`}

// loadProject loads the project's configuration the way the root command does.
func loadProject(t *testing.T, dir string) *config.Config {
	t.Helper()
	t.Cleanup(config.ResetConfig)
	cfg, err := config.LoadConfig(filepath.Join(dir, config.ConfigFileName), nil)
	require.NoError(t, err)
	return cfg
}

// mockDatabase makes connect return an inspector over a sqlmock database
// holding the given schemas and domains.
func mockDatabase(t *testing.T, schemas []string, domains ...liveDomain) sqlmock.Sqlmock {
	t.Helper()
	return mockDatabaseWithCasts(t, schemas, nil, domains...)
}

// mockDatabaseWithCasts is mockDatabase with casts.
func mockDatabaseWithCasts(t *testing.T, schemas []string, casts []liveCast, domains ...liveDomain) sqlmock.Sqlmock {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)

	rows := sqlmock.NewRows(domainColumns)
	for _, d := range domains {
		constraints := d.constraints
		if constraints == "" {
			constraints = "[]"
		}
		rows.AddRow(d.schema, d.name, d.baseType, d.notNull, d.def, d.owner, "", constraints)
	}
	schemaRows := sqlmock.NewRows([]string{"nspname"})
	for _, s := range schemas {
		schemaRows.AddRow(s)
	}
	mock.ExpectQuery(schemaPattern).WillReturnRows(schemaRows)
	castRows := sqlmock.NewRows(castColumns)
	for _, c := range casts {
		castRows.AddRow(c.source, c.target, c.function, c.context, c.method, "")
	}
	mock.ExpectQuery(domainPattern).WillReturnRows(rows)
	mock.ExpectQuery(castPattern).WillReturnRows(castRows)
	mock.ExpectQuery(typeNamePattern).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectClose()

	useConnect(t, func(_ context.Context, _ *config.TargetConfig, logger *slog.Logger) (snapshotSource, error) {
		return introspect.New(db, logger), nil
	})
	return mock
}

func useConnect(t *testing.T, fn func(context.Context, *config.TargetConfig, *slog.Logger) (snapshotSource, error)) {
	t.Helper()
	old := connect
	connect = fn
	t.Cleanup(func() { connect = old })
}

// execute runs cmd with args and returns its stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{}, args...)) // nil would make cobra read os.Args
	cmd.SetContext(config.WithLogger(context.Background(), testutil.NewTestLogger(t)))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewCommandContext_OpensStore(t *testing.T) {
	dir := clitestutil.SetupTestProject(t)
	cfg := loadProject(t, dir)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	c, cleanup, err := NewCommandContext(cmd)
	require.NoError(t, err)
	defer cleanup()

	assert.Same(t, cfg, c.Cfg)
	require.NotNil(t, c.Store)
	assert.FileExists(t, cfg.StatePath)
}

func TestGetConfig_Defaults(t *testing.T) {
	config.ResetConfig()

	cfg := getConfig()
	assert.Equal(t, config.DefaultDocument, cfg.Document)
	assert.Equal(t, config.DefaultStateFile, cfg.StatePath)
}

func TestLiveCatalog_ConnectError(t *testing.T) {
	useConnect(t, func(context.Context, *config.TargetConfig, *slog.Logger) (snapshotSource, error) {
		return nil, errors.New("connection refused")
	})

	_, err := liveCatalog(context.Background(), &config.Config{Target: &config.TargetConfig{Database: "app"}}, testutil.NewTestLogger(t))
	assert.EqualError(t, err, "connection refused")
}
