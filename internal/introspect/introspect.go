// Package introspect reads the live domain catalog of a PostgreSQL database
// into the domain rows, cast rows, schema names and type names a
// dbobject.TypeCatalog is built from.
package introspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapschema/internal/config"
	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// systemSchemaFilter excludes catalogs, toast and temp schemas.
const systemSchemaFilter = `n.nspname NOT IN ('pg_catalog', 'information_schema')
	AND n.nspname NOT LIKE 'pg\_%'`

// domainQuery returns one row per domain with its CHECK constraints
// aggregated as JSON in creation order.
const domainQuery = `
	SELECT
		n.nspname,
		t.typname,
		format_type(t.typbasetype, t.typtypmod),
		t.typnotnull,
		coalesce(t.typdefault, ''),
		pg_get_userbyid(t.typowner),
		coalesce(obj_description(t.oid, 'pg_type'), ''),
		coalesce((
			SELECT json_agg(json_build_object(
				'name', c.conname,
				'expression', pg_get_constraintdef(c.oid)) ORDER BY c.oid)
			FROM pg_constraint c
			WHERE c.contypid = t.oid AND c.contype = 'c'
		), '[]')
	FROM pg_type t
	JOIN pg_namespace n ON n.oid = t.typnamespace
	WHERE t.typtype = 'd'
	AND ` + systemSchemaFilter + `
	ORDER BY n.nspname, t.typname`

const schemaQuery = `
	SELECT n.nspname
	FROM pg_namespace n
	WHERE ` + systemSchemaFilter + `
	ORDER BY n.nspname`

// typeNameQuery lists user types that are not domains (enums, composites,
// ranges, table row types) so domains based on them can be linked. Names
// are quoted the way format_type reports them.
const typeNameQuery = `
	SELECT format('%I.%I', n.nspname, t.typname)
	FROM pg_type t
	JOIN pg_namespace n ON n.oid = t.typnamespace
	WHERE t.typtype <> 'd'
	AND ` + systemSchemaFilter + `
	ORDER BY 1`

// castQuery returns the casts that involve a user type or function.
// Built-in casts between pg_catalog types are left out.
const castQuery = `
	SELECT
		c.castsource::regtype::text,
		c.casttarget::regtype::text,
		CASE WHEN c.castmethod = 'f' THEN c.castfunc::regprocedure::text ELSE '' END,
		c.castcontext::text,
		c.castmethod::text,
		coalesce(d.description, '')
	FROM pg_cast c
	JOIN pg_type s ON s.oid = c.castsource
	JOIN pg_namespace sn ON sn.oid = s.typnamespace
	JOIN pg_type t ON t.oid = c.casttarget
	JOIN pg_namespace tn ON tn.oid = t.typnamespace
	LEFT JOIN pg_proc p ON p.oid = c.castfunc
	LEFT JOIN pg_namespace pn ON pn.oid = p.pronamespace
	LEFT JOIN pg_description d ON d.objoid = c.oid AND d.classoid = 'pg_cast'::regclass AND d.objsubid = 0
	WHERE sn.nspname NOT LIKE 'pg\_%' AND sn.nspname <> 'information_schema'
	OR tn.nspname NOT LIKE 'pg\_%' AND tn.nspname <> 'information_schema'
	OR (c.castfunc <> 0 AND pn.nspname NOT LIKE 'pg\_%' AND pn.nspname <> 'information_schema')
	ORDER BY 1, 2`

// Snapshot is what one introspection pass returns.
type Snapshot struct {
	Rows    []dbobject.Row
	Casts   []dbobject.CastRow
	Schemas []string
	// TypeNames are qualified names of non-domain user types, plus domains
	// of schemas left out by the schema filter.
	TypeNames []string
}

// Catalog builds a linked catalog from the snapshot. extraTypes are
// additional type names that base types may refer to.
func (s *Snapshot) Catalog(extraTypes []string) (*dbobject.TypeCatalog, error) {
	c, err := dbobject.FromRows(s.Rows)
	if err == nil {
		c, err = c.WithCasts(s.Casts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog from database: %w", err)
	}
	return c.LinkRefs(s.Schemas, append(slices.Clone(s.TypeNames), extraTypes...))
}

// Inspector runs catalog queries over a database/sql connection.
type Inspector struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// New wraps an existing connection.
// If logger is nil, a discard logger is used.
func New(db *sql.DB, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inspector{DB: db, Logger: logger}
}

// Connect opens and pings a PostgreSQL connection for the target.
func Connect(ctx context.Context, target *config.TargetConfig, logger *slog.Logger) (*Inspector, error) {
	if target == nil {
		return nil, fmt.Errorf("no target database configured")
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target configuration: %w", err)
	}
	in := New(nil, logger)

	in.Logger.Debug("connecting to postgres",
		slog.String("host", target.Host),
		slog.String("database", target.Database))

	db, err := sql.Open("pgx", target.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	in.DB = db
	return in, nil
}

// Close closes the database connection.
func (in *Inspector) Close() error {
	if in.DB != nil {
		in.Logger.Debug("closing database connection")
		return in.DB.Close()
	}
	return nil
}

// Snapshot reads domains, casts, schemas and other type names. When include
// is non-empty only those schemas are cataloged; domains of other schemas
// are still reported as type names so references to them resolve. Casts
// belong to no schema and are always read.
func (in *Inspector) Snapshot(ctx context.Context, include []string) (*Snapshot, error) {
	if in.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	var (
		rows      []dbobject.Row
		casts     []dbobject.CastRow
		schemas   []string
		typeNames []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = in.domains(gctx)
		return err
	})
	g.Go(func() (err error) {
		casts, err = in.casts(gctx)
		return err
	})
	g.Go(func() (err error) {
		schemas, err = in.names(gctx, schemaQuery, "schemas")
		return err
	})
	g.Go(func() (err error) {
		typeNames, err = in.names(gctx, typeNameQuery, "type names")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{Rows: rows, Casts: casts, Schemas: schemas, TypeNames: typeNames}
	if len(include) > 0 {
		snap = snap.filter(include)
	}

	in.Logger.Debug("introspected database",
		slog.Int("domains", len(snap.Rows)),
		slog.Int("casts", len(snap.Casts)),
		slog.Int("schemas", len(snap.Schemas)),
		slog.Int("type_names", len(snap.TypeNames)))
	return snap, nil
}

func (s *Snapshot) filter(include []string) *Snapshot {
	keep := make(map[string]bool, len(include))
	for _, name := range include {
		keep[name] = true
	}

	out := &Snapshot{Casts: s.Casts, TypeNames: slices.Clone(s.TypeNames)}
	for _, r := range s.Rows {
		if keep[r.Schema] {
			out.Rows = append(out.Rows, r)
		} else {
			out.TypeNames = append(out.TypeNames, dbobject.TypeName(r.Schema, r.Name))
		}
	}
	for _, name := range s.Schemas {
		if keep[name] {
			out.Schemas = append(out.Schemas, name)
		}
	}
	return out
}

func (in *Inspector) domains(ctx context.Context) ([]dbobject.Row, error) {
	rows, err := in.DB.QueryContext(ctx, domainQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []dbobject.Row
	for rows.Next() {
		var (
			r           dbobject.Row
			constraints []byte
		)
		if err := rows.Scan(&r.Schema, &r.Name, &r.BaseType, &r.NotNull, &r.Default,
			&r.Owner, &r.Description, &constraints); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		if r.Constraints, err = decodeConstraints(constraints); err != nil {
			return nil, fmt.Errorf("domain %s.%s: %w", r.Schema, r.Name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domains: %w", err)
	}
	return out, nil
}

func (in *Inspector) casts(ctx context.Context) ([]dbobject.CastRow, error) {
	rows, err := in.DB.QueryContext(ctx, castQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query casts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []dbobject.CastRow
	for rows.Next() {
		var r dbobject.CastRow
		if err := rows.Scan(&r.Source, &r.Target, &r.Function, &r.Context, &r.Method, &r.Description); err != nil {
			return nil, fmt.Errorf("failed to scan cast: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating casts: %w", err)
	}
	return out, nil
}

func (in *Inspector) names(ctx context.Context, query, what string) ([]string, error) {
	rows, err := in.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return out, nil
}

// decodeConstraints turns the aggregated JSON into constraints, reducing
// pg_get_constraintdef output ("CHECK ((VALUE > 0)) NOT VALID") to the
// bare expression.
func decodeConstraints(data []byte) ([]dbobject.CheckConstraint, error) {
	var raw []dbobject.CheckConstraint
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode constraints: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	for i := range raw {
		expr := strings.TrimSpace(raw[i].Expression)
		expr = strings.TrimSuffix(expr, " NOT VALID")
		expr = strings.TrimPrefix(expr, "CHECK ")
		raw[i].Expression = strings.TrimSpace(expr)
	}
	return raw, nil
}
