package dbobject

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// OpKind identifies the statement an Operation maps to.
type OpKind string

// Operation kinds.
const (
	OpCreateSchema     OpKind = "CreateSchema"
	OpDropSchema       OpKind = "DropSchema"
	OpCreateDomain     OpKind = "CreateDomain"
	OpDropDomain       OpKind = "DropDomain"
	OpAlterSetNotNull  OpKind = "AlterSetNotNull"
	OpAlterDropNotNull OpKind = "AlterDropNotNull"
	OpAlterSetDefault  OpKind = "AlterSetDefault"
	OpAlterDropDefault OpKind = "AlterDropDefault"
	OpAddConstraint    OpKind = "AddConstraint"
	OpDropConstraint   OpKind = "DropConstraint"
	OpSetOwner         OpKind = "SetOwner"
	OpSetComment       OpKind = "SetComment"
	OpCreateCast       OpKind = "CreateCast"
	OpDropCast         OpKind = "DropCast"
	OpCommentCast      OpKind = "CommentCast"
)

// Operation is a single schema change. It holds everything needed to render
// its statement, so the renderer never looks back into a catalog.
type Operation struct {
	Kind   OpKind `json:"kind"`
	Schema string `json:"schema"`
	// Name is empty for schema-level operations.
	Name string `json:"name,omitempty"`

	BaseType    string            `json:"base_type,omitempty"`
	NotNull     bool              `json:"not_null,omitempty"`
	Default     string            `json:"default,omitempty"`
	Constraint  *CheckConstraint  `json:"constraint,omitempty"`
	Constraints []CheckConstraint `json:"constraints,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	// Comment nil means COMMENT ... IS NULL.
	Comment *string `json:"comment,omitempty"`

	// Cast operations carry no schema; they are identified by their types.
	CastSource string      `json:"cast_source,omitempty"`
	CastTarget string      `json:"cast_target,omitempty"`
	Context    CastContext `json:"context,omitempty"`
	Method     CastMethod  `json:"method,omitempty"`
	Function   string      `json:"function,omitempty"`
}

// IsCast reports whether the operation acts on a cast.
func (op Operation) IsCast() bool {
	return op.CastSource != ""
}

// Target returns the qualified name the operation acts on, or
// "(source AS target)" for casts.
func (op Operation) Target() string {
	if op.IsCast() {
		return castKey(op.CastSource, op.CastTarget)
	}
	if op.Name == "" {
		return op.Schema
	}
	return op.Schema + "." + op.Name
}

// String is a compact, stable description used in logs and test failures.
func (op Operation) String() string {
	s := fmt.Sprintf("%s %s", op.Kind, op.Target())
	if op.Constraint != nil {
		s += fmt.Sprintf(" [%s]", op.Constraint.Name)
	}
	return s
}

// SQL renders the operation as a single DDL statement.
func (op Operation) SQL() string {
	target := quoteQualified(op.Schema, op.Name)
	alter := "ALTER DOMAIN " + target

	switch op.Kind {
	case OpCreateSchema:
		return "CREATE SCHEMA " + quoteIdent(op.Schema)
	case OpDropSchema:
		return "DROP SCHEMA " + quoteIdent(op.Schema)
	case OpCreateDomain:
		return op.createDomainSQL(target)
	case OpDropDomain:
		return "DROP DOMAIN " + target
	case OpAlterSetNotNull:
		return alter + " SET NOT NULL"
	case OpAlterDropNotNull:
		return alter + " DROP NOT NULL"
	case OpAlterSetDefault:
		return alter + " SET DEFAULT " + op.Default
	case OpAlterDropDefault:
		return alter + " DROP DEFAULT"
	case OpAddConstraint:
		return alter + " ADD " + checkClause(*op.Constraint)
	case OpDropConstraint:
		return alter + " DROP CONSTRAINT " + quoteIdent(op.Constraint.Name)
	case OpSetOwner:
		return alter + " OWNER TO " + quoteIdent(op.Owner)
	case OpSetComment:
		if op.Comment == nil {
			return "COMMENT ON DOMAIN " + target + " IS NULL"
		}
		return "COMMENT ON DOMAIN " + target + " IS " + quoteLiteral(*op.Comment)
	case OpCreateCast:
		return op.createCastSQL()
	case OpDropCast:
		return "DROP CAST " + op.Target()
	case OpCommentCast:
		if op.Comment == nil {
			return "COMMENT ON CAST " + op.Target() + " IS NULL"
		}
		return "COMMENT ON CAST " + op.Target() + " IS " + quoteLiteral(*op.Comment)
	}
	return fmt.Sprintf("-- unsupported operation %s", op.Kind)
}

// createDomainSQL emits clauses in a fixed order: base type, default,
// not null, then constraints in declaration order.
func (op Operation) createDomainSQL(target string) string {
	var b strings.Builder
	b.WriteString("CREATE DOMAIN ")
	b.WriteString(target)
	b.WriteString(" AS ")
	b.WriteString(op.BaseType)
	if op.Default != "" {
		b.WriteString("\n    DEFAULT ")
		b.WriteString(op.Default)
	}
	if op.NotNull {
		b.WriteString("\n    NOT NULL")
	}
	for _, c := range op.Constraints {
		b.WriteString("\n    ")
		b.WriteString(checkClause(c))
	}
	return b.String()
}

func (op Operation) createCastSQL() string {
	var b strings.Builder
	b.WriteString("CREATE CAST ")
	b.WriteString(op.Target())
	switch op.Method {
	case CastFunction:
		b.WriteString("\n    WITH FUNCTION ")
		b.WriteString(op.Function)
	case CastInOut:
		b.WriteString("\n    WITH INOUT")
	default:
		b.WriteString("\n    WITHOUT FUNCTION")
	}
	switch op.Context {
	case CastAssignment:
		b.WriteString("\n    AS ASSIGNMENT")
	case CastImplicit:
		b.WriteString("\n    AS IMPLICIT")
	}
	return b.String()
}

func checkClause(c CheckConstraint) string {
	return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", quoteIdent(c.Name), normalizeExpr(c.Expression))
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// reserved holds PostgreSQL's reserved keywords and the keywords reserved
// except as function or type names. Neither may appear unquoted as a
// schema, domain, constraint or role name.
var reserved = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
	"case": true, "cast": true, "check": true, "collate": true, "column": true,
	"constraint": true, "create": true, "current_catalog": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true,
	"deferrable": true, "desc": true, "distinct": true, "do": true,
	"else": true, "end": true, "except": true, "false": true, "fetch": true,
	"for": true, "foreign": true, "from": true, "grant": true, "group": true,
	"having": true, "in": true, "initially": true, "intersect": true,
	"into": true, "lateral": true, "leading": true, "limit": true,
	"localtime": true, "localtimestamp": true, "not": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true,
	"placing": true, "primary": true, "references": true, "returning": true,
	"select": true, "session_user": true, "some": true, "symmetric": true,
	"system_user": true, "table": true, "then": true, "to": true,
	"trailing": true, "true": true, "union": true, "unique": true,
	"user": true, "using": true, "variadic": true, "when": true,
	"where": true, "window": true, "with": true,

	"authorization": true, "binary": true, "collation": true,
	"concurrently": true, "cross": true, "current_schema": true,
	"freeze": true, "full": true, "ilike": true, "inner": true, "is": true,
	"isnull": true, "join": true, "left": true, "like": true,
	"natural": true, "notnull": true, "outer": true, "overlaps": true,
	"right": true, "similar": true, "tablesample": true, "verbose": true,
}

// quoteIdent quotes an identifier only when PostgreSQL would otherwise fold
// or reject it.
func quoteIdent(name string) string {
	if plainIdent.MatchString(name) && !reserved[name] {
		return name
	}
	return pgx.Identifier{name}.Sanitize()
}

func quoteQualified(schema, name string) string {
	if name == "" {
		return quoteIdent(schema)
	}
	return quoteIdent(schema) + "." + quoteIdent(name)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
