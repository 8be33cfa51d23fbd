package dbobject

import (
	"fmt"
	"strings"
)

// KindCast tags casts in errors. Casts live beside types in a catalog but
// are keyed by their source and target types, not by schema.
const KindCast TypeKind = "cast"

const castKeyPrefix = "cast "

// CastContext says where PostgreSQL may apply a cast on its own.
type CastContext string

// Cast contexts.
const (
	CastExplicit   CastContext = "explicit"
	CastAssignment CastContext = "assignment"
	CastImplicit   CastContext = "implicit"
)

// CastMethod says how a cast converts its value.
type CastMethod string

// Cast methods.
const (
	CastFunction        CastMethod = "function"
	CastInOut           CastMethod = "inout"
	CastBinaryCoercible CastMethod = "binary coercible"
)

// ParseCastContext accepts a context name or its pg_cast code (a, e, i).
func ParseCastContext(s string) (CastContext, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e", "explicit":
		return CastExplicit, true
	case "a", "assignment":
		return CastAssignment, true
	case "i", "implicit":
		return CastImplicit, true
	}
	return "", false
}

// ParseCastMethod accepts a method name or its pg_cast code (f, i, b).
func ParseCastMethod(s string) (CastMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "function":
		return CastFunction, true
	case "i", "inout":
		return CastInOut, true
	case "b", "binary", "binary coercible":
		return CastBinaryCoercible, true
	}
	return "", false
}

// CastRow is one introspected cast.
type CastRow struct {
	Source      string
	Target      string
	Function    string
	Context     string
	Method      string
	Description string
}

// Cast is a user-defined conversion between two types. Function is the
// regprocedure signature and is set only for CastFunction.
type Cast struct {
	Source      string
	Target      string
	Context     CastContext
	Method      CastMethod
	Function    string
	Description string
}

// NewCast validates and returns a cast. Type names are normalized so that
// "int4" and "integer" name the same cast.
func NewCast(source, target string, context CastContext, method CastMethod, function, description string) (*Cast, error) {
	c := &Cast{
		Source:      castTypeName(source),
		Target:      castTypeName(target),
		Function:    strings.Join(strings.Fields(function), " "),
		Description: description,
	}
	obj := c.Key()
	switch {
	case c.Source == "":
		return nil, &ValidationError{Object: obj, Field: "source type", Message: "must not be empty"}
	case c.Target == "":
		return nil, &ValidationError{Object: obj, Field: "target type", Message: "must not be empty"}
	}

	var ok bool
	if c.Context, ok = ParseCastContext(string(context)); !ok {
		return nil, &ValidationError{Object: obj, Field: "context", Message: fmt.Sprintf("unknown context %q", context)}
	}
	if c.Method, ok = ParseCastMethod(string(method)); !ok {
		return nil, &ValidationError{Object: obj, Field: "method", Message: fmt.Sprintf("unknown method %q", method)}
	}
	if c.Method == CastFunction && c.Function == "" {
		return nil, &ValidationError{Object: obj, Field: "function", Message: "required when the method is function"}
	}
	if c.Method != CastFunction && c.Function != "" {
		return nil, &ValidationError{Object: obj, Field: "function", Message: "only allowed when the method is function"}
	}
	return c, nil
}

// castTypeName normalizes a type name and drops the public qualifier,
// which format_type and regtype leave out.
func castTypeName(name string) string {
	return strings.TrimPrefix(normalizeTypeName(name), DefaultSchema+".")
}

// Key identifies the cast within a catalog: "(source AS target)".
func (c *Cast) Key() string {
	return castKey(c.Source, c.Target)
}

func castKey(source, target string) string {
	return "(" + source + " AS " + target + ")"
}

// ToMap returns the declarative form of the cast, without its key.
func (c *Cast) ToMap() map[string]any {
	m := map[string]any{
		"context": string(c.Context),
		"method":  string(c.Method),
	}
	if c.Function != "" {
		m["function"] = c.Function
	}
	if c.Description != "" {
		m["description"] = c.Description
	}
	return m
}

var castKeys = map[string]bool{
	"context":     true,
	"method":      true,
	"function":    true,
	"description": true,
}

// parseCastKey splits a document key of the form "cast (source AS target)".
func parseCastKey(key string) (source, target string, ok bool) {
	rest, found := strings.CutPrefix(key, castKeyPrefix)
	if !found {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", "", false
	}
	rest = rest[1 : len(rest)-1]
	i := strings.Index(strings.ToUpper(rest), " AS ")
	if i < 0 {
		return "", "", false
	}
	source, target = strings.TrimSpace(rest[:i]), strings.TrimSpace(rest[i+4:])
	return source, target, source != "" && target != ""
}

// CastFromMap builds a cast from a document entry keyed "cast (a AS b)".
// Every problem in the entry is reported in a single *SchemaError.
func CastFromMap(key string, m map[string]any) (*Cast, error) {
	source, target, ok := parseCastKey(key)
	if !ok {
		return nil, (*SchemaError)(nil).add("invalid cast key %q", key)
	}
	where := "cast (" + source + " AS " + target + ")"
	var serr *SchemaError

	for _, k := range sortedKeys(m) {
		if !castKeys[k] {
			serr = serr.add("%s: unknown key %q", where, k)
		}
	}

	stringField := func(name string) string {
		v, ok := m[name].(string)
		if !ok && m[name] != nil {
			serr = serr.add("%s: %q must be a string, got %T", where, name, m[name])
		}
		return v
	}
	rawContext := stringField("context")
	rawMethod := stringField("method")
	function := stringField("function")
	description := stringField("description")

	context, ok := ParseCastContext(rawContext)
	switch {
	case m["context"] == nil:
		serr = serr.add("%s: missing required key \"context\"", where)
	case !ok:
		serr = serr.add("%s: unknown context %q", where, rawContext)
	}
	method, ok := ParseCastMethod(rawMethod)
	switch {
	case m["method"] == nil:
		serr = serr.add("%s: missing required key \"method\"", where)
	case !ok:
		serr = serr.add("%s: unknown method %q", where, rawMethod)
	}

	if serr != nil {
		return nil, serr
	}
	c, err := NewCast(source, target, context, method, function, description)
	if err != nil {
		return nil, (*SchemaError)(nil).add("%s: %v", where, err)
	}
	return c, nil
}

// Refs returns the source and target type names.
func (c *Cast) Refs() []string {
	return []string{c.Source, c.Target}
}

// CreateOperations returns CREATE CAST followed by its comment, if any.
func (c *Cast) CreateOperations() []Operation {
	ops := []Operation{c.op(OpCreateCast, func(op *Operation) {
		op.Context = c.Context
		op.Method = c.Method
		op.Function = c.Function
	})}
	if c.Description != "" {
		desc := c.Description
		ops = append(ops, c.op(OpCommentCast, func(op *Operation) { op.Comment = &desc }))
	}
	return ops
}

// DropOperation returns DROP CAST.
func (c *Cast) DropOperation() Operation {
	return c.op(OpDropCast, nil)
}

// RequiresReplace reports whether moving to target needs a drop and
// recreate. PostgreSQL has no ALTER CAST.
func (c *Cast) RequiresReplace(target *Cast) bool {
	return c.Context != target.Context || c.Method != target.Method || c.Function != target.Function
}

// DiffAgainst returns the operations that turn c (current) into target.
func (c *Cast) DiffAgainst(target *Cast) []Operation {
	if c.RequiresReplace(target) {
		return append([]Operation{c.DropOperation()}, target.CreateOperations()...)
	}
	if c.Description == target.Description {
		return nil
	}
	return []Operation{c.op(OpCommentCast, func(op *Operation) {
		if target.Description != "" {
			desc := target.Description
			op.Comment = &desc
		}
	})}
}

// Equal reports whether two casts have the same definition.
func (c *Cast) Equal(other *Cast) bool {
	return *c == *other
}

func (c *Cast) op(kind OpKind, fill func(*Operation)) Operation {
	op := Operation{Kind: kind, CastSource: c.Source, CastTarget: c.Target}
	if fill != nil {
		fill(&op)
	}
	return op
}
