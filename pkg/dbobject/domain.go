package dbobject

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// TypeKind tags the variants held in a TypeCatalog.
type TypeKind string

// TypeKindDomain is a CREATE DOMAIN type. Other kinds (enum, composite,
// range) are not modeled yet.
const TypeKindDomain TypeKind = "domain"

// Type is the closed set of user-defined type variants a catalog can hold.
type Type interface {
	Kind() TypeKind
	Object() SchemaObject
	// BaseTypeRef is the referenced type name as written, or "" when the
	// variant references no other type.
	BaseTypeRef() string
	ToMap() map[string]any
	// CreateOperations returns the create statement followed by any owner
	// and comment statements.
	CreateOperations() []Operation
	DropOperation() Operation

	isType()
}

// CheckConstraint is a named CHECK expression on a domain.
type CheckConstraint struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// Domain is a SQL domain: a constrained alias over a base type.
type Domain struct {
	SchemaObject
	BaseType string
	NotNull  bool
	Default  string
	Checks   []CheckConstraint
}

var _ Type = (*Domain)(nil)

// NewDomain validates and returns a domain. Constraint order is kept as given.
func NewDomain(obj SchemaObject, baseType string, notNull bool, defaultExpr string, checks []CheckConstraint) (*Domain, error) {
	if err := obj.validate(); err != nil {
		return nil, err
	}
	qname := obj.QualifiedName()
	if strings.TrimSpace(baseType) == "" {
		return nil, &ValidationError{Object: qname, Field: "base type", Message: "must not be empty"}
	}

	seen := make(map[string]bool, len(checks))
	for _, c := range checks {
		if strings.TrimSpace(c.Name) == "" {
			return nil, &ValidationError{Object: qname, Field: "constraint name", Message: "must not be empty"}
		}
		if strings.TrimSpace(c.Expression) == "" {
			return nil, &ValidationError{Object: qname, Field: "constraint " + c.Name, Message: "expression must not be empty"}
		}
		if seen[c.Name] {
			return nil, &ValidationError{Object: qname, Field: "constraint " + c.Name, Message: "declared more than once"}
		}
		seen[c.Name] = true
	}

	return &Domain{
		SchemaObject: obj,
		BaseType:     strings.TrimSpace(baseType),
		NotNull:      notNull,
		Default:      strings.TrimSpace(defaultExpr),
		Checks:       append([]CheckConstraint(nil), checks...),
	}, nil
}

func (d *Domain) isType() {}

// Kind implements Type.
func (d *Domain) Kind() TypeKind { return TypeKindDomain }

// Object implements Type.
func (d *Domain) Object() SchemaObject { return d.SchemaObject }

// BaseTypeRef implements Type.
func (d *Domain) BaseTypeRef() string { return d.BaseType }

// ToMap returns the declarative form of the domain. Zero-valued optional
// keys are omitted; constraints are a list so their order round-trips.
func (d *Domain) ToMap() map[string]any {
	m := map[string]any{"type": d.BaseType}
	if d.NotNull {
		m["not_null"] = true
	}
	if d.Default != "" {
		m["default"] = d.Default
	}
	if len(d.Checks) > 0 {
		checks := make([]any, 0, len(d.Checks))
		for _, c := range d.Checks {
			checks = append(checks, map[string]any{"name": c.Name, "expression": c.Expression})
		}
		m["check_constraints"] = checks
	}
	if d.Owner != "" {
		m["owner"] = d.Owner
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	return m
}

var domainKeys = map[string]bool{
	"type":              true,
	"not_null":          true,
	"default":           true,
	"check_constraints": true,
	"owner":             true,
	"description":       true,
}

// DomainFromMap builds a domain from a declarative entry. Every problem in
// the entry is reported in a single *SchemaError.
func DomainFromMap(schema, name string, m map[string]any) (*Domain, error) {
	where := "domain " + schema + "." + name
	var serr *SchemaError

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !domainKeys[k] {
			serr = serr.add("%s: unknown key %q", where, k)
		}
	}

	var baseType string
	switch v := m["type"].(type) {
	case nil:
		serr = serr.add("%s: missing required key \"type\"", where)
	case string:
		if strings.TrimSpace(v) == "" {
			serr = serr.add("%s: \"type\" must not be empty", where)
		}
		baseType = v
	default:
		serr = serr.add("%s: \"type\" must be a string, got %T", where, v)
	}

	notNull, ok := optionalBool(m["not_null"])
	if !ok {
		serr = serr.add("%s: \"not_null\" must be a boolean, got %T", where, m["not_null"])
	}
	defaultExpr, ok := optionalScalar(m["default"])
	if !ok {
		serr = serr.add("%s: \"default\" must be a scalar, got %T", where, m["default"])
	}
	owner, ok := m["owner"].(string)
	if !ok && m["owner"] != nil {
		serr = serr.add("%s: \"owner\" must be a string, got %T", where, m["owner"])
	}
	description, ok := m["description"].(string)
	if !ok && m["description"] != nil {
		serr = serr.add("%s: \"description\" must be a string, got %T", where, m["description"])
	}

	checks, problems := checksFromValue(m["check_constraints"])
	for _, p := range problems {
		serr = serr.add("%s: %s", where, p)
	}

	if serr != nil {
		return nil, serr
	}

	obj := SchemaObject{Schema: schema, Name: name, Owner: owner, Description: description}
	d, err := NewDomain(obj, baseType, notNull, defaultExpr, checks)
	if err != nil {
		return nil, (*SchemaError)(nil).add("%s: %v", where, err)
	}
	return d, nil
}

// checksFromValue accepts a list of {name, expression} maps (declaration
// order) or a map keyed by constraint name (name order).
func checksFromValue(v any) ([]CheckConstraint, []string) {
	var problems []string
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		checks := make([]CheckConstraint, 0, len(val))
		for i, item := range val {
			entry, ok := item.(map[string]any)
			if !ok {
				problems = append(problems, fmt.Sprintf("check_constraints[%d] must be a mapping, got %T", i, item))
				continue
			}
			name, _ := entry["name"].(string)
			expr, _ := entry["expression"].(string)
			if name == "" || expr == "" {
				problems = append(problems, fmt.Sprintf("check_constraints[%d] needs \"name\" and \"expression\"", i))
				continue
			}
			checks = append(checks, CheckConstraint{Name: name, Expression: expr})
		}
		return checks, problems
	case map[string]any:
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		checks := make([]CheckConstraint, 0, len(names))
		for _, name := range names {
			var expr string
			switch e := val[name].(type) {
			case string:
				expr = e
			case map[string]any:
				expr, _ = e["expression"].(string)
			}
			if expr == "" {
				problems = append(problems, fmt.Sprintf("check constraint %q has no expression", name))
				continue
			}
			checks = append(checks, CheckConstraint{Name: name, Expression: expr})
		}
		return checks, problems
	default:
		return nil, []string{fmt.Sprintf("\"check_constraints\" must be a list or mapping, got %T", v)}
	}
}

func optionalBool(v any) (bool, bool) {
	if v == nil {
		return false, true
	}
	b, ok := v.(bool)
	return b, ok
}

// optionalScalar stringifies YAML scalars so `default: 0` works.
func optionalScalar(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	case int, int64, float64, bool:
		return fmt.Sprint(s), true
	}
	return "", false
}

// GenerateCreate returns the CREATE DOMAIN operation for d.
func (d *Domain) GenerateCreate() Operation {
	return Operation{
		Kind:        OpCreateDomain,
		Schema:      d.Schema,
		Name:        d.Name,
		BaseType:    d.BaseType,
		NotNull:     d.NotNull,
		Default:     d.Default,
		Constraints: append([]CheckConstraint(nil), d.Checks...),
	}
}

// CreateOperations implements Type.
func (d *Domain) CreateOperations() []Operation {
	ops := []Operation{d.GenerateCreate()}
	if d.Owner != "" {
		ops = append(ops, d.op(OpSetOwner, func(op *Operation) { op.Owner = d.Owner }))
	}
	if d.Description != "" {
		desc := d.Description
		ops = append(ops, d.op(OpSetComment, func(op *Operation) { op.Comment = &desc }))
	}
	return ops
}

// DropOperation implements Type.
func (d *Domain) DropOperation() Operation {
	return d.op(OpDropDomain, nil)
}

// RequiresReplace reports whether moving from d to target needs a drop and
// recreate. Domains cannot change their base type in place.
func (d *Domain) RequiresReplace(target *Domain) bool {
	return normalizeTypeName(d.BaseType) != normalizeTypeName(target.BaseType)
}

// DiffAgainst returns the operations that turn d (current) into target.
func (d *Domain) DiffAgainst(target *Domain) []Operation {
	if d.RequiresReplace(target) {
		return append([]Operation{d.DropOperation()}, target.CreateOperations()...)
	}

	var ops []Operation

	current := make(map[string]CheckConstraint, len(d.Checks))
	for _, c := range d.Checks {
		current[c.Name] = c
	}
	wanted := make(map[string]CheckConstraint, len(target.Checks))
	for _, c := range target.Checks {
		wanted[c.Name] = c
	}

	// Expressions are never altered in place: a changed one is dropped and added.
	for _, c := range d.Checks {
		w, ok := wanted[c.Name]
		if !ok || !sameExpr(c.Expression, w.Expression) {
			c := c
			ops = append(ops, d.op(OpDropConstraint, func(op *Operation) { op.Constraint = &c }))
		}
	}

	if !sameDefault(d.Default, target.Default) {
		if target.Default == "" {
			ops = append(ops, d.op(OpAlterDropDefault, nil))
		} else {
			ops = append(ops, d.op(OpAlterSetDefault, func(op *Operation) { op.Default = target.Default }))
		}
	}

	if d.NotNull != target.NotNull {
		if target.NotNull {
			ops = append(ops, d.op(OpAlterSetNotNull, func(op *Operation) { op.NotNull = true }))
		} else {
			ops = append(ops, d.op(OpAlterDropNotNull, nil))
		}
	}

	for _, w := range target.Checks {
		c, ok := current[w.Name]
		if !ok || !sameExpr(c.Expression, w.Expression) {
			w := w
			ops = append(ops, d.op(OpAddConstraint, func(op *Operation) { op.Constraint = &w }))
		}
	}

	// An empty target owner leaves ownership unmanaged.
	if target.Owner != "" && d.Owner != target.Owner {
		ops = append(ops, d.op(OpSetOwner, func(op *Operation) { op.Owner = target.Owner }))
	}

	if d.Description != target.Description {
		ops = append(ops, d.op(OpSetComment, func(op *Operation) {
			if target.Description != "" {
				desc := target.Description
				op.Comment = &desc
			}
		}))
	}

	return ops
}

// Equal reports structural equality, comparing expressions after normalization.
func (d *Domain) Equal(other *Domain) bool {
	if d.SchemaObject != other.SchemaObject || d.NotNull != other.NotNull ||
		!sameDefault(d.Default, other.Default) || normalizeTypeName(d.BaseType) != normalizeTypeName(other.BaseType) ||
		len(d.Checks) != len(other.Checks) {
		return false
	}
	for i := range d.Checks {
		if d.Checks[i].Name != other.Checks[i].Name || !sameExpr(d.Checks[i].Expression, other.Checks[i].Expression) {
			return false
		}
	}
	return true
}

func (d *Domain) op(kind OpKind, fill func(*Operation)) Operation {
	op := Operation{Kind: kind, Schema: d.Schema, Name: d.Name}
	if fill != nil {
		fill(&op)
	}
	return op
}

func sameExpr(a, b string) bool {
	return normalizeExpr(a) == normalizeExpr(b)
}

// castLiteral matches a quoted literal followed by one type cast, the form
// PostgreSQL stores defaults in: 'x'::text, '-1'::integer.
var castLiteral = regexp.MustCompile(`^('(?:[^']|'')*')::[\w\s."\[\](),]+$`)

var numericLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func sameDefault(a, b string) bool {
	return normalizeDefault(a) == normalizeDefault(b)
}

// normalizeDefault reduces a default expression to the form it is written
// in, so 'x' matches the stored 'x'::text and -1 matches '-1'::integer.
func normalizeDefault(expr string) string {
	s := normalizeExpr(expr)
	if m := castLiteral.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		if inner := s[1 : len(s)-1]; numericLiteral.MatchString(inner) {
			return inner
		}
	}
	return s
}

// normalizeExpr collapses whitespace and strips redundant outer
// parentheses, so "((VALUE > 0))" and "VALUE > 0" compare equal.
func normalizeExpr(expr string) string {
	s := strings.Join(strings.Fields(expr), " ")
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && wrapsWhole(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// wrapsWhole reports whether the opening parenthesis at s[0] closes at the
// last byte. Parentheses inside single-quoted literals are ignored.
func wrapsWhole(s string) bool {
	depth := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
