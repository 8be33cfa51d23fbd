package dbobject

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// DefaultSchema is never created or dropped by a diff.
const DefaultSchema = "public"

const (
	schemaKeyPrefix = "schema "
	domainKeyPrefix = "domain "
)

// Row is one introspected domain with its constraints already joined in.
type Row struct {
	Schema      string
	Name        string
	BaseType    string
	NotNull     bool
	Default     string
	Owner       string
	Description string
	Constraints []CheckConstraint
}

// TypeCatalog is an immutable snapshot of user-defined types keyed by
// qualified name, and of the casts between them keyed by "(source AS
// target)". Build it with FromRows (plus WithCasts) or FromMap, then LinkRefs.
type TypeCatalog struct {
	types   map[string]Type
	casts   map[string]*Cast
	order   []string // insertion order
	schemas map[string]bool
	extra   map[string]bool // non-cataloged type names accepted by LinkRefs
	linked  bool
}

// NewTypeCatalog returns an empty snapshot.
func NewTypeCatalog() *TypeCatalog {
	return &TypeCatalog{
		types:   make(map[string]Type),
		casts:   make(map[string]*Cast),
		schemas: make(map[string]bool),
		extra:   make(map[string]bool),
	}
}

func (c *TypeCatalog) insert(t Type) error {
	key := t.Object().QualifiedName()
	if _, exists := c.types[key]; exists {
		return &DuplicateKeyError{Kind: t.Kind(), Key: key}
	}
	c.types[key] = t
	c.order = append(c.order, key)
	c.schemas[t.Object().Schema] = true
	return nil
}

func (c *TypeCatalog) insertCast(cast *Cast) error {
	key := cast.Key()
	if _, exists := c.casts[key]; exists {
		return &DuplicateKeyError{Kind: KindCast, Key: key}
	}
	c.casts[key] = cast
	return nil
}

// FromRows builds a snapshot from introspected rows.
func FromRows(rows []Row) (*TypeCatalog, error) {
	c := NewTypeCatalog()
	for i, r := range rows {
		obj, err := NewSchemaObject(r.Schema, r.Name, r.Owner, r.Description)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		d, err := NewDomain(obj, r.BaseType, r.NotNull, r.Default, r.Constraints)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if err := c.insert(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithCasts returns a copy of the snapshot holding the introspected casts.
func (c *TypeCatalog) WithCasts(rows []CastRow) (*TypeCatalog, error) {
	out := c.clone()
	for i, r := range rows {
		context, ok := ParseCastContext(r.Context)
		if !ok {
			return nil, fmt.Errorf("cast row %d: unknown context %q", i, r.Context)
		}
		method, ok := ParseCastMethod(r.Method)
		if !ok {
			return nil, fmt.Errorf("cast row %d: unknown method %q", i, r.Method)
		}
		cast, err := NewCast(r.Source, r.Target, context, method, r.Function, r.Description)
		if err != nil {
			return nil, fmt.Errorf("cast row %d: %w", i, err)
		}
		if err := out.insertCast(cast); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromMap builds a snapshot from a declarative document: "schema <name>"
// (or a bare schema name) mapping to "domain <name>" entries, plus
// top-level "cast (source AS target)" entries. Object kinds other than
// domains are ignored inside schema sections.
func FromMap(document map[string]any) (*TypeCatalog, error) {
	c := NewTypeCatalog()
	var serr *SchemaError

	for _, schemaKey := range sortedKeys(document) {
		if strings.HasPrefix(schemaKey, castKeyPrefix) {
			def, ok := document[schemaKey].(map[string]any)
			if !ok {
				serr = serr.add("%s: expected a mapping, got %T", schemaKey, document[schemaKey])
				continue
			}
			cast, err := CastFromMap(schemaKey, def)
			if err != nil {
				var se *SchemaError
				if errors.As(err, &se) {
					for _, p := range se.Problems {
						serr = serr.add("%s", p)
					}
					continue
				}
				return nil, err
			}
			if err := c.insertCast(cast); err != nil {
				return nil, err
			}
			continue
		}

		schema := strings.TrimSpace(strings.TrimPrefix(schemaKey, schemaKeyPrefix))
		if schema == "" {
			serr = serr.add("invalid schema key %q", schemaKey)
			continue
		}

		var objects map[string]any
		switch v := document[schemaKey].(type) {
		case nil:
		case map[string]any:
			objects = v
		default:
			serr = serr.add("schema %s: expected a mapping, got %T", schema, v)
			continue
		}
		c.schemas[schema] = true

		for _, objKey := range sortedKeys(objects) {
			if !strings.HasPrefix(objKey, domainKeyPrefix) {
				continue
			}
			name := strings.TrimSpace(strings.TrimPrefix(objKey, domainKeyPrefix))
			if name == "" {
				serr = serr.add("schema %s: invalid domain key %q", schema, objKey)
				continue
			}
			def, ok := objects[objKey].(map[string]any)
			if !ok {
				if objects[objKey] == nil {
					serr = serr.add("domain %s.%s has no definition", schema, name)
				} else {
					serr = serr.add("domain %s.%s: expected a mapping, got %T", schema, name, objects[objKey])
				}
				continue
			}

			d, err := DomainFromMap(schema, name, def)
			if err != nil {
				var se *SchemaError
				if errors.As(err, &se) {
					for _, p := range se.Problems {
						serr = serr.add("%s", p)
					}
					continue
				}
				return nil, err
			}
			if err := c.insert(d); err != nil {
				return nil, err
			}
		}
	}

	if serr != nil {
		return nil, serr
	}
	return c, nil
}

// LinkRefs returns a linked copy of the snapshot. schemas registers schemas
// that exist without holding any type; baseTypes lists type names, other
// than built-ins and cataloged types, that references may resolve to.
// Every unresolved reference is reported in one *UnresolvedReferenceError.
func (c *TypeCatalog) LinkRefs(schemas, baseTypes []string) (*TypeCatalog, error) {
	linked := c.clone()
	for _, s := range schemas {
		if s != "" {
			linked.schemas[s] = true
		}
	}
	for _, t := range baseTypes {
		linked.extra[baseTypeKey(t)] = true
	}

	var unresolved []UnresolvedRef
	for _, key := range linked.Keys() {
		t := linked.types[key]
		if t.BaseTypeRef() == "" {
			continue
		}
		if _, ok := linked.resolve(t); !ok {
			unresolved = append(unresolved, UnresolvedRef{Object: key, Ref: t.BaseTypeRef()})
		}
	}
	for _, key := range linked.CastKeys() {
		for _, ref := range linked.casts[key].Refs() {
			if _, ok := linked.resolveName(DefaultSchema, ref); !ok {
				unresolved = append(unresolved, UnresolvedRef{Object: "cast " + key, Ref: ref})
			}
		}
	}
	if len(unresolved) > 0 {
		return nil, &UnresolvedReferenceError{Refs: unresolved}
	}

	linked.linked = true
	return linked, nil
}

// Linked reports whether LinkRefs produced this snapshot.
func (c *TypeCatalog) Linked() bool { return c.linked }

// resolve finds what t's base type refers to. It returns the cataloged key
// when the reference points at another type in this snapshot, "" when it
// is a built-in or externally known type, and ok=false when unresolved.
// Unqualified names are tried in the referencing type's schema, then public.
func (c *TypeCatalog) resolve(t Type) (key string, ok bool) {
	return c.resolveName(t.Object().Schema, t.BaseTypeRef())
}

// resolveName resolves a type name as written in schema from. Unqualified
// names try from first, then public.
func (c *TypeCatalog) resolveName(from, name string) (key string, ok bool) {
	ref := baseTypeKey(name)
	if qualifier, _ := splitQualified(ref); qualifier != "" {
		if _, exists := c.types[ref]; exists {
			return ref, true
		}
		return "", c.extra[ref]
	}

	for _, schema := range []string{from, DefaultSchema} {
		candidate := schema + "." + ref
		if _, exists := c.types[candidate]; exists {
			return candidate, true
		}
	}
	if builtinTypes[ref] || c.extra[ref] || c.extra[DefaultSchema+"."+ref] {
		return "", true
	}
	return "", false
}

// DependencyOf returns the cataloged type that key's base type refers to.
func (c *TypeCatalog) DependencyOf(key string) (string, bool) {
	t, ok := c.types[key]
	if !ok || t.BaseTypeRef() == "" {
		return "", false
	}
	dep, ok := c.resolve(t)
	return dep, ok && dep != ""
}

// CastDependencies returns the cataloged types a cast converts from or to.
func (c *TypeCatalog) CastDependencies(key string) []string {
	cast, ok := c.casts[key]
	if !ok {
		return nil
	}
	var deps []string
	for _, ref := range cast.Refs() {
		if dep, ok := c.resolveName(DefaultSchema, ref); ok && dep != "" && !slices.Contains(deps, dep) {
			deps = append(deps, dep)
		}
	}
	return deps
}

// Cast returns the cast stored under "(source AS target)".
func (c *TypeCatalog) Cast(key string) (*Cast, bool) {
	cast, ok := c.casts[key]
	return cast, ok
}

// CastKeys returns the cast keys in lexical order.
func (c *TypeCatalog) CastKeys() []string {
	return sortedKeys(c.casts)
}

// Get returns the type stored under a qualified name.
func (c *TypeCatalog) Get(key string) (Type, bool) {
	t, ok := c.types[key]
	return t, ok
}

// Domain returns the domain stored under a qualified name.
func (c *TypeCatalog) Domain(key string) (*Domain, bool) {
	d, ok := c.types[key].(*Domain)
	return d, ok
}

// Len returns the number of types in the snapshot.
func (c *TypeCatalog) Len() int { return len(c.types) }

// Keys returns the qualified names in lexical order.
func (c *TypeCatalog) Keys() []string {
	keys := make([]string, 0, len(c.types))
	for k := range c.types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InsertionOrder returns the qualified names in the order they were loaded.
func (c *TypeCatalog) InsertionOrder() []string {
	return append([]string(nil), c.order...)
}

// Schemas returns the known schema names in lexical order.
func (c *TypeCatalog) Schemas() []string {
	return sortedKeys(c.schemas)
}

// HasSchema reports whether the snapshot knows the schema.
func (c *TypeCatalog) HasSchema(name string) bool { return c.schemas[name] }

// ToMap returns the snapshot as a declarative document, the inverse of FromMap.
func (c *TypeCatalog) ToMap() map[string]any {
	doc := make(map[string]any, len(c.schemas))
	for schema := range c.schemas {
		doc[schemaKeyPrefix+schema] = map[string]any{}
	}
	for _, t := range c.types {
		obj := t.Object()
		section := doc[schemaKeyPrefix+obj.Schema].(map[string]any)
		section[string(t.Kind())+" "+obj.Name] = t.ToMap()
	}
	for key, cast := range c.casts {
		doc[castKeyPrefix+key] = cast.ToMap()
	}
	return doc
}

// DiffMap returns the operations that turn c (current) into target,
// including schema creation and removal.
func (c *TypeCatalog) DiffMap(target *TypeCatalog) ([]Operation, error) {
	return NewDiffEngine(nil).Compare(c, target)
}

func (c *TypeCatalog) clone() *TypeCatalog {
	out := NewTypeCatalog()
	for k, v := range c.types {
		out.types[k] = v
	}
	for k, v := range c.casts {
		out.casts[k] = v
	}
	out.order = append(out.order, c.order...)
	for k := range c.schemas {
		out.schemas[k] = true
	}
	for k := range c.extra {
		out.extra[k] = true
	}
	out.linked = c.linked
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
