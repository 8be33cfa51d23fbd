// Package dbobject models SQL user-defined types as catalog objects and
// reconciles two catalog snapshots into an ordered list of schema changes.
//
// A snapshot is built once, from introspected rows (FromRows) or from a
// declarative document (FromMap), linked with LinkRefs, and then only read.
// DiffMap compares a current snapshot with a target snapshot and returns the
// operations that transform one into the other.
package dbobject

import "strings"

// SchemaObject carries the identity and metadata shared by every catalog object.
type SchemaObject struct {
	Schema      string
	Name        string
	Owner       string
	Description string
}

// NewSchemaObject validates identity fields and returns the object.
func NewSchemaObject(schema, name, owner, description string) (SchemaObject, error) {
	obj := SchemaObject{Schema: schema, Name: name, Owner: owner, Description: description}
	if err := obj.validate(); err != nil {
		return SchemaObject{}, err
	}
	return obj, nil
}

func (o SchemaObject) validate() error {
	if strings.TrimSpace(o.Schema) == "" {
		return &ValidationError{Object: o.Name, Field: "schema", Message: "must not be empty"}
	}
	if strings.TrimSpace(o.Name) == "" {
		return &ValidationError{Object: o.Schema, Field: "name", Message: "must not be empty"}
	}
	return nil
}

// QualifiedName returns schema.name, used as the catalog key.
func (o SchemaObject) QualifiedName() string {
	return o.Schema + "." + o.Name
}

// splitQualified splits "schema.name" at the first dot.
// An unqualified name returns an empty schema.
func splitQualified(name string) (schema, local string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// TypeName returns schema.name as a type reference, quoting each part where
// PostgreSQL would otherwise fold or reject it.
func TypeName(schema, name string) string {
	return quoteQualified(schema, name)
}
