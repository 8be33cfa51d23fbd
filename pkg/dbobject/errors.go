package dbobject

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed field found while constructing an object.
type ValidationError struct {
	Object  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("invalid %s for %s: %s", e.Field, e.Object, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// SchemaError aggregates every problem found in a declarative document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	if len(e.Problems) == 1 {
		return "schema document: " + e.Problems[0]
	}
	return fmt.Sprintf("schema document has %d problems:\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// add records a problem. Nil-safe so callers can build lazily.
func (e *SchemaError) add(format string, args ...any) *SchemaError {
	if e == nil {
		e = &SchemaError{}
	}
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
	return e
}

// DuplicateKeyError is returned when two objects resolve to the same
// qualified name within one snapshot.
type DuplicateKeyError struct {
	Kind TypeKind
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Kind, e.Key)
}

// UnresolvedRef is a single reference that linking could not resolve.
type UnresolvedRef struct {
	Object string // qualified name of the referencing object
	Ref    string // referenced type name as written
}

// UnresolvedReferenceError lists every unresolved base type reference of a snapshot.
type UnresolvedReferenceError struct {
	Refs []UnresolvedRef
}

// Names returns the unresolved type names in report order.
func (e *UnresolvedReferenceError) Names() []string {
	names := make([]string, 0, len(e.Refs))
	for _, r := range e.Refs {
		names = append(names, r.Ref)
	}
	return names
}

func (e *UnresolvedReferenceError) Error() string {
	parts := make([]string, 0, len(e.Refs))
	for _, r := range e.Refs {
		parts = append(parts, fmt.Sprintf("%s -> %s", r.Object, r.Ref))
	}
	return fmt.Sprintf("unresolved type references: %s", strings.Join(parts, ", "))
}

// CyclicDependencyError is returned when base type references form a cycle.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic type dependency: %s", strings.Join(e.Path, " -> "))
}
