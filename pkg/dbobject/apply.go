package dbobject

import (
	"fmt"
	"slices"
)

// Apply replays ops against a copy of the snapshot and returns the result.
// It enforces the same rules a server would: a type cannot be created
// before its base type, dropped while another type or a cast depends on it,
// or created in a schema that does not exist; a cast needs both its types.
func (c *TypeCatalog) Apply(ops []Operation) (*TypeCatalog, error) {
	out := c.clone()
	out.schemas[DefaultSchema] = true
	for i, op := range ops {
		if err := out.apply(op); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op, err)
		}
	}
	return out, nil
}

func (c *TypeCatalog) apply(op Operation) error {
	key := op.Target()
	if op.IsCast() {
		key = castKey(castTypeName(op.CastSource), castTypeName(op.CastTarget))
	}

	switch op.Kind {
	case OpCreateSchema:
		if c.schemas[op.Schema] {
			return fmt.Errorf("schema %s already exists", op.Schema)
		}
		c.schemas[op.Schema] = true
		return nil
	case OpDropSchema:
		if !c.schemas[op.Schema] {
			return fmt.Errorf("schema %s does not exist", op.Schema)
		}
		for _, t := range c.types {
			if t.Object().Schema == op.Schema {
				return fmt.Errorf("schema %s still holds %s", op.Schema, t.Object().QualifiedName())
			}
		}
		delete(c.schemas, op.Schema)
		return nil
	case OpCreateDomain:
		if !c.schemas[op.Schema] {
			return fmt.Errorf("schema %s does not exist", op.Schema)
		}
		d, err := NewDomain(SchemaObject{Schema: op.Schema, Name: op.Name}, op.BaseType, op.NotNull, op.Default, op.Constraints)
		if err != nil {
			return err
		}
		if _, ok := c.resolve(d); !ok {
			return fmt.Errorf("base type %s does not exist", op.BaseType)
		}
		return c.insert(d)
	case OpDropDomain:
		if _, ok := c.types[key]; !ok {
			return fmt.Errorf("%s does not exist", key)
		}
		for _, other := range c.Keys() {
			if dep, ok := c.DependencyOf(other); ok && dep == key && other != key {
				return fmt.Errorf("%s is the base type of %s", key, other)
			}
		}
		for _, ck := range c.CastKeys() {
			if slices.Contains(c.CastDependencies(ck), key) {
				return fmt.Errorf("cast %s depends on %s", ck, key)
			}
		}
		delete(c.types, key)
		c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
		return nil
	case OpCreateCast:
		cast, err := NewCast(op.CastSource, op.CastTarget, op.Context, op.Method, op.Function, "")
		if err != nil {
			return err
		}
		for _, ref := range cast.Refs() {
			if _, ok := c.resolveName(DefaultSchema, ref); !ok {
				return fmt.Errorf("type %s does not exist", ref)
			}
		}
		if _, exists := c.casts[cast.Key()]; exists {
			return fmt.Errorf("cast %s already exists", cast.Key())
		}
		c.casts[cast.Key()] = cast
		return nil
	case OpDropCast:
		if _, ok := c.casts[key]; !ok {
			return fmt.Errorf("cast %s does not exist", key)
		}
		delete(c.casts, key)
		return nil
	case OpCommentCast:
		cast, ok := c.casts[key]
		if !ok {
			return fmt.Errorf("cast %s does not exist", key)
		}
		cp := *cast
		cp.Description = ""
		if op.Comment != nil {
			cp.Description = *op.Comment
		}
		c.casts[key] = &cp
		return nil
	}

	d, ok := c.Domain(key)
	if !ok {
		return fmt.Errorf("%s does not exist", key)
	}
	cp := *d
	cp.Checks = slices.Clone(d.Checks)

	switch op.Kind {
	case OpAlterSetNotNull:
		cp.NotNull = true
	case OpAlterDropNotNull:
		cp.NotNull = false
	case OpAlterSetDefault:
		cp.Default = op.Default
	case OpAlterDropDefault:
		cp.Default = ""
	case OpAddConstraint:
		for _, chk := range cp.Checks {
			if chk.Name == op.Constraint.Name {
				return fmt.Errorf("constraint %s already exists", chk.Name)
			}
		}
		cp.Checks = append(cp.Checks, *op.Constraint)
	case OpDropConstraint:
		idx := slices.IndexFunc(cp.Checks, func(chk CheckConstraint) bool { return chk.Name == op.Constraint.Name })
		if idx < 0 {
			return fmt.Errorf("constraint %s does not exist", op.Constraint.Name)
		}
		cp.Checks = slices.Delete(cp.Checks, idx, idx+1)
	case OpSetOwner:
		cp.Owner = op.Owner
	case OpSetComment:
		cp.Description = ""
		if op.Comment != nil {
			cp.Description = *op.Comment
		}
	default:
		return fmt.Errorf("unsupported operation kind %s", op.Kind)
	}

	if len(cp.Checks) == 0 {
		cp.Checks = nil
	}
	c.types[key] = &cp
	return nil
}
