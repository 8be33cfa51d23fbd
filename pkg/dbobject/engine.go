package dbobject

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapschema/internal/dag"
)

// DiffEngine computes the ordered operations that transform one snapshot
// into another. It holds no per-diff state, so one engine may serve
// concurrent Compare calls.
type DiffEngine struct {
	logger *slog.Logger
}

// NewDiffEngine creates a diff engine.
// If logger is nil, a discard logger is used.
func NewDiffEngine(logger *slog.Logger) *DiffEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DiffEngine{logger: logger}
}

// Compare returns the operations that turn current into target, in this order:
//
//  1. CreateSchema for schemas new in target
//  2. DropCast, for casts that go away, change definition or convert a
//     type that is dropped or replaced
//  3. DropDomain, dependents before the types they are based on
//  4. in-place alters, per type in qualified-name order, then cast comments
//  5. CreateDomain (with owner and comment), base types before dependents
//  6. CreateCast (with comment)
//  7. DropSchema for schemas missing from target
//
// Ties are broken by qualified name, casts by key. Identical snapshots
// yield no operations.
func (e *DiffEngine) Compare(current, target *TypeCatalog) ([]Operation, error) {
	if current == nil {
		current = NewTypeCatalog()
	}
	if target == nil {
		target = NewTypeCatalog()
	}

	currentGraph, err := dependencyGraph(current)
	if err != nil {
		return nil, err
	}
	targetGraph, err := dependencyGraph(target)
	if err != nil {
		return nil, err
	}

	var creates, drops, replaced []string
	for _, key := range target.Keys() {
		if _, ok := current.types[key]; !ok {
			creates = append(creates, key)
		}
	}
	for _, key := range current.Keys() {
		tgt, ok := target.types[key]
		if !ok {
			drops = append(drops, key)
			continue
		}
		if requiresReplace(current.types[key], tgt) {
			replaced = append(replaced, key)
		}
	}

	// A surviving type based on one that goes away has to go with it.
	replacedSet := make(map[string]bool, len(replaced))
	for _, key := range replaced {
		replacedSet[key] = true
	}
	for _, key := range currentGraph.GetAffectedNodes(append(append([]string{}, drops...), replaced...)) {
		if _, inTarget := target.types[key]; inTarget && !replacedSet[key] {
			e.logger.Debug("replacing dependent type", "type", key)
			replacedSet[key] = true
			replaced = append(replaced, key)
		}
	}

	gone := make(map[string]bool, len(drops)+len(replacedSet))
	for _, key := range drops {
		gone[key] = true
	}
	for key := range replacedSet {
		gone[key] = true
	}

	var castDrops, castCreates []string
	var castAlters []Operation
	for _, key := range current.CastKeys() {
		cur := current.casts[key]
		tgt, ok := target.casts[key]
		switch {
		case !ok:
			castDrops = append(castDrops, key)
		case cur.RequiresReplace(tgt):
			castDrops = append(castDrops, key)
			castCreates = append(castCreates, key)
		case slices.ContainsFunc(current.CastDependencies(key), func(dep string) bool { return gone[dep] }):
			e.logger.Debug("replacing dependent cast", "cast", key)
			castDrops = append(castDrops, key)
			castCreates = append(castCreates, key)
		default:
			castAlters = append(castAlters, cur.DiffAgainst(tgt)...)
		}
	}
	for _, key := range target.CastKeys() {
		if _, ok := current.casts[key]; !ok {
			castCreates = append(castCreates, key)
		}
	}
	slices.Sort(castCreates)

	var alters []Operation
	for _, key := range current.Keys() {
		tgt, ok := target.types[key]
		if !ok || replacedSet[key] {
			continue
		}
		alters = append(alters, diffTypes(current.types[key], tgt)...)
	}

	dropOrder, err := currentGraph.Subgraph(append(drops, replaced...)).ReverseTopologicalSort()
	if err != nil {
		return nil, cyclicError(err)
	}
	createOrder, err := targetGraph.Subgraph(append(creates, replaced...)).TopologicalSort()
	if err != nil {
		return nil, cyclicError(err)
	}

	var ops []Operation
	for _, schema := range target.Schemas() {
		if schema != DefaultSchema && !current.HasSchema(schema) {
			ops = append(ops, Operation{Kind: OpCreateSchema, Schema: schema})
		}
	}
	for _, key := range castDrops {
		ops = append(ops, current.casts[key].DropOperation())
	}
	for _, n := range dropOrder {
		ops = append(ops, n.Data.DropOperation())
	}
	ops = append(ops, alters...)
	ops = append(ops, castAlters...)
	for _, n := range createOrder {
		ops = append(ops, n.Data.CreateOperations()...)
	}
	for _, key := range castCreates {
		ops = append(ops, target.casts[key].CreateOperations()...)
	}
	for _, schema := range current.Schemas() {
		if schema != DefaultSchema && !target.HasSchema(schema) {
			ops = append(ops, Operation{Kind: OpDropSchema, Schema: schema})
		}
	}

	e.logger.Debug("computed type diff",
		"creates", len(creates),
		"drops", len(drops),
		"replaced", len(replaced),
		"alters", len(alters),
		"cast_drops", len(castDrops),
		"cast_creates", len(castCreates),
		"operations", len(ops))

	return ops, nil
}

// dependencyGraph links every cataloged type to the cataloged type its base
// type resolves to. Cycles are reported here, before any ordering.
func dependencyGraph(c *TypeCatalog) (*dag.Graph[Type], error) {
	g := dag.NewGraph[Type]()
	keys := c.Keys()
	for _, key := range keys {
		g.AddNode(key, c.types[key])
	}
	for _, key := range keys {
		if dep, ok := c.DependencyOf(key); ok {
			if err := g.AddEdge(dep, key); err != nil {
				return nil, err
			}
		}
	}
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, &CyclicDependencyError{Path: path}
	}
	return g, nil
}

func cyclicError(err error) error {
	var cycleErr *dag.CycleError
	if errors.As(err, &cycleErr) {
		return &CyclicDependencyError{Path: cycleErr.Path}
	}
	return err
}

func requiresReplace(current, target Type) bool {
	switch cur := current.(type) {
	case *Domain:
		tgt, ok := target.(*Domain)
		return !ok || cur.RequiresReplace(tgt)
	}
	return current.Kind() != target.Kind()
}

func diffTypes(current, target Type) []Operation {
	switch cur := current.(type) {
	case *Domain:
		if tgt, ok := target.(*Domain); ok {
			return cur.DiffAgainst(tgt)
		}
	}
	return nil
}
