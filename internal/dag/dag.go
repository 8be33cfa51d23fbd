// Package dag provides directed acyclic graph operations for type dependencies.
// It supports cycle detection, deterministic topological ordering and
// downstream impact analysis.
package dag

import (
	"container/heap"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Node represents a node in the DAG.
type Node[T any] struct {
	// ID is the unique identifier (qualified type name)
	ID string
	// Data holds the object the node stands for
	Data T
}

// Graph is a directed graph where an edge parent -> child means the child
// depends on the parent.
type Graph[T any] struct {
	nodes   map[string]*Node[T]
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// CycleError is returned when an ordering is requested over a cyclic graph.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// NewGraph creates a new empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:   make(map[string]*Node[T]),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph, replacing the data of an existing node.
func (g *Graph[T]) AddNode(id string, data T) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node[T]{ID: id, Data: data}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// A self-loop is recorded like any other edge and surfaces as a cycle.
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph[T]) GetNode(id string) (*Node[T], bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// HasNode reports whether id is in the graph.
func (g *Graph[T]) HasNode(id string) bool {
	_, exists := g.nodes[id]
	return exists
}

// GetParents returns the parents (dependencies) of a node, sorted.
func (g *Graph[T]) GetParents(id string) []string {
	return sortedCopy(g.parents[id])
}

// GetChildren returns the children (dependents) of a node, sorted.
func (g *Graph[T]) GetChildren(id string) []string {
	return sortedCopy(g.edges[id])
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph[T]) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[T]) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle
// path (first node repeated at the end). Nodes are visited in ID order so
// the reported path is stable.
func (g *Graph[T]) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, childID := range g.GetChildren(id) {
			if onStack[childID] {
				start := slices.Index(stack, childID)
				cyclePath = append(slices.Clone(stack[start:]), childID)
				return true
			}
			if !visited[childID] && dfs(childID) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// TopologicalSort returns nodes with dependencies before dependents. Among
// nodes that are ready at the same time, the lexically smallest ID goes first.
// Returns a *CycleError if the graph contains a cycle.
func (g *Graph[T]) TopologicalSort() ([]*Node[T], error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, &CycleError{Path: cyclePath}
	}

	inDegree := make(map[string]int, len(g.nodes))
	ready := &idHeap{}
	for id := range g.nodes {
		inDegree[id] = len(g.parents[id])
		if inDegree[id] == 0 {
			*ready = append(*ready, id)
		}
	}
	heap.Init(ready)

	result := make([]*Node[T], 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		result = append(result, g.nodes[id])
		for _, childID := range g.edges[id] {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				heap.Push(ready, childID)
			}
		}
	}
	return result, nil
}

// ReverseTopologicalSort returns nodes with dependents before their
// dependencies; ties again go to the lexically smallest ID.
func (g *Graph[T]) ReverseTopologicalSort() ([]*Node[T], error) {
	return g.Reversed().TopologicalSort()
}

// Reversed returns a copy of the graph with every edge flipped.
func (g *Graph[T]) Reversed() *Graph[T] {
	r := NewGraph[T]()
	for id, n := range g.nodes {
		r.AddNode(id, n.Data)
	}
	for parentID, children := range g.edges {
		for _, childID := range children {
			_ = r.AddEdge(childID, parentID)
		}
	}
	return r
}

// GetAffectedNodes returns all nodes affected by changes to the given nodes.
// This includes the changed nodes and all their downstream dependents.
func (g *Graph[T]) GetAffectedNodes(changedIDs []string) []string {
	affected := make(map[string]bool)

	var markAffected func(id string)
	markAffected = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, childID := range g.edges[id] {
			markAffected(childID)
		}
	}

	for _, id := range changedIDs {
		if _, exists := g.nodes[id]; exists {
			markAffected(id)
		}
	}

	result := make([]string, 0, len(affected))
	for id := range affected {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Subgraph returns a new graph containing only the specified nodes and the
// edges between them.
func (g *Graph[T]) Subgraph(nodeIDs []string) *Graph[T] {
	subgraph := NewGraph[T]()
	nodeSet := make(map[string]bool)

	for _, id := range nodeIDs {
		if node, exists := g.nodes[id]; exists {
			nodeSet[id] = true
			subgraph.AddNode(id, node.Data)
		}
	}

	for id := range nodeSet {
		for _, childID := range g.edges[id] {
			if nodeSet[childID] {
				_ = subgraph.AddEdge(id, childID)
			}
		}
	}

	return subgraph
}

func (g *Graph[T]) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedCopy(ids []string) []string {
	out := slices.Clone(ids)
	sort.Strings(out)
	return out
}

// idHeap is a min-heap of node IDs.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
