package dag

import (
	"errors"
	"reflect"
	"testing"
)

func ids[T any](nodes []*Node[T]) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := NewGraph[string]()

	g.AddNode("public.a", "A")
	g.AddNode("public.b", "B")
	g.AddNode("public.c", "C")

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	if err := g.AddEdge("public.a", "public.b"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	if err := g.AddEdge("public.b", "public.c"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
	if !g.HasNode("public.b") || g.HasNode("public.z") {
		t.Error("HasNode reported the wrong membership")
	}
}

func TestGraph_AddNode_ReplacesData(t *testing.T) {
	g := NewGraph[int]()
	g.AddNode("a", 1)
	g.AddNode("a", 2)

	n, ok := g.GetNode("a")
	if !ok || n.Data != 2 {
		t.Errorf("expected updated data 2, got %+v", n)
	}
	if g.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", g.NodeCount())
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_SelfLoopIsCycle(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("public.loop", nil)

	if err := g.AddEdge("public.loop", "public.loop"); err != nil {
		t.Fatalf("self-loop should be recorded: %v", err)
	}

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected self-loop to be a cycle")
	}
	if !reflect.DeepEqual(path, []string{"public.loop", "public.loop"}) {
		t.Errorf("unexpected cycle path: %v", path)
	}
}

func TestGraph_GetParentsAndChildren(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("a", "b")

	if got := g.GetParents("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected sorted parents [a b], got %v", got)
	}
	if got := g.GetChildren("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("expected sorted children [b c], got %v", got)
	}
}

func TestGraph_HasCycle_NoCycle(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")

	if hasCycle, path := g.HasCycle(); hasCycle {
		t.Errorf("expected no cycle, but found: %v", path)
	}
}

func TestGraph_HasCycle_WithCycle(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "a")

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle to be detected")
	}
	if !reflect.DeepEqual(path, []string{"a", "b", "c", "a"}) {
		t.Errorf("unexpected cycle path: %v", path)
	}
}

func TestGraph_TopologicalSort_Chain(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("z", nil)
	g.AddNode("y", nil)
	g.AddNode("x", nil)

	// y depends on z, x depends on y
	_ = g.AddEdge("z", "y")
	_ = g.AddEdge("y", "x")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	if got := ids(sorted); !reflect.DeepEqual(got, []string{"z", "y", "x"}) {
		t.Errorf("expected [z y x], got %v", got)
	}
}

func TestGraph_TopologicalSort_LexicalTieBreak(t *testing.T) {
	g := NewGraph[any]()
	for _, id := range []string{"d", "c", "b", "a"} {
		g.AddNode(id, nil)
	}
	// d depends on c; a and b are free
	_ = g.AddEdge("c", "d")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	if got := ids(sorted); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("expected [a b c d], got %v", got)
	}
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	g.AddNode("d", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "d")
	_ = g.AddEdge("c", "d")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	if got := ids(sorted); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("expected [a b c d], got %v", got)
	}
}

func TestGraph_TopologicalSort_WithCycle(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "a")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if len(cycleErr.Path) != 3 {
		t.Errorf("expected path of 3 entries, got %v", cycleErr.Path)
	}
}

func TestGraph_ReverseTopologicalSort(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("base", nil)
	g.AddNode("mid", nil)
	g.AddNode("top", nil)
	g.AddNode("other", nil)

	_ = g.AddEdge("base", "mid")
	_ = g.AddEdge("mid", "top")

	sorted, err := g.ReverseTopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	if got := ids(sorted); !reflect.DeepEqual(got, []string{"other", "top", "mid", "base"}) {
		t.Errorf("expected [other top mid base], got %v", got)
	}
}

func TestGraph_GetAffectedNodes(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	g.AddNode("d", nil)

	// b depends on a, c depends on b, d is independent
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")

	affected := g.GetAffectedNodes([]string{"a", "missing"})
	if !reflect.DeepEqual(affected, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", affected)
	}
}

func TestGraph_Subgraph(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a", "A")
	g.AddNode("b", "B")
	g.AddNode("c", "C")
	g.AddNode("d", "D")

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "d")

	sub := g.Subgraph([]string{"b", "c", "missing"})

	if sub.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", sub.NodeCount())
	}
	if sub.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", sub.EdgeCount())
	}
	if children := sub.GetChildren("b"); len(children) != 1 || children[0] != "c" {
		t.Error("expected edge from b to c")
	}
	if n, _ := sub.GetNode("b"); n.Data != "B" {
		t.Errorf("expected node data to be copied, got %q", n.Data)
	}
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := NewGraph[any]()
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "b")

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge (no duplicates), got %d", g.EdgeCount())
	}
}
