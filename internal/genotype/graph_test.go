package genotype

import (
	"strings"
	"testing"

	"gonum.org/v1/gonum/graph/encoding/dot"
)

func TestGraphKeepsParallelLinesAndLoops(t *testing.T) {
	c := smallDFA()
	g := Graph(c)
	if n := g.Nodes().Len(); n != 3 {
		t.Fatalf("expected 3 nodes, got %d", n)
	}

	// 3-0->1 and 3-1->1 are parallel lines
	if n := g.Lines(3, 1).Len(); n != 2 {
		t.Fatalf("expected 2 lines 3->1, got %d", n)
	}
	if n := g.Lines(1, 1).Len(); n != 1 {
		t.Fatalf("expected 1 self loop on 1, got %d", n)
	}
	if g.Node(99) != nil {
		t.Fatal("unknown node should be nil")
	}
}

func TestGraphSkipsDanglingEdges(t *testing.T) {
	c := smallDFA()
	c.Edges = append(c.Edges, Edge{ID: 50, Source: 1, Input: '1', Target: 77})
	g := Graph(c)
	if n := g.Nodes().Len(); n != 3 {
		t.Fatalf("expected 3 nodes, got %d", n)
	}
	if n := g.Lines(1, 2).Len(); n != 1 {
		t.Fatalf("expected 1 line 1->2, got %d", n)
	}
}

func TestGraphMarshalsAsDOT(t *testing.T) {
	out, err := dot.MarshalMulti(Graph(smallDFA()), "dfa", "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(out)
	for _, want := range []string{"q3", "doublecircle", "bold", `label=1`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in:\n%s", want, text)
		}
	}
}
