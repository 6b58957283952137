package genotype

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/multi"
)

// StateNode is a chromosome state viewed as a gonum graph node.
type StateNode struct {
	StateID int
	Accept  bool
	Start   bool
}

func (n StateNode) ID() int64 { return int64(n.StateID) }

func (n StateNode) DOTID() string { return fmt.Sprintf("q%d", n.StateID) }

func (n StateNode) Attributes() []encoding.Attribute {
	shape := "circle"
	if n.Accept {
		shape = "doublecircle"
	}
	attrs := []encoding.Attribute{{Key: "shape", Value: shape}}
	if n.Start {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "bold"})
	}
	return attrs
}

// TransitionLine is a chromosome edge viewed as a gonum multigraph line.
type TransitionLine struct {
	EdgeID int
	F, T   StateNode
	Input  rune
}

func (l TransitionLine) From() graph.Node { return l.F }

func (l TransitionLine) To() graph.Node { return l.T }

func (l TransitionLine) ReversedLine() graph.Line {
	return TransitionLine{EdgeID: l.EdgeID, F: l.T, T: l.F, Input: l.Input}
}

func (l TransitionLine) ID() int64 { return int64(l.EdgeID) }

func (l TransitionLine) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: string(l.Input)}}
}

// Graph exposes the chromosome as a directed multigraph. Parallel edges with
// different inputs and self loops are both kept.
func Graph(c *Chromosome) *multi.DirectedGraph {
	g := multi.NewDirectedGraph()
	nodes := make(map[int]StateNode, len(c.States))
	for _, s := range c.States {
		n := StateNode{StateID: s.ID, Accept: s.IsAccept, Start: s.ID == c.StartStateID}
		nodes[s.ID] = n
		g.AddNode(n)
	}
	for _, e := range c.Edges {
		from, okFrom := nodes[e.Source]
		to, okTo := nodes[e.Target]
		if !okFrom || !okTo {
			continue
		}
		g.SetLine(TransitionLine{EdgeID: e.ID, F: from, T: to, Input: e.Input})
	}
	return g
}
