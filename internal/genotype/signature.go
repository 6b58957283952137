package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/topo"
)

type TopologySummary struct {
	TotalStates           int            `json:"total_states"`
	TotalEdges            int            `json:"total_edges"`
	AcceptStates          int            `json:"accept_states"`
	NonDeterministicEdges int            `json:"non_deterministic_edges"`
	UnreachableStates     int            `json:"unreachable_states"`
	StronglyConnected     int            `json:"strongly_connected_components"`
	InputDistribution     map[string]int `json:"input_distribution"`
}

type Signature struct {
	Fingerprint string          `json:"fingerprint"`
	Summary     TopologySummary `json:"summary"`
}

// ComputeSignature summarizes the topology and derives a fingerprint that is
// independent of state and edge numbering: states are relabeled in
// breadth-first order from the start state, following outgoing edges by input
// symbol.
func ComputeSignature(c *Chromosome) Signature {
	inputs := make(map[string]int)
	for _, e := range c.Edges {
		inputs[string(e.Input)]++
	}
	reachable := FindReachableStates(c)
	summary := TopologySummary{
		TotalStates:           len(c.States),
		TotalEdges:            len(c.Edges),
		AcceptStates:          c.AcceptCount(),
		NonDeterministicEdges: countNonDeterministic(c),
		UnreachableStates:     len(c.States) - len(reachable),
		StronglyConnected:     len(topo.TarjanSCC(Graph(c))),
		InputDistribution:     inputs,
	}

	labels := canonicalLabels(c)
	parts := []string{
		fmt.Sprintf("q=%d", summary.TotalStates),
		fmt.Sprintf("e=%d", summary.TotalEdges),
	}
	for _, s := range c.States {
		if s.IsAccept {
			parts = append(parts, fmt.Sprintf("acc:%d", labels[s.ID]))
		}
	}
	edges := make([]string, 0, len(c.Edges))
	for _, e := range c.Edges {
		edges = append(edges, fmt.Sprintf("%d-%c->%d", labels[e.Source], e.Input, labels[e.Target]))
	}
	sort.Strings(edges)
	sort.Strings(parts[2:])
	parts = append(parts, edges...)

	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return Signature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary:     summary,
	}
}

func countNonDeterministic(c *Chromosome) int {
	pairs := make(map[[2]int]int, len(c.Edges))
	for _, e := range c.Edges {
		pairs[[2]int{e.Source, int(e.Input)}]++
	}
	n := 0
	for _, count := range pairs {
		if count > 1 {
			n += count
		}
	}
	return n
}

func canonicalLabels(c *Chromosome) map[int]int {
	outgoing := make(map[int][]Edge, len(c.States))
	for _, e := range c.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}
	for id := range outgoing {
		edges := outgoing[id]
		sort.SliceStable(edges, func(i, j int) bool { return edges[i].Input < edges[j].Input })
	}

	labels := make(map[int]int, len(c.States))
	next := 0
	visit := func(id int) bool {
		if _, ok := labels[id]; ok {
			return false
		}
		labels[id] = next
		next++
		return true
	}
	var queue []int
	if _, ok := c.Start(); ok {
		visit(c.StartStateID)
		queue = append(queue, c.StartStateID)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range outgoing[current] {
			if visit(e.Target) {
				queue = append(queue, e.Target)
			}
		}
	}
	for _, s := range c.States {
		visit(s.ID)
	}
	return labels
}
