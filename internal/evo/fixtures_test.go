package evo

import (
	"io"
	"log/slog"

	"geneticdfa/internal/genotype"
	"geneticdfa/internal/traces"
)

var binary = []rune("01")

func smallDFA() *genotype.Chromosome {
	return genotype.NewChromosomeFrom(
		[]genotype.State{{ID: 1}, {ID: 2}, {ID: 3, IsAccept: true}},
		[]genotype.Edge{
			{ID: 1, Source: 1, Input: '0', Target: 1},
			{ID: 2, Source: 1, Input: '1', Target: 2},
			{ID: 3, Source: 2, Input: '0', Target: 1},
			{ID: 4, Source: 2, Input: '1', Target: 3},
			{ID: 5, Source: 3, Input: '1', Target: 1},
			{ID: 6, Source: 3, Input: '0', Target: 1},
		},
		1,
	)
}

func smallNFA() *genotype.Chromosome {
	return genotype.NewChromosomeFrom(
		[]genotype.State{{ID: 1}, {ID: 2}, {ID: 3, IsAccept: true}},
		[]genotype.Edge{
			{ID: 1, Source: 1, Input: '0', Target: 1},
			{ID: 2, Source: 1, Input: '0', Target: 2},
			{ID: 3, Source: 2, Input: '1', Target: 3},
			{ID: 4, Source: 3, Input: '1', Target: 3},
		},
		1,
	)
}

// chain links states 1..n in a line over '0' and accepts only the last one.
func chain(n int) *genotype.Chromosome {
	states := make([]genotype.State, 0, n)
	edges := make([]genotype.Edge, 0, n-1)
	for id := 1; id <= n; id++ {
		states = append(states, genotype.State{ID: id, IsAccept: id == n})
		if id < n {
			edges = append(edges, genotype.Edge{ID: id, Source: id, Input: '0', Target: id + 1})
		}
	}
	return genotype.NewChromosomeFrom(states, edges, 1)
}

func dfaTraces() []traces.Trace {
	return []traces.Trace{
		{Input: "11", Accepting: true},
		{Input: "00011", Accepting: true},
		{Input: "110", Accepting: false},
		{Input: "01", Accepting: false},
	}
}

func nfaTraces() []traces.Trace {
	return []traces.Trace{
		{Input: "01", Accepting: true},
		{Input: "011", Accepting: true},
		{Input: "0", Accepting: false},
		{Input: "1", Accepting: false},
	}
}

func unitWeights() Weights {
	return Weights{
		TruePositive: 1, TrueNegative: 1, FalsePositive: 1, FalseNegative: 1,
		NonDeterministicEdges: 1, MissingDeterministicEdges: 1, UnreachableStates: 1, Size: 1,
	}
}

func defaultWeights() Weights {
	w := unitWeights()
	w.TruePositive, w.TrueNegative, w.FalsePositive, w.FalseNegative = 10, 10, 10, 10
	return w
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
