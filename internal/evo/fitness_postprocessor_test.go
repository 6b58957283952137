package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopPostprocessorCopies(t *testing.T) {
	in := rankedPool(3, 1)
	out := NoopFitnessPostprocessor{}.Process(in)
	out[0].Fitness = 100
	require.Equal(t, 3.0, in[0].Fitness)
}

func TestSizeProportionalPenalizesLargerAutomata(t *testing.T) {
	dfa, nfa := smallDFA(), smallNFA()
	in := []ScoredChromosome{
		{Chromosome: dfa, Fitness: 31},
		{Chromosome: nfa, Fitness: 31},
		{Chromosome: dfa, Fitness: -5},
		{Chromosome: nfa, Fitness: -5},
	}
	out := SizeProportionalPostprocessor{}.Process(in)

	require.InDelta(t, 31/math.Pow(9, 0.05), out[0].Fitness, 1e-9)
	require.InDelta(t, -5*math.Pow(9, 0.05), out[2].Fitness, 1e-9)
	require.Greater(t, out[1].Fitness, out[0].Fitness)
	require.Greater(t, out[3].Fitness, out[2].Fitness)
	require.Equal(t, 31.0, in[0].Fitness, "input must not be modified")
}

func TestPostprocessorFromName(t *testing.T) {
	for name, want := range map[string]string{"": "none", "none": "none", "size_proportional": "size_proportional"} {
		p, err := PostprocessorFromName(name)
		require.NoError(t, err)
		require.Equal(t, want, p.Name())
	}
	_, err := PostprocessorFromName("rank")
	require.Error(t, err)
}
