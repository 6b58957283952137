package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"geneticdfa/internal/genotype"
	"geneticdfa/internal/traces"
)

func TestAcceptsFollowsEveryBranch(t *testing.T) {
	nfa := smallNFA()
	cases := map[string]bool{"01": true, "011": true, "0": false, "1": false, "": false, "0x": false}
	for input, want := range cases {
		require.Equal(t, want, Accepts(nfa, input), "Accepts(%q)", input)
	}
	require.True(t, Accepts(smallDFA(), "0011"))
	require.False(t, Accepts(smallDFA(), "111"))
	require.False(t, Accepts(genotype.NewChromosome(), ""), "chromosome without start state accepted")
}

func TestAcceptsEmptyInputOnAcceptingStart(t *testing.T) {
	c := smallDFA()
	require.NoError(t, c.SetAccept(1, true))
	require.True(t, Accepts(c, ""))
}

func TestClassify(t *testing.T) {
	c := smallDFA()
	cases := []struct {
		trace traces.Trace
		want  Verdict
	}{
		{traces.Trace{Input: "11", Accepting: true}, TruePositive},
		{traces.Trace{Input: "01", Accepting: false}, TrueNegative},
		{traces.Trace{Input: "11", Accepting: false}, FalsePositive},
		{traces.Trace{Input: "01", Accepting: true}, FalseNegative},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(c, tc.trace), "Classify(%+v)", tc.trace)
	}
}

func TestMissingDeterministicEdges(t *testing.T) {
	require.Equal(t, 0, MissingDeterministicEdges(smallDFA(), binary))
	require.Equal(t, 3, MissingDeterministicEdges(smallNFA(), binary))
}

func TestEvaluateScores(t *testing.T) {
	cases := []struct {
		name   string
		c      *genotype.Chromosome
		trs    []traces.Trace
		w      Weights
		expect float64
	}{
		{"dfa unit weights", smallDFA(), dfaTraces(), unitWeights(), 4 - 9},
		{"dfa default weights", smallDFA(), dfaTraces(), defaultWeights(), 40 - 9},
		{"nfa missing edges", smallNFA(), nfaTraces(), unitWeights(), 4 - 2 - 3 - 7},
	}
	for _, tc := range cases {
		require.Equal(t, tc.expect, Evaluate(tc.c, tc.trs, binary, tc.w), tc.name)
	}

	w := unitWeights()
	w.Structural = PenaltyUnreachableStates
	require.Equal(t, float64(4-2-0-7), Evaluate(smallNFA(), nfaTraces(), binary, w), "unreachable penalty")
}

func TestEvaluateIsRepeatable(t *testing.T) {
	alphabet := []rune("abc")
	trs := []traces.Trace{
		{Input: "abca", Accepting: true},
		{Input: "cc", Accepting: true},
		{Input: "bab", Accepting: false},
		{Input: "", Accepting: false},
	}
	w := defaultWeights()
	w.Size = 0.37
	for seed := int64(1); seed <= 20; seed++ {
		c, err := genotype.CreateChromosome(alphabet, genotype.NewRand(seed))
		require.NoError(t, err)
		before := genotype.Describe(c)

		first := Evaluate(c, trs, alphabet, w)
		second := Evaluate(c, trs, alphabet, w)
		require.Equal(t, math.Float64bits(first), math.Float64bits(second), "seed %d", seed)
		require.Equal(t, before, genotype.Describe(c), "evaluation changed the chromosome")
		require.Nil(t, c.Fitness)
	}
}

func TestEvaluateWrongVerdictsSubtract(t *testing.T) {
	inverted := make([]traces.Trace, 0, 4)
	for _, tr := range dfaTraces() {
		inverted = append(inverted, traces.Trace{Input: tr.Input, Accepting: !tr.Accepting})
	}
	require.Equal(t, float64(-40-9), Evaluate(smallDFA(), inverted, binary, defaultWeights()))
}

func TestFitnessBounds(t *testing.T) {
	f, err := NewFitness(dfaTraces(), binary, defaultWeights())
	require.NoError(t, err)
	require.Equal(t, 40.0, f.UpperBound())

	score := f.Evaluate(smallDFA())
	require.Equal(t, 31.0, score)
	require.Equal(t, 77.5, f.Accuracy(score))

	zero := &Fitness{Traces: dfaTraces(), Alphabet: binary}
	require.Zero(t, zero.Accuracy(10), "zero upper bound must give zero accuracy")
}

func TestNewFitnessRejectsEmptyInputs(t *testing.T) {
	_, err := NewFitness(nil, binary, defaultWeights())
	require.ErrorIs(t, err, traces.ErrEmpty)
	_, err = NewFitness(dfaTraces(), nil, defaultWeights())
	require.ErrorIs(t, err, genotype.ErrEmptyAlphabet)
}

func TestCountVerdicts(t *testing.T) {
	trs := append(dfaTraces(), traces.Trace{Input: "0011", Accepting: false}, traces.Trace{Input: "0", Accepting: true})
	want := VerdictCounts{TruePositive: 2, TrueNegative: 2, FalsePositive: 1, FalseNegative: 1}
	require.Equal(t, want, CountVerdicts(smallDFA(), trs))
}

func TestParseStructuralPenalty(t *testing.T) {
	for name, want := range map[string]StructuralPenalty{
		"":                   PenaltyMissingEdges,
		"missing_edges":      PenaltyMissingEdges,
		"unreachable_states": PenaltyUnreachableStates,
	} {
		got, err := ParseStructuralPenalty(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}
	_, err := ParseStructuralPenalty("size")
	require.Error(t, err)
	require.Equal(t, "unreachable_states", PenaltyUnreachableStates.String())
}
