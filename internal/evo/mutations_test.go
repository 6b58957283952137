package evo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"geneticdfa/internal/genotype"
)

func onlyOperator(op MutationOperator, nd float64) MutationProbabilities {
	p := MutationProbabilities{NonDeterministicBehavior: nd}
	switch op {
	case ChangeSource:
		p.ChangeSource = 1
	case ChangeTarget:
		p.ChangeTarget = 1
	case ChangeInput:
		p.ChangeInput = 1
	case RemoveEdge:
		p.RemoveEdge = 1
	case AddEdge:
		p.AddEdge = 1
	case AddState:
		p.AddState = 1
	case AddAcceptState:
		p.AddAcceptState = 1
	case RemoveAcceptState:
		p.RemoveAcceptState = 1
	case MergeStates:
		p.MergeStates = 1
	}
	return p
}

func TestEveryOperatorKeepsChromosomeValid(t *testing.T) {
	alphabet := []rune("abc")
	for _, op := range MutationOperators() {
		m, err := NewMutation(alphabet, onlyOperator(op, 0.5))
		require.NoError(t, err)
		for seed := int64(1); seed <= 30; seed++ {
			rng := genotype.NewRand(seed)
			parent, err := genotype.CreateChromosome(alphabet, rng)
			require.NoError(t, err)
			parent.SetFitness(1)
			before := genotype.Describe(parent)

			child, applied, err := m.Mutate(parent, rng)
			if errors.Is(err, ErrNoMutationApplied) {
				continue
			}
			require.NoError(t, err, "%s seed %d", op, seed)
			require.Equal(t, op, applied)
			require.NoError(t, child.Validate(), "%s seed %d: %s", op, seed, genotype.Describe(child))
			require.Nil(t, child.Fitness, "%s left a stale fitness", op)
			require.Equal(t, before, genotype.Describe(parent), "%s modified the parent", op)
		}
	}
}

func TestOperatorEffects(t *testing.T) {
	m, err := NewMutation(binary, DefaultMutationProbabilities())
	require.NoError(t, err)
	rng := genotype.NewRand(4)

	c := smallDFA()
	require.True(t, m.ApplyOperator(c, AddState, false, rng))
	require.Len(t, c.States, 4)
	require.Len(t, c.Edges, 8)
	require.False(t, c.States[3].IsAccept)

	c = smallDFA()
	require.True(t, m.ApplyOperator(c, AddEdge, false, rng))
	require.Len(t, c.Edges, 7)

	c = smallDFA()
	require.True(t, m.ApplyOperator(c, RemoveEdge, false, rng))
	require.Len(t, c.Edges, 5)

	c = smallDFA()
	require.True(t, m.ApplyOperator(c, AddAcceptState, false, rng))
	require.Equal(t, 2, c.AcceptCount())

	c = smallDFA()
	require.True(t, m.ApplyOperator(c, RemoveAcceptState, false, rng))
	require.Equal(t, 1, c.AcceptCount())
	s, _ := c.State(3)
	require.False(t, s.IsAccept, "the only accept state must move elsewhere")
}

func TestChangeOperatorsKeepTriplesUnique(t *testing.T) {
	m, err := NewMutation(binary, DefaultMutationProbabilities())
	require.NoError(t, err)
	for _, op := range []MutationOperator{ChangeSource, ChangeTarget, ChangeInput} {
		for seed := int64(1); seed <= 20; seed++ {
			c := smallNFA()
			if !m.ApplyOperator(c, op, seed%2 == 0, genotype.NewRand(seed)) {
				continue
			}
			require.Len(t, c.Edges, 4)
			seen := map[genotype.EdgeKey]bool{}
			for _, e := range c.Edges {
				require.False(t, seen[e.Key()], "%s produced duplicate edge %+v", op, e)
				seen[e.Key()] = true
			}
		}
	}
}

func TestFocusedMergeRemovesBranching(t *testing.T) {
	m, err := NewMutation(binary, DefaultMutationProbabilities())
	require.NoError(t, err)
	for seed := int64(1); seed <= 10; seed++ {
		c := smallNFA()
		rng := genotype.NewRand(seed)
		require.True(t, m.ApplyOperator(c, MergeStates, true, rng))
		require.NoError(t, genotype.Repair(c, binary, rng))
		require.Len(t, c.States, 2)
		require.Len(t, c.Edges, 3)
		require.Zero(t, c.NonDeterministicCount())
		require.NoError(t, c.Validate())
	}
}

func TestMergeCarriesAcceptAndStart(t *testing.T) {
	m, err := NewMutation(binary, DefaultMutationProbabilities())
	require.NoError(t, err)
	for seed := int64(1); seed <= 20; seed++ {
		c := chain(2)
		rng := genotype.NewRand(seed)
		require.True(t, m.ApplyOperator(c, MergeStates, false, rng))
		require.Len(t, c.States, 1)
		require.True(t, c.States[0].IsAccept)
		require.Equal(t, c.States[0].ID, c.StartStateID)
		require.Len(t, c.Edges, 1)
	}
}

func TestMutateReportsExhaustedWheel(t *testing.T) {
	m, err := NewMutation(binary, onlyOperator(AddAcceptState, 0))
	require.NoError(t, err)
	single := genotype.NewChromosomeFrom(
		[]genotype.State{{ID: 0, IsAccept: true}},
		[]genotype.Edge{{ID: 0, Source: 0, Input: '0', Target: 0}},
		0,
	)
	child, _, err := m.Mutate(single, genotype.NewRand(1))
	require.ErrorIs(t, err, ErrNoMutationApplied)
	require.NotNil(t, child)
	require.NotSame(t, single, child)

	_, name, err := m.Apply(context.Background(), single, genotype.NewRand(1))
	require.ErrorIs(t, err, ErrNoMutationApplied)
	require.Empty(t, name)
}

func TestApplyHonoursCancellation(t *testing.T) {
	m, err := NewMutation(binary, DefaultMutationProbabilities())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = m.Apply(ctx, smallDFA(), genotype.NewRand(1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestApplyNamesTheOperator(t *testing.T) {
	m, err := NewMutation(binary, onlyOperator(RemoveEdge, 0))
	require.NoError(t, err)
	child, name, err := m.Apply(context.Background(), smallDFA(), genotype.NewRand(2))
	require.NoError(t, err)
	require.Equal(t, "remove_edge", name)
	require.NoError(t, child.Validate())
}

func TestNewMutationValidation(t *testing.T) {
	_, err := NewMutation(nil, DefaultMutationProbabilities())
	require.ErrorIs(t, err, genotype.ErrEmptyAlphabet)

	probs := DefaultMutationProbabilities()
	probs.NonDeterministicBehavior = 1.5
	_, err = NewMutation(binary, probs)
	require.ErrorIs(t, err, ErrInvalidProbability)

	probs = DefaultMutationProbabilities()
	probs.MergeStates = -0.1
	_, err = NewMutation(binary, probs)
	require.ErrorIs(t, err, ErrInvalidProbability)

	_, err = NewMutation(binary, MutationProbabilities{NonDeterministicBehavior: 0.5})
	require.ErrorIs(t, err, ErrZeroProbabilityMass)
}

func TestParseMutationOperator(t *testing.T) {
	require.Len(t, MutationOperators(), 9)
	for _, op := range MutationOperators() {
		parsed, err := ParseMutationOperator(op.String())
		require.NoError(t, err)
		require.Equal(t, op, parsed)
	}
	_, err := ParseMutationOperator("swap_states")
	require.Error(t, err)
	require.Equal(t, "mutation_operator(42)", MutationOperator(42).String())
}

func TestMutationCountPolicies(t *testing.T) {
	_, err := ConstMutationCount{}.MutationCount(smallDFA(), 1)
	require.Error(t, err)
	n, err := ConstMutationCount{Count: 3}.MutationCount(smallDFA(), 1)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = StateLinearMutationCount{Multiplier: 0.5}.MutationCount(smallDFA(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = StateLinearMutationCount{Multiplier: 0.5, MaxCount: 1}.MutationCount(smallDFA(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = StateLinearMutationCount{Multiplier: 0.01}.MutationCount(smallDFA(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = StateLinearMutationCount{}.MutationCount(smallDFA(), 1)
	require.Error(t, err)
}
