package evo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationLimit(t *testing.T) {
	limit := GenerationLimit{Generations: 3}
	assert.False(t, limit.HasReached(RunState{Generation: 2}))
	assert.True(t, limit.HasReached(RunState{Generation: 3}))
	assert.Equal(t, "generation_limit(3)", limit.Name())
}

func TestFitnessStagnation(t *testing.T) {
	stagnation := FitnessStagnation{Generations: 3}
	assert.False(t, stagnation.HasReached(RunState{BestHistory: []float64{2, 2}}))
	assert.False(t, stagnation.HasReached(RunState{BestHistory: []float64{1, 2, 2, 3}}))
	assert.True(t, stagnation.HasReached(RunState{BestHistory: []float64{1, 2, 2, 2}}))
	assert.False(t, FitnessStagnation{}.HasReached(RunState{BestHistory: []float64{1, 1}}))
}

func TestFitnessThreshold(t *testing.T) {
	threshold := FitnessThreshold{Threshold: 36}
	assert.False(t, threshold.HasReached(RunState{BestFitness: 35.9}))
	assert.True(t, threshold.HasReached(RunState{BestFitness: 36}))
}

func TestCompositeTerminations(t *testing.T) {
	state := RunState{Generation: 2, BestFitness: 12, BestHistory: []float64{12, 12}}
	anyOf := AnyOf{GenerationLimit{Generations: 5}, FitnessThreshold{Threshold: 10}}
	assert.True(t, anyOf.HasReached(state))
	assert.Equal(t, "fitness_threshold(10)", StopReason(anyOf, state))
	assert.Equal(t, "any(generation_limit(5),fitness_threshold(10))", anyOf.Name())

	allOf := AllOf{FitnessStagnation{Generations: 2}, FitnessThreshold{Threshold: 10}}
	assert.True(t, allOf.HasReached(state))
	assert.Equal(t, allOf.Name(), StopReason(allOf, state))
	assert.False(t, AllOf{}.HasReached(state))
	assert.False(t, AllOf{GenerationLimit{Generations: 5}, FitnessThreshold{Threshold: 10}}.HasReached(state))
}

func TestKillSwitch(t *testing.T) {
	ks := &KillSwitch{}
	stop := AnyOf{GenerationLimit{Generations: 100}, ks}
	assert.False(t, stop.HasReached(RunState{Generation: 1}))
	ks.Kill()
	assert.True(t, stop.HasReached(RunState{Generation: 1}))
	assert.Equal(t, "kill_switch", StopReason(stop, RunState{Generation: 1}))
}
