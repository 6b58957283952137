package evo

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// RunState is what termination predicates see after each generation.
// BestFitness and BestHistory carry the evaluator's raw score of the
// top-ranked chromosome, so they stay comparable with the fitness upper bound
// whatever postprocessor ranks the population.
type RunState struct {
	Generation  int
	BestFitness float64
	BestHistory []float64
}

type Termination interface {
	Name() string
	HasReached(state RunState) bool
}

type GenerationLimit struct {
	Generations int
}

func (t GenerationLimit) Name() string {
	return fmt.Sprintf("generation_limit(%d)", t.Generations)
}

func (t GenerationLimit) HasReached(state RunState) bool {
	return state.Generation >= t.Generations
}

// FitnessStagnation is reached once the best fitness has stayed the same for
// the last Generations generations.
type FitnessStagnation struct {
	Generations int
}

func (t FitnessStagnation) Name() string {
	return fmt.Sprintf("fitness_stagnation(%d)", t.Generations)
}

func (t FitnessStagnation) HasReached(state RunState) bool {
	n := t.Generations
	if n <= 0 || len(state.BestHistory) < n {
		return false
	}
	last := state.BestHistory[len(state.BestHistory)-1]
	for _, f := range state.BestHistory[len(state.BestHistory)-n:] {
		if f != last {
			return false
		}
	}
	return true
}

type FitnessThreshold struct {
	Threshold float64
}

func (t FitnessThreshold) Name() string {
	return fmt.Sprintf("fitness_threshold(%g)", t.Threshold)
}

func (t FitnessThreshold) HasReached(state RunState) bool {
	return state.BestFitness >= t.Threshold
}

type AnyOf []Termination

func (t AnyOf) Name() string {
	return joinNames("any", t)
}

func (t AnyOf) HasReached(state RunState) bool {
	_, ok := t.Reached(state)
	return ok
}

// Reached returns the first member that is satisfied.
func (t AnyOf) Reached(state RunState) (Termination, bool) {
	for _, item := range t {
		if item.HasReached(state) {
			return item, true
		}
	}
	return nil, false
}

type AllOf []Termination

func (t AllOf) Name() string {
	return joinNames("all", t)
}

func (t AllOf) HasReached(state RunState) bool {
	if len(t) == 0 {
		return false
	}
	for _, item := range t {
		if !item.HasReached(state) {
			return false
		}
	}
	return true
}

// KillSwitch stops a run from another goroutine.
type KillSwitch struct {
	killed atomic.Bool
}

func (k *KillSwitch) Kill() {
	k.killed.Store(true)
}

func (k *KillSwitch) Name() string {
	return "kill_switch"
}

func (k *KillSwitch) HasReached(RunState) bool {
	return k.killed.Load()
}

// StopReason names the predicate that ended the run, descending into AnyOf.
func StopReason(t Termination, state RunState) string {
	if anyOf, ok := t.(AnyOf); ok {
		if hit, ok := anyOf.Reached(state); ok {
			return StopReason(hit, state)
		}
	}
	return t.Name()
}

func joinNames(kind string, items []Termination) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name())
	}
	return kind + "(" + strings.Join(names, ",") + ")"
}
