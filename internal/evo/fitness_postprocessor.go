package evo

import (
	"fmt"
	"math"
)

const sizeProportionalEfficiency = 0.05

// FitnessPostprocessor adjusts fitness values after evaluation and before
// ranking and selection.
type FitnessPostprocessor interface {
	Name() string
	Process(scored []ScoredChromosome) []ScoredChromosome
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process(scored []ScoredChromosome) []ScoredChromosome {
	return cloneScored(scored)
}

// SizeProportionalPostprocessor scales scores against automaton size so the
// larger of two equally scored automata ranks lower, whatever the sign.
type SizeProportionalPostprocessor struct{}

func (SizeProportionalPostprocessor) Name() string {
	return "size_proportional"
}

func (SizeProportionalPostprocessor) Process(scored []ScoredChromosome) []ScoredChromosome {
	out := cloneScored(scored)
	for i := range out {
		size := float64(out[i].Chromosome.Size())
		if size < 1 {
			size = 1
		}
		factor := math.Pow(size, sizeProportionalEfficiency)
		if out[i].Fitness >= 0 {
			out[i].Fitness /= factor
		} else {
			out[i].Fitness *= factor
		}
	}
	return out
}

func PostprocessorFromName(name string) (FitnessPostprocessor, error) {
	switch name {
	case "", "none":
		return NoopFitnessPostprocessor{}, nil
	case "size_proportional":
		return SizeProportionalPostprocessor{}, nil
	default:
		return nil, fmt.Errorf("unknown fitness postprocessor %q", name)
	}
}

func cloneScored(scored []ScoredChromosome) []ScoredChromosome {
	out := make([]ScoredChromosome, len(scored))
	copy(out, scored)
	return out
}
