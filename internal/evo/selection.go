package evo

import (
	"fmt"
	"math"

	"geneticdfa/internal/genotype"
)

// ScoredChromosome pairs a chromosome with its ranking score. The score may
// have been rescaled by a postprocessor; the evaluator's own score stays on
// the chromosome.
type ScoredChromosome struct {
	Chromosome *genotype.Chromosome
	Fitness    float64
}

// RawFitness is the evaluator's score before postprocessing.
func (s ScoredChromosome) RawFitness() float64 {
	if s.Chromosome != nil && s.Chromosome.Fitness != nil {
		return *s.Chromosome.Fitness
	}
	return s.Fitness
}

// Selector draws count parents from a ranked (best first) pool.
type Selector interface {
	Name() string
	Select(rng genotype.Rand, ranked []ScoredChromosome, count int) ([]ScoredChromosome, error)
}

// EliteSelector keeps the count best entries.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) Select(_ genotype.Rand, ranked []ScoredChromosome, count int) ([]ScoredChromosome, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid selection count: %d", count)
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("cannot select from an empty population")
	}
	if count > len(ranked) {
		count = len(ranked)
	}
	out := make([]ScoredChromosome, count)
	copy(out, ranked[:count])
	return out, nil
}

// RouletteSelector draws with replacement, proportionally to fitness shifted
// so the weakest entry still has a small positive share.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) Select(rng genotype.Rand, ranked []ScoredChromosome, count int) ([]ScoredChromosome, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid selection count: %d", count)
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("cannot select from an empty population")
	}

	minFitness := ranked[0].Fitness
	for _, item := range ranked {
		if item.Fitness < minFitness {
			minFitness = item.Fitness
		}
	}
	shift := 0.0
	if minFitness <= 0 {
		shift = -minFitness + 1e-9
	}
	weights := make([]float64, len(ranked))
	for i, item := range ranked {
		weights[i] = item.Fitness + shift
	}
	wheel, err := NewRouletteWheel(weights)
	if err != nil {
		for i := range weights {
			weights[i] = 1
		}
		if wheel, err = NewRouletteWheel(weights); err != nil {
			return nil, err
		}
	}

	out := make([]ScoredChromosome, 0, count)
	for len(out) < count {
		out = append(out, ranked[wheel.Pick(rng.Float64(0, 1))])
	}
	return out, nil
}

// TournamentSelector samples TournamentSize entries per draw and keeps the
// fittest.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng genotype.Rand, ranked []ScoredChromosome, count int) ([]ScoredChromosome, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid selection count: %d", count)
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("cannot select from an empty population")
	}

	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	if size > len(ranked) {
		size = len(ranked)
	}

	out := make([]ScoredChromosome, 0, count)
	for len(out) < count {
		best := ranked[rng.Int(0, len(ranked))]
		for i := 1; i < size; i++ {
			candidate := ranked[rng.Int(0, len(ranked))]
			if candidate.Fitness > best.Fitness {
				best = candidate
			}
		}
		out = append(out, best)
	}
	return out, nil
}

func SelectorFromName(name string) (Selector, error) {
	switch name {
	case "", "roulette":
		return RouletteSelector{}, nil
	case "elite":
		return EliteSelector{}, nil
	case "tournament":
		return TournamentSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown selector %q", name)
	}
}

// SelectionScale sizes the elite pool that parents are drawn from. The pool
// grows linearly from a handful of individuals to the full population, reaching
// it after maxGenerations/scalingFactor generations.
func SelectionScale(generation, maxGenerations, scalingFactor, populationSize int) int {
	if maxGenerations <= 0 || scalingFactor <= 0 {
		return populationSize
	}
	scale := float64(generation) / (float64(maxGenerations) / float64(scalingFactor))
	if scale >= 1 {
		return populationSize
	}
	scaled := float64(populationSize) * scale
	if scaled > 2 {
		return int(math.Round(scaled))
	}
	return 3
}
