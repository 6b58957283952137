package evo

import (
	"fmt"
	"math"

	"geneticdfa/internal/genotype"
)

// MutationCountPolicy determines how many mutation calls are chained to
// produce one mutated offspring.
type MutationCountPolicy interface {
	Name() string
	MutationCount(c *genotype.Chromosome, generation int) (int, error)
}

type ConstMutationCount struct {
	Count int
}

func (ConstMutationCount) Name() string {
	return "const"
}

func (p ConstMutationCount) MutationCount(_ *genotype.Chromosome, _ int) (int, error) {
	if p.Count <= 0 {
		return 0, fmt.Errorf("const mutation count must be > 0")
	}
	return p.Count, nil
}

// StateLinearMutationCount scales the count with the number of states.
type StateLinearMutationCount struct {
	Multiplier float64
	MaxCount   int
}

func (StateLinearMutationCount) Name() string {
	return "state_linear"
}

func (p StateLinearMutationCount) MutationCount(c *genotype.Chromosome, _ int) (int, error) {
	if p.Multiplier <= 0 {
		return 0, fmt.Errorf("linear multiplier must be > 0")
	}
	count := int(math.Round(float64(len(c.States)) * p.Multiplier))
	if count < 1 {
		count = 1
	}
	if p.MaxCount > 0 && count > p.MaxCount {
		count = p.MaxCount
	}
	return count, nil
}
