package evo

import (
	"context"

	"geneticdfa/internal/genotype"
)

// Operator derives one offspring from one parent. The parent is never
// modified; the returned label names the edit that was applied.
type Operator interface {
	Name() string
	Apply(ctx context.Context, parent *genotype.Chromosome, rng genotype.Rand) (*genotype.Chromosome, string, error)
}

// Recombiner derives two offspring from two parents.
type Recombiner interface {
	Name() string
	Cross(parent1, parent2 *genotype.Chromosome, rng genotype.Rand) (*genotype.Chromosome, *genotype.Chromosome, error)
}

// Evaluator scores a chromosome.
type Evaluator interface {
	Evaluate(c *genotype.Chromosome) float64
}
