package evo

import (
	"fmt"

	"geneticdfa/internal/genotype"
)

// SpecieIdentifier assigns a species key to a chromosome.
type SpecieIdentifier interface {
	Name() string
	Identify(c *genotype.Chromosome) string
}

// TopologySpecieIdentifier groups chromosomes by coarse automaton shape.
type TopologySpecieIdentifier struct{}

func (TopologySpecieIdentifier) Name() string {
	return "topology"
}

func (TopologySpecieIdentifier) Identify(c *genotype.Chromosome) string {
	return fmt.Sprintf("q:%d-e:%d-a:%d-nd:%d",
		len(c.States),
		len(c.Edges),
		c.AcceptCount(),
		c.NonDeterministicCount(),
	)
}

// FingerprintSpecieIdentifier groups chromosomes that are identical up to
// state and edge numbering.
type FingerprintSpecieIdentifier struct{}

func (FingerprintSpecieIdentifier) Name() string {
	return "fingerprint"
}

func (FingerprintSpecieIdentifier) Identify(c *genotype.Chromosome) string {
	return genotype.ComputeSignature(c).Fingerprint
}
