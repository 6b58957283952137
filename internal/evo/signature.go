package evo

import "geneticdfa/internal/genotype"

type TopologySummary = genotype.TopologySummary

type Signature = genotype.Signature

func ComputeSignature(c *genotype.Chromosome) Signature {
	return genotype.ComputeSignature(c)
}
