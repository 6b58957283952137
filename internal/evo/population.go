package evo

import (
	"fmt"
	"sync/atomic"

	"geneticdfa/internal/genotype"
)

// LineageCounter hands out lineage ids to new individuals. It is safe for
// concurrent use.
type LineageCounter struct {
	last atomic.Uint64
}

// NewLineageCounter returns a counter whose first id is start+1.
func NewLineageCounter(start uint64) *LineageCounter {
	c := &LineageCounter{}
	c.last.Store(start)
	return c
}

func (c *LineageCounter) Next() uint64 {
	return c.last.Add(1)
}

func (c *LineageCounter) Last() uint64 {
	return c.last.Load()
}

// InitialPopulation builds size random chromosomes over alphabet, each with a
// fresh lineage id.
func InitialPopulation(size int, alphabet []rune, rng genotype.Rand, ids *LineageCounter) ([]*genotype.Chromosome, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if ids == nil {
		ids = NewLineageCounter(0)
	}
	population := make([]*genotype.Chromosome, 0, size)
	for i := 0; i < size; i++ {
		c, err := genotype.CreateChromosome(alphabet, rng)
		if err != nil {
			return nil, fmt.Errorf("create chromosome %d: %w", i, err)
		}
		c.LineageID = ids.Next()
		population = append(population, c)
	}
	return population, nil
}
