package geneticdfa

import (
	"geneticdfa/internal/config"
	"geneticdfa/internal/evo"
	"geneticdfa/internal/genotype"
	"geneticdfa/internal/traces"
)

// NewRand returns a seeded random source usable by the helpers below.
func NewRand(seed int64) genotype.Rand {
	return genotype.NewRand(seed)
}

// CreateChromosome builds a random automaton over alphabet.
func CreateChromosome(alphabet []rune, rng genotype.Rand) (*genotype.Chromosome, error) {
	return genotype.CreateChromosome(alphabet, rng)
}

// Evaluate scores c against trs with the weights in settings and records the
// score on c.
func Evaluate(c *genotype.Chromosome, trs []traces.Trace, settings config.Settings) (float64, error) {
	fitness, err := fitnessFor(trs, settings)
	if err != nil {
		return 0, err
	}
	score := fitness.Evaluate(c)
	c.SetFitness(score)
	return score, nil
}

// Mutate returns a mutated copy of parent and the operator that produced it.
// The parent is left unchanged.
func Mutate(parent *genotype.Chromosome, alphabet []rune, settings config.Settings, rng genotype.Rand) (*genotype.Chromosome, string, error) {
	mutation, err := evo.NewMutation(alphabet, settings.MutationProbabilities())
	if err != nil {
		return nil, "", err
	}
	child, op, err := mutation.Mutate(parent, rng)
	if err != nil {
		return child, "", err
	}
	return child, op.String(), nil
}

// Cross recombines two parents into two offspring.
func Cross(parent1, parent2 *genotype.Chromosome, alphabet []rune, rng genotype.Rand) (*genotype.Chromosome, *genotype.Chromosome, error) {
	crossover, err := evo.NewCrossover(alphabet)
	if err != nil {
		return nil, nil, err
	}
	return crossover.Cross(parent1, parent2, rng)
}

// Clone deep-copies c. The copy is independent of the original.
func Clone(c *genotype.Chromosome) *genotype.Chromosome {
	return c.Clone()
}
