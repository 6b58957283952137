package genotype

// CreateChromosome builds a random, structurally valid genome for the given
// alphabet: one state per symbol, between one and len(alphabet) accept
// states, a random start state and len(alphabet)^2 unique edges.
func CreateChromosome(alphabet []rune, rng Rand) (*Chromosome, error) {
	if len(alphabet) == 0 {
		return nil, ErrEmptyAlphabet
	}
	c := NewChromosome()
	initializeStates(c, len(alphabet), rng)
	initializeEdges(c, alphabet, rng)
	if err := Repair(c, alphabet, rng); err != nil {
		return nil, err
	}
	return c, nil
}

// initializeStates creates the accept states first and the rest after them,
// then draws the start state uniformly so accept placement carries no bias
// toward the start state.
func initializeStates(c *Chromosome, count int, rng Rand) {
	accepting := rng.Int(1, count+1)
	for i := 0; i < accepting; i++ {
		c.AddState(true)
	}
	for i := accepting; i < count; i++ {
		c.AddState(false)
	}
	c.StartStateID = c.States[rng.Int(0, len(c.States))].ID
}

// initializeEdges adds n^2 unique edges for n states. With n states there are
// n^3 possible triples, so the loop always terminates.
func initializeEdges(c *Chromosome, alphabet []rune, rng Rand) {
	want := len(alphabet) * len(alphabet)
	stateCount := len(c.States)

	// (source, input) -> targets already used
	used := map[int]map[rune]map[int]struct{}{}
	for added := 0; added < want; {
		source := c.States[rng.Int(0, stateCount)].ID
		bySource := used[source]
		if bySource == nil {
			bySource = map[rune]map[int]struct{}{}
			used[source] = bySource
		}

		inputs := make([]rune, 0, len(alphabet))
		for _, symbol := range alphabet {
			if len(bySource[symbol]) < stateCount {
				inputs = append(inputs, symbol)
			}
		}
		if len(inputs) == 0 {
			continue
		}
		input := inputs[rng.Int(0, len(inputs))]
		targetsUsed := bySource[input]
		if targetsUsed == nil {
			targetsUsed = map[int]struct{}{}
			bySource[input] = targetsUsed
		}

		targets := make([]int, 0, stateCount)
		for _, s := range c.States {
			if _, taken := targetsUsed[s.ID]; !taken {
				targets = append(targets, s.ID)
			}
		}
		target := targets[rng.Int(0, len(targets))]
		targetsUsed[target] = struct{}{}
		c.AddEdge(source, input, target)
		added++
	}
}
