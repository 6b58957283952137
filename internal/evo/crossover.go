package evo

import (
	"geneticdfa/internal/genotype"
)

// Crossover splits each parent along a breadth-first frontier and joins the
// selected half of one parent with the unselected half of the other.
type Crossover struct {
	alphabet []rune
}

func NewCrossover(alphabet []rune) (*Crossover, error) {
	if len(alphabet) == 0 {
		return nil, genotype.ErrEmptyAlphabet
	}
	return &Crossover{alphabet: append([]rune(nil), alphabet...)}, nil
}

func (x *Crossover) Name() string {
	return "crossover"
}

// SelectStatesBreadthFirst returns floor(n/2) state ids in breadth-first
// visiting order from the start state. Chromosomes with at most three states
// yield only the start state.
func SelectStatesBreadthFirst(c *genotype.Chromosome) []int {
	if _, ok := c.Start(); !ok {
		return nil
	}
	if len(c.States) <= 3 {
		return []int{c.StartStateID}
	}
	want := len(c.States) / 2

	outgoing := make(map[int][]int, len(c.States))
	for _, e := range c.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}
	visited := map[int]struct{}{c.StartStateID: {}}
	selected := []int{c.StartStateID}
	queue := []int{c.StartStateID}
	for len(queue) > 0 && len(selected) < want {
		current := queue[0]
		queue = queue[1:]
		for _, target := range outgoing[current] {
			if _, seen := visited[target]; seen {
				continue
			}
			visited[target] = struct{}{}
			selected = append(selected, target)
			queue = append(queue, target)
			if len(selected) == want {
				break
			}
		}
	}
	return selected
}

// Cross builds two offspring. Parents with fewer than two states or no edges
// are passed through as clones. Offspring fitness is cleared; lineage ids are
// left to the caller.
func (x *Crossover) Cross(parent1, parent2 *genotype.Chromosome, rng genotype.Rand) (*genotype.Chromosome, *genotype.Chromosome, error) {
	if !crossable(parent1) || !crossable(parent2) {
		return parent1.Clone(), parent2.Clone(), nil
	}
	selected1 := SelectStatesBreadthFirst(parent1)
	selected2 := SelectStatesBreadthFirst(parent2)

	child1, err := x.combine(parent1, parent2, selected1, selected2, rng)
	if err != nil {
		return nil, nil, err
	}
	child2, err := x.combine(parent2, parent1, selected2, selected1, rng)
	if err != nil {
		return nil, nil, err
	}
	return child1, child2, nil
}

func crossable(c *genotype.Chromosome) bool {
	return len(c.States) >= 2 && len(c.Edges) >= 1
}

// combine keeps the selected states of primary and the unselected states of
// secondary. States and edges are renumbered from zero in the child.
func (x *Crossover) combine(primary, secondary *genotype.Chromosome, primarySelected, secondarySelected []int, rng genotype.Rand) (*genotype.Chromosome, error) {
	child := genotype.NewChromosome()

	fromPrimary := make(map[int]int, len(primarySelected))
	for _, id := range primarySelected {
		s, ok := primary.State(id)
		if !ok {
			continue
		}
		fromPrimary[id] = child.AddState(s.IsAccept).ID
	}
	skip := make(map[int]struct{}, len(secondarySelected))
	for _, id := range secondarySelected {
		skip[id] = struct{}{}
	}
	fromSecondary := make(map[int]int, len(secondary.States))
	for _, s := range secondary.States {
		if _, ok := skip[s.ID]; ok {
			continue
		}
		fromSecondary[s.ID] = child.AddState(s.IsAccept).ID
	}
	child.StartStateID = fromPrimary[primary.StartStateID]

	primaryTargets := mappedIDs(primary.States, fromPrimary)
	secondaryTargets := mappedIDs(secondary.States, fromSecondary)

	present := map[genotype.EdgeKey]struct{}{}
	carry := func(edges []genotype.Edge, own map[int]int, fallback []int) {
		for _, e := range edges {
			source, ok := own[e.Source]
			if !ok {
				continue
			}
			if target, ok := own[e.Target]; ok {
				key := genotype.EdgeKey{Source: source, Input: e.Input, Target: target}
				if _, dup := present[key]; dup {
					continue
				}
				present[key] = struct{}{}
				child.AddEdge(source, e.Input, target)
				continue
			}

			options := make([]int, 0, len(fallback))
			for _, t := range fallback {
				if _, dup := present[genotype.EdgeKey{Source: source, Input: e.Input, Target: t}]; !dup {
					options = append(options, t)
				}
			}
			if len(options) == 0 {
				continue
			}
			target := options[rng.Int(0, len(options))]
			present[genotype.EdgeKey{Source: source, Input: e.Input, Target: target}] = struct{}{}
			child.AddEdge(source, e.Input, target)
		}
	}
	carry(primary.Edges, fromPrimary, secondaryTargets)
	carry(secondary.Edges, fromSecondary, primaryTargets)

	if child.AcceptCount() == 0 {
		promoted := child.States[rng.Int(0, len(child.States))].ID
		if err := child.SetAccept(promoted, true); err != nil {
			return nil, err
		}
	}
	if err := genotype.Repair(child, x.alphabet, rng); err != nil {
		return nil, err
	}
	child.ResetFitness()
	return child, nil
}

// mappedIDs lists the child ids of the mapped states in parent arena order.
func mappedIDs(states []genotype.State, mapping map[int]int) []int {
	out := make([]int, 0, len(mapping))
	for _, s := range states {
		if id, ok := mapping[s.ID]; ok {
			out = append(out, id)
		}
	}
	return out
}
