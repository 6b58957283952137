package genotype

import "sort"

// FindReachableStates returns the ids of every state reachable from the start
// state through zero or more edges. Edges pointing outside the state arena
// are ignored.
func FindReachableStates(c *Chromosome) map[int]struct{} {
	reachable := map[int]struct{}{}
	if _, ok := c.Start(); !ok {
		return reachable
	}
	reachable[c.StartStateID] = struct{}{}

	members := make(map[int]struct{}, len(c.States))
	for _, s := range c.States {
		members[s.ID] = struct{}{}
	}

	outgoing := make(map[int][]int, len(c.States))
	for _, e := range c.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}
	queue := []int{c.StartStateID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, target := range outgoing[current] {
			if _, seen := reachable[target]; seen {
				continue
			}
			if _, ok := members[target]; !ok {
				continue
			}
			reachable[target] = struct{}{}
			queue = append(queue, target)
		}
	}
	return reachable
}

// RefreshReachability recomputes the cached reachable set.
func (c *Chromosome) RefreshReachability() {
	c.reachable = FindReachableStates(c)
}

// FixUnreachability connects unreachable states until every state is
// reachable from the start state. A state that is unreachable has no incoming
// edge from a reachable state, so the added edge can never be a duplicate.
func FixUnreachability(c *Chromosome, alphabet []rune, rng Rand) error {
	if _, ok := c.Start(); !ok {
		return nil
	}
	for {
		c.RefreshReachability()
		if len(c.reachable) == len(c.States) {
			return nil
		}
		if len(alphabet) == 0 {
			return ErrEmptyAlphabet
		}
		reachable := c.ReachableStates()
		unreachable := c.UnreachableStates()

		source := reachable[rng.Int(0, len(reachable))]
		input := alphabet[rng.Int(0, len(alphabet))]
		target := unreachable[rng.Int(0, len(unreachable))]
		c.AddEdge(source, input, target)
	}
}

// FindAndAssignNonDeterministicEdges replaces the cached non-deterministic
// edge set. Edges are left sorted by (source, input) so that edges sharing a
// pair sit next to each other; an edge is non-deterministic when it shares
// the pair with a neighbour.
func FindAndAssignNonDeterministicEdges(c *Chromosome) {
	c.nonDeterministic = map[int]struct{}{}
	if len(c.Edges) < 2 {
		return
	}

	sort.SliceStable(c.Edges, func(i, j int) bool {
		if c.Edges[i].Source != c.Edges[j].Source {
			return c.Edges[i].Source < c.Edges[j].Source
		}
		return c.Edges[i].Input < c.Edges[j].Input
	})

	samePair := func(a, b Edge) bool {
		return a.Source == b.Source && a.Input == b.Input
	}
	last := len(c.Edges) - 1
	for i, e := range c.Edges {
		if (i > 0 && samePair(e, c.Edges[i-1])) || (i < last && samePair(e, c.Edges[i+1])) {
			c.nonDeterministic[e.ID] = struct{}{}
		}
	}
}

// Repair restores reachability and recomputes both caches.
func Repair(c *Chromosome, alphabet []rune, rng Rand) error {
	if err := FixUnreachability(c, alphabet, rng); err != nil {
		return err
	}
	FindAndAssignNonDeterministicEdges(c)
	return nil
}
