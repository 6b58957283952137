package genotype

// smallDFA is a complete three-state DFA over {0,1}. It accepts "11" and
// "0011" but not "111".
func smallDFA() *Chromosome {
	return NewChromosomeFrom(
		[]State{{ID: 1}, {ID: 2}, {ID: 3, IsAccept: true}},
		[]Edge{
			{ID: 1, Source: 1, Input: '0', Target: 1},
			{ID: 2, Source: 1, Input: '1', Target: 2},
			{ID: 3, Source: 2, Input: '0', Target: 1},
			{ID: 4, Source: 2, Input: '1', Target: 3},
			{ID: 5, Source: 3, Input: '1', Target: 1},
			{ID: 6, Source: 3, Input: '0', Target: 1},
		},
		1,
	)
}

// smallNFA branches on '0' out of the start state and is missing one
// transition per state.
func smallNFA() *Chromosome {
	return NewChromosomeFrom(
		[]State{{ID: 1}, {ID: 2}, {ID: 3, IsAccept: true}},
		[]Edge{
			{ID: 1, Source: 1, Input: '0', Target: 1},
			{ID: 2, Source: 1, Input: '0', Target: 2},
			{ID: 3, Source: 2, Input: '1', Target: 3},
			{ID: 4, Source: 3, Input: '1', Target: 3},
		},
		1,
	)
}
