package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"geneticdfa/internal/genotype"
)

var (
	ErrInvalidProbability  = errors.New("invalid probability")
	ErrZeroProbabilityMass = errors.New("operator probabilities sum to zero")
	ErrNoMutationApplied   = errors.New("no mutation operator applied")
)

type MutationOperator int

const (
	ChangeSource MutationOperator = iota
	ChangeTarget
	ChangeInput
	RemoveEdge
	AddEdge
	AddState
	AddAcceptState
	RemoveAcceptState
	MergeStates

	mutationOperatorCount
)

var mutationOperatorNames = [mutationOperatorCount]string{
	ChangeSource:      "change_source",
	ChangeTarget:      "change_target",
	ChangeInput:       "change_input",
	RemoveEdge:        "remove_edge",
	AddEdge:           "add_edge",
	AddState:          "add_state",
	AddAcceptState:    "add_accept_state",
	RemoveAcceptState: "remove_accept_state",
	MergeStates:       "merge_states",
}

func (op MutationOperator) String() string {
	if op < 0 || op >= mutationOperatorCount {
		return fmt.Sprintf("mutation_operator(%d)", int(op))
	}
	return mutationOperatorNames[op]
}

func ParseMutationOperator(name string) (MutationOperator, error) {
	for i, n := range mutationOperatorNames {
		if n == name {
			return MutationOperator(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mutation operator %q", name)
}

// MutationOperators lists every operator in wheel order.
func MutationOperators() []MutationOperator {
	out := make([]MutationOperator, 0, mutationOperatorCount)
	for op := MutationOperator(0); op < mutationOperatorCount; op++ {
		out = append(out, op)
	}
	return out
}

// MutationProbabilities holds the relative weight of each operator plus the
// chance that a call concentrates on non-deterministic edges.
type MutationProbabilities struct {
	NonDeterministicBehavior float64
	ChangeSource             float64
	ChangeTarget             float64
	ChangeInput              float64
	RemoveEdge               float64
	AddEdge                  float64
	AddState                 float64
	AddAcceptState           float64
	RemoveAcceptState        float64
	MergeStates              float64
}

func DefaultMutationProbabilities() MutationProbabilities {
	return MutationProbabilities{
		NonDeterministicBehavior: 0.65,
		ChangeSource:             0.11,
		ChangeTarget:             0.11,
		ChangeInput:              0.11,
		RemoveEdge:               0.11,
		AddEdge:                  0.12,
		AddState:                 0.11,
		AddAcceptState:           0.11,
		RemoveAcceptState:        0.11,
		MergeStates:              0.11,
	}
}

func (p MutationProbabilities) weights() []float64 {
	w := make([]float64, mutationOperatorCount)
	w[ChangeSource] = p.ChangeSource
	w[ChangeTarget] = p.ChangeTarget
	w[ChangeInput] = p.ChangeInput
	w[RemoveEdge] = p.RemoveEdge
	w[AddEdge] = p.AddEdge
	w[AddState] = p.AddState
	w[AddAcceptState] = p.AddAcceptState
	w[RemoveAcceptState] = p.RemoveAcceptState
	w[MergeStates] = p.MergeStates
	return w
}

// Mutation applies one of nine graph edits per call, chosen from a roulette
// wheel built once from the configured probabilities.
type Mutation struct {
	alphabet []rune
	probs    MutationProbabilities
	wheel    RouletteWheel
}

func NewMutation(alphabet []rune, probs MutationProbabilities) (*Mutation, error) {
	if len(alphabet) == 0 {
		return nil, genotype.ErrEmptyAlphabet
	}
	nd := probs.NonDeterministicBehavior
	if nd < 0 || nd > 1 || math.IsNaN(nd) {
		return nil, fmt.Errorf("%w: non-deterministic behavior %v", ErrInvalidProbability, nd)
	}
	wheel, err := NewRouletteWheel(probs.weights())
	if err != nil {
		return nil, fmt.Errorf("build mutation wheel: %w", err)
	}
	return &Mutation{
		alphabet: append([]rune(nil), alphabet...),
		probs:    probs,
		wheel:    wheel,
	}, nil
}

func (m *Mutation) Name() string {
	return "mutation"
}

// Apply implements Operator. An exhausted wheel is reported as
// ErrNoMutationApplied together with the unchanged clone.
func (m *Mutation) Apply(ctx context.Context, parent *genotype.Chromosome, rng genotype.Rand) (*genotype.Chromosome, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	child, op, err := m.Mutate(parent, rng)
	if err != nil {
		return child, "", err
	}
	return child, op.String(), nil
}

// Mutate clones parent and applies the first operator drawn from the wheel
// that succeeds, never drawing the same operator twice in one call. The clone
// is repaired and its fitness cleared. Lineage ids are left to the caller.
func (m *Mutation) Mutate(parent *genotype.Chromosome, rng genotype.Rand) (*genotype.Chromosome, MutationOperator, error) {
	child := parent.Clone()
	focus := rng.Float64(0, 1) < m.probs.NonDeterministicBehavior

	var tried [mutationOperatorCount]bool
	for {
		slot, ok := m.wheel.PickExcluding(rng.Float64(0, 1), func(i int) bool { return tried[i] })
		if !ok {
			return child, 0, ErrNoMutationApplied
		}
		tried[slot] = true
		op := MutationOperator(slot)
		if !m.ApplyOperator(child, op, focus, rng) {
			continue
		}
		if err := genotype.Repair(child, m.alphabet, rng); err != nil {
			return nil, op, err
		}
		child.ResetFitness()
		return child, op, nil
	}
}

// ApplyOperator runs one operator in place and reports whether it changed c.
// Caches are not refreshed.
func (m *Mutation) ApplyOperator(c *genotype.Chromosome, op MutationOperator, focus bool, rng genotype.Rand) bool {
	switch op {
	case ChangeSource:
		return m.modifyEdge(c, focus, rng, m.changeSource)
	case ChangeTarget:
		return m.modifyEdge(c, focus, rng, m.changeTarget)
	case ChangeInput:
		return m.modifyEdge(c, focus, rng, m.changeInput)
	case RemoveEdge:
		return m.removeEdge(c, focus, rng)
	case AddEdge:
		return m.addEdge(c, rng)
	case AddState:
		return m.addState(c, rng)
	case AddAcceptState:
		return m.addAcceptState(c, rng)
	case RemoveAcceptState:
		return m.removeAcceptState(c, rng)
	case MergeStates:
		return m.mergeStates(c, focus, rng)
	default:
		return false
	}
}

// candidateEdges returns edge positions from the non-deterministic set when
// nonDeterminism is set, otherwise from its complement. An empty selection
// falls back to every edge.
func candidateEdges(c *genotype.Chromosome, nonDeterminism bool) []int {
	out := make([]int, 0, len(c.Edges))
	for i, e := range c.Edges {
		if c.IsNonDeterministic(e.ID) == nonDeterminism {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		for i := range c.Edges {
			out = append(out, i)
		}
	}
	return out
}

// modifyEdge tries edit on shuffled candidates from the focused set and then,
// if that set was a strict subset, from the opposite set.
func (m *Mutation) modifyEdge(c *genotype.Chromosome, focus bool, rng genotype.Rand, edit func(*genotype.Chromosome, int, genotype.Rand) bool) bool {
	candidates := candidateEdges(c, focus)
	genotype.Shuffle(rng, candidates)
	for _, i := range candidates {
		if edit(c, i, rng) {
			return true
		}
	}
	if len(candidates) == len(c.Edges) {
		return false
	}

	candidates = candidateEdges(c, !focus)
	genotype.Shuffle(rng, candidates)
	for _, i := range candidates {
		if edit(c, i, rng) {
			return true
		}
	}
	return false
}

func (m *Mutation) changeSource(c *genotype.Chromosome, i int, rng genotype.Rand) bool {
	edge := c.Edges[i]
	taken := map[int]struct{}{}
	for _, e := range c.Edges {
		if e.Input == edge.Input && e.Target == edge.Target {
			taken[e.Source] = struct{}{}
		}
	}
	options := make([]int, 0, len(c.States))
	for _, s := range c.States {
		if _, ok := taken[s.ID]; !ok {
			options = append(options, s.ID)
		}
	}
	if len(options) == 0 {
		return false
	}
	c.Edges[i].Source = options[rng.Int(0, len(options))]
	return true
}

func (m *Mutation) changeTarget(c *genotype.Chromosome, i int, rng genotype.Rand) bool {
	edge := c.Edges[i]
	taken := map[int]struct{}{}
	for _, e := range c.Edges {
		if e.Source == edge.Source && e.Input == edge.Input {
			taken[e.Target] = struct{}{}
		}
	}
	options := make([]int, 0, len(c.States))
	for _, s := range c.States {
		if _, ok := taken[s.ID]; !ok {
			options = append(options, s.ID)
		}
	}
	if len(options) == 0 {
		return false
	}
	c.Edges[i].Target = options[rng.Int(0, len(options))]
	return true
}

func (m *Mutation) changeInput(c *genotype.Chromosome, i int, rng genotype.Rand) bool {
	edge := c.Edges[i]
	taken := map[rune]struct{}{}
	for _, e := range c.Edges {
		if e.Source == edge.Source && e.Target == edge.Target {
			taken[e.Input] = struct{}{}
		}
	}
	options := make([]rune, 0, len(m.alphabet))
	for _, symbol := range m.alphabet {
		if _, ok := taken[symbol]; !ok {
			options = append(options, symbol)
		}
	}
	if len(options) == 0 {
		return false
	}
	c.Edges[i].Input = options[rng.Int(0, len(options))]
	return true
}

func (m *Mutation) removeEdge(c *genotype.Chromosome, focus bool, rng genotype.Rand) bool {
	if len(c.Edges) == 0 {
		return false
	}
	candidates := candidateEdges(c, focus)
	c.RemoveEdgeAt(candidates[rng.Int(0, len(candidates))])
	return true
}

func (m *Mutation) addEdge(c *genotype.Chromosome, rng genotype.Rand) bool {
	stateCount := len(c.States)
	used := map[int]map[rune]map[int]struct{}{}
	for _, e := range c.Edges {
		if used[e.Source] == nil {
			used[e.Source] = map[rune]map[int]struct{}{}
		}
		if used[e.Source][e.Input] == nil {
			used[e.Source][e.Input] = map[int]struct{}{}
		}
		used[e.Source][e.Input][e.Target] = struct{}{}
	}
	spareInputs := func(source int) []rune {
		out := make([]rune, 0, len(m.alphabet))
		for _, symbol := range m.alphabet {
			if len(used[source][symbol]) < stateCount {
				out = append(out, symbol)
			}
		}
		return out
	}

	sources := make([]int, 0, stateCount)
	for _, id := range c.ReachableStates() {
		if len(spareInputs(id)) > 0 {
			sources = append(sources, id)
		}
	}
	if len(sources) == 0 {
		return false
	}
	source := sources[rng.Int(0, len(sources))]
	inputs := spareInputs(source)
	input := inputs[rng.Int(0, len(inputs))]

	targets := make([]int, 0, stateCount)
	for _, s := range c.States {
		if _, ok := used[source][input][s.ID]; !ok {
			targets = append(targets, s.ID)
		}
	}
	c.AddEdge(source, input, targets[rng.Int(0, len(targets))])
	return true
}

// addState appends a non-accepting state entered from a reachable state, then
// either gives it an outgoing edge or a second incoming edge.
func (m *Mutation) addState(c *genotype.Chromosome, rng genotype.Rand) bool {
	reachable := c.ReachableStates()
	if len(reachable) == 0 {
		return false
	}
	existing := make([]int, 0, len(c.States))
	for _, s := range c.States {
		existing = append(existing, s.ID)
	}

	state := c.AddState(false)
	first := reachable[rng.Int(0, len(reachable))]
	c.AddEdge(first, m.alphabet[rng.Int(0, len(m.alphabet))], state.ID)
	c.MarkReachable(state.ID)

	others := make([]int, 0, len(reachable))
	for _, id := range reachable {
		if id != first {
			others = append(others, id)
		}
	}
	input := m.alphabet[rng.Int(0, len(m.alphabet))]
	if rng.Int(0, 2) == 0 || len(others) == 0 {
		c.AddEdge(state.ID, input, existing[rng.Int(0, len(existing))])
		return true
	}
	c.AddEdge(others[rng.Int(0, len(others))], input, state.ID)
	return true
}

func (m *Mutation) addAcceptState(c *genotype.Chromosome, rng genotype.Rand) bool {
	if len(c.States) <= 1 {
		return false
	}
	options := make([]int, 0, len(c.States))
	for _, s := range c.States {
		if !s.IsAccept && c.IsReachable(s.ID) {
			options = append(options, s.ID)
		}
	}
	if len(options) == 0 {
		return false
	}
	return c.SetAccept(options[rng.Int(0, len(options))], true) == nil
}

// removeAcceptState clears one accept flag. When it is the only accept state
// another state is promoted first so at least one remains.
func (m *Mutation) removeAcceptState(c *genotype.Chromosome, rng genotype.Rand) bool {
	if len(c.States) <= 1 {
		return false
	}
	accepting := make([]int, 0, len(c.States))
	rejecting := make([]int, 0, len(c.States))
	for _, s := range c.States {
		if s.IsAccept {
			accepting = append(accepting, s.ID)
		} else {
			rejecting = append(rejecting, s.ID)
		}
	}
	if len(accepting) == 0 {
		return false
	}
	victim := accepting[rng.Int(0, len(accepting))]
	if len(accepting) == 1 {
		if len(rejecting) == 0 {
			return false
		}
		if err := c.SetAccept(rejecting[rng.Int(0, len(rejecting))], true); err != nil {
			return false
		}
	}
	return c.SetAccept(victim, false) == nil
}

// mergeStates folds one state into another. With focus on non-determinism the
// pair is taken from the targets of a shared (source, input) pair, which
// removes that branching.
func (m *Mutation) mergeStates(c *genotype.Chromosome, focus bool, rng genotype.Rand) bool {
	if len(c.States) < 2 {
		return false
	}
	keep, drop, ok := m.pickMergePair(c, focus, rng)
	if !ok {
		return false
	}

	dropped, _ := c.State(drop)
	if dropped.IsAccept {
		if err := c.SetAccept(keep, true); err != nil {
			return false
		}
	}
	if c.StartStateID == drop {
		c.StartStateID = keep
	}
	for i := range c.Edges {
		e := c.Edges[i]
		source, target := e.Source, e.Target
		if source == drop {
			source = keep
		}
		if target == drop {
			target = keep
		}
		c.Edges[i] = e.Rebind(source, target)
	}
	dedupeEdges(c)
	c.RemoveState(drop)
	return true
}

func (m *Mutation) pickMergePair(c *genotype.Chromosome, focus bool, rng genotype.Rand) (int, int, bool) {
	if focus {
		if nd := c.NonDeterministicEdges(); len(nd) > 0 {
			pivot := nd[rng.Int(0, len(nd))]
			siblings := make([]int, 0, len(nd))
			for _, e := range nd {
				if e.Source == pivot.Source && e.Input == pivot.Input && e.Target != pivot.Target {
					siblings = append(siblings, e.Target)
				}
			}
			if len(siblings) > 0 {
				return pivot.Target, siblings[rng.Int(0, len(siblings))], true
			}
		}
	}
	first := c.States[rng.Int(0, len(c.States))].ID
	others := make([]int, 0, len(c.States)-1)
	for _, s := range c.States {
		if s.ID != first {
			others = append(others, s.ID)
		}
	}
	if len(others) == 0 {
		return 0, 0, false
	}
	return first, others[rng.Int(0, len(others))], true
}

// dedupeEdges sorts edges by (source, input, target) and drops adjacent
// duplicates, keeping the first occurrence.
func dedupeEdges(c *genotype.Chromosome) {
	sort.SliceStable(c.Edges, func(i, j int) bool {
		a, b := c.Edges[i], c.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Input != b.Input {
			return a.Input < b.Input
		}
		return a.Target < b.Target
	})
	for i := len(c.Edges) - 1; i > 0; i-- {
		if c.Edges[i].Key() == c.Edges[i-1].Key() {
			c.RemoveEdgeAt(i)
		}
	}
}
