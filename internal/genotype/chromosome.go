package genotype

import (
	"errors"
	"fmt"
)

// NoState marks a chromosome without a designated start state.
const NoState = -1

var (
	ErrEmptyAlphabet = errors.New("alphabet is empty")
	ErrInvariant     = errors.New("chromosome invariant violated")
	ErrStateNotFound = errors.New("state not found")
)

type State struct {
	ID       int
	IsAccept bool
}

// Edge is a labeled transition. Source and Target hold state ids owned by the
// same chromosome.
type Edge struct {
	ID     int
	Source int
	Target int
	Input  rune
}

// EdgeKey is the (source, input, target) triple that must be unique per
// chromosome.
type EdgeKey struct {
	Source int
	Input  rune
	Target int
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Input: e.Input, Target: e.Target}
}

// Rebind returns a copy of e pointing at different endpoints.
func (e Edge) Rebind(source, target int) Edge {
	e.Source = source
	e.Target = target
	return e
}

// Chromosome is a DFA genome: a state arena, an edge arena referencing states
// by id, and the derived reachability and non-determinism caches.
type Chromosome struct {
	States       []State
	Edges        []Edge
	StartStateID int
	NextStateID  int
	NextEdgeID   int
	LineageID    uint64
	Fitness      *float64

	reachable        map[int]struct{}
	nonDeterministic map[int]struct{}
}

// NewChromosome returns the empty template every population member is built from.
func NewChromosome() *Chromosome {
	return &Chromosome{
		StartStateID:     NoState,
		reachable:        map[int]struct{}{},
		nonDeterministic: map[int]struct{}{},
	}
}

// NewChromosomeFrom builds a chromosome around existing states and edges and
// computes its caches. Counters continue after the highest ids present.
func NewChromosomeFrom(states []State, edges []Edge, startID int) *Chromosome {
	c := NewChromosome()
	c.States = append([]State(nil), states...)
	c.Edges = append([]Edge(nil), edges...)
	c.StartStateID = startID
	for _, s := range c.States {
		if s.ID >= c.NextStateID {
			c.NextStateID = s.ID + 1
		}
	}
	for _, e := range c.Edges {
		if e.ID >= c.NextEdgeID {
			c.NextEdgeID = e.ID + 1
		}
	}
	c.RefreshReachability()
	FindAndAssignNonDeterministicEdges(c)
	return c
}

// Clone returns a fully independent copy. Caches are copied, never shared.
func (c *Chromosome) Clone() *Chromosome {
	out := &Chromosome{
		States:           append([]State(nil), c.States...),
		Edges:            append([]Edge(nil), c.Edges...),
		StartStateID:     c.StartStateID,
		NextStateID:      c.NextStateID,
		NextEdgeID:       c.NextEdgeID,
		LineageID:        c.LineageID,
		reachable:        make(map[int]struct{}, len(c.reachable)),
		nonDeterministic: make(map[int]struct{}, len(c.nonDeterministic)),
	}
	if c.Fitness != nil {
		f := *c.Fitness
		out.Fitness = &f
	}
	for id := range c.reachable {
		out.reachable[id] = struct{}{}
	}
	for id := range c.nonDeterministic {
		out.nonDeterministic[id] = struct{}{}
	}
	return out
}

func (c *Chromosome) StateIndex(id int) int {
	for i := range c.States {
		if c.States[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Chromosome) State(id int) (State, bool) {
	idx := c.StateIndex(id)
	if idx < 0 {
		return State{}, false
	}
	return c.States[idx], true
}

func (c *Chromosome) Start() (State, bool) {
	if c.StartStateID == NoState {
		return State{}, false
	}
	return c.State(c.StartStateID)
}

func (c *Chromosome) SetAccept(id int, accept bool) error {
	idx := c.StateIndex(id)
	if idx < 0 {
		return fmt.Errorf("set accept on state %d: %w", id, ErrStateNotFound)
	}
	c.States[idx].IsAccept = accept
	return nil
}

func (c *Chromosome) AcceptCount() int {
	n := 0
	for _, s := range c.States {
		if s.IsAccept {
			n++
		}
	}
	return n
}

// Size is the parsimony measure: states plus edges.
func (c *Chromosome) Size() int {
	return len(c.States) + len(c.Edges)
}

func (c *Chromosome) HasEdge(source int, input rune, target int) bool {
	for _, e := range c.Edges {
		if e.Source == source && e.Input == input && e.Target == target {
			return true
		}
	}
	return false
}

// AddState mints a fresh state id and appends the state.
func (c *Chromosome) AddState(accept bool) State {
	s := State{ID: c.NextStateID, IsAccept: accept}
	c.NextStateID++
	c.States = append(c.States, s)
	return s
}

// AddEdge mints a fresh edge id and appends the edge. Callers are responsible
// for uniqueness of the (source, input, target) triple.
func (c *Chromosome) AddEdge(source int, input rune, target int) Edge {
	e := Edge{ID: c.NextEdgeID, Source: source, Target: target, Input: input}
	c.NextEdgeID++
	c.Edges = append(c.Edges, e)
	return e
}

func (c *Chromosome) RemoveEdgeAt(i int) Edge {
	e := c.Edges[i]
	c.Edges = append(c.Edges[:i], c.Edges[i+1:]...)
	delete(c.nonDeterministic, e.ID)
	return e
}

// RemoveState drops the state from the arena. Edges touching it are left to
// the caller.
func (c *Chromosome) RemoveState(id int) bool {
	idx := c.StateIndex(id)
	if idx < 0 {
		return false
	}
	c.States = append(c.States[:idx], c.States[idx+1:]...)
	delete(c.reachable, id)
	return true
}

func (c *Chromosome) IsReachable(id int) bool {
	_, ok := c.reachable[id]
	return ok
}

// ReachableStates returns reachable state ids in arena order.
func (c *Chromosome) ReachableStates() []int {
	out := make([]int, 0, len(c.reachable))
	for _, s := range c.States {
		if _, ok := c.reachable[s.ID]; ok {
			out = append(out, s.ID)
		}
	}
	return out
}

// UnreachableStates returns unreachable state ids in arena order.
func (c *Chromosome) UnreachableStates() []int {
	out := make([]int, 0, max(len(c.States)-len(c.reachable), 0))
	for _, s := range c.States {
		if _, ok := c.reachable[s.ID]; !ok {
			out = append(out, s.ID)
		}
	}
	return out
}

func (c *Chromosome) ReachableCount() int {
	return len(c.reachable)
}

// MarkReachable records a state as reachable without a full recomputation.
// Callers must only use it when an edge from a reachable state was just added.
func (c *Chromosome) MarkReachable(id int) {
	if c.reachable == nil {
		c.reachable = map[int]struct{}{}
	}
	c.reachable[id] = struct{}{}
}

func (c *Chromosome) IsNonDeterministic(edgeID int) bool {
	_, ok := c.nonDeterministic[edgeID]
	return ok
}

// NonDeterministicEdges returns the cached non-deterministic edges in edge order.
func (c *Chromosome) NonDeterministicEdges() []Edge {
	out := make([]Edge, 0, len(c.nonDeterministic))
	for _, e := range c.Edges {
		if _, ok := c.nonDeterministic[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (c *Chromosome) NonDeterministicCount() int {
	return len(c.nonDeterministic)
}

// ResetFitness clears the score after a structural change.
func (c *Chromosome) ResetFitness() {
	c.Fitness = nil
}

func (c *Chromosome) SetFitness(f float64) {
	c.Fitness = &f
}

// Validate reports the first violated structural invariant.
func (c *Chromosome) Validate() error {
	stateIDs := make(map[int]struct{}, len(c.States))
	for _, s := range c.States {
		if _, dup := stateIDs[s.ID]; dup {
			return fmt.Errorf("%w: duplicate state id %d", ErrInvariant, s.ID)
		}
		stateIDs[s.ID] = struct{}{}
	}
	if _, ok := stateIDs[c.StartStateID]; !ok {
		return fmt.Errorf("%w: start state %d is not a member", ErrInvariant, c.StartStateID)
	}
	if c.AcceptCount() == 0 {
		return fmt.Errorf("%w: no accept state", ErrInvariant)
	}
	edgeIDs := make(map[int]struct{}, len(c.Edges))
	keys := make(map[EdgeKey]struct{}, len(c.Edges))
	for _, e := range c.Edges {
		if _, dup := edgeIDs[e.ID]; dup {
			return fmt.Errorf("%w: duplicate edge id %d", ErrInvariant, e.ID)
		}
		edgeIDs[e.ID] = struct{}{}
		if _, dup := keys[e.Key()]; dup {
			return fmt.Errorf("%w: duplicate edge (%d,%q,%d)", ErrInvariant, e.Source, e.Input, e.Target)
		}
		keys[e.Key()] = struct{}{}
		if _, ok := stateIDs[e.Source]; !ok {
			return fmt.Errorf("%w: edge %d source %d is not a member", ErrInvariant, e.ID, e.Source)
		}
		if _, ok := stateIDs[e.Target]; !ok {
			return fmt.Errorf("%w: edge %d target %d is not a member", ErrInvariant, e.ID, e.Target)
		}
	}
	reachable := FindReachableStates(c)
	if len(reachable) != len(c.States) {
		return fmt.Errorf("%w: %d of %d states unreachable", ErrInvariant, len(c.States)-len(reachable), len(c.States))
	}
	return nil
}
