package evo

import (
	"fmt"

	"geneticdfa/internal/genotype"
	"geneticdfa/internal/traces"
)

// StructuralPenalty selects which structural term is subtracted next to the
// non-determinism and size penalties.
type StructuralPenalty int

const (
	PenaltyMissingEdges StructuralPenalty = iota
	PenaltyUnreachableStates
)

func (p StructuralPenalty) String() string {
	switch p {
	case PenaltyMissingEdges:
		return "missing_edges"
	case PenaltyUnreachableStates:
		return "unreachable_states"
	default:
		return fmt.Sprintf("structural_penalty(%d)", int(p))
	}
}

func ParseStructuralPenalty(name string) (StructuralPenalty, error) {
	switch name {
	case "", "missing_edges":
		return PenaltyMissingEdges, nil
	case "unreachable_states":
		return PenaltyUnreachableStates, nil
	default:
		return 0, fmt.Errorf("unknown structural penalty %q", name)
	}
}

// Weights are the signed contributions of each verdict and penalty term.
// Verdict rewards are added, verdict penalties and structural terms are
// subtracted.
type Weights struct {
	TruePositive  float64
	TrueNegative  float64
	FalsePositive float64
	FalseNegative float64

	NonDeterministicEdges     float64
	MissingDeterministicEdges float64
	UnreachableStates         float64
	Size                      float64

	Structural StructuralPenalty
}

type Verdict int

const (
	TruePositive Verdict = iota
	TrueNegative
	FalsePositive
	FalseNegative
)

func (v Verdict) String() string {
	switch v {
	case TruePositive:
		return "true_positive"
	case TrueNegative:
		return "true_negative"
	case FalsePositive:
		return "false_positive"
	case FalseNegative:
		return "false_negative"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Accepts replays input from the start state and reports whether any path
// consumes the whole input and stops in an accept state.
func Accepts(c *genotype.Chromosome, input string) bool {
	if _, ok := c.Start(); !ok {
		return false
	}
	symbols := []rune(input)

	accept := make(map[int]bool, len(c.States))
	for _, s := range c.States {
		accept[s.ID] = s.IsAccept
	}
	type transitionKey struct {
		source int
		input  rune
	}
	targets := make(map[transitionKey][]int, len(c.Edges))
	for _, e := range c.Edges {
		k := transitionKey{source: e.Source, input: e.Input}
		targets[k] = append(targets[k], e.Target)
	}

	type position struct {
		state  int
		offset int
	}
	seen := map[position]struct{}{}
	stack := []position{{state: c.StartStateID}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.offset == len(symbols) {
			if accept[p.state] {
				return true
			}
			continue
		}
		for _, next := range targets[transitionKey{source: p.state, input: symbols[p.offset]}] {
			np := position{state: next, offset: p.offset + 1}
			if _, ok := seen[np]; ok {
				continue
			}
			seen[np] = struct{}{}
			stack = append(stack, np)
		}
	}
	return false
}

func Classify(c *genotype.Chromosome, trace traces.Trace) Verdict {
	accepted := Accepts(c, trace.Input)
	switch {
	case accepted && trace.Accepting:
		return TruePositive
	case !accepted && !trace.Accepting:
		return TrueNegative
	case accepted:
		return FalsePositive
	default:
		return FalseNegative
	}
}

// MissingDeterministicEdges counts, over every state, the alphabet symbols
// with no outgoing edge from that state.
func MissingDeterministicEdges(c *genotype.Chromosome, alphabet []rune) int {
	used := make(map[int]map[rune]struct{}, len(c.States))
	for _, e := range c.Edges {
		if used[e.Source] == nil {
			used[e.Source] = map[rune]struct{}{}
		}
		used[e.Source][e.Input] = struct{}{}
	}
	missing := 0
	for _, s := range c.States {
		missing += len(alphabet) - len(used[s.ID])
	}
	return missing
}

// Evaluate scores a chromosome. It reads the cached non-deterministic and
// reachable sets, so callers must keep them current.
func Evaluate(c *genotype.Chromosome, trs []traces.Trace, alphabet []rune, w Weights) float64 {
	score := 0.0
	for _, trace := range trs {
		switch Classify(c, trace) {
		case TruePositive:
			score += w.TruePositive
		case TrueNegative:
			score += w.TrueNegative
		case FalsePositive:
			score -= w.FalsePositive
		case FalseNegative:
			score -= w.FalseNegative
		}
	}

	score -= w.NonDeterministicEdges * float64(c.NonDeterministicCount())
	switch w.Structural {
	case PenaltyUnreachableStates:
		score -= w.UnreachableStates * float64(len(c.States)-c.ReachableCount())
	default:
		score -= w.MissingDeterministicEdges * float64(MissingDeterministicEdges(c, alphabet))
	}
	score -= w.Size * float64(c.Size())
	return score
}

// Fitness binds a trace set to a weighting for repeated evaluation.
type Fitness struct {
	Traces   []traces.Trace
	Alphabet []rune
	Weights  Weights
}

func NewFitness(trs []traces.Trace, alphabet []rune, w Weights) (*Fitness, error) {
	if len(trs) == 0 {
		return nil, traces.ErrEmpty
	}
	if len(alphabet) == 0 {
		return nil, genotype.ErrEmptyAlphabet
	}
	return &Fitness{Traces: trs, Alphabet: alphabet, Weights: w}, nil
}

func (f *Fitness) Evaluate(c *genotype.Chromosome) float64 {
	return Evaluate(c, f.Traces, f.Alphabet, f.Weights)
}

// UpperBound is the best trace score reachable, ignoring structural terms.
func (f *Fitness) UpperBound() float64 {
	accepting, rejecting := traces.Split(f.Traces)
	return f.Weights.TruePositive*float64(accepting) + f.Weights.TrueNegative*float64(rejecting)
}

// Accuracy expresses a score as a percentage of the upper bound.
func (f *Fitness) Accuracy(score float64) float64 {
	upper := f.UpperBound()
	if upper == 0 {
		return 0
	}
	return 100 * score / upper
}

// VerdictCounts tallies verdicts for reporting.
type VerdictCounts struct {
	TruePositive  int `json:"true_positive"`
	TrueNegative  int `json:"true_negative"`
	FalsePositive int `json:"false_positive"`
	FalseNegative int `json:"false_negative"`
}

func CountVerdicts(c *genotype.Chromosome, trs []traces.Trace) VerdictCounts {
	var counts VerdictCounts
	for _, trace := range trs {
		switch Classify(c, trace) {
		case TruePositive:
			counts.TruePositive++
		case TrueNegative:
			counts.TrueNegative++
		case FalsePositive:
			counts.FalsePositive++
		case FalseNegative:
			counts.FalseNegative++
		}
	}
	return counts
}
