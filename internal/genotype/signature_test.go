package genotype

import (
	"reflect"
	"testing"
)

// relabeledDFA is smallDFA with different state and edge ids and the edge
// arena in another order.
func relabeledDFA() *Chromosome {
	return NewChromosomeFrom(
		[]State{{ID: 30, IsAccept: true}, {ID: 10}, {ID: 20}},
		[]Edge{
			{ID: 9, Source: 30, Input: '0', Target: 10},
			{ID: 8, Source: 20, Input: '1', Target: 30},
			{ID: 7, Source: 10, Input: '1', Target: 20},
			{ID: 6, Source: 30, Input: '1', Target: 10},
			{ID: 5, Source: 10, Input: '0', Target: 10},
			{ID: 4, Source: 20, Input: '0', Target: 10},
		},
		10,
	)
}

func TestSignatureIgnoresNumbering(t *testing.T) {
	a := ComputeSignature(smallDFA())
	b := ComputeSignature(relabeledDFA())
	if len(a.Fingerprint) != 16 {
		t.Fatalf("unexpected fingerprint length: %q", a.Fingerprint)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("relabeling changed fingerprint: %s vs %s", a.Fingerprint, b.Fingerprint)
	}
}

func TestSignatureTracksAcceptStates(t *testing.T) {
	c := smallDFA()
	before := ComputeSignature(c).Fingerprint
	if err := c.SetAccept(2, true); err != nil {
		t.Fatalf("set accept: %v", err)
	}
	if ComputeSignature(c).Fingerprint == before {
		t.Fatal("expected fingerprint to change with accept states")
	}
}

func TestSignatureSummary(t *testing.T) {
	dfa := ComputeSignature(smallDFA()).Summary
	if dfa.TotalStates != 3 || dfa.TotalEdges != 6 || dfa.AcceptStates != 1 {
		t.Fatalf("unexpected counts: %+v", dfa)
	}
	if dfa.NonDeterministicEdges != 0 || dfa.UnreachableStates != 0 {
		t.Fatalf("expected a clean DFA: %+v", dfa)
	}
	if dfa.StronglyConnected != 1 {
		t.Fatalf("expected one strongly connected component, got %d", dfa.StronglyConnected)
	}
	if want := map[string]int{"0": 3, "1": 3}; !reflect.DeepEqual(dfa.InputDistribution, want) {
		t.Fatalf("input distribution %v want %v", dfa.InputDistribution, want)
	}

	nfa := smallNFA()
	nfa.AddState(false)
	summary := ComputeSignature(nfa).Summary
	if summary.NonDeterministicEdges != 2 || summary.UnreachableStates != 1 {
		t.Fatalf("unexpected nfa summary: %+v", summary)
	}
	// {1}, {2}, {3} and the isolated state
	if summary.StronglyConnected != 4 {
		t.Fatalf("expected 4 components, got %d", summary.StronglyConnected)
	}
}
