package genotype

import (
	"fmt"
	"strings"

	"geneticdfa/internal/model"
)

// CloneAs deep-copies c and gives the copy a new lineage id. The score is
// dropped since the copy is a new individual.
func CloneAs(c *Chromosome, lineageID uint64) *Chromosome {
	out := c.Clone()
	out.LineageID = lineageID
	out.ResetFitness()
	return out
}

// ToRecord converts a chromosome to its persisted shape.
func ToRecord(c *Chromosome, schemaVersion, codecVersion int) model.ChromosomeRecord {
	rec := model.ChromosomeRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: schemaVersion, CodecVersion: codecVersion},
		ID:              fmt.Sprintf("dfa-%d", c.LineageID),
		LineageID:       c.LineageID,
		StartStateID:    c.StartStateID,
		NextStateID:     c.NextStateID,
		NextEdgeID:      c.NextEdgeID,
		States:          make([]model.StateRecord, 0, len(c.States)),
		Edges:           make([]model.EdgeRecord, 0, len(c.Edges)),
	}
	if c.Fitness != nil {
		f := *c.Fitness
		rec.Fitness = &f
	}
	for _, s := range c.States {
		rec.States = append(rec.States, model.StateRecord{ID: s.ID, IsAccept: s.IsAccept})
	}
	for _, e := range c.Edges {
		rec.Edges = append(rec.Edges, model.EdgeRecord{ID: e.ID, Source: e.Source, Target: e.Target, Input: string(e.Input)})
	}
	return rec
}

// FromRecord rebuilds a chromosome, recomputing its caches. Counters from the
// record are kept when they are ahead of the ids present. Records that break a
// structural invariant are rejected with ErrInvariant.
func FromRecord(rec model.ChromosomeRecord) (*Chromosome, error) {
	states := make([]State, 0, len(rec.States))
	for _, s := range rec.States {
		states = append(states, State{ID: s.ID, IsAccept: s.IsAccept})
	}
	edges := make([]Edge, 0, len(rec.Edges))
	for _, e := range rec.Edges {
		runes := []rune(e.Input)
		if len(runes) != 1 {
			return nil, fmt.Errorf("edge %d input %q: expected a single symbol", e.ID, e.Input)
		}
		edges = append(edges, Edge{ID: e.ID, Source: e.Source, Target: e.Target, Input: runes[0]})
	}
	c := NewChromosomeFrom(states, edges, rec.StartStateID)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("chromosome record %s: %w", rec.ID, err)
	}
	if rec.NextStateID > c.NextStateID {
		c.NextStateID = rec.NextStateID
	}
	if rec.NextEdgeID > c.NextEdgeID {
		c.NextEdgeID = rec.NextEdgeID
	}
	c.LineageID = rec.LineageID
	if rec.Fitness != nil {
		c.SetFitness(*rec.Fitness)
	}
	return c, nil
}

// Describe renders a compact single-line form, e.g.
// "start=1 accept=[3] 1-0->1 1-1->2".
func Describe(c *Chromosome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "start=%d accept=[", c.StartStateID)
	first := true
	for _, s := range c.States {
		if !s.IsAccept {
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", s.ID)
		first = false
	}
	b.WriteByte(']')
	for _, e := range c.Edges {
		fmt.Fprintf(&b, " %d-%c->%d", e.Source, e.Input, e.Target)
	}
	return b.String()
}
