package storage

import (
	"context"
	"errors"
	"testing"

	"geneticdfa/internal/model"
)

func sampleChromosomeRecord(id string) model.ChromosomeRecord {
	fitness := 4.0
	return model.ChromosomeRecord{
		VersionedRecord: Versioned(),
		ID:              id,
		LineageID:       7,
		StartStateID:    1,
		NextStateID:     4,
		NextEdgeID:      7,
		States:          []model.StateRecord{{ID: 1}, {ID: 2}, {ID: 3, IsAccept: true}},
		Edges: []model.EdgeRecord{
			{ID: 1, Source: 1, Target: 1, Input: "0"},
			{ID: 2, Source: 1, Target: 2, Input: "1"},
			{ID: 3, Source: 2, Target: 1, Input: "0"},
			{ID: 4, Source: 2, Target: 3, Input: "1"},
			{ID: 5, Source: 3, Target: 1, Input: "1"},
			{ID: 6, Source: 3, Target: 1, Input: "0"},
		},
		Fitness: &fitness,
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), model.RunRecord{ID: "run-1"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestMemoryStoreRunsListedByStart(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, run := range []model.RunRecord{
		{VersionedRecord: Versioned(), ID: "b", StartedAt: "2026-01-02T00:00:00Z"},
		{VersionedRecord: Versioned(), ID: "a", StartedAt: "2026-01-03T00:00:00Z"},
		{VersionedRecord: Versioned(), ID: "c", StartedAt: "2026-01-01T00:00:00Z"},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "c" || runs[1].ID != "b" || runs[2].ID != "a" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
	if _, ok, _ := store.GetRun(ctx, "missing"); ok {
		t.Fatal("expected missing run")
	}
}

func TestMemoryStoreChromosomeIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	record := sampleChromosomeRecord("dfa-7")
	if err := store.SaveChromosome(ctx, record); err != nil {
		t.Fatalf("save chromosome: %v", err)
	}
	record.Edges[0].Target = 3
	*record.Fitness = -1

	loaded, ok, err := store.GetChromosome(ctx, "dfa-7")
	if err != nil || !ok {
		t.Fatalf("get chromosome: ok=%v err=%v", ok, err)
	}
	if loaded.Edges[0].Target != 1 {
		t.Fatalf("stored edges aliased caller slice: %+v", loaded.Edges[0])
	}
	if loaded.Fitness == nil || *loaded.Fitness != 4 {
		t.Fatalf("stored fitness aliased caller pointer: %v", loaded.Fitness)
	}
}

func TestMemoryStorePopulationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	snapshot := model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		ID:              PopulationID("run-1", 3),
		RunID:           "run-1",
		Generation:      3,
		Alphabet:        "01",
		Chromosomes:     []model.ChromosomeRecord{sampleChromosomeRecord("dfa-1"), sampleChromosomeRecord("dfa-2")},
	}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save population: %v", err)
	}
	loaded, ok, err := store.GetPopulation(ctx, "run-1/gen-3")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%v err=%v", ok, err)
	}
	if loaded.Generation != 3 || len(loaded.Chromosomes) != 2 || loaded.Chromosomes[1].ID != "dfa-2" {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}

	if err := store.DeletePopulation(ctx, snapshot.ID); err != nil {
		t.Fatalf("delete population: %v", err)
	}
	if _, ok, _ := store.GetPopulation(ctx, snapshot.ID); ok {
		t.Fatal("expected deleted population")
	}
}

func TestMemoryStoreLineageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.LineageRecord{{
		VersionedRecord: Versioned(),
		LineageID:       12,
		ParentIDs:       []uint64{3, 4},
		Generation:      2,
		Operation:       "crossover",
	}}
	if err := store.SaveLineage(ctx, "run-1", input); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	input[0].ParentIDs[0] = 99

	output, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil {
		t.Fatalf("get lineage: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted lineage")
	}
	if len(output) != 1 || output[0].LineageID != 12 || output[0].ParentIDs[0] != 3 {
		t.Fatalf("unexpected lineage: %+v", output)
	}
}

func TestMemoryStoreFitnessHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []float64{-12, -5, 4}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted fitness history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}
}

func TestMemoryStoreDiagnosticsAndTopRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 1, BestFitness: -5, MeanFitness: -20, MinFitness: -40, FingerprintDiversity: 30, SpeciesCount: 12},
		{Generation: 2, BestFitness: 4, MeanFitness: -11, MinFitness: -35, FingerprintDiversity: 28, SpeciesCount: 10},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get diagnostics: ok=%v err=%v", ok, err)
	}
	if len(gotDiagnostics) != 2 || gotDiagnostics[1].SpeciesCount != 10 {
		t.Fatalf("unexpected diagnostics: %+v", gotDiagnostics)
	}

	top := []model.TopChromosomeRecord{{Rank: 1, Fitness: 4, Chromosome: sampleChromosomeRecord("dfa-9")}}
	if err := store.SaveTopChromosomes(ctx, "run-1", top); err != nil {
		t.Fatalf("save top: %v", err)
	}
	gotTop, ok, err := store.GetTopChromosomes(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get top: ok=%v err=%v", ok, err)
	}
	if len(gotTop) != 1 || gotTop[0].Chromosome.ID != "dfa-9" || len(gotTop[0].Chromosome.Edges) != 6 {
		t.Fatalf("unexpected top chromosomes: %+v", gotTop)
	}
}
