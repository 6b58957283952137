package storage

import (
	"context"
	"reflect"
	"testing"

	"geneticdfa/internal/model"
)

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

// expectLoaded fails unless a load found exactly want.
func expectLoaded[T any](t *testing.T, what string, want, got T, ok bool, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("get %s: %v", what, err)
	}
	if !ok {
		t.Fatalf("expected %s to be stored", what)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("%s mismatch:\nwant %+v\ngot  %+v", what, want, got)
	}
}

// exerciseStore runs the same save/load sequence against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	runID := "contract-run"

	run := model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              runID,
		TracesPath:      "traces.json",
		Alphabet:        "01",
		Generations:     3,
		BestFitness:     4,
		UpperBound:      40,
		StopReason:      "generation_limit",
		StartedAt:       "2026-10-19T10:00:00Z",
		FinishedAt:      "2026-10-19T10:00:05Z",
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	gotRun, ok, err := store.GetRun(ctx, runID)
	expectLoaded(t, "run", run, gotRun, ok, err)

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	found := false
	for _, item := range runs {
		found = found || item.ID == runID
	}
	if !found {
		t.Fatal("run missing from listing")
	}

	chromosome := sampleChromosomeRecord(runID + "/best")
	if err := store.SaveChromosome(ctx, chromosome); err != nil {
		t.Fatalf("save chromosome: %v", err)
	}
	gotChromosome, ok, err := store.GetChromosome(ctx, chromosome.ID)
	expectLoaded(t, "chromosome", chromosome, gotChromosome, ok, err)

	snapshot := model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		ID:              PopulationID(runID, 3),
		RunID:           runID,
		Generation:      3,
		Alphabet:        "01",
		Chromosomes:     []model.ChromosomeRecord{chromosome},
	}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save population: %v", err)
	}
	gotSnapshot, ok, err := store.GetPopulation(ctx, snapshot.ID)
	expectLoaded(t, "population", snapshot, gotSnapshot, ok, err)

	history := []float64{-9, -5, 4}
	if err := store.SaveFitnessHistory(ctx, runID, history); err != nil {
		t.Fatalf("save fitness history: %v", err)
	}
	gotHistory, ok, err := store.GetFitnessHistory(ctx, runID)
	expectLoaded(t, "fitness history", history, gotHistory, ok, err)

	diagnostics := []model.GenerationDiagnostics{{Generation: 1, BestFitness: -9, Mutations: 20, Crossovers: 8}}
	if err := store.SaveGenerationDiagnostics(ctx, runID, diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, runID)
	expectLoaded(t, "diagnostics", diagnostics, gotDiagnostics, ok, err)

	top := []model.TopChromosomeRecord{{Rank: 1, Fitness: 4, Chromosome: chromosome}}
	if err := store.SaveTopChromosomes(ctx, runID, top); err != nil {
		t.Fatalf("save top chromosomes: %v", err)
	}
	gotTop, ok, err := store.GetTopChromosomes(ctx, runID)
	expectLoaded(t, "top chromosomes", top, gotTop, ok, err)

	lineage := []model.LineageRecord{
		{VersionedRecord: Versioned(), LineageID: 1, Generation: 0, Operation: "seed"},
		{VersionedRecord: Versioned(), LineageID: 2, ParentIDs: []uint64{1}, Generation: 1, Operation: "add_edge"},
	}
	if err := store.SaveLineage(ctx, runID, lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	gotLineage, ok, err := store.GetLineage(ctx, runID)
	expectLoaded(t, "lineage", lineage, gotLineage, ok, err)

	if _, ok, err := store.GetLineage(ctx, "no-such-run"); err != nil || ok {
		t.Fatalf("unknown run lineage: ok=%v err=%v", ok, err)
	}
}
