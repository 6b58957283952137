package storage

import (
	"context"
	"fmt"

	"geneticdfa/internal/model"
)

// Store defines transaction-like persistence operations for evolution runs
// and the automata they produce.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveChromosome(ctx context.Context, chromosome model.ChromosomeRecord) error
	GetChromosome(ctx context.Context, id string) (model.ChromosomeRecord, bool, error)
	SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulation(ctx context.Context, id string) (model.PopulationSnapshot, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveTopChromosomes(ctx context.Context, runID string, top []model.TopChromosomeRecord) error
	GetTopChromosomes(ctx context.Context, runID string) ([]model.TopChromosomeRecord, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
}

// PopulationID names the snapshot of one generation of a run.
func PopulationID(runID string, generation int) string {
	return fmt.Sprintf("%s/gen-%d", runID, generation)
}

// BestChromosomeID names the best automaton persisted at the end of a run.
func BestChromosomeID(runID string) string {
	return runID + "/best"
}
