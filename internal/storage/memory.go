package storage

import (
	"context"
	"sort"
	"sync"

	"geneticdfa/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	chromosomes map[string]model.ChromosomeRecord
	populations map[string]model.PopulationSnapshot
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	top         map[string][]model.TopChromosomeRecord
	lineage     map[string][]model.LineageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.chromosomes = make(map[string]model.ChromosomeRecord)
	s.populations = make(map[string]model.PopulationSnapshot)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.top = make(map[string][]model.TopChromosomeRecord)
	s.lineage = make(map[string][]model.LineageRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns runs ordered by start time, oldest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveChromosome(_ context.Context, chromosome model.ChromosomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.chromosomes[chromosome.ID] = copyChromosomeRecord(chromosome)
	return nil
}

func (s *MemoryStore) GetChromosome(_ context.Context, id string) (model.ChromosomeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chromosome, ok := s.chromosomes[id]
	if !ok {
		return model.ChromosomeRecord{}, false, nil
	}
	return copyChromosomeRecord(chromosome), true, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.populations[snapshot.ID] = copySnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.populations[id]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return copySnapshot(snapshot), true, nil
}

func (s *MemoryStore) DeletePopulation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.populations, id)
	return nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveTopChromosomes(_ context.Context, runID string, top []model.TopChromosomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	copied := make([]model.TopChromosomeRecord, len(top))
	for i, item := range top {
		copied[i] = item
		copied[i].Chromosome = copyChromosomeRecord(item.Chromosome)
	}
	s.top[runID] = copied
	return nil
}

func (s *MemoryStore) GetTopChromosomes(_ context.Context, runID string) ([]model.TopChromosomeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.top[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TopChromosomeRecord, len(top))
	for i, item := range top {
		copied[i] = item
		copied[i].Chromosome = copyChromosomeRecord(item.Chromosome)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	copied := make([]model.LineageRecord, len(lineage))
	for i, record := range lineage {
		copied[i] = record
		copied[i].ParentIDs = append([]uint64(nil), record.ParentIDs...)
	}
	s.lineage[runID] = copied
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.LineageRecord, len(lineage))
	for i, record := range lineage {
		copied[i] = record
		copied[i].ParentIDs = append([]uint64(nil), record.ParentIDs...)
	}
	return copied, true, nil
}

func copyChromosomeRecord(c model.ChromosomeRecord) model.ChromosomeRecord {
	out := c
	out.States = append([]model.StateRecord(nil), c.States...)
	out.Edges = append([]model.EdgeRecord(nil), c.Edges...)
	if c.Fitness != nil {
		fitness := *c.Fitness
		out.Fitness = &fitness
	}
	return out
}

func copySnapshot(p model.PopulationSnapshot) model.PopulationSnapshot {
	out := p
	out.Chromosomes = make([]model.ChromosomeRecord, len(p.Chromosomes))
	for i, c := range p.Chromosomes {
		out.Chromosomes[i] = copyChromosomeRecord(c)
	}
	return out
}

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt != runs[j].StartedAt {
			return runs[i].StartedAt < runs[j].StartedAt
		}
		return runs[i].ID < runs[j].ID
	})
}
