package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"geneticdfa/internal/genotype"
	"geneticdfa/internal/model"
)

var ErrGenerationTimeout = errors.New("generation timed out")

type GenerationDiagnostics = model.GenerationDiagnostics

type LineageRecord = model.LineageRecord

type RunResult struct {
	BestByGeneration      []float64
	GenerationDiagnostics []GenerationDiagnostics
	FinalPopulation       []ScoredChromosome
	Lineage               []LineageRecord
	Best                  ScoredChromosome
	Generations           int
	StopReason            string
}

// GenerationReport is handed to the observer once a generation is ranked.
type GenerationReport struct {
	Generation  int
	Best        ScoredChromosome
	Diagnostics GenerationDiagnostics
	Ranked      []ScoredChromosome
	Elapsed     time.Duration
}

// GenerationObserver is called synchronously after each ranked generation.
// Returning an error aborts the run. Observers must not modify chromosomes.
type GenerationObserver func(ctx context.Context, report GenerationReport) error

type MonitorConfig struct {
	Evaluator           Evaluator
	Mutation            Operator
	Crossover           Recombiner
	Selector            Selector
	Postprocessor       FitnessPostprocessor
	MutationCount       MutationCountPolicy
	SpecieIdentifier    SpecieIdentifier
	Termination         Termination
	PopulationSize      int
	EliteCarryOver      int
	EliteScalingFactor  int
	MaxGenerations      int
	MutationProbability float64
	Workers             int
	GenerationTimeout   time.Duration
	Seed                int64
	Lineage             *LineageCounter
	Observer            GenerationObserver
	Logger              *slog.Logger
}

type PopulationMonitor struct {
	cfg MonitorConfig
	rng genotype.Rand
	log *slog.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.Mutation == nil {
		return nil, fmt.Errorf("mutation operator is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCarryOver < 0 || cfg.EliteCarryOver >= cfg.PopulationSize {
		return nil, fmt.Errorf("elite carry-over must be in [0, population size)")
	}
	if cfg.MaxGenerations <= 0 {
		return nil, fmt.Errorf("max generations must be > 0")
	}
	if cfg.EliteScalingFactor < 0 {
		return nil, fmt.Errorf("elite scaling factor must be >= 0")
	}
	if cfg.MutationProbability < 0 || cfg.MutationProbability > 1 || math.IsNaN(cfg.MutationProbability) {
		return nil, fmt.Errorf("%w: mutation probability %v", ErrInvalidProbability, cfg.MutationProbability)
	}
	if cfg.MutationProbability < 1 && cfg.Crossover == nil {
		return nil, fmt.Errorf("crossover operator is required when mutation probability < 1")
	}
	if cfg.GenerationTimeout < 0 {
		return nil, fmt.Errorf("generation timeout must be >= 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = RouletteSelector{}
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = NoopFitnessPostprocessor{}
	}
	if cfg.MutationCount == nil {
		cfg.MutationCount = ConstMutationCount{Count: 1}
	}
	if cfg.SpecieIdentifier == nil {
		cfg.SpecieIdentifier = TopologySpecieIdentifier{}
	}
	if cfg.Termination == nil {
		cfg.Termination = GenerationLimit{Generations: cfg.MaxGenerations}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: genotype.NewRand(cfg.Seed),
		log: logger.With(slog.String("component", "population_monitor")),
	}, nil
}

func (m *PopulationMonitor) Run(ctx context.Context, initial []*genotype.Chromosome) (RunResult, error) {
	if len(initial) == 0 || len(initial) > m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population size must be in [1, %d]: got=%d", m.cfg.PopulationSize, len(initial))
	}
	if m.cfg.Lineage == nil {
		var last uint64
		for _, c := range initial {
			last = max(last, c.LineageID)
		}
		m.cfg.Lineage = NewLineageCounter(last)
	}

	population := make([]*genotype.Chromosome, len(initial))
	copy(population, initial)

	bestHistory := make([]float64, 0, m.cfg.MaxGenerations)
	diagnostics := make([]GenerationDiagnostics, 0, m.cfg.MaxGenerations)
	lineage := make([]LineageRecord, 0, len(initial)*2)
	for _, c := range population {
		lineage = append(lineage, lineageRecord(c, nil, 0, "seed"))
	}

	var (
		scored     []ScoredChromosome
		counts     reproductionCounts
		stopReason string
		generation int
	)
	for generation = 1; ; generation++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		started := time.Now()

		var err error
		scored, err = m.evaluatePopulation(ctx, population)
		if err != nil {
			return RunResult{}, fmt.Errorf("evaluate generation %d: %w", generation, err)
		}
		scored = m.cfg.Postprocessor.Process(scored)
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Fitness > scored[j].Fitness
		})

		bestHistory = append(bestHistory, scored[0].RawFitness())
		diag := m.summarizeGeneration(scored, generation, counts)
		diagnostics = append(diagnostics, diag)

		elapsed := time.Since(started)
		m.log.Info("generation ranked",
			slog.Int("generation", generation),
			slog.Float64("best_fitness", diag.BestFitness),
			slog.Float64("mean_fitness", diag.MeanFitness),
			slog.Int("best_states", len(scored[0].Chromosome.States)),
			slog.Int("best_edges", len(scored[0].Chromosome.Edges)),
			slog.Duration("elapsed", elapsed),
		)
		if m.cfg.Observer != nil {
			report := GenerationReport{
				Generation:  generation,
				Best:        scored[0],
				Diagnostics: diag,
				Ranked:      scored,
				Elapsed:     elapsed,
			}
			if err := m.cfg.Observer(ctx, report); err != nil {
				return RunResult{}, fmt.Errorf("generation %d observer: %w", generation, err)
			}
		}

		state := RunState{Generation: generation, BestFitness: scored[0].RawFitness(), BestHistory: bestHistory}
		if m.cfg.Termination.HasReached(state) {
			stopReason = StopReason(m.cfg.Termination, state)
			break
		}

		var generationLineage []LineageRecord
		population, generationLineage, counts, err = m.nextGeneration(ctx, scored, generation)
		if err != nil {
			return RunResult{}, fmt.Errorf("breed generation %d: %w", generation+1, err)
		}
		lineage = append(lineage, generationLineage...)
	}

	m.log.Info("evolution stopped",
		slog.Int("generations", generation),
		slog.String("reason", stopReason),
		slog.Float64("best_fitness", scored[0].Fitness),
	)
	return RunResult{
		BestByGeneration:      bestHistory,
		GenerationDiagnostics: diagnostics,
		FinalPopulation:       scored,
		Lineage:               lineage,
		Best:                  scored[0],
		Generations:           generation,
		StopReason:            stopReason,
	}, nil
}

// generationContext bounds one batch of parallel work by the generation timeout.
func (m *PopulationMonitor) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.GenerationTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.GenerationTimeout)
	}
	return context.WithCancel(ctx)
}

// batchError separates a timed out batch from a cancelled run.
func (m *PopulationMonitor) batchError(parent, batch context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(batch.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrGenerationTimeout, m.cfg.GenerationTimeout)
	}
	return err
}

func (m *PopulationMonitor) newPool(ctx context.Context, jobs int) *pool.ContextPool {
	workers := m.cfg.Workers
	if workers > jobs {
		workers = jobs
	}
	if workers < 1 {
		workers = 1
	}
	return pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
}

// evaluatePopulation scores every chromosome without a fitness. Each worker
// writes only its own slot.
func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []*genotype.Chromosome) ([]ScoredChromosome, error) {
	batch, cancel := m.generationContext(ctx)
	defer cancel()

	scored := make([]ScoredChromosome, len(population))
	p := m.newPool(batch, len(population))
	for i, c := range population {
		if c.Fitness != nil {
			scored[i] = ScoredChromosome{Chromosome: c, Fitness: *c.Fitness}
			continue
		}
		i, c := i, c
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fitness := m.cfg.Evaluator.Evaluate(c)
			c.SetFitness(fitness)
			scored[i] = ScoredChromosome{Chromosome: c, Fitness: fitness}
			return nil
		})
	}
	err := p.Wait()
	if err != nil || batch.Err() != nil {
		return nil, m.batchError(ctx, batch, err)
	}
	return scored, nil
}

type reproductionCounts struct {
	mutations  int
	crossovers int
	failed     int
}

type breedTask struct {
	slot      int
	crossover bool
	parent    *genotype.Chromosome
	partner   *genotype.Chromosome
	seed      int64
}

type offspring struct {
	slot      int
	crossover bool
	children  []*genotype.Chromosome
	parents   []uint64
	operation string
	failed    int
}

func (m *PopulationMonitor) nextGeneration(ctx context.Context, ranked []ScoredChromosome, generation int) ([]*genotype.Chromosome, []LineageRecord, reproductionCounts, error) {
	next := make([]*genotype.Chromosome, 0, m.cfg.PopulationSize)
	lineage := make([]LineageRecord, 0, m.cfg.PopulationSize)
	nextGeneration := generation + 1
	var counts reproductionCounts

	elites := min(m.cfg.EliteCarryOver, len(ranked))
	for i := 0; i < elites; i++ {
		elite := ranked[i].Chromosome.Clone()
		next = append(next, elite)
		lineage = append(lineage, lineageRecord(elite, []uint64{elite.LineageID}, nextGeneration, "elite_clone"))
	}
	remaining := m.cfg.PopulationSize - len(next)
	if remaining <= 0 {
		return next, lineage, counts, nil
	}

	poolSize := SelectionScale(generation, m.cfg.MaxGenerations, m.cfg.EliteScalingFactor, m.cfg.PopulationSize)
	candidates, err := EliteSelector{}.Select(m.rng, ranked, poolSize)
	if err != nil {
		return nil, nil, counts, err
	}
	parents, err := m.cfg.Selector.Select(m.rng, candidates, remaining)
	if err != nil {
		return nil, nil, counts, err
	}

	// A crossover yields two children, so tasks stop once the planned
	// offspring fill the remaining slots.
	tasks := make([]breedTask, 0, len(parents))
	planned := 0
	for i, parent := range parents {
		if planned >= remaining {
			break
		}
		task := breedTask{
			slot:   i,
			parent: parent.Chromosome,
			seed:   int64(m.rng.Int(0, math.MaxInt32)),
		}
		planned++
		if m.rng.Float64(0, 1) >= m.cfg.MutationProbability {
			task.crossover = true
			task.partner = candidates[m.rng.Int(0, len(candidates))].Chromosome
			planned++
		}
		tasks = append(tasks, task)
	}

	produced, err := m.breed(ctx, tasks, generation)
	if err != nil {
		return nil, nil, counts, err
	}
	for _, item := range produced {
		if item.crossover {
			counts.crossovers++
		} else {
			counts.mutations++
		}
		counts.failed += item.failed
		for _, child := range item.children {
			if len(next) >= m.cfg.PopulationSize {
				break
			}
			child.LineageID = m.cfg.Lineage.Next()
			next = append(next, child)
			lineage = append(lineage, lineageRecord(child, item.parents, nextGeneration, item.operation))
		}
	}
	return next, lineage, counts, nil
}

// breed runs every task on the worker pool. Finished offspring go into a
// shared accumulator under a mutex and are put back in slot order after the
// pool drains, so results do not depend on scheduling.
func (m *PopulationMonitor) breed(ctx context.Context, tasks []breedTask, generation int) ([]offspring, error) {
	batch, cancel := m.generationContext(ctx)
	defer cancel()

	var mu sync.Mutex
	produced := make([]offspring, 0, len(tasks))
	p := m.newPool(batch, len(tasks))
	for _, task := range tasks {
		task := task
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := m.breedOne(ctx, task, generation)
			if err != nil {
				return err
			}
			mu.Lock()
			produced = append(produced, out)
			mu.Unlock()
			return nil
		})
	}
	err := p.Wait()
	if err != nil || batch.Err() != nil {
		return nil, m.batchError(ctx, batch, err)
	}

	sort.Slice(produced, func(i, j int) bool { return produced[i].slot < produced[j].slot })
	return produced, nil
}

func (m *PopulationMonitor) breedOne(ctx context.Context, task breedTask, generation int) (offspring, error) {
	rng := genotype.NewRand(task.seed)
	if task.crossover {
		child1, child2, err := m.cfg.Crossover.Cross(task.parent, task.partner, rng)
		if err != nil {
			return offspring{}, fmt.Errorf("%s: %w", m.cfg.Crossover.Name(), err)
		}
		return offspring{
			slot:      task.slot,
			crossover: true,
			children:  []*genotype.Chromosome{child1, child2},
			parents:   []uint64{task.parent.LineageID, task.partner.LineageID},
			operation: m.cfg.Crossover.Name(),
		}, nil
	}

	count, err := m.cfg.MutationCount.MutationCount(task.parent, generation)
	if err != nil {
		return offspring{}, err
	}
	if count <= 0 {
		return offspring{}, fmt.Errorf("invalid mutation count from policy: %d", count)
	}

	current := task.parent
	names := make([]string, 0, count)
	failed := 0
	for step := 0; step < count; step++ {
		child, name, err := m.cfg.Mutation.Apply(ctx, current, rng)
		if errors.Is(err, ErrNoMutationApplied) {
			failed++
			names = append(names, "noop(exhausted)")
			if child != nil {
				current = child
			}
			continue
		}
		if err != nil {
			return offspring{}, fmt.Errorf("%s: %w", m.cfg.Mutation.Name(), err)
		}
		current = child
		names = append(names, name)
	}
	if current == task.parent {
		current = task.parent.Clone()
	}
	return offspring{
		slot:      task.slot,
		children:  []*genotype.Chromosome{current},
		parents:   []uint64{task.parent.LineageID},
		operation: strings.Join(names, "+"),
		failed:    failed,
	}, nil
}

func (m *PopulationMonitor) summarizeGeneration(scored []ScoredChromosome, generation int, counts reproductionCounts) GenerationDiagnostics {
	if len(scored) == 0 {
		return GenerationDiagnostics{Generation: generation}
	}

	total, states, edges := 0.0, 0, 0
	minFitness := scored[0].Fitness
	fingerprints := make(map[string]struct{}, len(scored))
	species := make(map[string]struct{}, len(scored))
	for _, item := range scored {
		total += item.Fitness
		minFitness = math.Min(minFitness, item.Fitness)
		states += len(item.Chromosome.States)
		edges += len(item.Chromosome.Edges)
		fingerprints[FingerprintSpecieIdentifier{}.Identify(item.Chromosome)] = struct{}{}
		species[m.cfg.SpecieIdentifier.Identify(item.Chromosome)] = struct{}{}
	}
	n := float64(len(scored))
	return GenerationDiagnostics{
		Generation:           generation,
		BestFitness:          scored[0].Fitness,
		MeanFitness:          total / n,
		MinFitness:           minFitness,
		FingerprintDiversity: len(fingerprints),
		SpeciesCount:         len(species),
		MeanStates:           float64(states) / n,
		MeanEdges:            float64(edges) / n,
		Mutations:            counts.mutations,
		Crossovers:           counts.crossovers,
		FailedMutations:      counts.failed,
	}
}

func lineageRecord(c *genotype.Chromosome, parents []uint64, generation int, operation string) LineageRecord {
	return LineageRecord{
		LineageID:   c.LineageID,
		ParentIDs:   parents,
		Generation:  generation,
		Operation:   operation,
		Fingerprint: ComputeSignature(c).Fingerprint,
	}
}
