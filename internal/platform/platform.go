// Package platform owns the lifecycle around evolution runs: the store,
// optional support modules such as the metrics endpoint, and a kill switch
// per active run.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geneticdfa/internal/config"
	"geneticdfa/internal/evo"
	"geneticdfa/internal/genotype"
	"geneticdfa/internal/metrics"
	"geneticdfa/internal/model"
	"geneticdfa/internal/stats"
	"geneticdfa/internal/storage"
	"geneticdfa/internal/traces"
)

// topCount is how many of the final population are persisted as top
// chromosomes.
const topCount = 5

type Config struct {
	Store          storage.Store
	SupportModules []SupportModule
	Metrics        *metrics.Collector
	Logger         *slog.Logger
}

type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

type EvolutionConfig struct {
	RunID      string
	TracesPath string
	// Traces overrides TracesPath when set.
	Traces   []traces.Trace
	Settings config.Settings
	// ArtifactsDir enables on-disk artifacts under ArtifactsDir/<run id>.
	ArtifactsDir string
	// SnapshotEvery persists the ranked population every n generations.
	// The final population is always persisted.
	SnapshotEvery int
	// ExportGenerationBest writes each generation's best automaton to the
	// artifacts directory.
	ExportGenerationBest bool
	Observer             evo.GenerationObserver
}

type EvolutionResult struct {
	Run                   model.RunRecord
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	Best                  evo.ScoredChromosome
	TopFinal              []evo.ScoredChromosome
	Lineage               []model.LineageRecord
	Verdicts              evo.VerdictCounts
	Accuracy              float64
	ArtifactsDir          string
}

type Platform struct {
	store storage.Store
	log   *slog.Logger

	mu sync.RWMutex

	supportModules map[string]SupportModule
	started        bool
	lastStopReason StopReason
	runs           map[string]*evo.KillSwitch

	config Config
}

func NewPlatform(cfg Config) *Platform {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Platform{
		store:          cfg.Store,
		log:            logger.With(slog.String("component", "platform")),
		supportModules: make(map[string]SupportModule),
		runs:           make(map[string]*evo.KillSwitch),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

// Init initializes the store and starts every support module. On failure the
// modules already started are stopped in reverse order.
func (p *Platform) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	started := make([]SupportModule, 0, len(p.config.SupportModules))
	fail := func(err error) error {
		stopSupportModules(ctx, started)
		p.supportModules = make(map[string]SupportModule)
		return err
	}
	for i, module := range p.config.SupportModules {
		if module == nil {
			return fail(fmt.Errorf("support module is nil at index %d", i))
		}
		name := module.Name()
		if name == "" {
			return fail(fmt.Errorf("support module name is required at index %d", i))
		}
		if _, exists := p.supportModules[name]; exists {
			return fail(fmt.Errorf("duplicate support module: %s", name))
		}
		if err := module.Start(ctx); err != nil {
			return fail(fmt.Errorf("start support module %s: %w", name, err))
		}
		p.supportModules[name] = module
		started = append(started, module)
	}

	p.started = true
	return nil
}

func (p *Platform) Stop() {
	_ = p.StopWithReason(StopReasonNormal)
}

func (p *Platform) Shutdown() {
	_ = p.StopWithReason(StopReasonShutdown)
}

// StopWithReason kills every active run and stops the support modules. Runs
// finish their current generation and persist what they have.
func (p *Platform) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, kill := range p.runs {
		kill.Kill()
	}
	modules := make([]SupportModule, 0, len(p.supportModules))
	for _, module := range p.supportModules {
		modules = append(modules, module)
	}
	stopSupportModules(context.Background(), modules)

	p.started = false
	p.lastStopReason = reason
	p.supportModules = make(map[string]SupportModule)
	p.runs = make(map[string]*evo.KillSwitch)
	return nil
}

// StopRun trips the kill switch of one active run.
func (p *Platform) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	p.mu.RLock()
	kill, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	kill.Kill()
	return nil
}

func (p *Platform) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	settings := cfg.Settings
	if err := settings.Validate(); err != nil {
		return EvolutionResult{}, err
	}
	trs := cfg.Traces
	if len(trs) == 0 {
		if cfg.TracesPath == "" {
			return EvolutionResult{}, fmt.Errorf("traces or traces path is required")
		}
		var err error
		trs, err = traces.Import(cfg.TracesPath)
		if err != nil {
			return EvolutionResult{}, err
		}
	}
	alphabet := traces.DiscoverAlphabet(trs)
	weights, err := settings.FitnessWeights()
	if err != nil {
		return EvolutionResult{}, err
	}
	fitness, err := evo.NewFitness(trs, alphabet, weights)
	if err != nil {
		return EvolutionResult{}, err
	}
	mutation, err := evo.NewMutation(alphabet, settings.MutationProbabilities())
	if err != nil {
		return EvolutionResult{}, err
	}
	crossover, err := evo.NewCrossover(alphabet)
	if err != nil {
		return EvolutionResult{}, err
	}
	selector, err := evo.SelectorFromName(settings.Selector)
	if err != nil {
		return EvolutionResult{}, err
	}
	postprocessor, err := evo.PostprocessorFromName(settings.Postprocessor)
	if err != nil {
		return EvolutionResult{}, err
	}

	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()
	if !started {
		return EvolutionResult{}, fmt.Errorf("platform is not initialized")
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	kill := &evo.KillSwitch{}
	if err := p.registerRun(runID, kill); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRun(runID)

	log := p.log.With(slog.String("run_id", runID))
	startedAt := time.Now().UTC()
	threshold := settings.FitnessLowerBound * fitness.UpperBound()
	termination := evo.AnyOf{
		evo.GenerationLimit{Generations: settings.MaxGenerations},
		evo.AllOf{
			evo.FitnessStagnation{Generations: settings.ConvergenceGenerations},
			evo.FitnessThreshold{Threshold: threshold},
		},
		kill,
	}

	var runDir string
	if cfg.ArtifactsDir != "" {
		runDir = filepath.Join(cfg.ArtifactsDir, runID)
	}
	workers := settings.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	mutationCount, err := settings.MutationCounter()
	if err != nil {
		return EvolutionResult{}, err
	}
	ids := evo.NewLineageCounter(0)
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Evaluator:           fitness,
		Mutation:            mutation,
		Crossover:           crossover,
		Selector:            selector,
		Postprocessor:       postprocessor,
		MutationCount:       mutationCount,
		Termination:         termination,
		PopulationSize:      settings.MaxPopulation,
		EliteCarryOver:      settings.EliteCount(),
		EliteScalingFactor:  settings.EliteScalingFactor,
		MaxGenerations:      settings.MaxGenerations,
		MutationProbability: settings.MutationProbability,
		Workers:             workers,
		GenerationTimeout:   settings.Timeout(),
		Seed:                settings.Seed,
		Lineage:             ids,
		Observer:            p.observer(runID, runDir, alphabet, fitness, cfg, log),
		Logger:              log,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	initial, err := evo.InitialPopulation(settings.MinPopulation, alphabet, genotype.NewRand(settings.Seed), ids)
	if err != nil {
		return EvolutionResult{}, err
	}
	log.Info("evolution started",
		slog.String("alphabet", string(alphabet)),
		slog.Int("traces", len(trs)),
		slog.Float64("upper_bound", fitness.UpperBound()),
		slog.Float64("threshold", threshold),
		slog.Int("population", settings.MinPopulation),
	)

	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return EvolutionResult{}, err
	}
	bestFitness := result.Best.RawFitness()

	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		TracesPath:      cfg.TracesPath,
		Alphabet:        string(alphabet),
		Generations:     result.Generations,
		BestFitness:     bestFitness,
		UpperBound:      fitness.UpperBound(),
		StopReason:      result.StopReason,
		StartedAt:       startedAt.Format(time.RFC3339Nano),
		FinishedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	top := result.FinalPopulation[:min(topCount, len(result.FinalPopulation))]
	lineage := stampLineage(result.Lineage)
	out := EvolutionResult{
		Run:                   run,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		Best:                  result.Best,
		TopFinal:              append([]evo.ScoredChromosome(nil), top...),
		Lineage:               lineage,
		Verdicts:              evo.CountVerdicts(result.Best.Chromosome, trs),
		Accuracy:              fitness.Accuracy(bestFitness),
	}

	if err := p.persist(ctx, run, result, out.TopFinal, lineage, alphabet); err != nil {
		return EvolutionResult{}, err
	}
	if runDir != "" {
		accepting, rejecting := traces.Split(trs)
		dir, err := stats.WriteRunArtifacts(cfg.ArtifactsDir, stats.RunArtifacts{
			Config: stats.RunConfig{
				RunID:      runID,
				TracesPath: cfg.TracesPath,
				Alphabet:   string(alphabet),
				Accepting:  accepting,
				Rejecting:  rejecting,
				Settings:   settings,
			},
			BestByGeneration:      result.BestByGeneration,
			GenerationDiagnostics: result.GenerationDiagnostics,
			FinalBestFitness:      bestFitness,
			UpperBound:            fitness.UpperBound(),
			Accuracy:              out.Accuracy,
			StopReason:            result.StopReason,
			TopChromosomes:        toTopRecords(out.TopFinal),
			Lineage:               lineage,
		})
		if err != nil {
			return EvolutionResult{}, fmt.Errorf("write artifacts: %w", err)
		}
		if err := stats.AppendRunIndex(cfg.ArtifactsDir, stats.RunIndexEntry{
			RunID:            runID,
			TracesPath:       cfg.TracesPath,
			PopulationSize:   settings.MaxPopulation,
			Generations:      result.Generations,
			Seed:             settings.Seed,
			Workers:          workers,
			FinalBestFitness: bestFitness,
			Accuracy:         out.Accuracy,
			StopReason:       result.StopReason,
			CreatedAtUTC:     run.FinishedAt,
		}); err != nil {
			return EvolutionResult{}, fmt.Errorf("update run index: %w", err)
		}
		out.ArtifactsDir = dir
	}

	log.Info("evolution finished",
		slog.String("stop_reason", result.StopReason),
		slog.Int("generations", result.Generations),
		slog.Float64("best_fitness", bestFitness),
		slog.Float64("accuracy", out.Accuracy),
		slog.Int("true_positive", out.Verdicts.TruePositive),
		slog.Int("true_negative", out.Verdicts.TrueNegative),
		slog.Int("false_positive", out.Verdicts.FalsePositive),
		slog.Int("false_negative", out.Verdicts.FalseNegative),
		slog.String("best", genotype.Describe(result.Best.Chromosome)),
	)
	return out, nil
}

// observer chains the per-generation side effects: progress logging,
// metrics, periodic snapshots, best-of-generation export and the caller's
// own observer.
func (p *Platform) observer(runID, runDir string, alphabet []rune, fitness *evo.Fitness, cfg EvolutionConfig, log *slog.Logger) evo.GenerationObserver {
	return func(ctx context.Context, report evo.GenerationReport) error {
		log.Info("generation",
			slog.Int("generation", report.Generation),
			slog.Float64("best_fitness", report.Best.Fitness),
			slog.Float64("accuracy", fitness.Accuracy(report.Best.RawFitness())),
			slog.Int("diversity", report.Diagnostics.FingerprintDiversity),
			slog.Duration("elapsed", report.Elapsed),
		)
		if p.config.Metrics != nil {
			p.config.Metrics.Observe(runID, report)
		}
		if cfg.SnapshotEvery > 0 && report.Generation%cfg.SnapshotEvery == 0 {
			snapshot := toSnapshot(runID, report.Generation, alphabet, report.Ranked)
			if err := p.store.SavePopulation(ctx, snapshot); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
		}
		if cfg.ExportGenerationBest && runDir != "" {
			if err := stats.WriteGenerationBest(runDir, report.Generation, report.Best.Chromosome, storage.CurrentSchemaVersion, storage.CurrentCodecVersion); err != nil {
				return fmt.Errorf("export generation best: %w", err)
			}
		}
		if cfg.Observer != nil {
			return cfg.Observer(ctx, report)
		}
		return nil
	}
}

func (p *Platform) persist(ctx context.Context, run model.RunRecord, result evo.RunResult, top []evo.ScoredChromosome, lineage []model.LineageRecord, alphabet []rune) error {
	if err := p.store.SaveRun(ctx, run); err != nil {
		return err
	}
	best := genotype.ToRecord(result.Best.Chromosome, storage.CurrentSchemaVersion, storage.CurrentCodecVersion)
	best.ID = storage.BestChromosomeID(run.ID)
	if err := p.store.SaveChromosome(ctx, best); err != nil {
		return err
	}
	if err := p.store.SavePopulation(ctx, toSnapshot(run.ID, result.Generations, alphabet, result.FinalPopulation)); err != nil {
		return err
	}
	if err := p.store.SaveFitnessHistory(ctx, run.ID, result.BestByGeneration); err != nil {
		return err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, run.ID, result.GenerationDiagnostics); err != nil {
		return err
	}
	if err := p.store.SaveTopChromosomes(ctx, run.ID, toTopRecords(top)); err != nil {
		return err
	}
	return p.store.SaveLineage(ctx, run.ID, lineage)
}

func (p *Platform) registerRun(runID string, kill *evo.KillSwitch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("platform is not initialized")
	}
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = kill
	return nil
}

func (p *Platform) unregisterRun(runID string) {
	p.mu.Lock()
	delete(p.runs, runID)
	p.mu.Unlock()
}

func (p *Platform) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Platform) ActiveSupportModules() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.supportModules))
	for name := range p.supportModules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Platform) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Platform) LastStopReason() StopReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastStopReason
}

func (p *Platform) Store() storage.Store {
	return p.store
}

func toSnapshot(runID string, generation int, alphabet []rune, ranked []evo.ScoredChromosome) model.PopulationSnapshot {
	records := make([]model.ChromosomeRecord, 0, len(ranked))
	for _, item := range ranked {
		records = append(records, genotype.ToRecord(item.Chromosome, storage.CurrentSchemaVersion, storage.CurrentCodecVersion))
	}
	return model.PopulationSnapshot{
		VersionedRecord: storage.Versioned(),
		ID:              storage.PopulationID(runID, generation),
		RunID:           runID,
		Generation:      generation,
		Alphabet:        string(alphabet),
		Chromosomes:     records,
	}
}

func toTopRecords(top []evo.ScoredChromosome) []model.TopChromosomeRecord {
	out := make([]model.TopChromosomeRecord, 0, len(top))
	for i, item := range top {
		out = append(out, model.TopChromosomeRecord{
			Rank:       i + 1,
			Fitness:    item.Fitness,
			Chromosome: genotype.ToRecord(item.Chromosome, storage.CurrentSchemaVersion, storage.CurrentCodecVersion),
		})
	}
	return out
}

func stampLineage(lineage []evo.LineageRecord) []model.LineageRecord {
	out := make([]model.LineageRecord, len(lineage))
	for i, rec := range lineage {
		out[i] = rec
		out[i].VersionedRecord = storage.Versioned()
	}
	return out
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
		return true
	default:
		return false
	}
}

func stopSupportModules(ctx context.Context, modules []SupportModule) {
	for i := len(modules) - 1; i >= 0; i-- {
		_ = modules[i].Stop(ctx)
	}
}
