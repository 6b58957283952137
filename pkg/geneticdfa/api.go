// Package geneticdfa is the public entry point for evolving finite automata
// from labelled traces.
package geneticdfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"geneticdfa/internal/config"
	"geneticdfa/internal/evo"
	"geneticdfa/internal/genotype"
	"geneticdfa/internal/metrics"
	"geneticdfa/internal/model"
	"geneticdfa/internal/platform"
	"geneticdfa/internal/stats"
	"geneticdfa/internal/storage"
	"geneticdfa/internal/traces"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "geneticdfa.db"
)

type Options struct {
	StoreKind string
	// DBPath is the sqlite file or, for the postgres backend, the DSN.
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	// Metrics receives per-generation observations when set.
	Metrics        *metrics.Collector
	SupportModules []platform.SupportModule
}

type Client struct {
	store    storage.Store
	platform *platform.Platform

	artifactsDir string
	exportsDir   string
	logger       *slog.Logger
	metrics      *metrics.Collector
	modules      []platform.SupportModule
}

type RunRequest struct {
	RunID      string
	TracesPath string
	// Settings takes precedence over SettingsPath. With neither, Defaults
	// apply.
	Settings             *config.Settings
	SettingsPath         string
	SnapshotEvery        int
	ExportGenerationBest bool
	// DisableArtifacts keeps the run in the store only.
	DisableArtifacts bool
	Observer         evo.GenerationObserver
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	FinalBestFitness float64
	UpperBound       float64
	Accuracy         float64
	Generations      int
	StopReason       string
	Verdicts         evo.VerdictCounts
	Best             *genotype.Chromosome
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	TracesPath       string
	Seed             int64
	Population       int
	Generations      int
	FinalBestFitness float64
	Accuracy         float64
	StopReason       string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// RunQuery addresses one stored run, either by id or as the most recent one.
type RunQuery struct {
	RunID  string
	Latest bool
	Limit  int
}

type LineageItem struct {
	LineageID   uint64
	ParentIDs   []uint64
	Generation  int
	Operation   string
	Fingerprint string
}

type FitnessHistoryItem struct {
	Generation  int
	BestFitness float64
}

type TopChromosomeItem struct {
	Rank        int
	Fitness     float64
	States      int
	Edges       int
	Accepting   int
	Description string
	Chromosome  *genotype.Chromosome
}

type EvaluateRequest struct {
	RunID  string
	Latest bool
	// ChromosomePath points at a chromosome JSON record and replaces the
	// stored best of a run.
	ChromosomePath string
	// TracesPath defaults to the traces the run was evolved on.
	TracesPath string
	Settings   *config.Settings
}

type EvaluateSummary struct {
	RunID      string
	Fitness    float64
	UpperBound float64
	Accuracy   float64
	Verdicts   evo.VerdictCounts
	Chromosome *genotype.Chromosome
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" && storeKind == "sqlite" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		logger:       logger,
		metrics:      opts.Metrics,
		modules:      opts.SupportModules,
	}, nil
}

func (c *Client) Close() error {
	if c.platform != nil && c.platform.Started() {
		if err := c.platform.StopWithReason(platform.StopReasonShutdown); err != nil {
			return err
		}
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePlatform(ctx)
	return err
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	settings, err := resolveSettings(req.Settings, req.SettingsPath)
	if err != nil {
		return RunSummary{}, err
	}
	if req.TracesPath == "" {
		return RunSummary{}, errors.New("run requires a traces path")
	}
	p, err := c.ensurePlatform(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	cfg := platform.EvolutionConfig{
		RunID:                req.RunID,
		TracesPath:           req.TracesPath,
		Settings:             settings,
		SnapshotEvery:        req.SnapshotEvery,
		ExportGenerationBest: req.ExportGenerationBest,
		Observer:             req.Observer,
	}
	if !req.DisableArtifacts {
		cfg.ArtifactsDir = c.artifactsDir
	}
	result, err := p.RunEvolution(ctx, cfg)
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:            result.Run.ID,
		ArtifactsDir:     result.ArtifactsDir,
		BestByGeneration: result.BestByGeneration,
		FinalBestFitness: result.Run.BestFitness,
		UpperBound:       result.Run.UpperBound,
		Accuracy:         result.Accuracy,
		Generations:      result.Run.Generations,
		StopReason:       result.Run.StopReason,
		Verdicts:         result.Verdicts,
		Best:             result.Best.Chromosome,
	}, nil
}

// StopRun trips the kill switch of an active run. The run finishes its
// current generation and persists as usual.
func (c *Client) StopRun(ctx context.Context, runID string) error {
	p, err := c.ensurePlatform(ctx)
	if err != nil {
		return err
	}
	return p.StopRun(runID)
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			TracesPath:       e.TracesPath,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
			Accuracy:         e.Accuracy,
			StopReason:       e.StopReason,
		})
	}
	return out, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(ctx, RunQuery{RunID: req.RunID, Latest: req.Latest}, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Lineage(ctx context.Context, req RunQuery) ([]LineageItem, error) {
	runID, err := c.resolveRunID(ctx, req, "lineage")
	if err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		lineage, ok, err = stats.ReadLineage(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}

	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}
	out := make([]LineageItem, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageItem{
			LineageID:   rec.LineageID,
			ParentIDs:   append([]uint64(nil), rec.ParentIDs...),
			Generation:  rec.Generation,
			Operation:   rec.Operation,
			Fingerprint: rec.Fingerprint,
		})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req RunQuery) ([]FitnessHistoryItem, error) {
	runID, err := c.resolveRunID(ctx, req, "fitness history")
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessSeries(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}

	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	out := make([]FitnessHistoryItem, 0, len(history))
	for i, fitness := range history {
		out = append(out, FitnessHistoryItem{Generation: i + 1, BestFitness: fitness})
	}
	return out, nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunQuery) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(ctx, req, "diagnostics")
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	return diagnostics, nil
}

func (c *Client) TopChromosomes(ctx context.Context, req RunQuery) ([]TopChromosomeItem, error) {
	runID, err := c.resolveRunID(ctx, req, "top chromosomes")
	if err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopChromosomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopChromosomes(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("top chromosomes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}

	out := make([]TopChromosomeItem, 0, len(top))
	for _, rec := range top {
		chromosome, err := genotype.FromRecord(rec.Chromosome)
		if err != nil {
			return nil, fmt.Errorf("decode top chromosome rank %d: %w", rec.Rank, err)
		}
		out = append(out, TopChromosomeItem{
			Rank:        rec.Rank,
			Fitness:     rec.Fitness,
			States:      len(chromosome.States),
			Edges:       len(chromosome.Edges),
			Accepting:   chromosome.AcceptCount(),
			Description: genotype.Describe(chromosome),
			Chromosome:  chromosome,
		})
	}
	return out, nil
}

// BestChromosome returns the best automaton of a run.
func (c *Client) BestChromosome(ctx context.Context, req RunQuery) (string, *genotype.Chromosome, error) {
	runID, err := c.resolveRunID(ctx, req, "best chromosome")
	if err != nil {
		return "", nil, err
	}
	rec, ok, err := c.store.GetChromosome(ctx, storage.BestChromosomeID(runID))
	if err != nil {
		return "", nil, err
	}
	if ok {
		chromosome, err := genotype.FromRecord(rec)
		return runID, chromosome, err
	}
	top, err := c.TopChromosomes(ctx, RunQuery{RunID: runID, Limit: 1})
	if err != nil {
		return "", nil, err
	}
	if len(top) == 0 {
		return "", nil, fmt.Errorf("no chromosomes stored for run id: %s", runID)
	}
	return runID, top[0].Chromosome, nil
}

// Evaluate scores a stored or on-disk automaton against a trace file.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	var (
		runID      string
		chromosome *genotype.Chromosome
		err        error
	)
	if req.ChromosomePath != "" {
		if req.RunID != "" || req.Latest {
			return EvaluateSummary{}, errors.New("use either a chromosome path or a run")
		}
		chromosome, err = ReadChromosome(req.ChromosomePath)
	} else {
		runID, chromosome, err = c.BestChromosome(ctx, RunQuery{RunID: req.RunID, Latest: req.Latest})
	}
	if err != nil {
		return EvaluateSummary{}, err
	}

	settings := config.Defaults()
	tracesPath := req.TracesPath
	if runID != "" {
		runCfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
		if err != nil {
			return EvaluateSummary{}, err
		}
		if ok {
			settings = runCfg.Settings
			if tracesPath == "" {
				tracesPath = runCfg.TracesPath
			}
		}
		if tracesPath == "" {
			run, ok, err := c.store.GetRun(ctx, runID)
			if err != nil {
				return EvaluateSummary{}, err
			}
			if ok {
				tracesPath = run.TracesPath
			}
		}
	}
	if req.Settings != nil {
		settings = *req.Settings
	}
	if tracesPath == "" {
		return EvaluateSummary{}, errors.New("evaluate requires a traces path")
	}
	trs, err := traces.Import(tracesPath)
	if err != nil {
		return EvaluateSummary{}, err
	}

	fitness, err := fitnessFor(trs, settings)
	if err != nil {
		return EvaluateSummary{}, err
	}
	score := fitness.Evaluate(chromosome)
	return EvaluateSummary{
		RunID:      runID,
		Fitness:    score,
		UpperBound: fitness.UpperBound(),
		Accuracy:   fitness.Accuracy(score),
		Verdicts:   evo.CountVerdicts(chromosome, trs),
		Chromosome: chromosome,
	}, nil
}

func (c *Client) ensurePlatform(ctx context.Context) (*platform.Platform, error) {
	if c.platform != nil {
		return c.platform, nil
	}
	p := platform.NewPlatform(platform.Config{
		Store:          c.store,
		SupportModules: c.modules,
		Metrics:        c.metrics,
		Logger:         c.logger,
	})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.platform = p
	return p, nil
}

// resolveRunID turns a query into a concrete run id. Latest prefers the
// artifact index and falls back to the store.
func (c *Client) resolveRunID(ctx context.Context, req RunQuery, what string) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if _, err := c.ensurePlatform(ctx); err != nil {
		return "", err
	}
	if !req.Latest {
		if req.RunID == "" {
			return "", fmt.Errorf("%s requires run id or latest", what)
		}
		return req.RunID, nil
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) > 0 {
		return entries[0].RunID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[len(runs)-1].ID, nil
}

func resolveSettings(explicit *config.Settings, path string) (config.Settings, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

func fitnessFor(trs []traces.Trace, settings config.Settings) (*evo.Fitness, error) {
	weights, err := settings.FitnessWeights()
	if err != nil {
		return nil, err
	}
	return evo.NewFitness(trs, traces.DiscoverAlphabet(trs), weights)
}

// ReadChromosome loads a chromosome JSON record, as written in the
// generations/ artifacts directory.
func ReadChromosome(path string) (*genotype.Chromosome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec, err := storage.DecodeChromosome(data)
	if err != nil {
		return nil, fmt.Errorf("decode chromosome %s: %w", path, err)
	}
	return genotype.FromRecord(rec)
}
