package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"geneticdfa/internal/config"
	"geneticdfa/internal/metrics"
	"geneticdfa/internal/platform"
	"geneticdfa/internal/stats"
	"geneticdfa/internal/storage"
	dfaapi "geneticdfa/pkg/geneticdfa"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	defaultDB    = "geneticdfa.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init-config":
		return runInitConfig(ctx, args[1:])
	case "validate-config":
		return runValidateConfig(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "dot":
		return runDOT(ctx, args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	case "experiments":
		return runExperiments(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind         *string
	dbPath       *string
	artifactsDir *string
}

func registerStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:         fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite|postgres"),
		dbPath:       fs.String("db-path", defaultDB, "sqlite database path or postgres DSN"),
		artifactsDir: fs.String("artifacts-dir", artifactsDir, "directory holding run artifacts and the run index"),
	}
}

func (f storeFlags) open(logger *slog.Logger, reg *metrics.Collector, modules ...platform.SupportModule) (*dfaapi.Client, error) {
	dbPath := *f.dbPath
	if *f.kind == "postgres" && dbPath == defaultDB {
		dbPath = os.Getenv("GENETICDFA_PG_DSN")
	}
	return dfaapi.New(dfaapi.Options{
		StoreKind:      *f.kind,
		DBPath:         dbPath,
		ArtifactsDir:   *f.artifactsDir,
		ExportsDir:     exportsDir,
		Logger:         logger,
		Metrics:        reg,
		SupportModules: modules,
	})
}

func runInitConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	out := fs.String("out", "geneticdfa.yaml", "settings file to write (.json, .yaml or .yml)")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s already exists; use --force to overwrite", *out)
	}
	if err := config.Save(*out, config.Defaults()); err != nil {
		return err
	}
	fmt.Printf("wrote default settings to %s\n", *out)
	return nil
}

func runValidateConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("validate-config", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (.json, .yaml or .yml)")
	envFiles := fs.String("env-file", "", "comma-separated dotenv files applied after the settings file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	settings, err := loadSettings(*configPath, *envFiles)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	fmt.Printf("settings ok: population=%d..%d generations=%d selector=%s\n",
		settings.MinPopulation, settings.MaxPopulation, settings.MaxGenerations, settings.Selector)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	tracesPath := fs.String("traces", "", "trace file with PASSED and FAILED lists")
	configPath := fs.String("config", "", "settings file (.json, .yaml or .yml)")
	envFiles := fs.String("env-file", "", "comma-separated dotenv files applied after the settings file")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	snapshotEvery := fs.Int("snapshot-every", 0, "persist the ranked population every n generations (0 keeps only the final one)")
	exportGenerations := fs.Bool("export-generations", false, "write each generation's best automaton as JSON and DOT")
	noArtifacts := fs.Bool("no-artifacts", false, "keep the run in the store only")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	overrides := registerRunFlags(fs)
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tracesPath == "" {
		return errors.New("run requires --traces")
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	settings, err := loadSettings(*configPath, *envFiles)
	if err != nil {
		return err
	}
	overrides.apply(&settings, visitedFlags(fs))
	if err := settings.Validate(); err != nil {
		return err
	}

	var (
		collector *metrics.Collector
		modules   []platform.SupportModule
	)
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err = metrics.NewCollector(reg)
		if err != nil {
			return err
		}
		modules = append(modules, &platform.MetricsServer{Addr: *metricsAddr, Gatherer: reg, Logger: logger})
	}

	client, err := store.open(logger, collector, modules...)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	id := *runID
	if id == "" {
		id = uuid.NewString()
	}
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-sigCtx.Done():
			logger.Warn("interrupt received, stopping after the current generation", slog.String("run_id", id))
			if err := client.StopRun(ctx, id); err != nil {
				logger.Error("stop run", slog.String("run_id", id), slog.String("error", err.Error()))
			}
		case <-finished:
		}
	}()

	summary, err := client.Run(ctx, dfaapi.RunRequest{
		RunID:                id,
		TracesPath:           *tracesPath,
		Settings:             &settings,
		SnapshotEvery:        *snapshotEvery,
		ExportGenerationBest: *exportGenerations,
		DisableArtifacts:     *noArtifacts,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s generations=%d stop_reason=%s best=%.4f upper_bound=%.4f accuracy=%.2f%%\n",
		summary.RunID,
		summary.Generations,
		summary.StopReason,
		summary.FinalBestFitness,
		summary.UpperBound,
		summary.Accuracy,
	)
	fmt.Printf("verdicts tp=%d tn=%d fp=%d fn=%d\n",
		summary.Verdicts.TruePositive,
		summary.Verdicts.TrueNegative,
		summary.Verdicts.FalsePositive,
		summary.Verdicts.FalseNegative,
	)
	if summary.ArtifactsDir != "" {
		fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	}
	return nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	runID := fs.String("run-id", "", "evaluate the best automaton of this run")
	latest := fs.Bool("latest", false, "evaluate the best automaton of the most recent run")
	chromosomePath := fs.String("chromosome", "", "chromosome JSON record to evaluate instead of a run")
	tracesPath := fs.String("traces", "", "trace file (defaults to the run's traces)")
	configPath := fs.String("config", "", "settings file whose weights replace the run's")
	jsonOut := fs.Bool("json", false, "emit the result as JSON")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}

	req := dfaapi.EvaluateRequest{
		RunID:          *runID,
		Latest:         *latest,
		ChromosomePath: *chromosomePath,
		TracesPath:     *tracesPath,
	}
	if *configPath != "" {
		settings, err := loadSettings(*configPath, "")
		if err != nil {
			return err
		}
		req.Settings = &settings
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"run_id":      summary.RunID,
			"fitness":     summary.Fitness,
			"upper_bound": summary.UpperBound,
			"accuracy":    summary.Accuracy,
			"verdicts":    summary.Verdicts,
		})
	}
	fmt.Printf("fitness=%.4f upper_bound=%.4f accuracy=%.2f%% tp=%d tn=%d fp=%d fn=%d\n",
		summary.Fitness,
		summary.UpperBound,
		summary.Accuracy,
		summary.Verdicts.TruePositive,
		summary.Verdicts.TrueNegative,
		summary.Verdicts.FalsePositive,
		summary.Verdicts.FalseNegative,
	)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to print")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, dfaapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return printJSON(runs)
	}
	for _, r := range runs {
		fmt.Printf("%s created=%s traces=%s seed=%d pop=%d gens=%d best=%.4f accuracy=%.2f%% stop=%s\n",
			r.RunID,
			r.CreatedAtUTC,
			r.TracesPath,
			r.Seed,
			r.Population,
			r.Generations,
			r.FinalBestFitness,
			r.Accuracy,
			r.StopReason,
		)
	}
	return nil
}

// queryFlags registers the --run-id/--latest/--limit trio shared by the
// read commands.
func queryFlags(fs *flag.FlagSet, defaultLimit int) (*string, *bool, *int) {
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", defaultLimit, "max rows to print (<=0 for all)")
	return runID, latest, limit
}

func buildQuery(command, runID string, latest bool, limit int) (dfaapi.RunQuery, error) {
	if runID != "" && latest {
		return dfaapi.RunQuery{}, errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return dfaapi.RunQuery{}, fmt.Errorf("%s requires --run-id or --latest", command)
	}
	if limit < 0 {
		limit = 0
	}
	return dfaapi.RunQuery{RunID: runID, Latest: latest, Limit: limit}, nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	runID, latest, limit := queryFlags(fs, 50)
	jsonOut := fs.Bool("json", false, "emit lineage rows as JSON")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := buildQuery("lineage", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, query)
	if err != nil {
		return err
	}
	if len(lineage) == 0 {
		fmt.Println("no lineage records")
		return nil
	}
	if *jsonOut {
		return printJSON(lineage)
	}
	for _, rec := range lineage {
		parents := make([]string, 0, len(rec.ParentIDs))
		for _, p := range rec.ParentIDs {
			parents = append(parents, fmt.Sprint(p))
		}
		fmt.Printf("gen=%d id=%d parents=%s op=%s fingerprint=%s\n",
			rec.Generation,
			rec.LineageID,
			strings.Join(parents, ","),
			rec.Operation,
			rec.Fingerprint,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID, latest, limit := queryFlags(fs, 0)
	jsonOut := fs.Bool("json", false, "emit the series as JSON")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := buildQuery("fitness", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, query)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(history)
	}
	for _, item := range history {
		fmt.Printf("generation=%d best=%.6f\n", item.Generation, item.BestFitness)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID, latest, limit := queryFlags(fs, 0)
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := buildQuery("diagnostics", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, query)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.4f mean=%.4f min=%.4f diversity=%d species=%d states=%.2f edges=%.2f mutations=%d crossovers=%d failed=%d\n",
			d.Generation,
			d.BestFitness,
			d.MeanFitness,
			d.MinFitness,
			d.FingerprintDiversity,
			d.SpeciesCount,
			d.MeanStates,
			d.MeanEdges,
			d.Mutations,
			d.Crossovers,
			d.FailedMutations,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID, latest, limit := queryFlags(fs, 5)
	showGraph := fs.Bool("describe", false, "print each automaton's transitions")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := buildQuery("top", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopChromosomes(ctx, query)
	if err != nil {
		return err
	}
	for _, item := range top {
		fmt.Printf("rank=%d fitness=%.4f states=%d edges=%d accepting=%d\n",
			item.Rank, item.Fitness, item.States, item.Edges, item.Accepting)
		if *showGraph {
			fmt.Println(item.Description)
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export output directory")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, dfaapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runDOT(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dot", flag.ContinueOnError)
	runID := fs.String("run-id", "", "render the best automaton of this run")
	latest := fs.Bool("latest", false, "render the best automaton of the most recent run")
	chromosomePath := fs.String("chromosome", "", "chromosome JSON record to render instead of a run")
	out := fs.String("out", "", "write the graph here instead of stdout")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var data []byte
	if *chromosomePath != "" {
		if *runID != "" || *latest {
			return errors.New("use either --chromosome or a run, not both")
		}
		c, err := dfaapi.ReadChromosome(*chromosomePath)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(*chromosomePath), filepath.Ext(*chromosomePath))
		if data, err = stats.MarshalDOT(c, name); err != nil {
			return err
		}
	} else {
		query, err := buildQuery("dot", *runID, *latest, 0)
		if err != nil {
			return err
		}
		client, err := store.open(slog.Default(), nil)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()
		id, c, err := client.BestChromosome(ctx, query)
		if err != nil {
			return err
		}
		if data, err = stats.MarshalDOT(c, id); err != nil {
			return err
		}
	}

	if *out == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	tracesPath := fs.String("traces", "", "trace file with PASSED and FAILED lists")
	configPath := fs.String("config", "", "settings file (.json, .yaml or .yml)")
	envFiles := fs.String("env-file", "", "comma-separated dotenv files applied after the settings file")
	runs := fs.Int("runs", 5, "number of runs, seeded consecutively from --seed")
	experimentID := fs.String("experiment-id", "", "experiment id (optional)")
	notes := fs.String("notes", "", "free-form notes stored with the experiment")
	evalLimit := fs.Int("eval-limit", 0, "evaluations a run may spend and still count as solved (0 disables)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	overrides := registerRunFlags(fs)
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tracesPath == "" {
		return errors.New("benchmark requires --traces")
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	settings, err := loadSettings(*configPath, *envFiles)
	if err != nil {
		return err
	}
	overrides.apply(&settings, visitedFlags(fs))

	client, err := store.open(logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	id := *experimentID
	if id == "" {
		id = "exp-" + uuid.NewString()
	}
	summary, err := client.Benchmark(ctx, dfaapi.BenchmarkRequest{
		ExperimentID:    id,
		TracesPath:      *tracesPath,
		Settings:        &settings,
		Runs:            *runs,
		Notes:           *notes,
		EvaluationLimit: *evalLimit,
	})
	if err != nil {
		return err
	}
	fmt.Printf("experiment_id=%s dir=%s\n", summary.ExperimentID, summary.Directory)
	return printJSON(summary.Report.Stats)
}

func runExperiments(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("experiments", flag.ContinueOnError)
	id := fs.String("id", "", "print the benchmark report of this experiment")
	store := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.open(slog.Default(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *id != "" {
		report, err := client.BenchmarkReport(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(report)
	}
	experiments, err := client.Experiments(ctx)
	if err != nil {
		return err
	}
	if len(experiments) == 0 {
		fmt.Println("no experiments found")
		return nil
	}
	for _, exp := range experiments {
		fmt.Printf("%s status=%s runs=%d/%d seed=%d started=%s\n",
			exp.ID,
			exp.Status,
			exp.RunIndex,
			exp.TotalRuns,
			exp.BaseSeed,
			exp.StartedAtUTC,
		)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: geneticdfactl <init-config|validate-config|run|evaluate|runs|lineage|fitness|diagnostics|top|export|dot|benchmark|experiments> [flags]", msg)
}
