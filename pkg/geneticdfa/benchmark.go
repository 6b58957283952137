package geneticdfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"geneticdfa/internal/config"
	"geneticdfa/internal/stats"
)

// BenchmarkRequest repeats a run Runs times with consecutive seeds starting
// at the settings seed.
type BenchmarkRequest struct {
	ExperimentID string
	TracesPath   string
	Settings     *config.Settings
	SettingsPath string
	Runs         int
	Notes        string
	// EvaluationLimit caps the evaluations a run may spend and still count as
	// solved. Zero disables the cap.
	EvaluationLimit int
}

type BenchmarkSummary struct {
	ExperimentID string
	Directory    string
	Report       stats.BenchmarkReport
}

func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkSummary, error) {
	if req.ExperimentID == "" {
		return BenchmarkSummary{}, errors.New("benchmark requires an experiment id")
	}
	if req.Runs <= 0 {
		return BenchmarkSummary{}, errors.New("benchmark runs must be > 0")
	}
	if req.EvaluationLimit < 0 {
		return BenchmarkSummary{}, errors.New("evaluation limit must be >= 0")
	}
	settings, err := resolveSettings(req.Settings, req.SettingsPath)
	if err != nil {
		return BenchmarkSummary{}, err
	}
	if err := settings.Validate(); err != nil {
		return BenchmarkSummary{}, err
	}
	if _, ok, err := stats.ReadExperiment(c.artifactsDir, req.ExperimentID); err != nil {
		return BenchmarkSummary{}, err
	} else if ok {
		return BenchmarkSummary{}, fmt.Errorf("experiment %s already exists", req.ExperimentID)
	}

	exp := stats.Experiment{
		ID:           req.ExperimentID,
		Notes:        req.Notes,
		Status:       stats.ExperimentInProgress,
		TracesPath:   req.TracesPath,
		BaseSeed:     settings.Seed,
		TotalRuns:    req.Runs,
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := stats.WriteExperiment(c.artifactsDir, exp); err != nil {
		return BenchmarkSummary{}, err
	}
	log := c.logger.With(slog.String("component", "benchmark"), slog.String("experiment_id", exp.ID))

	for i := 0; i < req.Runs; i++ {
		runSettings := settings
		runSettings.Seed = settings.Seed + int64(i)
		runID := fmt.Sprintf("%s-run-%03d", exp.ID, i+1)

		summary, err := c.Run(ctx, RunRequest{
			RunID:      runID,
			TracesPath: req.TracesPath,
			Settings:   &runSettings,
		})
		if err != nil {
			exp.Status = stats.ExperimentInterrupted
			exp.Interruptions = append(exp.Interruptions, fmt.Sprintf("%s: %v", runID, err))
			if werr := stats.WriteExperiment(c.artifactsDir, exp); werr != nil {
				return BenchmarkSummary{}, errors.Join(err, werr)
			}
			return BenchmarkSummary{}, fmt.Errorf("benchmark run %s: %w", runID, err)
		}
		exp.RunIDs = append(exp.RunIDs, runID)
		exp.RunIndex = i + 1
		if err := stats.WriteExperiment(c.artifactsDir, exp); err != nil {
			return BenchmarkSummary{}, err
		}
		log.Info("benchmark run finished",
			slog.String("run_id", runID),
			slog.Int64("seed", runSettings.Seed),
			slog.Float64("best_fitness", summary.FinalBestFitness),
			slog.Int("generations", summary.Generations),
		)
	}

	exp.Status = stats.ExperimentCompleted
	exp.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	if err := stats.WriteExperiment(c.artifactsDir, exp); err != nil {
		return BenchmarkSummary{}, err
	}
	report, err := stats.BuildBenchmarkReport(c.artifactsDir, exp, req.EvaluationLimit)
	if err != nil {
		return BenchmarkSummary{}, err
	}
	dir, err := stats.WriteBenchmarkReport(c.artifactsDir, report)
	if err != nil {
		return BenchmarkSummary{}, err
	}
	log.Info("benchmark completed",
		slog.Int("solved_runs", report.Stats.SolvedRuns),
		slog.Float64("solve_rate", report.Stats.SolveRate),
	)
	return BenchmarkSummary{ExperimentID: exp.ID, Directory: dir, Report: report}, nil
}

func (c *Client) Experiments(_ context.Context) ([]stats.Experiment, error) {
	return stats.ListExperiments(c.artifactsDir)
}

// BenchmarkReport returns the stored report of a completed experiment.
func (c *Client) BenchmarkReport(_ context.Context, experimentID string) (stats.BenchmarkReport, error) {
	if experimentID == "" {
		return stats.BenchmarkReport{}, errors.New("experiment id is required")
	}
	report, ok, err := stats.ReadBenchmarkReport(c.artifactsDir, experimentID)
	if err != nil {
		return stats.BenchmarkReport{}, err
	}
	if !ok {
		return stats.BenchmarkReport{}, fmt.Errorf("no benchmark report for experiment id: %s", experimentID)
	}
	return report, nil
}
