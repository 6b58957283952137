package stats

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"
)

// BenchmarkRun scores one run of an experiment against its solve goal.
type BenchmarkRun struct {
	RunID string `json:"run_id"`
	Seed  int64  `json:"seed"`
	// Goal is the fitness lower bound fraction applied to the run's upper
	// bound.
	Goal               float64        `json:"goal"`
	Solved             bool           `json:"solved"`
	SolvedAtGeneration int            `json:"solved_at_generation,omitempty"`
	Evaluations        int            `json:"evaluations"`
	EvaluationLimit    int            `json:"evaluation_limit,omitempty"`
	Fitness            FitnessSummary `json:"fitness"`
}

type BenchmarkStats struct {
	TotalRuns      int            `json:"total_runs"`
	SolvedRuns     int            `json:"solved_runs"`
	SolveRate      float64        `json:"solve_rate"`
	AvgEvaluations float64        `json:"avg_evaluations"`
	StdEvaluations float64        `json:"std_evaluations"`
	MinEvaluations float64        `json:"min_evaluations"`
	MaxEvaluations float64        `json:"max_evaluations"`
	AvgFinalBest   float64        `json:"avg_final_best"`
	Runs           []BenchmarkRun `json:"runs"`
}

// PlotPoint is one generation of an aggregated fitness curve.
type PlotPoint struct {
	Generation int     `json:"generation"`
	Value      float64 `json:"value"`
	Runs       int     `json:"runs"`
}

type BenchmarkReport struct {
	ExperimentID   string         `json:"experiment_id"`
	GeneratedAtUTC string         `json:"generated_at_utc"`
	Experiment     Experiment     `json:"experiment"`
	Stats          BenchmarkStats `json:"stats"`
	AverageBest    []PlotPoint    `json:"average_best"`
	MaxBest        []PlotPoint    `json:"max_best"`
}

// BuildBenchmarkReport reads the artifacts of every run in exp and aggregates
// them. evaluationLimit caps the evaluations a run may spend before it counts
// as unsolved; zero means no cap.
func BuildBenchmarkReport(baseDir string, exp Experiment, evaluationLimit int) (BenchmarkReport, error) {
	series := make([][]float64, 0, len(exp.RunIDs))
	result := BenchmarkStats{
		TotalRuns: len(exp.RunIDs),
		Runs:      make([]BenchmarkRun, 0, len(exp.RunIDs)),
	}
	var solvedEvaluations, finalBest []float64
	for _, runID := range exp.RunIDs {
		cfg, ok, err := ReadRunConfig(baseDir, runID)
		if err != nil {
			return BenchmarkReport{}, err
		}
		if !ok {
			return BenchmarkReport{}, fmt.Errorf("run config not found for run id: %s", runID)
		}
		bests, ok, err := ReadFitnessSeries(baseDir, runID)
		if err != nil {
			return BenchmarkReport{}, err
		}
		if !ok {
			return BenchmarkReport{}, fmt.Errorf("fitness series not found for run id: %s", runID)
		}
		series = append(series, bests)

		run := scoreBenchmarkRun(cfg, bests, evaluationLimit)
		result.Runs = append(result.Runs, run)
		finalBest = append(finalBest, run.Fitness.FinalBest)
		if run.Solved {
			result.SolvedRuns++
			solvedEvaluations = append(solvedEvaluations, float64(run.Evaluations))
		}
	}
	if result.TotalRuns > 0 {
		result.SolveRate = float64(result.SolvedRuns) / float64(result.TotalRuns)
		result.AvgFinalBest = stat.Mean(finalBest, nil)
	}
	if len(solvedEvaluations) > 0 {
		result.AvgEvaluations = stat.Mean(solvedEvaluations, nil)
		if len(solvedEvaluations) > 1 {
			result.StdEvaluations = stat.StdDev(solvedEvaluations, nil)
		}
		result.MinEvaluations, result.MaxEvaluations = minMax(solvedEvaluations)
	}

	return BenchmarkReport{
		ExperimentID: exp.ID,
		Experiment:   exp,
		Stats:        result,
		AverageBest:  AverageBestPlot(series),
		MaxBest:      MaxBestPlot(series),
	}, nil
}

// scoreBenchmarkRun walks the best-by-generation series and stops at the first
// generation that reaches the goal. Every generation is charged a full
// population of evaluations.
func scoreBenchmarkRun(cfg RunConfig, bests []float64, evaluationLimit int) BenchmarkRun {
	s := cfg.Settings
	upper := s.RewardTruePositive*float64(cfg.Accepting) + s.RewardTrueNegative*float64(cfg.Rejecting)
	population := max(s.MaxPopulation, 1)
	run := BenchmarkRun{
		RunID:           cfg.RunID,
		Seed:            s.Seed,
		Goal:            s.FitnessLowerBound * upper,
		EvaluationLimit: evaluationLimit,
		Fitness:         SummarizeFitness(bests),
	}
	for generation, best := range bests {
		run.Evaluations += population
		if evaluationLimit > 0 && run.Evaluations > evaluationLimit {
			return run
		}
		if best >= run.Goal {
			run.Solved = true
			run.SolvedAtGeneration = generation + 1
			return run
		}
	}
	return run
}

// AverageBestPlot averages the best fitness per generation over the runs that
// lasted that long.
func AverageBestPlot(series [][]float64) []PlotPoint {
	return aggregateByGeneration(series, func(values []float64) float64 {
		return stat.Mean(values, nil)
	})
}

// MaxBestPlot takes the highest best fitness per generation over the runs.
func MaxBestPlot(series [][]float64) []PlotPoint {
	return aggregateByGeneration(series, func(values []float64) float64 {
		_, hi := minMax(values)
		return hi
	})
}

func aggregateByGeneration(series [][]float64, reduce func([]float64) float64) []PlotPoint {
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s))
	}
	points := make([]PlotPoint, 0, longest)
	for g := 0; g < longest; g++ {
		values := make([]float64, 0, len(series))
		for _, s := range series {
			if g < len(s) {
				values = append(values, s[g])
			}
		}
		points = append(points, PlotPoint{Generation: g + 1, Value: reduce(values), Runs: len(values)})
	}
	return points
}

func minMax(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// WriteBenchmarkReport stores the report next to the experiment record and
// returns the experiment directory.
func WriteBenchmarkReport(baseDir string, report BenchmarkReport) (string, error) {
	if report.ExperimentID == "" {
		return "", fmt.Errorf("report experiment id is required")
	}
	dir := filepath.Join(baseDir, experimentsDir, report.ExperimentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if report.GeneratedAtUTC == "" {
		report.GeneratedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := writeJSON(filepath.Join(dir, "report.json"), report); err != nil {
		return "", err
	}
	return dir, nil
}

func ReadBenchmarkReport(baseDir, experimentID string) (BenchmarkReport, bool, error) {
	var report BenchmarkReport
	ok, err := readJSON(filepath.Join(baseDir, experimentsDir, experimentID, "report.json"), &report)
	if err != nil || !ok {
		return BenchmarkReport{}, ok, err
	}
	return report, true, nil
}
