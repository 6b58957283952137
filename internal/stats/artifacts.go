// Package stats writes and reads the on-disk artifacts of a run: settings,
// fitness series, diagnostics, lineage, the top automata and their DOT
// renderings.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"geneticdfa/internal/config"
	"geneticdfa/internal/genotype"
	"geneticdfa/internal/model"
)

const runIndexFile = "run_index.json"

var artifactFiles = []string{
	"config.json",
	"fitness_history.json",
	"fitness_history.csv",
	"generation_diagnostics.json",
	"top_chromosomes.json",
	"lineage.json",
	"best.dot",
}

type RunConfig struct {
	RunID      string          `json:"run_id"`
	TracesPath string          `json:"traces_path"`
	Alphabet   string          `json:"alphabet"`
	Accepting  int             `json:"accepting_traces"`
	Rejecting  int             `json:"rejecting_traces"`
	Settings   config.Settings `json:"settings"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	UpperBound            float64                       `json:"upper_bound"`
	Accuracy              float64                       `json:"accuracy"`
	StopReason            string                        `json:"stop_reason"`
	TopChromosomes        []model.TopChromosomeRecord   `json:"top_chromosomes"`
	Lineage               []model.LineageRecord         `json:"lineage"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	TracesPath       string  `json:"traces_path"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Workers          int     `json:"workers"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	Accuracy         float64 `json:"accuracy"`
	StopReason       string  `json:"stop_reason"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// WriteRunArtifacts lays the run out under baseDir/<run id>/ and returns that
// directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	history := map[string]any{
		"best_by_generation": artifacts.BestByGeneration,
		"final_best_fitness": artifacts.FinalBestFitness,
		"upper_bound":        artifacts.UpperBound,
		"accuracy":           artifacts.Accuracy,
		"stop_reason":        artifacts.StopReason,
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), history); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_chromosomes.json"), artifacts.TopChromosomes); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "lineage.json"), artifacts.Lineage); err != nil {
		return "", err
	}
	if len(artifacts.TopChromosomes) > 0 {
		best, err := genotype.FromRecord(artifacts.TopChromosomes[0].Chromosome)
		if err != nil {
			return "", fmt.Errorf("rebuild best chromosome: %w", err)
		}
		if err := WriteDOT(filepath.Join(runDir, "best.dot"), best, artifacts.Config.RunID); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

// WriteGenerationBest stores the best automaton of one generation as JSON and
// DOT under runDir/generations/.
func WriteGenerationBest(runDir string, generation int, best *genotype.Chromosome, schemaVersion, codecVersion int) error {
	dir := filepath.Join(runDir, "generations")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("gen-%04d", generation)
	if err := writeJSON(filepath.Join(dir, name+".json"), genotype.ToRecord(best, schemaVersion, codecVersion)); err != nil {
		return err
	}
	return WriteDOT(filepath.Join(dir, name+".dot"), best, name)
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory to outDir. Missing optional files
// are skipped; config.json must exist.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(filepath.Join(src, "config.json")); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range artifactFiles {
		err := copyFile(filepath.Join(src, file), filepath.Join(dst, file))
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadTopChromosomes(baseDir, runID string) ([]model.TopChromosomeRecord, bool, error) {
	var top []model.TopChromosomeRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_chromosomes.json"), &top)
	return top, ok, err
}

func ReadLineage(baseDir, runID string) ([]model.LineageRecord, bool, error) {
	var lineage []model.LineageRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "lineage.json"), &lineage)
	return lineage, ok, err
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, "generation_diagnostics.json"), &diagnostics)
	return diagnostics, ok, err
}

// WriteFitnessSeries writes the best fitness per generation as CSV, one row
// per generation starting at 1.
func WriteFitnessSeries(runDir string, bestByGeneration []float64) error {
	path := filepath.Join(runDir, "fitness_history.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "fitness_history.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
