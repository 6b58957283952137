package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const experimentsDir = "experiments"

const (
	ExperimentInProgress  = "in_progress"
	ExperimentCompleted   = "completed"
	ExperimentInterrupted = "interrupted"
)

// Experiment groups repeated runs over the same traces and settings, one
// seed per run.
type Experiment struct {
	ID             string   `json:"id"`
	Notes          string   `json:"notes,omitempty"`
	Status         string   `json:"status"`
	TracesPath     string   `json:"traces_path"`
	BaseSeed       int64    `json:"base_seed"`
	RunIndex       int      `json:"run_index"`
	TotalRuns      int      `json:"total_runs"`
	StartedAtUTC   string   `json:"started_at_utc,omitempty"`
	CompletedAtUTC string   `json:"completed_at_utc,omitempty"`
	Interruptions  []string `json:"interruptions,omitempty"`
	RunIDs         []string `json:"run_ids,omitempty"`
}

func WriteExperiment(baseDir string, exp Experiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment id is required")
	}
	path := experimentPath(baseDir, exp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, exp)
}

func ReadExperiment(baseDir, id string) (Experiment, bool, error) {
	if id == "" {
		return Experiment{}, false, fmt.Errorf("experiment id is required")
	}
	var exp Experiment
	ok, err := readJSON(experimentPath(baseDir, id), &exp)
	if err != nil || !ok {
		return Experiment{}, ok, err
	}
	return exp, true, nil
}

// ListExperiments returns every recorded experiment, most recently started
// first.
func ListExperiments(baseDir string) ([]Experiment, error) {
	entries, err := os.ReadDir(filepath.Join(baseDir, experimentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []Experiment{}, nil
		}
		return nil, err
	}

	exps := make([]Experiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool {
		switch {
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}

func experimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, experimentsDir, id, "experiment.json")
}
