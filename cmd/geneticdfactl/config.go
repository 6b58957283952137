package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"geneticdfa/internal/config"
)

// runFlags are the settings a run command may override on the command line.
// Only flags the user actually set are applied.
type runFlags struct {
	population   *int
	generations  *int
	convergence  *int
	seed         *int64
	workers      *int
	selection    *string
	postprocess  *string
	mutations    *int
	lowerBound   *float64
	mutationProb *float64
	timeout      *string
	structural   *string
}

func registerRunFlags(fs *flag.FlagSet) *runFlags {
	return &runFlags{
		population:   fs.Int("pop", 0, "population size, sets both min and max population"),
		generations:  fs.Int("gens", 0, "maximum generation count"),
		convergence:  fs.Int("convergence", 0, "generations without improvement before a threshold stop"),
		seed:         fs.Int64("seed", 0, "rng seed"),
		workers:      fs.Int("workers", 0, "evaluation workers (0 uses every CPU)"),
		selection:    fs.String("selection", "", "parent selection: roulette|elite|tournament"),
		postprocess:  fs.String("fitness-postprocessor", "", "fitness postprocessor: none|size_proportional"),
		mutations:    fs.Int("mutations", 0, "mutation calls chained per mutated offspring"),
		lowerBound:   fs.Float64("fitness-lower-bound", 0, "fraction of the upper bound that counts as solved"),
		mutationProb: fs.Float64("mutation-probability", 0, "probability an offspring is produced by mutation rather than crossover"),
		timeout:      fs.String("generation-timeout", "", "per-generation evaluation timeout, e.g. 30s (0s disables)"),
		structural:   fs.String("structural-penalty", "", "structural penalty: missing_edges|unreachable_states"),
	}
}

func (f *runFlags) apply(s *config.Settings, set map[string]bool) {
	if set["pop"] {
		s.MinPopulation = *f.population
		s.MaxPopulation = *f.population
	}
	if set["gens"] {
		s.MaxGenerations = *f.generations
	}
	if set["convergence"] {
		s.ConvergenceGenerations = *f.convergence
	}
	if set["seed"] {
		s.Seed = *f.seed
	}
	if set["workers"] {
		s.Workers = *f.workers
	}
	if set["selection"] {
		s.Selector = *f.selection
	}
	if set["fitness-postprocessor"] {
		s.Postprocessor = *f.postprocess
	}
	if set["mutations"] {
		s.MutationsPerOffspring = *f.mutations
	}
	if set["fitness-lower-bound"] {
		s.FitnessLowerBound = *f.lowerBound
	}
	if set["mutation-probability"] {
		s.MutationProbability = *f.mutationProb
	}
	if set["generation-timeout"] {
		s.GenerationTimeout = *f.timeout
	}
	if set["structural-penalty"] {
		s.StructuralPenalty = *f.structural
	}
}

// loadSettings layers defaults, the optional settings file, dotenv files and
// the environment, in that order.
func loadSettings(path string, envFiles string) (config.Settings, error) {
	settings := config.Defaults()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return config.Settings{}, fmt.Errorf("settings file: %w", err)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return config.Settings{}, err
		}
		settings = loaded
	}
	if err := config.ApplyEnv(&settings, splitList(envFiles)...); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func visitedFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
