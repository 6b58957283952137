// Package config holds the tunable settings of an evolution run and their
// persistence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"geneticdfa/internal/evo"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings mirrors every knob of a run. Zero values are not defaults; start
// from Defaults and overlay.
type Settings struct {
	MinPopulation          int     `json:"min_population" yaml:"min_population" validate:"min=1"`
	MaxPopulation          int     `json:"max_population" yaml:"max_population" validate:"min=1,gtefield=MinPopulation"`
	ConvergenceGenerations int     `json:"convergence_generations" yaml:"convergence_generations" validate:"min=1"`
	MaxGenerations         int     `json:"max_generations" yaml:"max_generations" validate:"min=1"`
	EliteScalingFactor     int     `json:"elite_scaling_factor" yaml:"elite_scaling_factor" validate:"min=0"`
	EliteCarryOver         float64 `json:"elite_carry_over" yaml:"elite_carry_over" validate:"probability"`

	RewardTruePositive   float64 `json:"reward_true_positive" yaml:"reward_true_positive" validate:"min=0"`
	RewardTrueNegative   float64 `json:"reward_true_negative" yaml:"reward_true_negative" validate:"min=0"`
	PenaltyFalsePositive float64 `json:"penalty_false_positive" yaml:"penalty_false_positive" validate:"min=0"`
	PenaltyFalseNegative float64 `json:"penalty_false_negative" yaml:"penalty_false_negative" validate:"min=0"`

	WeightNonDeterministicEdges     float64 `json:"weight_non_deterministic_edges" yaml:"weight_non_deterministic_edges" validate:"min=0"`
	WeightMissingDeterministicEdges float64 `json:"weight_missing_deterministic_edges" yaml:"weight_missing_deterministic_edges" validate:"min=0"`
	WeightUnreachableStates         float64 `json:"weight_unreachable_states" yaml:"weight_unreachable_states" validate:"min=0"`
	WeightSize                      float64 `json:"weight_size" yaml:"weight_size" validate:"min=0"`
	StructuralPenalty               string  `json:"structural_penalty" yaml:"structural_penalty" validate:"oneof=missing_edges unreachable_states"`

	FitnessLowerBound   float64 `json:"fitness_lower_bound" yaml:"fitness_lower_bound" validate:"probability"`
	MutationProbability float64 `json:"mutation_probability" yaml:"mutation_probability" validate:"probability"`

	NonDeterministicBehaviorProbability float64 `json:"non_deterministic_behavior_probability" yaml:"non_deterministic_behavior_probability" validate:"probability"`
	ChangeTargetProbability             float64 `json:"change_target_probability" yaml:"change_target_probability" validate:"probability"`
	ChangeSourceProbability             float64 `json:"change_source_probability" yaml:"change_source_probability" validate:"probability"`
	ChangeInputProbability              float64 `json:"change_input_probability" yaml:"change_input_probability" validate:"probability"`
	RemoveEdgeProbability               float64 `json:"remove_edge_probability" yaml:"remove_edge_probability" validate:"probability"`
	AddEdgeProbability                  float64 `json:"add_edge_probability" yaml:"add_edge_probability" validate:"probability"`
	AddStateProbability                 float64 `json:"add_state_probability" yaml:"add_state_probability" validate:"probability"`
	AddAcceptStateProbability           float64 `json:"add_accept_state_probability" yaml:"add_accept_state_probability" validate:"probability"`
	RemoveAcceptStateProbability        float64 `json:"remove_accept_state_probability" yaml:"remove_accept_state_probability" validate:"probability"`
	MergeStatesProbability              float64 `json:"merge_states_probability" yaml:"merge_states_probability" validate:"probability"`

	Selector              string `json:"selector" yaml:"selector" validate:"oneof=roulette elite tournament"`
	Postprocessor         string `json:"postprocessor" yaml:"postprocessor" validate:"oneof=none size_proportional"`
	MutationsPerOffspring int    `json:"mutations_per_offspring" yaml:"mutations_per_offspring" validate:"min=1"`
	// MutationCountPolicy is const (MutationsPerOffspring calls) or
	// state_linear (states * MutationCountMultiplier, capped at
	// MutationsPerOffspring).
	MutationCountPolicy     string  `json:"mutation_count_policy" yaml:"mutation_count_policy" validate:"oneof=const state_linear"`
	MutationCountMultiplier float64 `json:"mutation_count_multiplier" yaml:"mutation_count_multiplier" validate:"gt=0"`
	Workers                 int     `json:"workers" yaml:"workers" validate:"min=0"`
	GenerationTimeout       string  `json:"generation_timeout" yaml:"generation_timeout" validate:"duration"`
	Seed                    int64   `json:"seed" yaml:"seed"`
}

// Defaults returns the settings a run uses when no file is present.
func Defaults() Settings {
	return Settings{
		MinPopulation:          3500,
		MaxPopulation:          3500,
		ConvergenceGenerations: 100,
		MaxGenerations:         400,
		EliteScalingFactor:     2,
		EliteCarryOver:         0.05,

		RewardTruePositive:   10,
		RewardTrueNegative:   10,
		PenaltyFalsePositive: 10,
		PenaltyFalseNegative: 10,

		WeightNonDeterministicEdges:     1,
		WeightMissingDeterministicEdges: 1,
		WeightUnreachableStates:         1,
		WeightSize:                      1,
		StructuralPenalty:               evo.PenaltyMissingEdges.String(),

		FitnessLowerBound:   0.95,
		MutationProbability: 0.75,

		NonDeterministicBehaviorProbability: 0.65,
		ChangeTargetProbability:             0.11,
		ChangeSourceProbability:             0.11,
		ChangeInputProbability:              0.11,
		RemoveEdgeProbability:               0.11,
		AddEdgeProbability:                  0.12,
		AddStateProbability:                 0.11,
		AddAcceptStateProbability:           0.11,
		RemoveAcceptStateProbability:        0.11,
		MergeStatesProbability:              0.11,

		Selector:                "roulette",
		Postprocessor:           "none",
		MutationsPerOffspring:   1,
		MutationCountPolicy:     "const",
		MutationCountMultiplier: 0.5,
		Workers:                 0,
		GenerationTimeout:       "0s",
		Seed:                    1,
	}
}

func (s Settings) CrossoverProbability() float64 {
	return 1 - s.MutationProbability
}

// EliteCount is the number of individuals carried over unchanged each
// generation.
func (s Settings) EliteCount() int {
	return int(math.Round(s.EliteCarryOver * float64(s.MinPopulation)))
}

func (s Settings) Timeout() time.Duration {
	d, err := time.ParseDuration(s.GenerationTimeout)
	if err != nil {
		return 0
	}
	return d
}

func (s Settings) FitnessWeights() (evo.Weights, error) {
	structural, err := evo.ParseStructuralPenalty(s.StructuralPenalty)
	if err != nil {
		return evo.Weights{}, err
	}
	return evo.Weights{
		TruePositive:              s.RewardTruePositive,
		TrueNegative:              s.RewardTrueNegative,
		FalsePositive:             s.PenaltyFalsePositive,
		FalseNegative:             s.PenaltyFalseNegative,
		NonDeterministicEdges:     s.WeightNonDeterministicEdges,
		MissingDeterministicEdges: s.WeightMissingDeterministicEdges,
		UnreachableStates:         s.WeightUnreachableStates,
		Size:                      s.WeightSize,
		Structural:                structural,
	}, nil
}

func (s Settings) MutationCounter() (evo.MutationCountPolicy, error) {
	switch s.MutationCountPolicy {
	case "", "const":
		return evo.ConstMutationCount{Count: s.MutationsPerOffspring}, nil
	case "state_linear":
		return evo.StateLinearMutationCount{Multiplier: s.MutationCountMultiplier, MaxCount: s.MutationsPerOffspring}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mutation count policy %q", ErrInvalidSettings, s.MutationCountPolicy)
	}
}

func (s Settings) MutationProbabilities() evo.MutationProbabilities {
	return evo.MutationProbabilities{
		NonDeterministicBehavior: s.NonDeterministicBehaviorProbability,
		ChangeSource:             s.ChangeSourceProbability,
		ChangeTarget:             s.ChangeTargetProbability,
		ChangeInput:              s.ChangeInputProbability,
		RemoveEdge:               s.RemoveEdgeProbability,
		AddEdge:                  s.AddEdgeProbability,
		AddState:                 s.AddStateProbability,
		AddAcceptState:           s.AddAcceptStateProbability,
		RemoveAcceptState:        s.RemoveAcceptStateProbability,
		MergeStates:              s.MergeStatesProbability,
	}
}

// Load reads settings from a JSON or YAML file, chosen by extension, on top of
// Defaults. A missing file yields Defaults.
func Load(path string) (Settings, error) {
	settings := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return Settings{}, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &settings)
	} else {
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings as JSON or YAML, chosen by extension.
func Save(path string, settings Settings) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(settings)
	} else {
		data, err = json.MarshalIndent(settings, "", "  ")
	}
	if err != nil {
		return err
	}
	if !isYAML(path) {
		data = append(data, '\n')
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
