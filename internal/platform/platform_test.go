package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"geneticdfa/internal/config"
	"geneticdfa/internal/evo"
	"geneticdfa/internal/storage"
	"geneticdfa/internal/traces"
)

type testSupportModule struct {
	name       string
	startCalls int
	stopCalls  int
	startErr   error
}

func (m *testSupportModule) Name() string { return m.name }

func (m *testSupportModule) Start(context.Context) error {
	m.startCalls++
	return m.startErr
}

func (m *testSupportModule) Stop(context.Context) error {
	m.stopCalls++
	return nil
}

func sampleTraces() []traces.Trace {
	return []traces.Trace{
		{Input: "11", Accepting: true},
		{Input: "00011", Accepting: true},
		{Input: "110", Accepting: false},
		{Input: "01", Accepting: false},
	}
}

func smallSettings() config.Settings {
	s := config.Defaults()
	s.MinPopulation = 16
	s.MaxPopulation = 16
	s.MaxGenerations = 6
	s.ConvergenceGenerations = 3
	s.EliteCarryOver = 0.125
	s.Workers = 2
	s.Seed = 7
	return s
}

func startedPlatform(t *testing.T, modules ...SupportModule) *Platform {
	t.Helper()
	p := NewPlatform(Config{Store: storage.NewMemoryStore(), SupportModules: modules})
	require.NoError(t, p.Init(context.Background()))
	t.Cleanup(p.Stop)
	return p
}

func TestPlatformInitRequiresStore(t *testing.T) {
	p := NewPlatform(Config{})
	require.Error(t, p.Init(context.Background()))
}

func TestPlatformInitRollsBackSupportModules(t *testing.T) {
	first := &testSupportModule{name: "first"}
	broken := &testSupportModule{name: "broken", startErr: errors.New("boom")}
	p := NewPlatform(Config{Store: storage.NewMemoryStore(), SupportModules: []SupportModule{first, broken}})

	err := p.Init(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, first.stopCalls, "started module should be stopped on failure")
	require.False(t, p.Started())
	require.Empty(t, p.ActiveSupportModules())
}

func TestPlatformRejectsDuplicateSupportModules(t *testing.T) {
	p := NewPlatform(Config{Store: storage.NewMemoryStore(), SupportModules: []SupportModule{
		&testSupportModule{name: "dup"},
		&testSupportModule{name: "dup"},
	}})
	require.Error(t, p.Init(context.Background()))
}

func TestPlatformStopWithReason(t *testing.T) {
	module := &testSupportModule{name: "module"}
	p := startedPlatform(t, module)
	require.Equal(t, []string{"module"}, p.ActiveSupportModules())

	require.NoError(t, p.StopWithReason(StopReasonShutdown))
	require.False(t, p.Started())
	require.Equal(t, StopReasonShutdown, p.LastStopReason())
	require.Equal(t, 1, module.stopCalls)
	require.Error(t, p.StopWithReason("bogus"))
}

func TestRunEvolutionRequiresInit(t *testing.T) {
	p := NewPlatform(Config{Store: storage.NewMemoryStore()})
	_, err := p.RunEvolution(context.Background(), EvolutionConfig{Traces: sampleTraces(), Settings: smallSettings()})
	require.Error(t, err)
}

func TestRunEvolutionRejectsInvalidSettings(t *testing.T) {
	p := startedPlatform(t)
	settings := smallSettings()
	settings.MutationProbability = 2
	_, err := p.RunEvolution(context.Background(), EvolutionConfig{Traces: sampleTraces(), Settings: settings})
	require.ErrorIs(t, err, config.ErrInvalidSettings)
}

func TestRunEvolutionPersistsRun(t *testing.T) {
	p := startedPlatform(t)
	ctx := context.Background()
	artifacts := t.TempDir()

	result, err := p.RunEvolution(ctx, EvolutionConfig{
		RunID:                "run-persist",
		Traces:               sampleTraces(),
		Settings:             smallSettings(),
		ArtifactsDir:         artifacts,
		SnapshotEvery:        2,
		ExportGenerationBest: true,
	})
	require.NoError(t, err)
	require.Equal(t, "run-persist", result.Run.ID)
	require.Equal(t, "01", result.Run.Alphabet)
	require.Equal(t, 40.0, result.Run.UpperBound)
	require.LessOrEqual(t, result.Run.Generations, 6)
	require.Len(t, result.BestByGeneration, result.Run.Generations)
	require.Len(t, result.TopFinal, 5)
	require.Equal(t, result.Best.Fitness, result.TopFinal[0].Fitness)
	for i := 1; i < len(result.TopFinal); i++ {
		require.GreaterOrEqual(t, result.TopFinal[i-1].Fitness, result.TopFinal[i].Fitness)
	}
	require.NoError(t, result.Best.Chromosome.Validate())

	store := p.Store()
	run, ok, err := store.GetRun(ctx, "run-persist")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, result.Run.StopReason, run.StopReason)

	best, ok, err := store.GetChromosome(ctx, "run-persist/best")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, best.Fitness)
	require.Equal(t, result.Best.Fitness, *best.Fitness)

	final, ok, err := store.GetPopulation(ctx, storage.PopulationID("run-persist", result.Run.Generations))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, final.Chromosomes, 16)

	_, ok, err = store.GetPopulation(ctx, storage.PopulationID("run-persist", 2))
	require.NoError(t, err)
	require.True(t, ok, "periodic snapshot missing")

	lineage, ok, err := store.GetLineage(ctx, "run-persist")
	require.NoError(t, err)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(lineage), 16)
	require.Equal(t, "seed", lineage[0].Operation)

	require.Equal(t, filepath.Join(artifacts, "run-persist"), result.ArtifactsDir)
	for _, name := range []string{"config.json", "best.dot", "fitness_history.csv", filepath.Join("generations", "gen-0001.dot")} {
		_, err := os.Stat(filepath.Join(result.ArtifactsDir, name))
		require.NoError(t, err, name)
	}
}

func TestRunEvolutionStopRunTripsKillSwitch(t *testing.T) {
	p := startedPlatform(t)
	settings := smallSettings()
	settings.MaxGenerations = 50

	var stopErr error
	result, err := p.RunEvolution(context.Background(), EvolutionConfig{
		RunID:    "kill-me",
		Traces:   sampleTraces(),
		Settings: settings,
		Observer: func(_ context.Context, report evo.GenerationReport) error {
			if report.Generation == 2 {
				require.Equal(t, []string{"kill-me"}, p.ActiveRuns())
				stopErr = p.StopRun("kill-me")
			}
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, stopErr)
	require.Equal(t, 2, result.Run.Generations)
	require.Equal(t, "kill_switch", result.Run.StopReason)
	require.Empty(t, p.ActiveRuns())
	require.Error(t, p.StopRun("kill-me"))
}

func TestRunEvolutionRejectsDuplicateActiveRun(t *testing.T) {
	p := startedPlatform(t)
	var nestedErr error
	_, err := p.RunEvolution(context.Background(), EvolutionConfig{
		RunID:    "dup",
		Traces:   sampleTraces(),
		Settings: smallSettings(),
		Observer: func(ctx context.Context, report evo.GenerationReport) error {
			if report.Generation == 1 {
				_, nestedErr = p.RunEvolution(ctx, EvolutionConfig{RunID: "dup", Traces: sampleTraces(), Settings: smallSettings()})
			}
			return nil
		},
	})
	require.NoError(t, err)
	require.Error(t, nestedErr)
}

func TestRunEvolutionIsDeterministicForSeed(t *testing.T) {
	p := startedPlatform(t)
	settings := smallSettings()
	first, err := p.RunEvolution(context.Background(), EvolutionConfig{RunID: "a", Traces: sampleTraces(), Settings: settings})
	require.NoError(t, err)
	second, err := p.RunEvolution(context.Background(), EvolutionConfig{RunID: "b", Traces: sampleTraces(), Settings: settings})
	require.NoError(t, err)
	require.Equal(t, first.BestByGeneration, second.BestByGeneration)
}
