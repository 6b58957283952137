package evo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"geneticdfa/internal/genotype"
)

func TestLineageCounter(t *testing.T) {
	ids := NewLineageCounter(5)
	require.Equal(t, uint64(6), ids.Next())
	require.Equal(t, uint64(6), ids.Last())

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[uint64]bool{}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := ids.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 200)
	require.Equal(t, uint64(206), ids.Last())
}

func TestInitialPopulation(t *testing.T) {
	population, err := InitialPopulation(6, binary, genotype.NewRand(1), nil)
	require.NoError(t, err)
	require.Len(t, population, 6)
	for i, c := range population {
		require.Equal(t, uint64(i+1), c.LineageID)
		require.NoError(t, c.Validate())
		require.Nil(t, c.Fitness)
	}

	_, err = InitialPopulation(0, binary, genotype.NewRand(1), nil)
	require.Error(t, err)
	_, err = InitialPopulation(2, nil, genotype.NewRand(1), nil)
	require.ErrorIs(t, err, genotype.ErrEmptyAlphabet)
}

func TestSpecieIdentifiers(t *testing.T) {
	require.Equal(t, "q:3-e:4-a:1-nd:2", TopologySpecieIdentifier{}.Identify(smallNFA()))

	fp := FingerprintSpecieIdentifier{}
	a := smallDFA()
	b := a.Clone()
	b.LineageID = 99
	require.Equal(t, fp.Identify(a), fp.Identify(b))
	require.NotEqual(t, fp.Identify(a), fp.Identify(smallNFA()))
	require.Equal(t, ComputeSignature(a).Fingerprint, fp.Identify(a))
}
