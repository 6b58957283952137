package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRouletteWheelRejectsBadWeights(t *testing.T) {
	for name, weights := range map[string][]float64{
		"negative": {1, -1},
		"nan":      {math.NaN()},
		"inf":      {math.Inf(1)},
	} {
		_, err := NewRouletteWheel(weights)
		require.ErrorIs(t, err, ErrInvalidProbability, name)
	}
	_, err := NewRouletteWheel([]float64{0, 0})
	require.ErrorIs(t, err, ErrZeroProbabilityMass)
	_, err = NewRouletteWheel(nil)
	require.ErrorIs(t, err, ErrZeroProbabilityMass, "empty wheel")
}

func TestRouletteWheelPick(t *testing.T) {
	wheel, err := NewRouletteWheel([]float64{1, 0, 1, 2})
	require.NoError(t, err)
	require.Equal(t, 4, wheel.Len())

	cases := map[float64]int{0: 0, 0.2: 0, 0.25: 0, 0.3: 2, 0.5: 2, 0.51: 3, 0.999: 3}
	for pointer, want := range cases {
		require.Equal(t, want, wheel.Pick(pointer), "Pick(%v)", pointer)
	}
}

func TestRouletteWheelPickExcluding(t *testing.T) {
	wheel, err := NewRouletteWheel([]float64{1, 0, 1, 2})
	require.NoError(t, err)

	excludeFirst := func(slot int) bool { return slot == 0 }
	got, ok := wheel.PickExcluding(0, excludeFirst)
	require.True(t, ok)
	require.Equal(t, 2, got)
	got, ok = wheel.PickExcluding(0.5, excludeFirst)
	require.True(t, ok)
	require.Equal(t, 3, got)

	all := func(int) bool { return true }
	_, ok = wheel.PickExcluding(0.5, all)
	require.False(t, ok, "expected exhausted wheel")

	onlyZero := func(slot int) bool { return slot != 1 }
	_, ok = wheel.PickExcluding(0.5, onlyZero)
	require.False(t, ok, "a zero weight slot must never be drawn")
}
