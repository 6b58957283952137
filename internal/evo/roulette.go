package evo

import (
	"fmt"
	"math"
)

// RouletteWheel is a cumulative distribution over a fixed set of slots.
type RouletteWheel struct {
	weights    []float64
	cumulative []float64
}

func NewRouletteWheel(weights []float64) (RouletteWheel, error) {
	total := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return RouletteWheel{}, fmt.Errorf("%w: slot %d weight %v", ErrInvalidProbability, i, w)
		}
		total += w
	}
	if total <= 0 {
		return RouletteWheel{}, ErrZeroProbabilityMass
	}

	wheel := RouletteWheel{
		weights:    append([]float64(nil), weights...),
		cumulative: make([]float64, len(weights)),
	}
	acc := 0.0
	for i, w := range weights {
		acc += w / total
		wheel.cumulative[i] = acc
	}
	return wheel, nil
}

func (w RouletteWheel) Len() int { return len(w.weights) }

// Pick returns the first positive slot whose cumulative share reaches pointer,
// for pointer in [0, 1).
func (w RouletteWheel) Pick(pointer float64) int {
	last := -1
	for i, c := range w.cumulative {
		if w.weights[i] == 0 {
			continue
		}
		last = i
		if c >= pointer {
			return i
		}
	}
	return last
}

// PickExcluding spins the wheel restricted to slots not excluded. The
// remaining positive mass is rescaled so pointer still ranges over [0, 1).
// It reports false when no positive slot remains.
func (w RouletteWheel) PickExcluding(pointer float64, excluded func(slot int) bool) (int, bool) {
	remaining := 0.0
	for i, weight := range w.weights {
		if weight > 0 && !excluded(i) {
			remaining += weight
		}
	}
	if remaining <= 0 {
		return 0, false
	}

	target := pointer * remaining
	acc := 0.0
	last := -1
	for i, weight := range w.weights {
		if weight == 0 || excluded(i) {
			continue
		}
		last = i
		acc += weight
		if acc >= target {
			return i, true
		}
	}
	return last, true
}
