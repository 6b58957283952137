package genotype

import (
	"fmt"
	"math/rand"
	"sync"
)

// Rand is the randomness capability every genome edit is written against.
// Int returns a value in [lo, hi); Float64 returns a value in [lo, hi).
type Rand interface {
	Int(lo, hi int) int
	Float64(lo, hi float64) float64
}

type mathRand struct {
	r *rand.Rand
}

// NewRand wraps a seeded math/rand source.
func NewRand(seed int64) Rand {
	return &mathRand{r: rand.New(rand.NewSource(seed))}
}

func (m *mathRand) Int(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + m.r.Intn(hi-lo)
}

func (m *mathRand) Float64(lo, hi float64) float64 {
	return lo + m.r.Float64()*(hi-lo)
}

type lockedRand struct {
	mu   sync.Mutex
	base Rand
}

// NewLockedRand makes a Rand safe to share between goroutines.
func NewLockedRand(base Rand) Rand {
	return &lockedRand{base: base}
}

func (l *lockedRand) Int(lo, hi int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base.Int(lo, hi)
}

func (l *lockedRand) Float64(lo, hi float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base.Float64(lo, hi)
}

// RandomElement picks one value uniformly.
func RandomElement[T any](rng Rand, values []T) (T, error) {
	var zero T
	if len(values) == 0 {
		return zero, fmt.Errorf("values are required")
	}
	return values[rng.Int(0, len(values))], nil
}

// Shuffle permutes values in place, swapping each index with a uniformly
// drawn one.
func Shuffle[T any](rng Rand, values []T) {
	for i := range values {
		j := rng.Int(0, len(values))
		values[i], values[j] = values[j], values[i]
	}
}
