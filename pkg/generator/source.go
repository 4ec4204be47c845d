package generator

import (
	"math/rand/v2"
	"sync"
)

// Source is the random source used for pattern draws and phoneme sampling.
type Source interface {
	// IntN returns a uniform int in [0, n). n must be positive.
	IntN(n int) int
	// Float64 returns a uniform float in [0, 1).
	Float64() float64
}

type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource returns a source backed by the runtime's shared generator.
func DefaultSource() Source {
	return globalSource{}
}

// lockedSource serializes access to a seeded generator so one source can be
// shared by concurrent callers.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource returns a reproducible source for tests and replays.
func NewSeededSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}
