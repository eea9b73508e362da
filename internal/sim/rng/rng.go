// Package rng provides the shared, non-cryptographic random source used by
// the simulation.
package rng

import "math/rand/v2"

// Source is the set of draws the simulation needs.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n). n must be > 0.
	IntN(n int) int
	Bool() bool
}

// Rand is a seeded PCG source. It is not safe for concurrent use; it belongs
// to the simulation goroutine.
type Rand struct {
	r *rand.Rand
}

func New(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Rand) Float64() float64 { return s.r.Float64() }
func (s *Rand) IntN(n int) int   { return s.r.IntN(n) }
func (s *Rand) Bool() bool       { return s.r.IntN(2) == 1 }

// Script replays fixed draws and falls back to Rand when a queue runs dry.
// Tests use it to force gate decisions.
type Script struct {
	Floats []float64
	Ints   []int
	Bools  []bool

	Fallback Source
}

func (s *Script) Float64() float64 {
	if len(s.Floats) > 0 {
		v := s.Floats[0]
		s.Floats = s.Floats[1:]
		return v
	}
	return s.fallback().Float64()
}

func (s *Script) IntN(n int) int {
	if len(s.Ints) > 0 {
		v := s.Ints[0]
		s.Ints = s.Ints[1:]
		if v >= n {
			v = n - 1
		}
		return v
	}
	return s.fallback().IntN(n)
}

func (s *Script) Bool() bool {
	if len(s.Bools) > 0 {
		v := s.Bools[0]
		s.Bools = s.Bools[1:]
		return v
	}
	return s.fallback().Bool()
}

func (s *Script) fallback() Source {
	if s.Fallback == nil {
		s.Fallback = New(1)
	}
	return s.Fallback
}
