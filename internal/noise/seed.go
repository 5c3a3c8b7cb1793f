// Package noise perturbs physical quantities (initial pose, mass, friction,
// bounciness, velocities and collision impulses) under a counter-based
// deterministic random source. Every function here is pure given the
// sequence position: two runs with the same (base seed, trial index,
// parameters) produce bit-identical perturbations.
package noise

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sequence is the deterministic random source for one trial. It holds a
// monotonic counter; every stochastic draw consumes exactly one counter
// value and seeds a fresh generator from (base seed, counter). Nothing in
// the noise engine consults global random state.
//
// A Sequence is private to one trial and is not safe for concurrent use.
type Sequence struct {
	base    uint64
	counter uint64
}

// Trials are spaced 2^32 counter values apart so one trial's draws cannot
// run into the next trial's range.
const trialStride = 1 << 32

// NewSequence derives the sequence for one trial from the run's base seed
// and the trial index.
func NewSequence(baseSeed uint64, trialIndex int) *Sequence {
	return &Sequence{base: baseSeed, counter: uint64(trialIndex) * trialStride}
}

// Next returns the current counter value and advances the counter by one.
func (s *Sequence) Next() uint64 {
	c := s.counter
	s.counter++
	return c
}

// Counter reports the current counter without advancing it.
func (s *Sequence) Counter() uint64 { return s.counter }

// source consumes one counter value and returns a generator seeded by it.
func (s *Sequence) source() *rand.Rand {
	return rand.New(rand.NewPCG(s.base, s.Next()))
}

// normal draws one Gaussian value centred at mu with spread sigma.
func (s *Sequence) normal(mu, sigma float64) float64 {
	n := distuv.Normal{Mu: mu, Sigma: sigma, Src: s.source()}
	return n.Rand()
}

// normalClamped draws a Gaussian value and clamps it at zero. Physical
// quantities like mass and friction must not go negative.
func (s *Sequence) normalClamped(mu, sigma float64) float64 {
	return max(0, s.normal(mu, sigma))
}
