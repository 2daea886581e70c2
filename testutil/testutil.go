// Package testutil provides deterministic helpers for tests: a seeded,
// thread-safe RNG and synthetic speaker clusters.
package testutil

import (
	"fmt"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// NormFloat64 returns a normally distributed float64 with mean 0 and
// stddev 1.
func (r *RNG) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64()
}

// FillNorm fills dst with normally distributed values scaled by stddev.
// Locks only once per call (preferred over calling NormFloat64 in a loop).
func (r *RNG) FillNorm(dst []float64, stddev float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.NormFloat64() * stddev
	}
}

// Utterance is one synthetic embedding with its identities.
type Utterance struct {
	ID     string
	Label  string
	Vector []float64
}

// SpeakerCluster generates n utterances for one synthetic speaker: the
// center vector plus Gaussian jitter. IDs are label_0, label_1, ...
func SpeakerCluster(rng *RNG, label string, center []float64, n int, jitter float64) []Utterance {
	out := make([]Utterance, 0, n)
	for i := 0; i < n; i++ {
		vec := make([]float64, len(center))
		rng.FillNorm(vec, jitter)
		for d := range vec {
			vec[d] += center[d]
		}
		out = append(out, Utterance{
			ID:     fmt.Sprintf("%s_%d", label, i),
			Label:  label,
			Vector: vec,
		})
	}
	return out
}
