// internal/random/random.go
//
// Unbiased shuffling and sampling primitives shared by pool generation,
// session selection and the flashcard deck.
//
// All functions take a Source so tests and the CLI (--seed) can make
// puzzles reproducible. Inputs are never mutated.

package random

import (
	"math/rand/v2"
	"sync"
)

// Source yields uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Default returns a Source backed by the runtime's auto-seeded generator.
func Default() Source { return globalSource{} }

// NewSeeded returns a deterministic Source safe for concurrent use.
// A zero seed yields Default().
func NewSeeded(seed uint64) Source {
	if seed == 0 {
		return Default()
	}
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// Shuffle returns a uniformly random permutation of in as a new slice.
// Fisher–Yates, backward pass, on a copy.
func Shuffle[T any](src Source, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Sample returns k distinct positions of in, in random order.
// When k >= len(in) the whole slice is shuffled; k <= 0 yields an empty slice.
func Sample[T any](src Source, in []T, k int) []T {
	shuffled := Shuffle(src, in)
	if k >= len(shuffled) {
		return shuffled
	}
	if k < 0 {
		k = 0
	}
	return shuffled[:k]
}

// Pick returns a uniformly random element of in for which skip returns false.
// skip may be nil. ok is false when no element qualifies.
func Pick[T any](src Source, in []T, skip func(T) bool) (v T, ok bool) {
	candidates := in
	if skip != nil {
		candidates = make([]T, 0, len(in))
		for _, x := range in {
			if !skip(x) {
				candidates = append(candidates, x)
			}
		}
	}
	if len(candidates) == 0 {
		return v, false
	}
	return candidates[src.IntN(len(candidates))], true
}
