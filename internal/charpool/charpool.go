// internal/charpool/charpool.go
//
// Character pool generation for one round.
//
// A pool is a fixed-size shuffled multiset of single-character strings that
// contains every character of the target name plus distractors drawn from
// other names of the same script family.
//
// Algorithm:
//   1. Classify the target; Mixed targets are a precondition violation.
//   2. correct = target runes without whitespace; needed = size - len(correct).
//   3. Walk the shuffled same-family universe (target excluded), collecting
//      same-family runes, until needed*CandidateFactor candidates are held.
//   4. Shuffle the candidates and keep the first `needed`.
//   5. If still short, pad with uniformly random runes of the target.
//   6. Shuffle the whole pool.

package charpool

import (
	"errors"
	"unicode"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/names"
	"github.com/rossroma/cele-guess/internal/random"
)

const (
	// DefaultSize is the number of pool entries offered per round.
	DefaultSize = 27
	// DefaultCandidateFactor bounds the distractor scan to needed*factor runes.
	DefaultCandidateFactor = 5
)

// ErrMixedName is returned for targets whose name is not a single script family.
var ErrMixedName = errors.New("charpool: target name is not a single script family")

// Generator builds pools. The zero value is not usable; use New.
type Generator struct {
	src    random.Source
	size   int
	factor int
}

// Option customises a Generator.
type Option func(*Generator)

// WithSize sets the pool size.
func WithSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.size = n
		}
	}
}

// WithCandidateFactor tunes the distractor scan bound.
func WithCandidateFactor(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.factor = n
		}
	}
}

// New returns a Generator drawing randomness from src.
func New(src random.Source, opts ...Option) *Generator {
	g := &Generator{src: src, size: DefaultSize, factor: DefaultCandidateFactor}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Size reports the configured pool size.
func (g *Generator) Size() int { return g.size }

// Generate returns a pool for target, drawing distractors from universe.
//
// The result always holds every character of the target name and has exactly
// Size() entries, unless the name itself is longer than Size(), in which case
// the pool is just the shuffled name.
func (g *Generator) Generate(target celebs.Celebrity, universe []celebs.Celebrity) ([]string, error) {
	kind := names.Classify(target.Name)
	if kind == names.Mixed {
		return nil, ErrMixedName
	}

	correct := Chars(target.Name)
	needed := g.size - len(correct)

	pool := make([]rune, 0, max(g.size, len(correct)))
	pool = append(pool, correct...)

	if needed > 0 {
		candidates := g.candidates(kind, target.ID, universe, needed*g.factor)
		pool = append(pool, random.Sample(g.src, candidates, needed)...)
		for len(pool) < g.size {
			pool = append(pool, correct[g.src.IntN(len(correct))])
		}
	}

	out := make([]string, len(pool))
	for i, r := range random.Shuffle(g.src, pool) {
		out[i] = string(r)
	}
	return out, nil
}

// candidates collects same-family runes from the shuffled universe,
// stopping after the entity that brings the count to limit.
func (g *Generator) candidates(kind names.Type, targetID string, universe []celebs.Celebrity, limit int) []rune {
	others := make([]celebs.Celebrity, 0, len(universe))
	for _, c := range universe {
		if c.ID != targetID && names.Classify(c.Name) == kind {
			others = append(others, c)
		}
	}

	var out []rune
	for _, c := range random.Shuffle(g.src, others) {
		for _, r := range c.Name {
			if !unicode.IsSpace(r) && kind.Matches(r) {
				out = append(out, r)
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Chars returns the runes of name with whitespace removed.
func Chars(name string) []rune {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if !unicode.IsSpace(r) {
			out = append(out, r)
		}
	}
	return out
}
