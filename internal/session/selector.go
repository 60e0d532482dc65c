package session

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/names"
	"github.com/rossroma/cele-guess/internal/random"
)

const (
	// DefaultSize is the number of rounds in a session.
	DefaultSize = 10

	MinNameLen = 2
	MaxNameLen = 5
)

// Scorable reports whether c can be a quiz round: a single-family name of
// MinNameLen..MaxNameLen characters without whitespace.
func Scorable(c celebs.Celebrity) bool {
	if names.Classify(c.Name) == names.Mixed {
		return false
	}
	// A space would need a slot the pool can never fill.
	if strings.IndexFunc(c.Name, unicode.IsSpace) >= 0 {
		return false
	}
	n := utf8.RuneCountInString(c.Name)
	return n >= MinNameLen && n <= MaxNameLen
}

// FilterScorable keeps the scorable entities of list, preserving order.
func FilterScorable(list []celebs.Celebrity) []celebs.Celebrity {
	out := make([]celebs.Celebrity, 0, len(list))
	for _, c := range list {
		if Scorable(c) {
			out = append(out, c)
		}
	}
	return out
}

// Pick draws up to count distinct scorable entities in random order.
// Fewer eligible entities simply yield a shorter session.
func Pick(src random.Source, list []celebs.Celebrity, count int) []celebs.Celebrity {
	return random.Sample(src, FilterScorable(list), count)
}
