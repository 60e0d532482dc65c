// internal/names/classify.go
//
// Script classification for celebrity names.
//
// A name is either purely logographic (Han characters), purely alphabetic
// (Latin letters) or Mixed. Mixed names are ineligible for the scoring game:
// their characters cannot be matched against a single distractor family.

package names

import (
	"strings"
	"unicode"
)

// Type is the script family of a whole name.
type Type int

const (
	Mixed Type = iota
	Logographic
	Alphabetic
)

func (t Type) String() string {
	switch t {
	case Logographic:
		return "logographic"
	case Alphabetic:
		return "alphabetic"
	default:
		return "mixed"
	}
}

// separators are the joiner glyphs used in transliterated foreign names
// (e.g. "迈克尔·杰克逊"). Any of them makes a name Mixed.
const separators = "·•・"

// IsLogographic reports whether r is a Han character.
func IsLogographic(r rune) bool { return unicode.Is(unicode.Han, r) }

// IsAlphabetic reports whether r is a Latin letter.
func IsAlphabetic(r rune) bool { return unicode.IsLetter(r) && unicode.Is(unicode.Latin, r) }

// Classify returns the script family of name.
func Classify(name string) Type {
	if strings.ContainsAny(name, separators) {
		return Mixed
	}
	var hasLogo, hasAlpha bool
	for _, r := range name {
		switch {
		case IsLogographic(r):
			hasLogo = true
		case IsAlphabetic(r):
			hasAlpha = true
		}
	}
	switch {
	case hasLogo && hasAlpha:
		return Mixed
	case hasLogo:
		return Logographic
	case hasAlpha:
		return Alphabetic
	}
	// Only digits, punctuation or whitespace.
	return Mixed
}

// Matches reports whether r belongs to the script family t.
// Nothing matches Mixed.
func (t Type) Matches(r rune) bool {
	switch t {
	case Logographic:
		return IsLogographic(r)
	case Alphabetic:
		return IsAlphabetic(r)
	}
	return false
}
