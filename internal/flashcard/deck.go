// internal/flashcard/deck.go
//
// Browse mode: flip through random celebrities, revealing names on demand.
//
// The deck keeps a linear history with a cursor. Next walks forward through
// history when possible and otherwise draws a fresh random card (never the
// current one). Every fresh draw counts as viewed. Any move hides the answer.

package flashcard

import (
	"sync"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/random"
)

// Deck is safe for concurrent use.
type Deck struct {
	mu       sync.Mutex
	universe []celebs.Celebrity
	src      random.Source

	history  []celebs.Celebrity
	pos      int
	revealed bool
	viewed   int
}

// New returns an empty deck over universe.
func New(universe []celebs.Celebrity, src random.Source) *Deck {
	if src == nil {
		src = random.Default()
	}
	return &Deck{universe: universe, src: src, pos: -1}
}

// Card is a snapshot of the deck for display.
type Card struct {
	Celebrity *celebs.Celebrity `json:"celebrity,omitempty"`
	Info      string            `json:"info,omitempty"`
	Revealed  bool              `json:"revealed"`
	Viewed    int               `json:"viewed"`
	CanGoBack bool              `json:"canGoBack"`
	Total     int               `json:"total"`
}

// Next advances and reports whether a card is showing.
func (d *Deck) Next() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.revealed = false
	if d.pos < len(d.history)-1 {
		d.pos++
		return true
	}

	var curID string
	if d.pos >= 0 {
		curID = d.history[d.pos].ID
	}
	c, ok := random.Pick(d.src, d.universe, func(c celebs.Celebrity) bool {
		return curID != "" && c.ID == curID
	})
	if !ok {
		return d.pos >= 0
	}
	d.history = append(d.history[:d.pos+1], c)
	d.pos = len(d.history) - 1
	d.viewed++
	return true
}

// Previous steps back; false at the first card.
func (d *Deck) Previous() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos <= 0 {
		return false
	}
	d.pos--
	d.revealed = false
	return true
}

// Reveal shows the current card's name.
func (d *Deck) Reveal() {
	d.mu.Lock()
	d.revealed = d.pos >= 0
	d.mu.Unlock()
}

// Hide conceals it again.
func (d *Deck) Hide() {
	d.mu.Lock()
	d.revealed = false
	d.mu.Unlock()
}

// Reset clears history and the viewed counter.
func (d *Deck) Reset() {
	d.mu.Lock()
	d.history, d.pos, d.revealed, d.viewed = nil, -1, false, 0
	d.mu.Unlock()
}

// Current returns the showing card.
func (d *Deck) Current() (celebs.Celebrity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos < 0 {
		return celebs.Celebrity{}, false
	}
	return d.history[d.pos], true
}

// Viewed counts freshly drawn cards.
func (d *Deck) Viewed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewed
}

// Card renders the deck. The name and info are only included once revealed.
func (d *Deck) Card() Card {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := Card{
		Revealed:  d.revealed,
		Viewed:    d.viewed,
		CanGoBack: d.pos > 0,
		Total:     len(d.universe),
	}
	if d.pos < 0 {
		return out
	}
	c := d.history[d.pos]
	if d.revealed {
		out.Info = celebs.InfoText(c)
	} else {
		c.Name = ""
	}
	out.Celebrity = &c
	return out
}
