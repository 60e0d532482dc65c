// internal/httpserver/routes_flashcards.go
//
// Browse-mode endpoints.
//   - POST /flashcards                     → new deck over Filters, first card drawn
//   - GET  /flashcards/{id}                → current card
//   - POST /flashcards/{id}/next|previous  → move
//   - POST /flashcards/{id}/reveal|hide    → toggle the answer
//   - POST /flashcards/{id}/reset          → clear history
//
// An empty filtered subset falls back to the whole catalogue, as in the quiz.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/flashcard"
	"github.com/rossroma/cele-guess/internal/random"
)

func (s *Server) mountFlashcards(r chi.Router) {
	r.Post("/flashcards", s.handleNewDeck)
	r.Get("/flashcards/{id}", s.deckAction(nil))
	r.Post("/flashcards/{id}/next", s.deckAction(func(d *flashcard.Deck) bool { return d.Next() }))
	r.Post("/flashcards/{id}/previous", s.deckAction((*flashcard.Deck).Previous))
	r.Post("/flashcards/{id}/reveal", s.deckAction(func(d *flashcard.Deck) bool { d.Reveal(); return true }))
	r.Post("/flashcards/{id}/hide", s.deckAction(func(d *flashcard.Deck) bool { d.Hide(); return true }))
	r.Post("/flashcards/{id}/reset", s.deckAction(func(d *flashcard.Deck) bool { d.Reset(); return true }))
}

type deckRes struct {
	DeckID  string         `json:"deckId"`
	Applied bool           `json:"applied"`
	Card    flashcard.Card `json:"card"`
}

func (s *Server) handleNewDeck(w http.ResponseWriter, r *http.Request) {
	var f celebs.Filters
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}
	universe := celebs.Filter(s.all, f)
	if len(universe) == 0 {
		universe = s.all
	}
	src := s.opts.Source
	if src == nil {
		src = random.Default()
	}
	d := flashcard.New(universe, src)
	if !d.Next() {
		writeError(w, http.StatusUnprocessableEntity, "empty_catalogue")
		return
	}

	id := uuid.NewString()
	if err := s.decks.Save(r.Context(), id, d); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusCreated, deckRes{DeckID: id, Applied: true, Card: d.Card()})
}

// deckAction loads the path's deck, applies fn (if any) and returns the card.
func (s *Server) deckAction(fn func(*flashcard.Deck) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		d, err := s.decks.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		applied := true
		if fn != nil {
			applied = fn(d)
		}
		writeJSON(w, http.StatusOK, deckRes{DeckID: id, Applied: applied, Card: d.Card()})
	}
}
