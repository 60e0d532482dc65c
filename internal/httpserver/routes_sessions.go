// internal/httpserver/routes_sessions.go
//
// Quiz session endpoints.
//   - POST   /sessions              → start a session with Filters; an empty
//                                    body uses the player's saved filters
//   - GET    /filters, PUT /filters → the player's saved filters
//   - GET    /sessions/{id}         → current view
//   - POST   /sessions/{id}/select  → pick a pool entry
//   - POST   /sessions/{id}/target  → toggle slot targeting
//   - POST   /sessions/{id}/next    → advance past a finished round
//   - POST   /sessions/{id}/restart → play again with the same filters
//   - DELETE /sessions/{id}         → abandon (cancels the retry timer)
//
// Inputs that do not apply in the current phase still answer 200 with the
// unchanged view and "applied": false.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rossroma/cele-guess/internal/auth"
	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/charpool"
	"github.com/rossroma/cele-guess/internal/game"
	"github.com/rossroma/cele-guess/internal/random"
	"github.com/rossroma/cele-guess/internal/scores"
	"github.com/rossroma/cele-guess/internal/session"
	"github.com/rossroma/cele-guess/internal/store"
)

// liveSession is one running quiz plus its websocket subscribers.
type liveSession struct {
	id     string
	player string
	ctrl   *session.Controller
	hub    *hub
	once   sync.Once
}

func (ls *liveSession) close() {
	ls.once.Do(func() {
		ls.ctrl.Close()
		ls.hub.closeAll()
	})
}

func (s *Server) mountSessions(r chi.Router) {
	r.Get("/filters", s.handleGetFilters)
	r.Put("/filters", s.handlePutFilters)
	r.Post("/sessions", s.handleNewSession)
	r.Get("/sessions/{id}", s.handleGetSession)
	r.Post("/sessions/{id}/select", s.handleSelect)
	r.Post("/sessions/{id}/target", s.handleTarget)
	r.Post("/sessions/{id}/next", s.handleNext)
	r.Post("/sessions/{id}/restart", s.handleRestart)
	r.Delete("/sessions/{id}", s.handleDeleteSession)
	r.Get("/sessions/{id}/qr", s.handleSessionQR)
}

// newController wires a controller for player: per-player high score and
// result recording at game end.
func (s *Server) newController(player string, ident *auth.Identity) *session.Controller {
	opts := []session.Option{
		session.WithSize(s.opts.SessionSize),
		session.WithRetryDelay(s.opts.RetryDelay),
		session.OnGameEnd(func(st game.State) { s.recordResult(player, ident, st) }),
	}
	if s.opts.Source != nil {
		opts = append(opts, session.WithSource(s.opts.Source))
	}
	if s.opts.PoolSize > 0 {
		src := s.opts.Source
		if src == nil {
			src = random.Default()
		}
		opts = append(opts, session.WithGenerator(charpool.New(src, charpool.WithSize(s.opts.PoolSize))))
	}
	if s.opts.Scheduler != nil {
		opts = append(opts, session.WithScheduler(s.opts.Scheduler))
	}

	var hs session.HighScores
	if s.scores != nil {
		hs = s.scores.Player(player)
	}
	return session.New(s.all, hs, opts...)
}

// recordResult persists a finished session. Failures are logged only; the
// player has already seen the end screen.
func (s *Server) recordResult(player string, ident *auth.Identity, st game.State) {
	ctx := context.Background()
	if s.scores != nil {
		if _, err := s.scores.InsertResult(ctx, scores.ResultFromState(player, st)); err != nil {
			log.Warn().Err(err).Str("player", player).Msg("insert session result")
		}
	}
	if ident != nil && s.auth != nil {
		if err := s.auth.Users().RecordGame(ctx, ident.ID, st.TotalScore, st.CorrectCount); err != nil {
			log.Warn().Err(err).Str("user", ident.ID).Msg("record game stats")
		}
	}
}

type newSessionRes struct {
	SessionID string `json:"sessionId"`
	View      View   `json:"view"`
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	player := s.playerID(w, r)

	var f celebs.Filters
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
		s.saveFilters(r.Context(), player, f)
	} else {
		f = s.savedFilters(r.Context(), player)
	}
	ident, _ := auth.FromContext(r.Context())
	ctrl := s.newController(player, ident)

	if err := ctrl.Start(r.Context(), f); err != nil {
		ctrl.Close()
		if errors.Is(err, session.ErrCannotStart) {
			writeError(w, http.StatusUnprocessableEntity, "cannot_start")
			return
		}
		log.Error().Err(err).Msg("start session")
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}

	ls := &liveSession{id: uuid.NewString(), player: player, ctrl: ctrl, hub: newHub()}
	ctrl.Subscribe(func(st game.State) { ls.hub.broadcast(viewOf(st)) })
	if err := s.sessions.Save(r.Context(), ls.id, ls); err != nil {
		ls.close()
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	log.Info().Str("session", ls.id).Str("player", player).Int("rounds", len(ctrl.State().Entities)).Msg("session created")
	writeJSON(w, http.StatusCreated, newSessionRes{SessionID: ls.id, View: viewOf(ctrl.State())})
}

// session loads the path's session, writing 404 when missing.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	ls, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	return ls, true
}

type actionRes struct {
	Applied bool `json:"applied"`
	View    View `json:"view"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ls.ctrl.State()))
}

type selectReq struct {
	PoolIndex *int `json:"poolIndex"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PoolIndex == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	applied := ls.ctrl.SelectChar(*req.PoolIndex)
	writeJSON(w, http.StatusOK, actionRes{Applied: applied, View: viewOf(ls.ctrl.State())})
}

type targetReq struct {
	Slot *int `json:"slot"`
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	var req targetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slot == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	applied := ls.ctrl.SetTarget(*req.Slot)
	writeJSON(w, http.StatusOK, actionRes{Applied: applied, View: viewOf(ls.ctrl.State())})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	applied, err := ls.ctrl.NextRound(r.Context())
	if err != nil && !applied {
		log.Error().Err(err).Str("session", ls.id).Msg("next round")
		writeError(w, http.StatusInternalServerError, "next_failed")
		return
	}
	writeJSON(w, http.StatusOK, actionRes{Applied: applied, View: viewOf(ls.ctrl.State())})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := ls.ctrl.Restart(r.Context()); err != nil {
		if errors.Is(err, session.ErrCannotStart) {
			writeError(w, http.StatusUnprocessableEntity, "cannot_start")
			return
		}
		log.Error().Err(err).Str("session", ls.id).Msg("restart")
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}
	writeJSON(w, http.StatusOK, actionRes{Applied: true, View: viewOf(ls.ctrl.State())})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	ls.ctrl.Reset()
	if err := s.sessions.Delete(r.Context(), ls.id); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Str("session", ls.id).Msg("delete session")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// saveFilters remembers the player's choice; failures only cost the default.
func (s *Server) saveFilters(ctx context.Context, player string, f celebs.Filters) {
	if s.scores == nil {
		return
	}
	if err := s.scores.SaveFilters(ctx, player, f); err != nil {
		log.Warn().Err(err).Str("player", player).Msg("save filters")
	}
}

func (s *Server) savedFilters(ctx context.Context, player string) celebs.Filters {
	if s.scores == nil {
		return celebs.Filters{}
	}
	f, _, err := s.scores.LoadFilters(ctx, player)
	if err != nil {
		log.Warn().Err(err).Str("player", player).Msg("load filters")
	}
	return f
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.savedFilters(r.Context(), s.playerID(w, r)))
}

func (s *Server) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	var f celebs.Filters
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	player := s.playerID(w, r)
	if s.scores != nil {
		if err := s.scores.SaveFilters(r.Context(), player, f); err != nil {
			log.Error().Err(err).Msg("save filters")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}
	writeJSON(w, http.StatusOK, f)
}
