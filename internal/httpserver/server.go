// internal/httpserver/server.go
//
// HTTP server wiring for the celebrity quiz.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/celebrities".
//   - Quiz sessions (optional auth): mounted under /sessions, with a
//     websocket state feed and a QR share image.
//   - Browse mode: /flashcards.
//   - Scores: /highscore, /leaderboard; accounts: /auth/*, /stats/me.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Live sessions and decks sit in in-memory stores reaped after the
//     configured idle timeout; nothing about a running round is persisted.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rossroma/cele-guess/internal/auth"
	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/flashcard"
	"github.com/rossroma/cele-guess/internal/random"
	"github.com/rossroma/cele-guess/internal/scores"
	"github.com/rossroma/cele-guess/internal/session"
	"github.com/rossroma/cele-guess/internal/store"
)

// Options tunes the server. Zero values fall back to package defaults.
type Options struct {
	SessionSize    int
	PoolSize       int
	RetryDelay     time.Duration
	SessionTimeout time.Duration
	ClientOrigin   string

	// Source and Scheduler are injected by tests.
	Source    random.Source
	Scheduler session.Scheduler
}

// Server bundles the router, live-object stores and persistence.
type Server struct {
	r        *chi.Mux
	all      []celebs.Celebrity
	sessions *store.Memory[*liveSession]
	decks    *store.Memory[*flashcard.Deck]
	scores   *scores.Store
	auth     *auth.Service
	upgrader *websocket.Upgrader
	opts     Options
}

// New constructs a Server, installs middleware and registers routes.
// sc and au may be nil: scores are then not persisted and /auth is absent.
func New(all []celebs.Celebrity, sc *scores.Store, au *auth.Service, opts Options) *Server {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 30 * time.Minute
	}
	s := &Server{
		r:      chi.NewRouter(),
		all:    all,
		scores: sc,
		auth:   au,
		opts:   opts,
		sessions: store.NewMemoryStore(store.OnEvict(func(id string, ls *liveSession) {
			ls.close()
			log.Debug().Str("session", id).Msg("session closed")
		})),
		decks:    store.NewMemoryStore[*flashcard.Deck](),
		upgrader: newUpgrader(opts.ClientOrigin),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"cele-guess","endpoints":["/health","/celebrities","/filters","/sessions","/flashcards","/leaderboard","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// The websocket route must not sit behind the handler timeout.
	s.r.Group(func(r chi.Router) {
		r.Use(s.optionalAuth)
		r.Get("/sessions/{id}/ws", s.handleSessionWS)
	})

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(s.optionalAuth)

		r.Get("/celebrities", s.handleCelebrities)
		s.mountSessions(r)
		s.mountFlashcards(r)
		r.Get("/highscore", s.handleHighScore)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	if au != nil {
		s.mountAuthRoutes()
	}

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, reaping idle sessions
// meanwhile.
func (s *Server) Start(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.sessions.RunReaper(ctx, s.opts.SessionTimeout/2, s.opts.SessionTimeout)
	go s.decks.RunReaper(ctx, s.opts.SessionTimeout/2, s.opts.SessionTimeout)

	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router exposes the router (tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionalAuth(next http.Handler) http.Handler {
	if s.auth == nil {
		return next
	}
	return s.auth.Optional()(next)
}

// requestLogger logs one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("requestId", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

// ------------------------------ helpers ------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// playerID is the signed-in user's ID, or the guest cookie ID.
func (s *Server) playerID(w http.ResponseWriter, r *http.Request) string {
	if s.auth == nil {
		return ""
	}
	return s.auth.PlayerID(w, r)
}

// ------------------------------ catalogue ----------------------------------

// filtersFromQuery parses comma-separated or repeated region/gender/profession
// query values. Unparseable entries are ignored.
func filtersFromQuery(r *http.Request) celebs.Filters {
	q := r.URL.Query()
	return celebs.Filters{
		Regions:     parseInts[celebs.Region](q["region"]),
		Genders:     parseInts[celebs.Gender](q["gender"]),
		Professions: parseInts[celebs.Profession](q["profession"]),
	}
}

func parseInts[T ~int](vals []string) []T {
	var out []T
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				out = append(out, T(n))
			}
		}
	}
	return out
}

func (s *Server) handleCelebrities(w http.ResponseWriter, r *http.Request) {
	f := filtersFromQuery(r)
	list := celebs.Filter(s.all, f)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":       len(s.all),
		"filtered":    len(list),
		"scorable":    len(session.FilterScorable(list)),
		"celebrities": list,
	})
}

// ------------------------------- scores ------------------------------------

func (s *Server) handleHighScore(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		writeJSON(w, http.StatusOK, map[string]int{"highScore": 0})
		return
	}
	n, err := s.scores.Player(s.playerID(w, r)).ReadHighScore(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("read high score")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"highScore": n})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		writeJSON(w, http.StatusOK, []scores.LBRow{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.scores.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
