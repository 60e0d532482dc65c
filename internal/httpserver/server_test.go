package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rossroma/cele-guess/internal/auth"
	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/db"
	"github.com/rossroma/cele-guess/internal/game"
	"github.com/rossroma/cele-guess/internal/random"
	"github.com/rossroma/cele-guess/internal/scores"
	"github.com/rossroma/cele-guess/internal/session"
)

var catalogue = []celebs.Celebrity{
	{ID: "1", Name: "李雷", Photo: "1.jpg", Region: celebs.RegionMainland, Gender: celebs.GenderMale},
	{ID: "2", Name: "张伟", Photo: "2.jpg", Region: celebs.RegionMainland, Gender: celebs.GenderMale},
	{ID: "3", Name: "王芳", Photo: "3.jpg", Region: celebs.RegionHongKong, Gender: celebs.GenderFemale},
	{ID: "4", Name: "高", Photo: "4.jpg", Region: celebs.RegionTaiwan, Gender: celebs.GenderFemale},
}

type manualTimer struct{ stopped bool }

func (t *manualTimer) Stop() bool { t.stopped = true; return true }

// manualScheduler records callbacks; tests fire them explicitly.
type manualScheduler struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualScheduler) AfterFunc(_ time.Duration, f func()) session.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	return &manualTimer{}
}

func (m *manualScheduler) fireLast() {
	m.mu.Lock()
	f := m.fns[len(m.fns)-1]
	m.mu.Unlock()
	f()
}

type env struct {
	srv   *Server
	sched *manualScheduler
	sc    *scores.Store
	au    *auth.Service
}

func newEnv(t *testing.T, list []celebs.Celebrity) *env {
	t.Helper()
	conn, err := db.OpenMigrated(context.Background(), filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sc := scores.NewStore(conn)
	au := auth.NewService(auth.NewUsers(conn).WithCost(bcrypt.MinCost), auth.Config{Secret: "test"})
	sched := &manualScheduler{}
	srv := New(list, sc, au, Options{
		SessionSize: 2,
		Source:      random.NewSeeded(11),
		Scheduler:   sched,
	})
	return &env{srv: srv, sched: sched, sc: sc, au: au}
}

func (e *env) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *env) live(t *testing.T, id string) *liveSession {
	t.Helper()
	ls, err := e.srv.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	return ls
}

// spell returns pool indexes spelling chars in order.
func spell(t *testing.T, st game.State, chars []rune) []int {
	t.Helper()
	used := map[int]bool{}
	var out []int
	for _, r := range chars {
		found := -1
		for i, p := range st.Pool {
			if !used[i] && p == string(r) {
				found = i
				break
			}
		}
		require.GreaterOrEqual(t, found, 0)
		used[found] = true
		out = append(out, found)
	}
	return out
}

func TestHealthAndIndex(t *testing.T) {
	e := newEnv(t, catalogue)
	rec := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCelebritiesFilter(t *testing.T) {
	e := newEnv(t, catalogue)
	rec := e.do(t, http.MethodGet, "/celebrities?region=1,3&gender=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Total    int `json:"total"`
		Filtered int `json:"filtered"`
		Scorable int `json:"scorable"`
	}](t, rec)
	assert.Equal(t, 4, body.Total)
	assert.Equal(t, 2, body.Filtered)
	assert.Equal(t, 2, body.Scorable)
}

func TestCannotStart(t *testing.T) {
	e := newEnv(t, []celebs.Celebrity{catalogue[3]})
	rec := e.do(t, http.MethodPost, "/sessions", celebs.Filters{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"cannot_start"}`, rec.Body.String())
	assert.Zero(t, e.srv.sessions.Len())
}

func TestSessionFlow(t *testing.T) {
	e := newEnv(t, catalogue)

	rec := e.do(t, http.MethodPost, "/sessions", celebs.Filters{})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[newSessionRes](t, rec)
	require.NotEmpty(t, created.SessionID)
	v := created.View
	assert.Equal(t, game.PhasePlaying, v.Phase)
	assert.Equal(t, 1, v.Round)
	assert.Equal(t, 2, v.Rounds)
	assert.Equal(t, 2, v.SlotCount)
	assert.Len(t, v.Pool, 27)
	assert.Equal(t, 2, v.AttemptsLeft)
	assert.Empty(t, v.Name, "name hidden while playing")
	assert.NotEmpty(t, v.Photo)

	base := "/sessions/" + created.SessionID
	ls := e.live(t, created.SessionID)

	// Round 1: wrong, retry clear, then correct.
	st := ls.ctrl.State()
	name := []rune(st.Entities[0].Name)
	for _, i := range spell(t, st, []rune{name[1], name[0]}) {
		rec = e.do(t, http.MethodPost, base+"/select", map[string]int{"poolIndex": i})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	res := decode[actionRes](t, rec)
	assert.True(t, res.Applied)
	assert.Equal(t, game.FeedbackWrongRetry, res.View.Feedback)
	assert.Equal(t, 1, res.View.AttemptsLeft)

	rec = e.do(t, http.MethodPost, base+"/select", map[string]int{"poolIndex": 0})
	assert.False(t, decode[actionRes](t, rec).Applied, "frozen during wrong-retry")

	e.sched.fireLast()
	for _, i := range spell(t, ls.ctrl.State(), name) {
		rec = e.do(t, http.MethodPost, base+"/select", map[string]int{"poolIndex": i})
	}
	res = decode[actionRes](t, rec)
	assert.Equal(t, game.PhaseRoundEnd, res.View.Phase)
	assert.Equal(t, game.FeedbackCorrect, res.View.Feedback)
	assert.Equal(t, string(name), res.View.Name)
	assert.Equal(t, 1, res.View.Score)

	// Round 2: correct first try, then game end.
	rec = e.do(t, http.MethodPost, base+"/next", nil)
	res = decode[actionRes](t, rec)
	require.True(t, res.Applied)
	assert.Equal(t, 2, res.View.Round)

	st = ls.ctrl.State()
	for _, i := range spell(t, st, []rune(st.Entities[1].Name)) {
		e.do(t, http.MethodPost, base+"/select", map[string]int{"poolIndex": i})
	}
	rec = e.do(t, http.MethodPost, base+"/next", nil)
	res = decode[actionRes](t, rec)
	assert.Equal(t, game.PhaseGameEnd, res.View.Phase)
	assert.Equal(t, 4, res.View.Score)
	assert.True(t, res.View.IsNewHighScore)
	assert.Len(t, res.View.History, 2)

	rec = e.do(t, http.MethodGet, "/leaderboard", nil)
	rows := decode[[]scores.LBRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Score)
	assert.Equal(t, 2, rows[0].Rounds)

	// Restart keeps the session id.
	rec = e.do(t, http.MethodPost, base+"/restart", nil)
	res = decode[actionRes](t, rec)
	assert.Equal(t, game.PhasePlaying, res.View.Phase)
	assert.Zero(t, res.View.Score)
}

func TestTargetToggle(t *testing.T) {
	e := newEnv(t, catalogue)
	created := decode[newSessionRes](t, e.do(t, http.MethodPost, "/sessions", nil))
	base := "/sessions/" + created.SessionID

	rec := e.do(t, http.MethodPost, base+"/target", map[string]int{"slot": 0})
	assert.False(t, decode[actionRes](t, rec).Applied, "empty slot")

	e.do(t, http.MethodPost, base+"/select", map[string]int{"poolIndex": 0})
	rec = e.do(t, http.MethodPost, base+"/target", map[string]int{"slot": 0})
	res := decode[actionRes](t, rec)
	require.True(t, res.Applied)
	require.NotNil(t, res.View.Target)
	assert.Equal(t, 0, *res.View.Target)
	assert.Empty(t, res.View.UsedPoolIndices, "targeted slot's entry stays selectable")

	rec = e.do(t, http.MethodPost, base+"/target", map[string]int{"slot": 0})
	assert.Nil(t, decode[actionRes](t, rec).View.Target)

	rec = e.do(t, http.MethodPost, base+"/select", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionNotFoundAndDelete(t *testing.T) {
	e := newEnv(t, catalogue)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/sessions/missing", nil).Code)

	created := decode[newSessionRes](t, e.do(t, http.MethodPost, "/sessions", nil))
	base := "/sessions/" + created.SessionID
	ls := e.live(t, created.SessionID)

	rec := e.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.PhaseIdle, ls.ctrl.State().Phase)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, base, nil).Code)
}

func TestSessionQR(t *testing.T) {
	e := newEnv(t, catalogue)
	created := decode[newSessionRes](t, e.do(t, http.MethodPost, "/sessions", nil))
	rec := e.do(t, http.MethodGet, "/sessions/"+created.SessionID+"/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestFlashcards(t *testing.T) {
	e := newEnv(t, catalogue)
	rec := e.do(t, http.MethodPost, "/flashcards", celebs.Filters{Regions: []celebs.Region{celebs.RegionMainland}})
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decode[deckRes](t, rec)
	require.NotNil(t, d.Card.Celebrity)
	assert.Empty(t, d.Card.Celebrity.Name)
	assert.Equal(t, 1, d.Card.Viewed)
	assert.Equal(t, 2, d.Card.Total)

	base := "/flashcards/" + d.DeckID
	d = decode[deckRes](t, e.do(t, http.MethodPost, base+"/reveal", nil))
	assert.True(t, d.Card.Revealed)
	assert.Contains(t, []string{"李雷", "张伟"}, d.Card.Celebrity.Name)

	d = decode[deckRes](t, e.do(t, http.MethodPost, base+"/previous", nil))
	assert.False(t, d.Applied)

	d = decode[deckRes](t, e.do(t, http.MethodPost, base+"/next", nil))
	assert.False(t, d.Card.Revealed)
	assert.Equal(t, 2, d.Card.Viewed)
	assert.True(t, d.Card.CanGoBack)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/flashcards/missing", nil).Code)
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t, catalogue)

	rec := e.do(t, http.MethodPost, "/auth/signup", map[string]string{"username": "grace", "password": "password1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var token *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			token = c
		}
	}
	require.NotNil(t, token)

	rec = e.do(t, http.MethodPost, "/auth/signup", map[string]string{"username": "GRACE", "password": "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "grace", decode[auth.Identity](t, rec).Username)

	rec = e.do(t, http.MethodGet, "/stats/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, stats["gamesPlayed"])

	rec = e.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "grace", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = e.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "grace", "password": "password1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHighScoreIsPerPlayer(t *testing.T) {
	e := newEnv(t, catalogue)
	ctx := context.Background()

	rec := e.do(t, http.MethodGet, "/highscore", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var anon *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "celeguess_anon" {
			anon = c
		}
	}
	require.NotNil(t, anon)
	require.NoError(t, e.sc.Player(anon.Value).WriteHighScore(ctx, 8))

	rec = e.do(t, http.MethodGet, "/highscore", nil, anon)
	assert.JSONEq(t, `{"highScore":8}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/highscore", nil)
	assert.JSONEq(t, `{"highScore":0}`, rec.Body.String())
}

func TestWebsocketPushesTimerDrivenClear(t *testing.T) {
	e := newEnv(t, catalogue)
	ts := httptest.NewServer(e.srv.Router())
	t.Cleanup(ts.Close)

	created := decode[newSessionRes](t, e.do(t, http.MethodPost, "/sessions", nil))
	ls := e.live(t, created.SessionID)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + created.SessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	read := func() View {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var v View
		require.NoError(t, conn.ReadJSON(&v))
		return v
	}

	v := read()
	assert.Equal(t, game.PhasePlaying, v.Phase)
	assert.Equal(t, created.View.Version, v.Version)
	require.Eventually(t, func() bool { return ls.hub.size() == 1 }, time.Second, 5*time.Millisecond)

	st := ls.ctrl.State()
	name := []rune(st.Entities[0].Name)
	for _, i := range spell(t, st, []rune{name[1], name[0]}) {
		require.NoError(t, conn.WriteJSON(clientMessage{Type: "select", Index: i}))
		next := read()
		assert.Greater(t, next.Version, v.Version)
		v = next
	}
	require.Equal(t, game.FeedbackWrongRetry, ls.ctrl.State().Feedback)

	e.sched.fireLast()
	v = read()
	assert.Equal(t, game.FeedbackNone, v.Feedback)
	assert.Equal(t, []string{"", ""}, v.Slots)

	// Deleting the session closes the socket.
	e.do(t, http.MethodDelete, "/sessions/"+created.SessionID, nil)
	read() // reset view
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestWebsocketChecksOrigin(t *testing.T) {
	e := newEnv(t, catalogue)
	ts := httptest.NewServer(e.srv.Router())
	t.Cleanup(ts.Close)

	created := decode[newSessionRes](t, e.do(t, http.MethodPost, "/sessions", nil))
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + created.SessionID + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://elsewhere.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://localhost:5173"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestSavedFiltersDefaultNewSessions(t *testing.T) {
	e := newEnv(t, catalogue)

	hk := celebs.Filters{Regions: []celebs.Region{celebs.RegionHongKong}}
	rec := e.do(t, http.MethodPut, "/filters", hk)
	require.Equal(t, http.StatusOK, rec.Code)
	var anon *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "celeguess_anon" {
			anon = c
		}
	}
	require.NotNil(t, anon)

	got := decode[celebs.Filters](t, e.do(t, http.MethodGet, "/filters", nil, anon))
	assert.Equal(t, hk.Regions, got.Regions)

	// No body: the saved choice applies.
	rec = e.do(t, http.MethodPost, "/sessions", nil, anon)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[newSessionRes](t, rec)
	assert.Equal(t, 1, created.View.Rounds)
	assert.Equal(t, "王芳", e.live(t, created.SessionID).ctrl.State().Entities[0].Name)

	// An explicit body wins and is remembered.
	mainland := celebs.Filters{Regions: []celebs.Region{celebs.RegionMainland}}
	rec = e.do(t, http.MethodPost, "/sessions", mainland, anon)
	require.Equal(t, http.StatusCreated, rec.Code)
	got = decode[celebs.Filters](t, e.do(t, http.MethodGet, "/filters", nil, anon))
	assert.Equal(t, mainland.Regions, got.Regions)

	// Other players are unaffected.
	got = decode[celebs.Filters](t, e.do(t, http.MethodGet, "/filters", nil))
	assert.Empty(t, got.Regions)

	rec = e.do(t, http.MethodPut, "/filters", "not filters", anon)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
