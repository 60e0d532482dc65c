// internal/session/controller.go
//
// SessionController drives the round reducer across a session.
//
// Responsibilities:
//   - Choose the universe (player's filtered subset, or the full dataset when
//     the subset is empty), pick the session entities and generate each
//     round's pool from that universe.
//   - Serialise every mutation of the session state (one mutex; the reducer
//     itself is pure).
//   - Schedule the wrong-retry clear after RetryDelay and cancel it whenever
//     the session is reset, restarted or closed.
//   - Record the high score (record-if-greater) when the last round ends.
//   - Notify subscribers with a State snapshot after every applied change,
//     in the order the changes were applied (State.Version only grows).

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/charpool"
	"github.com/rossroma/cele-guess/internal/game"
	"github.com/rossroma/cele-guess/internal/random"
)

// DefaultRetryDelay is how long wrong-retry feedback stays visible.
const DefaultRetryDelay = 650 * time.Millisecond

// ErrCannotStart is returned when no entity of the universe is scorable.
var ErrCannotStart = errors.New("session: no eligible celebrities")

// HighScores is the persistence capability for the best session score.
// ReadHighScore returns 0 when nothing has been stored yet.
type HighScores interface {
	ReadHighScore(ctx context.Context) (int, error)
	WriteHighScore(ctx context.Context, score int) error
}

// RecordHighScore writes score when it beats the stored value and reports
// whether it did.
func RecordHighScore(ctx context.Context, hs HighScores, score int) (bool, error) {
	cur, err := hs.ReadHighScore(ctx)
	if err != nil {
		return false, err
	}
	if score <= cur {
		return false, nil
	}
	if err := hs.WriteHighScore(ctx, score); err != nil {
		return false, err
	}
	return true, nil
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. time.AfterFunc is the production implementation.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Controller owns one player's session. It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex
	// notifyMu is taken before mu is released and held while subscribers
	// run, so deliveries cannot overtake each other.
	notifyMu sync.Mutex

	all        []celebs.Celebrity
	universe   []celebs.Celebrity
	filters    celebs.Filters
	src        random.Source
	gen        *charpool.Generator
	scores     HighScores
	sched      Scheduler
	size       int
	retryDelay time.Duration
	onEnd      func(game.State)

	state      game.State
	retry      Timer
	retryEpoch uint64
	lastActive time.Time

	listeners    map[int]func(game.State)
	nextListener int
}

// Option customises a Controller.
type Option func(*Controller)

// WithSource sets the randomness used for entity picking. It does not affect
// a generator supplied with WithGenerator.
func WithSource(src random.Source) Option { return func(c *Controller) { c.src = src } }

// WithGenerator sets the pool generator.
func WithGenerator(g *charpool.Generator) Option { return func(c *Controller) { c.gen = g } }

// WithScheduler replaces the wall-clock scheduler (tests).
func WithScheduler(s Scheduler) Option { return func(c *Controller) { c.sched = s } }

// WithSize sets the number of rounds per session.
func WithSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithRetryDelay sets how long wrong-retry feedback is shown.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// OnGameEnd registers a callback run (outside the lock) when a session ends.
func OnGameEnd(fn func(game.State)) Option { return func(c *Controller) { c.onEnd = fn } }

// New returns an idle Controller over the full dataset all.
// scores may be nil, in which case no high score is ever recorded.
func New(all []celebs.Celebrity, scores HighScores, opts ...Option) *Controller {
	c := &Controller{
		all:        all,
		scores:     scores,
		sched:      clock{},
		size:       DefaultSize,
		retryDelay: DefaultRetryDelay,
		state:      game.State{Phase: game.PhaseIdle},
		lastActive: time.Now(),
		listeners:  make(map[int]func(game.State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.src == nil {
		c.src = random.Default()
	}
	if c.gen == nil {
		c.gen = charpool.New(c.src)
	}
	return c
}

// Start resets the session and begins a new one over the entities matching
// filters. It returns ErrCannotStart when nothing is eligible; the session
// then stays idle.
func (c *Controller) Start(ctx context.Context, filters celebs.Filters) error {
	c.mu.Lock()
	c.stopRetry()
	c.state = game.State{Phase: game.PhaseIdle, Version: c.state.Version + 1}
	c.filters = filters

	universe := celebs.Filter(c.all, filters)
	if len(universe) == 0 {
		universe = c.all
	}
	c.universe = universe

	entities := Pick(c.src, universe, c.size)
	if len(entities) == 0 {
		c.release(true)
		return ErrCannotStart
	}
	pool, err := c.gen.Generate(entities[0], universe)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("first round pool: %w", err)
	}
	c.apply(game.Init{Entities: entities, Pool: pool})
	c.release(true)

	log.Debug().Int("rounds", len(entities)).Int("universe", len(universe)).Msg("session started")
	return nil
}

// Restart resets and starts again with the last filters ("play again").
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	f := c.filters
	c.mu.Unlock()
	return c.Start(ctx, f)
}

// SelectChar picks a pool entry. It reports whether the pick applied.
func (c *Controller) SelectChar(poolIndex int) bool {
	c.mu.Lock()
	ok := c.apply(game.SelectChar{PoolIndex: poolIndex})
	if ok && c.state.Feedback == game.FeedbackWrongRetry {
		c.scheduleRetry()
	}
	c.release(ok)
	return ok
}

// SetTarget toggles replacement targeting on a filled slot.
func (c *Controller) SetTarget(slot int) bool {
	c.mu.Lock()
	ok := c.apply(game.SetTarget{Slot: slot})
	c.release(ok)
	return ok
}

// NextRound advances past a finished round. After the last round it records
// the high score and ends the session; a persistence failure is returned but
// the session still ends (with IsNewHighScore false).
func (c *Controller) NextRound(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state.Phase != game.PhaseRoundEnd {
		c.mu.Unlock()
		return false, nil
	}

	var (
		action game.NextRound
		err    error
	)
	if c.state.IsLastRound() {
		if c.scores != nil {
			action.IsNewHighScore, err = RecordHighScore(ctx, c.scores, c.state.TotalScore)
			if err != nil {
				log.Warn().Err(err).Int("score", c.state.TotalScore).Msg("record high score")
			}
		}
	} else {
		next := c.state.Entities[c.state.Current+1]
		action.Pool, err = c.gen.Generate(next, c.universe)
		if err != nil {
			c.mu.Unlock()
			return false, fmt.Errorf("round %d pool: %w", c.state.Current+2, err)
		}
	}
	ok := c.apply(action)
	onEnd := c.onEnd
	st := c.release(ok)

	if ok && st.Phase == game.PhaseGameEnd && onEnd != nil {
		onEnd(st)
	}
	return ok, err
}

// Reset abandons the session and returns to idle, cancelling any pending
// retry clear.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.stopRetry()
	c.apply(game.Reset{})
	c.release(true)
}

// Close tears the controller down: pending timers are cancelled and
// subscribers dropped. The state is left as is.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRetry()
	clear(c.listeners)
}

// State returns the current session value.
func (c *Controller) State() game.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Filters returns the filters the session was started with.
func (c *Controller) Filters() celebs.Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// LastActive is the time of the latest applied change.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Subscribe registers fn to receive a snapshot after every change and
// returns a function that unregisters it. Deliveries are serialised in the
// order changes were applied; fn must not block or call the controller.
func (c *Controller) Subscribe(fn func(game.State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// apply runs the reducer; callers hold mu.
func (c *Controller) apply(a game.Action) bool {
	next, ok := game.Transition(c.state, a)
	if ok {
		next.Version = c.state.Version + 1
		c.state = next
		c.lastActive = time.Now()
	}
	return ok
}

// snapshot returns the state and listeners to notify; callers hold mu.
func (c *Controller) snapshot() (game.State, []func(game.State)) {
	ls := make([]func(game.State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		ls = append(ls, fn)
	}
	return c.state, ls
}

// release unlocks mu, first delivering the current state to subscribers
// when notify is set. Callers hold mu. Subscribers must not call back into
// the controller.
func (c *Controller) release(notify bool) game.State {
	st, ls := c.snapshot()
	if !notify {
		c.mu.Unlock()
		return st
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, fn := range ls {
		fn(st)
	}
	return st
}

// scheduleRetry arms the wrong-retry clear; callers hold mu.
func (c *Controller) scheduleRetry() {
	c.stopRetry()
	epoch := c.retryEpoch
	c.retry = c.sched.AfterFunc(c.retryDelay, func() { c.clearForRetry(epoch) })
}

// stopRetry cancels a pending clear; callers hold mu. Bumping the epoch also
// defeats a callback that already started running.
func (c *Controller) stopRetry() {
	if c.retry != nil {
		if c.retry.Stop() {
			log.Debug().Msg("pending retry clear cancelled")
		}
		c.retry = nil
	}
	c.retryEpoch++
}

func (c *Controller) clearForRetry(epoch uint64) {
	c.mu.Lock()
	if epoch != c.retryEpoch {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	ok := c.apply(game.ClearForRetry{})
	c.release(ok)
}
