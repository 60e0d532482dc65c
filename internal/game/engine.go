// internal/game/engine.go
//
// Round state machine as a pure reducer.
//
// Transition(state, action) returns the next state and whether the action
// applied. Actions outside their valid phase/feedback combination are no-ops
// (applied == false, state returned unchanged); they model impossible UI
// interactions rather than failures.
//
// State transitions:
//   - Init:          idle → playing (first entity, first pool).
//   - SelectChar:    fills the targeted slot or the first empty one; when all
//                    slots are filled the attempt is evaluated:
//                      match            → roundEnd / correct
//                      1st mismatch     → playing  / wrong-retry
//                      2nd mismatch     → roundEnd / wrong-revealed
//   - SetTarget:     toggles replacement targeting on a filled slot.
//   - ClearForRetry: wrong-retry → empty slots, feedback cleared.
//   - NextRound:     roundEnd → playing (next entity) or gameEnd.
//   - Reset:         any → idle.
//
// Side effects (pool generation, high-score persistence, the retry delay)
// belong to the caller; their outcomes arrive inside the actions.

package game

import (
	"slices"
	"strings"

	"github.com/rossroma/cele-guess/internal/celebs"
)

// Action is an input to Transition.
type Action interface{ isAction() }

// Init starts a session with its entities and the first round's pool.
type Init struct {
	Entities []celebs.Celebrity
	Pool     []string
}

// SelectChar picks the pool entry at PoolIndex.
type SelectChar struct{ PoolIndex int }

// SetTarget toggles replacement targeting on Slot.
type SetTarget struct{ Slot int }

// ClearForRetry empties the slots after a first wrong fill.
type ClearForRetry struct{}

// NextRound advances past a finished round. Pool is the next round's pool and
// is ignored after the last round; IsNewHighScore carries the outcome of the
// caller's record-if-greater when the session ends.
type NextRound struct {
	Pool           []string
	IsNewHighScore bool
}

// Reset returns to idle, clearing everything.
type Reset struct{}

func (Init) isAction()          {}
func (SelectChar) isAction()    {}
func (SetTarget) isAction()     {}
func (ClearForRetry) isAction() {}
func (NextRound) isAction()     {}
func (Reset) isAction()         {}

// Transition applies a to s.
func Transition(s State, a Action) (State, bool) {
	switch a := a.(type) {
	case Init:
		return initGame(s, a)
	case SelectChar:
		return selectChar(s, a.PoolIndex)
	case SetTarget:
		return setTarget(s, a.Slot)
	case ClearForRetry:
		return clearForRetry(s)
	case NextRound:
		return nextRound(s, a)
	case Reset:
		return State{Phase: PhaseIdle}, true
	}
	return s, false
}

func initGame(s State, a Init) (State, bool) {
	// The zero State counts as idle.
	if (s.Phase != PhaseIdle && s.Phase != "") || len(a.Entities) == 0 {
		return s, false
	}
	n := slotCount(a.Entities[0].Name)
	if len(a.Pool) < n {
		return s, false
	}
	return State{
		Phase:    PhasePlaying,
		Entities: slices.Clone(a.Entities),
		Current:  0,
		Pool:     slices.Clone(a.Pool),
		Slots:    emptySlots(n),
	}, true
}

// accepting reports whether player input is allowed.
func (s State) accepting() bool {
	return s.Phase == PhasePlaying && s.Feedback == FeedbackNone
}

func selectChar(s State, poolIndex int) (State, bool) {
	if !s.accepting() || poolIndex < 0 || poolIndex >= len(s.Pool) {
		return s, false
	}
	if slices.Contains(s.UsedPoolIndices(), poolIndex) {
		return s, false
	}

	var slot int
	if s.Target.Set {
		slot = s.Target.Index
	} else {
		slot = slices.IndexFunc(s.Slots, Slot.Empty)
	}
	if slot < 0 || slot >= len(s.Slots) {
		return s, false
	}

	next := s
	next.Slots = slices.Clone(s.Slots)
	next.Slots[slot] = Slot{Char: s.Pool[poolIndex], PoolIndex: poolIndex}
	next.Target = Target{}

	if slices.ContainsFunc(next.Slots, Slot.Empty) {
		return next, true
	}
	return evaluate(next), true
}

// evaluate scores a completely filled attempt.
func evaluate(s State) State {
	c, _ := s.Celebrity()

	var b strings.Builder
	for _, sl := range s.Slots {
		b.WriteString(sl.Char)
	}

	if b.String() == c.Name {
		score := ScoreForAttempts(s.WrongAttempts, true)
		s.Feedback = FeedbackCorrect
		s.Phase = PhaseRoundEnd
		s.History = appendResult(s.History, RoundResult{
			Celebrity:     c,
			WrongAttempts: s.WrongAttempts,
			ScoreEarned:   score,
			IsCorrect:     true,
		})
		s.TotalScore += score
		s.CorrectCount++
		return s
	}

	s.WrongAttempts++
	if s.WrongAttempts >= MaxWrongAttempts {
		s.Feedback = FeedbackWrongRevealed
		s.Phase = PhaseRoundEnd
		s.History = appendResult(s.History, RoundResult{
			Celebrity:     c,
			WrongAttempts: s.WrongAttempts,
			ScoreEarned:   0,
			IsCorrect:     false,
		})
		return s
	}
	s.Feedback = FeedbackWrongRetry
	return s
}

// appendResult never writes into a backing array another State may share.
func appendResult(h []RoundResult, r RoundResult) []RoundResult {
	out := make([]RoundResult, len(h), len(h)+1)
	copy(out, h)
	return append(out, r)
}

func setTarget(s State, slot int) (State, bool) {
	if !s.accepting() || slot < 0 || slot >= len(s.Slots) {
		return s, false
	}
	if s.Slots[slot].Empty() {
		return s, false
	}
	next := s
	if s.Target.Is(slot) {
		next.Target = Target{}
	} else {
		next.Target = TargetSlot(slot)
	}
	return next, true
}

func clearForRetry(s State) (State, bool) {
	if s.Phase != PhasePlaying || s.Feedback != FeedbackWrongRetry {
		return s, false
	}
	next := s
	next.Slots = emptySlots(len(s.Slots))
	next.Target = Target{}
	next.Feedback = FeedbackNone
	return next, true
}

func nextRound(s State, a NextRound) (State, bool) {
	if s.Phase != PhaseRoundEnd {
		return s, false
	}
	next := s
	if s.IsLastRound() {
		next.Phase = PhaseGameEnd
		next.IsNewHighScore = a.IsNewHighScore
		return next, true
	}

	n := slotCount(s.Entities[s.Current+1].Name)
	if len(a.Pool) < n {
		return s, false
	}
	next.Phase = PhasePlaying
	next.Current = s.Current + 1
	next.Pool = slices.Clone(a.Pool)
	next.Slots = emptySlots(n)
	next.Target = Target{}
	next.WrongAttempts = 0
	next.Feedback = FeedbackNone
	return next, true
}
