// internal/game/types.go
//
// Core type definitions for the round state machine.
// Defines:
//   - Phase:       session lifecycle (idle → playing → roundEnd → … → gameEnd).
//   - Feedback:    per-attempt outcome shown while playing or at round end.
//   - Slot:        one character position of the name being reconstructed.
//   - Target:      the optional slot marked for replacement.
//   - RoundResult: immutable record of a finished round.
//   - State:       the whole session value the reducer operates on.

package game

import (
	"unicode/utf8"

	"github.com/rossroma/cele-guess/internal/celebs"
)

// Phase is the session lifecycle stage.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePlaying  Phase = "playing"
	PhaseRoundEnd Phase = "roundEnd"
	PhaseGameEnd  Phase = "gameEnd"
)

// Feedback is the outcome of the latest complete fill.
type Feedback string

const (
	FeedbackNone          Feedback = ""
	FeedbackCorrect       Feedback = "correct"
	FeedbackWrongRetry    Feedback = "wrong-retry"
	FeedbackWrongRevealed Feedback = "wrong-revealed"
)

// NoIndex marks an empty slot's pool binding.
const NoIndex = -1

// MaxWrongAttempts is the number of wrong fills that reveals the answer.
const MaxWrongAttempts = 2

// Slot holds the character placed at one name position and the pool entry it
// consumes. PoolIndex is a back-reference into State.Pool, NoIndex when empty.
type Slot struct {
	Char      string `json:"char"`
	PoolIndex int    `json:"poolIndex"`
}

// Empty reports whether nothing has been placed in the slot.
func (s Slot) Empty() bool { return s.PoolIndex == NoIndex }

// Target is an optional slot index.
type Target struct {
	Index int
	Set   bool
}

// TargetSlot returns a set Target for i.
func TargetSlot(i int) Target { return Target{Index: i, Set: true} }

// Is reports whether t is set and points at i.
func (t Target) Is(i int) bool { return t.Set && t.Index == i }

// RoundResult is appended to the session history when a round ends.
type RoundResult struct {
	Celebrity     celebs.Celebrity `json:"celebrity"`
	WrongAttempts int              `json:"wrongAttempts"`
	ScoreEarned   int              `json:"scoreEarned"`
	IsCorrect     bool             `json:"isCorrect"`
}

// State is an immutable session value. Transition never modifies its
// argument's slices; it returns a new State sharing only untouched data.
type State struct {
	Phase          Phase
	Entities       []celebs.Celebrity
	Current        int
	Pool           []string
	Slots          []Slot
	Target         Target
	WrongAttempts  int
	Feedback       Feedback
	History        []RoundResult
	TotalScore     int
	CorrectCount   int
	IsNewHighScore bool

	// Version counts applied changes. Transition leaves it alone; the
	// session controller advances it so observers can order snapshots.
	Version uint64
}

// Celebrity returns the current round's entity.
func (s State) Celebrity() (celebs.Celebrity, bool) {
	if s.Current < 0 || s.Current >= len(s.Entities) {
		return celebs.Celebrity{}, false
	}
	return s.Entities[s.Current], true
}

// IsLastRound reports whether the current entity is the final one.
func (s State) IsLastRound() bool {
	return len(s.Entities) > 0 && s.Current == len(s.Entities)-1
}

// AttemptsLeft is 2 before any wrong fill and 1 after.
func (s State) AttemptsLeft() int {
	return MaxWrongAttempts - s.WrongAttempts
}

// UsedPoolIndices lists pool entries consumed by slots other than the
// targeted one. The targeted slot's entry stays selectable.
func (s State) UsedPoolIndices() []int {
	out := make([]int, 0, len(s.Slots))
	for i, sl := range s.Slots {
		if !sl.Empty() && !s.Target.Is(i) {
			out = append(out, sl.PoolIndex)
		}
	}
	return out
}

// Answer returns the current name once it may be shown: at round or game end.
func (s State) Answer() (string, bool) {
	if s.Phase != PhaseRoundEnd && s.Phase != PhaseGameEnd {
		return "", false
	}
	c, ok := s.Celebrity()
	return c.Name, ok
}

// slotCount is the number of slots for name: one per rune.
func slotCount(name string) int { return utf8.RuneCountInString(name) }

func emptySlots(n int) []Slot {
	out := make([]Slot, n)
	for i := range out {
		out[i] = Slot{PoolIndex: NoIndex}
	}
	return out
}
