package game_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/game"
)

var (
	liLei     = celebs.Celebrity{ID: "1", Name: "李雷", Photo: "1.jpg"}
	hanMeimei = celebs.Celebrity{ID: "2", Name: "韩梅梅", Photo: "2.jpg"}
)

// pool indices used throughout: 0=雷 1=张 2=李 3=伟 4=李
var leiPool = []string{"雷", "张", "李", "伟", "李"}

// 0=梅 1=韩 2=梅 3=王
var meiPool = []string{"梅", "韩", "梅", "王"}

type EngineSuite struct {
	suite.Suite
	s game.State
}

func (s *EngineSuite) SetupTest() {
	st, ok := game.Transition(game.State{Phase: game.PhaseIdle}, game.Init{
		Entities: []celebs.Celebrity{liLei, hanMeimei},
		Pool:     leiPool,
	})
	s.Require().True(ok)
	s.s = st
}

// apply runs a and requires the given applied outcome.
func (s *EngineSuite) apply(a game.Action, want bool) {
	next, ok := game.Transition(s.s, a)
	s.Require().Equal(want, ok, "%T applied", a)
	s.s = next
}

func (s *EngineSuite) pick(idx ...int) {
	for _, i := range idx {
		s.apply(game.SelectChar{PoolIndex: i}, true)
	}
}

func (s *EngineSuite) chars() []string {
	out := make([]string, len(s.s.Slots))
	for i, sl := range s.s.Slots {
		out[i] = sl.Char
	}
	return out
}

func (s *EngineSuite) TestInitState() {
	r := s.Require()
	r.Equal(game.PhasePlaying, s.s.Phase)
	r.Len(s.s.Slots, 2)
	for _, sl := range s.s.Slots {
		r.True(sl.Empty())
	}
	r.False(s.s.Target.Set)
	r.Equal(0, s.s.WrongAttempts)
	r.Equal(game.FeedbackNone, s.s.Feedback)
	r.Equal(2, s.s.AttemptsLeft())
}

func (s *EngineSuite) TestFirstTryScoresThree() {
	s.pick(2, 0)
	r := s.Require()
	r.Equal(game.PhaseRoundEnd, s.s.Phase)
	r.Equal(game.FeedbackCorrect, s.s.Feedback)
	r.Equal(3, s.s.TotalScore)
	r.Equal(1, s.s.CorrectCount)
	r.Len(s.s.History, 1)
	r.Equal(game.RoundResult{Celebrity: liLei, WrongAttempts: 0, ScoreEarned: 3, IsCorrect: true}, s.s.History[0])
	name, ok := s.s.Answer()
	r.True(ok)
	r.Equal("李雷", name)
}

func (s *EngineSuite) TestRetryThenCorrectScoresOne() {
	r := s.Require()
	s.pick(0, 2) // 雷李
	r.Equal(game.FeedbackWrongRetry, s.s.Feedback)
	r.Equal(game.PhasePlaying, s.s.Phase)
	r.Equal(1, s.s.WrongAttempts)
	r.Equal(1, s.s.AttemptsLeft())
	_, shown := s.s.Answer()
	r.False(shown)

	// Input is frozen until the retry clear.
	s.apply(game.SelectChar{PoolIndex: 1}, false)
	s.apply(game.SetTarget{Slot: 0}, false)

	s.apply(game.ClearForRetry{}, true)
	r.Equal(game.FeedbackNone, s.s.Feedback)
	r.Equal([]string{"", ""}, s.chars())

	s.pick(4, 0) // second 李 entry, then 雷
	r.Equal(game.PhaseRoundEnd, s.s.Phase)
	r.Equal(game.FeedbackCorrect, s.s.Feedback)
	r.Equal(1, s.s.TotalScore)
	r.Equal(game.RoundResult{Celebrity: liLei, WrongAttempts: 1, ScoreEarned: 1, IsCorrect: true}, s.s.History[0])
}

func (s *EngineSuite) TestTwoMissesReveal() {
	r := s.Require()
	s.pick(1, 3)
	s.apply(game.ClearForRetry{}, true)
	s.pick(3, 1)
	r.Equal(game.PhaseRoundEnd, s.s.Phase)
	r.Equal(game.FeedbackWrongRevealed, s.s.Feedback)
	r.Equal(2, s.s.WrongAttempts)
	r.Equal(0, s.s.TotalScore)
	r.Equal(0, s.s.CorrectCount)
	r.Equal(game.RoundResult{Celebrity: liLei, WrongAttempts: 2, ScoreEarned: 0, IsCorrect: false}, s.s.History[0])
	name, ok := s.s.Answer()
	r.True(ok)
	r.Equal("李雷", name)

	// Nothing but NextRound/Reset is accepted now.
	s.apply(game.SelectChar{PoolIndex: 2}, false)
	s.apply(game.ClearForRetry{}, false)
	s.apply(game.SetTarget{Slot: 0}, false)
}

func (s *EngineSuite) TestConsumedIndexRejected() {
	s.pick(1)
	s.apply(game.SelectChar{PoolIndex: 1}, false)
	s.apply(game.SelectChar{PoolIndex: -1}, false)
	s.apply(game.SelectChar{PoolIndex: len(leiPool)}, false)
	s.Require().Equal([]string{"张", ""}, s.chars())
}

func (s *EngineSuite) TestTargetedReplacement() {
	r := s.Require()
	s.pick(1) // 张 in slot 0
	s.apply(game.SetTarget{Slot: 0}, true)
	r.True(s.s.Target.Is(0))
	r.Empty(s.s.UsedPoolIndices(), "targeted slot's entry stays selectable")

	s.apply(game.SelectChar{PoolIndex: 2}, true) // 李 replaces 张
	r.False(s.s.Target.Set)
	r.Equal([]string{"李", ""}, s.chars())
	r.Equal([]int{2}, s.s.UsedPoolIndices())

	// 张 was released and can be used again.
	s.apply(game.SelectChar{PoolIndex: 1}, true)
	r.Equal(game.FeedbackWrongRetry, s.s.Feedback)
}

func (s *EngineSuite) TestTargetedSlotMayRechooseOwnIndex() {
	s.pick(2)
	s.apply(game.SetTarget{Slot: 0}, true)
	s.apply(game.SelectChar{PoolIndex: 2}, true)
	s.Require().Equal([]string{"李", ""}, s.chars())
	s.Require().False(s.s.Target.Set)
}

func (s *EngineSuite) TestSetTargetRules() {
	r := s.Require()
	s.apply(game.SetTarget{Slot: 0}, false) // empty slot
	s.apply(game.SetTarget{Slot: 5}, false)
	s.pick(1)
	s.apply(game.SetTarget{Slot: 0}, true)
	s.apply(game.SetTarget{Slot: 0}, true) // toggle off
	r.False(s.s.Target.Set)
	s.apply(game.SetTarget{Slot: 1}, false)
}

func (s *EngineSuite) TestSlotExclusivity() {
	s.pick(1)
	s.apply(game.SetTarget{Slot: 0}, true)
	s.pick(3)
	used := s.s.UsedPoolIndices()
	sorted := slices.Clone(used)
	slices.Sort(sorted)
	s.Require().Equal(len(sorted), len(slices.Compact(sorted)))
}

func (s *EngineSuite) TestNextRoundAndGameEnd() {
	r := s.Require()
	s.apply(game.NextRound{Pool: meiPool}, false) // still playing

	s.pick(2, 0)
	s.apply(game.NextRound{Pool: []string{"韩"}}, false) // pool shorter than name
	s.apply(game.NextRound{Pool: meiPool}, true)
	r.Equal(game.PhasePlaying, s.s.Phase)
	r.Equal(1, s.s.Current)
	r.Len(s.s.Slots, 3)
	r.Equal(meiPool, s.s.Pool)
	r.Equal(0, s.s.WrongAttempts)
	c, ok := s.s.Celebrity()
	r.True(ok)
	r.Equal(hanMeimei, c)
	r.True(s.s.IsLastRound())

	s.pick(1, 0, 2)
	r.Equal(game.FeedbackCorrect, s.s.Feedback)
	r.Equal(6, s.s.TotalScore)

	s.apply(game.NextRound{IsNewHighScore: true}, true)
	r.Equal(game.PhaseGameEnd, s.s.Phase)
	r.True(s.s.IsNewHighScore)
	r.Equal(2, s.s.CorrectCount)
	total := 0
	for _, h := range s.s.History {
		total += h.ScoreEarned
	}
	r.Equal(s.s.TotalScore, total)

	s.apply(game.NextRound{}, false)
	s.apply(game.SelectChar{PoolIndex: 0}, false)
}

func (s *EngineSuite) TestResetFromAnywhere() {
	s.pick(1)
	s.apply(game.Reset{}, true)
	s.Require().Equal(game.State{Phase: game.PhaseIdle}, s.s)
	s.apply(game.SelectChar{PoolIndex: 0}, false)
	s.apply(game.NextRound{Pool: leiPool}, false)
}

func (s *EngineSuite) TestTransitionDoesNotMutateInput() {
	before := s.s
	beforeSlots := slices.Clone(before.Slots)
	next, ok := game.Transition(before, game.SelectChar{PoolIndex: 2})
	s.Require().True(ok)
	s.Require().Equal(beforeSlots, before.Slots)
	s.Require().NotEqual(before.Slots, next.Slots)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func TestInitGuards(t *testing.T) {
	idle := game.State{Phase: game.PhaseIdle}

	_, ok := game.Transition(idle, game.Init{})
	require.False(t, ok, "no entities means nothing to start")

	_, ok = game.Transition(idle, game.Init{Entities: []celebs.Celebrity{hanMeimei}, Pool: []string{"韩"}})
	require.False(t, ok, "pool shorter than the name")

	playing, ok := game.Transition(idle, game.Init{Entities: []celebs.Celebrity{liLei}, Pool: leiPool})
	require.True(t, ok)
	_, ok = game.Transition(playing, game.Init{Entities: []celebs.Celebrity{liLei}, Pool: leiPool})
	require.False(t, ok, "init only from idle")
}

func TestClearForRetryOnlyAfterWrongRetry(t *testing.T) {
	st, _ := game.Transition(game.State{Phase: game.PhaseIdle}, game.Init{Entities: []celebs.Celebrity{liLei}, Pool: leiPool})
	st, _ = game.Transition(st, game.SelectChar{PoolIndex: 1})
	_, ok := game.Transition(st, game.ClearForRetry{})
	require.False(t, ok)
}

func TestRetryIdempotence(t *testing.T) {
	fills := [][]int{{0, 2}, {1, 3}, {3, 4}, {4, 4}}
	for _, f := range fills {
		st, _ := game.Transition(game.State{Phase: game.PhaseIdle}, game.Init{Entities: []celebs.Celebrity{liLei}, Pool: leiPool})
		for _, i := range f {
			st, _ = game.Transition(st, game.SelectChar{PoolIndex: i})
		}
		if st.Feedback != game.FeedbackWrongRetry {
			continue
		}
		st, ok := game.Transition(st, game.ClearForRetry{})
		require.True(t, ok)
		require.Equal(t, game.FeedbackNone, st.Feedback)
		for _, sl := range st.Slots {
			require.True(t, sl.Empty())
			require.Equal(t, "", sl.Char)
		}
	}
}

func TestScoreForAttempts(t *testing.T) {
	require.Equal(t, 3, game.ScoreForAttempts(0, true))
	require.Equal(t, 1, game.ScoreForAttempts(1, true))
	require.Equal(t, 0, game.ScoreForAttempts(2, true))
	require.Equal(t, 0, game.ScoreForAttempts(0, false))
}
