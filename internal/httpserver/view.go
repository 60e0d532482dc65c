package httpserver

import (
	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/game"
)

// View is what a player may see of a session. The current name is withheld
// until the round is over.
type View struct {
	Phase           game.Phase    `json:"phase"`
	Round           int           `json:"round"`
	Rounds          int           `json:"rounds"`
	Photo           string        `json:"photo,omitempty"`
	SlotCount       int           `json:"slotCount"`
	Slots           []string      `json:"slots"`
	Target          *int          `json:"target"`
	Pool            []string      `json:"pool"`
	UsedPoolIndices []int         `json:"usedPoolIndices"`
	AttemptsLeft    int           `json:"attemptsLeft"`
	Feedback        game.Feedback `json:"feedback,omitempty"`
	Score           int           `json:"score"`
	CorrectCount    int           `json:"correctCount"`
	Name            string        `json:"name,omitempty"`
	Info            string        `json:"info,omitempty"`
	History         []ResultView  `json:"history,omitempty"`
	IsNewHighScore  bool          `json:"isNewHighScore,omitempty"`
	Version         uint64        `json:"version"`
}

// ResultView is one finished round.
type ResultView struct {
	Name          string `json:"name"`
	Photo         string `json:"photo"`
	WrongAttempts int    `json:"wrongAttempts"`
	ScoreEarned   int    `json:"scoreEarned"`
	IsCorrect     bool   `json:"isCorrect"`
}

func viewOf(st game.State) View {
	v := View{
		Phase:           st.Phase,
		Rounds:          len(st.Entities),
		Slots:           make([]string, len(st.Slots)),
		SlotCount:       len(st.Slots),
		Pool:            st.Pool,
		UsedPoolIndices: st.UsedPoolIndices(),
		AttemptsLeft:    st.AttemptsLeft(),
		Feedback:        st.Feedback,
		Score:           st.TotalScore,
		CorrectCount:    st.CorrectCount,
		IsNewHighScore:  st.IsNewHighScore,
		Version:         st.Version,
	}
	if v.Pool == nil {
		v.Pool = []string{}
	}
	if st.Phase == game.PhaseIdle || st.Phase == "" {
		return v
	}

	v.Round = st.Current + 1
	for i, sl := range st.Slots {
		v.Slots[i] = sl.Char
	}
	if st.Target.Set {
		i := st.Target.Index
		v.Target = &i
	}
	if c, ok := st.Celebrity(); ok {
		v.Photo = c.ImageRef()
	}
	if name, ok := st.Answer(); ok {
		v.Name = name
		c, _ := st.Celebrity()
		v.Info = celebs.InfoText(c)
	}
	for _, h := range st.History {
		v.History = append(v.History, ResultView{
			Name:          h.Celebrity.Name,
			Photo:         h.Celebrity.ImageRef(),
			WrongAttempts: h.WrongAttempts,
			ScoreEarned:   h.ScoreEarned,
			IsCorrect:     h.IsCorrect,
		})
	}
	return v
}
