// play.go
//
// Terminal session: the same controller the server uses, rendered as text.
//
// Input, one command per line:
//   N      pick pool entry N
//   t N    toggle targeting on slot N
//   n      next round (after a round ends)
//   r      play again (after the session ends)
//   q      quit
//
// A first wrong fill stays on screen for the retry delay; input typed in the
// meantime is ignored by the controller, so the loop waits for the clear.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/charpool"
	"github.com/rossroma/cele-guess/internal/db"
	"github.com/rossroma/cele-guess/internal/game"
	"github.com/rossroma/cele-guess/internal/scores"
	"github.com/rossroma/cele-guess/internal/session"
)

func newPlayCmd(cfg *Config) *cobra.Command {
	var regions, genders, professions []int

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a session in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			all, err := loadCelebrities(cfg)
			if err != nil {
				return err
			}

			var hs session.HighScores
			if conn, err := db.OpenMigrated(ctx, cfg.db); err != nil {
				log.Warn().Err(err).Msg("high score will not be saved")
			} else {
				defer conn.Close()
				hs = scores.NewStore(conn).Player("")
			}

			src := cfg.source()
			ctrl := session.New(all, hs,
				session.WithSource(src),
				session.WithGenerator(charpool.New(src, charpool.WithSize(cfg.poolSize))),
				session.WithSize(cfg.sessionSize),
				session.WithRetryDelay(cfg.retryDelay),
			)
			defer ctrl.Close()

			f := celebs.Filters{
				Regions:     convertInts[celebs.Region](regions),
				Genders:     convertInts[celebs.Gender](genders),
				Professions: convertInts[celebs.Profession](professions),
			}
			return runPlay(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), ctrl, f)
		},
	}

	cmd.Flags().IntSliceVar(&regions, "region", nil, "1 mainland, 2 Hong Kong, 3 Taiwan, 4 Japan/Korea, 5 other")
	cmd.Flags().IntSliceVar(&genders, "gender", nil, "1 male, 2 female")
	cmd.Flags().IntSliceVar(&professions, "profession", nil, "1 film, 2 crosstalk, 3 stand-up")
	return cmd
}

func convertInts[T ~int](in []int) []T {
	out := make([]T, 0, len(in))
	for _, n := range in {
		out = append(out, T(n))
	}
	return out
}

type command struct {
	kind byte // 'p' pick, 't' target, 'n' next, 'r' restart, 'q' quit
	n    int
}

var errUnknownCommand = errors.New("unknown command")

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errUnknownCommand
	}
	switch fields[0] {
	case "q", "quit":
		return command{kind: 'q'}, nil
	case "n", "next":
		return command{kind: 'n'}, nil
	case "r", "restart":
		return command{kind: 'r'}, nil
	case "t":
		if len(fields) != 2 {
			return command{}, errUnknownCommand
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return command{}, errUnknownCommand
		}
		return command{kind: 't', n: n}, nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || len(fields) != 1 {
		return command{}, errUnknownCommand
	}
	return command{kind: 'p', n: n}, nil
}

func runPlay(ctx context.Context, in io.Reader, out io.Writer, ctrl *session.Controller, f celebs.Filters) error {
	changes := make(chan game.State, 16)
	unsubscribe := ctrl.Subscribe(func(st game.State) {
		select {
		case changes <- st:
		default:
		}
	})
	defer unsubscribe()

	if err := ctrl.Start(ctx, f); err != nil {
		if errors.Is(err, session.ErrCannotStart) {
			fmt.Fprintln(out, "No celebrity with a 2-5 character name matches; nothing to play.")
		}
		return err
	}
	render(out, ctrl.State())

	sc := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		cmd, err := parseCommand(sc.Text())
		if err != nil {
			fmt.Fprintln(out, "commands: N | t N | n | r | q")
			continue
		}

		switch cmd.kind {
		case 'q':
			return nil
		case 'p':
			if !ctrl.SelectChar(cmd.n) {
				fmt.Fprintln(out, "cannot pick that now")
				continue
			}
			if ctrl.State().Feedback == game.FeedbackWrongRetry {
				render(out, ctrl.State())
				waitForClear(ctx, ctrl, changes)
			}
		case 't':
			if !ctrl.SetTarget(cmd.n) {
				fmt.Fprintln(out, "cannot target that slot")
				continue
			}
		case 'n':
			ok, err := ctrl.NextRound(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("next round")
			}
			if !ok {
				fmt.Fprintln(out, "the round is not over yet")
				continue
			}
		case 'r':
			if ctrl.State().Phase != game.PhaseGameEnd {
				fmt.Fprintln(out, "finish the session first")
				continue
			}
			if err := ctrl.Restart(ctx); err != nil {
				return err
			}
		}
		render(out, ctrl.State())
	}
}

// waitForClear blocks until the wrong-retry feedback is gone.
func waitForClear(ctx context.Context, ctrl *session.Controller, changes <-chan game.State) {
	for ctrl.State().Feedback == game.FeedbackWrongRetry {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func render(out io.Writer, st game.State) {
	var b strings.Builder

	switch st.Phase {
	case game.PhaseGameEnd:
		fmt.Fprintf(&b, "\nSession over: %d points, %d/%d correct\n", st.TotalScore, st.CorrectCount, len(st.Entities))
		for i, h := range st.History {
			mark := "✗"
			if h.IsCorrect {
				mark = "✓"
			}
			fmt.Fprintf(&b, "  %2d. %s %s +%d\n", i+1, mark, h.Celebrity.Name, h.ScoreEarned)
		}
		if st.IsNewHighScore {
			b.WriteString("New high score!\n")
		}
		b.WriteString("r to play again, q to quit\n")
		fmt.Fprint(out, b.String())
		return
	case game.PhaseIdle:
		return
	}

	c, _ := st.Celebrity()
	fmt.Fprintf(&b, "\nRound %d/%d  score %d  attempts left %d\n", st.Current+1, len(st.Entities), st.TotalScore, st.AttemptsLeft())
	fmt.Fprintf(&b, "photo: %s\n", c.ImageRef())

	b.WriteString("slots:")
	for i, sl := range st.Slots {
		ch := "_"
		if !sl.Empty() {
			ch = sl.Char
		}
		if st.Target.Is(i) {
			ch = "[" + ch + "]"
		}
		fmt.Fprintf(&b, " %d:%s", i, ch)
	}
	b.WriteString("\n")

	used := make(map[int]bool)
	for _, i := range st.UsedPoolIndices() {
		used[i] = true
	}
	for i, p := range st.Pool {
		if used[i] {
			p = "·"
		}
		fmt.Fprintf(&b, "%2d:%s ", i, p)
		if (i+1)%9 == 0 {
			b.WriteString("\n")
		}
	}
	if len(st.Pool)%9 != 0 {
		b.WriteString("\n")
	}

	switch st.Feedback {
	case game.FeedbackCorrect:
		fmt.Fprintf(&b, "Correct! %s\n", celebs.InfoText(c))
	case game.FeedbackWrongRetry:
		b.WriteString("Wrong, try once more...\n")
	case game.FeedbackWrongRevealed:
		fmt.Fprintf(&b, "Wrong. It was %s\n", celebs.InfoText(c))
	}
	if st.Phase == game.PhaseRoundEnd {
		b.WriteString("n for the next round\n")
	}
	fmt.Fprint(out, b.String())
}
