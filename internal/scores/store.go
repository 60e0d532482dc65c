// internal/scores/store.go
//
// SQLite persistence for scores.
//
// Responsibilities:
//   - Per-player high score in the kv table under HighScoreKey.
//   - Per-player saved filters in the kv table under FiltersKey.
//   - Finished-session results and the all-time leaderboard.
//
// Notes:
//   - An empty player ID maps to the bare HighScoreKey (the local terminal
//     player); HTTP players get HighScoreKey + ":" + their player ID.
//   - A stored value that is not an integer reads as 0, matching a missing key.

package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rossroma/cele-guess/internal/game"
)

// HighScoreKey is the storage key of the best session score.
const HighScoreKey = "cele-guess-score-highscore"

// DefaultLeaderboardLimit caps leaderboard queries without an explicit limit.
const DefaultLeaderboardLimit = 20

// Fixed-width UTC timestamps sort lexically in SQL.
const tsLayout = "2006-01-02T15:04:05.000Z"

// Store wraps the database handle.
type Store struct{ db *sql.DB }

// NewStore returns a Store over an already migrated database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Player returns the high-score view for one player.
func (s *Store) Player(playerID string) *PlayerScores {
	key := HighScoreKey
	if playerID != "" {
		key += ":" + playerID
	}
	return &PlayerScores{s: s, key: key}
}

// PlayerScores reads and writes one player's high score.
type PlayerScores struct {
	s   *Store
	key string
}

// ReadHighScore returns the stored score, 0 when absent or unreadable.
func (p *PlayerScores) ReadHighScore(ctx context.Context) (int, error) {
	var raw string
	err := p.s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, p.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", p.key, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// WriteHighScore stores score unconditionally.
func (p *PlayerScores) WriteHighScore(ctx context.Context, score int) error {
	_, err := p.s.db.ExecContext(ctx, `
        INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		p.key, strconv.Itoa(score), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", p.key, err)
	}
	return nil
}

// Result is one finished session.
type Result struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"playerId"`
	Score      int       `json:"score"`
	Correct    int       `json:"correct"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `json:"finishedAt"`
}

// ResultFromState summarises a finished session for playerID.
func ResultFromState(playerID string, st game.State) Result {
	return Result{
		PlayerID:   playerID,
		Score:      st.TotalScore,
		Correct:    st.CorrectCount,
		Rounds:     len(st.History),
		FinishedAt: time.Now().UTC(),
	}
}

// InsertResult stores r, assigning an ID and timestamp when missing.
func (s *Store) InsertResult(ctx context.Context, r Result) (Result, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO session_results (id, player_id, score, correct, rounds, finished_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlayerID, r.Score, r.Correct, r.Rounds, r.FinishedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return r, fmt.Errorf("insert result: %w", err)
	}
	return r, nil
}

// LBRow is one leaderboard line. Name is the account username, empty for
// guests.
type LBRow struct {
	PlayerID   string    `json:"playerId"`
	Name       string    `json:"name,omitempty"`
	Score      int       `json:"score"`
	Correct    int       `json:"correct"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Leaderboard returns the best sessions: score DESC, then earliest first.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT r.player_id, COALESCE(u.username, ''), r.score, r.correct, r.rounds, r.finished_at
        FROM session_results r
        LEFT JOIN users u ON u.id = r.player_id
        ORDER BY r.score DESC, r.finished_at ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var (
			r        LBRow
			finished string
		)
		if err := rows.Scan(&r.PlayerID, &r.Name, &r.Score, &r.Correct, &r.Rounds, &finished); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = time.Parse(tsLayout, finished); err != nil {
			return nil, fmt.Errorf("leaderboard row %s: %w", r.PlayerID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimResults moves a guest's results and high score to an account after
// sign-in. The account keeps the better of the two high scores, and takes
// the guest's saved filters when it has none of its own.
func (s *Store) ClaimResults(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" || anonID == userID {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE session_results SET player_id=? WHERE player_id=?`, userID, anonID); err != nil {
		return fmt.Errorf("claim results: %w", err)
	}
	if err := s.claimFilters(ctx, anonID, userID); err != nil {
		return err
	}

	guest, err := s.Player(anonID).ReadHighScore(ctx)
	if err != nil || guest == 0 {
		return err
	}
	acct := s.Player(userID)
	cur, err := acct.ReadHighScore(ctx)
	if err != nil {
		return err
	}
	if guest > cur {
		return acct.WriteHighScore(ctx, guest)
	}
	return nil
}
