// internal/auth/users.go
//
// Optional player accounts.
// Responsibilities:
//   - Username/password validation, bcrypt hashing and verification.
//   - users table CRUD and per-account session stats.
//
// Guests never need an account; see anon.go for their stable player ID.

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("username must be 3-24 letters, numbers or underscores")
	ErrInvalidPassword    = errors.New("password must be 8-100 chars")
)

// User matches the users table.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	GamesPlayed  int       `json:"gamesPlayed"`
	BestScore    int       `json:"bestScore"`
	TotalCorrect int       `json:"totalCorrect"`
}

// Users is the account repository.
type Users struct {
	db   *sql.DB
	cost int
}

// NewUsers returns a repository over a migrated database.
func NewUsers(db *sql.DB) *Users { return &Users{db: db, cost: bcrypt.DefaultCost} }

// WithCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (u *Users) WithCost(cost int) *Users {
	u.cost = cost
	return u
}

func normalizeUsername(u string) string { return strings.TrimSpace(u) }

func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return ErrInvalidUsername
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ErrInvalidUsername
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return ErrInvalidPassword
	}
	return nil
}

// Create validates input, checks uniqueness (case-insensitive), hashes the
// password and inserts the account.
func (u *Users) Create(ctx context.Context, username, pw string) (*User, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}

	var exists int
	err := u.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(pw), u.cost)
	if err != nil {
		return nil, err
	}
	acct := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	_, err = u.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		acct.ID, acct.Username, acct.PasswordHash, acct.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return acct, nil
}

// Authenticate checks a username/password pair.
func (u *Users) Authenticate(ctx context.Context, username, pw string) (*User, error) {
	acct, err := u.FindByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(pw)) != nil {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

const userColumns = `id, username, password_hash, created_at, games_played, best_score, total_correct`

// FindByUsername loads an account by case-insensitive username.
func (u *Users) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username)=lower(?)`, username)
	return scanUser(row)
}

// FindByID loads an account by ID.
func (u *Users) FindByID(ctx context.Context, id string) (*User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		acct    User
		created string
	)
	if err := row.Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &created,
		&acct.GamesPlayed, &acct.BestScore, &acct.TotalCorrect); err != nil {
		return nil, err
	}
	acct.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &acct, nil
}

// RecordGame bumps an account's stats after a finished session.
func (u *Users) RecordGame(ctx context.Context, userID string, score, correct int) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var gp, best, total int
	row := tx.QueryRowContext(ctx, `SELECT games_played, best_score, total_correct FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &best, &total); err != nil {
		return err
	}
	gp++
	total += correct
	best = max(best, score)
	if _, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, best_score=?, total_correct=? WHERE id=?`,
		gp, best, total, userID); err != nil {
		return err
	}
	return tx.Commit()
}
