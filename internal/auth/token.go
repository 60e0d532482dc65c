// internal/auth/token.go
//
// JWT + cookie handling and request middleware.
//
// Notes:
//   - Tokens are HS256 with id/username/exp/iat claims, read from an
//     "Authorization: Bearer" header or the auth cookie.
//   - Optional decorates requests with the signed-in user when the token is
//     valid and the account still exists; it never rejects. Require 401s.
//   - Secure cookies switch SameSite to None so cross-site clients keep them.

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "celeguess_token"
	DefaultTTL        = 14 * 24 * time.Hour
	devSecret         = "dev_secret_change_me"
)

// Config holds token settings.
type Config struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Identity is placed into request context by the middleware.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Service issues and checks tokens.
type Service struct {
	users *Users
	cfg   Config
}

// NewService applies defaults to cfg.
func NewService(users *Users, cfg Config) *Service {
	if cfg.Secret == "" {
		cfg.Secret = devSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Service{users: users, cfg: cfg}
}

// Users exposes the account repository.
func (s *Service) Users() *Users { return s.users }

// Sign creates a token for u and returns it with its expiry.
func (s *Service) Sign(u *User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.cfg.TTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       u.ID,
		"username": u.Username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.Secret))
	return ss, exp, err
}

var errInvalidToken = errors.New("invalid token")

// Parse validates a token and returns its identity.
func (s *Service) Parse(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil, errInvalidToken
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil, errInvalidToken
	}
	return &Identity{ID: id, Username: username}, nil
}

// SetCookie writes the auth token cookie.
func (s *Service) SetCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, s.cookie(token, exp, 0))
}

// ClearCookie deletes the auth token cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", time.Time{}, -1))
}

func (s *Service) cookie(value string, exp time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.cfg.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: sameSite,
		Expires:  exp,
		MaxAge:   maxAge,
	}
}

func (s *Service) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

type ctxUserKey struct{}

// FromContext returns the signed-in identity, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxUserKey{}).(*Identity)
	return id, ok && id != nil
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, id)
}

// identify resolves the request's token to a still-existing account.
func (s *Service) identify(r *http.Request) (*Identity, error) {
	tok := s.bearerOrCookie(r)
	if tok == "" {
		return nil, errInvalidToken
	}
	id, err := s.Parse(tok)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(r.Context(), id.ID); err != nil {
		return nil, errInvalidToken
	}
	return id, nil
}

// Optional decorates requests with the identity when a valid token is present.
func (s *Service) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := s.identify(r); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require enforces a valid token.
func (s *Service) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := s.identify(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
