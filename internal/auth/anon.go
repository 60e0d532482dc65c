package auth

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const anonCookieName = "celeguess_anon"

// EnsureAnonID returns the guest cookie's ID, setting a new one if missing.
func (s *Service) EnsureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	sameSite := http.SameSiteLaxMode
	if s.cfg.Secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: sameSite,
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// PlayerID is the signed-in user's ID, else the guest ID.
func (s *Service) PlayerID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := FromContext(r.Context()); ok {
		return id.ID
	}
	return s.EnsureAnonID(w, r)
}
