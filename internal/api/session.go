package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sqlassist/sqlassist/internal/auth"
)

const sessionHeader = "X-Session-ID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

type sessionResolver struct {
	cookieName   string
	secureCookie bool
	maxUpload    int64
}

// resolve returns the session key of r. The id comes from the X-Session-ID
// header, else the session cookie, else a fresh id sent back as a cookie.
// Authenticated callers get their own namespace of session ids.
func (s sessionResolver) resolve(w http.ResponseWriter, r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id != "" {
		if !sessionIDPattern.MatchString(id) {
			return "", fmt.Errorf("invalid %s header", sessionHeader)
		}
	} else if cookie, err := r.Cookie(s.cookie()); err == nil && sessionIDPattern.MatchString(cookie.Value) {
		id = cookie.Value
	} else {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     s.cookie(),
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set(sessionHeader, id)

	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.Caller != "" {
		return identity.Caller + ":" + id, nil
	}
	return id, nil
}

func (s sessionResolver) cookie() string {
	if s.cookieName == "" {
		return "sqlassist_session"
	}
	return s.cookieName
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
