package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// SessionName is the name of the browser session cookie.
const SessionName = "bidflow-session"

// sessionKeyToken holds the login token inside the session.
const sessionKeyToken = "token"

// ErrNoSession is returned when the request carries no session token.
var ErrNoSession = errors.New("no session token")

// SessionManager keeps the login token in a signed cookie so browser
// clients do not have to handle it.
type SessionManager struct {
	store *sessions.CookieStore
}

// NewSessionManager creates a cookie-backed session store.
//
// The secret is SHA-256 hashed to derive a 32-byte signing key; it must be
// identical on every server instance. Cookies live as long as tokens do.
func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	return &SessionManager{store: store}
}

// Save stores token in the session cookie.
func (m *SessionManager) Save(w http.ResponseWriter, r *http.Request, token string) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values[sessionKeyToken] = token
	return session.Save(r, w)
}

// Token returns the login token from the session cookie.
func (m *SessionManager) Token(r *http.Request) (string, error) {
	if _, err := r.Cookie(SessionName); err != nil {
		return "", ErrNoSession
	}
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return "", err
	}
	token, ok := session.Values[sessionKeyToken].(string)
	if !ok || token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	delete(session.Values, sessionKeyToken)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
