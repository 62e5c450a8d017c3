package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	SessionName       = "videoflix_session"
	TokenIDKey        = "token_id"
	UserIDKey         = "user_id"
	EmailKey          = "email"
	AccessLevelKey    = "access_level"
	SessionCreatedKey = "created_at"
	AccessExpiresKey  = "access_expires_at"
)

const (
	// AccessTTL is how long a session authorises requests before it must be
	// refreshed.
	AccessTTL = 15 * time.Minute
	// RefreshTTL is the lifetime of the session cookie itself.
	RefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAccessExpired    = errors.New("access window expired")
)

// Session is the decoded content of a session cookie.
type Session struct {
	TokenID         uuid.UUID
	UserID          string
	Email           string
	AccessLevel     AccessLevel
	CreatedAt       time.Time
	AccessExpiresAt time.Time
}

// ExpiresAt is when the cookie, and therefore any refresh, stops working.
func (s *Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(RefreshTTL)
}

type SessionManager struct {
	store *sessions.CookieStore
	now   func() time.Time
}

func NewSessionManager(secret string) *SessionManager {
	if secret == "" {
		secret = generateSecret()
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(int(RefreshTTL.Seconds()))
	return &SessionManager{
		store: store,
		now:   time.Now,
	}
}

func generateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.StdEncoding.EncodeToString(b)
}

// SaveSession starts a new session with a fresh token id.
func (sm *SessionManager) SaveSession(w http.ResponseWriter, r *http.Request, userID, email string, accessLevel AccessLevel) (*Session, error) {
	now := sm.now()
	s := &Session{
		TokenID:         uuid.New(),
		UserID:          userID,
		Email:           email,
		AccessLevel:     accessLevel,
		CreatedAt:       now,
		AccessExpiresAt: now.Add(AccessTTL),
	}
	if err := sm.write(w, r, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh extends the access window of the current session. The token id
// and the cookie lifetime are unchanged.
func (sm *SessionManager) Refresh(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := sm.GetSession(r)
	if err != nil && !errors.Is(err, ErrAccessExpired) {
		return nil, err
	}
	s.AccessExpiresAt = sm.now().Add(AccessTTL)
	if err := sm.write(w, r, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (sm *SessionManager) write(w http.ResponseWriter, r *http.Request, s *Session) error {
	session, _ := sm.store.Get(r, SessionName)
	session.Values[TokenIDKey] = s.TokenID.String()
	session.Values[UserIDKey] = s.UserID
	session.Values[EmailKey] = s.Email
	session.Values[AccessLevelKey] = string(s.AccessLevel)
	session.Values[SessionCreatedKey] = s.CreatedAt.Unix()
	session.Values[AccessExpiresKey] = s.AccessExpiresAt.Unix()

	// Determine if we're on HTTPS
	isHTTPS := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"

	remaining := int(s.ExpiresAt().Sub(sm.now()).Seconds())
	if remaining <= 0 {
		remaining = -1
	}
	session.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   remaining,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isHTTPS,
	}

	return session.Save(r, w)
}

// GetSession decodes the session cookie. When the access window has passed
// it returns the session together with ErrAccessExpired so callers can
// still refresh or revoke it.
func (sm *SessionManager) GetSession(r *http.Request) (*Session, error) {
	session, err := sm.store.Get(r, SessionName)
	if err != nil {
		_, cookieErr := r.Cookie(SessionName)
		slog.Warn("failed to decode session", "error", err, "host", r.Host, "has_cookie", cookieErr == nil)
		return nil, err
	}
	if session.IsNew {
		return nil, ErrNotAuthenticated
	}

	tokenStr, _ := session.Values[TokenIDKey].(string)
	tokenID, err := uuid.Parse(tokenStr)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	uid, ok := session.Values[UserIDKey].(string)
	if !ok || uid == "" {
		return nil, ErrNotAuthenticated
	}
	email, _ := session.Values[EmailKey].(string)
	created, _ := session.Values[SessionCreatedKey].(int64)
	accessExp, _ := session.Values[AccessExpiresKey].(int64)

	s := &Session{
		TokenID:         tokenID,
		UserID:          uid,
		Email:           email,
		AccessLevel:     parseAccessLevel(session.Values[AccessLevelKey]),
		CreatedAt:       time.Unix(created, 0),
		AccessExpiresAt: time.Unix(accessExp, 0),
	}

	now := sm.now()
	if !now.Before(s.ExpiresAt()) {
		return nil, ErrNotAuthenticated
	}
	if !now.Before(s.AccessExpiresAt) {
		return s, ErrAccessExpired
	}
	return s, nil
}

// GetAccessLevel reads the stored access level from a session whose access
// window is still open. Returns AccessUnauthenticated otherwise.
func (sm *SessionManager) GetAccessLevel(r *http.Request) AccessLevel {
	s, err := sm.GetSession(r)
	if err != nil {
		return AccessUnauthenticated
	}
	return s.AccessLevel
}

func (sm *SessionManager) IsAuthenticated(r *http.Request) bool {
	_, err := sm.GetSession(r)
	return err == nil
}

// HasSessionCookie reports whether the request carries a session cookie at
// all, valid or not.
func (sm *SessionManager) HasSessionCookie(r *http.Request) bool {
	_, err := r.Cookie(SessionName)
	return err == nil
}

func (sm *SessionManager) ClearSession(w http.ResponseWriter, r *http.Request) error {
	session, _ := sm.store.Get(r, SessionName)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

func parseAccessLevel(v any) AccessLevel {
	str, _ := v.(string)
	switch level := AccessLevel(str); level {
	case AccessUser, AccessAdmin:
		return level
	default:
		return AccessUnauthenticated
	}
}

type AccessLevel string

const (
	AccessUnauthenticated AccessLevel = "unauthenticated"
	AccessUser            AccessLevel = "user"
	AccessAdmin           AccessLevel = "admin"
)
