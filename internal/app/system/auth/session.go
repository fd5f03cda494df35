package auth

import (
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// Sessions wraps a gorilla cookie store holding only the signed-in user id.
// Display fields are re-fetched per request so renames and role changes
// apply immediately.
type Sessions struct {
	store *sessions.CookieStore
	name  string
}

// NewSessions builds the cookie store. An empty key is only accepted
// outside production and is replaced with a random one, which invalidates
// cookies on restart.
func NewSessions(key, name, domain string, secure bool, logger *zap.Logger) (*Sessions, error) {
	if key == "" {
		if secure {
			return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
		}
		key = string(securecookie.GenerateRandomKey(32))
		logger.Warn("session key not set; using a random development key")
	}
	if len(key) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(key)))
	}

	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		MaxAge:   86400 * 7,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	} else {
		store.Options.SameSite = http.SameSiteLaxMode
	}

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &Sessions{store: store, name: name}, nil
}

// UserID reads the signed-in user id from the request cookie.
func (s *Sessions) UserID(r *http.Request) (string, bool) {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		return "", false
	}
	id, ok := sess.Values[userIDKey].(string)
	return id, ok && id != ""
}

// SignIn stores userID in the session cookie.
func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, userID string) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Values[userIDKey] = userID
	return sess.Save(r, w)
}

// SignOut expires the session cookie.
func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, s.name)
	delete(sess.Values, userIDKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
