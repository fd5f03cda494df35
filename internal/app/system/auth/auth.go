package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Principal                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Principal is the authenticated identity attached to a request. Handlers
// trust it without re-verifying it.
type Principal struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// DisplayName is the name denormalized onto opportunities at creation.
func (p *Principal) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Fetcher loads a principal by user id. It returns nil when the user does
// not exist or cannot be loaded.
type Fetcher interface {
	FetchPrincipal(ctx context.Context, userID string) *Principal
}

type ctxKey string

const principalKey ctxKey = "principal"

// CurrentPrincipal returns the principal and a "found?" flag.
func CurrentPrincipal(r *http.Request) (*Principal, bool) {
	p, ok := r.Context().Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// WithPrincipal returns a copy of r carrying p.
func WithPrincipal(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey, p))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Manager                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// Manager resolves principals from bearer tokens or session cookies.
type Manager struct {
	tokens   *TokenIssuer
	sessions *Sessions
	fetcher  Fetcher
	log      *zap.Logger
}

// NewManager wires the two resolution paths. tokens or sessions may be nil
// to disable that path; fetcher is required when sessions is set.
func NewManager(tokens *TokenIssuer, sessions *Sessions, fetcher Fetcher, logger *zap.Logger) *Manager {
	return &Manager{tokens: tokens, sessions: sessions, fetcher: fetcher, log: logger}
}

// Load injects the principal into the request context when one can be
// resolved. It never rejects a request; use RequireSignedIn for that.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := m.resolve(r); p != nil {
			r = WithPrincipal(r, p)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) resolve(r *http.Request) *Principal {
	if raw, ok := bearerToken(r); ok && m.tokens != nil {
		p, err := m.tokens.Parse(raw)
		if err != nil {
			m.log.Debug("bearer token rejected", zap.Error(err))
			return nil
		}
		return p
	}
	if m.sessions == nil || m.fetcher == nil {
		return nil
	}
	userID, ok := m.sessions.UserID(r)
	if !ok {
		return nil
	}
	return m.fetcher.FetchPrincipal(r.Context(), userID)
}

// RequireSignedIn rejects requests without a principal with 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentPrincipal(r); !ok {
			writeError(w, http.StatusUnauthorized, "Not authorized, no valid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose principal lacks one of the allowed
// roles. Missing principals get 401, wrong roles get 403.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentPrincipal(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Not authorized, no valid credentials")
				return
			}
			if _, has := set[strings.ToLower(p.Role)]; !has {
				writeError(w, http.StatusForbidden, "Not authorized for this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// helpers

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
