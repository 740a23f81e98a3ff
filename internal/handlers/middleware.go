package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"nia/internal/models"
	"nia/internal/security"
	"nia/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const SessionContextKey ContextKey = "session"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	sessions *service.SessionService
	tokens   *security.SessionTokens
	csrf     *security.CSRFGenerator
	limiter  *security.RateLimiter

	// trustProxy reads the client address from forwarding headers
	trustProxy bool
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(sessions *service.SessionService, tokens *security.SessionTokens, csrf *security.CSRFGenerator, limiter *security.RateLimiter, trustProxy bool) *Middleware {
	return &Middleware{
		sessions:   sessions,
		tokens:     tokens,
		csrf:       csrf,
		limiter:    limiter,
		trustProxy: trustProxy,
	}
}

// LoadSession attaches the browser's session to the request, creating one
// when the cookie is missing, forged or expired
func (m *Middleware) LoadSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if cookie, err := r.Cookie(security.SessionCookieName); err == nil && cookie.Value != "" {
			id, err := m.tokens.Parse(cookie.Value)
			if err != nil {
				http.SetCookie(w, security.CreateDeleteCookie(r))
			} else {
				sessionID = id
			}
		}

		session, created, err := m.sessions.Load(r.Context(), sessionID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading session", err)
			return
		}

		if created {
			if err := m.sessions.Save(r.Context(), session, service.EventIdentity); err != nil {
				respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error creating session", err)
				return
			}
			token, err := m.tokens.Issue(session.ID, session.ExpiresAt)
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error signing session", err)
				return
			}
			http.SetCookie(w, security.CreateSessionCookie(r, token, session.ExpiresAt))
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next(w, r.WithContext(ctx))
	}
}

// RequireStudent sends visitors without a student identity to the welcome page
func (m *Middleware) RequireStudent(next http.HandlerFunc) http.HandlerFunc {
	return m.LoadSession(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r.Context())
		if session == nil || !session.HasIdentity() {
			if wantsJSON(r) {
				respondJSONError(w, http.StatusUnauthorized, service.UserMessage(service.ErrNoStudent))
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next(w, r)
	})
}

// CSRFProtect rejects POSTs without a valid token for the current session.
// Must run inside LoadSession.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r.Context())
		if session == nil {
			respondWithError(w, http.StatusForbidden, ErrInvalidCSRFToken, "", nil)
			return
		}

		token := r.Header.Get(security.CSRFHeaderName)
		if token == "" {
			token = r.FormValue(security.CSRFFieldName)
		}
		if !m.csrf.ValidateToken(session.ID, token) {
			log.Printf("CSRF validation failed for %s %s", r.Method, r.URL.Path)
			respondWithError(w, http.StatusForbidden, ErrInvalidCSRFToken, "", nil)
			return
		}
		next(w, r)
	}
}

// RateLimit limits requests per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow(security.GetClientIP(r, m.trustProxy)) {
			if wantsJSON(r) {
				respondJSONError(w, http.StatusTooManyRequests, ErrTooManyRequests)
				return
			}
			respondWithError(w, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next(w, r)
	}
}

// CSRFToken returns the token to embed in forms for this request's session
func (m *Middleware) CSRFToken(r *http.Request) string {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		return ""
	}
	token, err := m.csrf.GenerateToken(session.ID)
	if err != nil {
		log.Printf("Error generating CSRF token: %v", err)
		return ""
	}
	return token
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Call next handler
		next.ServeHTTP(w, r)

		// Log request
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *models.Session {
	session, ok := ctx.Value(SessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
