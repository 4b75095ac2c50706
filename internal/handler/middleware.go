package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/guard"
	"github.com/boddenberg/zillo-assist-go/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	clientIDKey contextKey = "clientID"
	sessionKey  contextKey = "session"
)

// ClientCookie identifies a browser; its session lives under this id.
const ClientCookie = "zillo_client"

const clientCookieMaxAge = 400 * 24 * 60 * 60

// ClientMiddleware makes sure every request carries a client id, issuing
// the cookie when it is missing or malformed.
func ClientMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(ClientCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   clientCookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), clientIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext returns the client id set by ClientMiddleware.
func ClientIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIDKey).(string)
	return v
}

// ClientIDFromRequest is the request-logging hook for the client id.
func ClientIDFromRequest(r *http.Request) string {
	return ClientIDFromContext(r.Context())
}

// SessionFromContext returns the session admitted by RequireSession.
func SessionFromContext(ctx context.Context) *domain.Session {
	v, _ := ctx.Value(sessionKey).(*domain.Session)
	return v
}

type redirectResponse struct {
	Redirect string `json:"redirect"`
}

// RequireSession runs the route guard on every request. Clients without a
// valid session are sent to the login page.
func RequireSession(sessions *session.Registry, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := sessions.For(ClientIDFromContext(r.Context()))
			decision := guard.Check(r.Context(), store)
			if !decision.Allow {
				logger.Debug("guard: redirecting to login",
					zap.String("path", r.URL.Path),
					zap.String("redirect", decision.Redirect),
				)
				w.Header().Set("Location", decision.Redirect)
				writeJSON(w, http.StatusFound, redirectResponse{Redirect: decision.Redirect})
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, decision.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole renders the access-denied view for sessions without one of
// roles. It must run after RequireSession.
func RequireRole(logger *zap.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if err := guard.RequireRole(sess, roles...); err != nil {
				handleServiceError(w, err, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
