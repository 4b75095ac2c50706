// Package guard decides whether a request may see a protected page.
package guard

import (
	"context"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/session"
)

// LoginPath is where unauthenticated clients are sent.
const LoginPath = "/sistema"

// AccessDenied is the fixed message shown to authenticated users without
// the role a page requires.
const AccessDenied = "Acesso negado"

// Decision is the outcome of a guard check: either Allow with the session,
// or a Redirect target.
type Decision struct {
	Allow    bool
	Redirect string
	Session  *domain.Session
}

// Check reads the client's session. A missing field, a passed expiry
// (which also clears the session) or unreadable storage all redirect to
// the login page. It must run on every request to a protected route.
func Check(ctx context.Context, store *session.Store) Decision {
	sess, ok := store.Current(ctx)
	if !ok {
		return Decision{Redirect: LoginPath}
	}
	return Decision{Allow: true, Session: sess}
}

// RequireRole returns ErrForbidden unless the session holds one of roles.
// It is an authorization check on an already allowed session, so the
// caller renders the access-denied view instead of redirecting.
func RequireRole(sess *domain.Session, roles ...domain.Role) error {
	if sess != nil {
		for _, r := range roles {
			if sess.UserRole == r {
				return nil
			}
		}
	}
	return &domain.ErrForbidden{Action: AccessDenied}
}
