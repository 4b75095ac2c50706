// Package service holds the application services: the auth client used by
// the login wizard, the account identity behind the REST fallback, and the
// CRM directory.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"
	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/observability"
	"github.com/boddenberg/zillo-assist-go/internal/infra/resilience"
	"github.com/boddenberg/zillo-assist-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var authTracer = otel.Tracer("service/auth")

const invalidCredentials = "Credenciais inválidas"

// Backend is one named identity backend the auth client may consult.
type Backend struct {
	Name    string
	Backend port.IdentityBackend
}

// AuthClient resolves each login step against the remote backends in
// order and then the local roster. Remote failures are logged and counted,
// never returned; only the local roster's own failure propagates.
type AuthClient struct {
	remotes      []Backend
	local        port.IdentityBackend
	companyCache port.Cache[*domain.IdentifyResult]
	bulkhead     *resilience.Bulkhead
	group        singleflight.Group
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewAuthClient creates an auth client. remotes are tried in the given
// order; local is the last resort. companyCache and bulkhead may be nil.
func NewAuthClient(
	remotes []Backend,
	local port.IdentityBackend,
	companyCache port.Cache[*domain.IdentifyResult],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AuthClient {
	return &AuthClient{
		remotes:      remotes,
		local:        local,
		companyCache: companyCache,
		bulkhead:     bulkhead,
		metrics:      metrics,
		logger:       logger,
	}
}

// strategy is one way of answering an auth step.
type strategy[T any] struct {
	name   string
	remote bool
	call   func(ctx context.Context) (T, error)
}

// resolve returns the first result accepted by the predicate. Errors and
// rejected answers fall through to the next strategy. When nothing is
// accepted the last strategy's outcome is returned as is: its error, or
// its (rejected) answer.
func resolve[T any](ctx context.Context, c *AuthClient, op string, strategies []strategy[T], accept func(T) bool) (T, error) {
	var (
		last    T
		lastErr error
	)
	for _, s := range strategies {
		start := time.Now()
		res, err := runStrategy(ctx, c.bulkhead, s)
		c.metrics.RecordRequestDuration(op+"."+s.name, time.Since(start))

		if err != nil {
			if s.remote {
				c.metrics.IncrExternalError(s.name)
				c.logger.Warn("auth: backend failed, falling through",
					zap.String("operation", op),
					zap.String("backend", s.name),
					zap.Error(err),
				)
			}
			var zero T
			last, lastErr = zero, err
			continue
		}

		if accept(res) {
			source := "local"
			if s.remote {
				source = "remote"
			}
			c.metrics.IncrAuthResolution(op, source)
			return res, nil
		}
		last, lastErr = res, nil
	}
	return last, lastErr
}

// runStrategy calls s, holding a bulkhead slot for remote strategies.
func runStrategy[T any](ctx context.Context, bulkhead *resilience.Bulkhead, s strategy[T]) (T, error) {
	if s.remote && bulkhead != nil {
		if err := bulkhead.Acquire(ctx); err != nil {
			var zero T
			return zero, err
		}
		defer bulkhead.Release()
	}
	return s.call(ctx)
}

// identityStrategies builds one strategy per backend, remotes first.
func identityStrategies[T any](c *AuthClient, call func(ctx context.Context, b port.IdentityBackend) (T, error)) []strategy[T] {
	out := make([]strategy[T], 0, len(c.remotes)+1)
	for _, r := range c.remotes {
		b := r.Backend
		out = append(out, strategy[T]{
			name:   r.Name,
			remote: true,
			call:   func(ctx context.Context) (T, error) { return call(ctx, b) },
		})
	}
	out = append(out, strategy[T]{
		name: "roster",
		call: func(ctx context.Context) (T, error) { return call(ctx, c.local) },
	})
	return out
}

// ============================================================
// Operations
// ============================================================

// IdentifyCompany reports whether the company exists. Positive answers are
// cached; concurrent lookups of the same CNPJ share one resolution.
func (c *AuthClient) IdentifyCompany(ctx context.Context, companyCNPJ string) (*domain.IdentifyResult, error) {
	ctx, span := authTracer.Start(ctx, "AuthClient.IdentifyCompany")
	defer span.End()

	companyCNPJ = cnpj.Normalize(companyCNPJ)
	span.SetAttributes(attribute.String("company.cnpj", companyCNPJ))

	if c.companyCache != nil {
		if cached, ok := c.companyCache.Get(companyCNPJ); ok {
			c.metrics.IncrCacheHit("company")
			return cached, nil
		}
		c.metrics.IncrCacheMiss("company")
	}

	v, err, _ := c.group.Do(companyCNPJ, func() (any, error) {
		return resolve(ctx, c, "identify",
			identityStrategies(c, func(ctx context.Context, b port.IdentityBackend) (*domain.IdentifyResult, error) {
				return b.IdentifyCompany(ctx, companyCNPJ)
			}),
			func(r *domain.IdentifyResult) bool { return r != nil && r.Exists },
		)
	})
	if err != nil {
		return nil, err
	}

	res, _ := v.(*domain.IdentifyResult)
	if res == nil {
		res = &domain.IdentifyResult{Exists: false}
	}
	if res.Exists && c.companyCache != nil {
		c.companyCache.Set(companyCNPJ, res)
	}
	return res, nil
}

// CheckUsername reports whether the username exists for the company.
func (c *AuthClient) CheckUsername(ctx context.Context, companyCNPJ, username string) (*domain.CheckUserResult, error) {
	ctx, span := authTracer.Start(ctx, "AuthClient.CheckUsername")
	defer span.End()

	companyCNPJ = cnpj.Normalize(companyCNPJ)
	username = strings.TrimSpace(username)
	span.SetAttributes(attribute.String("company.cnpj", companyCNPJ))

	res, err := resolve(ctx, c, "check_user",
		identityStrategies(c, func(ctx context.Context, b port.IdentityBackend) (*domain.CheckUserResult, error) {
			return b.CheckUsername(ctx, companyCNPJ, username)
		}),
		func(r *domain.CheckUserResult) bool { return r != nil && r.Exists },
	)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &domain.CheckUserResult{Exists: false}
	}
	return res, nil
}

// Authenticate returns the first result carrying a token. When no backend
// issues one the error is ErrUnauthorized with the first message a backend
// supplied, or "Credenciais inválidas".
func (c *AuthClient) Authenticate(ctx context.Context, companyCNPJ, username, password string) (*domain.AuthResult, error) {
	ctx, span := authTracer.Start(ctx, "AuthClient.Authenticate")
	defer span.End()

	companyCNPJ = cnpj.Normalize(companyCNPJ)
	username = strings.TrimSpace(username)
	span.SetAttributes(attribute.String("company.cnpj", companyCNPJ))

	var backendMessage string
	res, err := resolve(ctx, c, "authenticate",
		identityStrategies(c, func(ctx context.Context, b port.IdentityBackend) (*domain.AuthResult, error) {
			r, err := b.Authenticate(ctx, companyCNPJ, username, password)
			if err == nil && r != nil && r.Token == "" && backendMessage == "" && r.Message != invalidCredentials {
				backendMessage = r.Message
			}
			return r, err
		}),
		func(r *domain.AuthResult) bool { return r != nil && r.Token != "" },
	)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Token == "" {
		msg := backendMessage
		if msg == "" {
			msg = invalidCredentials
		}
		return nil, &domain.ErrUnauthorized{Message: msg}
	}
	return res, nil
}

// RecoverPassword asks the first reachable backend to send a recovery
// email. Every outcome is swallowed so callers cannot learn whether the
// account exists.
func (c *AuthClient) RecoverPassword(ctx context.Context, email string) {
	ctx, span := authTracer.Start(ctx, "AuthClient.RecoverPassword")
	defer span.End()

	email = strings.TrimSpace(email)
	_, err := resolve(ctx, c, "recover",
		identityStrategies(c, func(ctx context.Context, b port.IdentityBackend) (struct{}, error) {
			return struct{}{}, b.RecoverPassword(ctx, email)
		}),
		func(struct{}) bool { return true },
	)
	if err != nil {
		c.logger.Warn("auth: password recovery failed on every backend", zap.Error(err))
	}
}

// ============================================================
// Session identity
// ============================================================

// DeriveSession builds the session to persist after a successful login.
// Email: backend user object, then top-level field, then
// "<username>@<cnpj>.local". Role: backend-declared (user object, then
// top-level), then the username heuristic.
func DeriveSession(res *domain.AuthResult, companyCNPJ, username string) domain.Session {
	companyCNPJ = cnpj.Normalize(companyCNPJ)

	sess := domain.Session{
		AuthToken:   res.Token,
		CompanyCNPJ: companyCNPJ,
	}

	var user domain.DirectoryUser
	if res.User != nil {
		user = *res.User
	}

	switch {
	case res.UserName != "":
		sess.UserName = res.UserName
	case user.DisplayName != "":
		sess.UserName = user.DisplayName
	default:
		sess.UserName = username
	}

	switch {
	case user.Email != "":
		sess.UserEmail = user.Email
	case res.UserEmail != "":
		sess.UserEmail = res.UserEmail
	default:
		sess.UserEmail = fmt.Sprintf("%s@%s.local", username, companyCNPJ)
	}

	if role, ok := domain.ParseRole(string(user.Role)); ok {
		sess.UserRole = role
	} else if role, ok := domain.ParseRole(res.UserRole); ok {
		sess.UserRole = role
	} else {
		sess.UserRole = domain.RoleFromUsername(username)
	}

	sess.UserPhoto = user.PhotoURL
	return sess
}
