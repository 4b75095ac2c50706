package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/cache"
	"github.com/boddenberg/zillo-assist-go/internal/infra/memstore"
	"github.com/boddenberg/zillo-assist-go/internal/infra/observability"
	"github.com/boddenberg/zillo-assist-go/internal/infra/resilience"
	"github.com/boddenberg/zillo-assist-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const rosterCNPJ = "11222333000181"

func newRosterIdentity() *service.AccountIdentity {
	return service.NewAccountIdentity(memstore.NewRoster(), "test-secret", 24*time.Hour, zap.NewNop())
}

func newAuthClient(remote *mockBackend) (*service.AuthClient, *observability.Metrics) {
	metrics := observability.NewMetrics()
	var remotes []service.Backend
	if remote != nil {
		remotes = []service.Backend{{Name: "supabase", Backend: remote}}
	}
	c := service.NewAuthClient(remotes, newRosterIdentity(), nil, resilience.NewBulkhead(4), metrics, zap.NewNop())
	return c, metrics
}

func TestIdentifyCompany_RemoteConfirms(t *testing.T) {
	remote := &mockBackend{identify: &domain.IdentifyResult{Exists: true, Company: &domain.Company{CNPJ: "11444777000161"}}}
	c, metrics := newAuthClient(remote)

	res, err := c.IdentifyCompany(context.Background(), "11.444.777/0001-61")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, int64(0), metrics.GetAuthSnapshot().FallbackUses)
}

func TestIdentifyCompany_RemoteFailureFallsBackToRoster(t *testing.T) {
	remote := &mockBackend{err: errors.New("connection refused")}
	c, metrics := newAuthClient(remote)

	res, err := c.IdentifyCompany(context.Background(), "11.222.333/0001-81")
	require.NoError(t, err, "remote failures must never surface")
	assert.True(t, res.Exists)

	snap := metrics.GetAuthSnapshot()
	assert.Equal(t, int64(1), snap.FallbackUses)
	assert.Equal(t, int64(1), snap.RemoteErrors)
}

func TestIdentifyCompany_RemoteNegativeFallsBackToRoster(t *testing.T) {
	remote := &mockBackend{identify: &domain.IdentifyResult{Exists: false}}
	c, _ := newAuthClient(remote)

	res, err := c.IdentifyCompany(context.Background(), rosterCNPJ)
	require.NoError(t, err)
	assert.True(t, res.Exists)
}

func TestIdentifyCompany_NeitherPathConfirms(t *testing.T) {
	remote := &mockBackend{err: errors.New("timeout")}
	c, _ := newAuthClient(remote)

	res, err := c.IdentifyCompany(context.Background(), "11444777000161")
	require.NoError(t, err)
	assert.False(t, res.Exists)
}

func TestIdentifyCompany_NoRemotes(t *testing.T) {
	c, _ := newAuthClient(nil)

	res, err := c.IdentifyCompany(context.Background(), rosterCNPJ)
	require.NoError(t, err)
	assert.True(t, res.Exists)
}

func TestIdentifyCompany_PositiveAnswersCached(t *testing.T) {
	remote := &mockBackend{identify: &domain.IdentifyResult{Exists: true}}
	companies := cache.New[*domain.IdentifyResult](time.Minute)
	defer companies.Stop()
	metrics := observability.NewMetrics()
	c := service.NewAuthClient([]service.Backend{{Name: "supabase", Backend: remote}}, newRosterIdentity(), companies, nil, metrics, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := c.IdentifyCompany(context.Background(), rosterCNPJ)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), remote.calls.Load())
	assert.InDelta(t, 2.0/3.0, metrics.GetAuthSnapshot().CacheHitRate, 0.001)
}

func TestIdentifyCompany_ConcurrentCallsCoalesced(t *testing.T) {
	remote := &mockBackend{identify: &domain.IdentifyResult{Exists: true}, block: make(chan struct{})}
	c, _ := newAuthClient(remote)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.IdentifyCompany(context.Background(), rosterCNPJ)
			assert.NoError(t, err)
			assert.True(t, res.Exists)
		}()
	}

	// Let the goroutines pile up behind the first call.
	time.Sleep(50 * time.Millisecond)
	close(remote.block)
	wg.Wait()

	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestCheckUsername_FallbackRoster(t *testing.T) {
	remote := &mockBackend{err: errors.New("503")}
	c, _ := newAuthClient(remote)

	res, err := c.CheckUsername(context.Background(), rosterCNPJ, "admin")
	require.NoError(t, err)
	assert.True(t, res.Exists)

	res, err = c.CheckUsername(context.Background(), rosterCNPJ, "ninguem")
	require.NoError(t, err)
	assert.False(t, res.Exists)
}

func TestAuthenticate_RemoteToken(t *testing.T) {
	remote := &mockBackend{auth: &domain.AuthResult{Token: "remote-token", UserName: "Ana"}}
	c, _ := newAuthClient(remote)

	res, err := c.Authenticate(context.Background(), rosterCNPJ, "ana", "x")
	require.NoError(t, err)
	assert.Equal(t, "remote-token", res.Token)
}

func TestAuthenticate_RosterFallback(t *testing.T) {
	remote := &mockBackend{err: errors.New("unreachable")}
	c, _ := newAuthClient(remote)

	res, err := c.Authenticate(context.Background(), "11.222.333/0001-81", "admin", "admin123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "admin", res.UserRole)
}

func TestAuthenticate_NoTokenIsInvalidCredentials(t *testing.T) {
	c, _ := newAuthClient(&mockBackend{err: errors.New("down")})

	_, err := c.Authenticate(context.Background(), rosterCNPJ, "admin", "wrong")
	var unauth *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
	assert.Equal(t, "Credenciais inválidas", unauth.Message)
}

func TestAuthenticate_BackendMessagePreferred(t *testing.T) {
	remote := &mockBackend{auth: &domain.AuthResult{Message: "Usuário bloqueado"}}
	c, _ := newAuthClient(remote)

	_, err := c.Authenticate(context.Background(), rosterCNPJ, "admin", "wrong")
	var unauth *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
	assert.Equal(t, "Usuário bloqueado", unauth.Message)
}

func TestRecoverPassword_SwallowsFailures(t *testing.T) {
	remote := &mockBackend{recoverErr: errors.New("smtp down")}
	c, _ := newAuthClient(remote)

	assert.NotPanics(t, func() { c.RecoverPassword(context.Background(), "admin@zillo.com.br") })
	assert.Equal(t, int32(1), remote.recoverCalls.Load())
}

func TestRecoverPassword_StopsAtFirstSuccess(t *testing.T) {
	first := &mockBackend{}
	second := &mockBackend{}
	c := service.NewAuthClient(
		[]service.Backend{{Name: "supabase", Backend: first}, {Name: "auth-api", Backend: second}},
		newRosterIdentity(), nil, nil, observability.NewMetrics(), zap.NewNop(),
	)

	c.RecoverPassword(context.Background(), "x@y.z")
	assert.Equal(t, int32(1), first.recoverCalls.Load())
	assert.Equal(t, int32(0), second.recoverCalls.Load())
}

func TestDeriveSession(t *testing.T) {
	tests := []struct {
		name      string
		res       *domain.AuthResult
		username  string
		wantEmail string
		wantRole  domain.Role
		wantName  string
	}{
		{
			name:      "user object wins",
			res:       &domain.AuthResult{Token: "t", UserEmail: "top@x.com", UserRole: "cliente", User: &domain.DirectoryUser{Email: "nested@x.com", Role: domain.RolePrestador}},
			username:  "joao",
			wantEmail: "nested@x.com",
			wantRole:  domain.RolePrestador,
			wantName:  "joao",
		},
		{
			name:      "top-level fields",
			res:       &domain.AuthResult{Token: "t", UserName: "João Silva", UserEmail: "top@x.com", UserRole: "cliente"},
			username:  "joao",
			wantEmail: "top@x.com",
			wantRole:  domain.RoleCliente,
			wantName:  "João Silva",
		},
		{
			name:      "placeholder email and admin heuristic",
			res:       &domain.AuthResult{Token: "t"},
			username:  "admin",
			wantEmail: "admin@11222333000181.local",
			wantRole:  domain.RoleAdmin,
			wantName:  "admin",
		},
		{
			name:      "gerente heuristic",
			res:       &domain.AuthResult{Token: "t"},
			username:  "gerente",
			wantEmail: "gerente@11222333000181.local",
			wantRole:  domain.RoleGerente,
			wantName:  "gerente",
		},
		{
			name:      "unknown declared role falls to heuristic",
			res:       &domain.AuthResult{Token: "t", UserRole: "superuser"},
			username:  "maria",
			wantEmail: "maria@11222333000181.local",
			wantRole:  domain.RoleFuncionario,
			wantName:  "maria",
		},
		{
			name:      "legacy user role",
			res:       &domain.AuthResult{Token: "t", UserRole: "user"},
			username:  "admin",
			wantEmail: "admin@11222333000181.local",
			wantRole:  domain.RoleFuncionario,
			wantName:  "admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := service.DeriveSession(tt.res, "11.222.333/0001-81", tt.username)
			assert.Equal(t, "t", sess.AuthToken)
			assert.Equal(t, rosterCNPJ, sess.CompanyCNPJ)
			assert.Equal(t, tt.wantEmail, sess.UserEmail)
			assert.Equal(t, tt.wantRole, sess.UserRole)
			assert.Equal(t, tt.wantName, sess.UserName)
		})
	}
}
