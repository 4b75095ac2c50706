package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/memstore"
	"github.com/boddenberg/zillo-assist-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAccountIdentity_AuthenticateMintsToken(t *testing.T) {
	id := newRosterIdentity()

	res, err := id.Authenticate(context.Background(), "11.222.333/0001-81", "admin", "admin123")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, "Administrador", res.UserName)
	assert.Equal(t, "admin@zillo.com.br", res.UserEmail)
	require.NotNil(t, res.Company)
	assert.Equal(t, rosterCNPJ, res.Company.CNPJ)

	claims, err := id.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, rosterCNPJ, claims.CNPJ)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, res.User.ID, claims.Subject)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestAccountIdentity_RejectsWithoutError(t *testing.T) {
	id := newRosterIdentity()
	ctx := context.Background()

	cases := []struct{ cnpj, user, pass string }{
		{rosterCNPJ, "admin", "errada"},
		{rosterCNPJ, "ninguem", "admin123"},
		{"11444777000161", "admin", "admin123"},
	}
	for _, c := range cases {
		res, err := id.Authenticate(ctx, c.cnpj, c.user, c.pass)
		require.NoError(t, err)
		assert.Empty(t, res.Token)
		assert.Equal(t, "Credenciais inválidas", res.Message)
	}
}

func TestAccountIdentity_InactiveUserIsUnknown(t *testing.T) {
	store := memstore.NewRoster()
	ctx := context.Background()
	cred, err := store.GetCredential(ctx, rosterCNPJ, "gerente")
	require.NoError(t, err)

	inactive := false
	_, err = store.UpdateUser(ctx, rosterCNPJ, cred.User.ID, &domain.UserPatch{Active: &inactive})
	require.NoError(t, err)

	id := service.NewAccountIdentity(store, "s", time.Hour, zap.NewNop())

	check, err := id.CheckUsername(ctx, rosterCNPJ, "gerente")
	require.NoError(t, err)
	assert.False(t, check.Exists)

	res, err := id.Authenticate(ctx, rosterCNPJ, "gerente", "gerente123")
	require.NoError(t, err)
	assert.Empty(t, res.Token)
}

func TestAccountIdentity_ValidateToken_WrongSecret(t *testing.T) {
	res, err := newRosterIdentity().Authenticate(context.Background(), rosterCNPJ, "admin", "admin123")
	require.NoError(t, err)

	other := service.NewAccountIdentity(memstore.NewRoster(), "other-secret", time.Hour, zap.NewNop())
	_, err = other.ValidateToken(res.Token)
	var unauth *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauth)
}

func TestAccountIdentity_RecoverAlwaysSucceeds(t *testing.T) {
	id := newRosterIdentity()
	assert.NoError(t, id.RecoverPassword(context.Background(), "admin@zillo.com.br"))
	assert.NoError(t, id.RecoverPassword(context.Background(), "nobody@nowhere.com"))
}
