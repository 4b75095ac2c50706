package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/client"
	"github.com/boddenberg/zillo-assist-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthAPI(t *testing.T, h http.HandlerFunc) *client.AuthAPIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return client.NewAuthAPIClient(srv.Client(), srv.URL+"/", resilience.NewCircuitBreaker("auth-api-test", zap.NewNop()), cfg)
}

func TestAuthAPI_Identify(t *testing.T) {
	c := newAuthAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/identify", r.URL.Path)
		var req domain.IdentifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "11222333000181", req.CNPJ)
		_, _ = w.Write([]byte(`{"exists":true,"company":{"cnpj":"11222333000181","razaoSocial":"Zillo"}}`))
	})

	res, err := c.IdentifyCompany(context.Background(), "11222333000181")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "Zillo", res.Company.RazaoSocial)
}

func TestAuthAPI_IdentifyNotFoundIsNegative(t *testing.T) {
	c := newAuthAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	res, err := c.IdentifyCompany(context.Background(), "11222333000181")
	require.NoError(t, err)
	assert.False(t, res.Exists)
}

func TestAuthAPI_CheckUserRetriesServerErrors(t *testing.T) {
	calls := 0
	c := newAuthAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"exists":true}`))
	})

	res, err := c.CheckUsername(context.Background(), "11222333000181", "admin")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, 3, calls)
}

func TestAuthAPI_LoginRejected(t *testing.T) {
	c := newAuthAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized","message":"Usuário bloqueado"}`))
	})

	res, err := c.Authenticate(context.Background(), "11222333000181", "admin", "x")
	require.NoError(t, err)
	assert.Empty(t, res.Token)
	assert.Equal(t, "Usuário bloqueado", res.Message)
}

func TestAuthAPI_LoginSuccess(t *testing.T) {
	c := newAuthAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"jwt","userName":"Administrador","userRole":"admin"}`))
	})

	res, err := c.Authenticate(context.Background(), "11222333000181", "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, "admin", res.UserRole)
}

func TestAuthAPI_RecoverFailureIsExternal(t *testing.T) {
	c := newAuthAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.RecoverPassword(context.Background(), "a@b.c")
	var ext *domain.ErrExternalService
	assert.ErrorAs(t, err, &ext)
}
