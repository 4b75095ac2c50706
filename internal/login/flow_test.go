package login_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/kv"
	"github.com/boddenberg/zillo-assist-go/internal/infra/memstore"
	"github.com/boddenberg/zillo-assist-go/internal/infra/observability"
	"github.com/boddenberg/zillo-assist-go/internal/login"
	"github.com/boddenberg/zillo-assist-go/internal/service"
	"github.com/boddenberg/zillo-assist-go/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type stubAuth struct {
	mu       sync.Mutex
	exists   bool
	userOK   bool
	auth     *domain.AuthResult
	err      error
	calls    int
	release  chan struct{}
	entered  chan struct{}
	lastCNPJ string
}

func (s *stubAuth) enter(cnpj string) {
	s.mu.Lock()
	s.calls++
	s.lastCNPJ = cnpj
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
}

func (s *stubAuth) IdentifyCompany(_ context.Context, cnpj string) (*domain.IdentifyResult, error) {
	s.enter(cnpj)
	return &domain.IdentifyResult{Exists: s.exists}, s.err
}

func (s *stubAuth) CheckUsername(_ context.Context, cnpj, _ string) (*domain.CheckUserResult, error) {
	s.enter(cnpj)
	return &domain.CheckUserResult{Exists: s.userOK}, s.err
}

func (s *stubAuth) Authenticate(_ context.Context, cnpj, _, _ string) (*domain.AuthResult, error) {
	s.enter(cnpj)
	if s.auth == nil {
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}
	return s.auth, s.err
}

type failingKV struct{ *kv.Memory }

func (f *failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

// --- Tests ---

func TestFlow_EndToEndWithRoster(t *testing.T) {
	ctx := context.Background()
	roster := service.NewAccountIdentity(memstore.NewRoster(), "secret", 24*time.Hour, zap.NewNop())
	metrics := observability.NewMetrics()
	auth := service.NewAuthClient(nil, roster, nil, nil, metrics, zap.NewNop())
	store := session.New(kv.NewMemory())

	flow := login.NewFlow(ctx, auth, store, login.WithMetrics(metrics))

	_, err := flow.Input(login.FieldCNPJ, "11.222.333/0001-81")
	require.NoError(t, err)
	snap, err := flow.Forward(ctx)
	require.NoError(t, err)
	require.Equal(t, login.StageUsername, snap.State.Stage, snap.State.Error)

	_, _ = flow.Input(login.FieldUsername, "admin")
	snap, err = flow.Forward(ctx)
	require.NoError(t, err)
	require.Equal(t, login.StagePassword, snap.State.Stage, snap.State.Error)

	_, _ = flow.Input(login.FieldPassword, "admin123")
	_, _ = flow.Input(login.FieldRemember, "true")
	snap, err = flow.Forward(ctx)
	require.NoError(t, err)
	require.Equal(t, login.StageSuccess, snap.State.Stage, snap.State.Error)
	require.NotNil(t, snap.Redirect)
	assert.Equal(t, "/dashboard", snap.Redirect.To)
	assert.Equal(t, 1500*time.Millisecond, snap.Redirect.After)

	sess, ok := store.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, sess.UserRole)
	assert.Equal(t, "11222333000181", sess.CompanyCNPJ)
	assert.NotEmpty(t, sess.AuthToken)
	assert.InDelta(t, time.Now().UnixMilli()+86400000, sess.ExpiresAt, 5000)

	remembered, ok := store.RememberedCredentials(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin", remembered.Username)

	snapMetrics := metrics.GetAuthSnapshot()
	assert.Equal(t, int64(1), snapMetrics.StageAdvances["cnpj"])
	assert.Equal(t, int64(1), snapMetrics.StageAdvances["password"])
}

func TestFlow_UnknownCompanyStays(t *testing.T) {
	ctx := context.Background()
	auth := &stubAuth{exists: false}
	flow := login.NewFlow(ctx, auth, session.New(kv.NewMemory()))

	_, _ = flow.Input(login.FieldCNPJ, "11444777000161")
	snap, err := flow.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, login.StageCNPJ, snap.State.Stage)
	assert.Equal(t, "CNPJ não encontrado.", snap.State.Error)
	assert.Equal(t, "11444777000161", auth.lastCNPJ)
}

func TestFlow_InvalidCNPJNoRemoteCall(t *testing.T) {
	ctx := context.Background()
	auth := &stubAuth{exists: true}
	flow := login.NewFlow(ctx, auth, session.New(kv.NewMemory()))

	_, _ = flow.Input(login.FieldCNPJ, "11222333000182")
	snap, err := flow.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CNPJ inválido.", snap.State.Error)
	assert.Equal(t, 0, auth.calls)
}

func TestFlow_BackFromUsername(t *testing.T) {
	ctx := context.Background()
	auth := &stubAuth{exists: true}
	flow := login.NewFlow(ctx, auth, session.New(kv.NewMemory()))

	_, _ = flow.Input(login.FieldCNPJ, "11222333000181")
	_, _ = flow.Forward(ctx)

	snap, err := flow.Back()
	require.NoError(t, err)
	assert.Equal(t, login.StageCNPJ, snap.State.Stage)
	assert.Empty(t, snap.State.Error)
	assert.Equal(t, 1, auth.calls)
}

func TestFlow_BusyRejectsConcurrentSteps(t *testing.T) {
	ctx := context.Background()
	auth := &stubAuth{exists: true, release: make(chan struct{}), entered: make(chan struct{}, 1)}
	flow := login.NewFlow(ctx, auth, session.New(kv.NewMemory()))
	_, _ = flow.Input(login.FieldCNPJ, "11222333000181")

	done := make(chan login.Snapshot)
	go func() {
		snap, _ := flow.Forward(ctx)
		done <- snap
	}()
	<-auth.entered

	assert.True(t, flow.Snapshot().State.Busy)
	_, err := flow.Forward(ctx)
	assert.ErrorIs(t, err, login.ErrBusy)
	_, err = flow.Back()
	assert.ErrorIs(t, err, login.ErrBusy)
	_, err = flow.Input(login.FieldCNPJ, "1")
	assert.ErrorIs(t, err, login.ErrBusy)

	close(auth.release)
	snap := <-done
	assert.Equal(t, login.StageUsername, snap.State.Stage)
	assert.False(t, snap.State.Busy)
}

func TestFlow_ResetWhileBusyDropsStaleResult(t *testing.T) {
	ctx := context.Background()
	auth := &stubAuth{exists: true, release: make(chan struct{}), entered: make(chan struct{}, 1)}
	flow := login.NewFlow(ctx, auth, session.New(kv.NewMemory()))
	_, _ = flow.Input(login.FieldCNPJ, "11222333000181")

	done := make(chan login.Snapshot)
	go func() {
		snap, _ := flow.Forward(ctx)
		done <- snap
	}()
	<-auth.entered

	flow.Reset(ctx)
	close(auth.release)

	snap := <-done
	assert.Equal(t, login.StageCNPJ, snap.State.Stage, "stale success must not advance the new flow")
	assert.Empty(t, snap.State.CNPJ)
}

func TestFlow_BackendMessageShown(t *testing.T) {
	ctx := context.Background()
	auth := &stubAuth{exists: true, userOK: true}
	flow := login.NewFlow(ctx, auth, session.New(kv.NewMemory()))

	_, _ = flow.Input(login.FieldCNPJ, "11222333000181")
	_, _ = flow.Forward(ctx)
	_, _ = flow.Input(login.FieldUsername, "admin")
	_, _ = flow.Forward(ctx)
	_, _ = flow.Input(login.FieldPassword, "errada")
	snap, err := flow.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, login.StagePassword, snap.State.Stage)
	assert.Equal(t, "Credenciais inválidas", snap.State.Error)
	assert.Nil(t, snap.Redirect)
}

func TestFlow_SessionSaveFailure(t *testing.T) {
	ctx := context.Background()
	auth := &stubAuth{exists: true, userOK: true, auth: &domain.AuthResult{Token: "t"}}
	flow := login.NewFlow(ctx, auth, session.New(&failingKV{Memory: kv.NewMemory()}))

	_, _ = flow.Input(login.FieldCNPJ, "11222333000181")
	_, _ = flow.Forward(ctx)
	_, _ = flow.Input(login.FieldUsername, "admin")
	_, _ = flow.Forward(ctx)
	_, _ = flow.Input(login.FieldPassword, "x")
	snap, err := flow.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, login.StagePassword, snap.State.Stage)
	assert.Equal(t, login.MsgSessionSaveFailed, snap.State.Error)
	assert.Nil(t, snap.Redirect)
}

func TestFlow_PrefillFromRememberedCredentials(t *testing.T) {
	ctx := context.Background()
	store := session.New(kv.NewMemory())
	require.NoError(t, store.SaveRememberedCredentials(ctx, "11.222.333/0001-81", "gerente"))

	flow := login.NewFlow(ctx, &stubAuth{}, store)
	st := flow.Snapshot().State
	assert.Equal(t, "11.222.333/0001-81", st.CNPJ)
	assert.Equal(t, "gerente", st.Username)
	assert.True(t, st.Remember)
}
