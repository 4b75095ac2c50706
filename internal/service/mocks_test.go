package service_test

import (
	"context"
	"sync/atomic"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
)

// --- Mocks ---

type mockBackend struct {
	identify     *domain.IdentifyResult
	checkUser    *domain.CheckUserResult
	auth         *domain.AuthResult
	err          error
	recoverErr   error
	calls        atomic.Int32
	recoverCalls atomic.Int32
	block        chan struct{}
}

func (m *mockBackend) wait() {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
}

func (m *mockBackend) IdentifyCompany(_ context.Context, _ string) (*domain.IdentifyResult, error) {
	m.wait()
	return m.identify, m.err
}

func (m *mockBackend) CheckUsername(_ context.Context, _, _ string) (*domain.CheckUserResult, error) {
	m.wait()
	return m.checkUser, m.err
}

func (m *mockBackend) Authenticate(_ context.Context, _, _, _ string) (*domain.AuthResult, error) {
	m.wait()
	return m.auth, m.err
}

func (m *mockBackend) RecoverPassword(_ context.Context, _ string) error {
	m.recoverCalls.Add(1)
	return m.recoverErr
}

type mockDirectory struct {
	users     []domain.DirectoryUser
	updated   *domain.DirectoryUser
	id        string
	err       error
	calls     int
	lastCNPJ  string
	lastPatch *domain.UserPatch
	lastReq   *domain.RegisterUserRequest
}

func (m *mockDirectory) ListCompanyUsers(_ context.Context, cnpj string) ([]domain.DirectoryUser, error) {
	m.calls++
	m.lastCNPJ = cnpj
	return m.users, m.err
}

func (m *mockDirectory) RegisterUser(_ context.Context, req *domain.RegisterUserRequest) (string, error) {
	m.calls++
	m.lastReq = req
	m.lastCNPJ = req.CompanyCNPJ
	return m.id, m.err
}

func (m *mockDirectory) UpdateUser(_ context.Context, cnpj, _ string, patch *domain.UserPatch) (*domain.DirectoryUser, error) {
	m.calls++
	m.lastCNPJ = cnpj
	m.lastPatch = patch
	return m.updated, m.err
}

func (m *mockDirectory) DeleteUser(_ context.Context, cnpj, _ string) error {
	m.calls++
	m.lastCNPJ = cnpj
	return m.err
}
