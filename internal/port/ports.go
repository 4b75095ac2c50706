// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
)

// IdentityBackend answers the four auth questions of the login wizard.
// Implemented by the cloud backend client, the REST fallback client and the
// local account identity.
type IdentityBackend interface {
	IdentifyCompany(ctx context.Context, cnpj string) (*domain.IdentifyResult, error)
	CheckUsername(ctx context.Context, cnpj, username string) (*domain.CheckUserResult, error)
	Authenticate(ctx context.Context, cnpj, username, password string) (*domain.AuthResult, error)
	RecoverPassword(ctx context.Context, email string) error
}

// DirectoryBackend manages the users of one company (CRM panel).
type DirectoryBackend interface {
	ListCompanyUsers(ctx context.Context, cnpj string) ([]domain.DirectoryUser, error)
	RegisterUser(ctx context.Context, req *domain.RegisterUserRequest) (string, error)
	UpdateUser(ctx context.Context, cnpj, userID string, patch *domain.UserPatch) (*domain.DirectoryUser, error)
	DeleteUser(ctx context.Context, cnpj, userID string) error
}

// AccountStore is the persistence behind the served REST fallback.
// Lookups return (nil, nil) when nothing matches.
type AccountStore interface {
	DirectoryBackend

	GetCompany(ctx context.Context, cnpj string) (*domain.Company, error)
	GetCredential(ctx context.Context, cnpj, username string) (*domain.AccountCredential, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.DirectoryUser, error)
}

// KV is the durable string key/value store a client's session lives in.
// Get reports found=false for absent keys; errors mean the storage itself
// is unavailable.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
