// Package memstore is an in-memory account store. It backs the fixed local
// roster used when remote backends are unreachable, and the served REST
// fallback when no database is configured.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"
	"github.com/boddenberg/zillo-assist-go/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store keeps companies and their users in memory.
type Store struct {
	mu        sync.RWMutex
	companies map[string]domain.Company
	users     map[string][]*domain.AccountCredential
	cost      int
	now       func() time.Time
}

// New returns an empty store. cost is the bcrypt cost used for new passwords.
func New(cost int) *Store {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		companies: make(map[string]domain.Company),
		users:     make(map[string][]*domain.AccountCredential),
		cost:      cost,
		now:       time.Now,
	}
}

// AddCompany registers (or replaces) a company.
func (s *Store) AddCompany(c domain.Company) {
	c.CNPJ = cnpj.Normalize(c.CNPJ)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.CNPJ] = c
}

// GetCompany returns the company or nil.
func (s *Store) GetCompany(_ context.Context, companyCNPJ string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[cnpj.Normalize(companyCNPJ)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// GetCredential returns the user with this username in the company, or nil.
func (s *Store) GetCredential(_ context.Context, companyCNPJ, username string) (*domain.AccountCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred := s.findByUsername(cnpj.Normalize(companyCNPJ), username)
	if cred == nil {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}

// FindUserByEmail searches every company for an email match (case-insensitive).
func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.DirectoryUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, creds := range s.users {
		for _, c := range creds {
			if c.User.Email != "" && strings.EqualFold(c.User.Email, email) {
				u := c.User
				return &u, nil
			}
		}
	}
	return nil, nil
}

// ListCompanyUsers returns the company's users ordered by creation time.
func (s *Store) ListCompanyUsers(_ context.Context, companyCNPJ string) ([]domain.DirectoryUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds := s.users[cnpj.Normalize(companyCNPJ)]
	out := make([]domain.DirectoryUser, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.User)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// RegisterUser hashes the password and stores a new active user.
func (s *Store) RegisterUser(_ context.Context, req *domain.RegisterUserRequest) (string, error) {
	companyCNPJ := cnpj.Normalize(req.CompanyCNPJ)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[companyCNPJ]; !ok {
		return "", &domain.ErrNotFound{Resource: "company", ID: companyCNPJ}
	}
	if s.findByUsername(companyCNPJ, req.Username) != nil {
		return "", &domain.ErrConflict{Message: "Usuário já existe para esta empresa"}
	}

	id := uuid.NewString()
	s.users[companyCNPJ] = append(s.users[companyCNPJ], &domain.AccountCredential{
		User: domain.DirectoryUser{
			ID:            id,
			CompanyCNPJ:   companyCNPJ,
			Username:      req.Username,
			DisplayName:   req.DisplayName,
			Role:          req.Role,
			Active:        true,
			Email:         req.Email,
			Phone:         req.Phone,
			Address:       req.Address,
			AddressNumber: req.AddressNumber,
			PhotoURL:      req.PhotoURL,
			CreatedAt:     s.now().UTC(),
		},
		PasswordHash: string(hash),
	})
	return id, nil
}

// UpdateUser applies the non-nil patch fields.
func (s *Store) UpdateUser(_ context.Context, companyCNPJ, userID string, patch *domain.UserPatch) (*domain.DirectoryUser, error) {
	var hash []byte
	if patch.Password != nil {
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(*patch.Password), s.cost); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cred := s.findByID(cnpj.Normalize(companyCNPJ), userID)
	if cred == nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}

	u := &cred.User
	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Address != nil {
		u.Address = *patch.Address
	}
	if patch.AddressNumber != nil {
		u.AddressNumber = *patch.AddressNumber
	}
	if patch.PhotoURL != nil {
		u.PhotoURL = *patch.PhotoURL
	}
	if hash != nil {
		cred.PasswordHash = string(hash)
	}

	out := *u
	return &out, nil
}

// DeleteUser removes the user from the company.
func (s *Store) DeleteUser(_ context.Context, companyCNPJ, userID string) error {
	companyCNPJ = cnpj.Normalize(companyCNPJ)

	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.users[companyCNPJ]
	for i, c := range creds {
		if c.User.ID == userID {
			s.users[companyCNPJ] = append(creds[:i:i], creds[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "user", ID: userID}
}

func (s *Store) findByUsername(companyCNPJ, username string) *domain.AccountCredential {
	for _, c := range s.users[companyCNPJ] {
		if strings.EqualFold(c.User.Username, username) {
			return c
		}
	}
	return nil
}

func (s *Store) findByID(companyCNPJ, id string) *domain.AccountCredential {
	for _, c := range s.users[companyCNPJ] {
		if c.User.ID == id {
			return c
		}
	}
	return nil
}
