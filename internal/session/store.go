// Package session holds the durable proof of authentication a client keeps
// after logging in, and the remembered credentials used to pre-fill the
// login form.
//
// A Store is a policy layer over a port.KV. All reads and writes that form
// a read-modify-write (saving a session, detecting expiry and cleaning up)
// are serialized by the store's mutex.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"
	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/port"

	"go.uber.org/zap"
)

// TTL is how long a session stays valid after login.
const TTL = 24 * time.Hour

// Persisted keys. All values are strings; tokenExpiry is epoch millis.
const (
	KeyAuthToken      = "authToken"
	KeyTokenExpiry    = "tokenExpiry"
	KeyUserName       = "userName"
	KeyCompanyCNPJ    = "companyCnpj"
	KeyUserEmail      = "userEmail"
	KeyUserRole       = "userRole"
	KeyUserPhoto      = "userPhoto"
	KeyCRMCompanyCNPJ = "crmCompanyCnpj"

	KeySavedCNPJ    = "savedCnpj"
	KeySavedUsuario = "savedUsuario"
	KeySavedLembrar = "savedLembrar"
)

var sessionKeys = []string{
	KeyAuthToken, KeyTokenExpiry, KeyUserName, KeyCompanyCNPJ,
	KeyUserEmail, KeyUserRole, KeyUserPhoto, KeyCRMCompanyCNPJ,
}

var rememberedKeys = []string{KeySavedCNPJ, KeySavedUsuario, KeySavedLembrar}

// Store is one client's session state.
type Store struct {
	mu        sync.Mutex
	kv        port.KV
	now       func() time.Time
	logger    *zap.Logger
	onExpired func()
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for storage failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithExpiryHook registers fn to run whenever an expired session is cleared.
func WithExpiryHook(fn func()) Option {
	return func(s *Store) { s.onExpired = fn }
}

// New creates a Store over kv.
func New(kv port.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists sess with an expiry of now + TTL. Any ExpiresAt on sess is
// ignored. If a write fails the partially written session is removed so the
// client never observes half a login.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry := s.now().Add(TTL).UnixMilli()
	companyCNPJ := cnpj.Normalize(sess.CompanyCNPJ)

	writes := []struct{ key, value string }{
		{KeyAuthToken, sess.AuthToken},
		{KeyTokenExpiry, strconv.FormatInt(expiry, 10)},
		{KeyUserName, sess.UserName},
		{KeyCompanyCNPJ, companyCNPJ},
		{KeyCRMCompanyCNPJ, companyCNPJ},
		{KeyUserEmail, sess.UserEmail},
		{KeyUserRole, string(sess.UserRole)},
	}
	if sess.UserPhoto != "" {
		writes = append(writes, struct{ key, value string }{KeyUserPhoto, sess.UserPhoto})
	} else if err := s.kv.Remove(ctx, KeyUserPhoto); err != nil {
		s.logger.Warn("session: failed to drop stale photo", zap.Error(err))
	}

	for _, w := range writes {
		if err := s.kv.Set(ctx, w.key, w.value); err != nil {
			s.logger.Error("session: save failed", zap.String("key", w.key), zap.Error(err))
			s.clearLocked(ctx)
			return err
		}
	}
	return nil
}

// IsValid reports whether a usable session exists. A recorded expiry that
// has passed clears the session as a side effect. Storage failures count as
// "no session".
func (s *Store) IsValid(ctx context.Context) bool {
	_, ok := s.Current(ctx)
	return ok
}

// Current returns the session if it is valid, applying the same expiry
// cleanup as IsValid.
func (s *Store) Current(ctx context.Context) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read(ctx, sessionKeys)
	if err != nil {
		s.logger.Warn("session: storage unavailable, treating as logged out", zap.Error(err))
		return nil, false
	}

	if values[KeyAuthToken] == "" || values[KeyUserName] == "" || values[KeyCompanyCNPJ] == "" {
		return nil, false
	}

	sess := &domain.Session{
		AuthToken:   values[KeyAuthToken],
		UserName:    values[KeyUserName],
		CompanyCNPJ: values[KeyCompanyCNPJ],
		UserEmail:   values[KeyUserEmail],
		UserRole:    domain.Role(values[KeyUserRole]),
		UserPhoto:   values[KeyUserPhoto],
	}

	if raw, ok := values[KeyTokenExpiry]; ok && raw != "" {
		expiry, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || s.now().UnixMilli() >= expiry {
			s.logger.Info("session: expired, clearing",
				zap.String("user", sess.UserName),
				zap.String("company_cnpj", sess.CompanyCNPJ),
			)
			s.clearLocked(ctx)
			if s.onExpired != nil {
				s.onExpired()
			}
			return nil, false
		}
		sess.ExpiresAt = expiry
	}

	return sess, true
}

// Clear removes every session key. Remembered credentials are kept.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	return s.removeAll(ctx, sessionKeys)
}

// SaveRememberedCredentials stores the CNPJ (canonical) and username used
// to pre-fill the login form.
func (s *Store) SaveRememberedCredentials(ctx context.Context, companyCNPJ, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range []struct{ key, value string }{
		{KeySavedCNPJ, cnpj.Normalize(companyCNPJ)},
		{KeySavedUsuario, username},
		{KeySavedLembrar, "true"},
	} {
		if err := s.kv.Set(ctx, w.key, w.value); err != nil {
			return err
		}
	}
	return nil
}

// ClearRememberedCredentials forgets the pre-fill values.
func (s *Store) ClearRememberedCredentials(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeAll(ctx, rememberedKeys)
}

// RememberedCredentials returns the pre-fill values, if any were saved.
func (s *Store) RememberedCredentials(ctx context.Context) (domain.RememberedCredentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read(ctx, rememberedKeys)
	if err != nil || values[KeySavedLembrar] != "true" {
		return domain.RememberedCredentials{}, false
	}
	return domain.RememberedCredentials{
		CNPJ:     values[KeySavedCNPJ],
		Username: values[KeySavedUsuario],
		Remember: true,
	}, true
}

func (s *Store) read(ctx context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v, found, err := s.kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if found {
			values[k] = v
		}
	}
	return values, nil
}

// removeAll attempts every removal and returns the first error.
func (s *Store) removeAll(ctx context.Context, keys []string) error {
	var firstErr error
	for _, k := range keys {
		if err := s.kv.Remove(ctx, k); err != nil {
			s.logger.Warn("session: remove failed", zap.String("key", k), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
