package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"
	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var identityTracer = otel.Tracer("service/identity")

// JWTClaims are the claims carried by tokens this service mints.
type JWTClaims struct {
	CNPJ     string `json:"cnpj"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AccountIdentity answers the four auth questions from an AccountStore.
// It backs both the local roster fallback and the served /api/auth/* routes.
type AccountIdentity struct {
	store     port.AccountStore
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

var _ port.IdentityBackend = (*AccountIdentity)(nil)

// NewAccountIdentity creates the identity service.
func NewAccountIdentity(store port.AccountStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AccountIdentity {
	return &AccountIdentity{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
		logger:    logger,
	}
}

// IdentifyCompany reports whether an active company with this CNPJ exists.
func (a *AccountIdentity) IdentifyCompany(ctx context.Context, companyCNPJ string) (*domain.IdentifyResult, error) {
	ctx, span := identityTracer.Start(ctx, "AccountIdentity.IdentifyCompany")
	defer span.End()

	companyCNPJ = cnpj.Normalize(companyCNPJ)
	span.SetAttributes(attribute.String("company.cnpj", companyCNPJ))

	company, err := a.store.GetCompany(ctx, companyCNPJ)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil || !company.Active {
		return &domain.IdentifyResult{Exists: false}, nil
	}
	return &domain.IdentifyResult{Exists: true, Company: company}, nil
}

// CheckUsername reports whether an active user exists in the company.
func (a *AccountIdentity) CheckUsername(ctx context.Context, companyCNPJ, username string) (*domain.CheckUserResult, error) {
	ctx, span := identityTracer.Start(ctx, "AccountIdentity.CheckUsername")
	defer span.End()

	cred, err := a.store.GetCredential(ctx, cnpj.Normalize(companyCNPJ), strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred == nil || !cred.User.Active {
		return &domain.CheckUserResult{Exists: false}, nil
	}
	user := cred.User
	return &domain.CheckUserResult{Exists: true, User: &user}, nil
}

// Authenticate verifies the password and mints a token. Unknown, inactive
// or wrong-password logins yield a token-less result, never an error.
func (a *AccountIdentity) Authenticate(ctx context.Context, companyCNPJ, username, password string) (*domain.AuthResult, error) {
	ctx, span := identityTracer.Start(ctx, "AccountIdentity.Authenticate")
	defer span.End()

	companyCNPJ = cnpj.Normalize(companyCNPJ)
	span.SetAttributes(attribute.String("company.cnpj", companyCNPJ))

	company, err := a.store.GetCompany(ctx, companyCNPJ)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	cred, err := a.store.GetCredential(ctx, companyCNPJ, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if company == nil || !company.Active || cred == nil || !cred.User.Active {
		return &domain.AuthResult{Message: invalidCredentials}, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		a.logger.Info("identity: wrong password",
			zap.String("cnpj", companyCNPJ),
			zap.String("username", cred.User.Username),
		)
		return &domain.AuthResult{Message: invalidCredentials}, nil
	}

	token, err := a.signToken(&cred.User)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	user := cred.User
	name := user.DisplayName
	if name == "" {
		name = user.Username
	}
	return &domain.AuthResult{
		Token:     token,
		UserName:  name,
		UserEmail: user.Email,
		UserRole:  string(user.Role),
		Company:   company,
		User:      &user,
	}, nil
}

// RecoverPassword looks the email up and logs the request. It always
// succeeds so callers cannot learn whether the account exists.
func (a *AccountIdentity) RecoverPassword(ctx context.Context, email string) error {
	ctx, span := identityTracer.Start(ctx, "AccountIdentity.RecoverPassword")
	defer span.End()

	user, err := a.store.FindUserByEmail(ctx, strings.TrimSpace(email))
	switch {
	case err != nil:
		a.logger.Warn("identity: recovery lookup failed", zap.Error(err))
	case user == nil:
		a.logger.Info("identity: recovery requested for unknown email")
	default:
		a.logger.Info("identity: recovery email queued",
			zap.String("cnpj", user.CompanyCNPJ),
			zap.String("user_id", user.ID),
		)
	}
	return nil
}

// ValidateToken parses a token minted by this service.
func (a *AccountIdentity) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	return claims, nil
}

func (a *AccountIdentity) signToken(u *domain.DirectoryUser) (string, error) {
	now := a.now()
	claims := JWTClaims{
		CNPJ:     u.CompanyCNPJ,
		Username: u.Username,
		Role:     string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
			Issuer:    "zillo-assist",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}
