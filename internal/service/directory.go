package service

import (
	"context"
	"errors"
	"strings"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"
	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var directoryTracer = otel.Tracer("service/directory")

// DirectoryService manages a company's users for the CRM panel. Every
// operation validates the CNPJ before touching the backend. Backend
// failures are returned as ErrBackend with the backend's own message; there
// is no fallback.
type DirectoryService struct {
	backend port.DirectoryBackend
	logger  *zap.Logger
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(backend port.DirectoryBackend, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{backend: backend, logger: logger}
}

// ListUsers returns the company's users.
func (s *DirectoryService) ListUsers(ctx context.Context, companyCNPJ string) ([]domain.DirectoryUser, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.ListUsers")
	defer span.End()

	canonical, err := requireCNPJ(companyCNPJ)
	if err != nil {
		return nil, err
	}

	users, err := s.backend.ListCompanyUsers(ctx, canonical)
	if err != nil {
		return nil, s.backendError("list users", err)
	}
	return users, nil
}

// RegisterUser creates a user and returns its id.
func (s *DirectoryService) RegisterUser(ctx context.Context, req *domain.RegisterUserRequest) (string, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.RegisterUser")
	defer span.End()

	canonical, err := requireCNPJ(req.CompanyCNPJ)
	if err != nil {
		return "", err
	}

	clean := *req
	clean.CompanyCNPJ = canonical
	clean.Username = strings.TrimSpace(req.Username)
	if clean.Username == "" {
		return "", &domain.ErrValidation{Field: "username", Message: "Informe o usuário."}
	}
	if clean.Password == "" {
		return "", &domain.ErrValidation{Field: "password", Message: "Informe a senha."}
	}
	if !clean.Role.Valid() {
		return "", &domain.ErrValidation{Field: "role", Message: "Perfil inválido."}
	}
	if clean.DisplayName == "" {
		clean.DisplayName = clean.Username
	}

	id, err := s.backend.RegisterUser(ctx, &clean)
	if err != nil {
		return "", s.backendError("register user", err)
	}

	s.logger.Info("directory: user registered",
		zap.String("cnpj", canonical),
		zap.String("user_id", id),
		zap.String("role", string(clean.Role)),
	)
	return id, nil
}

// UpdateUser applies patch to the user. The username is not patchable.
func (s *DirectoryService) UpdateUser(ctx context.Context, companyCNPJ, userID string, patch *domain.UserPatch) (*domain.DirectoryUser, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.UpdateUser")
	defer span.End()

	canonical, err := requireCNPJ(companyCNPJ)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "Usuário não informado."}
	}
	if patch == nil || patch.Empty() {
		return nil, &domain.ErrValidation{Field: "patch", Message: "Nenhuma alteração informada."}
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: "Perfil inválido."}
	}
	if patch.Password != nil && *patch.Password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "Informe a senha."}
	}

	user, err := s.backend.UpdateUser(ctx, canonical, userID, patch)
	if err != nil {
		return nil, s.backendError("update user", err)
	}
	return user, nil
}

// DeleteUser removes the user from the company.
func (s *DirectoryService) DeleteUser(ctx context.Context, companyCNPJ, userID string) error {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.DeleteUser")
	defer span.End()

	canonical, err := requireCNPJ(companyCNPJ)
	if err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return &domain.ErrValidation{Field: "id", Message: "Usuário não informado."}
	}

	if err := s.backend.DeleteUser(ctx, canonical, userID); err != nil {
		return s.backendError("delete user", err)
	}

	s.logger.Info("directory: user deleted", zap.String("cnpj", canonical), zap.String("user_id", userID))
	return nil
}

func requireCNPJ(raw string) (string, error) {
	if !cnpj.Validate(raw) {
		return "", &domain.ErrValidation{Field: "cnpj", Message: "CNPJ inválido."}
	}
	return cnpj.Normalize(raw), nil
}

// backendError keeps the backend's message verbatim.
func (s *DirectoryService) backendError(op string, err error) error {
	s.logger.Warn("directory: backend error", zap.String("operation", op), zap.Error(err))

	var be *domain.ErrBackend
	if errors.As(err, &be) {
		return be
	}
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		return open
	}
	return &domain.ErrBackend{Operation: op, Message: err.Error(), Err: err}
}

// ============================================================
// Status colors (CRM badges)
// ============================================================

// Color is the badge color the CRM panel shows for a user.
type Color string

const (
	ColorAdmin       Color = "purple"
	ColorGerente     Color = "blue"
	ColorFuncionario Color = "green"
	ColorPrestador   Color = "orange"
	ColorCliente     Color = "teal"
	ColorInactive    Color = "gray"
	ColorUnknown     Color = "unknown"
)

// StatusColor maps a user onto its badge color. Inactive users are gray
// regardless of role; unrecognized roles map to ColorUnknown.
func StatusColor(u domain.DirectoryUser) Color {
	if !u.Active {
		return ColorInactive
	}
	switch u.Role {
	case domain.RoleAdmin:
		return ColorAdmin
	case domain.RoleGerente:
		return ColorGerente
	case domain.RoleFuncionario:
		return ColorFuncionario
	case domain.RolePrestador:
		return ColorPrestador
	case domain.RoleCliente:
		return ColorCliente
	default:
		return ColorUnknown
	}
}
