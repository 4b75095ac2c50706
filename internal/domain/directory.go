package domain

import (
	"strings"
	"time"
)

// ============================================================
// Roles
// ============================================================

// Role is the closed set of roles a directory user may hold.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleGerente     Role = "gerente"
	RoleFuncionario Role = "funcionario"
	RolePrestador   Role = "prestador"
	RoleCliente     Role = "cliente"
)

// Roles lists every valid role, in display order.
var Roles = []Role{RoleAdmin, RoleGerente, RoleFuncionario, RolePrestador, RoleCliente}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole maps a backend-declared role onto the closed enum. The legacy
// "user" value maps to funcionario. Unknown values return false.
func ParseRole(s string) (Role, bool) {
	v := Role(strings.ToLower(strings.TrimSpace(s)))
	if v == "user" {
		return RoleFuncionario, true
	}
	return v, v.Valid()
}

// RoleFromUsername is the heuristic used when the backend declares no role.
func RoleFromUsername(username string) Role {
	switch strings.ToLower(username) {
	case "admin":
		return RoleAdmin
	case "gerente":
		return RoleGerente
	default:
		return RoleFuncionario
	}
}

// ============================================================
// Company & Directory users (CRM)
// ============================================================

// Company is a tenant identified by its canonical CNPJ.
type Company struct {
	CNPJ         string `json:"cnpj"`
	RazaoSocial  string `json:"razaoSocial"`
	NomeFantasia string `json:"nomeFantasia,omitempty"`
	Active       bool   `json:"active"`
}

// DirectoryUser is one account scoped to a company.
type DirectoryUser struct {
	ID            string    `json:"id"`
	CompanyCNPJ   string    `json:"companyCnpj"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	Role          Role      `json:"role"`
	Active        bool      `json:"active"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	AddressNumber string    `json:"addressNumber,omitempty"`
	PhotoURL      string    `json:"photoURL,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RegisterUserRequest creates a directory user.
type RegisterUserRequest struct {
	CompanyCNPJ   string `json:"cnpj"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	DisplayName   string `json:"displayName"`
	Role          Role   `json:"role"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	AddressNumber string `json:"addressNumber,omitempty"`
	PhotoURL      string `json:"photoURL,omitempty"`
}

// UserPatch holds the mutable fields of a directory user. Nil fields are
// left untouched; the username cannot be changed.
type UserPatch struct {
	DisplayName   *string `json:"displayName,omitempty"`
	Role          *Role   `json:"role,omitempty"`
	Active        *bool   `json:"active,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Address       *string `json:"address,omitempty"`
	AddressNumber *string `json:"addressNumber,omitempty"`
	PhotoURL      *string `json:"photoURL,omitempty"`
	Password      *string `json:"password,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *UserPatch) Empty() bool {
	return p.DisplayName == nil && p.Role == nil && p.Active == nil && p.Email == nil &&
		p.Phone == nil && p.Address == nil && p.AddressNumber == nil && p.PhotoURL == nil &&
		p.Password == nil
}

// AccountCredential is a directory user plus the hash the account store
// keeps for it.
type AccountCredential struct {
	User         DirectoryUser
	PasswordHash string
}
