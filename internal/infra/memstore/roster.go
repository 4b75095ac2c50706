package memstore

import (
	"context"

	"github.com/boddenberg/zillo-assist-go/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// RosterCNPJ is the company every fresh roster knows about.
const RosterCNPJ = "11222333000181"

type rosterEntry struct {
	username, password, displayName, email string
	role                                   domain.Role
}

var rosterUsers = []rosterEntry{
	{"admin", "admin123", "Administrador", "admin@zillo.com.br", domain.RoleAdmin},
	{"gerente", "gerente123", "Gerente", "gerente@zillo.com.br", domain.RoleGerente},
	{"funcionario", "func123", "Funcionário", "funcionario@zillo.com.br", domain.RoleFuncionario},
}

// NewRoster returns the fixed local roster the auth client falls back to
// when no remote backend confirms a login step.
func NewRoster() *Store {
	s := New(bcrypt.MinCost)
	s.AddCompany(domain.Company{
		CNPJ:         RosterCNPJ,
		RazaoSocial:  "Zillo Assist Tecnologia Ltda",
		NomeFantasia: "Zillo Assist",
		Active:       true,
	})
	for _, e := range rosterUsers {
		// Cannot fail: the company exists and usernames are distinct.
		_, _ = s.RegisterUser(context.Background(), &domain.RegisterUserRequest{
			CompanyCNPJ: RosterCNPJ,
			Username:    e.username,
			Password:    e.password,
			DisplayName: e.displayName,
			Role:        e.role,
			Email:       e.email,
		})
	}
	return s
}
