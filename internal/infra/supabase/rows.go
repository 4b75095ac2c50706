package supabase

import (
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
)

const userColumns = "id,company_cnpj,username,display_name,role,active,email,phone,address,address_number,photo_url,created_at"

type companyRow struct {
	CNPJ         string `json:"cnpj"`
	RazaoSocial  string `json:"razao_social"`
	NomeFantasia string `json:"nome_fantasia"`
	Active       *bool  `json:"active"`
}

func (r *companyRow) toDomain() *domain.Company {
	return &domain.Company{
		CNPJ:         r.CNPJ,
		RazaoSocial:  r.RazaoSocial,
		NomeFantasia: r.NomeFantasia,
		Active:       r.Active == nil || *r.Active,
	}
}

type userRow struct {
	ID            string `json:"id"`
	CompanyCNPJ   string `json:"company_cnpj"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Role          string `json:"role"`
	Active        *bool  `json:"active"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	AddressNumber string `json:"address_number"`
	PhotoURL      string `json:"photo_url"`
	CreatedAt     string `json:"created_at"`
}

func (r *userRow) toDomain() domain.DirectoryUser {
	role, ok := domain.ParseRole(r.Role)
	if !ok {
		role = domain.Role(r.Role)
	}
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.DirectoryUser{
		ID:            r.ID,
		CompanyCNPJ:   r.CompanyCNPJ,
		Username:      r.Username,
		DisplayName:   r.DisplayName,
		Role:          role,
		Active:        r.Active == nil || *r.Active,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		AddressNumber: r.AddressNumber,
		PhotoURL:      r.PhotoURL,
		CreatedAt:     createdAt,
	}
}

// loginRow is the answer of the login_company_user RPC.
type loginRow struct {
	Token     string      `json:"token"`
	UserName  string      `json:"user_name"`
	UserEmail string      `json:"user_email"`
	UserRole  string      `json:"user_role"`
	Message   string      `json:"message"`
	Company   *companyRow `json:"company"`
	User      *userRow    `json:"user"`
}

// patchColumns maps a directory patch onto company_users columns.
// The password is not a column; it goes through its own RPC.
func patchColumns(p *domain.UserPatch) map[string]any {
	cols := make(map[string]any)
	if p.DisplayName != nil {
		cols["display_name"] = *p.DisplayName
	}
	if p.Role != nil {
		cols["role"] = string(*p.Role)
	}
	if p.Active != nil {
		cols["active"] = *p.Active
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.Phone != nil {
		cols["phone"] = *p.Phone
	}
	if p.Address != nil {
		cols["address"] = *p.Address
	}
	if p.AddressNumber != nil {
		cols["address_number"] = *p.AddressNumber
	}
	if p.PhotoURL != nil {
		cols["photo_url"] = *p.PhotoURL
	}
	return cols
}
