package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/zillo-assist-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// IdentityBackend implementation
// ============================================================

// IdentifyCompany reports whether an active company with this CNPJ exists.
func (c *Client) IdentifyCompany(ctx context.Context, cnpj string) (*domain.IdentifyResult, error) {
	ctx, span := tracer.Start(ctx, "Supabase.IdentifyCompany")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	var row *companyRow
	err := c.call(ctx, func() error {
		path := fmt.Sprintf("rest/v1/companies?%s&select=cnpj,razao_social,nome_fantasia,active&limit=1", eq("cnpj", cnpj))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		row, err = decodeFirst[companyRow](body, "companies")
		return err
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	if row == nil || (row.Active != nil && !*row.Active) {
		return &domain.IdentifyResult{Exists: false}, nil
	}
	return &domain.IdentifyResult{Exists: true, Company: row.toDomain()}, nil
}

// CheckUsername reports whether an active user with this username exists in the company.
func (c *Client) CheckUsername(ctx context.Context, cnpj, username string) (*domain.CheckUserResult, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CheckUsername")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	var row *userRow
	err := c.call(ctx, func() error {
		path := fmt.Sprintf("rest/v1/company_users?%s&%s&deleted_at=is.null&select=%s&limit=1",
			eq("company_cnpj", cnpj), eq("username", username), userColumns)
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		row, err = decodeFirst[userRow](body, "company_users")
		return err
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	if row == nil || (row.Active != nil && !*row.Active) {
		return &domain.CheckUserResult{Exists: false}, nil
	}
	user := row.toDomain()
	return &domain.CheckUserResult{Exists: true, User: &user}, nil
}

// Authenticate calls the login_company_user RPC. A rejection with a
// message from the backend is returned as a token-less result, not an error.
func (c *Client) Authenticate(ctx context.Context, cnpj, username, password string) (*domain.AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Authenticate")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	var row loginRow
	err := c.call(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodPost, "rest/v1/rpc/login_company_user", map[string]any{
			"p_cnpj":     cnpj,
			"p_username": username,
			"p_password": password,
		})
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &row); err != nil {
			return fmt.Errorf("decode login_company_user: %w", err)
		}
		return nil
	})

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		return &domain.AuthResult{Message: apiErr.Message}, nil
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	result := &domain.AuthResult{
		Token:     row.Token,
		UserName:  row.UserName,
		UserEmail: row.UserEmail,
		UserRole:  row.UserRole,
		Message:   row.Message,
	}
	if row.Company != nil {
		result.Company = row.Company.toDomain()
	}
	if row.User != nil {
		user := row.User.toDomain()
		result.User = &user
	}
	return result, nil
}

// RecoverPassword asks Supabase Auth to send a recovery email.
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "Supabase.RecoverPassword")
	defer span.End()

	err := c.call(ctx, func() error {
		_, err := c.doRequest(ctx, http.MethodPost, "auth/v1/recover", map[string]string{"email": email})
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase", Err: err}
	}
	return nil
}
