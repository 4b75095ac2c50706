package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// DirectoryBackend implementation (CRM panel)
// ============================================================

// ListCompanyUsers returns every non-deleted user of the company, oldest first.
func (c *Client) ListCompanyUsers(ctx context.Context, cnpj string) ([]domain.DirectoryUser, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCompanyUsers")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	var rows []userRow
	err := c.call(ctx, func() error {
		path := fmt.Sprintf("rest/v1/company_users?%s&deleted_at=is.null&select=%s&order=created_at.asc",
			eq("company_cnpj", cnpj), userColumns)
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		rows = nil
		if len(body) == 0 {
			return nil
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, backendError("list users", err)
	}

	users := make([]domain.DirectoryUser, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toDomain())
	}
	return users, nil
}

// RegisterUser creates a user through the register_company_user RPC, which
// hashes the password server-side. Returns the new user's id.
func (c *Client) RegisterUser(ctx context.Context, req *domain.RegisterUserRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RegisterUser")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", req.CompanyCNPJ))

	var id string
	err := c.call(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodPost, "rest/v1/rpc/register_company_user", map[string]any{
			"p_cnpj":           req.CompanyCNPJ,
			"p_username":       req.Username,
			"p_password":       req.Password,
			"p_display_name":   req.DisplayName,
			"p_role":           string(req.Role),
			"p_email":          req.Email,
			"p_phone":          req.Phone,
			"p_address":        req.Address,
			"p_address_number": req.AddressNumber,
			"p_photo_url":      req.PhotoURL,
		})
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return fmt.Errorf("register_company_user returned no id")
		}
		return json.Unmarshal(body, &id)
	})
	if err != nil {
		return "", backendError("register user", err)
	}
	return id, nil
}

// UpdateUser applies the patch and returns the updated row.
func (c *Client) UpdateUser(ctx context.Context, cnpj, userID string, patch *domain.UserPatch) (*domain.DirectoryUser, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj), attribute.String("user.id", userID))

	if patch.Password != nil {
		err := c.call(ctx, func() error {
			_, err := c.doRequest(ctx, http.MethodPost, "rest/v1/rpc/set_company_user_password", map[string]any{
				"p_cnpj":     cnpj,
				"p_user_id":  userID,
				"p_password": *patch.Password,
			})
			return err
		})
		if err != nil {
			return nil, backendError("update user", err)
		}
	}

	cols := patchColumns(patch)
	method := http.MethodPatch
	var payload any = cols
	if len(cols) == 0 {
		method, payload = http.MethodGet, nil
	}

	var row *userRow
	err := c.call(ctx, func() error {
		path := fmt.Sprintf("rest/v1/company_users?%s&%s&deleted_at=is.null&select=%s",
			eq("id", userID), eq("company_cnpj", cnpj), userColumns)
		body, err := c.doRequest(ctx, method, path, payload)
		if err != nil {
			return err
		}
		row, err = decodeFirst[userRow](body, "company_users")
		return err
	})
	if err != nil {
		return nil, backendError("update user", err)
	}
	if row == nil {
		return nil, &domain.ErrBackend{Operation: "update user", Message: "Usuário não encontrado"}
	}

	user := row.toDomain()
	return &user, nil
}

// DeleteUser soft-removes a user: the row is deactivated and stamped.
func (c *Client) DeleteUser(ctx context.Context, cnpj, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj), attribute.String("user.id", userID))

	var row *userRow
	err := c.call(ctx, func() error {
		path := fmt.Sprintf("rest/v1/company_users?%s&%s&deleted_at=is.null&select=%s",
			eq("id", userID), eq("company_cnpj", cnpj), userColumns)
		body, err := c.doRequest(ctx, http.MethodPatch, path, map[string]any{
			"active":     false,
			"deleted_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		row, err = decodeFirst[userRow](body, "company_users")
		return err
	})
	if err != nil {
		return backendError("delete user", err)
	}
	if row == nil {
		return &domain.ErrBackend{Operation: "delete user", Message: "Usuário não encontrado"}
	}
	return nil
}

func backendError(op string, err error) error {
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		return open
	}
	return &domain.ErrBackend{Operation: op, Message: err.Error(), Err: err}
}
