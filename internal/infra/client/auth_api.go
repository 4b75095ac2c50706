// Package client holds HTTP clients for the thin REST auth fallback.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// rejection is a 4xx answer from the auth API, with its message if any.
type rejection struct {
	status  int
	message string
}

func (r *rejection) Error() string {
	if r.message != "" {
		return r.message
	}
	return fmt.Sprintf("auth API returned status %d", r.status)
}

// AuthAPIClient talks to the REST fallback (POST /api/auth/*).
type AuthAPIClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewAuthAPIClient creates a new AuthAPIClient.
func NewAuthAPIClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *AuthAPIClient {
	return &AuthAPIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

// post sends body as JSON to /api/auth/<endpoint> and decodes the answer into out.
func (c *AuthAPIClient) post(ctx context.Context, endpoint string, body, out any) error {
	return resilience.Call(ctx, c.cb, c.cfg, func() error {
		payload, err := json.Marshal(body)
		if err != nil {
			return resilience.Permanent(err)
		}

		url := fmt.Sprintf("%s/api/auth/%s", c.baseURL, endpoint)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			var msg struct {
				Message string `json:"message"`
				Error   string `json:"error"`
			}
			_ = json.Unmarshal(raw, &msg)
			text := msg.Message
			if text == "" {
				text = msg.Error
			}
			return resilience.Permanent(&rejection{status: resp.StatusCode, message: text})
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("auth API returned status %d", resp.StatusCode)
		}

		if out == nil || len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, out)
	})
}

// IdentifyCompany calls POST /api/auth/identify.
func (c *AuthAPIClient) IdentifyCompany(ctx context.Context, cnpj string) (*domain.IdentifyResult, error) {
	ctx, span := tracer.Start(ctx, "AuthAPIClient.IdentifyCompany")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	var result domain.IdentifyResult
	err := c.post(ctx, "identify", domain.IdentifyRequest{CNPJ: cnpj}, &result)
	if isNotFound(err) {
		return &domain.IdentifyResult{Exists: false}, nil
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "auth-api", Err: err}
	}
	return &result, nil
}

// CheckUsername calls POST /api/auth/check-user.
func (c *AuthAPIClient) CheckUsername(ctx context.Context, cnpj, username string) (*domain.CheckUserResult, error) {
	ctx, span := tracer.Start(ctx, "AuthAPIClient.CheckUsername")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	var result domain.CheckUserResult
	err := c.post(ctx, "check-user", domain.CheckUserRequest{CNPJ: cnpj, Username: username}, &result)
	if isNotFound(err) {
		return &domain.CheckUserResult{Exists: false}, nil
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "auth-api", Err: err}
	}
	return &result, nil
}

// Authenticate calls POST /api/auth/login. A 4xx answer becomes a token-less
// result carrying the API's message.
func (c *AuthAPIClient) Authenticate(ctx context.Context, cnpj, username, password string) (*domain.AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AuthAPIClient.Authenticate")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	var result domain.AuthResult
	err := c.post(ctx, "login", domain.LoginRequest{CNPJ: cnpj, Username: username, Password: password}, &result)

	var rej *rejection
	if errors.As(err, &rej) {
		return &domain.AuthResult{Message: rej.message}, nil
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "auth-api", Err: err}
	}
	return &result, nil
}

// RecoverPassword calls POST /api/auth/recover.
func (c *AuthAPIClient) RecoverPassword(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "AuthAPIClient.RecoverPassword")
	defer span.End()

	if err := c.post(ctx, "recover", domain.RecoverRequest{Email: email}, nil); err != nil {
		return &domain.ErrExternalService{Service: "auth-api", Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	var rej *rejection
	return errors.As(err, &rej) && rej.status == http.StatusNotFound
}
