package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"
	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var _ port.AccountStore = (*AccountStore)(nil)

const userSelect = `
	SELECT id::text, company_cnpj, username, display_name, role, active, email, phone,
	       address, address_number, photo_url, created_at, password_hash
	FROM company_users`

// AccountStore implements port.AccountStore over PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
	cost int
}

// NewAccountStore builds the store. cost is the bcrypt cost for new passwords.
func NewAccountStore(pool *pgxpool.Pool, cost int) *AccountStore {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &AccountStore{pool: pool, cost: cost}
}

// Ping checks the database answers.
func (s *AccountStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertCompany inserts the company or refreshes its fields.
func (s *AccountStore) UpsertCompany(ctx context.Context, c domain.Company) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO companies (cnpj, razao_social, nome_fantasia, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cnpj) DO UPDATE
		SET razao_social = EXCLUDED.razao_social, nome_fantasia = EXCLUDED.nome_fantasia, active = EXCLUDED.active`,
		cnpj.Normalize(c.CNPJ), c.RazaoSocial, c.NomeFantasia, c.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert company: %w", err)
	}
	return nil
}

// GetCompany returns the company or nil.
func (s *AccountStore) GetCompany(ctx context.Context, companyCNPJ string) (*domain.Company, error) {
	var c domain.Company
	err := s.pool.QueryRow(ctx,
		`SELECT cnpj, razao_social, nome_fantasia, active FROM companies WHERE cnpj = $1`,
		cnpj.Normalize(companyCNPJ),
	).Scan(&c.CNPJ, &c.RazaoSocial, &c.NomeFantasia, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// GetCredential returns the user and its hash, or nil.
func (s *AccountStore) GetCredential(ctx context.Context, companyCNPJ, username string) (*domain.AccountCredential, error) {
	row := s.pool.QueryRow(ctx, userSelect+` WHERE company_cnpj = $1 AND lower(username) = lower($2)`,
		cnpj.Normalize(companyCNPJ), username)
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

// FindUserByEmail returns the first user with this email, or nil.
func (s *AccountStore) FindUserByEmail(ctx context.Context, email string) (*domain.DirectoryUser, error) {
	row := s.pool.QueryRow(ctx, userSelect+` WHERE lower(email) = lower($1) AND email <> '' LIMIT 1`, email)
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &cred.User, nil
}

// ListCompanyUsers returns the company's users, oldest first.
func (s *AccountStore) ListCompanyUsers(ctx context.Context, companyCNPJ string) ([]domain.DirectoryUser, error) {
	rows, err := s.pool.Query(ctx, userSelect+` WHERE company_cnpj = $1 ORDER BY created_at ASC`, cnpj.Normalize(companyCNPJ))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.DirectoryUser, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, cred.User)
	}
	return users, rows.Err()
}

// RegisterUser hashes the password and inserts an active user.
func (s *AccountStore) RegisterUser(ctx context.Context, req *domain.RegisterUserRequest) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO company_users (id, company_cnpj, username, display_name, role, email, phone,
		                           address, address_number, photo_url, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, cnpj.Normalize(req.CompanyCNPJ), req.Username, req.DisplayName, string(req.Role),
		req.Email, req.Phone, req.Address, req.AddressNumber, req.PhotoURL, string(hash),
	)
	if err != nil {
		switch pgCode(err) {
		case "23505":
			return "", &domain.ErrConflict{Message: "Usuário já existe para esta empresa"}
		case "23503":
			return "", &domain.ErrNotFound{Resource: "company", ID: req.CompanyCNPJ}
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UpdateUser applies the non-nil patch fields and returns the updated user.
func (s *AccountStore) UpdateUser(ctx context.Context, companyCNPJ, userID string, patch *domain.UserPatch) (*domain.DirectoryUser, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}

	sets := make([]string, 0, 9)
	args := []any{userID, cnpj.Normalize(companyCNPJ)}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.Active != nil {
		add("active", *patch.Active)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.AddressNumber != nil {
		add("address_number", *patch.AddressNumber)
	}
	if patch.PhotoURL != nil {
		add("photo_url", *patch.PhotoURL)
	}
	if patch.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.cost)
		if err != nil {
			return nil, err
		}
		add("password_hash", string(hash))
	}

	var row pgx.Row
	if len(sets) == 0 {
		row = s.pool.QueryRow(ctx, userSelect+` WHERE id = $1 AND company_cnpj = $2`, args...)
	} else {
		query := `UPDATE company_users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND company_cnpj = $2
			RETURNING id::text, company_cnpj, username, display_name, role, active, email, phone,
			          address, address_number, photo_url, created_at, password_hash`
		row = s.pool.QueryRow(ctx, query, args...)
	}

	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &cred.User, nil
}

// DeleteUser removes the user from the company.
func (s *AccountStore) DeleteUser(ctx context.Context, companyCNPJ, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM company_users WHERE id = $1 AND company_cnpj = $2`,
		userID, cnpj.Normalize(companyCNPJ))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return nil
}

func scanCredential(row pgx.Row) (*domain.AccountCredential, error) {
	var cred domain.AccountCredential
	var role string
	u := &cred.User
	err := row.Scan(&u.ID, &u.CompanyCNPJ, &u.Username, &u.DisplayName, &role, &u.Active, &u.Email,
		&u.Phone, &u.Address, &u.AddressNumber, &u.PhotoURL, &u.CreatedAt, &cred.PasswordHash)
	if err != nil {
		return nil, err
	}
	if parsed, ok := domain.ParseRole(role); ok {
		u.Role = parsed
	} else {
		u.Role = domain.Role(role)
	}
	return &cred, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
