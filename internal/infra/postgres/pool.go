// Package postgres is the PostgreSQL account store behind the served REST
// auth fallback and the CRM directory.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx pool for databaseURL and checks it answers.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	cnpj          TEXT PRIMARY KEY,
	razao_social  TEXT NOT NULL,
	nome_fantasia TEXT NOT NULL DEFAULT '',
	active        BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS company_users (
	id             UUID PRIMARY KEY,
	company_cnpj   TEXT NOT NULL REFERENCES companies(cnpj) ON DELETE CASCADE,
	username       TEXT NOT NULL,
	display_name   TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	email          TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	address_number TEXT NOT NULL DEFAULT '',
	photo_url      TEXT NOT NULL DEFAULT '',
	password_hash  TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS company_users_username_idx
	ON company_users (company_cnpj, lower(username));
CREATE INDEX IF NOT EXISTS company_users_email_idx
	ON company_users (lower(email));
`

// Migrate creates the tables the account store needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
