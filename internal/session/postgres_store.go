package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the session in a PostgreSQL table. Useful when
// several tools on one host should share a wallet session.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const sessionKey = "default"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS wallet_sessions (
    key TEXT PRIMARY KEY,
    address TEXT NOT NULL,
    token TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Load(ctx context.Context) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
SELECT address, token, updated_at
FROM wallet_sessions
WHERE key = $1
`, sessionKey)

	var rec Record
	if err := row.Scan(&rec.Address, &rec.Token, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresStore) Save(ctx context.Context, record Record) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO wallet_sessions (key, address, token, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE
SET address = EXCLUDED.address,
    token = EXCLUDED.token,
    updated_at = EXCLUDED.updated_at
`, sessionKey, record.Address, record.Token, record.UpdatedAt)
	return err
}

func (p *PostgresStore) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM wallet_sessions WHERE key = $1`, sessionKey)
	return err
}
