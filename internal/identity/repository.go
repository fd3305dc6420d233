package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists identities keyed by address.
type Repository interface {
	Create(ctx context.Context, id Identity) error
	FindByAddress(ctx context.Context, address string) (Identity, error)
}

// PostgresSchema creates the identities table.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS identities (
    address     TEXT PRIMARY KEY,
    label       TEXT NOT NULL DEFAULT '',
    secret_hash BYTEA NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);
`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the identities table if needed.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, PostgresSchema)
	return err
}

// Create inserts a new identity.
func (r *PostgresRepository) Create(ctx context.Context, id Identity) error {
	_, err := r.db.Exec(ctx, `INSERT INTO identities (address, label, secret_hash, created_at)
        VALUES ($1, $2, $3, $4)`, id.Address, id.Label, id.SecretHash, id.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrIdentityExists
	}
	return err
}

// FindByAddress fetches an identity by address.
func (r *PostgresRepository) FindByAddress(ctx context.Context, address string) (Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT address, label, secret_hash, created_at FROM identities WHERE address = $1`, address)
	var (
		id        Identity
		createdAt time.Time
	)
	if err := row.Scan(&id.Address, &id.Label, &id.SecretHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, err
	}
	id.CreatedAt = createdAt.UTC()
	return id, nil
}

// SQLiteSchema mirrors PostgresSchema.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS identities (
    address     TEXT PRIMARY KEY,
    label       TEXT NOT NULL DEFAULT '',
    secret_hash BLOB NOT NULL,
    created_at  TIMESTAMP NOT NULL
);
`

// SQLiteRepository stores identities next to the SQLite ledger.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository applies the identities schema to db.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, id Identity) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO identities (address, label, secret_hash, created_at)
        VALUES (?, ?, ?, ?)`, id.Address, id.Label, id.SecretHash, id.CreatedAt.UTC())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrIdentityExists
	}
	return err
}

func (r *SQLiteRepository) FindByAddress(ctx context.Context, address string) (Identity, error) {
	var id Identity
	err := r.db.QueryRowContext(ctx, `SELECT address, label, secret_hash, created_at FROM identities WHERE address = ?`,
		address).Scan(&id.Address, &id.Label, &id.SecretHash, &id.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, err
	}
	id.CreatedAt = id.CreatedAt.UTC()
	return id, nil
}
