package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrTenantNotFound signals that no tenant matches the lookup.
	ErrTenantNotFound = errors.New("tenant: not found")
	// ErrDuplicateName signals that the tenant name is already provisioned.
	ErrDuplicateName = errors.New("tenant: name already exists")
)

// Repository handles data access for tenant identities.
type Repository interface {
	CreateTenant(ctx context.Context, params CreateTenantParams) (Tenant, error)
	GetTenantByName(ctx context.Context, name string) (Tenant, error)
	GetTenantByID(ctx context.Context, tenantID string) (Tenant, error)
}

// CreateTenantParams contains write parameters for provisioning tenants.
type CreateTenantParams struct {
	Name       string
	SecretHash string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed tenant repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateTenant inserts a new tenant with a hashed shared secret.
func (r *PGRepository) CreateTenant(ctx context.Context, params CreateTenantParams) (Tenant, error) {
	const insertSQL = `
		INSERT INTO tenants (name, secret_hash)
		VALUES ($1, $2)
		RETURNING id, name, secret_hash, created_at
	`

	t, err := scanTenant(r.pool.QueryRow(ctx, insertSQL, params.Name, params.SecretHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, ErrDuplicateName
		}
		return Tenant{}, fmt.Errorf("tenant: create: %w", err)
	}

	return t, nil
}

// GetTenantByName retrieves a tenant by its unique name.
func (r *PGRepository) GetTenantByName(ctx context.Context, name string) (Tenant, error) {
	const selectSQL = `
		SELECT id, name, secret_hash, created_at
		FROM tenants
		WHERE name = $1
	`

	t, err := scanTenant(r.pool.QueryRow(ctx, selectSQL, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, fmt.Errorf("tenant: get by name: %w", err)
	}

	return t, nil
}

// GetTenantByID retrieves a tenant by its primary key.
func (r *PGRepository) GetTenantByID(ctx context.Context, tenantID string) (Tenant, error) {
	const selectSQL = `
		SELECT id, name, secret_hash, created_at
		FROM tenants
		WHERE id = $1
	`

	t, err := scanTenant(r.pool.QueryRow(ctx, selectSQL, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, fmt.Errorf("tenant: get by id: %w", err)
	}

	return t, nil
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.SecretHash, &t.CreatedAt)
	if err != nil {
		return Tenant{}, err
	}
	return t, nil
}
