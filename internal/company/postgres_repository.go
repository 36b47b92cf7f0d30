package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new company record.
func (r *PostgresRepository) Create(ctx context.Context, c *Company) error {
	query := `
		INSERT INTO companies (name, active)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, c.Name, c.Active).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting company: %w", err)
	}

	return nil
}

// GetByID retrieves a single company by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	query := `
		SELECT id, name, active, created_at, updated_at
		FROM companies
		WHERE id = $1`

	var c Company
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying company: %w", err)
	}

	return &c, nil
}

// List retrieves all companies ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Company, error) {
	query := `
		SELECT id, name, active, created_at, updated_at
		FROM companies
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning company row: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating company rows: %w", err)
	}

	if companies == nil {
		companies = []Company{}
	}

	return companies, nil
}

// SetActive updates the active flag of a company.
func (r *PostgresRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE companies SET active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("updating company: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
