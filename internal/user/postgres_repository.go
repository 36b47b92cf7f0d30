package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/everest/authsvc/internal/role"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so the repository can
// take part in a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	db DBTX
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{db: pool}
}

// WithTx returns a repository whose statements run inside tx.
func WithTx(tx pgx.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

const selectColumns = `
		SELECT id, external_id, username, email, role, company_id,
		       email_verified, active, created_at, updated_at
		FROM users`

// GetByID retrieves a single user by its local UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanOne(ctx, selectColumns+` WHERE id = $1`, id)
}

// GetByExternalID retrieves a single user by its identity provider subject.
func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return r.scanOne(ctx, selectColumns+` WHERE external_id = $1`, externalID)
}

// Save upserts the user keyed by ID. A zero ID is replaced with a new UUID.
func (r *PostgresRepository) Save(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, external_id, username, email, role, company_id,
		                   email_verified, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			username       = EXCLUDED.username,
			email          = EXCLUDED.email,
			role           = EXCLUDED.role,
			company_id     = EXCLUDED.company_id,
			email_verified = EXCLUDED.email_verified,
			active         = EXCLUDED.active,
			updated_at     = EXCLUDED.updated_at
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		u.ID,
		u.ExternalID,
		u.Username,
		u.Email,
		string(u.Role),
		u.CompanyID,
		u.EmailVerified,
		u.Active,
		u.UpdatedAt,
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("saving user: %w", err)
	}

	return nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and saves it in
// one transaction. Inside a caller's transaction this runs as a savepoint.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fn func(*User) error) (*User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked := WithTx(tx)
	u, err := locked.scanOne(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	if err := locked.Save(ctx, u); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing user update: %w", err)
	}
	return u, nil
}

// ListByCompany returns the users assigned to companyID ordered by creation time.
func (r *PostgresRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]User, error) {
	return r.scanMany(ctx, selectColumns+` WHERE company_id = $1 ORDER BY created_at ASC`, companyID)
}

// ListUpdatedSince returns at most limit users positioned after the cursor.
func (r *PostgresRepository) ListUpdatedSince(ctx context.Context, after Cursor, limit int) ([]User, error) {
	if limit < 1 {
		limit = 100
	}
	return r.scanMany(ctx, selectColumns+`
		WHERE (updated_at, id) > ($1, $2)
		ORDER BY updated_at ASC, id ASC
		LIMIT $3`, after.UpdatedAt, after.ID, limit)
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) scanMany(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	if users == nil {
		users = []User{}
	}

	return users, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u       User
		roleStr string
	)
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Username, &u.Email, &roleStr, &u.CompanyID,
		&u.EmailVerified, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = role.Role(roleStr)
	return &u, nil
}
