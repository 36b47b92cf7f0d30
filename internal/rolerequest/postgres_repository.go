package rolerequest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/user"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const selectColumns = `
		SELECT id, user_id, requested_role, reason, status, reviewed_by,
		       review_notes, created_at, reviewed_at
		FROM role_requests`

const returningColumns = `
		RETURNING id, user_id, requested_role, reason, status, reviewed_by,
		          review_notes, created_at, reviewed_at`

// Create inserts a new pending role request.
func (r *PostgresRepository) Create(ctx context.Context, rr *RoleRequest) error {
	query := `
		INSERT INTO role_requests (user_id, requested_role, reason, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, status, created_at`

	var status string
	err := r.pool.QueryRow(ctx, query, rr.UserID, string(rr.RequestedRole), rr.Reason).
		Scan(&rr.ID, &status, &rr.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrActiveRequestExists
			case "23503":
				return fmt.Errorf("%w: %s", apperr.ErrUserNotFound, rr.UserID)
			}
		}
		return fmt.Errorf("inserting role request: %w", err)
	}
	rr.Status = Status(status)

	return nil
}

// GetByID retrieves a single role request by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*RoleRequest, error) {
	return r.scanOne(ctx, r.pool, selectColumns+` WHERE id = $1`, id)
}

// FindPendingByUser retrieves the pending request of userID.
func (r *PostgresRepository) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*RoleRequest, error) {
	return r.scanOne(ctx, r.pool, selectColumns+` WHERE user_id = $1 AND status = 'pending'`, userID)
}

// ListByUser retrieves every request made by userID, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]RoleRequest, error) {
	return r.scanMany(ctx, selectColumns+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// List retrieves requests filtered by status, oldest first.
func (r *PostgresRepository) List(ctx context.Context, status Status) ([]RoleRequest, error) {
	if status == "" {
		return r.scanMany(ctx, selectColumns+` ORDER BY created_at ASC`)
	}
	return r.scanMany(ctx, selectColumns+` WHERE status = $1 ORDER BY created_at ASC`, string(status))
}

// CountPending returns the number of pending requests.
func (r *PostgresRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_requests WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending role requests: %w", err)
	}
	return n, nil
}

// Resolve performs the guarded status update and the optional locked user
// update in one transaction.
func (r *PostgresRepository) Resolve(ctx context.Context, id uuid.UUID, review Review, applyToUser func(*user.User) error) (*RoleRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var notes *string
	if review.Notes != "" {
		notes = &review.Notes
	}

	query := `
		UPDATE role_requests
		SET status = $2, reviewed_by = $3, review_notes = $4, reviewed_at = $5
		WHERE id = $1 AND status = 'pending'` + returningColumns

	rr, err := r.scanOne(ctx, tx, query, id, string(review.Status), review.ReviewerID, notes, review.ReviewedAt)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("checking role request: %w", err)
		}
		if exists {
			return nil, ErrAlreadyProcessed
		}
		return nil, ErrNotFound
	}

	if applyToUser != nil {
		if _, err := user.WithTx(tx).Update(ctx, rr.UserID, applyToUser); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing review: %w", err)
	}

	return rr, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) scanOne(ctx context.Context, q querier, query string, args ...any) (*RoleRequest, error) {
	rr, err := scanRoleRequest(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying role request: %w", err)
	}
	return rr, nil
}

func (r *PostgresRepository) scanMany(ctx context.Context, query string, args ...any) ([]RoleRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing role requests: %w", err)
	}
	defer rows.Close()

	var requests []RoleRequest
	for rows.Next() {
		rr, err := scanRoleRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning role request row: %w", err)
		}
		requests = append(requests, *rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating role request rows: %w", err)
	}

	if requests == nil {
		requests = []RoleRequest{}
	}

	return requests, nil
}

func scanRoleRequest(row pgx.Row) (*RoleRequest, error) {
	var (
		rr            RoleRequest
		requestedRole string
		status        string
	)
	err := row.Scan(
		&rr.ID, &rr.UserID, &requestedRole, &rr.Reason, &status, &rr.ReviewerID,
		&rr.ReviewNotes, &rr.CreatedAt, &rr.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	rr.RequestedRole = role.Role(requestedRole)
	rr.Status = Status(status)
	return &rr, nil
}
