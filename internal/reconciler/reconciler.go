// Package reconciler pushes the local active flag of recently changed users
// to the identity provider.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/everest/authsvc/internal/user"
)

const defaultBatchSize = 100

// EnabledSetter toggles an account in the identity provider.
type EnabledSetter interface {
	SetEnabled(ctx context.Context, externalID string, enabled bool) error
}

// Reconciler polls users updated since its last pass and re-applies their
// active flag in the identity provider.
type Reconciler struct {
	users     user.Repository
	idp       EnabledSetter
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	cursor user.Cursor
}

// New creates a new Reconciler. The first pass covers every user.
func New(users user.Repository, idp EnabledSetter, interval time.Duration) *Reconciler {
	return &Reconciler{
		users:     users,
		idp:       idp,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
}

// Start begins the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("reconciler started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile runs a single pass and returns the number of users pushed. The
// watermark only advances past users whose push succeeded, so a failed user
// is retried on the next pass.
func (r *Reconciler) Reconcile(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pushed := 0
	for ctx.Err() == nil {
		users, err := r.users.ListUpdatedSince(ctx, r.cursor, r.batchSize)
		if err != nil {
			slog.Error("reconciler: failed to list users", "since", r.cursor.UpdatedAt, "error", err)
			return pushed
		}

		for i := range users {
			u := &users[i]
			if err := r.idp.SetEnabled(ctx, u.ExternalID, u.Active); err != nil {
				slog.Warn("reconciler: failed to push active flag",
					"user", u.ID,
					"externalId", u.ExternalID,
					"error", err,
				)
				return pushed
			}
			r.cursor = user.CursorOf(u)
			pushed++
		}

		if len(users) < r.batchSize {
			break
		}
	}

	if pushed > 0 {
		slog.Info("reconciler: pushed active flags", "count", pushed)
	}
	return pushed
}
