package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// ThreadReconciler reacts to thread document writes and keeps the parent
// review's unresolved counter in step with thread resolution state.
type ThreadReconciler struct {
	reviews driven.ReviewStore
}

// NewThreadReconciler creates a ThreadReconciler.
func NewThreadReconciler(reviews driven.ReviewStore) *ThreadReconciler {
	return &ThreadReconciler{reviews: reviews}
}

// Reconcile applies one thread change. The delta is the difference in
// whether the thread counts as unresolved before and after the write, so an
// unrelated field edit (or any change on a draft thread) is a no-op, while a
// resolution flip or the creation of an open thread adjusts the counter by
// exactly one. The adjustment is an atomic increment on the review document;
// the resulting review write re-triggers the review reconciler, which is the
// intended propagation path.
func (r *ThreadReconciler) Reconcile(ctx context.Context, change driven.ThreadChange) error {
	if change.After == nil {
		slog.Debug("ignoring thread deletion", "path", change.Path.String())
		return nil
	}

	var before, after int
	if t := change.Before; t != nil && t.CountsAsUnresolved() {
		before = 1
	}
	if change.After.CountsAsUnresolved() {
		after = 1
	}

	delta := after - before
	if delta == 0 {
		return nil
	}

	slog.Info("adjusting unresolved count",
		"path", change.Path.String(),
		"thread", change.After.ID,
		"delta", delta,
	)

	if err := r.reviews.IncrementUnresolved(ctx, change.Path.ReviewPath, delta); err != nil {
		return fmt.Errorf("adjust unresolved for %s: %w", change.Path.ReviewPath, err)
	}
	return nil
}
