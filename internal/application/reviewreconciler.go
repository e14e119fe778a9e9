package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// ExternalSyncer propagates computed review state to the hosting service.
type ExternalSyncer interface {
	Sync(ctx context.Context, meta model.ReviewMetadata, state model.ReviewState, threads []model.Thread) error
}

// ReviewReconciler reacts to review document writes: it recomputes the
// aggregate status transactionally and propagates externally visible changes
// to the hosting service.
type ReviewReconciler struct {
	reviews driven.ReviewStore
	threads driven.ThreadStore
	syncer  ExternalSyncer
}

// NewReviewReconciler creates a ReviewReconciler.
func NewReviewReconciler(reviews driven.ReviewStore, threads driven.ThreadStore, syncer ExternalSyncer) *ReviewReconciler {
	return &ReviewReconciler{reviews: reviews, threads: threads, syncer: syncer}
}

// Reconcile applies one review change.
//
// Two guards keep the write-triggers-write loop finite. First, structurally
// equal before/after states short-circuit to a no-op: the reconciler's own
// status write differs only in status, so its follow-up invocation stops
// here. Second, the status recompute runs inside a store transaction that
// re-reads the document and writes only when the computed status differs, so
// a pass that changes nothing emits no event at all.
//
// External sync is decided against the trigger-time snapshot, not the
// rewritten state: it fires when the recomputed status differs from the
// status observed at trigger time, or when the write carried a new comment.
// A sync failure is returned to the dispatcher for redelivery; nothing is
// retried here.
func (r *ReviewReconciler) Reconcile(ctx context.Context, change driven.ReviewChange) error {
	if change.After == nil {
		slog.Debug("ignoring review deletion", "path", change.Path.String())
		return nil
	}
	after := change.After

	if change.Before != nil && model.StatesEqual(change.Before.State, after.State) {
		return nil
	}

	newStatus, wrote, err := r.reviews.UpdateStatus(ctx, change.Path, ComputeStatus)
	if err != nil {
		return fmt.Errorf("recompute status for %s: %w", change.Path, err)
	}
	if wrote {
		slog.Info("review status updated",
			"path", change.Path.String(),
			"from", after.State.Status,
			"to", newStatus,
		)
	}

	statusChanged := newStatus != after.State.Status
	hasNewComment := change.Before != nil && change.Before.State.LastComment.Before(after.State.LastComment)
	if !statusChanged && !hasNewComment {
		return nil
	}

	threads, err := r.threads.List(ctx, change.Path)
	if err != nil {
		return fmt.Errorf("list threads for %s: %w", change.Path, err)
	}

	state := after.State
	state.Status = newStatus

	if err := r.syncer.Sync(ctx, after.Metadata, state, threads); err != nil {
		return fmt.Errorf("external sync for %s: %w", change.Path, err)
	}
	return nil
}
