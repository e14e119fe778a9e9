// Package driven defines the driven ports of the synchronization core: the
// document store, its change feed, and the hosting-service write capability.
package driven

import (
	"context"
	"errors"

	"github.com/codeapprove/reviewsync/internal/domain/model"
)

// ErrNotFound is returned by store reads when the addressed document does
// not exist. Callers must be able to distinguish a missing document from one
// that exists with zero-valued fields.
var ErrNotFound = errors.New("document not found")

// ReviewStore defines the driven port for the review document collection.
//
// Every mutation appends a change event to the store's feed in the same
// transaction as the document write, so a successful mutation is guaranteed
// to be observed by the reconcilers.
type ReviewStore interface {
	Create(ctx context.Context, path model.ReviewPath, review model.Review) error
	Get(ctx context.Context, path model.ReviewPath) (*model.Review, error)

	// SetApproval records whether the given reviewer has approved. Ingestion
	// edge: called by the webhook layer, never by the reconcilers.
	SetApproval(ctx context.Context, path model.ReviewPath, login string, approved bool) error

	// SetChangesRequested sets or clears the sticky explicit change-request
	// marker. Ingestion edge.
	SetChangesRequested(ctx context.Context, path model.ReviewPath, requested bool) error

	// SetClosed closes or reopens the review. Once closed, status
	// recomputation is frozen.
	SetClosed(ctx context.Context, path model.ReviewPath, closed bool) error

	// UpdateStatus re-reads the review inside a transaction, applies compute
	// to the current state, and writes the status field only when the result
	// differs from the stored value. It returns the computed status and
	// whether a write (and therefore a change event) was produced.
	UpdateStatus(ctx context.Context, path model.ReviewPath, compute func(model.ReviewState) model.Status) (model.Status, bool, error)

	// IncrementUnresolved adjusts the unresolved counter by delta using an
	// atomic in-place increment, never a read-modify-write of the document.
	IncrementUnresolved(ctx context.Context, path model.ReviewPath, delta int) error

	// AddComment persists a comment under the review and, for non-draft
	// comments, advances state.last_comment monotonically.
	AddComment(ctx context.Context, path model.ReviewPath, comment model.Comment) error

	ListComments(ctx context.Context, path model.ReviewPath) ([]model.Comment, error)
}

// ThreadStore defines the driven port for the thread documents nested under
// a review.
type ThreadStore interface {
	Create(ctx context.Context, path model.ThreadPath, thread model.Thread) error
	Get(ctx context.Context, path model.ThreadPath) (*model.Thread, error)

	// SetResolved toggles the resolution state of a thread.
	SetResolved(ctx context.Context, path model.ThreadPath, resolved bool) error

	// SetDraft publishes or unpublishes a thread. Draft threads are invisible
	// to unresolved accounting and external sync.
	SetDraft(ctx context.Context, path model.ThreadPath, draft bool) error

	List(ctx context.Context, path model.ReviewPath) ([]model.Thread, error)
}
