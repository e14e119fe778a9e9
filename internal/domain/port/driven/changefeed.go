package driven

import (
	"context"

	"github.com/codeapprove/reviewsync/internal/domain/model"
)

// EventKind discriminates which document collection a change event came from.
type EventKind string

const (
	EventKindReview EventKind = "review"
	EventKindThread EventKind = "thread"
)

// ReviewChange carries the before/after snapshots of one review write.
// A nil Before means the document did not previously exist; a nil After
// means it was deleted.
type ReviewChange struct {
	Path   model.ReviewPath
	Before *model.Review
	After  *model.Review
}

// ThreadChange carries the before/after snapshots of one thread write.
// Nil pointers have the same meaning as on ReviewChange.
type ThreadChange struct {
	Path   model.ThreadPath
	Before *model.Thread
	After  *model.Thread
}

// Event is one document change delivered by the feed. Exactly one of Review
// and Thread is non-nil, matching Kind.
type Event struct {
	ID       int64
	Kind     EventKind
	Path     string
	Attempts int

	Review *ReviewChange
	Thread *ThreadChange
}

// ChangeFeed delivers document change events in write order, at least once.
//
// An event stays pending until acknowledged. Nack schedules redelivery with
// backoff; after the feed's attempt limit the event is parked as dead and no
// longer delivered. There is no exactly-once guarantee: a consumer that
// crashes between handling and Ack sees the event again.
type ChangeFeed interface {
	// Poll returns up to limit deliverable pending events in append order.
	Poll(ctx context.Context, limit int) ([]Event, error)

	Ack(ctx context.Context, id int64) error

	// Nack records a failed delivery attempt with its reason.
	Nack(ctx context.Context, id int64, reason string) error
}
