package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// Dispatcher drains the change feed and routes each event to its reconciler.
// Events are processed serially in feed order, which preserves per-document
// write order; each invocation runs under a bounded timeout, and a
// failed invocation is Nacked so the feed redelivers it (at-least-once).
type Dispatcher struct {
	feed          driven.ChangeFeed
	reviews       *ReviewReconciler
	threads       *ThreadReconciler
	pollInterval  time.Duration
	invokeTimeout time.Duration
	batchSize     int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	feed driven.ChangeFeed,
	reviews *ReviewReconciler,
	threads *ThreadReconciler,
	pollInterval time.Duration,
	invokeTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		feed:          feed,
		reviews:       reviews,
		threads:       threads,
		pollInterval:  pollInterval,
		invokeTimeout: invokeTimeout,
		batchSize:     100,
	}
}

// Start runs the dispatch loop: an immediate drain, then a drain per poll
// interval. Start blocks until the context is canceled.
func (d *Dispatcher) Start(ctx context.Context) {
	if err := d.Drain(ctx); err != nil {
		slog.Error("initial drain failed", "error", err)
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				slog.Error("drain failed", "error", err)
			}
		}
	}
}

// Drain processes deliverable events until the feed reports none. Events
// Nacked during the drain become visible again only after the feed's retry
// delay, so a persistently failing event cannot spin this loop.
func (d *Dispatcher) Drain(ctx context.Context) error {
	for {
		events, err := d.feed.Poll(ctx, d.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := d.dispatch(ctx, ev); err != nil {
				slog.Error("reconcile failed",
					"event_id", ev.ID,
					"path", ev.Path,
					"attempts", ev.Attempts,
					"error", err,
				)
				if nackErr := d.feed.Nack(ctx, ev.ID, err.Error()); nackErr != nil {
					return nackErr
				}
				continue
			}

			if err := d.feed.Ack(ctx, ev.ID); err != nil {
				return err
			}
		}
	}
}

// dispatch routes one event to its reconciler under the invocation timeout.
func (d *Dispatcher) dispatch(ctx context.Context, ev driven.Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.invokeTimeout)
	defer cancel()

	switch ev.Kind {
	case driven.EventKindReview:
		return d.reviews.Reconcile(ctx, *ev.Review)
	case driven.EventKindThread:
		return d.threads.Reconcile(ctx, *ev.Thread)
	default:
		return fmt.Errorf("unroutable event kind %q", ev.Kind)
	}
}
