package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ ExternalSyncer = (*Syncer)(nil)

// Syncer builds the hosting-service review submission for a recomputed
// review and posts it through the HostWriter capability.
type Syncer struct {
	host driven.HostWriter
}

// NewSyncer creates a Syncer.
func NewSyncer(host driven.HostWriter) *Syncer {
	return &Syncer{host: host}
}

// Sync submits a formal review reflecting the given state: APPROVE when the
// status is approved, REQUEST_CHANGES otherwise. HostWriter errors are
// propagated unmodified; retry policy belongs to the dispatcher's
// redelivery, not here.
func (s *Syncer) Sync(ctx context.Context, meta model.ReviewMetadata, state model.ReviewState, threads []model.Thread) error {
	event := model.ReviewEventRequestChanges
	if state.Status == model.StatusApproved {
		event = model.ReviewEventApprove
	}

	body := buildReviewBody(state, threads)

	slog.Info("submitting review to hosting service",
		"repo", meta.Owner+"/"+meta.Repo,
		"number", meta.Number,
		"event", event,
	)

	return s.host.ReviewPullRequest(ctx, meta.Owner, meta.Repo, meta.Number, event, body)
}

// buildReviewBody renders the human-readable review body: the status
// headline, then the unresolved non-draft threads or a note that none
// remain, then the approval tally.
func buildReviewBody(state model.ReviewState, threads []model.Thread) string {
	var b strings.Builder

	switch state.Status {
	case model.StatusApproved:
		b.WriteString("Review approved.\n\n")
	case model.StatusChangesRequested:
		b.WriteString("Changes requested.\n\n")
	default:
		b.WriteString("Review pending.\n\n")
	}

	var unresolved []model.Thread
	for _, t := range threads {
		if t.CountsAsUnresolved() {
			unresolved = append(unresolved, t)
		}
	}

	if len(unresolved) == 0 {
		b.WriteString("All discussion threads are resolved.\n")
	} else {
		fmt.Fprintf(&b, "%d unresolved discussion thread(s):\n", len(unresolved))
		for _, t := range unresolved {
			fmt.Fprintf(&b, "- %s:%d (%s)\n", t.File, t.Line, t.Side)
		}
	}

	approved := 0
	for _, ok := range state.Reviewers {
		if ok {
			approved++
		}
	}
	fmt.Fprintf(&b, "\nApprovals: %d of %d reviewers.\n", approved, len(state.Reviewers))

	return b.String()
}
